package apperrors

import (
	"net/http"
)

// =========================================================================
// Chat: validation (400)
// =========================================================================

var ErrInvalidMediaURL = New(
	CodeValidationFailed,
	"chat",
	"Media URL was not issued by the media store",
	http.StatusBadRequest,
)

var ErrInvalidReply = New(
	CodeValidationFailed,
	"chat",
	"Reply target must be a message in the same chat",
	http.StatusBadRequest,
)

var ErrInvalidEphemeralDuration = New(
	CodeValidationFailed,
	"chat",
	"Ephemeral view duration must be -1, empty or between 1 and 300 seconds",
	http.StatusBadRequest,
)

var ErrNotEphemeral = New(
	CodeValidationFailed,
	"chat",
	"Message is not ephemeral",
	http.StatusBadRequest,
)

var ErrInvalidMessageType = New(
	CodeValidationFailed,
	"chat",
	"Unknown message type",
	http.StatusBadRequest,
)

// ErrEmptyContent covers both a TEXT message without content and a media message without a URL.
var ErrEmptyContent = New(
	CodeValidationFailed,
	"chat",
	"Text messages need content, media messages need a media URL",
	http.StatusBadRequest,
)

// =========================================================================
// Chat: not found (404)
// =========================================================================

var ErrChatNotFound = New(CodeNotFound, "chat", "Chat not found", http.StatusNotFound)

var ErrMessageNotFound = New(CodeNotFound, "chat", "Message not found", http.StatusNotFound)

var ErrParticipantNotFound = New(CodeNotFound, "chat", "Participant not found", http.StatusNotFound)

// =========================================================================
// Chat: conflicts (409)
// =========================================================================

// ErrDirectChatConflict is returned when two direct-chat creations for the same pair race.
// The caller should read the chat again.
var ErrDirectChatConflict = New(
	CodeConflict,
	"chat",
	"Direct chat for this pair is being created concurrently",
	http.StatusConflict,
)

var ErrAlreadyViewed = New(
	CodeConflict,
	"chat",
	"Ephemeral message was already viewed",
	http.StatusConflict,
)

var ErrAlreadyParticipant = New(
	CodeConflict,
	"chat",
	"User is already a participant of this chat",
	http.StatusConflict,
)

// =========================================================================
// Chat: permissions (403)
// =========================================================================

var ErrNotAParticipant = New(
	CodeForbidden,
	"chat",
	"You are not a participant of this chat",
	http.StatusForbidden,
)
