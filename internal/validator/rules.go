package validator

import (
	"log"
	"reflect"
	"strings"
	"unicode/utf8"

	"huddle_backend/internal/models/chat"

	"github.com/go-playground/validator/v10"
)

const maxEmojiBytes = 32

func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}

	// 'message-type': TEXT, IMAGE, VIDEO, FILE or VOICE
	mustRegister("message-type", validateMessageType)

	// 'ephemeral-duration': nil, -1 (play once) or 1..300 seconds; ignored unless IsEphemeral is set
	mustRegister("ephemeral-duration", validateEphemeralDuration)

	// 'emoji': short non-blank string without whitespace
	mustRegister("emoji", validateEmoji)
}

func validateMessageType(fl validator.FieldLevel) bool {
	return chat.MessageType(fl.Field().String()).Valid()
}

func validateEphemeralDuration(fl validator.FieldLevel) bool {
	// the service drops the duration of a non-ephemeral message
	flag := reflect.Indirect(fl.Parent()).FieldByName("IsEphemeral")
	if flag.IsValid() && flag.Kind() == reflect.Bool && !flag.Bool() {
		return true
	}

	field := fl.Field()
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return true
		}
		field = field.Elem()
	}
	return chat.ValidEphemeralDuration(int(field.Int()))
}

func validateEmoji(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" || len(s) > maxEmojiBytes || !utf8.ValidString(s) {
		return false
	}
	return !strings.ContainsAny(s, " \t\r\n")
}
