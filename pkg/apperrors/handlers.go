package apperrors

import (
	"huddle_backend/internal/logger"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error *AppError `json:"error"`
}

type GinErrorHandler struct {
	Debug bool // keep Details of 5xx errors in the response
}

func (h *GinErrorHandler) HandleGinError(c *gin.Context, err error) {
	appErr, ok := AsAppError(err)
	if !ok {
		appErr = InternalError(err)
	}

	if appErr.HTTPCode >= 500 {
		logger.CtxWithError(c.Request.Context(), "server error", err,
			"code", appErr.Code,
			"path", c.Request.URL.Path,
		)
		if !h.Debug {
			appErr = appErr.WithDetails(nil)
		}
	}

	c.AbortWithStatusJSON(appErr.HTTPCode, ErrorResponse{Error: appErr})
}

// HandleError writes err as {"error": {...}}. Details of 5xx errors are only shown outside production.
func HandleError(c *gin.Context, err error) {
	handler := &GinErrorHandler{Debug: gin.Mode() != gin.ReleaseMode}
	handler.HandleGinError(c, err)
}

// AsAppError finds an *AppError anywhere in the chain of err.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
