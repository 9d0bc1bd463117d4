package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rapidrecall/dashboard/internal/api/handler"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewHTTPErrorHandler renders errors as {"error": "..."}. Causes of 5xx
// responses are logged and never sent to the browser.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := statusFor(err)
		if code >= http.StatusInternalServerError {
			log.Error().
				Err(err).
				Int("status", code).
				Str("method", c.Request().Method).
				Str("route", c.Path()).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Msg("request failed")
		}

		_ = c.JSON(code, errorResponse{
			Error:     msg,
			RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
		})
	}
}

func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok && msg != "" {
			return he.Code, msg
		}
		return he.Code, http.StatusText(he.Code)
	}
	code, msg, _ := handler.ResolveError(err)
	return code, msg
}
