package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rapidrecall/dashboard/internal/api/middleware"
	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/service"
)

// ResolveError maps known errors to an HTTP status and a message that is safe
// to show. ok is false for unexpected errors.
func ResolveError(err error) (code int, msg string, ok bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ve.Message, true
	}

	switch {
	case errors.Is(err, domain.ErrNoIdentity),
		errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusUnauthorized, "not signed in", true
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "session expired, sign in again", true
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "access forbidden", true
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found", true
	case errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrInvalidClassification):
		return http.StatusBadRequest, err.Error(), true
	case errors.Is(err, domain.ErrUnsupportedDocument):
		return http.StatusUnsupportedMediaType, err.Error(), true
	case errors.Is(err, domain.ErrUploadFailed):
		return http.StatusBadGateway, err.Error(), true
	}
	return http.StatusInternalServerError, "internal server error", false
}

// callerFrom returns the signed-in caller or a 401.
func callerFrom(c echo.Context) (service.Caller, error) {
	caller, ok := middleware.CallerFrom(c)
	if !ok || !caller.Snapshot().Authenticated() {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	return caller, nil
}

// signedOut reports whether err means the session is gone, so that a page
// should fall back to the sign-in surface.
func signedOut(err error) bool {
	return errors.Is(err, domain.ErrUnauthenticated) || errors.Is(err, domain.ErrNoIdentity)
}
