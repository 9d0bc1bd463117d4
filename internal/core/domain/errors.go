package domain

import "errors"

var (
	// ErrUnauthenticated means the Authorization Service rejected the identity
	// token itself (HTTP 401). It is fatal to the session.
	ErrUnauthenticated = errors.New("identity token rejected")
	// ErrForbidden means the server refused the action for the caller's role.
	ErrForbidden = errors.New("access forbidden")
	ErrNotFound  = errors.New("not found")

	ErrNoIdentity      = errors.New("no signed-in identity")
	ErrSessionNotFound = errors.New("session not found")

	ErrInvalidRole           = errors.New("invalid role")
	ErrInvalidClassification = errors.New("invalid classification")
	ErrUploadFailed          = errors.New("document upload failed")
	ErrUnsupportedDocument   = errors.New("unsupported document")
)
