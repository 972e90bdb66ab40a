// Package oidcerr defines the OAuth2/OIDC protocol error vocabulary shared
// by the rules engine, grants and HTTP handlers. Values are compared with
// errors.Is against the predefined sentinels; descriptions are refined with
// WithDescription without breaking that comparison.
package oidcerr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tabsync/oidcd/pkg/httpx"
)

// Error is an RFC 6749 / OIDC Core protocol error. It carries the HTTP
// status for direct responses; redirect-based delivery is the handler's
// call, not the error's.
type Error struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`

	base *Error
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches against the predefined sentinel this error was derived from,
// so errors.Is(err, oidcerr.ErrInvalidRequest) works on refined copies.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e == t || e.base == t {
		return true
	}
	return e.Code == t.Code
}

// WithDescription returns a copy carrying a more specific description.
func (e *Error) WithDescription(format string, args ...any) *Error {
	return &Error{
		StatusCode:  e.StatusCode,
		Code:        e.Code,
		Description: fmt.Sprintf(format, args...),
		base:        e.root(),
	}
}

func (e *Error) root() *Error {
	if e.base != nil {
		return e.base
	}
	return e
}

// Write sends the error as a direct JSON response.
func (e *Error) Write(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, e)
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Predefined protocol errors. RFC 6749 §4.1.2.1/§5.2 plus the OIDC Core
// authentication error codes used by the prompt and request-object rules.
var (
	ErrInvalidRequest = &Error{
		StatusCode: http.StatusBadRequest, Code: "invalid_request",
		Description: "The request is missing a required parameter or is otherwise malformed.",
	}
	ErrInvalidClient = &Error{
		StatusCode: http.StatusUnauthorized, Code: "invalid_client",
		Description: "Client authentication failed.",
	}
	ErrInvalidGrant = &Error{
		StatusCode: http.StatusBadRequest, Code: "invalid_grant",
		Description: "The provided authorization grant is invalid, expired or revoked.",
	}
	ErrInvalidScope = &Error{
		StatusCode: http.StatusBadRequest, Code: "invalid_scope",
		Description: "The requested scope is invalid or unknown.",
	}
	ErrUnauthorizedClient = &Error{
		StatusCode: http.StatusBadRequest, Code: "unauthorized_client",
		Description: "The client is not authorized to use this grant type.",
	}
	ErrAccessDenied = &Error{
		StatusCode: http.StatusForbidden, Code: "access_denied",
		Description: "The resource owner or authorization server denied the request.",
	}
	ErrUnsupportedResponseType = &Error{
		StatusCode: http.StatusBadRequest, Code: "unsupported_response_type",
		Description: "The authorization server does not support this response type.",
	}
	ErrUnsupportedGrantType = &Error{
		StatusCode: http.StatusBadRequest, Code: "unsupported_grant_type",
		Description: "The authorization server does not support this grant type.",
	}
	ErrServerError = &Error{
		StatusCode: http.StatusInternalServerError, Code: "server_error",
		Description: "The authorization server encountered an unexpected condition.",
	}
	ErrTemporarilyUnavailable = &Error{
		StatusCode: http.StatusServiceUnavailable, Code: "temporarily_unavailable",
		Description: "The authorization server is temporarily unable to handle the request.",
	}

	/* OIDC Core authentication error codes */

	ErrInteractionRequired = &Error{
		StatusCode: http.StatusBadRequest, Code: "interaction_required",
		Description: "End-user interaction is required but prompt=none was given.",
	}
	ErrLoginRequired = &Error{
		StatusCode: http.StatusBadRequest, Code: "login_required",
		Description: "End-user authentication is required but prompt=none was given.",
	}
	ErrRequestNotSupported = &Error{
		StatusCode: http.StatusBadRequest, Code: "request_not_supported",
		Description: "The request parameter is not supported.",
	}
	ErrInvalidRequestObject = &Error{
		StatusCode: http.StatusBadRequest, Code: "invalid_request_object",
		Description: "The request object is invalid.",
	}

	/* Transport-level request problems */

	ErrInvalidContentType = &Error{
		StatusCode: http.StatusBadRequest, Code: "invalid_request",
		Description: "Content-Type must be application/x-www-form-urlencoded.",
	}
	ErrInvalidFormBody = &Error{
		StatusCode: http.StatusBadRequest, Code: "invalid_request",
		Description: "Malformed form body.",
	}
)
