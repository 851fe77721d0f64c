package errors

import (
	"errors"
	"fmt"
	"net/http"
)

/*
* Error codes are intended to convey detailed errors internally and to clients.
* These should be combined with the appropriate HTTP status code, but are not
* intended to supercede correct HTTP responses.
*
* Error codes are grouped under HTTP status code.
*
 */

const (

	// HTTP 400 Bad Request.
	// A required parameter was missing.
	MissingParameter ErrCode = 1
	// Content does not match Content-Type or unmarshalling error.
	InvalidContent ErrCode = 2

	// HTTP 401 Unauthorized.
	// Token missing, malformed, badly signed, expired or revoked.
	InvalidToken ErrCode = 3
	ExpiredToken ErrCode = 4

	// HTTP 403 Forbidden.
	// Token is valid but for another unit.
	WrongUnit ErrCode = 5

	// HTTP 404 Not Found.
	UnitNotFound     ErrCode = 6
	DocumentNotFound ErrCode = 7
	FlowNotFound     ErrCode = 8

	// HTTP 500 Internal Server Error.
	StorageFailure ErrCode = 9
)

// ErrCode identifies a failure more precisely than its HTTP status.
type ErrCode uint8

// Sentinels that callers match with errors.Is.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// PortalError implements the Error interface.
type PortalError struct {
	UnitUID      string  `json:"unitUid,omitempty"`
	Function     string  `json:"-"`
	ErrorCode    ErrCode `json:"errorCode"`
	ErrorMessage string  `json:"errorDetail"`
}

func (p *PortalError) Error() string {
	return p.ErrorMessage
}

// Unwrap maps the code onto the matching sentinel so callers can test for
// the class of failure without knowing individual codes.
func (p *PortalError) Unwrap() error {
	switch p.ErrorCode {
	case MissingParameter, InvalidContent:
		return ErrBadRequest
	case InvalidToken, ExpiredToken, WrongUnit:
		return ErrUnauthorized
	case UnitNotFound, DocumentNotFound, FlowNotFound:
		return ErrNotFound
	}
	return nil
}

// Status returns the HTTP status this error should be served with.
func (p *PortalError) Status() int {
	switch p.ErrorCode {
	case MissingParameter, InvalidContent:
		return http.StatusBadRequest
	case InvalidToken, ExpiredToken:
		return http.StatusUnauthorized
	case WrongUnit:
		return http.StatusForbidden
	case UnitNotFound, DocumentNotFound, FlowNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func New(unitUID string, function string, errCode ErrCode, errMessage string) error {
	return &PortalError{
		UnitUID:      unitUID,
		Function:     function,
		ErrorCode:    errCode,
		ErrorMessage: errMessage,
	}
}

/*
StatusError is a non-2xx response received from the portal API.

401 and 403 unwrap to ErrUnauthorized, 404 to ErrNotFound and 400 to
ErrBadRequest. Anything else is a plain failure.
*/
type StatusError struct {
	StatusCode int
	URL        string
	Messages   []string
}

func (s *StatusError) Error() string {
	if len(s.Messages) > 0 {
		return fmt.Sprintf("%s: %d %s", s.URL, s.StatusCode, s.Messages[0])
	}
	return fmt.Sprintf("%s: %d %s", s.URL, s.StatusCode, http.StatusText(s.StatusCode))
}

func (s *StatusError) Unwrap() error {
	switch s.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest:
		return ErrBadRequest
	}
	return nil
}

// IsUnauthorized reports whether err is an authorisation failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
