package errmap

import (
	"errors"
	"net/http"

	"github.com/authplatform/auth-service/internal/domain"
)

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e HTTPError) Error() string {
	return e.Message
}

// ToHTTPError converts a domain error into the error kind table of §7:
// client-facing status code, a stable machine-readable code, and a message
// safe to return verbatim. Infrastructure failures never leak their cause.
func ToHTTPError(err error) HTTPError {
	if err == nil {
		return HTTPError{StatusCode: http.StatusOK}
	}

	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return HTTPError{StatusCode: http.StatusBadRequest, Code: "INVALID_CREDENTIALS", Message: err.Error()}

	case errors.Is(err, domain.ErrWeakPassword):
		return HTTPError{StatusCode: http.StatusBadRequest, Code: "WEAK_PASSWORD", Message: err.Error()}

	case errors.Is(err, domain.ErrExistingUser):
		return HTTPError{StatusCode: http.StatusBadRequest, Code: "EXISTING_USER", Message: err.Error()}

	case errors.Is(err, domain.ErrInvalidCode):
		return HTTPError{StatusCode: http.StatusBadRequest, Code: "INVALID_CODE", Message: err.Error()}

	case errors.Is(err, domain.ErrDeviceNotTrusted):
		return HTTPError{StatusCode: http.StatusBadRequest, Code: "DEVICE_NOT_TRUSTED", Message: err.Error()}

	case errors.Is(err, domain.ErrOTPRequired):
		return HTTPError{StatusCode: http.StatusOK, Code: "OTP_REQUIRED", Message: err.Error()}

	case errors.Is(err, domain.ErrInvalidOTP), errors.Is(err, domain.ErrOTPExpired):
		return HTTPError{StatusCode: http.StatusBadRequest, Code: "INVALID_OTP", Message: err.Error()}

	case errors.Is(err, domain.ErrInvalidRefreshToken):
		return HTTPError{StatusCode: http.StatusUnauthorized, Code: "INVALID_REFRESH_TOKEN", Message: err.Error()}

	case errors.Is(err, domain.ErrRefreshTokenReuse):
		return HTTPError{StatusCode: http.StatusUnauthorized, Code: "REFRESH_TOKEN_REUSE", Message: err.Error()}

	case errors.Is(err, domain.ErrSessionExpired):
		return HTTPError{StatusCode: http.StatusUnauthorized, Code: "SESSION_EXPIRED", Message: err.Error()}

	case errors.Is(err, domain.ErrSessionRevoked):
		return HTTPError{StatusCode: http.StatusUnauthorized, Code: "SESSION_REVOKED", Message: err.Error()}

	case errors.Is(err, domain.ErrUnauthorized):
		// No reason disclosed: token invalid, expired, and revoked all look
		// identical to a caller presenting a bad token.
		return HTTPError{StatusCode: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "authentication required"}

	case errors.Is(err, domain.ErrForbidden):
		return HTTPError{StatusCode: http.StatusForbidden, Code: "FORBIDDEN", Message: err.Error()}

	case errors.Is(err, domain.ErrMaxSessionsExceeded):
		return HTTPError{StatusCode: http.StatusTooManyRequests, Code: "MAX_SESSIONS_EXCEEDED", Message: err.Error()}

	case errors.Is(err, domain.ErrLockedOut):
		return HTTPError{StatusCode: http.StatusTooManyRequests, Code: "LOCKED_OUT", Message: err.Error()}

	case errors.Is(err, domain.ErrRateLimited):
		return HTTPError{StatusCode: http.StatusTooManyRequests, Code: "RATE_LIMITED", Message: err.Error()}

	case errors.Is(err, domain.ErrNotFound):
		return HTTPError{StatusCode: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}

	case errors.Is(err, domain.ErrAlreadyExists):
		return HTTPError{StatusCode: http.StatusConflict, Code: "ALREADY_EXISTS", Message: err.Error()}

	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrEmptyID), errors.Is(err, domain.ErrInvalidID):
		return HTTPError{StatusCode: http.StatusBadRequest, Code: "INVALID_ARGUMENT", Message: err.Error()}

	case errors.Is(err, domain.ErrConfigRequired):
		return HTTPError{StatusCode: http.StatusInternalServerError, Code: "INTERNAL", Message: "internal error"}

	case errors.Is(err, domain.ErrUnavailable):
		return HTTPError{StatusCode: http.StatusServiceUnavailable, Code: "UNAVAILABLE", Message: err.Error()}

	default:
		// Never expose internal error details to clients.
		return HTTPError{StatusCode: http.StatusInternalServerError, Code: "INTERNAL", Message: "internal error"}
	}
}

// ToHTTPStatusCode extracts just the HTTP status code for a domain error.
func ToHTTPStatusCode(err error) int {
	return ToHTTPError(err).StatusCode
}
