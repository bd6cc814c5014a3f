package battlecard

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failure by how the client should react to it.
type Kind string

const (
	// KindNetwork covers faults where no response was received: DNS failures,
	// connection resets, timeouts. Always retryable.
	KindNetwork Kind = "network"

	// KindServer covers 5xx responses. Retryable.
	KindServer Kind = "server"

	// KindRateLimited covers 429 responses. The client waits out the server's
	// hint before re-sending.
	KindRateLimited Kind = "rate_limited"

	// KindAuthExpired covers 401 responses. Recovered once via token refresh;
	// a second consecutive 401 is terminal.
	KindAuthExpired Kind = "auth_expired"

	// KindSessionExpired means the refresh itself failed. The session is torn
	// down and the caller must re-authenticate.
	KindSessionExpired Kind = "session_expired"

	// KindValidation covers 400 and 422 responses. Terminal.
	KindValidation Kind = "validation"

	// KindNotFound covers 404 responses. Terminal.
	KindNotFound Kind = "not_found"

	// KindForbidden covers 403 responses. Terminal.
	KindForbidden Kind = "forbidden"

	// KindUnclassified is the fallback for anything the table above misses.
	KindUnclassified Kind = "unclassified"
)

// Machine-readable error codes emitted by the backend. Responses carrying an
// unknown code are still surfaced; these constants exist so callers can switch
// on the common ones.
const (
	CodeInvalidCredentials      = "INVALID_CREDENTIALS"
	CodeTokenExpired            = "TOKEN_EXPIRED"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeValidationError         = "VALIDATION_ERROR"
	CodeInvalidInput            = "INVALID_INPUT"
	CodeMissingRequiredField    = "MISSING_REQUIRED_FIELD"
	CodeResourceNotFound        = "RESOURCE_NOT_FOUND"
	CodeDuplicateResource       = "DUPLICATE_RESOURCE"
	CodeOperationNotAllowed     = "OPERATION_NOT_ALLOWED"
	CodeAIGenerationFailed      = "AI_GENERATION_FAILED"
	CodeAIServiceUnavailable    = "AI_SERVICE_UNAVAILABLE"
	CodePromptTemplateNotFound  = "PROMPT_TEMPLATE_NOT_FOUND"
	CodeExternalAPIError        = "EXTERNAL_API_ERROR"
	CodeRateLimitExceeded       = "RATE_LIMIT_EXCEEDED"
	CodeNetworkError            = "NETWORK_ERROR"
	CodeInternalError           = "INTERNAL_ERROR"
	CodeDatabaseError           = "DATABASE_ERROR"
	CodeCacheError              = "CACHE_ERROR"
	CodeSessionExpired          = "SESSION_EXPIRED"
)

// Sentinel errors for auth lifecycle failures.
var (
	// ErrSessionExpired is wrapped into every envelope produced after the
	// refresh flow fails. Callers detect it with errors.Is and redirect the
	// user to re-authentication.
	ErrSessionExpired = errors.New("battlecard: session expired")

	// ErrNoRefreshToken is returned by a refresh attempted without a stored
	// refresh token.
	ErrNoRefreshToken = errors.New("battlecard: no refresh token")

	// ErrBodyNotReplayable is returned when a retry would need to re-send a
	// streaming body that cannot be rewound.
	ErrBodyNotReplayable = errors.New("battlecard: request body cannot be replayed")
)

// Error is the envelope every failed operation surfaces. It carries the
// backend's machine code and message when the response body was structured,
// and a synthesized code otherwise.
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Details   map[string]any
	Timestamp time.Time
	Retryable bool

	StatusCode int
	Method     string
	Endpoint   string
	RequestID  string
	Attempts   int
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("%s (request %s)", msg, e.RequestID)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches two envelopes by Kind, so errors.Is(err, &Error{Kind: KindNotFound})
// works as a category check. Session-expired envelopes additionally match the
// ErrSessionExpired sentinel.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if target == ErrSessionExpired {
		return e.Kind == KindSessionExpired
	}
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// userMessages maps backend error codes to short notices suitable for end
// users. Unknown codes fall back to the server message, then to a generic one.
var userMessages = map[string]string{
	CodeInvalidCredentials:      "Invalid email or password.",
	CodeTokenExpired:            "Your session has expired. Please sign in again.",
	CodeSessionExpired:          "Your session has expired. Please sign in again.",
	CodeInsufficientPermissions: "You don't have permission to perform this action.",
	CodeValidationError:         "Please check your input and try again.",
	CodeInvalidInput:            "Please check your input and try again.",
	CodeMissingRequiredField:    "A required field is missing.",
	CodeResourceNotFound:        "The requested item could not be found.",
	CodeDuplicateResource:       "An item with these details already exists.",
	CodeOperationNotAllowed:     "This operation is not allowed right now.",
	CodeAIGenerationFailed:      "Content generation failed. Please try again.",
	CodeAIServiceUnavailable:    "The AI service is temporarily unavailable.",
	CodePromptTemplateNotFound:  "The requested template could not be found.",
	CodeExternalAPIError:        "An upstream service failed. Please try again.",
	CodeRateLimitExceeded:       "Too many requests. Please wait a moment and try again.",
	CodeNetworkError:            "Unable to reach the server. Check your connection.",
	CodeInternalError:           "Something went wrong on our side. Please try again.",
	CodeDatabaseError:           "Something went wrong on our side. Please try again.",
	CodeCacheError:              "Something went wrong on our side. Please try again.",
}

const genericUserMessage = "An unexpected error occurred. Please try again."

// UserMessage returns a short, actionable notice for end users. The full
// envelope stays available for diagnostic logging; this string is the only
// part meant for display.
func (e *Error) UserMessage() string {
	if e == nil {
		return genericUserMessage
	}
	if msg, ok := userMessages[e.Code]; ok {
		return msg
	}
	if e.Message != "" {
		return e.Message
	}
	return genericUserMessage
}

// UserMessage translates any error into a display string. Non-envelope errors
// get the generic fallback.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return genericUserMessage
}

// IsRetryable reports whether the failure is transient: network faults, 5xx
// responses, and rate limiting. Terminal client errors and session expiry
// return false.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return false
}

// IsSessionExpired reports whether the error means the caller must
// re-authenticate before issuing further requests.
func IsSessionExpired(err error) bool {
	if errors.Is(err, ErrSessionExpired) {
		return true
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == KindSessionExpired
	}
	return false
}

// IsNotFound reports whether the error is a 404 envelope.
func IsNotFound(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == KindNotFound
	}
	return false
}
