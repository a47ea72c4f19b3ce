package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeUnknownConnection = "unknown_connection"
	ErrCodeAlreadyIdentified = "already_identified"
	ErrCodeEmptyMessage      = "empty_message"
	ErrCodePersistence       = "persistence_failure"
	ErrCodeBadRequest        = "bad_request"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeRateLimited       = "rate_limited"
	ErrCodeInternal          = "internal"
)

var (
	ErrUnknownConnection  = errors.New("unknown connection")
	ErrAlreadyIdentified  = errors.New("connection already identified as another user")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrBadRequest         = errors.New("bad request")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// toCoreError maps an operation error onto the code that reaches the client.
// Driver details of persistence failures are not exposed.
func toCoreError(err error) *CoreError {
	var ce *CoreError
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, ErrPersistenceFailure):
		return coreError(ErrCodePersistence, ErrPersistenceFailure.Error())
	case errors.Is(err, ErrEmptyMessage):
		return coreError(ErrCodeEmptyMessage, ErrEmptyMessage.Error())
	case errors.Is(err, ErrAlreadyIdentified):
		return coreError(ErrCodeAlreadyIdentified, ErrAlreadyIdentified.Error())
	case errors.Is(err, ErrUnknownConnection):
		return coreError(ErrCodeUnknownConnection, ErrUnknownConnection.Error())
	case errors.Is(err, ErrBadRequest):
		return coreError(ErrCodeBadRequest, err.Error())
	default:
		return coreError(ErrCodeInternal, "internal error")
	}
}
