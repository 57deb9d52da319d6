// Package errors defines the application-level error taxonomy shared by the
// SDK packages: connection failures, protocol violations, state conflicts and
// command validation errors.
package errors

import "fmt"

// AppError represents an application-level error with a code and optional cause
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error codes
const (
	// ErrCodeConnection covers transport-level failures after the reconnect
	// budget is exhausted. The only terminal error class raised by the
	// realtime layer.
	ErrCodeConnection = "CONNECTION_FAILED"
	// ErrCodeProtocol covers malformed or unrecognized server events. Never
	// surfaced to callers; events are dropped and counted instead.
	ErrCodeProtocol = "PROTOCOL_VIOLATION"
	// ErrCodeStateConflict covers events referencing a phase or agent the
	// session does not know about, or violating a transition guard.
	ErrCodeStateConflict = "STATE_CONFLICT"
	// ErrCodeValidation covers user commands rejected before dispatch.
	ErrCodeValidation = "VALIDATION_FAILED"

	ErrCodeAgentCreate    = "AGENT_CREATE_FAILED"
	ErrCodeAgentGet       = "AGENT_GET_FAILED"
	ErrCodeAgentUpdate    = "AGENT_UPDATE_FAILED"
	ErrCodeAgentDelete    = "AGENT_DELETE_FAILED"
	ErrCodeSessionCreate  = "SESSION_CREATE_FAILED"
	ErrCodeSessionGet     = "SESSION_GET_FAILED"
	ErrCodeSessionCommand = "SESSION_COMMAND_FAILED"
	ErrCodeSessionDelete  = "SESSION_DELETE_FAILED"
	ErrCodeExport         = "EXPORT_FAILED"
	ErrCodeCache          = "CACHE_OPERATION_FAILED"
)

// IsCode reports whether err is an *AppError carrying the given code.
func IsCode(err error, code string) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
