package northbound

import "fmt"

type Code string

const (
	CodeNoSSID         Code = "NO_SSID"
	CodeBindInProgress Code = "BIND_IN_PROGRESS"
	CodeBindError      Code = "BIND_ERROR"
	CodeUnbindError    Code = "UNBIND_ERROR"
	CodeInvalidParams  Code = "INVALID_PARAMS"
	CodeNotImplemented Code = "NOT_IMPLEMENTED"
)

// CallError is the error payload returned to northbound callers.
type CallError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newCallError(code Code, format string, args ...any) *CallError {
	return &CallError{Code: code, Message: fmt.Sprintf(format, args...)}
}
