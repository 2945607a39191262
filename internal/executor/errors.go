package executor

import "fmt"

// ExecutionError wraps a transport level failure: DNS, connect, TLS, timeout,
// redirect limit or an unreadable response body.
type ExecutionError struct {
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute request: %v", e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}
