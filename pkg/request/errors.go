package request

import (
	"errors"
	"fmt"
)

// ErrEmptyContent is returned when the text holds nothing but comments and blank lines.
var ErrEmptyContent = errors.New("empty content")

// InvalidFormatError reports a header line that is not "<METHOD> <URL>".
type InvalidFormatError struct {
	Line string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid format: %s", e.Line)
}

// BodyDecodeError wraps a failure to decode the body section.
type BodyDecodeError struct {
	Cause error
}

func (e *BodyDecodeError) Error() string {
	return fmt.Sprintf("decode body: %v", e.Cause)
}

func (e *BodyDecodeError) Unwrap() error {
	return e.Cause
}
