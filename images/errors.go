// Package images - Error types for image intake.
package images

import "fmt"

// DecodeError reports that input bytes could not be decoded into an image.
// The same bytes will fail again; callers must not retry them.
type DecodeError struct {
	// Reason is a short description of what was wrong with the input.
	Reason string
	// Err is the underlying codec error, if any.
	Err error
}

// Error returns the error message.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode image: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode image: %s", e.Reason)
}

// Unwrap returns the underlying codec error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
