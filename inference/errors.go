// Package inference - Error types for the session manager.
package inference

import "fmt"

// ModelLoadError reports that a model binary could not be loaded into the
// runtime. The surface that needed the model cannot classify, but the
// process keeps running.
type ModelLoadError struct {
	// Path of the model file that failed to load.
	Path string
	// Err is the underlying failure.
	Err error
}

// Error returns the error message.
func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying failure.
func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// SessionNotReadyError reports an inference attempt against a session that
// was never loaded or has already been released.
type SessionNotReadyError struct {
	// Name of the session the caller targeted.
	Name string
}

// Error returns the error message.
func (e *SessionNotReadyError) Error() string {
	if e.Name == "" {
		return "session is not ready"
	}
	return fmt.Sprintf("session %s is not ready", e.Name)
}

// InferenceError reports a native runtime failure during model execution.
type InferenceError struct {
	// Name of the session that failed.
	Name string
	// Err is the underlying runtime failure.
	Err error
}

// Error returns the error message.
func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference on %s: %v", e.Name, e.Err)
}

// Unwrap returns the underlying runtime failure.
func (e *InferenceError) Unwrap() error {
	return e.Err
}
