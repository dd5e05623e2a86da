// Package postprocess - Error types for score decoding.
package postprocess

// InvariantViolation reports an internal contract breach, such as a model
// returning a score vector of the wrong width. It signals a programming or
// wiring error, not a recoverable runtime condition.
type InvariantViolation struct {
	// Message describes the broken contract.
	Message string
}

// Error returns the error message.
func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Message
}
