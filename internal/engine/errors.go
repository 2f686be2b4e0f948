package engine

import "errors"

// inferenceOutputError signals that the model produced no usable logits
// (missing, empty or wider than the vocabulary).
type inferenceOutputError struct{ reason string }

func (e inferenceOutputError) Error() string { return "inference output: " + e.reason }

// ErrInferenceOutput constructs an inferenceOutputError.
func ErrInferenceOutput(reason string) error { return inferenceOutputError{reason: reason} }

// IsInferenceOutput reports whether err is an inferenceOutputError.
func IsInferenceOutput(err error) bool {
	var e inferenceOutputError
	return errors.As(err, &e)
}

// invalidOptionsError marks a request rejected before any decoding.
type invalidOptionsError struct{ msg string }

func (e invalidOptionsError) Error() string { return "invalid options: " + e.msg }

// IsInvalidOptions reports whether err rejects the request parameters.
func IsInvalidOptions(err error) bool {
	var e invalidOptionsError
	return errors.As(err, &e)
}
