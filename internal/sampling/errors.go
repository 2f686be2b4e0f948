package sampling

import "errors"

// ErrDegenerateDistribution means no probability mass survived filtering.
// Callers recover by falling back to greedy argmax; it is never user visible.
var ErrDegenerateDistribution = errors.New("degenerate distribution: zero total mass")

// IsDegenerate reports whether err is (or wraps) ErrDegenerateDistribution.
func IsDegenerate(err error) bool {
	return errors.Is(err, ErrDegenerateDistribution)
}
