// Package charterr holds the error kinds shared by every layer of the chart
// engine. Callers wrap one of the sentinels with context and test with
// errors.Is.
package charterr

import "errors"

var (
	// ErrBuffer: bad identifier, truncated or misaligned input buffer.
	ErrBuffer = errors.New("buffer error")

	// ErrValidation: non-monotonic timestamp or an invalid pan/zoom argument.
	ErrValidation = errors.New("validation error")

	// ErrRender: a drawing call failed.
	ErrRender = errors.New("render error")

	// ErrLayout: degenerate canvas size.
	ErrLayout = errors.New("layout error")
)

// Kind returns the sentinel err wraps, or nil when it is none of them.
func Kind(err error) error {
	for _, k := range []error{ErrBuffer, ErrValidation, ErrRender, ErrLayout} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
