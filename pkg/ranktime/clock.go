package ranktime

import "time"

// monotonicBase anchors the rank-local monotonic clock. Tick values are
// meaningless across ranks until NormalizeTo rebases them onto the
// group-wide zero time.
var monotonicBase = time.Now()

// nowTicks returns nanoseconds on the rank-local monotonic clock.
func nowTicks() int64 {
	return int64(time.Since(monotonicBase))
}
