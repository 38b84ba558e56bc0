package lottery

import "time"

// Clock supplies the current time. Phases are always recomputed from a clock
// so tests can drive lifecycle transitions without sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
