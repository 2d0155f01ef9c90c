package exchange

import "time"

// Clock supplies the operation timestamp. Each engine operation reads the
// clock exactly once and uses that instant for every comparison it makes.
type Clock interface {
	Now() int64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() int64

func (f ClockFunc) Now() int64 { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(func() int64 { return time.Now().Unix() })
