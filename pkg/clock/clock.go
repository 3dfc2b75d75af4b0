// Package clock provides an injectable time source so feature computation
// and the in-process guards stay deterministic under test.
package clock

import "time"

// Clock is the minimal time source used wherever a component would
// otherwise read time.Now() directly.
type Clock interface {
	Now() time.Time
}

// Real is the production Clock backed by time.Now().
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Frozen is a test Clock that always returns the same instant.
type Frozen struct {
	At time.Time
}

func (f Frozen) Now() time.Time { return f.At }
