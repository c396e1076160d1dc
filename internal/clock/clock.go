package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts wall-clock reads so resolution and usage windows can be
// evaluated against an injected instant in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// New returns the process wall clock in UTC.
func New() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

var Module = fx.Module("clock", fx.Provide(New))
