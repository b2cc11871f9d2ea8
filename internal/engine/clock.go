package engine

import "time"

// Clock abstracts time for services with time-dependent rules (roster
// inactivity, account age) so tests can inject a fixed or movable clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func RealClock() Clock { return realClock{} }
