package utils

import (
	"time"
)

type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	Sleep(d time.Duration)
}

type RealClock struct{}

func (self RealClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (self RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (self RealClock) Now() time.Time {
	return time.Now()
}

// A clock for tests - Sleep() returns immediately but records how
// long we were asked to wait.
type MockClock struct {
	MockNow time.Time

	Slept time.Duration
}

func (self *MockClock) Now() time.Time {
	return self.MockNow.Add(self.Slept)
}

func (self *MockClock) After(d time.Duration) <-chan time.Time {
	return time.After(0)
}

func (self *MockClock) Sleep(d time.Duration) {
	self.Slept += d
}
