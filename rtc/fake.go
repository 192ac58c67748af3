package rtc

import (
	"sync"
	"time"
)

// Fake is an in-memory Device for tests.
type Fake struct {
	mu      sync.Mutex
	now     func() time.Time
	armedAt time.Time
	armed   bool
}

// NewFake builds a Fake device whose ReadTime reports now().
func NewFake(now func() time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Name() string { return "fake0" }

func (f *Fake) ReadTime() (time.Time, error) {
	return f.now(), nil
}

func (f *Fake) SetWakeAlarm(at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed = true
	f.armedAt = at
	return nil
}

func (f *Fake) CancelWakeAlarm() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed = false
	return nil
}

// Armed reports the currently programmed wake alarm, if any.
func (f *Fake) Armed() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.armedAt, f.armed
}
