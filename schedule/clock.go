package schedule

import (
	"context"
	"time"
)

// Clock reloads the active set of events and lets callers subscribe to
// the stream of instances it fires.
type Clock interface {
	Reload(...*Event)
	Subscribe(context.Context) Subscription
}

// Subscription is a live feed of fired instances. If the subscriber
// can't keep up, the Clock closes its channel and the subscriber must
// call Subscribe again.
type Subscription interface {
	C() <-chan Alarm
	Close() error
}

// Alarm is one fired instance of a named Event.
type Alarm struct {
	Event string
	At    time.Time
	Data  map[string]any
}
