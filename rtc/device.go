// Package rtc models the real-time-clock device the suspend hook (see
// package suspend) programs to wake the host up. The core never
// arbitrates between multiple RTC devices — it discovers one
// wakealarm-capable device at startup and keeps it, matching the
// source's alarmtimer_get_rtcdev singleton.
package rtc

import (
	"errors"
	"sync"
	"time"
)

// Device is a real-time clock capable of waking the host from suspend.
// Downward interface consumed by package suspend; the core never touches
// it directly outside the suspend hook.
type Device interface {
	// Name identifies the device, for logging.
	Name() string
	// ReadTime returns the device's current time.
	ReadTime() (time.Time, error)
	// SetWakeAlarm programs a one-shot wake alarm for at.
	SetWakeAlarm(at time.Time) error
	// CancelWakeAlarm disarms any previously programmed wake alarm.
	CancelWakeAlarm() error
}

// Discoverer enumerates wakealarm-capable RTC devices and opens one.
type Discoverer interface {
	Discover() (Device, error)
}

// ErrNoDevice is returned by Discoverer implementations when no
// wakealarm-capable RTC device exists; Registry.Get reports the same
// condition as ok == false.
var ErrNoDevice = errors.New("rtc: no wakealarm-capable device")

// Registry performs the one-time, lazy discovery of the RTC device the
// process will use for the rest of its life — an atomically-initialized
// optional value standing in for the source's rtcdev_lock + rtcdev
// global (Design Note 3).
type Registry struct {
	once sync.Once
	dev  Device
	err  error
	disc Discoverer
}

// NewRegistry builds a Registry that discovers its device lazily via disc
// on the first call to Get.
func NewRegistry(disc Discoverer) *Registry {
	return &Registry{disc: disc}
}

// Get returns the discovered device, performing discovery on the first
// call. ok is false if no wakealarm-capable RTC device could be found;
// callers (the posix-clock façade, the suspend hook) treat that as
// "unsupported", never as a hard error.
func (r *Registry) Get() (Device, bool) {
	r.once.Do(func() {
		r.dev, r.err = r.disc.Discover()
	})
	return r.dev, r.err == nil && r.dev != nil
}

// Static wraps an already-known Device as a Discoverer, useful for tests
// and for platforms with a single well-known RTC path.
type Static struct{ Device Device }

func (s Static) Discover() (Device, error) {
	if s.Device == nil {
		return nil, ErrNoDevice
	}
	return s.Device, nil
}
