// Package posixclock implements the posix-clock façade (C5): it maps the
// two externally visible alarm clock identifiers onto alarmtimer.Type and
// exposes getres/clock_get/timer_create/timer_set/timer_get/timer_del/
// nsleep. Every operation except timer_get and the nsleep restart path
// requires a discovered wakealarm-capable RTC; timer_create and nsleep
// also require the wake-alarm capability.
package posixclock

import (
	"context"
	"time"

	"bsid.es/alarmtimer"
	"bsid.es/alarmtimer/capability"
	"bsid.es/alarmtimer/rtc"
)

// ClockID is one of the two externally visible alarm clock identifiers.
// Every other clock identifier is rejected at the boundary — this is
// Design Note 4's "closed sum over clock IDs".
type ClockID int

const (
	RealtimeAlarm ClockID = iota
	BoottimeAlarm
)

func (c ClockID) toType() (alarmtimer.Type, error) {
	switch c {
	case RealtimeAlarm:
		return alarmtimer.Realtime, nil
	case BoottimeAlarm:
		return alarmtimer.Boottime, nil
	default:
		return 0, alarmtimer.Errorf(alarmtimer.ErrUnsupported, "clock id %d is not an alarm clock", c)
	}
}

// Freezer answers whether the calling task is currently being frozen —
// the downward interface Nsleep consults to decide whether to publish a
// freezer delta (Invariant 6).
type Freezer interface {
	Freezing() bool
}

// staticFreezer is the default Freezer: never freezing. Daemons that
// integrate with an actual suspend/freeze mechanism (see package
// suspend) supply their own.
type staticFreezer struct{ freezing bool }

func (s staticFreezer) Freezing() bool { return s.freezing }

// CallerContext carries whatever the transport in front of Ops knows
// about the calling process — namely, whether it holds the wake-alarm
// capability. The posix-timer dispatcher that would populate this from a
// real client connection is out of scope (spec.md §1); Ops only needs
// the answer.
type CallerContext interface {
	HasWakeAlarm() (bool, error)
}

// processCaller checks the capability of the Ops process itself, useful
// for a daemon that owns its clock ids outright rather than serving
// timer_create over some IPC boundary.
type processCaller struct{ checker capability.Checker }

func (p processCaller) HasWakeAlarm() (bool, error) { return p.checker.HasWakeAlarm() }

// ProcessCaller adapts a capability.Checker into a CallerContext that
// always answers for the calling process.
func ProcessCaller(c capability.Checker) CallerContext { return processCaller{c} }

// resolution is the granularity getres reports for either base — this
// module has no hardware clock resolution to query, so it reports the
// resolution of Go's monotonic clock reads, which is what actually backs
// alarmtimer.Manager.
const resolution = time.Nanosecond

// Ops binds a Manager to the RTC and capability collaborators the façade
// needs; its methods are the operations registered under RealtimeAlarm
// and BoottimeAlarm (spec.md §6).
type Ops struct {
	mgr     *alarmtimer.Manager
	rtc     *rtc.Registry
	freezer Freezer
}

// New builds an Ops. freezer may be nil, meaning "never freezing".
func New(mgr *alarmtimer.Manager, rtcRegistry *rtc.Registry, freezer Freezer) *Ops {
	if freezer == nil {
		freezer = staticFreezer{}
	}
	return &Ops{mgr: mgr, rtc: rtcRegistry, freezer: freezer}
}

func (o *Ops) requireRTC() error {
	if _, ok := o.rtc.Get(); !ok {
		return alarmtimer.Errorf(alarmtimer.ErrUnsupported, "no wakealarm-capable RTC device")
	}
	return nil
}

// GetRes reports the resolution of clock's underlying reference clock.
func (o *Ops) GetRes(clock ClockID) (time.Duration, error) {
	if err := o.requireRTC(); err != nil {
		return 0, err
	}
	if _, err := clock.toType(); err != nil {
		return 0, err
	}
	return resolution, nil
}

// ClockGet returns the current value of clock's reference clock.
func (o *Ops) ClockGet(clock ClockID) (time.Time, error) {
	if err := o.requireRTC(); err != nil {
		return time.Time{}, err
	}
	typ, err := clock.toType()
	if err != nil {
		return time.Time{}, err
	}
	return o.mgr.Now(typ), nil
}

// SleepDeadline is the argument to Nsleep: either an absolute instant on
// clock's reference clock, or a duration relative to "now" at the time
// Nsleep is called.
type SleepDeadline struct {
	Absolute bool
	At       time.Time
	For      time.Duration
}

func saturatingAdd(t time.Time, d time.Duration) time.Time {
	if d < 0 {
		d = 0
	}
	r := t.Add(d)
	if r.Before(t) {
		// int64 nanosecond overflow: saturate rather than wrap to the past.
		return t.Add(1<<63 - 1)
	}
	return r
}

// RestartState carries what a restarted nanosleep call needs to resume —
// this module's stand-in for the source's restart_block.nanosleep union.
type RestartState struct {
	Clock   ClockID
	Expires time.Time
}

// Nsleep is the nanosleep entry point (spec.md §4.5). It requires the
// wake-alarm capability and a discovered RTC. On success it returns
// (0, nil, nil). If interrupted with a relative deadline, it returns the
// remaining time and a RestartState requesting an automatic restart; with
// an absolute deadline (whose caller already knows the deadline and
// doesn't need one), it returns zero remaining time, a nil RestartState
// and ErrNoAutoRestart.
func (o *Ops) Nsleep(ctx context.Context, caller CallerContext, clock ClockID, d SleepDeadline) (remaining time.Duration, restart *RestartState, err error) {
	if err := o.requireRTC(); err != nil {
		return 0, nil, err
	}
	ok, err := caller.HasWakeAlarm()
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return 0, nil, alarmtimer.Errorf(alarmtimer.ErrPermission, "caller lacks CAP_WAKE_ALARM")
	}
	typ, err := clock.toType()
	if err != nil {
		return 0, nil, err
	}

	var absExpiry time.Time
	if d.Absolute {
		absExpiry = d.At
	} else {
		absExpiry = saturatingAdd(o.mgr.Now(typ), d.For)
	}

	if o.mgr.Sleep(ctx, typ, absExpiry) {
		return 0, nil, nil
	}
	return o.interrupted(clock, typ, absExpiry, d.Absolute)
}

// NsleepRestart resumes a nanosleep interrupted earlier, reconstructing
// an alarm for the original absolute expiry (spec.md §4.5, "Restart
// entry point"). Unlike Nsleep it does not re-check capability or RTC
// presence, matching alarm_timer_nsleep_restart.
func (o *Ops) NsleepRestart(ctx context.Context, r *RestartState) (remaining time.Duration, restart *RestartState, err error) {
	typ, err := r.Clock.toType()
	if err != nil {
		return 0, nil, err
	}
	if o.mgr.Sleep(ctx, typ, r.Expires) {
		return 0, nil, nil
	}
	return o.interrupted(r.Clock, typ, r.Expires, false)
}

func (o *Ops) interrupted(clock ClockID, typ alarmtimer.Type, absExpiry time.Time, absolute bool) (time.Duration, *RestartState, error) {
	if o.freezer.Freezing() {
		o.mgr.PublishFreezerDelta(typ, absExpiry)
	}
	if absolute {
		// The caller already knows the absolute deadline; don't restart
		// automatically on their behalf.
		return 0, nil, alarmtimer.Errorf(alarmtimer.ErrNoAutoRestart, "nsleep interrupted")
	}
	remaining := absExpiry.Sub(o.mgr.Now(typ))
	if remaining < 0 {
		remaining = 0
	}
	restart := &RestartState{Clock: clock, Expires: absExpiry}
	return remaining, restart, alarmtimer.Errorf(alarmtimer.ErrInterrupted, "nsleep interrupted, restart requested")
}
