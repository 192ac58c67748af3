package posixclock

import (
	"sync/atomic"
	"time"

	"bsid.es/alarmtimer"
)

// minInterval is the floor timer_set clamps any positive interval to,
// preventing a caller from monopolizing the dispatch loop with a
// vanishingly small period (spec.md §4.4, property P5). The source marks
// this a temporary DoS mitigation rather than fixed semantics — Design
// Note 5 — so it's a named constant, not baked into alarmtimer.Manager.
const minInterval = 100 * time.Microsecond

// Notify is called when a Timer expires; a non-nil return means the
// event could not be delivered to its owner, and increments the timer's
// overrun counter — the Go stand-in for posix_timer_event failing.
type Notify func() error

// Timer is a posix timer object realized as an embedded alarmtimer.Alarm,
// matching the source's k_itimer.it.alarmtimer embedding.
type Timer struct {
	alarm   alarmtimer.Alarm
	typ     alarmtimer.Type
	notify  Notify
	overrun uint64
}

func (t *Timer) handleFire(*alarmtimer.Alarm) {
	if err := t.notify(); err != nil {
		atomic.AddUint64(&t.overrun, 1)
	}
}

// Overrun reports how many expiry events this timer accumulated without
// being able to deliver.
func (t *Timer) Overrun() uint64 {
	return atomic.LoadUint64(&t.overrun)
}

// TimerCreate initializes a posix timer bound to clock, requiring the
// wake-alarm capability (spec.md §4.4). notify is invoked (with no locks
// held) whenever the timer fires.
func (o *Ops) TimerCreate(caller CallerContext, clock ClockID, notify Notify) (*Timer, error) {
	if err := o.requireRTC(); err != nil {
		return nil, err
	}
	ok, err := caller.HasWakeAlarm()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, alarmtimer.Errorf(alarmtimer.ErrPermission, "caller lacks CAP_WAKE_ALARM")
	}
	typ, err := clock.toType()
	if err != nil {
		return nil, err
	}
	t := &Timer{typ: typ, notify: notify}
	o.mgr.Init(&t.alarm, typ, t.handleFire)
	return t, nil
}

// Spec is an itimerspec analogue: an absolute expiry plus a recurrence
// interval (zero meaning one-shot).
type Spec struct {
	Value    time.Time
	Interval time.Duration
}

// TimerSet arms t for newSetting, clamping any positive sub-floor interval
// up to minInterval (a zero interval stays one-shot), and optionally
// reporting the pre-existing setting into oldSetting.
func (o *Ops) TimerSet(t *Timer, newSetting Spec, oldSetting *Spec) error {
	if err := o.requireRTC(); err != nil {
		return err
	}
	interval := newSetting.Interval
	if interval > 0 && interval < minInterval {
		interval = minInterval
	}
	if oldSetting != nil {
		*oldSetting = o.TimerGet(t)
	}
	o.mgr.Cancel(&t.alarm)
	o.mgr.Start(&t.alarm, newSetting.Value, interval)
	return nil
}

// TimerGet reports t's current expiry and interval.
func (o *Ops) TimerGet(t *Timer) Spec {
	expires, period, _ := o.mgr.Snapshot(&t.alarm)
	return Spec{Value: expires, Interval: period}
}

// TimerDel cancels t's embedded alarm.
func (o *Ops) TimerDel(t *Timer) error {
	if err := o.requireRTC(); err != nil {
		return err
	}
	o.mgr.Cancel(&t.alarm)
	return nil
}
