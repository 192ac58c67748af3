package alarmtimer

import (
	"context"
	"sync"
	"time"
)

// waitToken is the "dedicated one-shot wake channel per sleep" from the
// source's design notes, standing in for the wake-by-task-handle pattern
// (alarm->data holding a *task_struct): done is closed exactly once, and is
// safe to close from the alarm callback concurrently with the sleeper
// inspecting it.
type waitToken struct {
	done chan struct{}
	once sync.Once
}

func newWaitToken() *waitToken {
	return &waitToken{done: make(chan struct{})}
}

func (w *waitToken) wake() {
	w.once.Do(func() { close(w.done) })
}

// Sleep suspends the calling goroutine on a one-shot alarm scheduled
// against typ's base for absExpiry, returning true if the alarm fired or
// false if ctx was canceled first (ctx.Done is this module's stand-in for
// "a signal is pending" — see C6). It is the primitive both
// posixclock.Ops.Nsleep and posixclock.Ops.NsleepRestart are built on.
func (m *Manager) Sleep(ctx context.Context, typ Type, absExpiry time.Time) bool {
	var alarm Alarm
	w := newWaitToken()
	m.Init(&alarm, typ, (*Alarm).wakeCallback)
	alarm.wake = w

	m.Start(&alarm, absExpiry, 0)
	select {
	case <-w.done:
		m.Cancel(&alarm)
		return true
	case <-ctx.Done():
		m.Cancel(&alarm)
		return false
	}
}

// wakeCallback is invoked by the dispatch engine with the base lock
// released (C3's rationale: callbacks may re-enter the API). It is the
// alarm's function when the alarm was created by Sleep.
func (a *Alarm) wakeCallback() {
	a.wake.wake()
}
