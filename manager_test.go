package alarmtimer_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bsid.es/alarmtimer"
)

// virtualClock is a manually-advanced clock, used in tests that exercise
// queue ordering or need the base's "now" to jump by a chosen amount
// (as in the catch-up drain test), where relying on real wall-clock time
// would make the test slow or flaky.
type virtualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newVirtualClock(start time.Time) *virtualClock {
	return &virtualClock{now: start}
}

func (c *virtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *virtualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func waitForCalls(t *testing.T, got *int64, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt64(got) >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d calls, got %d", want, atomic.LoadInt64(got))
}

func TestOneShotFire(t *testing.T) {
	m := alarmtimer.NewManager()
	m.Run()
	defer m.Close()

	var calls int64
	var alarm alarmtimer.Alarm
	m.Init(&alarm, alarmtimer.Realtime, func(*alarmtimer.Alarm) {
		atomic.AddInt64(&calls, 1)
	})
	m.Start(&alarm, time.Now().Add(20*time.Millisecond), 0)

	waitForCalls(t, &calls, 1)

	_, _, enabled := m.Snapshot(&alarm)
	if enabled {
		t.Fatal("alarm should be disabled after a one-shot fire")
	}
	if _, ok := m.HeadExpiry(alarmtimer.Realtime); ok {
		t.Fatal("queue should be empty after the only alarm fires")
	}
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("one-shot alarm fired %d times, want 1", calls)
	}
}

// TestPeriodicPhasePreservation is property P4: the k-th firing's
// alarm.expires equals e0 + k*period, regardless of scheduling jitter.
func TestPeriodicPhasePreservation(t *testing.T) {
	m := alarmtimer.NewManager()
	m.Run()
	defer m.Close()

	const period = 5 * time.Millisecond
	var calls int64
	var alarm alarmtimer.Alarm
	m.Init(&alarm, alarmtimer.Realtime, func(*alarmtimer.Alarm) {
		atomic.AddInt64(&calls, 1)
	})
	e0 := time.Now().Add(10 * time.Millisecond)
	m.Start(&alarm, e0, period)

	waitForCalls(t, &calls, 4)

	expires, gotPeriod, enabled := m.Snapshot(&alarm)
	if !enabled {
		t.Fatal("periodic alarm should remain enabled")
	}
	if gotPeriod != period {
		t.Fatalf("period changed: got %v", gotPeriod)
	}
	delta := expires.Sub(e0)
	if delta%period != 0 {
		t.Fatalf("phase drifted: expires-e0 = %v is not a multiple of period %v", delta, period)
	}
	if delta <= 0 {
		t.Fatalf("expires did not advance: delta=%v", delta)
	}
}

// TestPeriodicCatchUpWithinOneDrain exercises the scenario where a single
// clock jump leaves a periodic alarm several periods overdue: the
// baseline drain fires once per elapsed period rather than collapsing
// the catch-up into a single callback.
func TestPeriodicCatchUpWithinOneDrain(t *testing.T) {
	vc := newVirtualClock(time.Unix(0, 0))
	m := alarmtimer.NewManagerWithClocks(vc.Now, vc.Now)
	m.Run()
	defer m.Close()

	var calls int64
	var alarm alarmtimer.Alarm
	m.Init(&alarm, alarmtimer.Realtime, func(*alarmtimer.Alarm) {
		atomic.AddInt64(&calls, 1)
	})

	e0 := vc.Now()
	m.Start(&alarm, e0.Add(10*time.Millisecond), 3*time.Millisecond)

	// Jump the clock far past several periods before the real dispatch
	// timer (armed for a real 10ms) elapses, simulating a long suspend or
	// scheduling delay. 18ms lands strictly between due periods (10, 13,
	// 16) and the not-yet-due 19, avoiding the exact-multiple boundary.
	vc.Set(e0.Add(18 * time.Millisecond))

	waitForCalls(t, &calls, 3)
	time.Sleep(20 * time.Millisecond) // confirm no extra firing follows
	if got := atomic.LoadInt64(&calls); got != 3 {
		t.Fatalf("got %d firings, want exactly 3", got)
	}

	expires, _, enabled := m.Snapshot(&alarm)
	if !enabled {
		t.Fatal("periodic alarm should remain enabled")
	}
	if want := e0.Add(19 * time.Millisecond); !expires.Equal(want) {
		t.Fatalf("got expires=%v, want %v", expires, want)
	}
}

func TestCancelBeforeFire(t *testing.T) {
	m := alarmtimer.NewManager()
	m.Run()
	defer m.Close()

	var calls int64
	var alarm alarmtimer.Alarm
	m.Init(&alarm, alarmtimer.Realtime, func(*alarmtimer.Alarm) {
		atomic.AddInt64(&calls, 1)
	})

	m.Start(&alarm, time.Now().Add(time.Hour), 0)
	m.Cancel(&alarm)

	_, _, enabled := m.Snapshot(&alarm)
	if enabled {
		t.Fatal("canceled alarm should be disabled")
	}
	if _, ok := m.HeadExpiry(alarmtimer.Realtime); ok {
		t.Fatal("queue should be empty after canceling the only alarm")
	}

	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt64(&calls) != 0 {
		t.Fatal("canceled alarm must never fire")
	}
}

// TestHeadCorrectness is property P1: after any sequence of
// Start/Cancel, the head has the minimum expiry of all enabled alarms.
func TestHeadCorrectness(t *testing.T) {
	vc := newVirtualClock(time.Unix(0, 0))
	m := alarmtimer.NewManagerWithClocks(vc.Now, vc.Now)
	m.Run()
	defer m.Close()
	start := vc.Now()

	var alarms []*alarmtimer.Alarm
	offsets := []time.Duration{5 * time.Hour, 1 * time.Hour, 3 * time.Hour, 2 * time.Hour}
	for _, off := range offsets {
		a := &alarmtimer.Alarm{}
		m.Init(a, alarmtimer.Realtime, func(*alarmtimer.Alarm) {})
		m.Start(a, start.Add(off), 0)
		alarms = append(alarms, a)
	}

	head, ok := m.HeadExpiry(alarmtimer.Realtime)
	if !ok || !head.Equal(start.Add(1*time.Hour)) {
		t.Fatalf("wrong head: %v", head)
	}

	m.Cancel(alarms[1]) // remove the 1h alarm; 2h should become head
	head, ok = m.HeadExpiry(alarmtimer.Realtime)
	if !ok || !head.Equal(start.Add(2*time.Hour)) {
		t.Fatalf("wrong head after removing current head: %v", head)
	}
}

// TestStartAcceptsAnyPeriod documents that the 100us floor (P5) is a
// posixclock.Ops policy, not a Manager.Start invariant — Start itself
// accepts any period, matching the source's alarm_start.
func TestStartAcceptsAnyPeriod(t *testing.T) {
	vc := newVirtualClock(time.Unix(0, 0))
	m := alarmtimer.NewManagerWithClocks(vc.Now, vc.Now)
	m.Run()
	defer m.Close()

	var alarm alarmtimer.Alarm
	m.Init(&alarm, alarmtimer.Realtime, func(*alarmtimer.Alarm) {})
	m.Start(&alarm, vc.Now().Add(time.Hour), time.Nanosecond)
	_, period, _ := m.Snapshot(&alarm)
	if period != time.Nanosecond {
		t.Fatalf("got %v", period)
	}
}

func TestSleepFiresNormally(t *testing.T) {
	m := alarmtimer.NewManager()
	m.Run()
	defer m.Close()

	fired := m.Sleep(context.Background(), alarmtimer.Realtime, time.Now().Add(10*time.Millisecond))
	if !fired {
		t.Fatal("expected Sleep to report fired")
	}
}

func TestSleepInterruptedBySignal(t *testing.T) {
	m := alarmtimer.NewManager()
	m.Run()
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	done := make(chan bool, 1)
	go func() {
		done <- m.Sleep(ctx, alarmtimer.Realtime, start.Add(time.Second))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel() // stand-in for signal delivery

	select {
	case fired := <-done:
		if fired {
			t.Fatal("expected Sleep to report interrupted")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Sleep did not return after cancellation")
	}

	if _, ok := m.HeadExpiry(alarmtimer.Realtime); ok {
		t.Fatal("interrupted sleep's alarm should have been detached")
	}
}

// TestFreezerDeltaMonotonicity is property P6.
func TestFreezerDeltaMonotonicity(t *testing.T) {
	m := alarmtimer.NewManager()
	m.Run()
	defer m.Close()

	now := time.Now()
	m.PublishFreezerDelta(alarmtimer.Realtime, now.Add(5*time.Second))
	m.PublishFreezerDelta(alarmtimer.Realtime, now.Add(2*time.Second))
	m.PublishFreezerDelta(alarmtimer.Realtime, now.Add(8*time.Second))

	d := m.ConsumeFreezerDelta()
	if d <= 0 || d > 2*time.Second || d < 2*time.Second-200*time.Millisecond {
		t.Fatalf("expected delta near 2s, got %v", d)
	}
	if got := m.ConsumeFreezerDelta(); got != 0 {
		t.Fatalf("delta should reset to zero after consume, got %v", got)
	}
}
