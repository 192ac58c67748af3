package suspend_test

import (
	"context"
	"testing"
	"time"

	"bsid.es/alarmtimer"
	"bsid.es/alarmtimer/capability"
	"bsid.es/alarmtimer/posixclock"
	"bsid.es/alarmtimer/rtc"
	"bsid.es/alarmtimer/suspend"
)

// TestSuspendPicksEarliest is scenario 5: two alarms at t=30s (REALTIME)
// and t=10s (BOOTTIME), no freezer-delta. The hook must program the RTC
// for rtc_now + 10s.
func TestSuspendPicksEarliest(t *testing.T) {
	base := time.Now()
	mgr := alarmtimer.NewManagerWithClocks(
		func() time.Time { return base },
		func() time.Time { return base },
	)
	mgr.Run()
	defer mgr.Close()

	var realtime, boottime alarmtimer.Alarm
	mgr.Init(&realtime, alarmtimer.Realtime, func(*alarmtimer.Alarm) {})
	mgr.Init(&boottime, alarmtimer.Boottime, func(*alarmtimer.Alarm) {})
	mgr.Start(&realtime, base.Add(30*time.Second), 0)
	mgr.Start(&boottime, base.Add(10*time.Second), 0)

	dev := rtc.NewFake(func() time.Time { return base })
	reg := rtc.NewRegistry(rtc.Static{Device: dev})
	hook := suspend.New(mgr, reg, nil)

	hook.OnSuspend()

	armedAt, armed := dev.Armed()
	if !armed {
		t.Fatal("expected RTC wakeup to be armed")
	}
	if got, want := armedAt, base.Add(10*time.Second); !got.Equal(want) {
		t.Fatalf("armed at %v, want %v", got, want)
	}
}

// TestSuspendFreezerDeltaWins is scenario 6: a single alarm at t=60s
// exists; a freezable nanosleep with 5s remaining has published to the
// freezer delta. The hook must program the RTC for rtc_now + 5s and
// clear the freezer delta.
func TestSuspendFreezerDeltaWins(t *testing.T) {
	base := time.Now()
	mgr := alarmtimer.NewManagerWithClocks(
		func() time.Time { return base },
		func() time.Time { return base },
	)
	mgr.Run()
	defer mgr.Close()

	var alarm alarmtimer.Alarm
	mgr.Init(&alarm, alarmtimer.Realtime, func(*alarmtimer.Alarm) {})
	mgr.Start(&alarm, base.Add(60*time.Second), 0)

	mgr.PublishFreezerDelta(alarmtimer.Realtime, base.Add(5*time.Second))

	dev := rtc.NewFake(func() time.Time { return base })
	reg := rtc.NewRegistry(rtc.Static{Device: dev})
	hook := suspend.New(mgr, reg, nil)

	hook.OnSuspend()

	armedAt, armed := dev.Armed()
	if !armed {
		t.Fatal("expected RTC wakeup to be armed")
	}
	if got, want := armedAt, base.Add(5*time.Second); !got.Equal(want) {
		t.Fatalf("armed at %v, want %v", got, want)
	}

	if got := mgr.ConsumeFreezerDelta(); got != 0 {
		t.Fatalf("freezer delta not cleared: %v", got)
	}
}

func TestSuspendIdleWhenNothingPending(t *testing.T) {
	base := time.Now()
	mgr := alarmtimer.NewManagerWithClocks(
		func() time.Time { return base },
		func() time.Time { return base },
	)
	mgr.Run()
	defer mgr.Close()

	dev := rtc.NewFake(func() time.Time { return base })
	dev.SetWakeAlarm(base.Add(time.Hour))
	reg := rtc.NewRegistry(rtc.Static{Device: dev})
	hook := suspend.New(mgr, reg, nil)

	hook.OnSuspend()

	if _, armed := dev.Armed(); armed {
		t.Fatal("expected RTC wakeup to be disarmed when nothing is pending")
	}
}

func TestSuspendNoDeviceIsNotFatal(t *testing.T) {
	mgr := alarmtimer.NewManager()
	mgr.Run()
	defer mgr.Close()

	reg := rtc.NewRegistry(rtc.Static{})
	hook := suspend.New(mgr, reg, nil)

	hook.OnSuspend() // must not panic
}

// TestSuspendEndToEndWithPosixclock exercises the freezer-delta wiring
// from an interrupted Nsleep call all the way through to the hook,
// matching the path a frozen nanosleep caller actually takes.
func TestSuspendEndToEndWithPosixclock(t *testing.T) {
	base := time.Now()
	mgr := alarmtimer.NewManagerWithClocks(
		func() time.Time { return base },
		func() time.Time { return base },
	)
	mgr.Run()
	defer mgr.Close()

	dev := rtc.NewFake(func() time.Time { return base })
	reg := rtc.NewRegistry(rtc.Static{Device: dev})
	hook := suspend.New(mgr, reg, nil)
	ops := posixclock.New(mgr, reg, freezingAlways{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ops.Nsleep(ctx, posixclock.ProcessCaller(capability.Static(true)), posixclock.RealtimeAlarm, posixclock.SleepDeadline{
			Absolute: true,
			At:       base.Add(5 * time.Second),
		})
	}()
	cancel()
	<-done

	hook.OnSuspend()
	if _, armed := dev.Armed(); !armed {
		t.Fatal("expected RTC wakeup to be armed from published freezer delta")
	}
}

type freezingAlways struct{}

func (freezingAlways) Freezing() bool { return true }
