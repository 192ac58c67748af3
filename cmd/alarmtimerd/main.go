// Command alarmtimerd runs the alarm-timer subsystem as a standalone
// daemon: it owns the realtime and boottime clock bases, serves the
// posix-clock façade, watches for impending suspend over D-Bus, and
// logs every fired schedule to an audit database.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"bsid.es/alarmtimer"
	"bsid.es/alarmtimer/audit"
	"bsid.es/alarmtimer/capability"
	"bsid.es/alarmtimer/logind"
	"bsid.es/alarmtimer/posixclock"
	"bsid.es/alarmtimer/rtc"
	"bsid.es/alarmtimer/schedule"
	"bsid.es/alarmtimer/suspend"
)

func main() {
	auditPath := flag.String("audit-db", "alarmtimerd-audit.db", "path to the firing-history audit database")
	rtcPath := flag.String("rtc-device", "", "path to a wakealarm-capable RTC device (empty to auto-discover under /sys/class/rtc)")
	fakeCapability := flag.Bool("assume-wake-alarm-capability", false, "skip the CAP_WAKE_ALARM check (for environments without real capability support)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr := alarmtimer.NewManager()
	mgr.Run()
	defer mgr.Close()

	rtcRegistry := newRTCRegistry(*rtcPath)
	checker := newCapabilityChecker(*fakeCapability)

	store, err := audit.Open(*auditPath)
	if err != nil {
		log.Fatalf("alarmtimerd: open audit store: %v", err)
	}
	defer store.Close()

	ops := posixclock.New(mgr, rtcRegistry, nil)
	caller := posixclock.ProcessCaller(checker)

	hook := suspend.New(mgr, rtcRegistry, nil)
	watcher, err := logind.NewSleepWatcher(hook.OnSuspend, nil)
	if err != nil {
		log.Printf("alarmtimerd: suspend watcher disabled: %v", err)
	} else {
		defer watcher.Close()
	}

	runner := schedule.NewRunner(mgr, alarmtimer.Realtime)
	runner.Run(ctx)
	defer runner.Close()

	logger := schedule.NewLogger(runner)
	logger.Run(ctx)
	defer logger.Close()

	auditSub := runner.Subscribe(ctx)
	defer auditSub.Close()
	go func() {
		for alarm := range auditSub.C() {
			if err := store.RecordFiring(alarm.Event, alarm.At); err != nil {
				log.Printf("alarmtimerd: record firing: %v", err)
			}
		}
	}()

	runner.Reload(&schedule.Event{
		Name:  "heartbeat",
		At:    time.Now().Add(time.Second),
		Every: time.Minute,
	})

	res, err := ops.GetRes(posixclock.RealtimeAlarm)
	if err != nil {
		log.Printf("alarmtimerd: CLOCK_REALTIME_ALARM unavailable: %v", err)
	} else {
		log.Printf("alarmtimerd: CLOCK_REALTIME_ALARM resolution %v", res)
		heartbeatTimer, err := ops.TimerCreate(caller, posixclock.RealtimeAlarm, func() error {
			log.Print("alarmtimerd: posix heartbeat timer fired")
			return nil
		})
		if err != nil {
			log.Printf("alarmtimerd: create heartbeat timer: %v", err)
		} else if err := ops.TimerSet(heartbeatTimer, posixclock.Spec{
			Value:    time.Now().Add(30 * time.Second),
			Interval: time.Minute,
		}, nil); err != nil {
			log.Printf("alarmtimerd: arm heartbeat timer: %v", err)
		} else {
			defer ops.TimerDel(heartbeatTimer)
		}
	}

	<-ctx.Done()
	log.Print("alarmtimerd: shutting down")
}

func newRTCRegistry(devicePath string) *rtc.Registry {
	if devicePath != "" {
		dev, err := rtc.OpenLinuxDevice(devicePath)
		if err != nil {
			log.Printf("alarmtimerd: open RTC device %s: %v", devicePath, err)
			return rtc.NewRegistry(rtc.Static{})
		}
		return rtc.NewRegistry(rtc.Static{Device: dev})
	}
	return rtc.NewRegistry(rtc.SysfsDiscoverer{})
}

func newCapabilityChecker(assume bool) capability.Checker {
	if assume {
		return capability.Static(true)
	}
	return capability.DefaultChecker{}
}
