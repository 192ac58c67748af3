// Package suspend implements the suspend hook (C7): invoked by the
// power-management subsystem immediately before the host suspends, it
// walks every clock base's head and the freezer-delta global to find
// the soonest wakeup and programs the chosen RTC device to fire it.
package suspend

import (
	"log"
	"time"

	"bsid.es/alarmtimer"
	"bsid.es/alarmtimer/rtc"
)

// Hook binds a Manager to the discovered RTC device and is registered
// with whatever drives the host's suspend sequence — the user-space
// stand-in for the source's platform_driver registration.
type Hook struct {
	mgr    *alarmtimer.Manager
	rtc    *rtc.Registry
	logger *log.Logger
}

// New builds a Hook. If logger is nil, log.Default() is used.
func New(mgr *alarmtimer.Manager, rtcRegistry *rtc.Registry, logger *log.Logger) *Hook {
	if logger == nil {
		logger = log.Default()
	}
	return &Hook{mgr: mgr, rtc: rtcRegistry, logger: logger}
}

// shortWakeupWarning is the threshold below which OnSuspend logs a
// diagnostic: an imminent wakeup this close to suspend usually means a
// caller asked for a deadline that had already nearly elapsed.
const shortWakeupWarning = time.Second

// OnSuspend implements spec.md §4.6 exactly: consumes and clears the
// freezer delta, scans every base's head, computes the minimum wakeup
// delta, warns (does not fail) below one second, and arms the RTC. It
// never returns an error — per the propagation policy, a problem here
// must not block suspend, so any failure to program the RTC is logged
// and OnSuspend returns without arming a new wakeup.
func (h *Hook) OnSuspend() {
	freezerDelta := h.mgr.ConsumeFreezerDelta()

	dev, ok := h.rtc.Get()
	if !ok {
		h.logger.Printf("suspend: no wakealarm-capable RTC device, skipping wakeup programming")
		return
	}

	var min time.Duration
	consider := func(delta time.Duration) {
		if delta <= 0 {
			return
		}
		if min == 0 || delta < min {
			min = delta
		}
	}

	consider(freezerDelta)

	for _, typ := range alarmtimer.AllTypes() {
		expires, ok := h.mgr.HeadExpiry(typ)
		if !ok {
			continue
		}
		consider(expires.Sub(h.mgr.Now(typ)))
	}

	if min == 0 {
		if err := dev.CancelWakeAlarm(); err != nil {
			h.logger.Printf("suspend: no pending alarm, but failed to disarm RTC: %v", err)
		}
		return
	}

	if min < shortWakeupWarning {
		h.logger.Printf("suspend: short wakeup interval %v requested, proceeding anyway", min)
	}

	if err := dev.CancelWakeAlarm(); err != nil {
		h.logger.Printf("suspend: failed to cancel prior RTC wakeup: %v", err)
		return
	}
	rtcNow, err := dev.ReadTime()
	if err != nil {
		h.logger.Printf("suspend: failed to read RTC time: %v", err)
		return
	}
	if err := dev.SetWakeAlarm(rtcNow.Add(min)); err != nil {
		h.logger.Printf("suspend: failed to arm RTC wakeup: %v", err)
	}
}
