//go:build !linux

package alarmtimer

import "time"

var processBoot = time.Now()

// bootNow approximates monotonic-since-boot on platforms where this
// module has no CLOCK_BOOTTIME equivalent wired in: process start plus
// elapsed monotonic time. It will not reflect time spent suspended.
func bootNow() time.Time {
	return processBoot.Add(time.Since(processBoot))
}
