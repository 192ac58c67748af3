//go:build linux

package alarmtimer

import (
	"time"

	"golang.org/x/sys/unix"
)

// bootNow reads CLOCK_BOOTTIME, which — unlike CLOCK_MONOTONIC — keeps
// advancing across a suspend. This is what makes Boottime alarms suspend
// accurate in the first place: the duration the host spent asleep is
// included in "now".
func bootNow() time.Time {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &ts); err != nil {
		// CLOCK_BOOTTIME predates some very old kernels; fall back to
		// CLOCK_MONOTONIC rather than panicking the daemon.
		unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts)
	}
	return time.Unix(0, ts.Nano())
}
