//go:build linux

package capability

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// capWakeAlarm is CAP_WAKE_ALARM from <linux/capability.h>. It has no
// binding in golang.org/x/sys/unix (the capability numbers themselves
// aren't part of the syscall ABI x/sys wraps), so it's named here as a
// plain constant, the same way callers of PR_CAPBSET_READ always have to.
const capWakeAlarm = 35

// LinuxChecker checks CAP_WAKE_ALARM against the calling process's
// capability bounding set via prctl(PR_CAPBSET_READ, ...), the same
// check the source performs with capable(CAP_WAKE_ALARM) against the
// current task.
type LinuxChecker struct{}

// DefaultChecker is the platform-appropriate Checker: LinuxChecker here,
// a checker that always reports false on platforms with no capability
// bounding set.
type DefaultChecker = LinuxChecker

func (LinuxChecker) HasWakeAlarm() (bool, error) {
	ret, err := unix.PrctlRetInt(unix.PR_CAPBSET_READ, capWakeAlarm, 0, 0, 0)
	if err != nil {
		return false, fmt.Errorf("capability: PR_CAPBSET_READ: %w", err)
	}
	return ret == 1, nil
}
