//go:build linux

package rtc

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Fixed ioctl request numbers from <linux/rtc.h>. golang.org/x/sys/unix
// does not wrap these (they operate on a device-specific struct, not a
// plain int), so this module talks to the driver with the same raw
// SYS_IOCTL + unsafe.Pointer technique x/sys/unix itself uses internally.
const (
	rtcRdTime  = 0x80247009
	rtcSetTime = 0x4024700a
	rtcWkAlmRd = 0x80287010
	rtcWkAlmSet = 0x4028700f
)

// rtcTime mirrors struct rtc_time from <linux/rtc.h>.
type rtcTime struct {
	Sec, Min, Hour           int32
	Mday, Mon, Year          int32
	Wday, Yday, Isdst        int32
}

// rtcWkAlrm mirrors struct rtc_wkalrm.
type rtcWkAlrm struct {
	Enabled uint8
	Pending uint8
	_       [2]byte
	Time    rtcTime
}

func toRTCTime(t time.Time) rtcTime {
	u := t.UTC()
	return rtcTime{
		Sec:  int32(u.Second()),
		Min:  int32(u.Minute()),
		Hour: int32(u.Hour()),
		Mday: int32(u.Day()),
		Mon:  int32(u.Month()) - 1,
		Year: int32(u.Year()) - 1900,
	}
}

func fromRTCTime(rt rtcTime) time.Time {
	return time.Date(int(rt.Year)+1900, time.Month(rt.Mon+1), int(rt.Mday),
		int(rt.Hour), int(rt.Min), int(rt.Sec), 0, time.UTC)
}

// LinuxDevice programs an RTC device node (e.g. /dev/rtc0) directly via
// ioctl, standing in for the source's struct rtc_device / rtc_class ops.
type LinuxDevice struct {
	path string
	f    *os.File
}

// OpenLinuxDevice opens the RTC character device at path.
func OpenLinuxDevice(path string) (Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("rtc: open %s: %w", path, err)
	}
	return &LinuxDevice{path: path, f: f}, nil
}

func (d *LinuxDevice) Name() string { return d.path }

func (d *LinuxDevice) ReadTime() (time.Time, error) {
	var rt rtcTime
	if err := ioctl(d.f.Fd(), rtcRdTime, unsafe.Pointer(&rt)); err != nil {
		return time.Time{}, fmt.Errorf("rtc: RTC_RD_TIME: %w", err)
	}
	return fromRTCTime(rt), nil
}

func (d *LinuxDevice) SetWakeAlarm(at time.Time) error {
	alrm := rtcWkAlrm{Enabled: 1, Time: toRTCTime(at)}
	if err := ioctl(d.f.Fd(), rtcWkAlmSet, unsafe.Pointer(&alrm)); err != nil {
		return fmt.Errorf("rtc: RTC_WKALM_SET: %w", err)
	}
	return nil
}

func (d *LinuxDevice) CancelWakeAlarm() error {
	var alrm rtcWkAlrm
	if err := ioctl(d.f.Fd(), rtcWkAlmRd, unsafe.Pointer(&alrm)); err != nil {
		return fmt.Errorf("rtc: RTC_WKALM_RD: %w", err)
	}
	alrm.Enabled = 0
	if err := ioctl(d.f.Fd(), rtcWkAlmSet, unsafe.Pointer(&alrm)); err != nil {
		return fmt.Errorf("rtc: RTC_WKALM_SET (disable): %w", err)
	}
	return nil
}

func (d *LinuxDevice) Close() error { return d.f.Close() }

func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// wakeAlarmCapable checks whether an RTC device can wake the system, the
// Go equivalent of the source's has_wakealarm() probe against
// /sys/class/rtc/<name>/wakealarm.
func wakeAlarmCapable(name string) bool {
	_, err := os.Stat(filepath.Join("/sys/class/rtc", name, "wakealarm"))
	return err == nil
}

// SysfsDiscoverer finds the first wakealarm-capable RTC device under
// /dev, mirroring alarmtimer_get_rtcdev's class_find_device scan.
type SysfsDiscoverer struct{}

func (SysfsDiscoverer) Discover() (Device, error) {
	entries, err := os.ReadDir("/sys/class/rtc")
	if err != nil {
		return nil, fmt.Errorf("rtc: %w", ErrNoDevice)
	}
	for _, e := range entries {
		if !wakeAlarmCapable(e.Name()) {
			continue
		}
		dev, err := OpenLinuxDevice(filepath.Join("/dev", e.Name()))
		if err != nil {
			continue
		}
		return dev, nil
	}
	return nil, ErrNoDevice
}
