//go:build !linux

package rtc

import "fmt"

// SysfsDiscoverer is unavailable outside Linux: there is no /sys/class/rtc
// to scan, so Discover always reports no device.
type SysfsDiscoverer struct{}

func (SysfsDiscoverer) Discover() (Device, error) {
	return nil, fmt.Errorf("rtc: sysfs discovery is only supported on linux: %w", ErrNoDevice)
}

// OpenLinuxDevice is unavailable outside Linux.
func OpenLinuxDevice(path string) (Device, error) {
	return nil, fmt.Errorf("rtc: opening an RTC device is only supported on linux")
}
