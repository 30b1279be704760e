// Package discovery implements `--list-devices` device enumeration over
// jochenvg/go-udev, scoped to sound and USB-serial (rig/SDR control)
// subsystems (spec.md §6 "command-line parsing and option validation" is
// out of scope, but device enumeration backing it is a natural collaborator
// for the same CLI surface).
package discovery

import (
	"fmt"

	"github.com/jochenvg/go-udev"
)

// Device is one enumerated candidate input device.
type Device struct {
	Subsystem  string
	SysName    string
	DevicePath string
	Vendor     string
	Model      string
}

// List enumerates sound and tty (USB-serial) devices currently present.
func List() ([]Device, error) {
	u := udev.Udev{}
	e := u.NewEnumerate()

	if err := e.AddMatchSubsystem("sound"); err != nil {
		return nil, fmt.Errorf("discovery: matching sound subsystem: %w", err)
	}
	if err := e.AddMatchSubsystem("tty"); err != nil {
		return nil, fmt.Errorf("discovery: matching tty subsystem: %w", err)
	}

	devices, err := e.Devices()
	if err != nil {
		return nil, fmt.Errorf("discovery: enumerating devices: %w", err)
	}

	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, Device{
			Subsystem:  d.Subsystem(),
			SysName:    d.Sysname(),
			DevicePath: d.Syspath(),
			Vendor:     d.PropertyValue("ID_VENDOR"),
			Model:      d.PropertyValue("ID_MODEL"),
		})
	}
	return out, nil
}
