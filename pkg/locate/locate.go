// Copyright (C) 2025 OwnTech Foundation. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package locate resolves USB serial devices by their vendor and product
// identity. Results reflect a single point-in-time enumeration; ports are not
// stable across a board reset and must be looked up again afterwards.
package locate

import (
	"fmt"
	"strconv"
	"strings"

	"go.bug.st/serial/enumerator"
)

// Device describes an attached USB serial device.
type Device struct {
	Port        string `mapstructure:"port" yaml:"port" json:"port"`
	VID         uint16 `mapstructure:"vid" yaml:"vid" json:"vid"`
	PID         uint16 `mapstructure:"pid" yaml:"pid" json:"pid"`
	Description string `mapstructure:"description" yaml:"description" json:"description"`
}

func (d Device) String() string {
	if d.Description == "" {
		return fmt.Sprintf("%s (%04x:%04x)", d.Port, d.VID, d.PID)
	}
	return fmt.Sprintf("%s (%04x:%04x) %s", d.Port, d.VID, d.PID, d.Description)
}

// ParseID parses a 16-bit USB vendor or product id from a hex string, with or
// without a "0x" prefix.
func ParseID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimSpace(strings.ToLower(s)), "0x")
	id, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid usb id %q", s)
	}
	return uint16(id), nil
}

// ListDevices enumerates the currently attached USB serial devices.
func ListDevices() ([]Device, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(ports))
	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		vid, err := ParseID(port.VID)
		if err != nil {
			continue
		}
		pid, err := ParseID(port.PID)
		if err != nil {
			continue
		}
		devices = append(devices, Device{
			Port:        port.Name,
			VID:         vid,
			PID:         pid,
			Description: port.Product,
		})
	}
	return devices, nil
}

// FindDevice returns the port of the first attached device matching the given
// vendor and product id. If name is non-empty the device description must
// match it as well; a device with the right identity but a different
// description does not count.
func FindDevice(vid, pid uint16, name string) (string, bool) {
	devices, err := ListDevices()
	if err != nil {
		return "", false
	}
	return findIn(devices, vid, pid, name)
}

// Identity reverse-looks-up the vendor and product id of the device currently
// bound to port. It reports false if the port is no longer enumerated.
func Identity(port string) (uint16, uint16, bool) {
	devices, err := ListDevices()
	if err != nil {
		return 0, 0, false
	}
	return identityIn(devices, port)
}

func findIn(devices []Device, vid, pid uint16, name string) (string, bool) {
	for _, dev := range devices {
		if dev.VID != vid || dev.PID != pid {
			continue
		}
		if name != "" && dev.Description != name {
			continue
		}
		return dev.Port, true
	}
	return "", false
}

func identityIn(devices []Device, port string) (uint16, uint16, bool) {
	for _, dev := range devices {
		if dev.Port == port {
			return dev.VID, dev.PID, true
		}
	}
	return 0, 0, false
}
