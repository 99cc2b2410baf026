// Copyright (C) 2025 OwnTech Foundation. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/owntech-foundation/mcuflash/cmd/mcuflash/directory"
	"github.com/owntech-foundation/mcuflash/pkg/locate"
)

func ScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for attached boards",
		Long: "Scan the USB serial devices currently attached to this machine. Without\n" +
			"--list the selected board is stored as the default for further commands.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := locate.ListDevices()
			if err != nil {
				return err
			}

			vid, err := cmd.Flags().GetString("vid")
			if err != nil {
				return err
			}
			pid, err := cmd.Flags().GetString("pid")
			if err != nil {
				return err
			}
			if devices, err = filterDevices(devices, vid, pid); err != nil {
				return err
			}

			if len(devices) == 0 {
				return fmt.Errorf("no USB serial devices found. Is the board connected?")
			}

			enc, err := parseOutputFlag(cmd)
			if err != nil {
				return err
			}
			if enc != nil {
				return enc.Encode(serialDevices(devices))
			}

			device, err := pickDevice(devices)
			if err != nil {
				return err
			}

			cfg, err := directory.GetUserConfig()
			if err != nil {
				return err
			}
			cfg.Set(directory.BoardCfgKey, Board{
				VID:  fmt.Sprintf("%04x", device.VID),
				PID:  fmt.Sprintf("%04x", device.PID),
				Name: device.Description,
			})
			if err := directory.WriteConfig(cfg); err != nil {
				return err
			}

			fmt.Printf("Stored '%s' as the default board\n", device)
			return nil
		},
	}

	cmd.Flags().String("vid", "", "only show devices with this vendor id (hex)")
	cmd.Flags().String("pid", "", "only show devices with this product id (hex)")
	cmd.Flags().BoolP("list", "l", false, "print the devices instead of picking one")
	cmd.Flags().StringP("output", "o", "short", "output format of the device list, either json, yaml or short")
	return cmd
}

func filterDevices(devices []locate.Device, vid, pid string) ([]locate.Device, error) {
	if vid == "" && pid == "" {
		return devices, nil
	}

	match := func(locate.Device) bool { return true }
	if vid != "" {
		id, err := locate.ParseID(vid)
		if err != nil {
			return nil, err
		}
		inner := match
		match = func(d locate.Device) bool { return inner(d) && d.VID == id }
	}
	if pid != "" {
		id, err := locate.ParseID(pid)
		if err != nil {
			return nil, err
		}
		inner := match
		match = func(d locate.Device) bool { return inner(d) && d.PID == id }
	}

	res := make([]locate.Device, 0, len(devices))
	for _, d := range devices {
		if match(d) {
			res = append(res, d)
		}
	}
	return res, nil
}

func pickDevice(devices []locate.Device) (locate.Device, error) {
	if len(devices) == 1 {
		return devices[0], nil
	}

	prompt := promptui.Select{
		Label:     "Choose what board you want to use",
		Items:     devices,
		Templates: &promptui.SelectTemplates{},
	}

	i, _, err := prompt.Run()
	if err != nil {
		return locate.Device{}, fmt.Errorf("you didn't select anything")
	}
	return devices[i], nil
}

type serialDevices []locate.Device

func (s serialDevices) Elements() []Short {
	var res []Short
	for _, d := range s {
		res = append(res, shortDevice{d})
	}
	return res
}

type shortDevice struct {
	locate.Device
}

func (d shortDevice) Short() string {
	return d.String()
}
