// Copyright (C) 2025 OwnTech Foundation. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"github.com/spf13/cobra"
)

// Info carries the build metadata stamped into the binary.
type Info struct {
	Version string `mapstructure:"version" yaml:"version" json:"version"`
	Date    string `mapstructure:"date" yaml:"date" json:"date"`
}

func McuflashCmd(info Info) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcuflash",
		Short: "Reprogram microcontroller boards over serial",
		Long: "Mcuflash reprograms MCUboot based boards over a serial connection. It finds\n" +
			"the board by its USB identity, reboots it into bootloader mode with the\n" +
			"1200 bps touch, waits for it to re-enumerate and then drives the mcumgr tool\n" +
			"to upload the firmware and reset into it. When the expected image hash is\n" +
			"known, a board that already runs the right firmware is left alone.",
	}

	cmd.AddCommand(
		FlashCmd(),
		ScanCmd(),
		ImagesCmd(),
		ResetCmd(),
		WatchCmd(),
		ConfigCmd(),
		VersionCmd(info),
	)
	return cmd
}
