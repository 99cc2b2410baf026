// Copyright (C) 2025 OwnTech Foundation. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"os"

	"code.cloudfoundry.org/bytefmt"
	"github.com/spf13/cobra"

	"github.com/owntech-foundation/mcuflash/cmd/mcuflash/directory"
	"github.com/owntech-foundation/mcuflash/pkg/flash"
)

func FlashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flash <firmware>",
		Short: "Flash a firmware image onto a board",
		Long: "Flash a firmware image onto a board. The board is rebooted into bootloader\n" +
			"mode with the 1200 bps touch and reprogrammed through the mcumgr tool once it\n" +
			"re-enumerates. With --hash or --hash-file, a board whose current image\n" +
			"already matches the expected hash is only reset, not reflashed.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			firmware := args[0]
			stat, err := checkFirmware(firmware)
			if err != nil {
				return err
			}

			cfg, err := directory.GetUserConfig()
			if err != nil {
				return err
			}

			board, err := resolveBoard(cmd, cfg)
			if err != nil {
				return err
			}
			vid, pid, err := board.Identity()
			if err != nil {
				return err
			}

			tool, err := resolveTool(cmd, cfg)
			if err != nil {
				return err
			}

			hash, err := resolveHash(cmd)
			if err != nil {
				return err
			}

			fmt.Printf("Flashing %s (%s) to board %s ...\n",
				firmware, bytefmt.ByteSize(uint64(stat.Size())), board)

			bar := &progressBar{}
			outcome := flash.Program(cmd.Context(), flash.Options{
				Firmware:     firmware,
				VID:          vid,
				PID:          pid,
				Name:         board.Name,
				ExpectedHash: hash,
				Tool:         tool,
				Out:          os.Stdout,
				Progress:     bar.report,
			})
			bar.finish()

			if !outcome.OK {
				return fmt.Errorf("%s", outcome.Message)
			}
			fmt.Println(outcome.Message)
			return nil
		},
	}

	addBoardFlags(cmd)
	cmd.Flags().String("hash", "", "expected sha256 hash of the image already in flash")
	cmd.Flags().String("hash-file", "", "compute the expected hash from this file")
	cmd.Flags().String("tool", "", "path to the mcumgr executable")
	return cmd
}
