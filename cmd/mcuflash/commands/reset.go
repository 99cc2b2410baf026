// Copyright (C) 2025 OwnTech Foundation. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/owntech-foundation/mcuflash/cmd/mcuflash/directory"
	"github.com/owntech-foundation/mcuflash/pkg/locate"
	"github.com/owntech-foundation/mcuflash/pkg/mcumgr"
)

func ResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "reset",
		Short:        "Reset a board through the mcumgr tool",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			port, found := locate.FindDevice(vid, pid, board.Name)
			if !found {
				return fmt.Errorf("board %s is not connected", board)
			}

			tool, err := resolveTool(cmd, cfg)
			if err != nil {
				return err
			}

			if err := mcumgr.NewClient(tool, port).Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Reset target")
			return nil
		},
	}

	addBoardFlags(cmd)
	cmd.Flags().String("tool", "", "path to the mcumgr executable")
	return cmd
}
