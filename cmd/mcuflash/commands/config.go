// Copyright (C) 2025 OwnTech Foundation. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"

	"github.com/owntech-foundation/mcuflash/cmd/mcuflash/directory"
)

func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configure mcuflash",
		Long:  "Configure the mcuflash command line tool.",
	}

	cmd.AddCommand(
		ConfigBoardCmd(),
		ConfigToolCmd(),
	)
	return cmd
}

func ConfigBoardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Configure the default target board",
		Args:  cobra.NoArgs,
	}

	setCmd := &cobra.Command{
		Use:          "set",
		Short:        "Store the default board identity",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := directory.GetUserConfig()
			if err != nil {
				return err
			}

			board, err := resolveBoard(cmd, cfg)
			if err != nil {
				return err
			}

			cfg.Set(directory.BoardCfgKey, board)
			if err := directory.WriteConfig(cfg); err != nil {
				return err
			}
			fmt.Printf("Stored '%s' as the default board\n", board)
			return nil
		},
	}
	addBoardFlags(setCmd)

	cmd.AddCommand(
		setCmd,
		&cobra.Command{
			Use:          "show",
			Short:        "Show the stored board identity",
			Args:         cobra.NoArgs,
			SilenceUsage: true,
			RunE: func(_ *cobra.Command, _ []string) error {
				cfg, err := directory.GetUserConfig()
				if err != nil {
					return err
				}
				if !cfg.IsSet(directory.BoardCfgKey) {
					fmt.Println("No stored board.")
					return nil
				}
				var board Board
				if err := mapstructure.Decode(cfg.Get(directory.BoardCfgKey), &board); err != nil {
					return err
				}
				fmt.Println(board)
				return nil
			},
		},
		&cobra.Command{
			Use:          "clear",
			Short:        "Delete the stored board identity",
			Args:         cobra.NoArgs,
			SilenceUsage: true,
			RunE: func(_ *cobra.Command, _ []string) error {
				cfg, err := directory.GetUserConfig()
				if err != nil {
					return err
				}
				cfg.Set(directory.BoardCfgKey, nil)
				return directory.WriteConfig(cfg)
			},
		},
	)
	return cmd
}

func ConfigToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Configure the mcumgr tool location",
		Args:  cobra.NoArgs,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:          "set <path>",
			Short:        "Store the path of the mcumgr executable",
			Args:         cobra.ExactArgs(1),
			SilenceUsage: true,
			RunE: func(_ *cobra.Command, args []string) error {
				cfg, err := directory.GetUserConfig()
				if err != nil {
					return err
				}
				cfg.Set(directory.ToolCfgKey, args[0])
				return directory.WriteConfig(cfg)
			},
		},
		&cobra.Command{
			Use:          "show",
			Short:        "Show the mcumgr executable that will be used",
			Args:         cobra.NoArgs,
			SilenceUsage: true,
			RunE: func(_ *cobra.Command, _ []string) error {
				cfg, err := directory.GetUserConfig()
				if err != nil {
					return err
				}
				tool, err := directory.GetToolPath(cfg)
				if err != nil {
					return err
				}
				fmt.Println(tool)
				return nil
			},
		},
	)
	return cmd
}
