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

func ImagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "List the firmware images the bootloader reports",
		Long: "List the firmware images the board's bootloader reports, including the\n" +
			"content hash that 'flash --hash' compares against. The board must already be\n" +
			"in bootloader mode, or running a firmware that answers mcumgr requests.",
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

			images, err := mcumgr.NewClient(tool, port).ListImages(cmd.Context())
			if err != nil {
				return err
			}
			if len(images) == 0 {
				fmt.Println("No images reported.")
				return nil
			}

			enc, err := parseOutputFlag(cmd)
			if err != nil {
				return err
			}
			if enc != nil {
				return enc.Encode(imageList(images))
			}

			for _, img := range images {
				fmt.Printf("image=%d slot=%d\n", img.Index, img.Slot)
				fmt.Printf("    version: %s\n", img.Version)
				fmt.Printf("    bootable: %v\n", img.Bootable)
				fmt.Printf("    flags: %s\n", img.Flags)
				fmt.Printf("    hash: %s\n", img.Hash)
			}
			return nil
		},
	}

	addBoardFlags(cmd)
	cmd.Flags().String("tool", "", "path to the mcumgr executable")
	cmd.Flags().BoolP("list", "l", false, "print the images in a machine readable format")
	cmd.Flags().StringP("output", "o", "json", "output format of the image list, either json, yaml or short")
	return cmd
}

type imageList []mcumgr.Image

func (l imageList) Elements() []Short {
	var res []Short
	for _, img := range l {
		res = append(res, shortImage{img})
	}
	return res
}

type shortImage struct {
	mcumgr.Image
}

func (i shortImage) Short() string {
	return fmt.Sprintf("image=%d slot=%d version=%s hash=%s", i.Index, i.Slot, i.Version, i.Hash)
}
