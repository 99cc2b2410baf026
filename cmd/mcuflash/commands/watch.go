// Copyright (C) 2025 OwnTech Foundation. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/owntech-foundation/mcuflash/cmd/mcuflash/directory"
	"github.com/owntech-foundation/mcuflash/pkg/flash"
)

// reflashDebounce coalesces the burst of events a build system produces while
// rewriting the firmware file.
const reflashDebounce = 500 * time.Millisecond

func WatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "watch <firmware>",
		Short:        "Watch a firmware file and reflash the board on every change",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			firmware := args[0]
			if _, err := checkFirmware(firmware); err != nil {
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

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()

			// watch the directory: most build systems replace the file,
			// which drops a watch on the file itself
			if err := watcher.Add(filepath.Dir(firmware)); err != nil {
				return err
			}

			reflash := func() {
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
				fmt.Println(outcome.Message)
			}

			fmt.Printf("Watching '%s', flashing board %s on change ...\n", firmware, board)
			reflash()

			var pending <-chan time.Time
			for {
				select {
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(event.Name) != filepath.Clean(firmware) {
						continue
					}
					if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
						continue
					}
					pending = time.After(reflashDebounce)
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					fmt.Printf("watch: %v\n", err)
				case <-pending:
					pending = nil
					reflash()
				case <-cmd.Context().Done():
					return nil
				}
			}
		},
	}

	addBoardFlags(cmd)
	cmd.Flags().String("hash", "", "expected sha256 hash of the image already in flash")
	cmd.Flags().String("hash-file", "", "compute the expected hash from this file")
	cmd.Flags().String("tool", "", "path to the mcumgr executable")
	return cmd
}
