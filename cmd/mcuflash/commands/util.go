// Copyright (C) 2025 OwnTech Foundation. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/owntech-foundation/mcuflash/cmd/mcuflash/directory"
	"github.com/owntech-foundation/mcuflash/pkg/locate"
)

// Board is a target board identity, as stored in the user config.
type Board struct {
	VID  string `mapstructure:"vid" yaml:"vid" json:"vid"`
	PID  string `mapstructure:"pid" yaml:"pid" json:"pid"`
	Name string `mapstructure:"name,omitempty" yaml:"name,omitempty" json:"name,omitempty"`
}

func (b Board) String() string {
	if b.Name == "" {
		return fmt.Sprintf("%s:%s", b.VID, b.PID)
	}
	return fmt.Sprintf("%s:%s (%s)", b.VID, b.PID, b.Name)
}

// Identity parses the board's hex vid/pid pair.
func (b Board) Identity() (uint16, uint16, error) {
	vid, err := locate.ParseID(b.VID)
	if err != nil {
		return 0, 0, err
	}
	pid, err := locate.ParseID(b.PID)
	if err != nil {
		return 0, 0, err
	}
	return vid, pid, nil
}

func addBoardFlags(cmd *cobra.Command) {
	cmd.Flags().String("vid", "", "vendor id of the target board (hex)")
	cmd.Flags().String("pid", "", "product id of the target board (hex)")
	cmd.Flags().String("board-name", "", "exact device description the board must carry")
}

// resolveBoard builds the target board from flags, falling back to the board
// stored in the user config.
func resolveBoard(cmd *cobra.Command, cfg *viper.Viper) (Board, error) {
	var board Board
	if cfg.IsSet(directory.BoardCfgKey) {
		if err := mapstructure.Decode(cfg.Get(directory.BoardCfgKey), &board); err != nil {
			return Board{}, fmt.Errorf("failed to decode stored board: %w", err)
		}
	}

	if v, err := cmd.Flags().GetString("vid"); err == nil && v != "" {
		board.VID = v
	}
	if v, err := cmd.Flags().GetString("pid"); err == nil && v != "" {
		board.PID = v
	}
	if v, err := cmd.Flags().GetString("board-name"); err == nil && v != "" {
		board.Name = v
	}

	if board.VID == "" || board.PID == "" {
		return Board{}, fmt.Errorf("no target board given. Pass --vid and --pid, or store a default with 'mcuflash scan'")
	}
	if _, _, err := board.Identity(); err != nil {
		return Board{}, err
	}
	return board, nil
}

// resolveTool returns the mcumgr path from the --tool flag or the usual
// lookup chain.
func resolveTool(cmd *cobra.Command, cfg *viper.Viper) (string, error) {
	if tool, err := cmd.Flags().GetString("tool"); err == nil && tool != "" {
		return tool, nil
	}
	return directory.GetToolPath(cfg)
}

// resolveHash returns the expected image hash from --hash, or computes it
// from the file named by --hash-file.
func resolveHash(cmd *cobra.Command) (string, error) {
	hash, err := cmd.Flags().GetString("hash")
	if err != nil {
		return "", err
	}
	hashFile, err := cmd.Flags().GetString("hash-file")
	if err != nil {
		return "", err
	}

	if hash != "" && hashFile != "" {
		return "", fmt.Errorf("--hash and --hash-file are mutually exclusive")
	}
	if hashFile != "" {
		if hash, err = fileHash(hashFile); err != nil {
			return "", err
		}
	}
	if hash != "" {
		if err := checkHashString(hash); err != nil {
			return "", err
		}
	}
	return strings.ToLower(hash), nil
}

func checkHashString(hash string) error {
	if len(hash) != 64 {
		return fmt.Errorf("expected a 64 character hex hash, got %d characters", len(hash))
	}
	for _, r := range strings.ToLower(hash) {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return fmt.Errorf("invalid hash character %q", r)
		}
	}
	return nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// checkFirmware verifies that the firmware argument names a regular file.
func checkFirmware(path string) (os.FileInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no such file or directory: '%s'", path)
		}
		return nil, fmt.Errorf("can't stat file '%s', reason: %w", path, err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("can't flash directory: '%s'", path)
	}
	return stat, nil
}

// progressBar renders upload progress on the terminal. It is created lazily
// on the first sample so commands without output stay quiet.
type progressBar struct {
	bar *pb.ProgressBar
}

func (p *progressBar) report(percent float64, label, suffix string) {
	if p.bar == nil {
		p.bar = pb.New(100)
		p.bar.SetTemplateString(`{{string . "label"}} {{bar . }} {{percent . }} {{string . "suffix"}}`)
		p.bar.Start()
	}
	p.bar.Set("label", label)
	p.bar.Set("suffix", suffix)
	p.bar.SetCurrent(int64(percent))
}

func (p *progressBar) finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}

type encoder interface {
	Encode(interface{}) error
}

func parseOutputFlag(cmd *cobra.Command) (encoder, error) {
	list, err := cmd.Flags().GetBool("list")
	if err != nil {
		return nil, err
	}
	if !list {
		return nil, nil
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(output) {
	case "json":
		return json.NewEncoder(os.Stdout), nil
	case "yaml":
		return yaml.NewEncoder(os.Stdout), nil
	case "short":
		return newShortEncoder(os.Stdout), nil
	default:
		return nil, fmt.Errorf("--output flag '%s' was not recognized. Must be either json, yaml or short.", output)
	}
}

type shortEncoder struct {
	w io.Writer
}

func newShortEncoder(w io.Writer) *shortEncoder {
	return &shortEncoder{
		w: w,
	}
}

type Elements interface {
	Elements() []Short
}

type Short interface {
	Short() string
}

func (s *shortEncoder) Encode(v interface{}) error {
	es, ok := v.(Elements)
	if !ok {
		return fmt.Errorf("value type %T was not compatible with the Elements interface", v)
	}
	for _, e := range es.Elements() {
		fmt.Fprintln(s.w, e.Short())
	}
	return nil
}
