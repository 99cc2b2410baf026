// Copyright (C) 2025 OwnTech Foundation. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package mcumgr drives the external mcumgr binary over a serial connection
// and parses its textual output. The wire protocol itself is the tool's
// business; this package only builds invocations and reads what the tool
// prints.
package mcumgr

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/owntech-foundation/mcuflash/pkg/runner"
)

const (
	// DefaultBaud is the serial speed used to talk to the bootloader.
	DefaultBaud = 115200

	// DefaultMTU is the SMP chunk size accepted by the bootloader.
	DefaultMTU = 128

	// commandStall kills a tool invocation that goes quiet for this long.
	commandStall = 10 * time.Second
)

// ProgressFunc receives upload progress updates. It may be called any number
// of times during an upload, with non-decreasing percent values for a
// well-behaved tool.
type ProgressFunc func(percent float64, label, suffix string)

// Client invokes the mcumgr tool against a single serial port.
type Client struct {
	Tool string
	Port string
	Baud int
	MTU  int

	// Echo receives a copy of the tool's output lines when set.
	Echo io.Writer
}

// NewClient creates a client for the tool binary at tool, connected to port.
func NewClient(tool, port string) *Client {
	return &Client{
		Tool: tool,
		Port: port,
		Baud: DefaultBaud,
		MTU:  DefaultMTU,
	}
}

func (c *Client) args(sub ...string) []string {
	conn := fmt.Sprintf("--connstring=dev=%s,baud=%d,mtu=%d", c.Port, c.Baud, c.MTU)
	return append([]string{"--conntype=serial", conn}, sub...)
}

// Reset asks the tool to reboot the device.
func (c *Client) Reset(ctx context.Context) error {
	code, err := runner.Run(ctx, runner.Options{
		StallTimeout: commandStall,
		Echo:         c.Echo,
	}, c.Tool, c.args("reset")...)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("reset exited with status %d", code)
	}
	return nil
}

// ListImages runs 'image list' and returns the image records parsed from the
// trailing output. An empty slice is not an error here; callers that require
// exactly one record check for themselves.
func (c *Client) ListImages(ctx context.Context) ([]Image, error) {
	var images []Image
	code, err := runner.Run(ctx, runner.Options{
		StallTimeout: commandStall,
		Echo:         c.Echo,
		OnFinal: &runner.FinalHandler{
			Pattern: imagePattern,
			Handle: func(matches [][]string) {
				for _, m := range matches {
					images = append(images, imageFromMatch(m))
				}
			},
		},
	}, c.Tool, c.args("image", "list")...)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, fmt.Errorf("image list exited with status %d", code)
	}
	return images, nil
}

// Upload streams the firmware file to the device with 'image upload -e',
// forwarding parsed progress lines to report.
func (c *Client) Upload(ctx context.Context, firmware string, report ProgressFunc) error {
	opts := runner.Options{
		StallTimeout: commandStall,
		Echo:         c.Echo,
	}
	if report != nil {
		opts.OnLine = &runner.LineHandler{
			Pattern: progressPattern,
			Handle: func(matches [][]string) {
				sample := progressFromMatch(matches[0])
				report(sample.Percent, "Program upload:", "Complete "+sample.Rate)
			},
		}
	}

	code, err := runner.Run(ctx, opts, c.Tool, c.args("image", "upload", "-e", firmware)...)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("image upload exited with status %d", code)
	}
	return nil
}
