// Copyright (C) 2025 OwnTech Foundation. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package flash sequences the full reprogramming procedure: locate the board,
// force it into bootloader mode, wait for it to re-enumerate, optionally skip
// the upload when the image already in flash matches by hash, stream the
// firmware and reset into it.
package flash

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/owntech-foundation/mcuflash/pkg/locate"
	"github.com/owntech-foundation/mcuflash/pkg/mcumgr"
)

// Hardware settle times, empirically tuned. Do not shorten without
// recalibrating against real boards.
const (
	touchBaudRate   = 1200
	touchSettle     = 400 * time.Millisecond
	rebootGrace     = 1 * time.Second
	enumerateWindow = 15 * time.Second
	enumeratePoll   = 250 * time.Millisecond
	readySettle     = 1 * time.Second
	confirmSettle   = 5 * time.Second
)

// Outcome is the terminal result of one programming run. Code 0 and OK report
// success; everything the procedure detects itself surfaces uniformly as
// {1, "Failure", false} with the cause in the diagnostic output.
type Outcome struct {
	Code    int
	Message string
	OK      bool
}

var failure = Outcome{Code: 1, Message: "Failure", OK: false}

// Options configures a programming run.
type Options struct {
	// Firmware is the path of the image to upload.
	Firmware string

	// VID and PID identify the target board; Name optionally narrows the
	// match to an exact device description.
	VID  uint16
	PID  uint16
	Name string

	// ExpectedHash, when non-empty, enables the content-addressed skip: if
	// the single image reported by the bootloader carries this hash the
	// upload is skipped and the board is only reset.
	ExpectedHash string

	// Tool is the path of the mcumgr binary.
	Tool string

	// Out receives diagnostic lines. Defaults to discarding them.
	Out io.Writer

	// Progress receives upload progress samples.
	Progress mcumgr.ProgressFunc
}

// Tool is the part of the mcumgr client the procedure drives.
type Tool interface {
	Reset(ctx context.Context) error
	ListImages(ctx context.Context) ([]mcumgr.Image, error)
	Upload(ctx context.Context, firmware string, report mcumgr.ProgressFunc) error
}

// Procedure holds the state of one programming run. It is not safe to run two
// procedures against the same physical board concurrently.
type Procedure struct {
	id   uuid.UUID
	opts Options
	out  io.Writer

	find     func(vid, pid uint16, name string) (string, bool)
	identify func(port string) (uint16, uint16, bool)
	touch    func(out io.Writer, port string)
	sleep    func(time.Duration)
	tool     func(port string) Tool
}

// New creates a procedure for the given options.
func New(opts Options) *Procedure {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Procedure{
		id:       uuid.New(),
		opts:     opts,
		out:      out,
		find:     locate.FindDevice,
		identify: locate.Identity,
		touch:    Touch,
		sleep:    time.Sleep,
		tool: func(port string) Tool {
			return mcumgr.NewClient(opts.Tool, port)
		},
	}
}

// Program runs the whole procedure once and returns its outcome. The caller
// inspects Outcome only; failure causes are reported on Options.Out.
func Program(ctx context.Context, opts Options) Outcome {
	return New(opts).Program(ctx)
}

// Program executes the procedure's state machine. States run strictly in
// order with no way back: discover, force bootloader reset, await
// re-enumeration, optional hash check, upload, reset.
func (p *Procedure) Program(ctx context.Context) Outcome {
	p.logf("Starting run %s for board %04x:%04x", p.id, p.opts.VID, p.opts.PID)

	// discover
	port, found := p.find(p.opts.VID, p.opts.PID, p.opts.Name)
	if !found {
		p.logf("Error! Unable to find selected board.")
		return failure
	}
	vid, pid, found := p.identify(port)
	if !found {
		vid, pid = p.opts.VID, p.opts.PID
	}

	// force bootloader reset
	p.logf("Forcing reset using %dbps open/close on port %s", touchBaudRate, port)
	p.touch(p.out, port)
	p.sleep(rebootGrace)

	// await re-enumeration; the port may have changed
	port, found = p.awaitReenumeration(vid, pid)
	if !found {
		p.logf("Error! Unable to find selected board after reboot.")
		return failure
	}
	p.sleep(readySettle)
	p.logf("Board ready.")

	tool := p.tool(port)

	// optional hash check
	already := false
	if p.opts.ExpectedHash != "" {
		switch p.checkHash(ctx, tool) {
		case hashMatch:
			already = true
		case hashFailed:
			return failure
		case hashDiffers:
		}
	}

	// upload
	if !already {
		if err := tool.Upload(ctx, p.opts.Firmware, p.opts.Progress); err != nil {
			p.logf("Error: %v", err)
			return failure
		}
		p.logf("Successfully flashed %s", p.opts.Firmware)

		// the device validates the new image before it accepts a reset
		p.sleep(confirmSettle)
	}

	// reset into the firmware
	if err := tool.Reset(ctx); err != nil {
		p.logf("Error: %v", err)
		return failure
	}
	p.logf("Reset target")

	if already {
		return Outcome{Code: 0, Message: "Success program already in flash", OK: true}
	}
	return Outcome{Code: 0, Message: "Success", OK: true}
}

// awaitReenumeration polls for a board with the given identity until it
// reappears or the window expires.
func (p *Procedure) awaitReenumeration(vid, pid uint16) (string, bool) {
	p.logf("Rebooting board in bootloader mode...")
	for elapsed := time.Duration(0); elapsed < enumerateWindow; elapsed += enumeratePoll {
		if port, found := p.find(vid, pid, ""); found {
			return port, true
		}
		p.sleep(enumeratePoll)
	}
	return "", false
}

type hashResult int

const (
	hashMatch hashResult = iota
	hashDiffers
	hashFailed
)

// checkHash compares the expected hash against the single image the
// bootloader reports. The comparison is only trusted when exactly one record
// with a well-formed hash is present.
func (p *Procedure) checkHash(ctx context.Context, tool Tool) hashResult {
	images, err := tool.ListImages(ctx)
	if err != nil {
		p.logf("Error: %v", err)
		return hashFailed
	}
	p.logf("Bootloader is here")

	if len(images) != 1 || len(images[0].Hash) != 64 {
		return hashFailed
	}
	if images[0].Hash == p.opts.ExpectedHash {
		p.logf("Hash match! The desired program is already in the flash.")
		return hashMatch
	}
	return hashDiffers
}

func (p *Procedure) logf(format string, args ...interface{}) {
	fmt.Fprintf(p.out, format+"\n", args...)
}
