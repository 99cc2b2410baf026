// Copyright (C) 2025 OwnTech Foundation. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package flash

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owntech-foundation/mcuflash/pkg/mcumgr"
)

const goodHash = "3a5f0c2be02a58e9a71af80370c40c3e6b94b94ad0ef64ee2d49e9e1a5c539da"
const otherHash = "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"

type fakeTool struct {
	images    []mcumgr.Image
	listErr   error
	uploadErr error
	resetErr  error

	lists   int
	uploads int
	resets  int
}

func (f *fakeTool) Reset(context.Context) error {
	f.resets++
	return f.resetErr
}

func (f *fakeTool) ListImages(context.Context) ([]mcumgr.Image, error) {
	f.lists++
	return f.images, f.listErr
}

func (f *fakeTool) Upload(_ context.Context, _ string, report mcumgr.ProgressFunc) error {
	f.uploads++
	if f.uploadErr == nil && report != nil {
		report(50, "Program upload:", "Complete 10.16 KiB/s")
		report(100, "Program upload:", "Complete 10.16 KiB/s")
	}
	return f.uploadErr
}

// testProcedure wires a procedure to an always-present fake board and tool,
// with all sleeps elided.
func testProcedure(opts Options, tool *fakeTool) (*Procedure, *bytes.Buffer) {
	out := &bytes.Buffer{}
	opts.Out = out
	if opts.Firmware == "" {
		opts.Firmware = "firmware.bin"
	}
	if opts.VID == 0 {
		opts.VID, opts.PID = 0x2fe3, 0x0100
	}

	p := New(opts)
	p.find = func(vid, pid uint16, name string) (string, bool) {
		return "/dev/ttyACM0", true
	}
	p.identify = func(port string) (uint16, uint16, bool) {
		return opts.VID, opts.PID, true
	}
	p.touch = func(io.Writer, string) {}
	p.sleep = func(time.Duration) {}
	p.tool = func(port string) Tool { return tool }
	return p, out
}

func singleImage(hash string) []mcumgr.Image {
	return []mcumgr.Image{{
		Index:    0,
		Slot:     0,
		Version:  "1.2.0",
		Bootable: true,
		Flags:    "active confirmed",
		Hash:     hash,
	}}
}

func TestProgramHappyPath(t *testing.T) {
	tool := &fakeTool{}
	p, _ := testProcedure(Options{}, tool)

	outcome := p.Program(context.Background())
	assert.Equal(t, Outcome{Code: 0, Message: "Success", OK: true}, outcome)
	assert.Equal(t, 0, tool.lists)
	assert.Equal(t, 1, tool.uploads)
	assert.Equal(t, 1, tool.resets)
}

func TestProgramHashMatchSkipsUpload(t *testing.T) {
	tool := &fakeTool{images: singleImage(goodHash)}
	p, out := testProcedure(Options{ExpectedHash: goodHash}, tool)

	outcome := p.Program(context.Background())
	assert.Equal(t, Outcome{Code: 0, Message: "Success program already in flash", OK: true}, outcome)
	assert.Equal(t, 0, tool.uploads)
	assert.Equal(t, 1, tool.resets)
	assert.Contains(t, out.String(), "Hash match!")
}

func TestProgramHashMatchIdempotent(t *testing.T) {
	// a second run against the same image must again reach done without
	// an upload
	for i := 0; i < 2; i++ {
		tool := &fakeTool{images: singleImage(goodHash)}
		p, _ := testProcedure(Options{ExpectedHash: goodHash}, tool)
		outcome := p.Program(context.Background())
		require.True(t, outcome.OK)
		require.Equal(t, 0, tool.uploads)
	}
}

func TestProgramHashDiffersUploads(t *testing.T) {
	tool := &fakeTool{images: singleImage(otherHash)}
	p, _ := testProcedure(Options{ExpectedHash: goodHash}, tool)

	outcome := p.Program(context.Background())
	assert.Equal(t, Outcome{Code: 0, Message: "Success", OK: true}, outcome)
	assert.Equal(t, 1, tool.lists)
	assert.Equal(t, 1, tool.uploads)
	assert.Equal(t, 1, tool.resets)
}

func TestProgramHashCheckFailures(t *testing.T) {
	tests := []struct {
		name string
		tool *fakeTool
	}{
		{name: "tool error", tool: &fakeTool{listErr: errors.New("image list exited with status 1")}},
		{name: "no records", tool: &fakeTool{}},
		{name: "two records", tool: &fakeTool{images: append(singleImage(goodHash), singleImage(otherHash)...)}},
		{name: "malformed hash", tool: &fakeTool{images: singleImage("3a5f")}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p, _ := testProcedure(Options{ExpectedHash: goodHash}, test.tool)
			outcome := p.Program(context.Background())
			assert.Equal(t, failure, outcome)
			assert.Equal(t, 0, test.tool.uploads)
			assert.Equal(t, 0, test.tool.resets)
		})
	}
}

func TestProgramUploadFailure(t *testing.T) {
	tool := &fakeTool{uploadErr: errors.New("image upload exited with status 1")}
	p, _ := testProcedure(Options{}, tool)

	outcome := p.Program(context.Background())
	assert.Equal(t, failure, outcome)
	assert.Equal(t, 0, tool.resets)
}

func TestProgramResetFailure(t *testing.T) {
	tool := &fakeTool{resetErr: errors.New("reset exited with status 1")}
	p, _ := testProcedure(Options{}, tool)

	outcome := p.Program(context.Background())
	assert.Equal(t, failure, outcome)
	assert.Equal(t, 1, tool.uploads)
}

func TestProgramDeviceAbsent(t *testing.T) {
	tool := &fakeTool{}
	p, out := testProcedure(Options{}, tool)
	p.find = func(uint16, uint16, string) (string, bool) { return "", false }

	outcome := p.Program(context.Background())
	assert.Equal(t, failure, outcome)
	assert.Equal(t, 0, tool.uploads)
	assert.Contains(t, out.String(), "Unable to find selected board.")
}

func TestProgramNeverReenumerates(t *testing.T) {
	tool := &fakeTool{}
	p, out := testProcedure(Options{}, tool)

	calls := 0
	p.find = func(vid, pid uint16, name string) (string, bool) {
		calls++
		// present at discovery, gone forever after the reset
		return "/dev/ttyACM0", calls == 1
	}

	outcome := p.Program(context.Background())
	assert.Equal(t, failure, outcome)
	assert.Equal(t, 0, tool.uploads)
	assert.Equal(t, 0, tool.resets)
	assert.Contains(t, out.String(), "after reboot")

	// the 15s window at 0.25s per poll
	assert.Equal(t, 1+60, calls)
}

func TestProgramProgressForwarded(t *testing.T) {
	var percents []float64
	tool := &fakeTool{}
	p, _ := testProcedure(Options{}, tool)
	p.opts.Progress = func(percent float64, label, suffix string) {
		percents = append(percents, percent)
		assert.Equal(t, "Program upload:", label)
		assert.True(t, strings.HasPrefix(suffix, "Complete "))
	}

	outcome := p.Program(context.Background())
	require.True(t, outcome.OK)
	assert.Equal(t, []float64{50, 100}, percents)
}

func TestProgramReenumeratedPortIsUsed(t *testing.T) {
	tool := &fakeTool{}
	var toolPort string
	p, _ := testProcedure(Options{}, tool)

	calls := 0
	p.find = func(vid, pid uint16, name string) (string, bool) {
		calls++
		if calls == 1 {
			return "/dev/ttyACM0", true
		}
		return "/dev/ttyACM1", true
	}
	p.tool = func(port string) Tool {
		toolPort = port
		return tool
	}

	outcome := p.Program(context.Background())
	require.True(t, outcome.OK)
	assert.Equal(t, "/dev/ttyACM1", toolPort)
}
