// Copyright (C) 2025 OwnTech Foundation. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package mcumgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const imageListOutput = `Images:
 image=0 slot=0
    version: 1.2.0
    bootable: true
    flags: active confirmed
    hash: 3a5f0c2be02a58e9a71af80370c40c3e6b94b94ad0ef64ee2d49e9e1a5c539da
Split status: N/A (0)
`

func Test_imagePattern(t *testing.T) {
	matches := imagePattern.FindAllStringSubmatch(imageListOutput, -1)
	require.Len(t, matches, 1)

	img := imageFromMatch(matches[0])
	assert.Equal(t, 0, img.Index)
	assert.Equal(t, 0, img.Slot)
	assert.Equal(t, "1.2.0", img.Version)
	require.NotNil(t, img.SemVer)
	assert.Equal(t, int64(1), img.SemVer.Major)
	assert.Equal(t, int64(2), img.SemVer.Minor)
	assert.True(t, img.Bootable)
	assert.Equal(t, "active confirmed", img.Flags)
	assert.Equal(t, "3a5f0c2be02a58e9a71af80370c40c3e6b94b94ad0ef64ee2d49e9e1a5c539da", img.Hash)
}

func Test_imagePattern_deviatingOutput(t *testing.T) {
	outputs := []string{
		"",
		"Error: NMP timeout\n",
		"Images:\n image=0 slot=0\n    version: 1.2.0\n",
		// truncated hash
		"Images:\n image=0 slot=0\n    version: 1.2.0\n    bootable: true\n    flags: \n    hash: 3a5f\n",
	}
	for _, output := range outputs {
		assert.Empty(t, imagePattern.FindAllStringSubmatch(output, -1))
	}
}

func Test_progressPattern(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		percent float64
		rate    string
	}{
		{
			name:    "with bar and rate",
			line:    " 54.25 KiB / 119.77 KiB [========>----------]  45.30% 10.16 KiB/s",
			percent: 45.30,
			rate:    "10.16 KiB/s",
		},
		{
			name:    "without rate",
			line:    " 0 B / 119.77 KiB [-------------------]   0.00%",
			percent: 0,
			rate:    "0 B/s",
		},
		{
			name:    "complete",
			line:    " 119.77 KiB / 119.77 KiB [==================] 100.00% 11.41 KiB/s",
			percent: 100,
			rate:    "11.41 KiB/s",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			matches := progressPattern.FindAllStringSubmatch(test.line, -1)
			require.Len(t, matches, 1)
			sample := progressFromMatch(matches[0])
			assert.InDelta(t, test.percent, sample.Percent, 0.001)
			assert.Equal(t, test.rate, sample.Rate)
		})
	}
}

func Test_progressPattern_bytes(t *testing.T) {
	matches := progressPattern.FindAllStringSubmatch(
		" 2 KiB / 4 KiB [====>----]  50.00% 1.00 KiB/s", -1)
	require.Len(t, matches, 1)
	sample := progressFromMatch(matches[0])
	assert.Equal(t, float64(2048), sample.Transferred)
	assert.Equal(t, float64(4096), sample.Total)
}

func Test_progressMonotonic(t *testing.T) {
	lines := []string{
		" 10.00 KiB / 100.00 KiB [=>-------]  10.00% 5.00 KiB/s",
		" 25.00 KiB / 100.00 KiB [==>------]  25.00% 5.10 KiB/s",
		" 25.00 KiB / 100.00 KiB [==>------]  25.00% 4.80 KiB/s",
		" 60.00 KiB / 100.00 KiB [=====>---]  60.00% 5.30 KiB/s",
		" 100.00 KiB / 100.00 KiB [========] 100.00% 5.20 KiB/s",
	}

	last := -1.0
	for _, line := range lines {
		matches := progressPattern.FindAllStringSubmatch(line, -1)
		require.Len(t, matches, 1)
		sample := progressFromMatch(matches[0])
		assert.GreaterOrEqual(t, sample.Percent, last)
		last = sample.Percent
	}
}

func Test_clientArgs(t *testing.T) {
	c := NewClient("/opt/mcumgr", "/dev/ttyACM0")
	assert.Equal(t, []string{
		"--conntype=serial",
		"--connstring=dev=/dev/ttyACM0,baud=115200,mtu=128",
		"image", "list",
	}, c.args("image", "list"))
}
