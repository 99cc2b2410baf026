// Copyright (C) 2025 OwnTech Foundation. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package mcumgr

import (
	"regexp"
	"strconv"

	"code.cloudfoundry.org/bytefmt"
	"github.com/coreos/go-semver/semver"
)

// progressPattern matches the upload progress lines printed by the tool,
// e.g. " 54.25 KiB / 119.77 KiB [======>------] 45.30% 10.16 KiB/s".
// The bar and the rate are both optional.
var progressPattern = regexp.MustCompile(
	`(\d+\.?\d*) (\w+B|B) / (\d+\.?\d*) (\w+B|B) (?:\[.*?\]|).*?(\d+\.?\d*)%(?: (\d+\.?\d*) ((?:\w+B|B)/s)|)`)

// imagePattern matches the per-image block at the end of 'image list' output:
//
//	image=0 slot=0
//	    version: 1.0.0
//	    bootable: true
//	    flags: active confirmed
//	    hash: <64 hex chars>
var imagePattern = regexp.MustCompile(
	`\s*(image=(\d))\s(slot=(\d))\n\s*(version:\s(\d+\.\d+\.\d+))\n\s*(bootable:\s(.*))\n\s*(flags:\s(.*))\n\s*(hash:\s([0-9a-f]{64}))`)

// Progress is one parsed upload progress sample.
type Progress struct {
	Transferred float64 // bytes
	Total       float64 // bytes
	Percent     float64
	Rate        string // formatted, "0 B/s" when the line carries none
}

// Image is one record from the tool's 'image list' output.
type Image struct {
	Index    int             `yaml:"image" json:"image"`
	Slot     int             `yaml:"slot" json:"slot"`
	Version  string          `yaml:"version" json:"version"`
	SemVer   *semver.Version `yaml:"-" json:"-"`
	Bootable bool            `yaml:"bootable" json:"bootable"`
	Flags    string          `yaml:"flags" json:"flags"`
	Hash     string          `yaml:"hash" json:"hash"`
}

func progressFromMatch(m []string) Progress {
	sample := Progress{
		Transferred: sizeInBytes(m[1], m[2]),
		Total:       sizeInBytes(m[3], m[4]),
		Rate:        "0 B/s",
	}
	sample.Percent, _ = strconv.ParseFloat(m[5], 64)
	if m[6] != "" && m[7] != "" {
		sample.Rate = m[6] + " " + m[7]
	}
	return sample
}

// sizeInBytes converts a number and display unit ("54.25", "KiB") to bytes.
// A unit bytefmt does not know yields the raw number.
func sizeInBytes(number, unit string) float64 {
	if bytes, err := bytefmt.ToBytes(number + unit); err == nil {
		return float64(bytes)
	}
	value, _ := strconv.ParseFloat(number, 64)
	return value
}

func imageFromMatch(m []string) Image {
	img := Image{
		Version: m[6],
		Flags:   m[10],
		Hash:    m[12],
	}
	img.Index, _ = strconv.Atoi(m[2])
	img.Slot, _ = strconv.Atoi(m[4])
	img.Bootable, _ = strconv.ParseBool(m[8])
	img.SemVer, _ = semver.NewVersion(m[6])
	return img
}
