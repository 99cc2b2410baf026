// Copyright (C) 2025 OwnTech Foundation. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"os"

	"github.com/owntech-foundation/mcuflash/cmd/mcuflash/commands"
)

var version = "v0.5.0"
var buildDate = "unknown"

func main() {
	info := commands.Info{
		Version: version,
		Date:    buildDate,
	}
	cmd := commands.McuflashCmd(info)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
