// Copyright (C) 2025 OwnTech Foundation. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package flash

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Touch opens the port at 1200 baud, drops the DTR line and closes the port
// again. Bootloader-capable boards take this as the signal to reboot into
// bootloader mode. I/O errors are reported on out and swallowed: the board is
// expected to disappear and reappear regardless, so the reset is attempted
// either way.
func Touch(out io.Writer, port string) {
	s, err := serial.Open(port, &serial.Mode{BaudRate: touchBaudRate})
	if err != nil {
		fmt.Fprintf(out, "touch %s: %v\n", port, err)
	} else {
		if err := s.SetDTR(false); err != nil {
			fmt.Fprintf(out, "touch %s: %v\n", port, err)
		}
		_ = s.Close()
	}

	// DO NOT REMOVE: SAM-BA based boards need this to finish their reset
	time.Sleep(touchSettle)
}
