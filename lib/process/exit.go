// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/requests/lib/version"
)

// Fatal writes "error: err" to stderr and exits with code 1. Use it in
// main() for errors from run() where the structured logger may not be
// initialized.
func Fatal(err error) {
	writeError(os.Stderr, err)
	os.Exit(1)
}

// PrintVersion writes the --version output of the named binary to
// stdout.
func PrintVersion(name string) {
	writeVersion(os.Stdout, name)
}

func writeError(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
}

func writeVersion(w io.Writer, name string) {
	fmt.Fprintf(w, "%s %s\n", name, version.Full())
}
