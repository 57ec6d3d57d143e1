// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"
)

// ExitError carries an exit code from run() to main() without printing
// anything. Binaries that relay a remote command's status return it so
// the local process exits with the same code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Fatal writes "error: err" to stderr and exits 1. An *ExitError exits
// silently with its own code instead.
func Fatal(err error) {
	var exitError *ExitError
	if errors.As(err, &exitError) {
		os.Exit(exitError.Code)
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
