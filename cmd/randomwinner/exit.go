package main

import (
	"context"
	stderrors "errors"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/random-winner-game/internal/cli"
	"github.com/R3E-Network/random-winner-game/internal/errors"
)

// Process exit statuses. Usage and unclassified failures exit 1.
const (
	exitOK       = 0
	exitFailure  = 1
	exitInput    = 2
	exitRejected = 3
	exitNetwork  = 4
	exitRemote   = 5
)

// reportedError marks a failure a command has already printed.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err: err}
}

// execute runs root and prints any failure the command did not already
// report, such as cobra's flag and argument errors.
func execute(ctx context.Context, root *cobra.Command) int {
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var shown reportedError
	if !stderrors.As(err, &shown) {
		cli.NewPrinter(root.ErrOrStderr()).Error("%v", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	switch errors.CodeOf(err) {
	case errors.CodeInvalidInput, errors.CodeInvalidConfig:
		return exitInput
	case errors.CodeUserRejected:
		return exitRejected
	case errors.CodeNetworkMismatch:
		return exitNetwork
	case errors.CodeContractCallFailed, errors.CodeIndexerFetchFailed:
		return exitRemote
	default:
		return exitFailure
	}
}
