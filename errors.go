package labimg

import (
	"context"

	. "github.com/warpfork/go-errcat"
)

/*
Category of error returned by labimg operations.

All errors returned by exported functions in this module are expected to
carry one of these categories (see `errcat.RequireErrorHasCategory`),
so the CLI can decide the exit code without string matching.
*/
type ErrorCategory string

const (
	// Any failure that aborts a build: download failure, a missing external
	// tool, a non-zero exit from an external command, a missing lab source
	// file, a corrupt base archive, or local I/O trouble.
	ErrBuild = ErrorCategory("labimg-build-failed")

	// Invalid invocation: bad flags, bad config file, unknown role.
	ErrUsage = ErrorCategory("labimg-usage")

	// The operator interrupted the process part-way through.
	ErrCancelled = ErrorCategory("labimg-cancelled")
)

// Process exit status for the CLI.
type ExitCode int

const (
	ExitSuccess     = ExitCode(0)
	ExitBuildFailed = ExitCode(1)
	ExitUsage       = ExitCode(2)
	ExitInterrupted = ExitCode(130)
)

// Map an error to the exit code the CLI should report.
func ExitCodeFor(err error) ExitCode {
	switch Category(err) {
	case nil:
		return ExitSuccess
	case ErrUsage:
		return ExitUsage
	case ErrCancelled:
		return ExitInterrupted
	default:
		return ExitBuildFailed
	}
}

/*
Return an ErrCancelled if the context is done, or nil.

Long loops (per archive entry, per walked file) call this between units of
work; there is no finer-grained cancellation.
*/
func CheckCancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return Errorf(ErrCancelled, "cancelled: %s", ctx.Err())
	}
	return nil
}
