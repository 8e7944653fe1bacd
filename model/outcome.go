package model

import (
	"errors"
	"fmt"
)

// Exit codes used by the process surface. 124 follows the coreutils timeout
// convention.
const (
	ExitSuccess        = 0
	ExitAlreadyRunning = 1
	ExitInvalidArgs    = 1
	ExitTimeout        = 124
	ExitFailure        = 2
)

// RunOutcome classifies how a run terminated.
type RunOutcome struct {
	Code int
	Err  error
}

func Success() RunOutcome { return RunOutcome{Code: ExitSuccess} }

func TimedOut(err error) RunOutcome { return RunOutcome{Code: ExitTimeout, Err: err} }

// Failed classifies a run error. Errors carrying their own exit code via
// ExitCoder propagate it; anything else maps to ExitFailure.
func Failed(err error) RunOutcome {
	code := ExitFailure
	var ec ExitCoder
	if errors.As(err, &ec) {
		code = ec.ExitCode()
	}
	return RunOutcome{Code: code, Err: err}
}

func (o RunOutcome) IsSuccess() bool { return o.Code == ExitSuccess }
func (o RunOutcome) IsTimeout() bool { return o.Code == ExitTimeout }

func (o RunOutcome) String() string {
	switch {
	case o.IsSuccess():
		return "success"
	case o.IsTimeout():
		return "timed out"
	default:
		return fmt.Sprintf("failed with exit code %d", o.Code)
	}
}

// ExitCoder lets an error dictate the process exit code it should map to.
type ExitCoder interface {
	error
	ExitCode() int
}
