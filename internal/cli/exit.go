package cli

import (
	"context"
	"errors"

	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
)

// Exit codes.
const (
	ExitOK                   = 0
	ExitInternal             = 1
	ExitInvalidInput         = 2
	ExitResolutionImpossible = 3
	ExitEnvironment          = 4
	ExitMetadataUnavailable  = 5
	ExitLock                 = 6
	ExitBuildBackend         = 7
	ExitInterrupted          = 130
)

var exitCodes = map[pkgerrors.Code]int{
	pkgerrors.ErrCodeParse:                 ExitInvalidInput,
	pkgerrors.ErrCodeInvalidInput:          ExitInvalidInput,
	pkgerrors.ErrCodeInvalidPackage:        ExitInvalidInput,
	pkgerrors.ErrCodeInvalidProject:        ExitInvalidInput,
	pkgerrors.ErrCodeInvalidConfig:         ExitInvalidInput,
	pkgerrors.ErrCodeResolutionImpossible:  ExitResolutionImpossible,
	pkgerrors.ErrCodeResolutionTooDeep:     ExitResolutionImpossible,
	pkgerrors.ErrCodeEnvironmentUnreadable: ExitEnvironment,
	pkgerrors.ErrCodeInstallFailed:         ExitEnvironment,
	pkgerrors.ErrCodeMetadataUnavailable:   ExitMetadataUnavailable,
	pkgerrors.ErrCodePackageNotFound:       ExitMetadataUnavailable,
	pkgerrors.ErrCodeNetwork:               ExitMetadataUnavailable,
	pkgerrors.ErrCodeCorruptLock:           ExitLock,
	pkgerrors.ErrCodeStaleLock:             ExitLock,
	pkgerrors.ErrCodeLockNotFound:          ExitLock,
	pkgerrors.ErrCodeBuildBackendFailure:   ExitBuildBackend,
}

// ExitCode maps err to the process exit code. The outermost coded error
// decides; cancellation always means 130.
//
//	0   success
//	1   internal error
//	2   invalid input, project or configuration
//	3   resolution impossible
//	4   environment unreadable or install failed
//	5   metadata unavailable
//	6   lock missing, stale or corrupt
//	7   build backend failure
//	130 interrupted
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	if code, ok := exitCodes[pkgerrors.GetCode(err)]; ok {
		return code
	}
	return ExitInternal
}
