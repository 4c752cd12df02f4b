package utils

import (
	"fmt"

	errors "github.com/go-errors/errors"
)

// Well known error categories. Callers classify failures with
// errors.Is() against these so the orchestrator can decide which
// failures abort the pipeline and which are downgraded.
var (
	NetworkError      = errors.New("NetworkError")
	NotFoundError     = errors.New("NotFoundError")
	DownloadError     = errors.New("DownloadError")
	VerificationError = errors.New("VerificationError")
	IOError           = errors.New("IOError")
	ValidationError   = errors.New("ValidationError")
	PrivilegeError    = errors.New("PrivilegeError")
	NotSupportedError = errors.New("NotSupportedError")
)

// Wrap a sentinel error with more context. The result still matches
// the sentinel with errors.Is().
func Wrap(err error, message string) error {
	return fmt.Errorf("%w: %v", err, message)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
