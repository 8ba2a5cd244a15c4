package errors

import (
	stderrors "errors"
	"fmt"
)

// ExitCodeError reports that an external tool finished with a non-zero exit
// status. The CLI exits with Code unchanged.
type ExitCodeError struct {
	Tool string
	Code int
}

// NewExitCodeError returns an ExitCodeError for tool.
func NewExitCodeError(tool string, code int) *ExitCodeError {
	return &ExitCodeError{Tool: tool, Code: code}
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Tool, e.Code)
}

// AsExitCode finds the first ExitCodeError in the chain.
func AsExitCode(err error) (*ExitCodeError, bool) {
	var exitErr *ExitCodeError
	if stderrors.As(err, &exitErr) {
		return exitErr, true
	}
	return nil, false
}
