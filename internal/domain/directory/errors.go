package directory

import (
	"errors"
	"fmt"
)

var (
	ErrUsernameRequired   = errors.New("username is required")
	ErrInvalidRole        = errors.New("role must be admin or user")
	ErrUserNotFound       = errors.New("user not found")
	ErrNameRequired       = errors.New("name cannot be empty")
	ErrInvalidField       = errors.New("field must be department or givenBy")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// PartialRenameError reports a persisted rename that stopped part way. Rows
// were written to the sheet before Err.
type PartialRenameError struct {
	Rows []int
	Err  error
}

func (e *PartialRenameError) Error() string {
	return fmt.Sprintf("rename stopped after writing rows %v: %v", e.Rows, e.Err)
}

func (e *PartialRenameError) Unwrap() error {
	return e.Err
}
