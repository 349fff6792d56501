package vault

import (
	"errors"
	"fmt"
)

// Format errors are always fatal to Open and name a specific reason;
// they are never collapsed into the generic decrypt error.
var (
	ErrBadMagic           = errors.New("vault: not a vault file (bad magic)")
	ErrTruncated          = errors.New("vault: file truncated")
	ErrUnsupportedVersion = errors.New("vault: unsupported format version")
	ErrEmptyPassword      = errors.New("vault: password must not be empty")
	ErrPayloadLength      = errors.New("vault: payload length mismatch")
)

// ValidationError names the rule a payload or mutation violated.
type ValidationError struct {
	Rule   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("vault: validation failed (%s): %s", e.Rule, e.Detail)
}

func violation(rule, format string, args ...any) error {
	return &ValidationError{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}
