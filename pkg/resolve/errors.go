package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/system0x7/dt/pkg/schema"
)

// Resolution errors. All of them are raised before any row is touched.
var (
	ErrUnknownColumn          = errors.New("unknown column")
	ErrColumnIndexOutOfBounds = errors.New("column index out of bounds")
	ErrRenameCountMismatch    = errors.New("rename count mismatch")
	ErrUnknownVariable        = errors.New("unknown variable")
	ErrTypeMismatch           = errors.New("type mismatch")
	ErrDuplicateColumn        = schema.ErrDuplicateColumn
	ErrInvalidOperation       = errors.New("invalid operation")
	ErrRegex                  = errors.New("invalid regex")
)

// StageError labels a resolution failure with the operation it happened in.
type StageError struct {
	Stage string
	Index int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func unknownColumn(name string, s schema.Schema) error {
	if s.Len() == 0 {
		return fmt.Errorf("%w '%s'", ErrUnknownColumn, name)
	}
	return fmt.Errorf("%w '%s'; available columns: %s", ErrUnknownColumn, name, strings.Join(s.Names(), ", "))
}

func outOfBounds(n int, s schema.Schema) error {
	return fmt.Errorf("%w: $%d but the table has %d column(s)", ErrColumnIndexOutOfBounds, n, s.Len())
}

func typeMismatch(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTypeMismatch, fmt.Sprintf(format, args...))
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, fmt.Sprintf(format, args...))
}
