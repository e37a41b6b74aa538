package repl

import (
	"errors"

	"github.com/system0x7/dt/pkg/dsl"
	"github.com/system0x7/dt/pkg/resolve"
)

// Friendly renders err for display, adding a hint on what to try next.
func Friendly(err error) string {
	var lexErr *dsl.LexError
	var parseErr *dsl.ParseError
	switch {
	case errors.As(err, &lexErr), errors.As(err, &parseErr):
		return "Syntax error: " + err.Error() + "\nSee examples with .help"
	case errors.Is(err, resolve.ErrUnknownColumn):
		return err.Error() + "\nUse .schema to see all columns."
	case errors.Is(err, resolve.ErrUnknownVariable):
		return err.Error() + "\nUse .vars to see all variables."
	}
	return err.Error()
}
