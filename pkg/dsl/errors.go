package dsl

import "fmt"

// LexError reports malformed source text at a byte offset.
type LexError struct {
	Pos    int
	Line   int
	Col    int
	Reason string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("line %d, col %d: %s", e.Line, e.Col, e.Reason)
}

// ParseError reports a token the grammar did not allow. Expected and Found are
// set when the failure is a simple mismatch; Msg carries the full message.
type ParseError struct {
	Pos      int
	Line     int
	Col      int
	Expected string
	Found    string
	Msg      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, col %d: %s", e.Line, e.Col, e.Msg)
}
