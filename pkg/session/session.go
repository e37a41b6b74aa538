// Package session holds the state of one interactive session: variable
// bindings and an undo/redo history of the tables each statement produced.
//
// History is an append-only log with a cursor. Undo and redo move the
// cursor; a new entry pushed while the cursor is below the top discards
// everything above it. Tables are immutable, so entries share them freely.
package session

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/system0x7/dt/pkg/schema"
	"github.com/system0x7/dt/pkg/table"
)

// Current is the variable name that always refers to the current table.
const Current = "_"

// DefaultHistoryLimit bounds the undo history when no limit is given.
const DefaultHistoryLimit = 10

// Error definitions
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Entry is one statement's result in the history.
type Entry struct {
	Command string
	Var     string // bound variable, empty for a bare pipeline
	Table   *table.Table
}

// VarInfo describes a bound variable.
type VarInfo struct {
	Name   string
	Schema schema.Schema
	Rows   int
}

// Option configures a Session.
type Option func(*Session)

// WithHistoryLimit bounds the number of history entries. Values below one
// are ignored.
func WithHistoryLimit(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// Session is not safe for concurrent use.
type Session struct {
	vars    map[string]*table.Table
	history []Entry
	cursor  int // entries [0, cursor) are applied
	limit   int
	logger  *slog.Logger
}

// New creates an empty session.
func New(opts ...Option) *Session {
	s := &Session{
		vars:   make(map[string]*table.Table),
		limit:  DefaultHistoryLimit,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assign binds name to t and records the statement in the history.
func (s *Session) Assign(name, command string, t *table.Table) {
	s.vars[name] = t
	s.push(Entry{Command: command, Var: name, Table: t})
}

// Bind sets a variable without touching the history. Used for tables
// provided before the session starts.
func (s *Session) Bind(name string, t *table.Table) {
	s.vars[name] = t
}

// Record makes t the current table without binding it to a name.
func (s *Session) Record(command string, t *table.Table) {
	s.push(Entry{Command: command, Table: t})
}

func (s *Session) push(e Entry) {
	if dropped := len(s.history) - s.cursor; dropped > 0 {
		s.logger.Debug("discarding redo history", "entries", dropped)
		s.history = s.history[:s.cursor]
	}
	s.history = append(s.history, e)
	if over := len(s.history) - s.limit; over > 0 {
		s.history = append([]Entry(nil), s.history[over:]...)
	}
	s.cursor = len(s.history)
}

// Undo steps back up to n entries. It returns how many it moved, with
// ErrNothingToUndo when that is zero.
func (s *Session) Undo(n int) (int, error) {
	moved := min(max(n, 0), s.cursor)
	s.cursor -= moved
	if moved == 0 {
		return 0, ErrNothingToUndo
	}
	return moved, nil
}

// Redo steps forward up to n entries. It returns how many it moved, with
// ErrNothingToRedo when that is zero.
func (s *Session) Redo(n int) (int, error) {
	moved := min(max(n, 0), len(s.history)-s.cursor)
	s.cursor += moved
	if moved == 0 {
		return 0, ErrNothingToRedo
	}
	return moved, nil
}

// Clear drops every variable and the whole history.
func (s *Session) Clear() {
	s.vars = make(map[string]*table.Table)
	s.history = nil
	s.cursor = 0
}

// Current returns the table at the history cursor, or nil when there is
// none.
func (s *Session) Current() *table.Table {
	if s.cursor == 0 {
		return nil
	}
	return s.history[s.cursor-1].Table
}

// Table implements the executor's table lookup. "_" is the current table.
func (s *Session) Table(name string) (*table.Table, bool) {
	if name == Current {
		t := s.Current()
		return t, t != nil
	}
	t, ok := s.vars[name]
	return t, ok
}

// Schema implements the resolver's catalog.
func (s *Session) Schema(name string) (schema.Schema, bool) {
	t, ok := s.Table(name)
	if !ok {
		return schema.Schema{}, false
	}
	return t.Schema(), true
}

// Vars lists the bound variables by name.
func (s *Session) Vars() []VarInfo {
	out := make([]VarInfo, 0, len(s.vars))
	for name, t := range s.vars {
		out = append(out, VarInfo{Name: name, Schema: t.Schema(), Rows: t.NRows()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// History returns every entry, oldest first, and the cursor: entries
// before it are applied, the rest can be redone.
func (s *Session) History() ([]Entry, int) {
	return append([]Entry(nil), s.history...), s.cursor
}
