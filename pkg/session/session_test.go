package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/system0x7/dt/internal/testutil"
	"github.com/system0x7/dt/pkg/schema"
	"github.com/system0x7/dt/pkg/table"
)

func tbl(n int) *table.Table {
	vals := make([]any, n)
	for i := range vals {
		vals[i] = int64(i)
	}
	return table.MustNew(schema.MustNew(schema.Column{Name: "n", Type: schema.Integer}), [][]any{vals})
}

func TestSession_UndoRestoresPreviousAssignment(t *testing.T) {
	s := New(WithLogger(testutil.NewTestLogger(t)))
	first, second := tbl(1), tbl(2)
	s.Assign("a", "a = ...", first)
	s.Assign("b", "b = ...", second)
	assert.Same(t, second, s.Current())

	moved, err := s.Undo(1)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
	assert.Same(t, first, s.Current())

	// bindings are untouched
	got, ok := s.Table("b")
	require.True(t, ok)
	assert.Same(t, second, got)

	moved, err = s.Redo(5)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
	assert.Same(t, second, s.Current())
}

func TestSession_NewEntryDiscardsRedo(t *testing.T) {
	s := New()
	s.Assign("a", "a", tbl(1))
	s.Assign("b", "b", tbl(2))
	_, err := s.Undo(1)
	require.NoError(t, err)

	third := tbl(3)
	s.Assign("c", "c", third)
	_, err = s.Redo(1)
	assert.ErrorIs(t, err, ErrNothingToRedo)
	assert.Same(t, third, s.Current())

	entries, cursor := s.History()
	assert.Equal(t, 2, cursor)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Command)
	assert.Equal(t, "c", entries[1].Command)
}

func TestSession_UndoClamps(t *testing.T) {
	s := New()
	_, err := s.Undo(1)
	assert.ErrorIs(t, err, ErrNothingToUndo)

	s.Record("t | take(1)", tbl(1))
	s.Record("t | take(2)", tbl(2))
	moved, err := s.Undo(10)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)
	assert.Nil(t, s.Current())

	_, ok := s.Table(Current)
	assert.False(t, ok)
}

func TestSession_HistoryLimit(t *testing.T) {
	s := New(WithHistoryLimit(3))
	for i := 1; i <= 5; i++ {
		s.Record("cmd", tbl(i))
	}
	entries, cursor := s.History()
	assert.Len(t, entries, 3)
	assert.Equal(t, 3, cursor)
	assert.Equal(t, 3, entries[0].Table.NRows())

	moved, _ := s.Undo(10)
	assert.Equal(t, 3, moved)
}

func TestSession_Clear(t *testing.T) {
	s := New()
	s.Assign("a", "a", tbl(1))
	s.Clear()
	assert.Empty(t, s.Vars())
	assert.Nil(t, s.Current())
	_, err := s.Undo(1)
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestSession_CatalogAndVars(t *testing.T) {
	s := New()
	s.Bind("zeta", tbl(2))
	s.Assign("alpha", "alpha", tbl(1))

	sch, ok := s.Schema("alpha")
	require.True(t, ok)
	assert.Equal(t, []string{"n"}, sch.Names())

	_, ok = s.Schema("missing")
	assert.False(t, ok)

	sch, ok = s.Schema(Current)
	require.True(t, ok)
	assert.Equal(t, 1, sch.Len())

	vars := s.Vars()
	require.Len(t, vars, 2)
	assert.Equal(t, "alpha", vars[0].Name)
	assert.Equal(t, 1, vars[0].Rows)
	assert.Equal(t, "zeta", vars[1].Name)
	assert.Equal(t, 2, vars[1].Rows)

	// Bind does not create history
	entries, _ := s.History()
	assert.Len(t, entries, 1)
}
