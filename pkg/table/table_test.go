package table

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/system0x7/dt/pkg/schema"
)

func people() *Table {
	s := schema.MustNew(
		schema.Column{Name: "name", Type: schema.String},
		schema.Column{Name: "age", Type: schema.Integer},
		schema.Column{Name: "score", Type: schema.Float},
		schema.Column{Name: "active", Type: schema.Boolean},
	)
	return MustNew(s, [][]any{
		{"ann", "bob", "cy", "dee"},
		{int64(30), nil, int64(25), int64(30)},
		{1.5, 2.0, nil, 0.5},
		{true, false, nil, true},
	})
}

func TestNew_ShapeErrors(t *testing.T) {
	s := schema.MustNew(schema.Column{Name: "a", Type: schema.Integer}, schema.Column{Name: "b", Type: schema.Integer})

	_, err := New(s, [][]any{{int64(1)}})
	assert.ErrorIs(t, err, ErrShape)

	_, err = New(s, [][]any{{int64(1)}, {int64(1), int64(2)}})
	assert.ErrorIs(t, err, ErrShape)
}

func TestTable_Values(t *testing.T) {
	tbl := people()
	assert.Equal(t, 4, tbl.NRows())
	assert.Equal(t, 4, tbl.NCols())

	ages, err := tbl.Values("age")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(30), nil, int64(25), int64(30)}, ages)

	scores, err := tbl.Values("score")
	require.NoError(t, err)
	assert.Equal(t, []any{1.5, 2.0, nil, 0.5}, scores)

	assert.Equal(t, true, tbl.Value(0, 3))
	assert.Nil(t, tbl.Value(2, 3))

	_, err = tbl.Values("nope")
	assert.ErrorIs(t, err, ErrShape)
}

func TestTable_Coercion(t *testing.T) {
	s := schema.MustNew(
		schema.Column{Name: "f", Type: schema.Float},
		schema.Column{Name: "s", Type: schema.String},
	)
	tbl := MustNew(s, [][]any{{int64(2), "x"}, {3.0, int64(7)}})
	assert.Equal(t, []any{2.0, nil}, tbl.Column(0))
	assert.Equal(t, []any{"3.0", "7"}, tbl.Column(1))
}

func TestTable_Filter(t *testing.T) {
	tbl := people()
	out, err := tbl.Filter(context.Background(), func(row int) bool { return row%2 == 0 })
	require.NoError(t, err)

	assert.Equal(t, [][]any{
		{"ann", int64(30), 1.5, true},
		{"cy", int64(25), nil, nil},
	}, out.Rows())
	assert.True(t, out.Schema().Equal(tbl.Schema()))
	// the source is untouched
	assert.Equal(t, 4, tbl.NRows())
}

func TestTable_SortStableNullsFirst(t *testing.T) {
	tbl := people()

	out, err := tbl.Sort(context.Background(), []SortKey{{Column: "age"}})
	require.NoError(t, err)
	names, _ := out.Values("name")
	assert.Equal(t, []any{"bob", "cy", "ann", "dee"}, names)

	out, err = tbl.Sort(context.Background(), []SortKey{{Column: "age", Desc: true}})
	require.NoError(t, err)
	names, _ = out.Values("name")
	assert.Equal(t, []any{"ann", "dee", "cy", "bob"}, names)

	// the source keeps its order
	names, _ = tbl.Values("name")
	assert.Equal(t, []any{"ann", "bob", "cy", "dee"}, names)
}

func TestTable_SortBoolean(t *testing.T) {
	out, err := people().Sort(context.Background(), []SortKey{{Column: "active"}, {Column: "name", Desc: true}})
	require.NoError(t, err)
	names, _ := out.Values("name")
	assert.Equal(t, []any{"cy", "bob", "dee", "ann"}, names)
}

func TestTable_SliceClamps(t *testing.T) {
	tbl := people()
	assert.Equal(t, 2, tbl.Slice(1, 3).NRows())
	assert.Equal(t, 3, tbl.Slice(1, -1).NRows())
	assert.Equal(t, 4, tbl.Slice(0, 100).NRows())
	assert.Equal(t, 0, tbl.Slice(10, 20).NRows())
	assert.Equal(t, 4, tbl.Slice(10, 20).NCols())
}

func TestTable_Put(t *testing.T) {
	tbl := people()

	replaced, err := tbl.Put(schema.Column{Name: "age", Type: schema.String}, []any{"a", "b", "c", "d"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age", "score", "active"}, replaced.Schema().Names())
	c, _ := replaced.Schema().Lookup("age")
	assert.Equal(t, schema.String, c.Type)

	added, err := tbl.Put(schema.Column{Name: "n", Type: schema.Integer}, []any{int64(1), int64(2), int64(3), int64(4)})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age", "score", "active", "n"}, added.Schema().Names())

	_, err = tbl.Put(schema.Column{Name: "n", Type: schema.Integer}, []any{int64(1)})
	assert.ErrorIs(t, err, ErrShape)
}

func TestTable_SelectRenameDrop(t *testing.T) {
	tbl := people()

	sel, err := tbl.Select([]string{"score", "name"}, []string{"s", "name"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s", "name"}, sel.Schema().Names())
	assert.Equal(t, []any{1.5, "ann"}, sel.Rows()[0])

	ren, err := tbl.Rename([]string{"a", "b", "c", "d"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ren.Schema().Names())

	_, err = tbl.Rename([]string{"a", "a", "c", "d"})
	assert.ErrorIs(t, err, schema.ErrDuplicateColumn)

	dropped, err := tbl.Drop([]string{"age", "active"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "score"}, dropped.Schema().Names())
}

func TestTable_Take(t *testing.T) {
	out := people().Take([]int{3, 0, 0})
	names, _ := out.Values("name")
	assert.Equal(t, []any{"dee", "ann", "ann"}, names)
}

func TestInferType(t *testing.T) {
	tests := []struct {
		vals []any
		want schema.Type
	}{
		{[]any{nil, nil}, schema.Null},
		{[]any{int64(1), nil}, schema.Integer},
		{[]any{int64(1), 2.5}, schema.Float},
		{[]any{"a", nil}, schema.String},
		{[]any{true, false}, schema.Boolean},
		{[]any{"a", int64(1)}, schema.String},
		{[]any{true, int64(1)}, schema.String},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferType(tt.vals), "InferType(%v)", tt.vals)
	}
}

func TestLessAndEqual(t *testing.T) {
	assert.True(t, Less(nil, int64(1)))
	assert.False(t, Less(int64(1), nil))
	assert.True(t, Less(false, true))
	assert.True(t, Less(int64(1), 1.5))
	assert.True(t, Less("a", "b"))
	assert.True(t, Equal(int64(2), 2.0))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, "x"))
	assert.False(t, Equal("1", int64(1)))
}
