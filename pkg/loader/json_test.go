package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/system0x7/dt/internal/testutil"
	"github.com/system0x7/dt/pkg/schema"
	"github.com/system0x7/dt/pkg/table"
)

func TestReadJSON_Array(t *testing.T) {
	content := `[
  {"id": 1, "name": "alice", "score": 9.5, "ok": true},
  {"id": 2, "name": "bob", "score": 7, "ok": null}
]`
	tbl := read(t, testutil.TempFile(t, content, ".json"), ReadOptions{})
	assert.Equal(t, []string{"id", "name", "score", "ok"}, tbl.Schema().Names())
	assert.Equal(t, []schema.Type{schema.Integer, schema.String, schema.Float, schema.Boolean}, types(tbl))
	assert.Equal(t, [][]any{
		{int64(1), "alice", 9.5, true},
		{int64(2), "bob", 7.0, nil},
	}, tbl.Rows())
}

func TestReadJSON_Lines(t *testing.T) {
	content := "{\"b\": 1, \"a\": \"x\"}\n{\"a\": \"y\", \"c\": [1, 2]}\n"
	tbl := read(t, testutil.TempFile(t, content, ".jsonl"), ReadOptions{})
	assert.Equal(t, []string{"b", "a", "c"}, tbl.Schema().Names())
	assert.Equal(t, [][]any{
		{int64(1), "x", nil},
		{nil, "y", "[1,2]"},
	}, tbl.Rows())
}

func TestReadJSON_ObjectPerLineInJSONFile(t *testing.T) {
	tbl := read(t, testutil.TempFile(t, "{\"a\": 1}\n{\"a\": 2}\n", ".json"), ReadOptions{})
	assert.Equal(t, 2, tbl.NRows())
}

func TestReadJSON_MixedTypes(t *testing.T) {
	content := `[{"v": 1}, {"v": "two"}]`
	tbl := read(t, testutil.TempFile(t, content, ".json"), ReadOptions{})
	assert.Equal(t, []schema.Type{schema.String}, types(tbl))
	vals, _ := tbl.Values("v")
	assert.Equal(t, []any{"1", "two"}, vals)
}

func TestReadJSON_EmptyFile(t *testing.T) {
	_, err := Read(context.Background(), testutil.TempFile(t, "  \n", ".json"), ReadOptions{})
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestReadJSON_EmptyArray(t *testing.T) {
	tbl := read(t, testutil.TempFile(t, "[]", ".json"), ReadOptions{})
	assert.Equal(t, 0, tbl.NRows())
	assert.Equal(t, 0, tbl.NCols())
}

func TestReadJSON_Invalid(t *testing.T) {
	_, err := Read(context.Background(), testutil.TempFile(t, "{invalid json}", ".json"), ReadOptions{})
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = Read(context.Background(), testutil.TempFile(t, "[1, 2]", ".json"), ReadOptions{})
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestWriteJSON_RoundTrip(t *testing.T) {
	src := table.MustNew(schema.MustNew(
		schema.Column{Name: "z", Type: schema.Float},
		schema.Column{Name: "a", Type: schema.String},
		schema.Column{Name: "ok", Type: schema.Boolean},
	), [][]any{{2.0, nil}, {"x", "y"}, {true, false}})

	dir := t.TempDir()
	for _, name := range []string{"out.json", "out.jsonl"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Write(context.Background(), path, src, WriteOptions{}))
		back := read(t, path, ReadOptions{})
		assert.Equal(t, src.Schema().Names(), back.Schema().Names(), name)
		assert.Equal(t, src.Rows(), back.Rows(), name)
		assert.Equal(t, types(src), types(back), name)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, "{\"z\":2.0,\"a\":\"x\",\"ok\":true}\n{\"z\":null,\"a\":\"y\",\"ok\":false}\n", string(data))
}
