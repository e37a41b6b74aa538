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

func read(t *testing.T, path string, opts ReadOptions) *table.Table {
	t.Helper()
	opts.Logger = testutil.NewTestLogger(t)
	tbl, err := Read(context.Background(), path, opts)
	require.NoError(t, err)
	return tbl
}

func types(tbl *table.Table) []schema.Type {
	out := make([]schema.Type, tbl.NCols())
	for i := range out {
		out[i] = tbl.Schema().Column(i).Type
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func TestReadCSV_Basic(t *testing.T) {
	tbl := read(t, testutil.TempCSV(t, testutil.SalesCSV()), ReadOptions{})
	assert.Equal(t, 5, tbl.NRows())
	assert.Equal(t, []string{"price", "quantity", "category"}, tbl.Schema().Names())
	assert.Equal(t, []schema.Type{schema.Float, schema.Integer, schema.String}, types(tbl))
	assert.Equal(t, testutil.MakeSalesTable().Rows(), tbl.Rows())
}

func TestReadCSV_TypeDetection(t *testing.T) {
	content := "i,f,b,s,n\n1,1.5,true,x,\n-2,2,FALSE,3,\n,,,,\n"
	tbl := read(t, testutil.TempCSV(t, content), ReadOptions{})
	assert.Equal(t, []schema.Type{schema.Integer, schema.Float, schema.Boolean, schema.String, schema.Null}, types(tbl))
	assert.Equal(t, []any{int64(1), 1.5, true, "x", nil}, tbl.Rows()[0])
	assert.Equal(t, []any{nil, nil, nil, nil, nil}, tbl.Rows()[2])
}

func TestReadCSV_QuotedStrings(t *testing.T) {
	content := "name,note\n\"Smith, J\",\"said \"\"hi\"\"\"\n"
	tbl := read(t, testutil.TempCSV(t, content), ReadOptions{})
	assert.Equal(t, []any{"Smith, J", `said "hi"`}, tbl.Rows()[0])
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	tbl := read(t, testutil.TempCSV(t, "a,b\n"), ReadOptions{})
	assert.Equal(t, 0, tbl.NRows())
	assert.Equal(t, []string{"a", "b"}, tbl.Schema().Names())
}

func TestReadCSV_EmptyFile(t *testing.T) {
	_, err := Read(context.Background(), testutil.TempCSV(t, ""), ReadOptions{})
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestReadCSV_FileNotFound(t *testing.T) {
	_, err := Read(context.Background(), "/nonexistent/file.csv", ReadOptions{})
	assert.ErrorIs(t, err, ErrIO)
}

func TestReadCSV_DuplicateHeader(t *testing.T) {
	_, err := Read(context.Background(), testutil.TempCSV(t, "a,a\n1,2\n"), ReadOptions{})
	assert.ErrorIs(t, err, schema.ErrDuplicateColumn)
}

func TestReadCSV_FieldCount(t *testing.T) {
	_, err := Read(context.Background(), testutil.TempCSV(t, "a,b\n1,2\n3,4,5\n"), ReadOptions{})
	require.ErrorIs(t, err, ErrFieldCount)
	assert.Contains(t, err.Error(), `delimiter=","`)
	assert.Contains(t, err.Error(), "skip_rows=N")
}

func TestReadCSV_NoHeader(t *testing.T) {
	tbl := read(t, testutil.TempCSV(t, "x,1\ny,2\n"), ReadOptions{Header: ptr(false)})
	assert.Equal(t, []string{"column_1", "column_2"}, tbl.Schema().Names())
	assert.Equal(t, 2, tbl.NRows())
}

func TestReadCSV_NumericFirstRowIsData(t *testing.T) {
	tbl := read(t, testutil.TempFile(t, "1,2\n3,4\n", ".txt"), ReadOptions{})
	assert.Equal(t, []string{"column_1", "column_2"}, tbl.Schema().Names())
	assert.Equal(t, 2, tbl.NRows())
}

func TestReadCSV_SkipRows(t *testing.T) {
	content := "# exported 2024\n# units: m\nid,len\n1,2.5\n"
	tbl := read(t, testutil.TempCSV(t, content), ReadOptions{SkipRows: ptr(2)})
	assert.Equal(t, []string{"id", "len"}, tbl.Schema().Names())
	assert.Equal(t, [][]any{{int64(1), 2.5}}, tbl.Rows())
}

func TestReadText_SniffsDelimiter(t *testing.T) {
	tbl := read(t, testutil.TempFile(t, "id|name\n1|ann\n2|bob\n", ".dat"), ReadOptions{})
	assert.Equal(t, []string{"id", "name"}, tbl.Schema().Names())
	assert.Equal(t, []any{int64(2), "bob"}, tbl.Rows()[1])
}

func TestReadText_TrimsAlignedColumns(t *testing.T) {
	content := "  id    value\n   1      10\n   2      20\n"
	tbl := read(t, testutil.TempFile(t, content, ".txt"), ReadOptions{})
	assert.Equal(t, []string{"id", "value"}, tbl.Schema().Names())
	assert.Equal(t, [][]any{{int64(1), int64(10)}, {int64(2), int64(20)}}, tbl.Rows())
}

func TestReadTSV(t *testing.T) {
	tbl := read(t, testutil.TempFile(t, "a\tb\nx y\t1\n", ".tsv"), ReadOptions{})
	assert.Equal(t, [][]any{{"x y", int64(1)}}, tbl.Rows())
}

func TestReadCSV_ExplicitDelimiter(t *testing.T) {
	tbl := read(t, testutil.TempCSV(t, "a;b\n1;2\n"), ReadOptions{Delimiter: ";"})
	assert.Equal(t, []string{"a", "b"}, tbl.Schema().Names())

	_, err := Read(context.Background(), testutil.TempCSV(t, "a;b\n"), ReadOptions{Delimiter: ";;"})
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	src := testutil.MakeSalesTable()
	require.NoError(t, Write(context.Background(), path, src, WriteOptions{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "price,quantity,category\n10.5,5,A\n20.0,15,B\n")

	back := read(t, path, ReadOptions{})
	assert.Equal(t, src.Rows(), back.Rows())
	assert.Equal(t, types(src), types(back))
}

func TestWriteCSV_NullsAndNoHeader(t *testing.T) {
	src := table.MustNew(schema.MustNew(
		schema.Column{Name: "a", Type: schema.Integer},
		schema.Column{Name: "ok", Type: schema.Boolean},
	), [][]any{{int64(1), nil}, {nil, true}})

	path := filepath.Join(t.TempDir(), "out.tsv")
	require.NoError(t, Write(context.Background(), path, src, WriteOptions{Header: ptr(false)}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\t\n\ttrue\n", string(data))
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path, explicit, want string
	}{
		{"a.csv", "", CSV},
		{"a.TSV", "", TSV},
		{"a.json", "", JSON},
		{"a.ndjson", "", JSONL},
		{"a.parquet", "", Parquet},
		{"a.log", "", Text},
		{"a", "", Text},
		{"a.txt", "csv", CSV},
	}
	for _, tt := range tests {
		got, err := FormatOf(tt.path, tt.explicit)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.path)
	}

	_, err := FormatOf("a.csv", "xml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
