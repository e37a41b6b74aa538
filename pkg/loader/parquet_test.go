package loader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/system0x7/dt/internal/testutil"
)

func TestReadParquet_FileNotFound(t *testing.T) {
	_, err := Read(context.Background(), "/nonexistent/file.parquet", ReadOptions{})
	assert.ErrorIs(t, err, ErrIO)
}

func TestReadParquet_InvalidFile(t *testing.T) {
	_, err := Read(context.Background(), testutil.TempFile(t, "not a parquet file", ".parquet"), ReadOptions{})
	assert.Error(t, err)
}

func TestWriteParquet_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.parquet")
	src := testutil.MakeSalesTable()
	require.NoError(t, Write(context.Background(), path, src, WriteOptions{Compression: "gzip"}))

	back, err := Read(context.Background(), path, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, src.NRows(), back.NRows())
	assert.Equal(t, src.NCols(), back.NCols())
}

func TestWriteParquet_UnknownCompression(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")
	err := Write(context.Background(), path, testutil.MakeSimpleTable(), WriteOptions{Compression: "brotli9"})
	assert.ErrorIs(t, err, ErrInvalidOption)
}
