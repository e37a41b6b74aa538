// Package testutil provides testing utilities for dt tests.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/system0x7/dt/pkg/schema"
	"github.com/system0x7/dt/pkg/table"
)

// TempCSV creates a temporary CSV file and returns its path.
// The file is automatically cleaned up when the test finishes.
func TempCSV(t *testing.T, content string) string {
	t.Helper()
	return TempFile(t, content, ".csv")
}

// TempFile creates a temporary file with the given content and extension.
func TempFile(t *testing.T, content, ext string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+ext)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// SalesCSV returns standard test CSV content for sales data.
func SalesCSV() string {
	return `price,quantity,category
10.5,5,A
20.0,15,B
5.0,3,A
30.0,20,C
15.0,8,B`
}

// SimpleCSV returns minimal test CSV content.
func SimpleCSV() string {
	return `a,b
1,2
3,4
5,6`
}

// MakeSalesTable creates the table SalesCSV describes.
func MakeSalesTable() *table.Table {
	return table.MustNew(schema.MustNew(
		schema.Column{Name: "price", Type: schema.Float},
		schema.Column{Name: "quantity", Type: schema.Integer},
		schema.Column{Name: "category", Type: schema.String},
	), [][]any{
		{10.5, 20.0, 5.0, 30.0, 15.0},
		{int64(5), int64(15), int64(3), int64(20), int64(8)},
		{"A", "B", "A", "C", "B"},
	})
}

// MakeSimpleTable creates a minimal table with two Integer columns.
func MakeSimpleTable() *table.Table {
	return table.MustNew(schema.MustNew(
		schema.Column{Name: "a", Type: schema.Integer},
		schema.Column{Name: "b", Type: schema.Integer},
	), [][]any{
		{int64(1), int64(3), int64(5)},
		{int64(2), int64(4), int64(6)},
	})
}

// NewTestLogger returns a logger that writes through t.Log at debug level.
func NewTestLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
