// Package loader reads and writes tables as CSV, TSV, other delimited
// text, JSON, JSON Lines and Parquet.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/system0x7/dt/pkg/sniff"
	"github.com/system0x7/dt/pkg/table"
)

// Error definitions
var (
	ErrIO                = errors.New("i/o error")
	ErrEmptyFile         = sniff.ErrEmptyFile
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrFieldCount        = errors.New("rows have different numbers of fields")
	ErrInvalidJSON       = errors.New("invalid JSON")
	ErrInvalidOption     = errors.New("invalid option")
)

// Formats
const (
	CSV     = "csv"
	TSV     = "tsv"
	Text    = "text"
	JSON    = "json"
	JSONL   = "jsonl"
	Parquet = "parquet"
)

// ReadOptions overrides what would otherwise be detected. Nil and empty
// fields are detected from the file.
type ReadOptions struct {
	Format         string
	Delimiter      string
	Header         *bool
	SkipRows       *int
	TrimWhitespace *bool
	Logger         *slog.Logger
}

// WriteOptions controls how a table is written.
type WriteOptions struct {
	Format      string
	Delimiter   string
	Header      *bool
	Compression string
	Logger      *slog.Logger
}

// FormatOf returns the format for path: explicit when given, otherwise
// chosen by extension. Unknown extensions are delimited text.
func FormatOf(path, explicit string) (string, error) {
	if explicit != "" {
		switch f := strings.ToLower(explicit); f {
		case CSV, TSV, Text, JSON, JSONL, Parquet:
			return f, nil
		case "ndjson":
			return JSONL, nil
		case "txt":
			return Text, nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, explicit)
	}
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "csv":
		return CSV, nil
	case "tsv":
		return TSV, nil
	case "json":
		return JSON, nil
	case "jsonl", "ndjson":
		return JSONL, nil
	case "parquet", "pq":
		return Parquet, nil
	}
	return Text, nil
}

// Read loads the file at path.
func Read(ctx context.Context, path string, opts ReadOptions) (*table.Table, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	format, err := FormatOf(path, opts.Format)
	if err != nil {
		return nil, err
	}

	if format == Parquet {
		return readParquet(ctx, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	switch format {
	case JSON, JSONL:
		return readJSON(data)
	}
	return readDelimited(ctx, path, format, data, opts)
}

// Write saves t to path, replacing any existing file.
func Write(ctx context.Context, path string, t *table.Table, opts WriteOptions) error {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	format, err := FormatOf(path, opts.Format)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer f.Close()

	switch format {
	case Parquet:
		err = writeParquet(ctx, f, t, opts.Compression)
	case JSON:
		err = writeJSON(f, t, false)
	case JSONL:
		err = writeJSON(f, t, true)
	default:
		err = writeDelimited(ctx, f, format, t, opts)
	}
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	opts.Logger.Debug("wrote table", "path", path, "format", format, "rows", t.NRows(), "cols", t.NCols())
	return nil
}
