package loader

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/exports"
	"github.com/rocketlaunchr/dataframe-go/imports"

	"github.com/system0x7/dt/pkg/schema"
	"github.com/system0x7/dt/pkg/sniff"
	"github.com/system0x7/dt/pkg/table"
)

// layout is the resolved read configuration for delimited text.
type layout struct {
	delimiter rune
	header    bool
	trim      bool
	skip      int
}

func resolveLayout(path, format string, data []byte, opts ReadOptions) (layout, error) {
	l := layout{header: true}
	if opts.SkipRows != nil {
		if *opts.SkipRows < 0 {
			return l, fmt.Errorf("%w: skip_rows must not be negative", ErrInvalidOption)
		}
		l.skip = *opts.SkipRows
	}

	if opts.Delimiter == "" || opts.Header == nil || opts.TrimWhitespace == nil {
		ext := ""
		if format == CSV || format == TSV {
			ext = format
		}
		h, err := sniff.Sniff(skipLines(data, l.skip), ext)
		switch {
		case err == nil:
			l.delimiter, l.header, l.trim = h.Delimiter, h.Header, h.TrimWhitespace
			opts.Logger.Debug("sniffed layout", "path", path, "delimiter", string(h.Delimiter),
				"header", h.Header, "trim_whitespace", h.TrimWhitespace)
		case errors.Is(err, sniff.ErrDelimiterUndetected) && opts.Delimiter != "":
		case errors.Is(err, sniff.ErrDelimiterUndetected):
			return l, fmt.Errorf("%w in '%s'; specify it explicitly, for example read('%s', delimiter=',')",
				err, path, path)
		default:
			return l, err
		}
	}

	if opts.Delimiter != "" {
		if utf8.RuneCountInString(opts.Delimiter) != 1 {
			return l, fmt.Errorf("%w: delimiter must be a single character, got %q", ErrInvalidOption, opts.Delimiter)
		}
		l.delimiter, _ = utf8.DecodeRuneInString(opts.Delimiter)
	}
	if opts.Header != nil {
		l.header = *opts.Header
	}
	if opts.TrimWhitespace != nil {
		l.trim = *opts.TrimWhitespace
	}
	return l, nil
}

func skipLines(data []byte, n int) []byte {
	for ; n > 0 && len(data) > 0; n-- {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return nil
		}
		data = data[i+1:]
	}
	return data
}

func readDelimited(ctx context.Context, path, format string, data []byte, opts ReadOptions) (*table.Table, error) {
	l, err := resolveLayout(path, format, data, opts)
	if err != nil {
		return nil, err
	}

	body := string(skipLines(data, l.skip))
	if l.trim {
		lines := strings.Split(body, "\n")
		for i, line := range lines {
			lines[i] = sniff.Collapse(line)
		}
		body = strings.Join(lines, "\n")
	}
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyFile
	}

	first, err := firstRecord(body, l.delimiter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if l.header {
		if _, err := schema.New(stringColumns(first)...); err != nil {
			return nil, fmt.Errorf("'%s': %w", path, err)
		}
	} else {
		names := make([]string, len(first))
		for i := range names {
			names[i] = "column_" + strconv.Itoa(i+1)
		}
		body = string(encodeRecord(names, l.delimiter)) + body
	}

	empty := ""
	df, err := imports.LoadFromCSV(ctx, strings.NewReader(body), imports.CSVLoadOptions{
		Comma:    l.delimiter,
		NilValue: &empty,
	})
	if err != nil {
		if errors.Is(err, csv.ErrFieldCount) {
			return nil, fmt.Errorf("%w in '%s'\ndetected %s\ntry read('%s', delimiter=' '), read('%s', trim_whitespace=true) or read('%s', skip_rows=N)",
				ErrFieldCount, path, (sniff.Hints{Delimiter: l.delimiter, Header: l.header, TrimWhitespace: l.trim}).Params(),
				path, path, path)
		}
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if df == nil {
		return nil, ErrEmptyFile
	}
	return inferFrame(df)
}

func firstRecord(body string, delimiter rune) ([]string, error) {
	r := csv.NewReader(strings.NewReader(body))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	rec, err := r.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	return rec, err
}

func encodeRecord(fields []string, delimiter rune) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = delimiter
	_ = w.Write(fields)
	w.Flush()
	return buf.Bytes()
}

func stringColumns(names []string) []schema.Column {
	cols := make([]schema.Column, len(names))
	for i, n := range names {
		cols[i] = schema.Column{Name: n, Type: schema.String}
	}
	return cols
}

// inferFrame types each all-text column of df: Integer when every value
// parses as one, then Float, then Boolean, else String. A column with no
// values is Null.
func inferFrame(df *dataframe.DataFrame) (*table.Table, error) {
	cols := make([]schema.Column, len(df.Series))
	data := make([][]any, len(df.Series))
	for i, s := range df.Series {
		n := s.NRows()
		raw := make([]string, n)
		present := make([]bool, n)
		for r := 0; r < n; r++ {
			if v, ok := s.Value(r).(string); ok {
				raw[r], present[r] = v, true
			}
		}
		typ, vals := inferStrings(raw, present)
		cols[i] = schema.Column{Name: s.Name(), Type: typ}
		data[i] = vals
	}
	sch, err := schema.New(cols...)
	if err != nil {
		return nil, err
	}
	return table.New(sch, data)
}

func inferStrings(raw []string, present []bool) (schema.Type, []any) {
	vals := make([]any, len(raw))
	parse := func(fn func(string) (any, bool)) bool {
		for i, s := range raw {
			if !present[i] {
				continue
			}
			v, ok := fn(s)
			if !ok {
				return false
			}
			vals[i] = v
		}
		return true
	}

	seen := false
	for _, p := range present {
		seen = seen || p
	}
	switch {
	case !seen:
		return schema.Null, vals
	case parse(parseInt):
		return schema.Integer, vals
	case parse(parseFloat):
		return schema.Float, vals
	case parse(parseBool):
		return schema.Boolean, vals
	}
	for i, s := range raw {
		if present[i] {
			vals[i] = s
		} else {
			vals[i] = nil
		}
	}
	return schema.String, vals
}

func parseInt(s string) (any, bool) {
	i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return i, err == nil
}

func parseFloat(s string) (any, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

func parseBool(s string) (any, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return nil, false
}

func writeDelimited(ctx context.Context, w io.Writer, format string, t *table.Table, opts WriteOptions) error {
	delimiter := ','
	if format == TSV {
		delimiter = '\t'
	}
	if opts.Delimiter != "" {
		if utf8.RuneCountInString(opts.Delimiter) != 1 {
			return fmt.Errorf("%w: delimiter must be a single character, got %q", ErrInvalidOption, opts.Delimiter)
		}
		delimiter, _ = utf8.DecodeRuneInString(opts.Delimiter)
	}

	empty := ""
	var buf bytes.Buffer
	err := exports.ExportToCSV(ctx, &buf, t.Frame(), exports.CSVExportOptions{
		NullString: &empty,
		Separator:  delimiter,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	out := buf.Bytes()
	if opts.Header != nil && !*opts.Header {
		out = bytes.TrimPrefix(out, encodeRecord(t.Schema().Names(), delimiter))
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}
