package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/system0x7/dt/pkg/plan"
	"github.com/system0x7/dt/pkg/schema"
	"github.com/system0x7/dt/pkg/table"
)

// readJSON loads either an array of objects or one object per line.
// Columns appear in the order their keys are first seen.
func readJSON(data []byte) (*table.Table, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyFile
	}

	var rows []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		for {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err == io.EOF {
				break
			} else if err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidJSON, len(rows)+1, err)
			}
			rows = append(rows, raw)
		}
	}

	var names []string
	index := make(map[string]int)
	records := make([]map[string]any, len(rows))
	for i, raw := range rows {
		keys, err := objectKeys(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrInvalidJSON, i+1, err)
		}
		for _, k := range keys {
			if _, ok := index[k]; !ok {
				index[k] = len(names)
				names = append(names, k)
			}
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&records[i]); err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrInvalidJSON, i+1, err)
		}
	}

	cols := make([]schema.Column, len(names))
	columns := make([][]any, len(names))
	for c, name := range names {
		vals := make([]any, len(records))
		for r, rec := range records {
			v, err := jsonValue(rec[name])
			if err != nil {
				return nil, fmt.Errorf("%w: record %d: %w", ErrInvalidJSON, r+1, err)
			}
			vals[r] = v
		}
		cols[c] = schema.Column{Name: name, Type: table.InferType(vals)}
		columns[c] = vals
	}
	sch, err := schema.New(cols...)
	if err != nil {
		return nil, err
	}
	return table.New(sch, columns)
}

// objectKeys lists the top-level keys of a JSON object in source order.
func objectKeys(raw []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok != json.Delim('{') {
		return nil, errors.New("expected an object")
	}

	var keys []string
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if tok == json.Delim('}') {
			return keys, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		keys = append(keys, key)
		if err := skipValue(dec); err != nil {
			return nil, err
		}
	}
}

func skipValue(dec *json.Decoder) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
		if depth == 0 {
			return nil
		}
	}
}

// jsonValue maps a decoded value to a cell. Nested values are kept as
// their JSON text.
func jsonValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool:
		return x, nil
	case json.Number:
		if i, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// writeJSON writes t as an array of objects, or one object per line when
// lines is set. Keys keep the column order.
func writeJSON(w io.Writer, t *table.Table, lines bool) error {
	keys := make([][]byte, t.NCols())
	for i, name := range t.Schema().Names() {
		k, err := json.Marshal(name)
		if err != nil {
			return err
		}
		keys[i] = k
	}

	var buf bytes.Buffer
	if !lines {
		buf.WriteString("[")
	}
	for r, row := range t.Rows() {
		if !lines {
			if r > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString("\n  ")
		}
		buf.WriteByte('{')
		for c, v := range row {
			if c > 0 {
				buf.WriteByte(',')
			}
			buf.Write(keys[c])
			buf.WriteByte(':')
			if err := encodeCell(&buf, v); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		if lines {
			buf.WriteByte('\n')
		}
	}
	if !lines {
		buf.WriteString("\n]\n")
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

func encodeCell(buf *bytes.Buffer, v any) error {
	if f, ok := v.(float64); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			buf.WriteString("null")
			return nil
		}
		buf.WriteString(plan.FormatFloat(f))
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
