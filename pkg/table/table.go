// Package table pairs a dataframe-go DataFrame with the schema describing
// it. The schema is authoritative: Boolean and Null columns are both stored
// as mixed series, so their type cannot be recovered from the frame alone.
//
// A Table is immutable once built. Every operation returns a new Table and
// leaves the receiver untouched, so session history can share tables freely.
package table

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/system0x7/dt/pkg/plan"
	"github.com/system0x7/dt/pkg/schema"
)

// ErrShape is returned when column data does not fit the schema.
var ErrShape = errors.New("table shape mismatch")

// Table is a schema plus columnar data.
type Table struct {
	frame  *dataframe.DataFrame
	schema schema.Schema
}

// New builds a table from one value slice per schema column. Values must be
// nil, int64, float64, string or bool; they are coerced to the column type.
func New(s schema.Schema, columns [][]any) (*Table, error) {
	if len(columns) != s.Len() {
		return nil, fmt.Errorf("%w: %d columns for a schema of %d", ErrShape, len(columns), s.Len())
	}
	series := make([]dataframe.Series, len(columns))
	for i, vals := range columns {
		if i > 0 && len(vals) != len(columns[0]) {
			return nil, fmt.Errorf("%w: column '%s' has %d rows, expected %d",
				ErrShape, s.Column(i).Name, len(vals), len(columns[0]))
		}
		c := s.Column(i)
		series[i] = NewSeries(c.Name, c.Type, vals)
	}
	return &Table{frame: dataframe.NewDataFrame(series...), schema: s}, nil
}

// MustNew is New that panics on error. For tests and literals.
func MustNew(s schema.Schema, columns [][]any) *Table {
	t, err := New(s, columns)
	if err != nil {
		panic(err)
	}
	return t
}

// FromFrame wraps an existing frame. The series names must match s.
func FromFrame(df *dataframe.DataFrame, s schema.Schema) (*Table, error) {
	if len(df.Series) != s.Len() {
		return nil, fmt.Errorf("%w: frame has %d series, schema has %d columns", ErrShape, len(df.Series), s.Len())
	}
	for i, ser := range df.Series {
		if ser.Name() != s.Column(i).Name {
			return nil, fmt.Errorf("%w: series %d is '%s', schema says '%s'", ErrShape, i, ser.Name(), s.Column(i).Name)
		}
		prepare(ser)
	}
	return &Table{frame: df, schema: s}, nil
}

// Empty returns a table with no columns and no rows.
func Empty() *Table {
	return &Table{frame: dataframe.NewDataFrame(), schema: schema.MustNew()}
}

// Schema returns the table's schema.
func (t *Table) Schema() schema.Schema { return t.schema }

// Frame exposes the underlying frame. Callers must not modify it.
func (t *Table) Frame() *dataframe.DataFrame { return t.frame }

// NRows returns the number of rows.
func (t *Table) NRows() int {
	if len(t.frame.Series) == 0 {
		return 0
	}
	return t.frame.NRows()
}

// NCols returns the number of columns.
func (t *Table) NCols() int { return t.schema.Len() }

// Value returns the cell at row, col: nil or the column type's Go value.
func (t *Table) Value(row, col int) any {
	return cell(t.frame.Series[col].Value(row))
}

// Column returns a copy of the values of column i.
func (t *Table) Column(i int) []any {
	s := t.frame.Series[i]
	n := s.NRows()
	out := make([]any, n)
	for r := 0; r < n; r++ {
		out[r] = cell(s.Value(r))
	}
	return out
}

// Values returns a copy of the values of the named column.
func (t *Table) Values(name string) ([]any, error) {
	i, ok := t.schema.Index(name)
	if !ok {
		return nil, fmt.Errorf("%w: no column '%s'", ErrShape, name)
	}
	return t.Column(i), nil
}

// Rows returns the table row by row.
func (t *Table) Rows() [][]any {
	n := t.NRows()
	rows := make([][]any, n)
	cols := make([][]any, t.NCols())
	for i := range cols {
		cols[i] = t.Column(i)
	}
	for r := 0; r < n; r++ {
		row := make([]any, len(cols))
		for c := range cols {
			row[c] = cols[c][r]
		}
		rows[r] = row
	}
	return rows
}

func (t *Table) columns() [][]any {
	cols := make([][]any, t.NCols())
	for i := range cols {
		cols[i] = t.Column(i)
	}
	return cols
}

// Take returns the rows at indices, in that order.
func (t *Table) Take(indices []int) *Table {
	series := make([]dataframe.Series, t.NCols())
	for i := range series {
		src := t.frame.Series[i]
		vals := make([]any, len(indices))
		for j, r := range indices {
			vals[j] = cell(src.Value(r))
		}
		c := t.schema.Column(i)
		series[i] = NewSeries(c.Name, c.Type, vals)
	}
	return &Table{frame: dataframe.NewDataFrame(series...), schema: t.schema}
}

// Slice returns rows [start, end), clamped to the table. end < 0 means to
// the last row.
func (t *Table) Slice(start, end int) *Table {
	n := t.NRows()
	if end < 0 || end > n {
		end = n
	}
	if start < 0 {
		start = 0
	}
	if start > end {
		start = end
	}
	indices := make([]int, 0, end-start)
	for r := start; r < end; r++ {
		indices = append(indices, r)
	}
	return t.Take(indices)
}

// Filter keeps the rows for which keep returns true.
func (t *Table) Filter(ctx context.Context, keep func(row int) bool) (*Table, error) {
	if t.NCols() == 0 {
		return t, nil
	}
	fn := dataframe.FilterDataFrameFn(func(_ map[interface{}]interface{}, row, _ int) (dataframe.FilterAction, error) {
		if keep(row) {
			return dataframe.KEEP, nil
		}
		return dataframe.DROP, nil
	})
	res, err := dataframe.Filter(ctx, t.frame, fn)
	if err != nil {
		return nil, err
	}
	return FromFrame(res.(*dataframe.DataFrame), t.schema)
}

// SortKey orders by one column.
type SortKey struct {
	Column string
	Desc   bool
}

// Sort returns the rows stably ordered by keys. Nulls sort first in
// ascending order and last in descending order.
func (t *Table) Sort(ctx context.Context, keys []SortKey) (*Table, error) {
	if len(keys) == 0 || t.NRows() < 2 {
		return t, nil
	}
	df := t.frame.Copy()
	for _, s := range df.Series {
		prepare(s)
	}
	dk := make([]dataframe.SortKey, len(keys))
	for i, k := range keys {
		if !t.schema.Has(k.Column) {
			return nil, fmt.Errorf("%w: no column '%s'", ErrShape, k.Column)
		}
		dk[i] = dataframe.SortKey{Key: k.Column, Desc: k.Desc}
	}
	if !df.Sort(ctx, dk, dataframe.SortOptions{Stable: true}) {
		return nil, ctx.Err()
	}
	return FromFrame(df, t.schema)
}

// Put writes vals into column c: in place when a column of that name
// exists, appended otherwise.
func (t *Table) Put(c schema.Column, vals []any) (*Table, error) {
	if t.NCols() > 0 && len(vals) != t.NRows() {
		return nil, fmt.Errorf("%w: column '%s' has %d rows, table has %d", ErrShape, c.Name, len(vals), t.NRows())
	}
	s := t.schema.Put(c)
	i, _ := s.Index(c.Name)

	series := make([]dataframe.Series, s.Len())
	for j := range series {
		if j == i {
			series[j] = NewSeries(c.Name, c.Type, vals)
			continue
		}
		series[j] = t.frame.Series[j]
	}
	return &Table{frame: dataframe.NewDataFrame(series...), schema: s}, nil
}

// Select returns the columns at sources, renamed to names.
func (t *Table) Select(sources, names []string) (*Table, error) {
	if len(sources) != len(names) {
		return nil, fmt.Errorf("%w: %d sources for %d names", ErrShape, len(sources), len(names))
	}
	cols := make([]schema.Column, len(sources))
	data := make([][]any, len(sources))
	for i, src := range sources {
		c, ok := t.schema.Lookup(src)
		if !ok {
			return nil, fmt.Errorf("%w: no column '%s'", ErrShape, src)
		}
		j, _ := t.schema.Index(src)
		cols[i] = schema.Column{Name: names[i], Type: c.Type}
		data[i] = t.Column(j)
	}
	s, err := schema.New(cols...)
	if err != nil {
		return nil, err
	}
	return New(s, data)
}

// Rename sets every column name positionally.
func (t *Table) Rename(names []string) (*Table, error) {
	if len(names) != t.NCols() {
		return nil, fmt.Errorf("%w: %d names for %d columns", ErrShape, len(names), t.NCols())
	}
	cols := t.schema.Columns()
	for i := range cols {
		cols[i].Name = names[i]
	}
	s, err := schema.New(cols...)
	if err != nil {
		return nil, err
	}
	return New(s, t.columns())
}

// Drop removes the named columns.
func (t *Table) Drop(names []string) (*Table, error) {
	gone := make(map[string]bool, len(names))
	for _, n := range names {
		gone[n] = true
	}
	var sources []string
	for _, n := range t.schema.Names() {
		if !gone[n] {
			sources = append(sources, n)
		}
	}
	return t.Select(sources, sources)
}

// NewSeries builds the series storing a column of type typ.
func NewSeries(name string, typ schema.Type, vals []any) dataframe.Series {
	init := &dataframe.SeriesInit{Capacity: len(vals)}
	switch typ {
	case schema.Integer:
		s := dataframe.NewSeriesInt64(name, init)
		for _, v := range vals {
			s.Append(toInt(v), dataframe.DontLock)
		}
		prepare(s)
		return s
	case schema.Float:
		s := dataframe.NewSeriesFloat64(name, init)
		for _, v := range vals {
			s.Append(toFloat(v), dataframe.DontLock)
		}
		prepare(s)
		return s
	case schema.String:
		s := dataframe.NewSeriesString(name, init)
		for _, v := range vals {
			s.Append(toString(v), dataframe.DontLock)
		}
		prepare(s)
		return s
	}
	s := dataframe.NewSeriesMixed(name, init)
	for _, v := range vals {
		s.Append(v, dataframe.DontLock)
	}
	prepare(s)
	return s
}

// prepare installs the value formatter every series shares and the
// comparison mixed series need for sorting. Copy and NewSeries drop the
// comparison, so it is reapplied whenever a frame is wrapped.
func prepare(s dataframe.Series) {
	s.SetValueToStringFormatter(formatCell)
	if m, ok := s.(*dataframe.SeriesMixed); ok {
		m.SetIsLessThanFunc(Less)
		m.SetIsEqualFunc(Equal)
	}
}

func formatCell(v interface{}) string {
	if v == nil {
		return "NaN"
	}
	return plan.FormatValue(cell(v))
}

// Less orders two cell values: nil first, then false before true, numbers
// numerically and strings lexically. Values of different kinds order by
// kind.
func Less(a, b any) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	ka, kb := kind(a), kind(b)
	if ka != kb {
		return ka < kb
	}
	switch x := a.(type) {
	case bool:
		return !x && b.(bool)
	case string:
		return x < b.(string)
	}
	af, _ := Number(a)
	bf, _ := Number(b)
	return af < bf
}

// Equal reports whether two cell values are the same. Integers and floats
// with equal numeric value are equal.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if kind(a) != kind(b) {
		return false
	}
	if kind(a) == 2 {
		af, _ := Number(a)
		bf, _ := Number(b)
		return af == bf
	}
	return a == b
}

func kind(v any) int {
	switch v.(type) {
	case bool:
		return 1
	case int64, float64:
		return 2
	case string:
		return 3
	}
	return 4
}

// Number returns v as a float64 when it is numeric.
func Number(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func cell(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return nil
		}
	case int:
		return int64(x)
	}
	return v
}

func toInt(v any) any {
	switch x := v.(type) {
	case int64:
		return x
	case float64:
		return int64(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case string:
		if i, err := strconv.ParseInt(x, 10, 64); err == nil {
			return i
		}
	}
	return nil
}

func toFloat(v any) any {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f
		}
	}
	return nil
}

func toString(v any) any {
	if v == nil {
		return nil
	}
	return plan.FormatValue(v)
}

// InferType returns the narrowest column type holding every value: Null
// when all are nil, Float for a mix of integers and floats, and String for
// any other mix of kinds.
func InferType(vals []any) schema.Type {
	t := schema.Null
	for _, v := range vals {
		var vt schema.Type
		switch v.(type) {
		case nil:
			continue
		case int64:
			vt = schema.Integer
		case float64:
			vt = schema.Float
		case bool:
			vt = schema.Boolean
		default:
			vt = schema.String
		}
		switch {
		case t == schema.Null || t == vt:
			t = vt
		case t.IsNumeric() && vt.IsNumeric():
			t = schema.Float
		default:
			return schema.String
		}
	}
	return t
}
