// Package schema describes the shape of a table at one point in a pipeline:
// an ordered list of uniquely named, typed columns.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateColumn is returned when a schema would contain the same name twice.
var ErrDuplicateColumn = errors.New("duplicate column")

// Type is the declared type of a column.
type Type uint8

const (
	// Null marks a column whose type is unknown because it holds no values.
	Null Type = iota
	Integer
	Float
	String
	Boolean
)

// String returns the type name as shown by .schema.
func (t Type) String() string {
	switch t {
	case Null:
		return "Null"
	case Integer:
		return "Integer"
	case Float:
		return "Float"
	case String:
		return "String"
	case Boolean:
		return "Boolean"
	default:
		return "Unknown"
	}
}

// IsNumeric reports whether values of this type take part in arithmetic.
func (t Type) IsNumeric() bool {
	return t == Integer || t == Float
}

// Class groups types for the types(...) selector.
type Class uint8

const (
	ClassNumber Class = iota
	ClassString
	ClassBoolean
	ClassDate
	ClassDateTime
)

var classNames = map[string]Class{
	"number":   ClassNumber,
	"numeric":  ClassNumber,
	"string":   ClassString,
	"str":      ClassString,
	"text":     ClassString,
	"boolean":  ClassBoolean,
	"bool":     ClassBoolean,
	"date":     ClassDate,
	"datetime": ClassDateTime,
}

// ParseClass maps a class name as written in types(...) to a Class.
func ParseClass(name string) (Class, bool) {
	c, ok := classNames[strings.ToLower(name)]
	return c, ok
}

// String returns the canonical class name.
func (c Class) String() string {
	switch c {
	case ClassNumber:
		return "Number"
	case ClassString:
		return "String"
	case ClassBoolean:
		return "Boolean"
	case ClassDate:
		return "Date"
	case ClassDateTime:
		return "DateTime"
	default:
		return "Unknown"
	}
}

// Matches reports whether a column of type t belongs to the class.
// Tables carry no temporal types, so Date and DateTime never match.
func (c Class) Matches(t Type) bool {
	switch c {
	case ClassNumber:
		return t.IsNumeric()
	case ClassString:
		return t == String
	case ClassBoolean:
		return t == Boolean
	default:
		return false
	}
}

// Column is a single named, typed column.
type Column struct {
	Name string
	Type Type
}

// Schema is an immutable ordered list of columns. Every method that changes
// the shape returns a new Schema.
type Schema struct {
	cols  []Column
	index map[string]int
}

// New builds a schema, rejecting duplicate names.
func New(cols ...Column) (Schema, error) {
	index := make(map[string]int, len(cols))
	owned := make([]Column, len(cols))
	for i, c := range cols {
		if _, dup := index[c.Name]; dup {
			return Schema{}, fmt.Errorf("%w: %s", ErrDuplicateColumn, c.Name)
		}
		index[c.Name] = i
		owned[i] = c
	}
	return Schema{cols: owned, index: index}, nil
}

// MustNew is like New but panics on duplicates. Intended for tests and literals.
func MustNew(cols ...Column) Schema {
	s, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.cols) }

// Column returns the i-th column (0-based).
func (s Schema) Column(i int) Column { return s.cols[i] }

// Columns returns a copy of the column list.
func (s Schema) Columns() []Column {
	out := make([]Column, len(s.cols))
	copy(out, s.cols)
	return out
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s.cols))
	for i, c := range s.cols {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of a column by name.
func (s Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Lookup returns the column with the given name.
func (s Schema) Lookup(name string) (Column, bool) {
	i, ok := s.index[name]
	if !ok {
		return Column{}, false
	}
	return s.cols[i], true
}

// Has reports whether the schema contains a column called name.
func (s Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Project returns a schema with only the given names, in the given order.
func (s Schema) Project(names []string) (Schema, error) {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		c, ok := s.Lookup(n)
		if !ok {
			return Schema{}, fmt.Errorf("column %q not in schema", n)
		}
		cols = append(cols, c)
	}
	return New(cols...)
}

// Without returns the schema minus the named columns.
func (s Schema) Without(names []string) Schema {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	cols := make([]Column, 0, len(s.cols))
	for _, c := range s.cols {
		if !drop[c.Name] {
			cols = append(cols, c)
		}
	}
	out, _ := New(cols...)
	return out
}

// Rename returns the schema with column i renamed, keeping its position.
func (s Schema) Rename(i int, name string) (Schema, error) {
	cols := s.Columns()
	cols[i].Name = name
	return New(cols...)
}

// Put replaces the column with the same name in place, or appends it.
func (s Schema) Put(c Column) Schema {
	cols := s.Columns()
	if i, ok := s.index[c.Name]; ok {
		cols[i] = c
	} else {
		cols = append(cols, c)
	}
	out, _ := New(cols...)
	return out
}

// Equal reports whether both schemas have the same columns in the same order.
func (s Schema) Equal(o Schema) bool {
	if len(s.cols) != len(o.cols) {
		return false
	}
	for i := range s.cols {
		if s.cols[i] != o.cols[i] {
			return false
		}
	}
	return true
}

// String renders the schema as "name: Type" lines.
func (s Schema) String() string {
	var b strings.Builder
	for i, c := range s.cols {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", c.Name, c.Type)
	}
	return b.String()
}
