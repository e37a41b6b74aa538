// Package plan defines the logical operations a compiled pipeline is made
// of. Every expression carries a fixed output type decided at compile time;
// the executor never re-decides an operator's meaning per row, with the one
// exception of DynamicAdd.
package plan

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/system0x7/dt/pkg/schema"
)

// Plan is the compiled form of a pipeline's stages.
type Plan struct {
	Ops    []Op
	Output schema.Schema
	// Tables lists the variables the plan reads through lookup() or in,
	// in first-use order.
	Tables []string
}

// String renders the plan one operation per line.
func (p *Plan) String() string {
	var sb strings.Builder
	for i, op := range p.Ops {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(op.String())
	}
	return sb.String()
}

// Op is a table-to-table operation.
type Op interface {
	Name() string
	String() string
	op()
}

// Expr is a typed row-wise expression.
type Expr interface {
	Type() schema.Type
	String() string
	expr()
}

// Column names one output column of a projection.
type Column struct {
	Source string
	Name   string
}

// Project keeps Columns in order, renaming where Name differs from Source.
type Project struct {
	Columns []Column
}

// Filter keeps rows where Pred is true. False and null rows are dropped.
type Filter struct {
	Pred Expr
}

// Assign writes Expr into column Name, replacing it in place or appending.
type Assign struct {
	Name string
	Expr Expr
}

// Mutate applies Assigns in order.
type Mutate struct {
	Assigns []Assign
}

// Rename sets every column name positionally.
type Rename struct {
	Label string
	Names []string
}

// SortKey is one key of a Sort.
type SortKey struct {
	Column string
	Desc   bool
}

// Sort orders rows stably by Keys.
type Sort struct {
	Keys []SortKey
}

// Slice keeps rows [Start, End), clamped to the table. End < 0 is open.
type Slice struct {
	Label      string
	Start, End int
}

// Drop removes Columns.
type Drop struct {
	Columns []string
}

// Distinct keeps the first row for every distinct combination of Columns.
type Distinct struct {
	Columns []string
}

// Write saves the table and passes it through unchanged.
type Write struct {
	Path        string
	Format      string
	Delimiter   string
	Header      *bool
	Compression string
}

func (*Project) op()  {}
func (*Filter) op()   {}
func (*Mutate) op()   {}
func (*Rename) op()   {}
func (*Sort) op()     {}
func (*Slice) op()    {}
func (*Drop) op()     {}
func (*Distinct) op() {}
func (*Write) op()    {}

func (*Project) Name() string  { return "select" }
func (*Filter) Name() string   { return "filter" }
func (*Mutate) Name() string   { return "mutate" }
func (o *Rename) Name() string { return o.Label }
func (*Sort) Name() string     { return "sort" }
func (o *Slice) Name() string  { return o.Label }
func (*Drop) Name() string     { return "drop" }
func (*Distinct) Name() string { return "distinct" }
func (*Write) Name() string    { return "write" }

func (o *Project) String() string {
	parts := make([]string, len(o.Columns))
	for i, c := range o.Columns {
		if c.Source == c.Name {
			parts[i] = c.Name
		} else {
			parts[i] = c.Source + " as " + c.Name
		}
	}
	return "PROJECT " + strings.Join(parts, ", ")
}

func (o *Filter) String() string { return "FILTER " + o.Pred.String() }

func (o *Mutate) String() string {
	parts := make([]string, len(o.Assigns))
	for i, a := range o.Assigns {
		parts[i] = a.Name + " = " + a.Expr.String()
	}
	return "MUTATE " + strings.Join(parts, ", ")
}

func (o *Rename) String() string { return "RENAME " + strings.Join(o.Names, ", ") }

func (o *Sort) String() string {
	parts := make([]string, len(o.Keys))
	for i, k := range o.Keys {
		parts[i] = k.Column
		if k.Desc {
			parts[i] += " desc"
		}
	}
	return "SORT " + strings.Join(parts, ", ")
}

func (o *Slice) String() string {
	if o.End < 0 {
		return fmt.Sprintf("SLICE %d..", o.Start)
	}
	return fmt.Sprintf("SLICE %d..%d", o.Start, o.End)
}

func (o *Drop) String() string     { return "DROP " + strings.Join(o.Columns, ", ") }
func (o *Distinct) String() string { return "DISTINCT " + strings.Join(o.Columns, ", ") }
func (o *Write) String() string    { return fmt.Sprintf("WRITE %q", o.Path) }

// ArithOp is a numeric operator.
type ArithOp uint8

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
)

func (op ArithOp) String() string {
	return [...]string{"+", "-", "*", "/"}[op]
}

// CompareOp is a comparison operator.
type CompareOp uint8

const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

func (op CompareOp) String() string {
	return [...]string{"==", "!=", "<", "<=", ">", ">="}[op]
}

// LogicOp is a three-valued boolean connective.
type LogicOp uint8

const (
	And LogicOp = iota
	Or
)

func (op LogicOp) String() string {
	if op == And {
		return "and"
	}
	return "or"
}

// Col reads a column.
type Col struct {
	Name string
	T    schema.Type
}

// Const is a literal: nil, int64, float64, string or bool.
type Const struct {
	Value any
	T     schema.Type
}

// Arith is numeric arithmetic. T is Integer only when both operands are.
// String operands are parsed as numbers per row.
type Arith struct {
	Op          ArithOp
	Left, Right Expr
	T           schema.Type
}

// Concat joins two String-typed operands.
type Concat struct {
	Left, Right Expr
}

// ToString formats a value in the default decimal form: no scientific
// notation and floats always keep a fractional part.
type ToString struct {
	Operand Expr
}

// DynamicAdd is a '+' whose operand types were not known statically. The
// executor picks addition or concatenation from the first row where both
// operands are present and applies that choice to every row.
type DynamicAdd struct {
	Left, Right Expr
}

// Compare compares two values; a null operand yields null.
type Compare struct {
	Op          CompareOp
	Left, Right Expr
}

// Logic is Kleene and/or.
type Logic struct {
	Op          LogicOp
	Left, Right Expr
}

// Not negates a boolean; null stays null.
type Not struct {
	Operand Expr
}

// Neg negates a number.
type Neg struct {
	Operand Expr
	T       schema.Type
}

// Split takes part Index of Text split on Sep, or null past the last part.
type Split struct {
	Text, Sep Expr
	Index     int
}

// ReplaceLiteral replaces every occurrence of Old.
type ReplaceLiteral struct {
	Text Expr
	Old  string
	With Expr
}

// ReplaceRegex replaces every match of Pattern. With may use $1 expansion.
type ReplaceRegex struct {
	Text    Expr
	Pattern *regexp.Regexp
	With    Expr
}

// Lookup returns column Return of the first row of variable Table whose On
// column equals Key, or null when no row matches.
type Lookup struct {
	Key    Expr
	Table  string
	On     string
	Return string
	T      schema.Type
}

// InSet tests membership in a literal set.
type InSet struct {
	Operand Expr
	Values  []any
}

// InTable tests membership in column Column of variable Table.
type InTable struct {
	Operand Expr
	Table   string
	Column  string
}

func (*Col) expr()            {}
func (*Const) expr()          {}
func (*Arith) expr()          {}
func (*Concat) expr()         {}
func (*ToString) expr()       {}
func (*DynamicAdd) expr()     {}
func (*Compare) expr()        {}
func (*Logic) expr()          {}
func (*Not) expr()            {}
func (*Neg) expr()            {}
func (*Split) expr()          {}
func (*ReplaceLiteral) expr() {}
func (*ReplaceRegex) expr()   {}
func (*Lookup) expr()         {}
func (*InSet) expr()          {}
func (*InTable) expr()        {}

func (e *Col) Type() schema.Type            { return e.T }
func (e *Const) Type() schema.Type          { return e.T }
func (e *Arith) Type() schema.Type          { return e.T }
func (e *Concat) Type() schema.Type         { return schema.String }
func (e *ToString) Type() schema.Type       { return schema.String }
func (e *DynamicAdd) Type() schema.Type     { return schema.Null }
func (e *Compare) Type() schema.Type        { return schema.Boolean }
func (e *Logic) Type() schema.Type          { return schema.Boolean }
func (e *Not) Type() schema.Type            { return schema.Boolean }
func (e *Neg) Type() schema.Type            { return e.T }
func (e *Split) Type() schema.Type          { return schema.String }
func (e *ReplaceLiteral) Type() schema.Type { return schema.String }
func (e *ReplaceRegex) Type() schema.Type   { return schema.String }
func (e *Lookup) Type() schema.Type         { return e.T }
func (e *InSet) Type() schema.Type          { return schema.Boolean }
func (e *InTable) Type() schema.Type        { return schema.Boolean }

func (e *Col) String() string { return e.Name }

func (e *Const) String() string {
	switch v := e.Value.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	}
	return FormatValue(e.Value)
}

func (e *Arith) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

func (e *Concat) String() string {
	return fmt.Sprintf("concat(%s, %s)", e.Left, e.Right)
}

func (e *ToString) String() string { return fmt.Sprintf("str(%s)", e.Operand) }

func (e *DynamicAdd) String() string {
	return fmt.Sprintf("(%s +? %s)", e.Left, e.Right)
}

func (e *Compare) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

func (e *Logic) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

func (e *Not) String() string { return fmt.Sprintf("not %s", e.Operand) }
func (e *Neg) String() string { return fmt.Sprintf("-%s", e.Operand) }

func (e *Split) String() string {
	return fmt.Sprintf("split(%s, %s)[%d]", e.Text, e.Sep, e.Index)
}

func (e *ReplaceLiteral) String() string {
	return fmt.Sprintf("replace(%s, %q, %s)", e.Text, e.Old, e.With)
}

func (e *ReplaceRegex) String() string {
	return fmt.Sprintf("replace(%s, re(%q), %s)", e.Text, e.Pattern.String(), e.With)
}

func (e *Lookup) String() string {
	return fmt.Sprintf("lookup(%s, %s, on=%s, return=%s)", e.Table, e.Key, e.On, e.Return)
}

func (e *InSet) String() string {
	parts := make([]string, len(e.Values))
	for i, v := range e.Values {
		parts[i] = (&Const{Value: v}).String()
	}
	return fmt.Sprintf("%s in [%s]", e.Operand, strings.Join(parts, ", "))
}

func (e *InTable) String() string {
	return fmt.Sprintf("%s in %s.%s", e.Operand, e.Table, e.Column)
}
