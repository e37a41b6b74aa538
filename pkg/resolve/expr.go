package resolve

import (
	"fmt"
	"regexp"

	"github.com/system0x7/dt/pkg/dsl"
	"github.com/system0x7/dt/pkg/schema"
)

// Expr is an expression whose column references are bound to concrete
// columns and whose output type is known.
type Expr interface {
	Type() schema.Type
}

// Column reads a column of the table entering the stage.
type Column struct {
	Name string
	T    schema.Type
}

// Literal is a constant: nil, int64, float64, string or bool.
type Literal struct {
	Value any
	T     schema.Type
}

// Binary is a binary operator. Op is the dsl operator token.
type Binary struct {
	Op          dsl.TokenType
	Left, Right Expr
	T           schema.Type
}

// Unary is not or negation.
type Unary struct {
	Op      dsl.TokenType
	Operand Expr
	T       schema.Type
}

// Split is split(Text, Sep)[Index].
type Split struct {
	Text, Sep Expr
	Index     int
}

// Replace substitutes Old (or matches of Regex when set) with With.
type Replace struct {
	Text  Expr
	Old   string
	Regex *regexp.Regexp
	With  Expr
}

// Lookup joins against the variable Table. On and Return are columns of
// that variable's schema, not of the current pipeline.
type Lookup struct {
	Table  string
	Key    Expr
	On     schema.Column
	Return schema.Column
}

// InList tests membership in a literal list.
type InList struct {
	Operand Expr
	Values  []any
}

// InTable tests membership in the first column of a variable.
type InTable struct {
	Operand Expr
	Table   string
	Column  schema.Column
}

func (e *Column) Type() schema.Type  { return e.T }
func (e *Literal) Type() schema.Type { return e.T }
func (e *Binary) Type() schema.Type  { return e.T }
func (e *Unary) Type() schema.Type   { return e.T }
func (e *Split) Type() schema.Type   { return schema.String }
func (e *Replace) Type() schema.Type { return schema.String }
func (e *Lookup) Type() schema.Type  { return e.Return.Type }
func (e *InList) Type() schema.Type  { return schema.Boolean }
func (e *InTable) Type() schema.Type { return schema.Boolean }

// Expr binds an expression against the schema entering the stage.
func (r *Resolver) Expr(e dsl.Expr, s schema.Schema) (Expr, error) {
	switch n := e.(type) {
	case *dsl.NumberLit:
		if n.Int {
			return &Literal{Value: int64(n.Value), T: schema.Integer}, nil
		}
		return &Literal{Value: n.Value, T: schema.Float}, nil

	case *dsl.StringLit:
		return &Literal{Value: n.Value, T: schema.String}, nil

	case *dsl.BoolLit:
		return &Literal{Value: n.Value, T: schema.Boolean}, nil

	case *dsl.NullLit:
		return &Literal{Value: nil, T: schema.Null}, nil

	case *dsl.NameRef, *dsl.PositionRef:
		c, err := Single(n.(dsl.ColumnRef), s)
		if err != nil {
			return nil, err
		}
		return &Column{Name: c.Name, T: c.Type}, nil

	case *dsl.RegexRef:
		return nil, typeMismatch("re('%s') can only be used in select(), drop() or as the pattern of replace()", n.Pattern)

	case *dsl.RangeRef, *dsl.TypeRef, *dsl.AllRef, *dsl.ExceptRef:
		return nil, invalid("%s selects several columns; an expression needs a single column", describeRef(n.(dsl.ColumnRef)))

	case *dsl.ListLit:
		return nil, typeMismatch("a list can only appear on the right of 'in'")

	case *dsl.UnaryExpr:
		return r.unary(n, s)

	case *dsl.BinaryExpr:
		if n.Op == dsl.TokenIn {
			return r.in(n, s)
		}
		return r.binary(n, s)

	case *dsl.SplitExpr:
		return r.split(n, s)

	case *dsl.ReplaceExpr:
		return r.replace(n, s)

	case *dsl.LookupExpr:
		return r.lookup(n, s)
	}

	return nil, invalid("unsupported expression %T", e)
}

func (r *Resolver) unary(n *dsl.UnaryExpr, s schema.Schema) (Expr, error) {
	operand, err := r.Expr(n.Right, s)
	if err != nil {
		return nil, err
	}
	t := operand.Type()

	switch n.Op {
	case dsl.TokenNot:
		if t != schema.Boolean && t != schema.Null {
			return nil, typeMismatch("'not' needs a Boolean operand, got %s", t)
		}
		return &Unary{Op: n.Op, Operand: operand, T: schema.Boolean}, nil
	case dsl.TokenMinus:
		switch t {
		case schema.Integer, schema.Float, schema.Null:
			return &Unary{Op: n.Op, Operand: operand, T: t}, nil
		case schema.String:
			return &Unary{Op: n.Op, Operand: operand, T: schema.Float}, nil
		}
		return nil, typeMismatch("cannot negate a %s", t)
	}
	return nil, invalid("unsupported unary operator %s", n.Op)
}

func (r *Resolver) binary(n *dsl.BinaryExpr, s schema.Schema) (Expr, error) {
	left, err := r.Expr(n.Left, s)
	if err != nil {
		return nil, err
	}
	right, err := r.Expr(n.Right, s)
	if err != nil {
		return nil, err
	}

	t, err := binaryType(n.Op, left.Type(), right.Type())
	if err != nil {
		return nil, err
	}
	return &Binary{Op: n.Op, Left: left, Right: right, T: t}, nil
}

// binaryType infers the result type of a binary operator. For '+', any String
// operand makes the result a String (concatenation). A Null operand on an
// otherwise numeric '+' leaves the type open; the compiler defers that case
// to the first non-null row.
func binaryType(op dsl.TokenType, l, r schema.Type) (schema.Type, error) {
	switch op {
	case dsl.TokenAnd, dsl.TokenOr:
		if !isBoolish(l) || !isBoolish(r) {
			return 0, typeMismatch("'%s' needs Boolean operands, got %s and %s", op, l, r)
		}
		return schema.Boolean, nil

	case dsl.TokenEQ, dsl.TokenNE, dsl.TokenLT, dsl.TokenLE, dsl.TokenGT, dsl.TokenGE:
		if !canCompare(l, r) {
			return 0, typeMismatch("cannot compare %s with %s", l, r)
		}
		return schema.Boolean, nil

	case dsl.TokenPlus:
		switch {
		case l == schema.String || r == schema.String:
			return schema.String, nil
		case l == schema.Boolean || r == schema.Boolean:
			return 0, typeMismatch("cannot add %s and %s", l, r)
		case l == schema.Null || r == schema.Null:
			return schema.Null, nil
		}
		return numericResult(l, r), nil

	case dsl.TokenMinus, dsl.TokenStar, dsl.TokenSlash:
		if l == schema.Boolean || r == schema.Boolean {
			return 0, typeMismatch("'%s' needs numbers, got %s and %s", op, l, r)
		}
		if l == schema.Null && r == schema.Null {
			return schema.Null, nil
		}
		if op == dsl.TokenSlash {
			return schema.Float, nil
		}
		return numericResult(l, r), nil
	}

	return 0, invalid("unsupported operator %s", op)
}

// numericResult is Integer only when every typed operand is Integer. String
// operands are parsed at execution time and count as Float.
func numericResult(l, r schema.Type) schema.Type {
	if (l == schema.Integer || l == schema.Null) && (r == schema.Integer || r == schema.Null) {
		return schema.Integer
	}
	return schema.Float
}

func isBoolish(t schema.Type) bool {
	return t == schema.Boolean || t == schema.Null
}

func canCompare(l, r schema.Type) bool {
	if l == schema.Null || r == schema.Null || l == r {
		return true
	}
	numOrString := func(t schema.Type) bool { return t.IsNumeric() || t == schema.String }
	return numOrString(l) && numOrString(r)
}

func (r *Resolver) in(n *dsl.BinaryExpr, s schema.Schema) (Expr, error) {
	operand, err := r.Expr(n.Left, s)
	if err != nil {
		return nil, err
	}

	switch right := n.Right.(type) {
	case *dsl.ListLit:
		values := make([]any, 0, len(right.Items))
		for _, item := range right.Items {
			lit, err := r.Expr(item, s)
			if err != nil {
				return nil, err
			}
			values = append(values, lit.(*Literal).Value)
		}
		return &InList{Operand: operand, Values: values}, nil

	case *dsl.NameRef:
		vs, ok := r.variable(right.Name)
		if !ok {
			return nil, fmt.Errorf("%w '%s'", ErrUnknownVariable, right.Name)
		}
		if vs.Len() == 0 {
			return nil, invalid("variable '%s' has no columns to test membership against", right.Name)
		}
		return &InTable{Operand: operand, Table: right.Name, Column: vs.Column(0)}, nil
	}

	return nil, typeMismatch("'in' needs a list or a variable on the right")
}

func (r *Resolver) split(n *dsl.SplitExpr, s schema.Schema) (Expr, error) {
	text, err := r.Expr(n.Text, s)
	if err != nil {
		return nil, err
	}
	sep, err := r.Expr(n.Sep, s)
	if err != nil {
		return nil, err
	}
	if t := sep.Type(); t != schema.String && t != schema.Null {
		return nil, typeMismatch("split() separator must be a String, got %s", t)
	}
	if text.Type() == schema.Boolean {
		return nil, typeMismatch("split() cannot split a Boolean")
	}
	return &Split{Text: text, Sep: sep, Index: n.Index}, nil
}

func (r *Resolver) replace(n *dsl.ReplaceExpr, s schema.Schema) (Expr, error) {
	text, err := r.Expr(n.Text, s)
	if err != nil {
		return nil, err
	}
	with, err := r.Expr(n.With, s)
	if err != nil {
		return nil, err
	}
	if with.Type() == schema.Boolean {
		return nil, typeMismatch("replace() replacement must be a String, got Boolean")
	}

	out := &Replace{Text: text, With: with}
	switch p := n.Pattern.(type) {
	case *dsl.StringLit:
		if p.Value == "" {
			return nil, invalid("replace() pattern must not be empty")
		}
		out.Old = p.Value
	case *dsl.RegexRef:
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w '%s': %v", ErrRegex, p.Pattern, err)
		}
		out.Regex = re
	default:
		return nil, typeMismatch("replace() pattern must be a quoted string or re('...')")
	}
	return out, nil
}

func (r *Resolver) lookup(n *dsl.LookupExpr, s schema.Schema) (Expr, error) {
	ts, ok := r.variable(n.Table)
	if !ok {
		return nil, fmt.Errorf("%w '%s'", ErrUnknownVariable, n.Table)
	}

	key, err := r.Expr(n.Key, s)
	if err != nil {
		return nil, err
	}

	// on= and return= are resolved in the lookup table's schema
	on, err := Single(n.On, ts)
	if err != nil {
		return nil, fmt.Errorf("lookup table '%s': %w", n.Table, err)
	}
	ret, err := Single(n.Return, ts)
	if err != nil {
		return nil, fmt.Errorf("lookup table '%s': %w", n.Table, err)
	}

	return &Lookup{Table: n.Table, Key: key, On: on, Return: ret}, nil
}
