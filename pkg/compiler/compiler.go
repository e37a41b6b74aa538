// Package compiler lowers resolved pipeline stages into a logical plan.
// Operator meaning is fixed here from the statically inferred operand
// types: '+' becomes addition or concatenation once per expression node.
package compiler

import (
	"errors"
	"fmt"

	"github.com/system0x7/dt/pkg/dsl"
	"github.com/system0x7/dt/pkg/plan"
	"github.com/system0x7/dt/pkg/resolve"
	"github.com/system0x7/dt/pkg/schema"
)

// ErrUnsupported is returned for a resolved node the compiler cannot lower.
var ErrUnsupported = errors.New("unsupported")

// Compile lowers bound stages into a plan whose output schema is out.
func Compile(stages []resolve.Stage, out schema.Schema) (*plan.Plan, error) {
	c := &Compiler{
		ops:        []plan.Op{},
		tables:     []string{},
		tableIndex: make(map[string]int),
	}
	return c.compile(stages, out)
}

// Compiler holds the state of one compilation.
type Compiler struct {
	ops        []plan.Op
	tables     []string
	tableIndex map[string]int
}

func (c *Compiler) compile(stages []resolve.Stage, out schema.Schema) (*plan.Plan, error) {
	for i, st := range stages {
		op, err := c.compileStage(st)
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i+1, st.Op(), err)
		}
		c.ops = append(c.ops, op)
	}

	return &plan.Plan{
		Ops:    c.ops,
		Output: out,
		Tables: c.tables,
	}, nil
}

func (c *Compiler) compileStage(st resolve.Stage) (plan.Op, error) {
	switch s := st.(type) {
	case *resolve.Select:
		cols := make([]plan.Column, len(s.Columns))
		for i, sel := range s.Columns {
			cols[i] = plan.Column{Source: sel.Source, Name: sel.Name}
		}
		return &plan.Project{Columns: cols}, nil

	case *resolve.Filter:
		pred, err := c.Expr(s.Cond)
		if err != nil {
			return nil, err
		}
		return &plan.Filter{Pred: pred}, nil

	case *resolve.Mutate:
		assigns := make([]plan.Assign, len(s.Assigns))
		for i, a := range s.Assigns {
			e, err := c.Expr(a.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", a.Name, err)
			}
			assigns[i] = plan.Assign{Name: a.Name, Expr: e}
		}
		return &plan.Mutate{Assigns: assigns}, nil

	case *resolve.Rename:
		return &plan.Rename{Label: s.Op(), Names: append([]string(nil), s.Names...)}, nil

	case *resolve.Sort:
		keys := make([]plan.SortKey, len(s.Keys))
		for i, k := range s.Keys {
			keys[i] = plan.SortKey{Column: k.Column, Desc: k.Desc}
		}
		return &plan.Sort{Keys: keys}, nil

	case *resolve.Slice:
		return &plan.Slice{Label: s.Op(), Start: s.Start, End: s.End}, nil

	case *resolve.Drop:
		return &plan.Drop{Columns: append([]string(nil), s.Columns...)}, nil

	case *resolve.Distinct:
		return &plan.Distinct{Columns: append([]string(nil), s.Columns...)}, nil

	case *resolve.Write:
		return &plan.Write{
			Path:        s.Spec.Path,
			Format:      s.Spec.Format,
			Delimiter:   s.Spec.Delimiter,
			Header:      s.Spec.Header,
			Compression: s.Spec.Compression,
		}, nil
	}
	return nil, fmt.Errorf("%w stage %T", ErrUnsupported, st)
}

// Expr lowers one resolved expression.
func (c *Compiler) Expr(e resolve.Expr) (plan.Expr, error) {
	switch n := e.(type) {
	case *resolve.Column:
		return &plan.Col{Name: n.Name, T: n.T}, nil

	case *resolve.Literal:
		return &plan.Const{Value: n.Value, T: n.T}, nil

	case *resolve.Binary:
		return c.binary(n)

	case *resolve.Unary:
		operand, err := c.Expr(n.Operand)
		if err != nil {
			return nil, err
		}
		if n.Op == dsl.TokenNot {
			return &plan.Not{Operand: operand}, nil
		}
		return &plan.Neg{Operand: operand, T: n.T}, nil

	case *resolve.Split:
		text, err := c.Expr(n.Text)
		if err != nil {
			return nil, err
		}
		sep, err := c.Expr(n.Sep)
		if err != nil {
			return nil, err
		}
		return &plan.Split{Text: text, Sep: sep, Index: n.Index}, nil

	case *resolve.Replace:
		text, err := c.Expr(n.Text)
		if err != nil {
			return nil, err
		}
		with, err := c.Expr(n.With)
		if err != nil {
			return nil, err
		}
		if n.Regex != nil {
			return &plan.ReplaceRegex{Text: text, Pattern: n.Regex, With: with}, nil
		}
		return &plan.ReplaceLiteral{Text: text, Old: n.Old, With: with}, nil

	case *resolve.Lookup:
		key, err := c.Expr(n.Key)
		if err != nil {
			return nil, err
		}
		c.useTable(n.Table)
		return &plan.Lookup{
			Key:    key,
			Table:  n.Table,
			On:     n.On.Name,
			Return: n.Return.Name,
			T:      n.Return.Type,
		}, nil

	case *resolve.InList:
		operand, err := c.Expr(n.Operand)
		if err != nil {
			return nil, err
		}
		return &plan.InSet{Operand: operand, Values: append([]any(nil), n.Values...)}, nil

	case *resolve.InTable:
		operand, err := c.Expr(n.Operand)
		if err != nil {
			return nil, err
		}
		c.useTable(n.Table)
		return &plan.InTable{Operand: operand, Table: n.Table, Column: n.Column.Name}, nil
	}

	return nil, fmt.Errorf("%w expression %T", ErrUnsupported, e)
}

func (c *Compiler) useTable(name string) {
	if _, ok := c.tableIndex[name]; ok {
		return
	}
	c.tableIndex[name] = len(c.tables)
	c.tables = append(c.tables, name)
}

func (c *Compiler) binary(n *resolve.Binary) (plan.Expr, error) {
	left, err := c.Expr(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.Expr(n.Right)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case dsl.TokenAnd:
		return &plan.Logic{Op: plan.And, Left: left, Right: right}, nil
	case dsl.TokenOr:
		return &plan.Logic{Op: plan.Or, Left: left, Right: right}, nil
	case dsl.TokenEQ:
		return &plan.Compare{Op: plan.Eq, Left: left, Right: right}, nil
	case dsl.TokenNE:
		return &plan.Compare{Op: plan.Ne, Left: left, Right: right}, nil
	case dsl.TokenLT:
		return &plan.Compare{Op: plan.Lt, Left: left, Right: right}, nil
	case dsl.TokenLE:
		return &plan.Compare{Op: plan.Le, Left: left, Right: right}, nil
	case dsl.TokenGT:
		return &plan.Compare{Op: plan.Gt, Left: left, Right: right}, nil
	case dsl.TokenGE:
		return &plan.Compare{Op: plan.Ge, Left: left, Right: right}, nil
	case dsl.TokenPlus:
		return plus(left, right, n.T), nil
	case dsl.TokenMinus:
		return &plan.Arith{Op: plan.Sub, Left: left, Right: right, T: n.T}, nil
	case dsl.TokenStar:
		return &plan.Arith{Op: plan.Mul, Left: left, Right: right, T: n.T}, nil
	case dsl.TokenSlash:
		return &plan.Arith{Op: plan.Div, Left: left, Right: right, T: n.T}, nil
	}

	return nil, fmt.Errorf("%w operator %s", ErrUnsupported, n.Op)
}

// plus picks the meaning of '+' from the static operand types:
//
//	String + String   concatenation
//	number + number   addition
//	String + number   concatenation, number formatted in decimal
//	Null   + number   decided at execution from the first complete row
func plus(left, right plan.Expr, t schema.Type) plan.Expr {
	lt, rt := left.Type(), right.Type()

	switch {
	case t == schema.String:
		if lt != schema.String {
			left = &plan.ToString{Operand: left}
		}
		if rt != schema.String {
			right = &plan.ToString{Operand: right}
		}
		return &plan.Concat{Left: left, Right: right}

	case lt == schema.Null || rt == schema.Null:
		return &plan.DynamicAdd{Left: left, Right: right}
	}

	return &plan.Arith{Op: plan.Add, Left: left, Right: right, T: t}
}
