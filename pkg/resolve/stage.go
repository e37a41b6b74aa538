// Package resolve binds pipeline stages to the live schema. It expands
// positional, range, regex and type-class column references into concrete
// names, type-checks expressions and infers each stage's output schema
// without touching any data.
package resolve

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/system0x7/dt/pkg/dsl"
	"github.com/system0x7/dt/pkg/schema"
)

// Catalog exposes the schemas of session variables.
type Catalog interface {
	Schema(name string) (schema.Schema, bool)
}

// Resolver binds stages against a schema and a variable catalog.
type Resolver struct {
	catalog Catalog
}

// New returns a Resolver reading variable schemas from catalog. A nil
// catalog has no variables.
func New(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

func (r *Resolver) variable(name string) (schema.Schema, bool) {
	if r.catalog == nil {
		return schema.Schema{}, false
	}
	return r.catalog.Schema(name)
}

// Stage is a bound pipeline stage.
type Stage interface {
	// Op is the operation name, for error messages.
	Op() string
	// Output is the schema leaving the stage.
	Output() schema.Schema
}

type base struct {
	op  string
	out schema.Schema
}

func (b base) Op() string            { return b.op }
func (b base) Output() schema.Schema { return b.out }

// Selected is one output column of a select: Source renamed to Name.
type Selected struct {
	Source string
	Name   string
}

// Select keeps and orders columns.
type Select struct {
	base
	Columns []Selected
}

// Filter keeps rows where Cond is true.
type Filter struct {
	base
	Cond Expr
}

// Assign is one mutate assignment. Each Value is bound against the schema
// produced by the assignments before it.
type Assign struct {
	Name  string
	Value Expr
}

// Mutate adds or replaces columns.
type Mutate struct {
	base
	Assigns []Assign
}

// Rename sets every column name; Names is positional.
type Rename struct {
	base
	Names []string
}

// SortKey is a bound sort key.
type SortKey struct {
	Column string
	Desc   bool
}

// Sort orders rows.
type Sort struct {
	base
	Keys []SortKey
}

// Slice keeps rows [Start, End). End < 0 means to the end of the table.
type Slice struct {
	base
	Start, End int
}

// Drop removes columns.
type Drop struct {
	base
	Columns []string
}

// Distinct keeps the first row of each distinct key.
type Distinct struct {
	base
	Columns []string
}

// Write saves the table and passes it through.
type Write struct {
	base
	Spec *dsl.WriteStage
}

// Pipeline binds stages left to right, feeding each stage the schema the
// previous one produced. It returns the bound stages and the final schema.
func (r *Resolver) Pipeline(stages []dsl.Stage, in schema.Schema) ([]Stage, schema.Schema, error) {
	bound := make([]Stage, 0, len(stages))
	current := in
	for i, st := range stages {
		b, err := r.Stage(st, current)
		if err != nil {
			return nil, schema.Schema{}, &StageError{Stage: st.Name(), Index: i, Err: err}
		}
		bound = append(bound, b)
		current = b.Output()
	}
	return bound, current, nil
}

// Stage binds one stage against the schema entering it.
func (r *Resolver) Stage(st dsl.Stage, in schema.Schema) (Stage, error) {
	switch s := st.(type) {
	case *dsl.SelectStage:
		return r.bindSelect(s, in)
	case *dsl.FilterStage:
		return r.bindFilter(s, in)
	case *dsl.MutateStage:
		return r.bindMutate(s, in)
	case *dsl.RenameStage:
		return r.bindRename(s, in)
	case *dsl.RenameAllStage:
		return r.bindRenameAll(s, in)
	case *dsl.SortStage:
		return r.bindSort(s, in)
	case *dsl.TakeStage:
		return &Slice{base: base{"take", in}, Start: 0, End: s.N}, nil
	case *dsl.SkipStage:
		return &Slice{base: base{"skip", in}, Start: s.N, End: -1}, nil
	case *dsl.SliceStage:
		if s.End < s.Start {
			return nil, invalid("slice(%d, %d): end is before start", s.Start, s.End)
		}
		return &Slice{base: base{"slice", in}, Start: s.Start, End: s.End}, nil
	case *dsl.DropStage:
		return r.bindDrop(s, in)
	case *dsl.DistinctStage:
		return r.bindDistinct(s, in)
	case *dsl.WriteStage:
		return &Write{base: base{"write", in}, Spec: s}, nil
	}
	return nil, invalid("unsupported stage %T", st)
}

func (r *Resolver) bindSelect(s *dsl.SelectStage, in schema.Schema) (Stage, error) {
	var cols []Selected
	var out []schema.Column
	seen := make(map[string]bool)

	for _, item := range s.Items {
		names, err := Ref(item.Ref, in)
		if err != nil {
			return nil, err
		}
		if item.Alias != "" && len(names) > 1 {
			return nil, fmt.Errorf("%w: alias '%s' would name %d columns", ErrDuplicateColumn, item.Alias, len(names))
		}
		for _, name := range names {
			target := name
			if item.Alias != "" {
				target = item.Alias
			}
			if seen[target] {
				return nil, fmt.Errorf("%w: '%s' is selected twice; use 'as' to give it another name", ErrDuplicateColumn, target)
			}
			seen[target] = true

			c, _ := in.Lookup(name)
			cols = append(cols, Selected{Source: name, Name: target})
			out = append(out, schema.Column{Name: target, Type: c.Type})
		}
	}

	if len(cols) == 0 {
		return nil, invalid("No columns selected")
	}

	sch, err := schema.New(out...)
	if err != nil {
		return nil, err
	}
	return &Select{base: base{"select", sch}, Columns: cols}, nil
}

func (r *Resolver) bindFilter(s *dsl.FilterStage, in schema.Schema) (Stage, error) {
	cond, err := r.Expr(s.Cond, in)
	if err != nil {
		return nil, err
	}
	if t := cond.Type(); t != schema.Boolean && t != schema.Null {
		return nil, typeMismatch("filter() condition must be true or false, got %s", t)
	}
	return &Filter{base: base{"filter", in}, Cond: cond}, nil
}

func (r *Resolver) bindMutate(s *dsl.MutateStage, in schema.Schema) (Stage, error) {
	current := in
	assigns := make([]Assign, 0, len(s.Assigns))

	for _, a := range s.Assigns {
		name, err := mutateTarget(a.Target, current)
		if err != nil {
			return nil, err
		}
		value, err := r.Expr(a.Value, current)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		assigns = append(assigns, Assign{Name: name, Value: value})
		current = current.Put(schema.Column{Name: name, Type: value.Type()})
	}

	return &Mutate{base: base{"mutate", current}, Assigns: assigns}, nil
}

// mutateTarget names the column an assignment writes. A position past the
// last column creates column_N.
func mutateTarget(target dsl.ColumnRef, s schema.Schema) (string, error) {
	switch t := target.(type) {
	case *dsl.NameRef:
		return t.Name, nil
	case *dsl.PositionRef:
		if t.N < 1 {
			return "", outOfBounds(t.N, s)
		}
		if t.N <= s.Len() {
			return s.Column(t.N - 1).Name, nil
		}
		return fmt.Sprintf("column_%d", t.N), nil
	}
	return "", invalid("mutate target must be a name or $N")
}

func (r *Resolver) bindRename(s *dsl.RenameStage, in schema.Schema) (Stage, error) {
	current := in
	for _, pair := range s.Pairs {
		c, err := Single(pair.From, current)
		if err != nil {
			return nil, err
		}
		if pair.To == "" {
			return nil, invalid("cannot rename '%s' to an empty name", c.Name)
		}
		i, _ := current.Index(c.Name)
		next, err := current.Rename(i, pair.To)
		if err != nil {
			return nil, fmt.Errorf("%w: '%s' already exists", ErrDuplicateColumn, pair.To)
		}
		current = next
	}
	return &Rename{base: base{"rename", current}, Names: current.Names()}, nil
}

func (r *Resolver) bindRenameAll(s *dsl.RenameAllStage, in schema.Schema) (Stage, error) {
	names := in.Names()

	switch strat := s.Strategy.(type) {
	case dsl.RenameReplace:
		for i, n := range names {
			names[i] = strings.ReplaceAll(n, strat.Old, strat.New)
		}

	case dsl.RenameSequence:
		count := strat.End - strat.Start + 1
		if count != len(names) {
			return nil, fmt.Errorf("%w: Range %d..%d (%d columns) doesn't match table width (%d columns). Use select() first.",
				ErrRenameCountMismatch, strat.Start, strat.End, count, len(names))
		}
		for i := range names {
			names[i] = fmt.Sprintf("%s%d", strat.Prefix, strat.Start+i)
		}

	case dsl.RenameCase:
		caser := cases.Lower(language.Und)
		if strat.Upper {
			caser = cases.Upper(language.Und)
		}
		for i, n := range names {
			names[i] = caser.String(n)
		}

	default:
		return nil, invalid("unsupported rename_all strategy %T", s.Strategy)
	}

	cols := in.Columns()
	for i := range cols {
		if names[i] == "" {
			return nil, invalid("rename_all would give column %d an empty name", i+1)
		}
		cols[i].Name = names[i]
	}
	out, err := schema.New(cols...)
	if err != nil {
		return nil, err
	}
	return &Rename{base: base{"rename_all", out}, Names: names}, nil
}

func (r *Resolver) bindSort(s *dsl.SortStage, in schema.Schema) (Stage, error) {
	keys := make([]SortKey, 0, len(s.Keys))
	for _, k := range s.Keys {
		c, err := Single(k.Ref, in)
		if err != nil {
			return nil, err
		}
		keys = append(keys, SortKey{Column: c.Name, Desc: k.Desc})
	}
	return &Sort{base: base{"sort", in}, Keys: keys}, nil
}

func (r *Resolver) bindDrop(s *dsl.DropStage, in schema.Schema) (Stage, error) {
	var drop []string
	seen := make(map[string]bool)
	for _, ref := range s.Refs {
		names, err := Ref(ref, in)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				drop = append(drop, n)
			}
		}
	}
	if len(drop) == in.Len() && in.Len() > 0 {
		return nil, invalid("drop() would remove every column")
	}
	return &Drop{base: base{"drop", in.Without(drop)}, Columns: drop}, nil
}

func (r *Resolver) bindDistinct(s *dsl.DistinctStage, in schema.Schema) (Stage, error) {
	if len(s.Refs) == 0 {
		return &Distinct{base: base{"distinct", in}, Columns: in.Names()}, nil
	}

	var cols []string
	seen := make(map[string]bool)
	for _, ref := range s.Refs {
		names, err := Ref(ref, in)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				cols = append(cols, n)
			}
		}
	}
	if len(cols) == 0 {
		return nil, invalid("distinct() selectors matched no columns")
	}
	return &Distinct{base: base{"distinct", in}, Columns: cols}, nil
}
