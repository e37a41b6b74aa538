package optimizer

import (
	"github.com/system0x7/dt/pkg/plan"
)

// predicatePushdown moves filters ahead of operations that do not change
// which rows exist, so that later stages see fewer rows.
//
// For example:
//
//	SORT price desc
//	PROJECT id, price as cost
//	FILTER (cost > 10)
//
// Becomes:
//
//	FILTER (price > 10)
//	SORT price desc
//	PROJECT id, price as cost
//
// A filter crosses sort, drop and projection; column references are mapped
// back through a projection's renames. It never crosses a slice, mutate,
// distinct, rename or write.
func (o *Optimizer) predicatePushdown(p *plan.Plan) *plan.Plan {
	ops := append([]plan.Op(nil), p.Ops...)

	changed := true
	for changed {
		changed = false
		for i := 1; i < len(ops); i++ {
			f, ok := ops[i].(*plan.Filter)
			if !ok {
				continue
			}
			moved, ok := pushPast(f, ops[i-1])
			if !ok {
				continue
			}
			ops[i-1], ops[i] = moved, ops[i-1]
			changed = true
		}
	}

	return &plan.Plan{Ops: ops, Output: p.Output, Tables: p.Tables}
}

// pushPast returns the filter rewritten to run before prev.
func pushPast(f *plan.Filter, prev plan.Op) (*plan.Filter, bool) {
	switch n := prev.(type) {
	case *plan.Sort, *plan.Drop:
		return f, true

	case *plan.Project:
		source := make(map[string]string, len(n.Columns))
		for _, c := range n.Columns {
			source[c.Name] = c.Source
		}
		for _, name := range columns(f.Pred) {
			if _, ok := source[name]; !ok {
				return nil, false
			}
		}
		pred := transform(f.Pred, func(e plan.Expr) plan.Expr {
			if c, ok := e.(*plan.Col); ok {
				return &plan.Col{Name: source[c.Name], T: c.T}
			}
			return e
		})
		return &plan.Filter{Pred: pred}, true
	}

	return nil, false
}
