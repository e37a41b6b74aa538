package optimizer

import (
	"github.com/system0x7/dt/pkg/plan"
)

// projectionPruning collapses chains of column-shaping operations into one
// projection.
//
// For example:
//
//	PROJECT a, b as x, c
//	PROJECT x as y, c
//	DROP c
//
// Becomes:
//
//	PROJECT b as y
func (o *Optimizer) projectionPruning(p *plan.Plan) *plan.Plan {
	ops := make([]plan.Op, 0, len(p.Ops))

	for _, op := range p.Ops {
		if len(ops) == 0 {
			ops = append(ops, op)
			continue
		}
		prev, ok := ops[len(ops)-1].(*plan.Project)
		if !ok {
			ops = append(ops, op)
			continue
		}

		switch n := op.(type) {
		case *plan.Project:
			ops[len(ops)-1] = composeProjects(prev, n)
		case *plan.Drop:
			if pruned := dropFromProject(prev, n); pruned != nil {
				ops[len(ops)-1] = pruned
			} else {
				ops = append(ops, op)
			}
		default:
			ops = append(ops, op)
		}
	}

	return &plan.Plan{Ops: ops, Output: p.Output, Tables: p.Tables}
}

func composeProjects(first, second *plan.Project) *plan.Project {
	source := make(map[string]string, len(first.Columns))
	for _, c := range first.Columns {
		source[c.Name] = c.Source
	}
	cols := make([]plan.Column, len(second.Columns))
	for i, c := range second.Columns {
		cols[i] = plan.Column{Source: source[c.Source], Name: c.Name}
	}
	return &plan.Project{Columns: cols}
}

// dropFromProject removes dropped columns from a projection. It returns nil
// when nothing would remain.
func dropFromProject(proj *plan.Project, drop *plan.Drop) *plan.Project {
	gone := make(map[string]bool, len(drop.Columns))
	for _, c := range drop.Columns {
		gone[c] = true
	}
	var cols []plan.Column
	for _, c := range proj.Columns {
		if !gone[c.Name] {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return nil
	}
	return &plan.Project{Columns: cols}
}
