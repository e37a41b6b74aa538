package optimizer

import (
	"github.com/system0x7/dt/pkg/plan"
)

// WithDeadCodeElimination enables dead code elimination.
func WithDeadCodeElimination() Option {
	return func(o *Optimizer) {
		o.enableDeadCode = true
	}
}

// deadCodeElimination removes operations that cannot change the table and
// fuses consecutive slices.
//
//	FILTER true        removed
//	FILTER false       SLICE 0..0
//	SLICE 0..          removed
//	SLICE 2.. ; SLICE 0..5   SLICE 2..7
func (o *Optimizer) deadCodeElimination(p *plan.Plan) *plan.Plan {
	ops := make([]plan.Op, 0, len(p.Ops))

	for _, op := range p.Ops {
		switch n := op.(type) {
		case *plan.Filter:
			if c, ok := n.Pred.(*plan.Const); ok {
				if c.Value == true {
					continue
				}
				// false and null both drop every row
				op = &plan.Slice{Label: "filter", Start: 0, End: 0}
			}
		}

		if s, ok := op.(*plan.Slice); ok {
			if s.Start <= 0 && s.End < 0 {
				continue
			}
			if len(ops) > 0 {
				if prev, ok := ops[len(ops)-1].(*plan.Slice); ok {
					ops[len(ops)-1] = fuseSlices(prev, s)
					continue
				}
			}
		}

		ops = append(ops, op)
	}

	return &plan.Plan{Ops: ops, Output: p.Output, Tables: p.Tables}
}

// fuseSlices returns the single slice equal to applying a then b.
func fuseSlices(a, b *plan.Slice) *plan.Slice {
	start := a.Start + b.Start
	end := a.End
	if b.End >= 0 {
		end = a.Start + b.End
		if a.End >= 0 && end > a.End {
			end = a.End
		}
	}
	if end >= 0 && start > end {
		start = end
	}
	return &plan.Slice{Label: a.Label, Start: start, End: end}
}
