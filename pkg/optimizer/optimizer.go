package optimizer

import (
	"github.com/system0x7/dt/pkg/plan"
)

// Optimizer applies rewrites to a compiled plan. Every rewrite preserves
// the rows and columns the plan produces.
type Optimizer struct {
	enableConstantFolding   bool
	enablePredicatePushdown bool
	enableProjectionPruning bool
	enableDeadCode          bool
}

// Option is a functional option for the Optimizer.
type Option func(*Optimizer)

// WithConstantFolding enables constant folding optimization.
func WithConstantFolding() Option {
	return func(o *Optimizer) {
		o.enableConstantFolding = true
	}
}

// WithPredicatePushdown enables predicate pushdown optimization.
func WithPredicatePushdown() Option {
	return func(o *Optimizer) {
		o.enablePredicatePushdown = true
	}
}

// WithProjectionPruning enables projection pruning optimization.
func WithProjectionPruning() Option {
	return func(o *Optimizer) {
		o.enableProjectionPruning = true
	}
}

// WithAllOptimizations enables all optimizations.
func WithAllOptimizations() Option {
	return func(o *Optimizer) {
		o.enableConstantFolding = true
		o.enablePredicatePushdown = true
		o.enableProjectionPruning = true
		o.enableDeadCode = true
	}
}

// New creates a new Optimizer with the given options.
func New(opts ...Option) *Optimizer {
	opt := &Optimizer{}
	for _, o := range opts {
		o(opt)
	}
	return opt
}

// Optimize applies enabled optimizations to the plan. The input plan is
// not modified.
func (o *Optimizer) Optimize(p *plan.Plan) *plan.Plan {
	result := &plan.Plan{
		Ops:    append([]plan.Op(nil), p.Ops...),
		Output: p.Output,
		Tables: p.Tables,
	}

	if o.enableConstantFolding {
		result = o.constantFolding(result)
	}

	if o.enablePredicatePushdown {
		result = o.predicatePushdown(result)
	}

	if o.enableProjectionPruning {
		result = o.projectionPruning(result)
	}

	if o.enableDeadCode {
		result = o.deadCodeElimination(result)
	}

	return result
}

// transform rebuilds e bottom-up, replacing every node with fn(node).
// Nodes are copied, never modified in place.
func transform(e plan.Expr, fn func(plan.Expr) plan.Expr) plan.Expr {
	switch n := e.(type) {
	case *plan.Arith:
		c := *n
		c.Left, c.Right = transform(n.Left, fn), transform(n.Right, fn)
		return fn(&c)
	case *plan.Concat:
		c := *n
		c.Left, c.Right = transform(n.Left, fn), transform(n.Right, fn)
		return fn(&c)
	case *plan.DynamicAdd:
		c := *n
		c.Left, c.Right = transform(n.Left, fn), transform(n.Right, fn)
		return fn(&c)
	case *plan.Compare:
		c := *n
		c.Left, c.Right = transform(n.Left, fn), transform(n.Right, fn)
		return fn(&c)
	case *plan.Logic:
		c := *n
		c.Left, c.Right = transform(n.Left, fn), transform(n.Right, fn)
		return fn(&c)
	case *plan.ToString:
		c := *n
		c.Operand = transform(n.Operand, fn)
		return fn(&c)
	case *plan.Not:
		c := *n
		c.Operand = transform(n.Operand, fn)
		return fn(&c)
	case *plan.Neg:
		c := *n
		c.Operand = transform(n.Operand, fn)
		return fn(&c)
	case *plan.Split:
		c := *n
		c.Text, c.Sep = transform(n.Text, fn), transform(n.Sep, fn)
		return fn(&c)
	case *plan.ReplaceLiteral:
		c := *n
		c.Text, c.With = transform(n.Text, fn), transform(n.With, fn)
		return fn(&c)
	case *plan.ReplaceRegex:
		c := *n
		c.Text, c.With = transform(n.Text, fn), transform(n.With, fn)
		return fn(&c)
	case *plan.Lookup:
		c := *n
		c.Key = transform(n.Key, fn)
		return fn(&c)
	case *plan.InSet:
		c := *n
		c.Operand = transform(n.Operand, fn)
		return fn(&c)
	case *plan.InTable:
		c := *n
		c.Operand = transform(n.Operand, fn)
		return fn(&c)
	}
	return fn(e)
}

// columns lists the current-table columns e reads.
func columns(e plan.Expr) []string {
	var out []string
	transform(e, func(n plan.Expr) plan.Expr {
		if c, ok := n.(*plan.Col); ok {
			out = append(out, c.Name)
		}
		return n
	})
	return out
}
