package optimizer

import (
	"github.com/system0x7/dt/pkg/plan"
	"github.com/system0x7/dt/pkg/schema"
)

// constantFolding evaluates expressions over literals once, at compile time.
// For example:
//
//	MUTATE total = (price * (1 + 0.2))
//
// Becomes:
//
//	MUTATE total = (price * 1.2)
//
// Division by zero and anything that could fail per row is left alone.
func (o *Optimizer) constantFolding(p *plan.Plan) *plan.Plan {
	ops := make([]plan.Op, len(p.Ops))

	for i, op := range p.Ops {
		switch n := op.(type) {
		case *plan.Filter:
			ops[i] = &plan.Filter{Pred: transform(n.Pred, fold)}

		case *plan.Mutate:
			assigns := make([]plan.Assign, len(n.Assigns))
			for j, a := range n.Assigns {
				assigns[j] = plan.Assign{Name: a.Name, Expr: transform(a.Expr, fold)}
			}
			ops[i] = &plan.Mutate{Assigns: assigns}

		default:
			ops[i] = op
		}
	}

	return &plan.Plan{Ops: ops, Output: p.Output, Tables: p.Tables}
}

func constant(e plan.Expr) (any, bool) {
	c, ok := e.(*plan.Const)
	if !ok {
		return nil, false
	}
	return c.Value, true
}

func fold(e plan.Expr) plan.Expr {
	switch n := e.(type) {
	case *plan.Arith:
		l, lok := constant(n.Left)
		r, rok := constant(n.Right)
		if !lok || !rok {
			return e
		}
		if l == nil || r == nil {
			return &plan.Const{Value: nil, T: n.T}
		}
		if v, ok := foldArith(n.Op, l, r); ok {
			return &plan.Const{Value: v, T: n.T}
		}

	case *plan.DynamicAdd:
		l, lok := constant(n.Left)
		r, rok := constant(n.Right)
		if (lok && l == nil) || (rok && r == nil) {
			return &plan.Const{Value: nil, T: schema.Null}
		}

	case *plan.Concat:
		l, lok := constant(n.Left)
		r, rok := constant(n.Right)
		if !lok || !rok {
			return e
		}
		if l == nil || r == nil {
			return &plan.Const{Value: nil, T: schema.String}
		}
		ls, lok := l.(string)
		rs, rok := r.(string)
		if lok && rok {
			return &plan.Const{Value: ls + rs, T: schema.String}
		}

	case *plan.ToString:
		v, ok := constant(n.Operand)
		if !ok {
			return e
		}
		if v == nil {
			return &plan.Const{Value: nil, T: schema.String}
		}
		return &plan.Const{Value: plan.FormatValue(v), T: schema.String}

	case *plan.Compare:
		l, lok := constant(n.Left)
		r, rok := constant(n.Right)
		if !lok || !rok {
			return e
		}
		if l == nil || r == nil {
			return &plan.Const{Value: nil, T: schema.Boolean}
		}
		if v, ok := foldCompare(n.Op, l, r); ok {
			return &plan.Const{Value: v, T: schema.Boolean}
		}

	case *plan.Logic:
		return foldLogic(n)

	case *plan.Not:
		v, ok := constant(n.Operand)
		if !ok {
			return e
		}
		if b, isBool := v.(bool); isBool {
			return &plan.Const{Value: !b, T: schema.Boolean}
		}
		if v == nil {
			return &plan.Const{Value: nil, T: schema.Boolean}
		}

	case *plan.Neg:
		v, ok := constant(n.Operand)
		if !ok {
			return e
		}
		switch x := v.(type) {
		case nil:
			return &plan.Const{Value: nil, T: n.T}
		case int64:
			return &plan.Const{Value: -x, T: n.T}
		case float64:
			return &plan.Const{Value: -x, T: n.T}
		}
	}

	return e
}

func foldArith(op plan.ArithOp, l, r any) (any, bool) {
	li, lInt := l.(int64)
	ri, rInt := r.(int64)
	if lInt && rInt && op != plan.Div {
		switch op {
		case plan.Add:
			return li + ri, true
		case plan.Sub:
			return li - ri, true
		case plan.Mul:
			return li * ri, true
		}
	}

	lf, lok := number(l)
	rf, rok := number(r)
	if !lok || !rok {
		return nil, false
	}
	switch op {
	case plan.Add:
		return lf + rf, true
	case plan.Sub:
		return lf - rf, true
	case plan.Mul:
		return lf * rf, true
	case plan.Div:
		if rf == 0 {
			return nil, false
		}
		return lf / rf, true
	}
	return nil, false
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func foldCompare(op plan.CompareOp, l, r any) (bool, bool) {
	var c int
	lf, lok := number(l)
	rf, rok := number(r)
	ls, lsok := l.(string)
	rs, rsok := r.(string)

	switch {
	case lok && rok:
		c = cmp3(lf < rf, lf > rf)
	case lsok && rsok:
		c = cmp3(ls < rs, ls > rs)
	default:
		lb, lbok := l.(bool)
		rb, rbok := r.(bool)
		if !lbok || !rbok {
			return false, false
		}
		c = cmp3(!lb && rb, lb && !rb)
	}

	switch op {
	case plan.Eq:
		return c == 0, true
	case plan.Ne:
		return c != 0, true
	case plan.Lt:
		return c < 0, true
	case plan.Le:
		return c <= 0, true
	case plan.Gt:
		return c > 0, true
	case plan.Ge:
		return c >= 0, true
	}
	return false, false
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

// foldLogic folds and/or when the result no longer depends on the other
// operand: false and x, true or x.
func foldLogic(n *plan.Logic) plan.Expr {
	absorbing := n.Op == plan.Or
	l, lok := constant(n.Left)
	r, rok := constant(n.Right)

	if b, ok := l.(bool); lok && ok && b == absorbing {
		return &plan.Const{Value: absorbing, T: schema.Boolean}
	}
	if b, ok := r.(bool); rok && ok && b == absorbing {
		return &plan.Const{Value: absorbing, T: schema.Boolean}
	}
	if !lok || !rok {
		return n
	}
	if l == nil || r == nil {
		return &plan.Const{Value: nil, T: schema.Boolean}
	}
	return &plan.Const{Value: !absorbing, T: schema.Boolean}
}
