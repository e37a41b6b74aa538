// Package vm executes logical plans against tables.
//
// Expressions are evaluated column at a time into value vectors; operations
// are delegated to pkg/table, which stores data in dataframe-go frames.
//
// Basic usage:
//
//	v := vm.NewVM(env)
//	out, err := v.Execute(p, in)
//
// With cancellation and write restrictions:
//
//	v := vm.NewVM(env)
//	v.SetContext(ctx)
//	v.SetSandbox(true, []string{"/data/out"})
//	out, err := v.Execute(p, in)
package vm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/system0x7/dt/pkg/loader"
	"github.com/system0x7/dt/pkg/plan"
	"github.com/system0x7/dt/pkg/schema"
	"github.com/system0x7/dt/pkg/table"
)

// Error definitions
var (
	ErrRowValue         = errors.New("invalid value")
	ErrTableNotFound    = errors.New("table not found")
	ErrColumnNotFound   = errors.New("column not found")
	ErrUnsupported      = errors.New("unsupported plan node")
	ErrFileAccessDenied = errors.New("file access denied in sandbox mode")
)

// ExecError is a failure while executing one operation. Row is the
// zero-based row that failed, or -1 when the failure is not tied to a row.
type ExecError struct {
	Stage string
	Row   int
	Err   error
}

func (e *ExecError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: row %d: %v", e.Stage, e.Row+1, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

func rowErr(row int, err error) error {
	var ee *ExecError
	if errors.As(err, &ee) {
		return err
	}
	return &ExecError{Row: row, Err: err}
}

// Env resolves the tables a plan references by name.
type Env interface {
	Table(name string) (*table.Table, bool)
}

// ExecutionStats contains metrics about plan execution for observability.
type ExecutionStats struct {
	OpsExecuted     int64          // Total operations executed
	RowsProcessed   int64          // Input rows summed over all operations
	ExecutionTimeNs int64          // Execution time in nanoseconds
	OpCounts        map[string]int // Count of each operation executed
}

// VM executes plans.
type VM struct {
	env    Env
	ctx    context.Context
	logger *slog.Logger

	tables  map[string]*table.Table
	indexes map[string]map[any]int

	// Sandbox mode
	sandbox      bool
	allowedPaths []string

	stats        ExecutionStats
	statsEnabled bool
}

// NewVM creates a VM resolving table references through env. env may be
// nil when plans reference no tables.
func NewVM(env Env) *VM {
	return &VM{
		env:    env,
		ctx:    context.Background(),
		logger: slog.New(slog.DiscardHandler),
	}
}

// SetContext sets the context for cancellation/timeout.
func (vm *VM) SetContext(ctx context.Context) {
	vm.ctx = ctx
}

// SetLogger sets the logger for per-operation debug output.
func (vm *VM) SetLogger(logger *slog.Logger) {
	if logger != nil {
		vm.logger = logger
	}
}

// SetSandbox enables sandbox mode. In sandbox mode files may only be
// accessed under allowedPaths.
func (vm *VM) SetSandbox(enabled bool, allowedPaths []string) {
	vm.sandbox = enabled
	vm.allowedPaths = allowedPaths
}

// EnableStats enables execution statistics collection.
func (vm *VM) EnableStats() {
	vm.statsEnabled = true
	vm.stats = ExecutionStats{OpCounts: make(map[string]int)}
}

// Stats returns the execution statistics accumulated since EnableStats.
// Returns nil if stats were not enabled.
func (vm *VM) Stats() *ExecutionStats {
	if !vm.statsEnabled {
		return nil
	}
	return &vm.stats
}

// CheckPath reports whether path may be accessed under the sandbox.
func (vm *VM) CheckPath(path string) error {
	if !vm.sandbox || vm.isPathAllowed(path) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrFileAccessDenied, path)
}

func (vm *VM) isPathAllowed(path string) bool {
	path = filepath.Clean(path)
	for _, allowed := range vm.allowedPaths {
		allowed = filepath.Clean(allowed)
		if path == allowed || strings.HasPrefix(path, allowed+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Execute runs every operation of p in order, starting from in.
func (vm *VM) Execute(p *plan.Plan, in *table.Table) (*table.Table, error) {
	var startTime time.Time
	if vm.statsEnabled {
		startTime = time.Now()
	}

	vm.tables = make(map[string]*table.Table, len(p.Tables))
	vm.indexes = make(map[string]map[any]int)
	for _, name := range p.Tables {
		var t *table.Table
		ok := false
		if vm.env != nil {
			t, ok = vm.env.Table(name)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
		}
		vm.tables[name] = t
	}

	cur := in
	for _, op := range p.Ops {
		select {
		case <-vm.ctx.Done():
			return nil, vm.ctx.Err()
		default:
		}

		if vm.statsEnabled {
			vm.stats.OpsExecuted++
			vm.stats.RowsProcessed += int64(cur.NRows())
			vm.stats.OpCounts[op.Name()]++
		}

		next, err := vm.step(op, cur)
		if err != nil {
			var ee *ExecError
			if errors.As(err, &ee) {
				if ee.Stage == "" {
					ee.Stage = op.Name()
				}
				return nil, ee
			}
			return nil, &ExecError{Stage: op.Name(), Row: -1, Err: err}
		}
		vm.logger.Debug("executed operation", "op", op.Name(), "rows_in", cur.NRows(), "rows_out", next.NRows())
		cur = next
	}

	if vm.statsEnabled {
		vm.stats.ExecutionTimeNs += time.Since(startTime).Nanoseconds()
	}
	return cur, nil
}

func (vm *VM) step(op plan.Op, t *table.Table) (*table.Table, error) {
	switch o := op.(type) {
	case *plan.Filter:
		return vm.filter(o, t)

	case *plan.Mutate:
		for _, a := range o.Assigns {
			vals, err := vm.eval(a.Expr, t)
			if err != nil {
				return nil, err
			}
			typ := a.Expr.Type()
			if typ == schema.Null {
				typ = table.InferType(vals)
			}
			t, err = t.Put(schema.Column{Name: a.Name, Type: typ}, vals)
			if err != nil {
				return nil, err
			}
		}
		return t, nil

	case *plan.Project:
		sources := make([]string, len(o.Columns))
		names := make([]string, len(o.Columns))
		for i, c := range o.Columns {
			sources[i], names[i] = c.Source, c.Name
		}
		return t.Select(sources, names)

	case *plan.Rename:
		return t.Rename(o.Names)

	case *plan.Sort:
		keys := make([]table.SortKey, len(o.Keys))
		for i, k := range o.Keys {
			keys[i] = table.SortKey{Column: k.Column, Desc: k.Desc}
		}
		return t.Sort(vm.ctx, keys)

	case *plan.Slice:
		return t.Slice(o.Start, o.End), nil

	case *plan.Drop:
		return t.Drop(o.Columns)

	case *plan.Distinct:
		return vm.distinct(o, t)

	case *plan.Write:
		if err := vm.CheckPath(o.Path); err != nil {
			return nil, err
		}
		err := loader.Write(vm.ctx, o.Path, t, loader.WriteOptions{
			Format:      o.Format,
			Delimiter:   o.Delimiter,
			Header:      o.Header,
			Compression: o.Compression,
			Logger:      vm.logger,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupported, op)
}

func (vm *VM) filter(o *plan.Filter, t *table.Table) (*table.Table, error) {
	vals, err := vm.eval(o.Pred, t)
	if err != nil {
		return nil, err
	}
	keep, _, err := truth(vals)
	if err != nil {
		return nil, err
	}
	if keep.PopCount() == t.NRows() {
		return t, nil
	}
	return t.Filter(vm.ctx, keep.IsSet)
}

func (vm *VM) distinct(o *plan.Distinct, t *table.Table) (*table.Table, error) {
	names := o.Columns
	if len(names) == 0 {
		names = t.Schema().Names()
	}
	cols := make([][]any, len(names))
	for i, name := range names {
		vals, err := t.Values(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
		}
		cols[i] = vals
	}

	n := t.NRows()
	seen := make(map[string]struct{}, n)
	indices := make([]int, 0, n)
	for r := 0; r < n; r++ {
		k := rowKey(cols, r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		indices = append(indices, r)
	}
	if len(indices) == n {
		return t, nil
	}
	return t.Take(indices), nil
}

// eval computes e for every row of t.
func (vm *VM) eval(e plan.Expr, t *table.Table) ([]any, error) {
	n := t.NRows()

	switch x := e.(type) {
	case *plan.Col:
		vals, err := t.Values(x.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, x.Name)
		}
		return vals, nil

	case *plan.Const:
		out := make([]any, n)
		for i := range out {
			out[i] = x.Value
		}
		return out, nil

	case *plan.Arith:
		return vm.binary(x.Left, x.Right, t, func(a, b any) (any, error) {
			v, err := arith(x.Op, a, b)
			if f, ok := v.(int64); ok && x.T == schema.Float {
				return float64(f), err
			}
			return v, err
		})

	case *plan.Concat:
		return vm.binary(x.Left, x.Right, t, func(a, b any) (any, error) {
			return asString(a) + asString(b), nil
		})

	case *plan.ToString:
		return vm.unary(x.Operand, t, func(v any) (any, error) {
			return asString(v), nil
		})

	case *plan.DynamicAdd:
		return vm.dynamicAdd(x, t)

	case *plan.Compare:
		return vm.binary(x.Left, x.Right, t, func(a, b any) (any, error) {
			return compare(x.Op, a, b)
		})

	case *plan.Logic:
		return vm.logic(x, t)

	case *plan.Not:
		vals, err := vm.eval(x.Operand, t)
		if err != nil {
			return nil, err
		}
		isTrue, isFalse, err := truth(vals)
		if err != nil {
			return nil, err
		}
		return fromTruth(isFalse, isTrue), nil

	case *plan.Neg:
		return vm.unary(x.Operand, t, func(v any) (any, error) {
			num, err := toNumber(v)
			if err != nil {
				return nil, err
			}
			if i, ok := num.(int64); ok {
				if x.T == schema.Float {
					return -float64(i), nil
				}
				return -i, nil
			}
			return -num.(float64), nil
		})

	case *plan.Split:
		return vm.binary(x.Text, x.Sep, t, func(text, sep any) (any, error) {
			parts := strings.Split(asString(text), asString(sep))
			if x.Index < 0 || x.Index >= len(parts) {
				return nil, nil
			}
			return parts[x.Index], nil
		})

	case *plan.ReplaceLiteral:
		return vm.binary(x.Text, x.With, t, func(text, with any) (any, error) {
			if x.Old == "" {
				return asString(text), nil
			}
			return strings.ReplaceAll(asString(text), x.Old, asString(with)), nil
		})

	case *plan.ReplaceRegex:
		return vm.binary(x.Text, x.With, t, func(text, with any) (any, error) {
			return x.Pattern.ReplaceAllString(asString(text), asString(with)), nil
		})

	case *plan.Lookup:
		return vm.lookup(x, t)

	case *plan.InSet:
		set := make(map[any]struct{}, len(x.Values))
		for _, v := range x.Values {
			if v != nil {
				set[keyOf(v)] = struct{}{}
			}
		}
		return vm.member(x.Operand, set, t)

	case *plan.InTable:
		other := vm.tables[x.Table]
		if other == nil {
			return nil, fmt.Errorf("%w: %s", ErrTableNotFound, x.Table)
		}
		vals, err := other.Values(x.Column)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s", ErrColumnNotFound, x.Table, x.Column)
		}
		set := make(map[any]struct{}, len(vals))
		for _, v := range vals {
			if v != nil {
				set[keyOf(v)] = struct{}{}
			}
		}
		return vm.member(x.Operand, set, t)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupported, e)
}

// unary applies fn to each non-null value; nulls propagate.
func (vm *VM) unary(operand plan.Expr, t *table.Table, fn func(any) (any, error)) ([]any, error) {
	vals, err := vm.eval(operand, t)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		if out[i], err = fn(v); err != nil {
			return nil, rowErr(i, err)
		}
	}
	return out, nil
}

// binary applies fn row by row where both operands are present; a null on
// either side yields null.
func (vm *VM) binary(left, right plan.Expr, t *table.Table, fn func(a, b any) (any, error)) ([]any, error) {
	l, err := vm.eval(left, t)
	if err != nil {
		return nil, err
	}
	r, err := vm.eval(right, t)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(l))
	for i := range l {
		if l[i] == nil || r[i] == nil {
			continue
		}
		if out[i], err = fn(l[i], r[i]); err != nil {
			return nil, rowErr(i, err)
		}
	}
	return out, nil
}

// dynamicAdd decides between addition and concatenation from the first row
// holding two values, then applies that choice to every row.
func (vm *VM) dynamicAdd(x *plan.DynamicAdd, t *table.Table) ([]any, error) {
	l, err := vm.eval(x.Left, t)
	if err != nil {
		return nil, err
	}
	r, err := vm.eval(x.Right, t)
	if err != nil {
		return nil, err
	}

	concat := false
	for i := range l {
		if l[i] == nil || r[i] == nil {
			continue
		}
		_, ls := l[i].(string)
		_, rs := r[i].(string)
		concat = ls || rs
		break
	}

	out := make([]any, len(l))
	for i := range l {
		if l[i] == nil || r[i] == nil {
			continue
		}
		if concat {
			out[i] = asString(l[i]) + asString(r[i])
			continue
		}
		if out[i], err = arith(plan.Add, l[i], r[i]); err != nil {
			return nil, rowErr(i, err)
		}
	}
	return out, nil
}

func compare(op plan.CompareOp, a, b any) (any, error) {
	c, err := compareValues(a, b)
	if err != nil {
		// Values of unrelated kinds are simply unequal.
		switch op {
		case plan.Eq:
			return false, nil
		case plan.Ne:
			return true, nil
		}
		return nil, err
	}
	switch op {
	case plan.Eq:
		return c == 0, nil
	case plan.Ne:
		return c != 0, nil
	case plan.Lt:
		return c < 0, nil
	case plan.Le:
		return c <= 0, nil
	case plan.Gt:
		return c > 0, nil
	case plan.Ge:
		return c >= 0, nil
	}
	return nil, fmt.Errorf("unknown operator %s", op)
}

// logic evaluates Kleene and/or over the true and false planes of both
// operands.
func (vm *VM) logic(x *plan.Logic, t *table.Table) ([]any, error) {
	l, err := vm.eval(x.Left, t)
	if err != nil {
		return nil, err
	}
	r, err := vm.eval(x.Right, t)
	if err != nil {
		return nil, err
	}
	lt, lf, err := truth(l)
	if err != nil {
		return nil, err
	}
	rt, rf, err := truth(r)
	if err != nil {
		return nil, err
	}
	if x.Op == plan.And {
		return fromTruth(lt.And(rt), lf.Or(rf)), nil
	}
	return fromTruth(lt.Or(rt), lf.And(rf)), nil
}

// lookup joins each key against the first matching row of the lookup table.
func (vm *VM) lookup(x *plan.Lookup, t *table.Table) ([]any, error) {
	other := vm.tables[x.Table]
	if other == nil {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, x.Table)
	}
	ret, err := other.Values(x.Return)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrColumnNotFound, x.Table, x.Return)
	}

	cacheKey := x.Table + "\x00" + x.On
	index, ok := vm.indexes[cacheKey]
	if !ok {
		on, err := other.Values(x.On)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s", ErrColumnNotFound, x.Table, x.On)
		}
		index = buildIndex(on)
		vm.indexes[cacheKey] = index
	}

	keys, err := vm.eval(x.Key, t)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(keys))
	for i, k := range keys {
		if k == nil {
			continue
		}
		if row, found := index[keyOf(k)]; found {
			out[i] = ret[row]
		}
	}
	return out, nil
}

func (vm *VM) member(operand plan.Expr, set map[any]struct{}, t *table.Table) ([]any, error) {
	return vm.unary(operand, t, func(v any) (any, error) {
		_, ok := set[keyOf(v)]
		return ok, nil
	})
}
