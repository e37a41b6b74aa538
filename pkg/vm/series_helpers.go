package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/system0x7/dt/pkg/plan"
	"github.com/system0x7/dt/pkg/table"
)

// toNumber returns v as int64 or float64. Strings are parsed; a string that
// is not a number is a row value error.
func toNumber(v any) (any, error) {
	switch val := v.(type) {
	case int64, float64:
		return val, nil
	case string:
		s := strings.TrimSpace(val)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, nil
		}
		return nil, fmt.Errorf("%w: cannot use '%s' as a number", ErrRowValue, val)
	}
	return nil, fmt.Errorf("%w: cannot use %s as a number", ErrRowValue, plan.FormatValue(v))
}

// asFloat widens a value returned by toNumber.
func asFloat(v any) float64 {
	f, _ := table.Number(v)
	return f
}

// asString converts any non-nil value to its text form.
func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return plan.FormatValue(v)
}

// keyOf normalizes a value for equality lookups: integers and floats with
// the same numeric value share a key.
func keyOf(v any) any {
	if i, ok := v.(int64); ok {
		return float64(i)
	}
	return v
}

// buildIndex maps each distinct non-null value to the first row holding it.
func buildIndex(col []any) map[any]int {
	index := make(map[any]int, len(col))
	for i, v := range col {
		if v == nil {
			continue
		}
		k := keyOf(v)
		if _, seen := index[k]; !seen {
			index[k] = i
		}
	}
	return index
}

// rowKey builds a distinct key for one row over several columns.
func rowKey(cols [][]any, row int) string {
	var sb strings.Builder
	for _, c := range cols {
		switch v := c[row].(type) {
		case nil:
			sb.WriteString("n")
		case int64:
			sb.WriteString("d" + plan.FormatFloat(float64(v)))
		case float64:
			sb.WriteString("d" + plan.FormatFloat(v))
		case bool:
			sb.WriteString("b" + strconv.FormatBool(v))
		default:
			sb.WriteString("s" + asString(v))
		}
		sb.WriteByte(0)
	}
	return sb.String()
}

// compareValues orders two non-null values. A number compared with a
// string parses the string; when that fails it is a row value error.
func compareValues(a, b any) (int, error) {
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs), nil
		}
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok {
			return 0, fmt.Errorf("%w: cannot compare %v with %s", ErrRowValue, ab, plan.FormatValue(b))
		}
		switch {
		case ab == bb:
			return 0, nil
		case !ab:
			return -1, nil
		}
		return 1, nil
	}

	an, err := toNumber(a)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot compare '%s' with %s", ErrRowValue, asString(a), plan.FormatValue(b))
	}
	bn, err := toNumber(b)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot compare %s with '%s'", ErrRowValue, plan.FormatValue(a), asString(b))
	}
	if ai, ok := an.(int64); ok {
		if bi, ok := bn.(int64); ok {
			switch {
			case ai < bi:
				return -1, nil
			case ai > bi:
				return 1, nil
			}
			return 0, nil
		}
	}
	af, bf := asFloat(an), asFloat(bn)
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	}
	return 0, nil
}

// arith applies op to two non-null values. Integer operands stay integer
// except for division; division by zero yields null.
func arith(op plan.ArithOp, a, b any) (any, error) {
	an, err := toNumber(a)
	if err != nil {
		return nil, err
	}
	bn, err := toNumber(b)
	if err != nil {
		return nil, err
	}

	ai, aInt := an.(int64)
	bi, bInt := bn.(int64)
	if aInt && bInt && op != plan.Div {
		switch op {
		case plan.Add:
			return ai + bi, nil
		case plan.Sub:
			return ai - bi, nil
		case plan.Mul:
			return ai * bi, nil
		}
	}

	af, bf := asFloat(an), asFloat(bn)
	switch op {
	case plan.Add:
		return af + bf, nil
	case plan.Sub:
		return af - bf, nil
	case plan.Mul:
		return af * bf, nil
	case plan.Div:
		if bf == 0 {
			return nil, nil
		}
		return af / bf, nil
	}
	return nil, fmt.Errorf("unknown operator %s", op)
}

// truth splits a boolean vector into its true and false planes. Null rows
// are in neither.
func truth(vals []any) (isTrue, isFalse *Bitmap, err error) {
	isTrue, isFalse = NewBitmap(len(vals)), NewBitmap(len(vals))
	for i, v := range vals {
		switch b := v.(type) {
		case nil:
		case bool:
			if b {
				isTrue.Set(i)
			} else {
				isFalse.Set(i)
			}
		default:
			return nil, nil, rowErr(i, fmt.Errorf("%w: expected true or false, got %s", ErrRowValue, plan.FormatValue(v)))
		}
	}
	return isTrue, isFalse, nil
}

// fromTruth rebuilds a boolean vector from its planes.
func fromTruth(isTrue, isFalse *Bitmap) []any {
	out := make([]any, isTrue.Len())
	for i := range out {
		switch {
		case isTrue.IsSet(i):
			out[i] = true
		case isFalse.IsSet(i):
			out[i] = false
		}
	}
	return out
}
