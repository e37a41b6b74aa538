package resolve

import (
	"fmt"
	"regexp"

	"github.com/system0x7/dt/pkg/dsl"
	"github.com/system0x7/dt/pkg/schema"
)

// Ref resolves a column reference against a schema. Multi-column forms
// (range, regex, type class, all, except) return matches in schema order.
// The result depends only on ref and s.
func Ref(ref dsl.ColumnRef, s schema.Schema) ([]string, error) {
	idx, err := refIndices(ref, s)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(idx))
	for i, j := range idx {
		names[i] = s.Column(j).Name
	}
	return names, nil
}

// Single resolves a reference that must denote exactly one existing column.
func Single(ref dsl.ColumnRef, s schema.Schema) (schema.Column, error) {
	switch r := ref.(type) {
	case *dsl.NameRef:
		c, ok := s.Lookup(r.Name)
		if !ok {
			return schema.Column{}, unknownColumn(r.Name, s)
		}
		return c, nil
	case *dsl.PositionRef:
		if r.N < 1 || r.N > s.Len() {
			return schema.Column{}, outOfBounds(r.N, s)
		}
		return s.Column(r.N - 1), nil
	}

	names, err := Ref(ref, s)
	if err != nil {
		return schema.Column{}, err
	}
	if len(names) != 1 {
		return schema.Column{}, invalid("%s selects %d columns where exactly one is needed", describeRef(ref), len(names))
	}
	c, _ := s.Lookup(names[0])
	return c, nil
}

func refIndices(ref dsl.ColumnRef, s schema.Schema) ([]int, error) {
	switch r := ref.(type) {
	case *dsl.NameRef:
		i, ok := s.Index(r.Name)
		if !ok {
			return nil, unknownColumn(r.Name, s)
		}
		return []int{i}, nil

	case *dsl.PositionRef:
		if r.N < 1 || r.N > s.Len() {
			return nil, outOfBounds(r.N, s)
		}
		return []int{r.N - 1}, nil

	case *dsl.RangeRef:
		if r.From > r.To {
			return nil, invalid("range $%d..$%d starts after it ends", r.From, r.To)
		}
		if r.From < 1 || r.From > s.Len() {
			return nil, outOfBounds(r.From, s)
		}
		if r.To > s.Len() {
			return nil, outOfBounds(r.To, s)
		}
		out := make([]int, 0, r.To-r.From+1)
		for i := r.From - 1; i < r.To; i++ {
			out = append(out, i)
		}
		return out, nil

	case *dsl.RegexRef:
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w '%s': %v", ErrRegex, r.Pattern, err)
		}
		var out []int
		for i := 0; i < s.Len(); i++ {
			if re.MatchString(s.Column(i).Name) {
				out = append(out, i)
			}
		}
		return out, nil

	case *dsl.TypeRef:
		var out []int
		for i := 0; i < s.Len(); i++ {
			for _, class := range r.Classes {
				if class.Matches(s.Column(i).Type) {
					out = append(out, i)
					break
				}
			}
		}
		return out, nil

	case *dsl.AllRef:
		out := make([]int, s.Len())
		for i := range out {
			out[i] = i
		}
		return out, nil

	case *dsl.ExceptRef:
		excluded, err := refIndices(r.Ref, s)
		if err != nil {
			return nil, err
		}
		skip := make(map[int]bool, len(excluded))
		for _, i := range excluded {
			skip[i] = true
		}
		var out []int
		for i := 0; i < s.Len(); i++ {
			if !skip[i] {
				out = append(out, i)
			}
		}
		return out, nil
	}

	return nil, invalid("unsupported column reference %T", ref)
}

func describeRef(ref dsl.ColumnRef) string {
	switch r := ref.(type) {
	case *dsl.NameRef:
		return r.Name
	case *dsl.PositionRef:
		return fmt.Sprintf("$%d", r.N)
	case *dsl.RangeRef:
		return fmt.Sprintf("$%d..$%d", r.From, r.To)
	case *dsl.RegexRef:
		return fmt.Sprintf("re('%s')", r.Pattern)
	case *dsl.TypeRef:
		return "types(...)"
	case *dsl.AllRef:
		return "*"
	case *dsl.ExceptRef:
		return "-" + describeRef(r.Ref)
	}
	return "column reference"
}
