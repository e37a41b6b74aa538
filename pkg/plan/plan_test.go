package plan

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/system0x7/dt/pkg/schema"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{int64(5), "5"},
		{int64(-12), "-12"},
		{float64(5), "5.0"},
		{2.5, "2.5"},
		{1e21, "1000000000000000000000.0"},
		{0.000001, "0.000001"},
		{true, "true"},
		{"x", "x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in), "FormatValue(%#v)", tt.in)
	}
}

func TestPlan_String(t *testing.T) {
	p := &Plan{Ops: []Op{
		&Filter{Pred: &Compare{Op: Gt, Left: &Col{Name: "a", T: schema.Integer}, Right: &Const{Value: int64(1), T: schema.Integer}}},
		&Project{Columns: []Column{{Source: "b", Name: "b"}, {Source: "c", Name: "d"}}},
		&Mutate{Assigns: []Assign{{Name: "x", Expr: &ReplaceRegex{
			Text:    &Col{Name: "b", T: schema.String},
			Pattern: regexp.MustCompile(`\d+`),
			With:    &Const{Value: "#", T: schema.String},
		}}}},
		&Slice{Label: "skip", Start: 2, End: -1},
	}}

	want := "FILTER (a > 1)\n" +
		"PROJECT b, c as d\n" +
		`MUTATE x = replace(b, re("\\d+"), "#")` + "\n" +
		"SLICE 2.."
	assert.Equal(t, want, p.String())
}

func TestOp_Name(t *testing.T) {
	assert.Equal(t, "take", (&Slice{Label: "take"}).Name())
	assert.Equal(t, "rename_all", (&Rename{Label: "rename_all"}).Name())
	assert.Equal(t, "select", (&Project{}).Name())
}
