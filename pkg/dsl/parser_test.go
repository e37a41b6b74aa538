package dsl

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/system0x7/dt/pkg/schema"
)

func mustParse(t *testing.T, input string) *Program {
	t.Helper()
	prog, err := Parse(input)
	if err != nil {
		t.Fatalf("parse %q: %v", input, err)
	}
	return prog
}

func parseErr(t *testing.T, input string) *ParseError {
	t.Helper()
	_, err := Parse(input)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("parse %q: expected ParseError, got %v", input, err)
	}
	return perr
}

func TestParser_AssignmentWithRead(t *testing.T) {
	prog := mustParse(t, `sales = read('sales.tsv', header=false, skip_rows=2, delimiter='\t') | take(5)`)

	if len(prog.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Statements))
	}
	stmt := prog.Statements[0]
	if stmt.Target != "sales" {
		t.Errorf("expected target sales, got %q", stmt.Target)
	}

	read, ok := stmt.Pipeline.Source.(*ReadStage)
	if !ok {
		t.Fatalf("expected ReadStage source, got %T", stmt.Pipeline.Source)
	}
	if read.Path != "sales.tsv" {
		t.Errorf("expected path sales.tsv, got %q", read.Path)
	}
	if read.Header == nil || *read.Header {
		t.Errorf("expected header=false")
	}
	if read.SkipRows == nil || *read.SkipRows != 2 {
		t.Errorf("expected skip_rows=2")
	}
	if read.Delimiter != "\t" {
		t.Errorf("expected tab delimiter, got %q", read.Delimiter)
	}

	take, ok := stmt.Pipeline.Stages[0].(*TakeStage)
	if !ok || take.N != 5 {
		t.Errorf("expected take(5), got %#v", stmt.Pipeline.Stages[0])
	}
}

func TestParser_VariableSourceAndBareStage(t *testing.T) {
	prog := mustParse(t, "data | select(a)\nfilter(a > 1)")

	if len(prog.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(prog.Statements))
	}
	if src, ok := prog.Statements[0].Pipeline.Source.(*VarSource); !ok || src.Var != "data" {
		t.Errorf("expected variable source data, got %#v", prog.Statements[0].Pipeline.Source)
	}
	if prog.Statements[1].Pipeline.Source != nil {
		t.Errorf("expected no source for a pipeline starting with an operation")
	}
	if prog.Statements[0].Text != "data | select(a)" {
		t.Errorf("unexpected statement text %q", prog.Statements[0].Text)
	}
}

func TestParser_MultilinePipeline(t *testing.T) {
	input := "x = read('a.csv') |\n  filter(a > 1)\n  | select(a)\n\ny = x"
	prog := mustParse(t, input)

	if len(prog.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(prog.Statements))
	}
	if n := len(prog.Statements[0].Pipeline.Stages); n != 2 {
		t.Errorf("expected 2 stages, got %d", n)
	}
}

func TestParser_Selectors(t *testing.T) {
	prog := mustParse(t, `t | select(name, 'full name', $2, $1..$3, re('^x_'), types(Number, String), *, -id, total as amount, n = $4)`)
	sel := prog.Statements[0].Pipeline.Stages[0].(*SelectStage)

	want := []SelectItem{
		{Ref: &NameRef{Name: "name"}},
		{Ref: &NameRef{Name: "full name"}},
		{Ref: &PositionRef{N: 2}},
		{Ref: &RangeRef{From: 1, To: 3}},
		{Ref: &RegexRef{Pattern: "^x_"}},
		{Ref: &TypeRef{Classes: []schema.Class{schema.ClassNumber, schema.ClassString}}},
		{Ref: &AllRef{}},
		{Ref: &ExceptRef{Ref: &NameRef{Name: "id"}}},
		{Ref: &NameRef{Name: "total"}, Alias: "amount"},
		{Ref: &PositionRef{N: 4}, Alias: "n"},
	}

	if diff := cmp.Diff(want, sel.Items); diff != "" {
		t.Errorf("select items mismatch (-want +got):\n%s", diff)
	}
}

func TestParser_PositionZeroRejected(t *testing.T) {
	perr := parseErr(t, `t | select($0)`)
	if !strings.Contains(perr.Msg, "start at $1") {
		t.Errorf("unexpected message %q", perr.Msg)
	}
}

func TestParser_Mutate(t *testing.T) {
	prog := mustParse(t, `t | mutate(total = price * qty, $2 = 'x', 3 = 1, 'a b' = true)`)
	m := prog.Statements[0].Pipeline.Stages[0].(*MutateStage)

	if len(m.Assigns) != 4 {
		t.Fatalf("expected 4 assignments, got %d", len(m.Assigns))
	}
	if ref, ok := m.Assigns[1].Target.(*PositionRef); !ok || ref.N != 2 {
		t.Errorf("expected $2 target, got %#v", m.Assigns[1].Target)
	}
	if ref, ok := m.Assigns[2].Target.(*NameRef); !ok || ref.Name != "col_3" {
		t.Errorf("expected col_3 target, got %#v", m.Assigns[2].Target)
	}
	if ref, ok := m.Assigns[3].Target.(*NameRef); !ok || ref.Name != "a b" {
		t.Errorf("expected quoted target, got %#v", m.Assigns[3].Target)
	}

	bin, ok := m.Assigns[0].Value.(*BinaryExpr)
	if !ok || bin.Op != TokenStar {
		t.Errorf("expected multiplication, got %#v", m.Assigns[0].Value)
	}
}

func TestParser_Precedence(t *testing.T) {
	prog := mustParse(t, `t | filter(a + 1 > 2 and b == 'x' or c in [1, 2])`)
	cond := prog.Statements[0].Pipeline.Stages[0].(*FilterStage).Cond

	or, ok := cond.(*BinaryExpr)
	if !ok || or.Op != TokenOr {
		t.Fatalf("expected OR at the root, got %#v", cond)
	}
	and, ok := or.Left.(*BinaryExpr)
	if !ok || and.Op != TokenAnd {
		t.Fatalf("expected AND on the left, got %#v", or.Left)
	}
	gt, ok := and.Left.(*BinaryExpr)
	if !ok || gt.Op != TokenGT {
		t.Fatalf("expected > under AND, got %#v", and.Left)
	}
	if add, ok := gt.Left.(*BinaryExpr); !ok || add.Op != TokenPlus {
		t.Errorf("expected + under >, got %#v", gt.Left)
	}
	in, ok := or.Right.(*BinaryExpr)
	if !ok || in.Op != TokenIn {
		t.Fatalf("expected IN on the right, got %#v", or.Right)
	}
	if list, ok := in.Right.(*ListLit); !ok || len(list.Items) != 2 {
		t.Errorf("expected 2-item list, got %#v", in.Right)
	}
}

func TestParser_Split(t *testing.T) {
	prog := mustParse(t, `t | mutate(first = split(id, ':')[0])`)
	m := prog.Statements[0].Pipeline.Stages[0].(*MutateStage)
	split, ok := m.Assigns[0].Value.(*SplitExpr)
	if !ok {
		t.Fatalf("expected SplitExpr, got %T", m.Assigns[0].Value)
	}
	if split.Index != 0 {
		t.Errorf("expected index 0, got %d", split.Index)
	}
	if sep, ok := split.Sep.(*StringLit); !ok || sep.Value != ":" {
		t.Errorf("expected ':' separator, got %#v", split.Sep)
	}
}

func TestParser_SplitRequiresIndex(t *testing.T) {
	perr := parseErr(t, `t | mutate(a = split(id, ':'))`)
	if !strings.Contains(perr.Msg, "split() must be followed by [index]") {
		t.Errorf("unexpected message %q", perr.Msg)
	}
}

func TestParser_IndexOnlyAfterSplit(t *testing.T) {
	perr := parseErr(t, `t | mutate(a = b[0])`)
	if !strings.Contains(perr.Msg, "only supported directly after split") {
		t.Errorf("unexpected message %q", perr.Msg)
	}
}

func TestParser_MethodCallRejected(t *testing.T) {
	perr := parseErr(t, `t | mutate(a = b.upper())`)
	if !strings.Contains(perr.Msg, "Method 'upper' is not supported") {
		t.Errorf("unexpected message %q", perr.Msg)
	}
}

func TestParser_ReplaceLiteralAndRegex(t *testing.T) {
	prog := mustParse(t, `t | mutate(a = replace(a, 'x', 'y'), b = replace(b, re('\d+'), '#'))`)
	m := prog.Statements[0].Pipeline.Stages[0].(*MutateStage)

	lit := m.Assigns[0].Value.(*ReplaceExpr)
	if _, ok := lit.Pattern.(*StringLit); !ok {
		t.Errorf("expected literal pattern, got %T", lit.Pattern)
	}
	re := m.Assigns[1].Value.(*ReplaceExpr)
	pattern, ok := re.Pattern.(*RegexRef)
	if !ok {
		t.Fatalf("expected regex pattern, got %T", re.Pattern)
	}
	if pattern.Pattern != `\d+` {
		t.Errorf("expected \\d+ to survive unescaping, got %q", pattern.Pattern)
	}
}

func TestParser_Lookup(t *testing.T) {
	prog := mustParse(t, `data | mutate(label = lookup(labels, sample_id, on='id', return=$2))`)
	m := prog.Statements[0].Pipeline.Stages[0].(*MutateStage)
	lk, ok := m.Assigns[0].Value.(*LookupExpr)
	if !ok {
		t.Fatalf("expected LookupExpr, got %T", m.Assigns[0].Value)
	}
	if lk.Table != "labels" {
		t.Errorf("expected table labels, got %q", lk.Table)
	}
	if diff := cmp.Diff(ColumnRef(&NameRef{Name: "id"}), lk.On); diff != "" {
		t.Errorf("on mismatch: %s", diff)
	}
	if diff := cmp.Diff(ColumnRef(&PositionRef{N: 2}), lk.Return); diff != "" {
		t.Errorf("return mismatch: %s", diff)
	}

	perr := parseErr(t, `data | mutate(label = lookup(labels, sample_id, on='id'))`)
	if !strings.Contains(perr.Msg, "requires on= and return=") {
		t.Errorf("unexpected message %q", perr.Msg)
	}
}

func TestParser_RenameAndRenameAll(t *testing.T) {
	prog := mustParse(t, `t | rename(old -> new, $2 -> 'second') | rename_all('col' + 1..3) | rename_all(replace('_', ' ')) | rename_all(upper)`)
	stages := prog.Statements[0].Pipeline.Stages

	rn := stages[0].(*RenameStage)
	if len(rn.Pairs) != 2 || rn.Pairs[1].To != "second" {
		t.Errorf("unexpected rename pairs %#v", rn.Pairs)
	}

	seq, ok := stages[1].(*RenameAllStage).Strategy.(RenameSequence)
	if !ok || seq.Prefix != "col" || seq.Start != 1 || seq.End != 3 {
		t.Errorf("unexpected sequence strategy %#v", stages[1].(*RenameAllStage).Strategy)
	}
	if _, ok := stages[2].(*RenameAllStage).Strategy.(RenameReplace); !ok {
		t.Errorf("expected replace strategy")
	}
	if c, ok := stages[3].(*RenameAllStage).Strategy.(RenameCase); !ok || !c.Upper {
		t.Errorf("expected upper strategy")
	}
}

func TestParser_SortTakeSkipSliceDistinctDrop(t *testing.T) {
	prog := mustParse(t, `t | sort(a desc, $2, b asc) | skip(1) | slice(2, 4) | take(2k) | distinct() | distinct(a) | drop(re('tmp'))`)
	stages := prog.Statements[0].Pipeline.Stages
	if len(stages) != 7 {
		t.Fatalf("expected 7 stages, got %d", len(stages))
	}

	sort := stages[0].(*SortStage)
	if !sort.Keys[0].Desc || sort.Keys[1].Desc || sort.Keys[2].Desc {
		t.Errorf("unexpected sort directions %#v", sort.Keys)
	}
	if s := stages[2].(*SliceStage); s.Start != 2 || s.End != 4 {
		t.Errorf("unexpected slice %#v", s)
	}
	if tk := stages[3].(*TakeStage); tk.N != 2000 {
		t.Errorf("expected take(2000), got %d", tk.N)
	}
	if d := stages[4].(*DistinctStage); len(d.Refs) != 0 {
		t.Errorf("expected distinct over all columns")
	}
}

func TestParser_Numbers(t *testing.T) {
	tests := []struct {
		text  string
		value float64
		isInt bool
	}{
		{"5", 5, true},
		{"1.5", 1.5, false},
		{"2.0", 2, false},
		{"10k", 10000, true},
		{"1.5m", 1500000, true},
		{"2b", 2e9, true},
	}
	for _, tt := range tests {
		lit, err := parseNumber(tt.text)
		if err != nil {
			t.Fatalf("%s: %v", tt.text, err)
		}
		if lit.Value != tt.value || lit.Int != tt.isInt {
			t.Errorf("%s: got value=%v int=%v, want value=%v int=%v", tt.text, lit.Value, lit.Int, tt.value, tt.isInt)
		}
	}
}

func TestParser_Unescape(t *testing.T) {
	tests := []struct{ in, want string }{
		{`a\tb`, "a\tb"},
		{`line\n`, "line\n"},
		{`it\'s`, "it's"},
		{`back\\slash`, `back\slash`},
		{`\d+\.\w`, `\d+\.\w`},
	}
	for _, tt := range tests {
		if got := unescape(tt.in); got != tt.want {
			t.Errorf("unescape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"unknown operation", `t | explode(a)`, "unknown operation 'explode'"},
		{"unknown function", `t | filter(upper(a) == 'X')`, "unknown function 'upper'"},
		{"read mid-pipeline", `t | read('x.csv')`, "read() can only start a pipeline"},
		{"variable mid-pipeline", `t | other`, "can only start a pipeline"},
		{"unknown read param", `read('a.csv', colour=true)`, "unknown read() parameter 'colour'"},
		{"missing paren", `t | select(a`, "expected"},
		{"unknown type", `t | select(types(Blob))`, "unknown type 'Blob'"},
		{"dangling pipe", `t |`, "expected an operation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := parseErr(t, tt.input)
			if !strings.Contains(perr.Msg, tt.msg) {
				t.Errorf("expected message containing %q, got %q", tt.msg, perr.Msg)
			}
		})
	}
}

func TestParser_ErrorPosition(t *testing.T) {
	perr := parseErr(t, "x = t\ny = t | select(a b)")
	if perr.Line != 2 {
		t.Errorf("expected error on line 2, got %d", perr.Line)
	}
	if perr.Found != "'b'" {
		t.Errorf("expected found 'b', got %q", perr.Found)
	}
}
