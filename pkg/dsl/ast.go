package dsl

import "github.com/system0x7/dt/pkg/schema"

// Node is the interface implemented by all AST nodes.
type Node interface {
	node()
}

// Expr is the interface implemented by all expression nodes.
type Expr interface {
	Node
	expr()
}

// Stage is one named operation in a pipeline.
type Stage interface {
	Node
	stage()
	// Name is the operation keyword, used to label errors.
	Name() string
}

// Source produces the table a pipeline starts from.
type Source interface {
	Node
	source()
}

// ColumnRef is an unresolved column selection. Which columns it denotes
// depends on the schema entering the stage.
type ColumnRef interface {
	Expr
	columnRef()
}

// Program represents a parsed script.
type Program struct {
	Statements []*Statement
}

func (*Program) node() {}

// Statement is an assignment (Target set) or a bare pipeline.
// Example: clean = read('in.csv') | filter(x > 0)
type Statement struct {
	Target   string
	Pipeline *Pipeline
	Text     string
}

func (*Statement) node() {}

// Pipeline is a source followed by stages. A nil Source means the pipeline
// runs against the session's current table.
type Pipeline struct {
	Source Source
	Stages []Stage
}

func (*Pipeline) node() {}

// ===== Sources =====

// ReadStage loads a file.
// Example: read('data.tsv', header=false, skip_rows=2)
type ReadStage struct {
	Path           string
	Format         string
	Delimiter      string
	Header         *bool
	SkipRows       *int
	TrimWhitespace *bool
}

func (*ReadStage) node() {}
func (*ReadStage) source() {}
func (*ReadStage) Name() string { return "read" }

// VarSource starts a pipeline from a variable. The name "_" is the current table.
type VarSource struct {
	Var string
}

func (*VarSource) node() {}
func (*VarSource) source() {}

// ===== Stages =====

// WriteStage saves its input and passes it through unchanged.
type WriteStage struct {
	Path        string
	Format      string
	Delimiter   string
	Header      *bool
	Compression string
}

func (*WriteStage) node() {}
func (*WriteStage) stage() {}
func (*WriteStage) Name() string { return "write" }

// SelectItem is one selector in select(), optionally aliased.
type SelectItem struct {
	Ref   ColumnRef
	Alias string
}

// SelectStage keeps and reorders columns.
// Example: select($1..$3, re('^x_'), total as amount)
type SelectStage struct {
	Items []SelectItem
}

func (*SelectStage) node() {}
func (*SelectStage) stage() {}
func (*SelectStage) Name() string { return "select" }

// FilterStage keeps rows whose condition is true.
type FilterStage struct {
	Cond Expr
}

func (*FilterStage) node() {}
func (*FilterStage) stage() {}
func (*FilterStage) Name() string { return "filter" }

// MutateAssign sets one column. Target is a NameRef or a PositionRef.
type MutateAssign struct {
	Target ColumnRef
	Value  Expr
}

// MutateStage adds or replaces columns, left to right.
// Example: mutate(total = price * qty, $2 = 'x')
type MutateStage struct {
	Assigns []MutateAssign
}

func (*MutateStage) node() {}
func (*MutateStage) stage() {}
func (*MutateStage) Name() string { return "mutate" }

// RenamePair renames one column. From is a NameRef or a PositionRef.
type RenamePair struct {
	From ColumnRef
	To   string
}

// RenameStage renames columns in place.
// Example: rename(old -> new, $2 -> 'second')
type RenameStage struct {
	Pairs []RenamePair
}

func (*RenameStage) node() {}
func (*RenameStage) stage() {}
func (*RenameStage) Name() string { return "rename" }

// RenameStrategy is implemented by the rename_all strategies.
type RenameStrategy interface {
	renameStrategy()
}

// RenameReplace substitutes Old with New in every column name.
type RenameReplace struct {
	Old, New string
}

// RenameSequence names columns Prefix+Start .. Prefix+End.
type RenameSequence struct {
	Prefix     string
	Start, End int
}

// RenameCase lower- or upper-cases every column name.
type RenameCase struct {
	Upper bool
}

func (RenameReplace) renameStrategy() {}
func (RenameSequence) renameStrategy() {}
func (RenameCase) renameStrategy() {}

// RenameAllStage renames every column with one strategy.
type RenameAllStage struct {
	Strategy RenameStrategy
}

func (*RenameAllStage) node() {}
func (*RenameAllStage) stage() {}
func (*RenameAllStage) Name() string { return "rename_all" }

// SortKey is one column to sort by.
type SortKey struct {
	Ref  ColumnRef
	Desc bool
}

// SortStage orders rows by one or more keys.
type SortStage struct {
	Keys []SortKey
}

func (*SortStage) node() {}
func (*SortStage) stage() {}
func (*SortStage) Name() string { return "sort" }

// TakeStage keeps the first N rows.
type TakeStage struct {
	N int
}

func (*TakeStage) node() {}
func (*TakeStage) stage() {}
func (*TakeStage) Name() string { return "take" }

// SkipStage drops the first N rows.
type SkipStage struct {
	N int
}

func (*SkipStage) node() {}
func (*SkipStage) stage() {}
func (*SkipStage) Name() string { return "skip" }

// SliceStage keeps rows [Start, End).
type SliceStage struct {
	Start, End int
}

func (*SliceStage) node() {}
func (*SliceStage) stage() {}
func (*SliceStage) Name() string { return "slice" }

// DropStage removes columns.
type DropStage struct {
	Refs []ColumnRef
}

func (*DropStage) node() {}
func (*DropStage) stage() {}
func (*DropStage) Name() string { return "drop" }

// DistinctStage removes duplicate rows, comparing Refs (all columns when empty).
type DistinctStage struct {
	Refs []ColumnRef
}

func (*DistinctStage) node() {}
func (*DistinctStage) stage() {}
func (*DistinctStage) Name() string { return "distinct" }

// ===== Column references =====

// NameRef selects a column by exact name.
type NameRef struct {
	Name string
}

// PositionRef selects a column by 1-based position ($N).
type PositionRef struct {
	N int
}

// RangeRef selects columns $From..$To inclusive.
type RangeRef struct {
	From, To int
}

// RegexRef selects columns whose name matches Pattern: re('^x').
type RegexRef struct {
	Pattern string
}

// TypeRef selects columns whose type is in one of Classes: types(Number).
type TypeRef struct {
	Classes []schema.Class
}

// AllRef selects every column: *.
type AllRef struct{}

// ExceptRef selects every column not matched by Ref: -name.
type ExceptRef struct {
	Ref ColumnRef
}

func (*NameRef) node() {}
func (*NameRef) expr() {}
func (*NameRef) columnRef() {}
func (*PositionRef) node() {}
func (*PositionRef) expr() {}
func (*PositionRef) columnRef() {}
func (*RangeRef) node() {}
func (*RangeRef) expr() {}
func (*RangeRef) columnRef() {}
func (*RegexRef) node() {}
func (*RegexRef) expr() {}
func (*RegexRef) columnRef() {}
func (*TypeRef) node() {}
func (*TypeRef) expr() {}
func (*TypeRef) columnRef() {}
func (*AllRef) node() {}
func (*AllRef) expr() {}
func (*AllRef) columnRef() {}
func (*ExceptRef) node() {}
func (*ExceptRef) expr() {}
func (*ExceptRef) columnRef() {}

// ===== Expressions =====

// NumberLit is a numeric literal. Int is set when the value is whole and was
// written without a fraction, or reached a whole value through a suffix.
type NumberLit struct {
	Value float64
	Int   bool
	Text  string
}

func (*NumberLit) node() {}
func (*NumberLit) expr() {}

// StringLit represents a string literal, already unescaped.
type StringLit struct {
	Value string
}

func (*StringLit) node() {}
func (*StringLit) expr() {}

// BoolLit represents a boolean literal.
type BoolLit struct {
	Value bool
}

func (*BoolLit) node() {}
func (*BoolLit) expr() {}

// NullLit represents null.
type NullLit struct{}

func (*NullLit) node() {}
func (*NullLit) expr() {}

// ListLit is a bracketed list of literals, used on the right of in.
// Example: status in ['open', 'new']
type ListLit struct {
	Items []Expr
}

func (*ListLit) node() {}
func (*ListLit) expr() {}

// BinaryExpr represents a binary expression.
// Example: price * quantity, x > 10
type BinaryExpr struct {
	Left  Expr
	Op    TokenType
	Right Expr
}

func (*BinaryExpr) node() {}
func (*BinaryExpr) expr() {}

// UnaryExpr represents a unary expression.
// Example: not x, -value
type UnaryExpr struct {
	Op    TokenType
	Right Expr
}

func (*UnaryExpr) node() {}
func (*UnaryExpr) expr() {}

// SplitExpr is split(Text, Sep)[Index].
type SplitExpr struct {
	Text  Expr
	Sep   Expr
	Index int
}

func (*SplitExpr) node() {}
func (*SplitExpr) expr() {}

// ReplaceExpr is replace(Text, Pattern, With). Pattern is a StringLit or a RegexRef.
type ReplaceExpr struct {
	Text    Expr
	Pattern Expr
	With    Expr
}

func (*ReplaceExpr) node() {}
func (*ReplaceExpr) expr() {}

// LookupExpr is lookup(Table, Key, on=On, return=Return). On and Return are
// NameRef or PositionRef and refer to Table's columns.
type LookupExpr struct {
	Table  string
	Key    Expr
	On     ColumnRef
	Return ColumnRef
}

func (*LookupExpr) node() {}
func (*LookupExpr) expr() {}
