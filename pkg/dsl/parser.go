package dsl

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/system0x7/dt/pkg/schema"
)

// Parser parses DSL tokens into an AST. It stops at the first error.
type Parser struct {
	tokens []Token
	source string
	pos    int
	errors []error
}

// NewParser creates a new parser for the given tokens.
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens: tokens,
		pos:    0,
		errors: []error{},
	}
}

// Parse tokenizes and parses a script, recording each statement's source text.
func Parse(input string) (*Program, error) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	p := NewParser(tokens)
	p.source = input
	return p.Parse()
}

// Parse parses the tokens into a Program AST.
func (p *Parser) Parse() (*Program, error) {
	program := &Program{
		Statements: []*Statement{},
	}

	for !p.isAtEnd() && !p.failed() {
		p.skipSeparators()
		if p.isAtEnd() {
			break
		}

		start := p.peek().Pos
		stmt := p.parseStatement()
		if p.failed() {
			break
		}
		stmt.Text = p.textBetween(start, p.peek().Pos)
		program.Statements = append(program.Statements, stmt)

		if !p.check(TokenNewline) && !p.check(TokenSemicolon) && !p.isAtEnd() {
			p.errorExpected("'|' or end of statement")
		}
	}

	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}

	return program, nil
}

func (p *Parser) parseStatement() *Statement {
	stmt := &Statement{}

	// name = pipeline
	if p.check(TokenIdent) && p.peekNext().Type == TokenAssign {
		stmt.Target = p.advance().Value
		p.advance()
		p.skipNewlines()
	}

	stmt.Pipeline = p.parsePipeline()
	return stmt
}

func (p *Parser) parsePipeline() *Pipeline {
	pipeline := &Pipeline{}

	p.parseFirstStage(pipeline)
	for !p.failed() && p.continuesPipeline() {
		p.skipNewlines()
		p.advance() // consume '|'
		p.skipNewlines()
		stage := p.parseStage()
		if stage == nil {
			break
		}
		pipeline.Stages = append(pipeline.Stages, stage)
	}

	return pipeline
}

// continuesPipeline reports whether the next token, possibly after line
// breaks, is a pipe.
func (p *Parser) continuesPipeline() bool {
	i := p.pos
	for i < len(p.tokens) && p.tokens[i].Type == TokenNewline {
		i++
	}
	return i < len(p.tokens) && p.tokens[i].Type == TokenPipe
}

func (p *Parser) parseFirstStage(pipeline *Pipeline) {
	tok := p.peek()
	if tok.Type != TokenIdent {
		p.errorExpected("read(...), a variable name or an operation")
		return
	}

	if p.peekNext().Type != TokenLParen {
		p.advance()
		pipeline.Source = &VarSource{Var: tok.Value}
		return
	}

	if strings.ToLower(tok.Value) == "read" {
		pipeline.Source = p.parseRead()
		return
	}

	if stage := p.parseStage(); stage != nil {
		pipeline.Stages = append(pipeline.Stages, stage)
	}
}

var stageParsers map[string]func(*Parser) Stage

func init() {
	stageParsers = map[string]func(*Parser) Stage{
		"write":      (*Parser).parseWrite,
		"select":     (*Parser).parseSelect,
		"filter":     (*Parser).parseFilter,
		"where":      (*Parser).parseFilter, // alias
		"mutate":     (*Parser).parseMutate,
		"rename":     (*Parser).parseRename,
		"rename_all": (*Parser).parseRenameAll,
		"sort":       (*Parser).parseSort,
		"take":       (*Parser).parseTake,
		"head":       (*Parser).parseTake, // alias
		"skip":       (*Parser).parseSkip,
		"slice":      (*Parser).parseSlice,
		"drop":       (*Parser).parseDrop,
		"distinct":   (*Parser).parseDistinct,
	}
}

func (p *Parser) parseStage() Stage {
	tok := p.peek()
	if tok.Type != TokenIdent {
		p.errorExpected("an operation")
		return nil
	}

	name := strings.ToLower(tok.Value)
	if p.peekNext().Type != TokenLParen {
		p.error(fmt.Sprintf("variable '%s' can only start a pipeline", tok.Value))
		return nil
	}
	if name == "read" {
		p.error("read() can only start a pipeline")
		return nil
	}

	parse, ok := stageParsers[name]
	if !ok {
		p.error(fmt.Sprintf("unknown operation '%s'", tok.Value))
		return nil
	}

	p.advance() // consume name
	p.expect(TokenLParen)
	stage := parse(p)
	p.expect(TokenRParen)
	if p.failed() {
		return nil
	}
	return stage
}

// ===== read / write =====

func (p *Parser) parseRead() *ReadStage {
	p.advance() // consume 'read'
	p.expect(TokenLParen)

	stage := &ReadStage{Path: p.parsePath()}
	for p.check(TokenComma) && !p.failed() {
		p.advance()
		key, tok := p.parseParamName()
		switch key {
		case "format":
			stage.Format = strings.ToLower(p.parseWord())
		case "delimiter", "delim", "sep":
			stage.Delimiter = p.parseStringValue()
		case "header":
			b := p.parseBool()
			stage.Header = &b
		case "skip_rows", "skip":
			n := p.parseCount()
			stage.SkipRows = &n
		case "trim_whitespace", "trim":
			b := p.parseBool()
			stage.TrimWhitespace = &b
		default:
			if !p.failed() {
				p.errorAt(tok, fmt.Sprintf("unknown read() parameter '%s'; expected format, delimiter, header, skip_rows or trim_whitespace", key))
			}
		}
	}

	p.expect(TokenRParen)
	return stage
}

func (p *Parser) parseWrite() Stage {
	stage := &WriteStage{Path: p.parsePath()}
	for p.check(TokenComma) && !p.failed() {
		p.advance()
		key, tok := p.parseParamName()
		switch key {
		case "format":
			stage.Format = strings.ToLower(p.parseWord())
		case "delimiter", "delim", "sep":
			stage.Delimiter = p.parseStringValue()
		case "header":
			b := p.parseBool()
			stage.Header = &b
		case "compression":
			stage.Compression = strings.ToLower(p.parseWord())
		default:
			if !p.failed() {
				p.errorAt(tok, fmt.Sprintf("unknown write() parameter '%s'; expected format, delimiter, header or compression", key))
			}
		}
	}
	return stage
}

func (p *Parser) parsePath() string {
	if !p.check(TokenString) {
		p.errorExpected("a quoted file path")
		return ""
	}
	return unescape(p.advance().Value)
}

func (p *Parser) parseParamName() (string, Token) {
	tok := p.expect(TokenIdent)
	p.expect(TokenAssign)
	return strings.ToLower(tok.Value), tok
}

func (p *Parser) parseWord() string {
	if p.check(TokenString) || p.check(TokenIdent) {
		return unescape(p.advance().Value)
	}
	p.errorExpected("a name")
	return ""
}

func (p *Parser) parseStringValue() string {
	if !p.check(TokenString) {
		p.errorExpected("a quoted string")
		return ""
	}
	return unescape(p.advance().Value)
}

func (p *Parser) parseBool() bool {
	switch {
	case p.check(TokenTrue):
		p.advance()
		return true
	case p.check(TokenFalse):
		p.advance()
		return false
	}
	p.errorExpected("true or false")
	return false
}

// parseCount reads a non-negative whole number.
func (p *Parser) parseCount() int {
	tok := p.peek()
	if tok.Type != TokenNumber {
		p.errorExpected("a number")
		return 0
	}
	p.advance()
	lit, err := parseNumber(tok.Value)
	if err != nil || !lit.Int {
		p.errorAt(tok, fmt.Sprintf("expected a whole number, got %s", tok.Value))
		return 0
	}
	return int(lit.Value)
}

// ===== column selection stages =====

func (p *Parser) parseSelect() Stage {
	stage := &SelectStage{}
	for !p.check(TokenRParen) && !p.isAtEnd() && !p.failed() {
		var item SelectItem

		if p.check(TokenIdent) && p.peekNext().Type == TokenAssign {
			// alias = selector
			item.Alias = p.advance().Value
			p.advance()
			item.Ref = p.parseSelector()
		} else {
			item.Ref = p.parseSelector()
			if p.check(TokenAs) {
				p.advance()
				item.Alias = p.parseWord()
			}
		}
		stage.Items = append(stage.Items, item)

		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}
	if len(stage.Items) == 0 && !p.failed() {
		p.errorExpected("at least one column")
	}
	return stage
}

func (p *Parser) parseDrop() Stage {
	refs := p.parseSelectorList()
	if len(refs) == 0 && !p.failed() {
		p.errorExpected("at least one column")
	}
	return &DropStage{Refs: refs}
}

func (p *Parser) parseDistinct() Stage {
	return &DistinctStage{Refs: p.parseSelectorList()}
}

func (p *Parser) parseSelectorList() []ColumnRef {
	var refs []ColumnRef
	for !p.check(TokenRParen) && !p.isAtEnd() && !p.failed() {
		refs = append(refs, p.parseSelector())
		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}
	return refs
}

// parseSelector parses name, 'name', $N, $N..$M, re('p'), types(...), * or -selector.
func (p *Parser) parseSelector() ColumnRef {
	tok := p.peek()
	switch tok.Type {
	case TokenMinus:
		p.advance()
		return &ExceptRef{Ref: p.parseSelector()}

	case TokenStar:
		p.advance()
		return &AllRef{}

	case TokenString:
		p.advance()
		return &NameRef{Name: unescape(tok.Value)}

	case TokenPositional:
		from := p.parsePosition()
		if !p.check(TokenRange) {
			return &PositionRef{N: from}
		}
		p.advance()
		if p.check(TokenPositional) {
			return &RangeRef{From: from, To: p.parsePosition()}
		}
		// $2..5 is accepted as shorthand for $2..$5
		return &RangeRef{From: from, To: p.parseCount()}

	case TokenIdent:
		if p.peekNext().Type == TokenLParen {
			switch strings.ToLower(tok.Value) {
			case "re", "regex":
				return p.parseRegex()
			case "types", "type":
				return p.parseTypes()
			}
		}
		p.advance()
		return &NameRef{Name: tok.Value}
	}

	p.errorExpected("a column")
	return &NameRef{}
}

func (p *Parser) parsePosition() int {
	tok := p.expect(TokenPositional)
	n, err := strconv.Atoi(tok.Value)
	if err != nil {
		p.errorAt(tok, fmt.Sprintf("invalid column position $%s", tok.Value))
		return 0
	}
	if n == 0 {
		p.errorAt(tok, "Positional columns start at $1, not $0")
	}
	return n
}

func (p *Parser) parseRegex() *RegexRef {
	p.advance() // consume 're'
	p.expect(TokenLParen)
	pattern := p.parseStringValue()
	p.expect(TokenRParen)
	return &RegexRef{Pattern: pattern}
}

func (p *Parser) parseTypes() *TypeRef {
	p.advance() // consume 'types'
	p.expect(TokenLParen)
	ref := &TypeRef{}
	for !p.check(TokenRParen) && !p.isAtEnd() && !p.failed() {
		tok := p.peek()
		name := p.parseWord()
		class, ok := schema.ParseClass(name)
		if !ok && !p.failed() {
			p.errorAt(tok, fmt.Sprintf("unknown type '%s'; expected Number, String, Boolean, Date or DateTime", name))
			break
		}
		ref.Classes = append(ref.Classes, class)
		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}
	p.expect(TokenRParen)
	if len(ref.Classes) == 0 && !p.failed() {
		p.errorExpected("at least one type")
	}
	return ref
}

// ===== row and column stages =====

func (p *Parser) parseFilter() Stage {
	return &FilterStage{Cond: p.parseExpression()}
}

func (p *Parser) parseMutate() Stage {
	stage := &MutateStage{}
	for !p.check(TokenRParen) && !p.isAtEnd() && !p.failed() {
		target := p.parseMutateTarget()
		p.expect(TokenAssign)
		value := p.parseExpression()
		stage.Assigns = append(stage.Assigns, MutateAssign{Target: target, Value: value})

		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}
	if len(stage.Assigns) == 0 && !p.failed() {
		p.errorExpected("an assignment like name = expression")
	}
	return stage
}

func (p *Parser) parseMutateTarget() ColumnRef {
	tok := p.peek()
	switch tok.Type {
	case TokenIdent:
		p.advance()
		return &NameRef{Name: tok.Value}
	case TokenString:
		p.advance()
		return &NameRef{Name: unescape(tok.Value)}
	case TokenPositional:
		return &PositionRef{N: p.parsePosition()}
	case TokenNumber:
		// mutate(3 = ...) names the column col_3
		p.advance()
		return &NameRef{Name: "col_" + tok.Value}
	}
	p.errorExpected("a column name or $N")
	return &NameRef{}
}

func (p *Parser) parseRename() Stage {
	stage := &RenameStage{}
	for !p.check(TokenRParen) && !p.isAtEnd() && !p.failed() {
		var from ColumnRef
		tok := p.peek()
		switch tok.Type {
		case TokenIdent:
			p.advance()
			from = &NameRef{Name: tok.Value}
		case TokenString:
			p.advance()
			from = &NameRef{Name: unescape(tok.Value)}
		case TokenPositional:
			from = &PositionRef{N: p.parsePosition()}
		default:
			p.errorExpected("a column name or $N")
			return stage
		}
		p.expect(TokenArrow)
		to := p.parseWord()
		stage.Pairs = append(stage.Pairs, RenamePair{From: from, To: to})

		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}
	if len(stage.Pairs) == 0 && !p.failed() {
		p.errorExpected("a mapping like old -> new")
	}
	return stage
}

func (p *Parser) parseRenameAll() Stage {
	tok := p.peek()
	switch {
	case tok.Type == TokenIdent && strings.ToLower(tok.Value) == "replace":
		p.advance()
		p.expect(TokenLParen)
		old := p.parseStringValue()
		p.expect(TokenComma)
		repl := p.parseStringValue()
		p.expect(TokenRParen)
		return &RenameAllStage{Strategy: RenameReplace{Old: old, New: repl}}

	case tok.Type == TokenIdent && (strings.ToLower(tok.Value) == "lower" || strings.ToLower(tok.Value) == "upper"):
		p.advance()
		if p.check(TokenLParen) {
			p.advance()
			p.expect(TokenRParen)
		}
		return &RenameAllStage{Strategy: RenameCase{Upper: strings.ToLower(tok.Value) == "upper"}}

	case tok.Type == TokenString:
		prefix := unescape(p.advance().Value)
		p.expect(TokenPlus)
		start := p.parseCount()
		p.expect(TokenRange)
		end := p.parseCount()
		if end < start && !p.failed() {
			p.errorAt(tok, fmt.Sprintf("invalid range %d..%d: start is after end", start, end))
		}
		return &RenameAllStage{Strategy: RenameSequence{Prefix: prefix, Start: start, End: end}}
	}

	p.errorExpected("replace('old', 'new'), lower, upper or 'prefix' + 1..N")
	return &RenameAllStage{}
}

func (p *Parser) parseSort() Stage {
	stage := &SortStage{}
	for !p.check(TokenRParen) && !p.isAtEnd() && !p.failed() {
		var key SortKey
		tok := p.peek()
		switch tok.Type {
		case TokenIdent:
			p.advance()
			key.Ref = &NameRef{Name: tok.Value}
		case TokenString:
			p.advance()
			key.Ref = &NameRef{Name: unescape(tok.Value)}
		case TokenPositional:
			key.Ref = &PositionRef{N: p.parsePosition()}
		default:
			p.errorExpected("a column to sort by")
			return stage
		}

		if p.check(TokenIdent) {
			switch strings.ToLower(p.peek().Value) {
			case "desc":
				p.advance()
				key.Desc = true
			case "asc":
				p.advance()
			}
		}
		stage.Keys = append(stage.Keys, key)

		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}
	if len(stage.Keys) == 0 && !p.failed() {
		p.errorExpected("a column to sort by")
	}
	return stage
}

func (p *Parser) parseTake() Stage {
	return &TakeStage{N: p.parseCount()}
}

func (p *Parser) parseSkip() Stage {
	return &SkipStage{N: p.parseCount()}
}

func (p *Parser) parseSlice() Stage {
	start := p.parseCount()
	p.expect(TokenComma)
	end := p.parseCount()
	return &SliceStage{Start: start, End: end}
}

// ===== expressions =====

func (p *Parser) parseExpression() Expr {
	return p.parseOr()
}

func (p *Parser) parseOr() Expr {
	left := p.parseAnd()

	for p.check(TokenOr) && !p.failed() {
		p.advance()
		right := p.parseAnd()
		left = &BinaryExpr{Left: left, Op: TokenOr, Right: right}
	}

	return left
}

func (p *Parser) parseAnd() Expr {
	left := p.parseEquality()

	for p.check(TokenAnd) && !p.failed() {
		p.advance()
		right := p.parseEquality()
		left = &BinaryExpr{Left: left, Op: TokenAnd, Right: right}
	}

	return left
}

func (p *Parser) parseEquality() Expr {
	left := p.parseComparison()

	for (p.check(TokenEQ) || p.check(TokenNE)) && !p.failed() {
		op := p.advance().Type
		right := p.parseComparison()
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left
}

func (p *Parser) parseComparison() Expr {
	left := p.parseIn()

	for (p.check(TokenLT) || p.check(TokenLE) || p.check(TokenGT) || p.check(TokenGE)) && !p.failed() {
		op := p.advance().Type
		right := p.parseIn()
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left
}

// parseIn handles "x in [..]" and "x in variable".
func (p *Parser) parseIn() Expr {
	left := p.parseAdditive()

	if p.check(TokenIn) && !p.failed() {
		p.advance()
		var right Expr
		switch {
		case p.check(TokenLBracket):
			right = p.parseList()
		case p.check(TokenIdent):
			right = &NameRef{Name: p.advance().Value}
		default:
			p.errorExpected("a list like ['a', 'b'] or a variable name")
			return left
		}
		left = &BinaryExpr{Left: left, Op: TokenIn, Right: right}
	}

	return left
}

func (p *Parser) parseAdditive() Expr {
	left := p.parseMultiplicative()

	for (p.check(TokenPlus) || p.check(TokenMinus)) && !p.failed() {
		op := p.advance().Type
		right := p.parseMultiplicative()
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left
}

func (p *Parser) parseMultiplicative() Expr {
	left := p.parseUnary()

	for (p.check(TokenStar) || p.check(TokenSlash)) && !p.failed() {
		op := p.advance().Type
		right := p.parseUnary()
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left
}

func (p *Parser) parseUnary() Expr {
	if p.check(TokenNot) || p.check(TokenMinus) {
		op := p.advance().Type
		right := p.parseUnary()
		if num, ok := right.(*NumberLit); ok && op == TokenMinus {
			return &NumberLit{Value: -num.Value, Int: num.Int, Text: "-" + num.Text}
		}
		return &UnaryExpr{Op: op, Right: right}
	}

	return p.parsePostfix()
}

// parsePostfix rejects indexing and method calls; split()[i] is handled in parseSplit.
func (p *Parser) parsePostfix() Expr {
	expr := p.parsePrimary()

	switch {
	case p.check(TokenLBracket):
		p.error("indexing with [ ] is only supported directly after split(...)")
	case p.check(TokenDot):
		p.advance()
		method := p.peek().Value
		p.error(fmt.Sprintf("Method '%s' is not supported. Use function syntax instead, for example replace(col, 'old', 'new') or split(col, ':')[0]", method))
	}

	return expr
}

func (p *Parser) parsePrimary() Expr {
	tok := p.peek()
	switch tok.Type {
	case TokenNumber:
		p.advance()
		lit, err := parseNumber(tok.Value)
		if err != nil {
			p.errorAt(tok, err.Error())
		}
		return lit

	case TokenString:
		return &StringLit{Value: unescape(p.advance().Value)}

	case TokenTrue:
		p.advance()
		return &BoolLit{Value: true}

	case TokenFalse:
		p.advance()
		return &BoolLit{Value: false}

	case TokenNull:
		p.advance()
		return &NullLit{}

	case TokenPositional:
		return &PositionRef{N: p.parsePosition()}

	case TokenLBracket:
		return p.parseList()

	case TokenLParen:
		p.advance()
		expr := p.parseExpression()
		p.expect(TokenRParen)
		return expr

	case TokenIdent:
		if p.peekNext().Type != TokenLParen {
			return &NameRef{Name: p.advance().Value}
		}
		switch strings.ToLower(tok.Value) {
		case "split":
			return p.parseSplit()
		case "replace":
			return p.parseReplace()
		case "lookup":
			return p.parseLookup()
		case "re", "regex":
			return p.parseRegex()
		}
		p.error(fmt.Sprintf("unknown function '%s'; available functions are split, replace, lookup and re", tok.Value))
		return &NullLit{}
	}

	p.errorExpected("an expression")
	return &NullLit{}
}

func (p *Parser) parseList() *ListLit {
	p.expect(TokenLBracket)
	list := &ListLit{}
	for !p.check(TokenRBracket) && !p.isAtEnd() && !p.failed() {
		item := p.parseUnary()
		switch item.(type) {
		case *NumberLit, *StringLit, *BoolLit, *NullLit:
		default:
			p.error("list items must be literals")
			return list
		}
		list.Items = append(list.Items, item)
		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}
	p.expect(TokenRBracket)
	return list
}

func (p *Parser) parseSplit() Expr {
	p.advance() // consume 'split'
	p.expect(TokenLParen)
	text := p.parseExpression()
	p.expect(TokenComma)
	sep := p.parseExpression()
	p.expect(TokenRParen)
	if p.failed() {
		return &NullLit{}
	}

	if !p.check(TokenLBracket) {
		p.error("split() must be followed by [index]. Example: split(text, ':')[0]")
		return &NullLit{}
	}
	p.advance()
	index := p.parseCount()
	p.expect(TokenRBracket)

	return &SplitExpr{Text: text, Sep: sep, Index: index}
}

func (p *Parser) parseReplace() Expr {
	p.advance() // consume 'replace'
	p.expect(TokenLParen)
	text := p.parseExpression()
	p.expect(TokenComma)
	pattern := p.parseExpression()
	p.expect(TokenComma)
	with := p.parseExpression()
	p.expect(TokenRParen)
	return &ReplaceExpr{Text: text, Pattern: pattern, With: with}
}

func (p *Parser) parseLookup() Expr {
	p.advance() // consume 'lookup'
	p.expect(TokenLParen)

	lookup := &LookupExpr{}
	lookup.Table = p.expect(TokenIdent).Value
	p.expect(TokenComma)
	lookup.Key = p.parseExpression()

	for p.check(TokenComma) && !p.failed() {
		p.advance()
		// "return" is an identifier here, not a keyword
		key, tok := p.parseParamName()
		field := p.parseLookupField()
		switch key {
		case "on":
			lookup.On = field
		case "return":
			lookup.Return = field
		default:
			if !p.failed() {
				p.errorAt(tok, fmt.Sprintf("unknown lookup() parameter '%s'; expected on= or return=", key))
			}
		}
	}
	p.expect(TokenRParen)

	if !p.failed() && (lookup.On == nil || lookup.Return == nil) {
		p.error("lookup() requires on= and return=. Example: lookup(labels, id, on='id', return='label')")
	}
	return lookup
}

func (p *Parser) parseLookupField() ColumnRef {
	tok := p.peek()
	switch tok.Type {
	case TokenString:
		p.advance()
		return &NameRef{Name: unescape(tok.Value)}
	case TokenIdent:
		p.advance()
		return &NameRef{Name: tok.Value}
	case TokenPositional:
		return &PositionRef{N: p.parsePosition()}
	}
	p.errorExpected("a column name or $N")
	return nil
}

// ===== literals =====

var suffixMultipliers = map[byte]float64{
	'k': 1e3,
	'm': 1e6,
	'b': 1e9,
}

// parseNumber converts number text, including k/m/b suffixes, into a literal.
func parseNumber(text string) (*NumberLit, error) {
	digits := text
	mult := 1.0
	if n := len(text); n > 0 {
		if m, ok := suffixMultipliers[toLowerByte(text[n-1])]; ok {
			digits = text[:n-1]
			mult = m
		}
	}

	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %s", text)
	}
	v *= mult

	whole := v == math.Trunc(v) && math.Abs(v) < 1<<53
	isInt := whole && (!strings.Contains(digits, ".") || mult != 1)
	return &NumberLit{Value: v, Int: isInt, Text: text}, nil
}

func toLowerByte(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// unescape resolves \n \r \t \" \' and \\. Other sequences such as \d are
// left intact for regex compilation.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '"', '\'', '\\':
			b.WriteByte(s[i+1])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i+1])
		}
		i++
	}
	return b.String()
}

// Helper methods

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekNext() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) advance() Token {
	if !p.isAtEnd() {
		p.pos++
		return p.tokens[p.pos-1]
	}
	return p.peek()
}

func (p *Parser) check(t TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) expect(t TokenType) Token {
	if p.check(t) {
		return p.advance()
	}
	p.errorExpected(fmt.Sprintf("'%v'", t))
	return Token{}
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == TokenEOF
}

func (p *Parser) failed() bool {
	return len(p.errors) > 0
}

func (p *Parser) skipNewlines() {
	for p.check(TokenNewline) {
		p.advance()
	}
}

func (p *Parser) skipSeparators() {
	for p.check(TokenNewline) || p.check(TokenSemicolon) {
		p.advance()
	}
}

func (p *Parser) textBetween(start, end int) string {
	if p.source == "" || start < 0 || end > len(p.source) || start > end {
		return ""
	}
	return strings.TrimSpace(p.source[start:end])
}

func (p *Parser) error(msg string) {
	p.errorAt(p.peek(), msg)
}

func (p *Parser) errorExpected(expected string) {
	if p.failed() {
		return
	}
	tok := p.peek()
	p.errors = append(p.errors, &ParseError{
		Pos:      tok.Pos,
		Line:     tok.Line,
		Col:      tok.Col,
		Expected: expected,
		Found:    tok.describe(),
		Msg:      fmt.Sprintf("expected %s, found %s", expected, tok.describe()),
	})
}

func (p *Parser) errorAt(tok Token, msg string) {
	if p.failed() {
		return
	}
	p.errors = append(p.errors, &ParseError{
		Pos:   tok.Pos,
		Line:  tok.Line,
		Col:   tok.Col,
		Found: tok.describe(),
		Msg:   msg,
	})
}
