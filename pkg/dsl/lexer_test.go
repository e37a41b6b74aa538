package dsl

import (
	"errors"
	"testing"
)

func TestLexer_BasicTokens(t *testing.T) {
	input := `data = read('sales.csv') | filter(x > 10)`

	tokens, err := Tokenize(input)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}

	expected := []TokenType{
		TokenIdent,  // data
		TokenAssign, // =
		TokenIdent,  // read
		TokenLParen, // (
		TokenString, // 'sales.csv'
		TokenRParen, // )
		TokenPipe,   // |
		TokenIdent,  // filter
		TokenLParen, // (
		TokenIdent,  // x
		TokenGT,     // >
		TokenNumber, // 10
		TokenRParen, // )
		TokenEOF,
	}

	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d: %v", len(expected), len(tokens), tokens)
	}

	for i, exp := range expected {
		if tokens[i].Type != exp {
			t.Errorf("token %d: expected %v, got %v", i, exp, tokens[i].Type)
		}
	}
}

func TestLexer_PositionalVersusNumber(t *testing.T) {
	tokens, err := Tokenize(`$3 3`)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if tokens[0].Type != TokenPositional || tokens[0].Value != "3" {
		t.Errorf("expected positional 3, got %v", tokens[0])
	}
	if tokens[1].Type != TokenNumber || tokens[1].Value != "3" {
		t.Errorf("expected number 3, got %v", tokens[1])
	}
}

func TestLexer_RangeIsOneToken(t *testing.T) {
	tokens, err := Tokenize(`$1..$3`)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	want := []TokenType{TokenPositional, TokenRange, TokenPositional, TokenEOF}
	for i, w := range want {
		if tokens[i].Type != w {
			t.Errorf("token %d: expected %v, got %v", i, w, tokens[i].Type)
		}
	}

	// a number immediately before .. keeps its own token
	tokens, err = Tokenize(`1..5`)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if tokens[0].Value != "1" || tokens[1].Type != TokenRange || tokens[2].Value != "5" {
		t.Errorf("unexpected tokens for 1..5: %v", tokens)
	}
}

func TestLexer_Operators(t *testing.T) {
	tests := []struct {
		input    string
		expected TokenType
	}{
		{"==", TokenEQ},
		{"!=", TokenNE},
		{"<", TokenLT},
		{"<=", TokenLE},
		{">", TokenGT},
		{">=", TokenGE},
		{"+", TokenPlus},
		{"-", TokenMinus},
		{"->", TokenArrow},
		{"*", TokenStar},
		{"/", TokenSlash},
		{"&&", TokenAnd},
		{"||", TokenOr},
		{"|", TokenPipe},
		{"..", TokenRange},
		{".", TokenDot},
		{"and", TokenAnd},
		{"OR", TokenOr},
		{"in", TokenIn},
		{"as", TokenAs},
		{"null", TokenNull},
	}

	for _, tt := range tests {
		tokens, err := Tokenize(tt.input)
		if err != nil {
			t.Fatalf("input %q: %v", tt.input, err)
		}

		if tokens[0].Type != tt.expected {
			t.Errorf("input %q: expected %v, got %v", tt.input, tt.expected, tokens[0].Type)
		}
	}
}

func TestLexer_Strings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`'single'`, "single"},
		{`"double"`, "double"},
		{`'it\'s'`, `it\'s`},
		{`'\d+'`, `\d+`},
		{`"a'b"`, "a'b"},
	}

	for _, tt := range tests {
		tokens, err := Tokenize(tt.input)
		if err != nil {
			t.Fatalf("input %q: %v", tt.input, err)
		}
		if tokens[0].Type != TokenString {
			t.Fatalf("input %q: expected string, got %v", tt.input, tokens[0].Type)
		}
		if tokens[0].Value != tt.want {
			t.Errorf("input %q: expected raw value %q, got %q", tt.input, tt.want, tokens[0].Value)
		}
	}
}

func TestLexer_NumberSuffixes(t *testing.T) {
	tokens, err := Tokenize(`10k 1.5m 2B 3kg`)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	want := []string{"10k", "1.5m", "2B", "3"}
	for i, w := range want {
		if tokens[i].Value != w {
			t.Errorf("token %d: expected %q, got %q", i, w, tokens[i].Value)
		}
	}
	if tokens[4].Type != TokenIdent || tokens[4].Value != "kg" {
		t.Errorf("expected identifier kg, got %v", tokens[4])
	}
}

func TestLexer_NewlinesInsideArgumentsAreDropped(t *testing.T) {
	tokens, err := Tokenize("select(\n a,\n b\n)\nx")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	newlines := 0
	for _, tok := range tokens {
		if tok.Type == TokenNewline {
			newlines++
		}
	}
	if newlines != 1 {
		t.Errorf("expected 1 top-level newline, got %d", newlines)
	}
}

func TestLexer_Comments(t *testing.T) {
	tokens, err := Tokenize("x # trailing comment\ny")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	want := []TokenType{TokenIdent, TokenNewline, TokenIdent, TokenEOF}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(tokens), tokens)
	}
}

func TestLexer_Errors(t *testing.T) {
	tests := []struct {
		input string
		pos   int
	}{
		{`'open`, 0},
		{`x = $`, 4},
		{`a @ b`, 2},
		{`a & b`, 2},
	}

	for _, tt := range tests {
		_, err := Tokenize(tt.input)
		var lexErr *LexError
		if !errors.As(err, &lexErr) {
			t.Fatalf("input %q: expected LexError, got %v", tt.input, err)
		}
		if lexErr.Pos != tt.pos {
			t.Errorf("input %q: expected offset %d, got %d", tt.input, tt.pos, lexErr.Pos)
		}
	}
}

func TestLexer_Positions(t *testing.T) {
	tokens, err := Tokenize("a\n  b")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	b := tokens[2]
	if b.Line != 2 || b.Col != 3 || b.Pos != 4 {
		t.Errorf("expected b at line 2 col 3 offset 4, got %v (pos %d)", b, b.Pos)
	}
}
