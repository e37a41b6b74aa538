package dsl

import (
	"fmt"
	"strings"
	"unicode"
)

// Lexer tokenizes pipeline source text.
type Lexer struct {
	input  string
	pos    int
	line   int
	col    int
	depth  int // open ( and [ not yet closed
	tokens []Token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		pos:    0,
		line:   1,
		col:    1,
		tokens: []Token{},
	}
}

// Tokenize is a convenience wrapper around NewLexer(input).Tokenize().
func Tokenize(input string) ([]Token, error) {
	return NewLexer(input).Tokenize()
}

// Tokenize tokenizes the entire input. Newlines inside an argument list are
// dropped; at the top level they are emitted so the parser can split
// statements.
func (l *Lexer) Tokenize() ([]Token, error) {
	for l.pos < len(l.input) {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			break
		}

		ch := l.peek()

		switch {
		case ch == '\n':
			if l.depth == 0 {
				l.emit(TokenNewline, "\n", 1)
			} else {
				l.advance()
			}
			l.line++
			l.col = 1

		case ch == '#':
			l.scanComment()

		case ch == '"' || ch == '\'':
			if err := l.scanString(ch); err != nil {
				return nil, err
			}

		case ch == '$':
			if err := l.scanPositional(); err != nil {
				return nil, err
			}

		case ch == '|':
			if l.peekNext() == '|' {
				l.emit(TokenOr, "||", 2)
			} else {
				l.emit(TokenPipe, "|", 1)
			}

		case ch == '&':
			if l.peekNext() != '&' {
				return nil, l.errorf("unexpected '&'; use 'and' or '&&'")
			}
			l.emit(TokenAnd, "&&", 2)

		case ch == '=':
			if l.peekNext() == '=' {
				l.emit(TokenEQ, "==", 2)
			} else {
				l.emit(TokenAssign, "=", 1)
			}

		case ch == '!':
			if l.peekNext() == '=' {
				l.emit(TokenNE, "!=", 2)
			} else {
				l.emit(TokenNot, "!", 1)
			}

		case ch == '<':
			if l.peekNext() == '=' {
				l.emit(TokenLE, "<=", 2)
			} else {
				l.emit(TokenLT, "<", 1)
			}

		case ch == '>':
			if l.peekNext() == '=' {
				l.emit(TokenGE, ">=", 2)
			} else {
				l.emit(TokenGT, ">", 1)
			}

		case ch == '-':
			if l.peekNext() == '>' {
				l.emit(TokenArrow, "->", 2)
			} else {
				l.emit(TokenMinus, "-", 1)
			}

		case ch == '.':
			if l.peekNext() == '.' {
				l.emit(TokenRange, "..", 2)
			} else {
				l.emit(TokenDot, ".", 1)
			}

		case ch == '+':
			l.emit(TokenPlus, "+", 1)

		case ch == '*':
			l.emit(TokenStar, "*", 1)

		case ch == '/':
			l.emit(TokenSlash, "/", 1)

		case ch == '(':
			l.depth++
			l.emit(TokenLParen, "(", 1)

		case ch == ')':
			l.closeGroup()
			l.emit(TokenRParen, ")", 1)

		case ch == '[':
			l.depth++
			l.emit(TokenLBracket, "[", 1)

		case ch == ']':
			l.closeGroup()
			l.emit(TokenRBracket, "]", 1)

		case ch == ',':
			l.emit(TokenComma, ",", 1)

		case ch == ';':
			l.emit(TokenSemicolon, ";", 1)

		case isDigit(ch):
			l.scanNumber()

		case unicode.IsLetter(rune(ch)) || ch == '_':
			l.scanIdentifier()

		default:
			return nil, l.errorf("unexpected character %q", rune(ch))
		}
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos, Line: l.line, Col: l.col})
	return l.tokens, nil
}

func (l *Lexer) emit(typ TokenType, value string, width int) {
	l.tokens = append(l.tokens, Token{Type: typ, Value: value, Pos: l.pos, Line: l.line, Col: l.col})
	for i := 0; i < width; i++ {
		l.advance()
	}
}

func (l *Lexer) closeGroup() {
	if l.depth > 0 {
		l.depth--
	}
}

func (l *Lexer) errorf(format string, args ...any) error {
	return &LexError{Pos: l.pos, Line: l.line, Col: l.col, Reason: fmt.Sprintf(format, args...)}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekNext() byte {
	if l.pos+1 >= len(l.input) {
		return 0
	}
	return l.input[l.pos+1]
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		l.pos++
		l.col++
	}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == ' ' || ch == '\t' || ch == '\r' {
			l.col++
			l.pos++
		} else {
			break
		}
	}
}

func (l *Lexer) scanComment() {
	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		l.pos++
		l.col++
	}
}

// scanString keeps backslash sequences verbatim; a backslash only stops the
// following quote from terminating the literal.
func (l *Lexer) scanString(quote byte) error {
	startPos, startLine, startCol := l.pos, l.line, l.col
	l.advance()
	start := l.pos

	for l.pos < len(l.input) && l.input[l.pos] != quote {
		switch l.input[l.pos] {
		case '\\':
			l.advance()
		case '\n':
			l.line++
			l.col = 0
		}
		l.advance()
	}

	if l.pos >= len(l.input) {
		return &LexError{Pos: startPos, Line: startLine, Col: startCol, Reason: "unterminated string literal"}
	}

	value := l.input[start:l.pos]
	l.tokens = append(l.tokens, Token{Type: TokenString, Value: value, Pos: startPos, Line: startLine, Col: startCol})
	l.advance()
	return nil
}

func (l *Lexer) scanPositional() error {
	startPos, startCol := l.pos, l.col
	l.advance()
	start := l.pos
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.advance()
	}
	if l.pos == start {
		return &LexError{Pos: startPos, Line: l.line, Col: startCol, Reason: "expected a column number after '$'"}
	}
	l.tokens = append(l.tokens, Token{Type: TokenPositional, Value: l.input[start:l.pos], Pos: startPos, Line: l.line, Col: startCol})
	return nil
}

// scanNumber reads digits, an optional fraction and an optional k/m/b
// multiplier suffix. "1..5" lexes as 1, .., 5.
func (l *Lexer) scanNumber() {
	startPos, startCol := l.pos, l.col

	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.advance()
	}

	if l.peek() == '.' && isDigit(l.peekNext()) {
		l.advance()
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.advance()
		}
	}

	switch l.peek() {
	case 'k', 'K', 'm', 'M', 'b', 'B':
		if !isIdentChar(l.peekNext()) {
			l.advance()
		}
	}

	value := l.input[startPos:l.pos]
	l.tokens = append(l.tokens, Token{Type: TokenNumber, Value: value, Pos: startPos, Line: l.line, Col: startCol})
}

func (l *Lexer) scanIdentifier() {
	startPos, startCol := l.pos, l.col

	l.advance()
	for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.advance()
	}

	value := l.input[startPos:l.pos]
	tokenType := LookupIdent(strings.ToLower(value))
	l.tokens = append(l.tokens, Token{Type: tokenType, Value: value, Pos: startPos, Line: l.line, Col: startCol})
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentChar(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || isDigit(ch) || ch == '_'
}
