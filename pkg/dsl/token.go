package dsl

import "fmt"

// TokenType represents the type of a DSL token.
type TokenType uint8

const (
	TokenEOF TokenType = iota
	TokenNewline
	TokenIdent      // column, variable, stage and function names
	TokenNumber     // 42, 1.5, 10k
	TokenString     // 'quoted' or "quoted"
	TokenPositional // $3

	// Operators
	TokenAssign // =
	TokenPipe   // |
	TokenRange  // ..
	TokenArrow  // ->
	TokenPlus   // +
	TokenMinus  // -
	TokenStar   // *
	TokenSlash  // /
	TokenEQ     // ==
	TokenNE     // !=
	TokenLT     // <
	TokenLE     // <=
	TokenGT     // >
	TokenGE     // >=
	TokenAnd    // and, &&
	TokenOr     // or, ||
	TokenNot    // not
	TokenIn     // in
	TokenAs     // as
	TokenDot    // .

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenComma     // ,
	TokenSemicolon // ;

	// Literals
	TokenTrue  // true
	TokenFalse // false
	TokenNull  // null
)

var tokenNames = [...]string{
	TokenEOF:        "EOF",
	TokenNewline:    "NEWLINE",
	TokenIdent:      "IDENT",
	TokenNumber:     "NUMBER",
	TokenString:     "STRING",
	TokenPositional: "POSITIONAL",
	TokenAssign:     "=",
	TokenPipe:       "|",
	TokenRange:      "..",
	TokenArrow:      "->",
	TokenPlus:       "+",
	TokenMinus:      "-",
	TokenStar:       "*",
	TokenSlash:      "/",
	TokenEQ:         "==",
	TokenNE:         "!=",
	TokenLT:         "<",
	TokenLE:         "<=",
	TokenGT:         ">",
	TokenGE:         ">=",
	TokenAnd:        "AND",
	TokenOr:         "OR",
	TokenNot:        "NOT",
	TokenIn:         "IN",
	TokenAs:         "AS",
	TokenDot:        ".",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBracket:   "[",
	TokenRBracket:   "]",
	TokenComma:      ",",
	TokenSemicolon:  ";",
	TokenTrue:       "TRUE",
	TokenFalse:      "FALSE",
	TokenNull:       "NULL",
}

// String returns the string representation of a token type.
func (t TokenType) String() string {
	if int(t) < len(tokenNames) && tokenNames[t] != "" {
		return tokenNames[t]
	}
	return "UNKNOWN"
}

// Token represents a lexical token. Pos is the byte offset into the source.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
	Line  int
	Col   int
}

// String returns a human-readable representation of the token for debugging.
func (t Token) String() string {
	if t.Value != "" {
		return fmt.Sprintf("%s(%s)@%d:%d", t.Type, t.Value, t.Line, t.Col)
	}
	return fmt.Sprintf("%s@%d:%d", t.Type, t.Line, t.Col)
}

// describe renders a token the way parse errors quote it.
func (t Token) describe() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenNewline:
		return "end of line"
	case TokenString:
		return fmt.Sprintf("'%s'", t.Value)
	case TokenPositional:
		return "$" + t.Value
	default:
		if t.Value != "" {
			return fmt.Sprintf("'%s'", t.Value)
		}
		return t.Type.String()
	}
}

// keywords maps reserved words to token types. Stage and function names are
// plain identifiers so they stay usable as column names.
var keywords = map[string]TokenType{
	"and":   TokenAnd,
	"or":    TokenOr,
	"not":   TokenNot,
	"in":    TokenIn,
	"as":    TokenAs,
	"true":  TokenTrue,
	"false": TokenFalse,
	"null":  TokenNull,
}

// LookupIdent returns the token type for an identifier.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdent
}
