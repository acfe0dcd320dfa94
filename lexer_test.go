package oba

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, source string) []Token {
	t.Helper()
	l := NewLexer(source)
	var toks []Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return toks
}

func TestLexer_Literals(t *testing.T) {
	toks := lexAll(t, `42 3.5 true false "hi"`)
	require.Len(t, toks, 6)
	assert.Equal(t, TokenNumber, toks[0].Type)
	assert.Equal(t, 42.0, toks[0].Number)
	assert.Equal(t, TokenNumber, toks[1].Type)
	assert.Equal(t, 3.5, toks[1].Number)
	assert.Equal(t, TokenTrue, toks[2].Type)
	assert.Equal(t, TokenFalse, toks[3].Type)
	assert.Equal(t, TokenString, toks[4].Type)
	assert.Equal(t, "hi", toks[4].Str)
	assert.Equal(t, TokenEOF, toks[5].Type)
}

func TestLexer_KeywordsAndIdentifiers(t *testing.T) {
	toks := lexAll(t, "fn let if else while match import data debug foo_bar")
	kinds := make([]TokenType, 0, len(toks)-1)
	for _, tok := range toks[:len(toks)-1] {
		kinds = append(kinds, tok.Type)
	}
	assert.Equal(t, []TokenType{
		TokenFn, TokenLet, TokenIf, TokenElse, TokenWhile, TokenMatch,
		TokenImport, TokenData, TokenDebug, TokenIdent,
	}, kinds)
}

func TestLexer_Operators(t *testing.T) {
	toks := lexAll(t, "+ - * / = == != < <= > >= :: |")
	kinds := make([]TokenType, 0, len(toks)-1)
	for _, tok := range toks[:len(toks)-1] {
		kinds = append(kinds, tok.Type)
	}
	assert.Equal(t, []TokenType{
		TokenPlus, TokenMinus, TokenMultiply, TokenDivide, TokenAssign,
		TokenEq, TokenNeq, TokenLt, TokenLte, TokenGt, TokenGte,
		TokenMember, TokenGuard,
	}, kinds)
}

func TestLexer_LineCommentsAreSkipped(t *testing.T) {
	toks := lexAll(t, "1 // trailing comment\n2")
	require.Len(t, toks, 4)
	assert.Equal(t, TokenNumber, toks[0].Type)
	assert.Equal(t, TokenNewline, toks[1].Type)
	assert.Equal(t, TokenNumber, toks[2].Type)
}

func TestLexer_StringEscapes(t *testing.T) {
	toks := lexAll(t, `"a\nb\"c\\d"`)
	require.Len(t, toks, 2)
	assert.Equal(t, "a\nb\"c\\d", toks[0].Str)
}

func TestLexer_UnterminatedStringIsAnError(t *testing.T) {
	toks := lexAll(t, `"unterminated`)
	last := toks[len(toks)-1]
	assert.Equal(t, TokenError, last.Type)
}

// TestLexer_InterpolationSplicesLiteralAndExpressionSegments exercises the
// protocol compiler_expr.go's interpolation() depends on: each "%(" opens
// an expression, and the ')' that closes it is consumed internally by the
// lexer to resume string scanning - it never reaches the token stream as a
// TokenRparen.
func TestLexer_InterpolationSplicesLiteralAndExpressionSegments(t *testing.T) {
	toks := lexAll(t, `"a%(x)b%(y)c"`)
	// "a" (interpolation) , x (ident), "b" (interpolation), y (ident), "c" (string), EOF
	require.Len(t, toks, 6)
	assert.Equal(t, TokenInterpolation, toks[0].Type)
	assert.Equal(t, "a", toks[0].Str)
	assert.Equal(t, TokenIdent, toks[1].Type)
	assert.Equal(t, "x", toks[1].Lexeme)
	assert.Equal(t, TokenInterpolation, toks[2].Type)
	assert.Equal(t, "b", toks[2].Str)
	assert.Equal(t, TokenIdent, toks[3].Type)
	assert.Equal(t, "y", toks[3].Lexeme)
	assert.Equal(t, TokenString, toks[4].Type)
	assert.Equal(t, "c", toks[4].Str)
}

func TestLexer_NewlineReportsTheLineItTerminates(t *testing.T) {
	toks := lexAll(t, "1\n2")
	require.Len(t, toks, 4)
	assert.Equal(t, 1, toks[1].Line, "the NEWLINE token belongs to line 1, not line 2")
	assert.Equal(t, 2, toks[2].Line)
}
