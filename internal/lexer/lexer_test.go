package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xinuc/xinuc/internal/token"
)

func allTokens(t *testing.T, src string) []token.Token {
	t.Helper()
	lx := New([]byte(src), "test.xc")
	var toks []token.Token
	for {
		tok := lx.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks
}

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func TestLexerBasicDeclaration(t *testing.T) {
	toks := allTokens(t, "int x = 42;")
	require.Equal(t, []token.Kind{
		token.KwInt, token.Ident, token.Assign, token.Number, token.Semicolon, token.EOF,
	}, kinds(toks))
	require.Equal(t, int64(42), toks[3].IntVal)
}

func TestLexerLongestMatchOperators(t *testing.T) {
	toks := allTokens(t, "a <<= b; a << b; a < b;")
	require.Contains(t, kinds(toks), token.ShlAssign)
	require.Contains(t, kinds(toks), token.Shl)
	require.Contains(t, kinds(toks), token.Lt)
}

func TestLexerSkipsLineAndBlockComments(t *testing.T) {
	toks := allTokens(t, "int x; // trailing\n/* block\ncomment */ int y;")
	require.Equal(t, []token.Kind{
		token.KwInt, token.Ident, token.Semicolon,
		token.KwInt, token.Ident, token.Semicolon, token.EOF,
	}, kinds(toks))
}

func TestLexerHexBinaryOctalLiterals(t *testing.T) {
	toks := allTokens(t, "0x1F 0b101 017")
	require.Equal(t, int64(31), toks[0].IntVal)
	require.Equal(t, int64(5), toks[1].IntVal)
	require.Equal(t, int64(15), toks[2].IntVal)
}

func TestLexerFloatLiteral(t *testing.T) {
	toks := allTokens(t, "3.14 2e3")
	require.Equal(t, token.Float, toks[0].Kind)
	require.InDelta(t, 3.14, toks[0].FloatVal, 1e-9)
	require.Equal(t, token.Float, toks[1].Kind)
	require.InDelta(t, 2000.0, toks[1].FloatVal, 1e-9)
}

func TestLexerMixedLiteralPayloads(t *testing.T) {
	toks := allTokens(t, "0x1F 0b101 017 3.14e-2 \"a\\nb\" 'z'")
	require.Equal(t, int64(31), toks[0].IntVal)
	require.Equal(t, int64(5), toks[1].IntVal)
	require.Equal(t, int64(15), toks[2].IntVal)
	require.InDelta(t, 0.0314, toks[3].FloatVal, 1e-9)
	require.Equal(t, "a\nb", toks[4].Spelling)
	require.Equal(t, byte('z'), toks[5].CharVal)
	lx := New([]byte("0x1F 0b101 017 3.14e-2 \"a\\nb\" 'z'"), "test.xc")
	for lx.Next().Kind != token.EOF {
	}
	require.False(t, lx.HadError())
}

func TestLexerNumericSuffixesAreDiscarded(t *testing.T) {
	toks := allTokens(t, "10UL 0x1FU 0b101L 2.5f")
	require.Equal(t, []token.Kind{
		token.Number, token.Number, token.Number, token.Float, token.EOF,
	}, kinds(toks))
	require.Equal(t, int64(10), toks[0].IntVal)
	require.Equal(t, int64(31), toks[1].IntVal)
	require.Equal(t, int64(5), toks[2].IntVal)
}

func TestLexerStringEscapes(t *testing.T) {
	toks := allTokens(t, `"hi\n"`)
	require.Equal(t, token.String, toks[0].Kind)
	require.Equal(t, "hi\n", toks[0].Spelling)
}

func TestLexerCharLiteral(t *testing.T) {
	toks := allTokens(t, `'a' '\n'`)
	require.Equal(t, byte('a'), toks[0].CharVal)
	require.Equal(t, byte('\n'), toks[1].CharVal)
}

func TestLexerUnterminatedStringIsError(t *testing.T) {
	lx := New([]byte(`"unterminated`), "test.xc")
	for {
		tok := lx.Next()
		if tok.Kind == token.EOF {
			break
		}
	}
	require.True(t, lx.HadError())
}

func TestLexerXinuKeywords(t *testing.T) {
	toks := allTokens(t, "create(f, 1024, 20, \"p\", 0);")
	require.Equal(t, token.KwCreate, toks[0].Kind)
}

func TestLexerPeekDoesNotConsume(t *testing.T) {
	lx := New([]byte("int x;"), "test.xc")
	first := lx.Peek()
	second := lx.Peek()
	require.Equal(t, first, second)
	third := lx.Next()
	require.Equal(t, first, third)
}

func TestLexerUngetOneSlot(t *testing.T) {
	lx := New([]byte("int x;"), "test.xc")
	first := lx.Next()
	lx.Unget(first)
	replayed := lx.Next()
	require.Equal(t, first, replayed)
	require.Equal(t, token.Ident, lx.Next().Kind)
}

func TestLexerIdentifierVsKeywordBoundary(t *testing.T) {
	toks := allTokens(t, "interrupts")
	require.Equal(t, token.Ident, toks[0].Kind)
}
