// Package lexer turns a source buffer into a stream of tokens: a
// peek/advance byte cursor, a skipWhitespace that also eats comments,
// and longest-match operator scanning. The one-token peek cache and
// the one-slot unget buffer are fields of the Lexer instance, so
// separate compilations never share state.
package lexer

import (
	"fmt"
	"strings"

	"github.com/xinuc/xinuc/internal/token"
)

// Lexer converts a source buffer into a token stream on demand.
type Lexer struct {
	src      []byte
	filename string
	pos      int
	line     int
	col      int

	peeked *token.Token
	ungot  *token.Token

	hadError bool
	errMsg   string
}

// New creates a Lexer over src, reporting positions against filename.
func New(src []byte, filename string) *Lexer {
	return &Lexer{
		src:      src,
		filename: filename,
		pos:      0,
		line:     1,
		col:      1,
	}
}

// HadError reports whether any lexical error has been latched.
func (l *Lexer) HadError() bool { return l.hadError }

// ErrMsg returns the most recently latched error message.
func (l *Lexer) ErrMsg() string { return l.errMsg }

// errorf latches the error state and returns an Error token whose
// spelling is the bare message; ErrMsg carries the position-prefixed
// form "<file>:<line>:<col>: error: <msg>".
func (l *Lexer) errorf(pos token.Position, format string, args ...interface{}) token.Token {
	l.hadError = true
	msg := fmt.Sprintf(format, args...)
	l.errMsg = fmt.Sprintf("%s: error: %s", pos, msg)
	return token.Token{Kind: token.Error, Spelling: msg, Pos: pos}
}

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekByteN(n int) byte {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

func (l *Lexer) advance() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	ch := l.src[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

func (l *Lexer) curPos() token.Position {
	return token.Position{File: l.filename, Line: l.line, Column: l.col}
}

// Peek returns the next token without consuming it. A second call to
// Peek before any Next returns the same cached token.
func (l *Lexer) Peek() token.Token {
	if l.ungot != nil {
		return *l.ungot
	}
	if l.peeked == nil {
		t := l.scan()
		l.peeked = &t
	}
	return *l.peeked
}

// Next returns the next token and advances the stream.
func (l *Lexer) Next() token.Token {
	if l.ungot != nil {
		t := *l.ungot
		l.ungot = nil
		return t
	}
	if l.peeked != nil {
		t := *l.peeked
		l.peeked = nil
		return t
	}
	return l.scan()
}

// Unget pushes a single token back onto the stream. Only one slot of
// pushback is supported.
func (l *Lexer) Unget(t token.Token) {
	l.ungot = &t
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func (l *Lexer) skipWhitespace() token.Token {
	for {
		ch := l.peekByte()
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			l.advance()
		case ch == '/' && l.peekByteN(1) == '/':
			for l.peekByte() != '\n' && l.peekByte() != 0 {
				l.advance()
			}
		case ch == '/' && l.peekByteN(1) == '*':
			start := l.curPos()
			l.advance()
			l.advance()
			closed := false
			for l.peekByte() != 0 {
				if l.peekByte() == '*' && l.peekByteN(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return l.errorf(start, "unterminated block comment")
			}
		default:
			return token.Token{}
		}
	}
}

// scan produces the next raw token, handling comments and whitespace
// first. It is the only place the cursor advances past a complete
// token; Peek/Next only manage the one-slot cache around it.
func (l *Lexer) scan() token.Token {
	if errTok := l.skipWhitespace(); errTok.Kind == token.Error {
		return errTok
	}

	if l.pos >= len(l.src) {
		return token.Token{Kind: token.EOF, Pos: l.curPos()}
	}

	start := l.curPos()
	ch := l.peekByte()

	switch {
	case isLetter(ch):
		return l.scanIdentifier(start)
	case isDigit(ch):
		return l.scanNumber(start)
	case ch == '.' && isDigit(l.peekByteN(1)):
		return l.scanNumber(start)
	case ch == '"':
		return l.scanString(start)
	case ch == '\'':
		return l.scanChar(start)
	default:
		return l.scanOperator(start)
	}
}

func (l *Lexer) scanIdentifier(start token.Position) token.Token {
	var b strings.Builder
	for isLetter(l.peekByte()) || isDigit(l.peekByte()) {
		b.WriteByte(l.advance())
	}
	spelling := b.String()
	if len(spelling) > token.MaxSpelling {
		spelling = spelling[:token.MaxSpelling]
	}
	if kind, ok := token.Lookup(spelling); ok {
		return token.Token{Kind: kind, Spelling: spelling, Pos: start}
	}
	return token.Token{Kind: token.Ident, Spelling: spelling, Pos: start}
}

func (l *Lexer) scanNumber(start token.Position) token.Token {
	var b strings.Builder
	isFloat := false

	if l.peekByte() == '0' && (l.peekByteN(1) == 'x' || l.peekByteN(1) == 'X') {
		b.WriteByte(l.advance())
		b.WriteByte(l.advance())
		for isHexDigit(l.peekByte()) {
			b.WriteByte(l.advance())
		}
		l.consumeNumericSuffix()
		return l.finishIntLiteral(start, b.String(), 16, 2)
	}
	if l.peekByte() == '0' && (l.peekByteN(1) == 'b' || l.peekByteN(1) == 'B') {
		b.WriteByte(l.advance())
		b.WriteByte(l.advance())
		for l.peekByte() == '0' || l.peekByte() == '1' {
			b.WriteByte(l.advance())
		}
		l.consumeNumericSuffix()
		return l.finishIntLiteral(start, b.String(), 2, 2)
	}

	octal := l.peekByte() == '0' && isDigit(l.peekByteN(1))

	for isDigit(l.peekByte()) {
		b.WriteByte(l.advance())
	}
	if l.peekByte() == '.' && isDigit(l.peekByteN(1)) {
		isFloat = true
		b.WriteByte(l.advance())
		for isDigit(l.peekByte()) {
			b.WriteByte(l.advance())
		}
	}
	if l.peekByte() == 'e' || l.peekByte() == 'E' {
		isFloat = true
		b.WriteByte(l.advance())
		if l.peekByte() == '+' || l.peekByte() == '-' {
			b.WriteByte(l.advance())
		}
		for isDigit(l.peekByte()) {
			b.WriteByte(l.advance())
		}
	}

	l.consumeNumericSuffix()

	spelling := b.String()
	if isFloat {
		return l.finishFloatLiteral(start, spelling)
	}
	base := 10
	skip := 0
	if octal {
		base = 8
		skip = 1
	}
	return l.finishIntLiteral(start, spelling, base, skip)
}

func (l *Lexer) consumeNumericSuffix() {
	for {
		ch := l.peekByte()
		if ch == 'u' || ch == 'U' || ch == 'l' || ch == 'L' || ch == 'f' || ch == 'F' {
			l.advance()
			continue
		}
		break
	}
}

func (l *Lexer) finishIntLiteral(start token.Position, spelling string, base int, skip int) token.Token {
	digits := spelling[skip:]
	var v int64
	for i := 0; i < len(digits); i++ {
		d := digitValue(digits[i])
		v = v*int64(base) + int64(d)
	}
	return token.Token{
		Kind: token.Number, Spelling: spelling, Pos: start,
		LitKind: token.LitInt, IntVal: v,
	}
}

func digitValue(ch byte) int {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0')
	case ch >= 'a' && ch <= 'f':
		return int(ch-'a') + 10
	case ch >= 'A' && ch <= 'F':
		return int(ch-'A') + 10
	}
	return 0
}

func (l *Lexer) finishFloatLiteral(start token.Position, spelling string) token.Token {
	var v float64
	fmt.Sscanf(spelling, "%g", &v)
	return token.Token{
		Kind: token.Float, Spelling: spelling, Pos: start,
		LitKind: token.LitFloat, FloatVal: v,
	}
}

func (l *Lexer) scanEscape() (byte, bool) {
	l.advance() // consume backslash
	ch := l.advance()
	switch ch {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case '0':
		return 0, true
	case '\\':
		return '\\', true
	case '\'':
		return '\'', true
	case '"':
		return '"', true
	case 'a':
		return '\a', true
	case 'b':
		return '\b', true
	case 'f':
		return '\f', true
	case 'v':
		return '\v', true
	case 'x':
		if !isHexDigit(l.peekByte()) {
			return 0, false
		}
		v := digitValue(l.advance())
		if isHexDigit(l.peekByte()) {
			v = v*16 + digitValue(l.advance())
		}
		return byte(v), true
	default:
		return 0, false
	}
}

func (l *Lexer) scanString(start token.Position) token.Token {
	l.advance() // opening quote
	var b strings.Builder
	for {
		ch := l.peekByte()
		if ch == 0 || ch == '"' {
			break
		}
		if ch == '\n' {
			return l.errorf(start, "newline in string literal")
		}
		if ch == '\\' {
			v, ok := l.scanEscape()
			if !ok {
				return l.errorf(start, "invalid escape sequence in string literal")
			}
			b.WriteByte(v)
			continue
		}
		b.WriteByte(l.advance())
	}
	if l.peekByte() != '"' {
		return l.errorf(start, "unterminated string literal")
	}
	l.advance()
	spelling := b.String()
	if len(spelling) > token.MaxSpelling {
		spelling = spelling[:token.MaxSpelling]
	}
	return token.Token{Kind: token.String, Spelling: spelling, Pos: start}
}

func (l *Lexer) scanChar(start token.Position) token.Token {
	l.advance() // opening quote
	var v byte
	if l.peekByte() == '\\' {
		val, ok := l.scanEscape()
		if !ok {
			return l.errorf(start, "invalid escape sequence in character literal")
		}
		v = val
	} else if l.peekByte() == 0 || l.peekByte() == '\'' {
		return l.errorf(start, "unterminated character literal")
	} else {
		v = l.advance()
	}
	if l.peekByte() != '\'' {
		return l.errorf(start, "unterminated character literal")
	}
	l.advance()
	return token.Token{
		Kind: token.Char, Spelling: string(v), Pos: start,
		LitKind: token.LitChar, CharVal: v, IntVal: int64(v),
	}
}

// multiCharOps is ordered longest-match first so that e.g. "<<=" is
// preferred over "<<" which is preferred over "<".
var multiCharOps = []struct {
	text string
	kind token.Kind
}{
	{"<<=", token.ShlAssign}, {">>=", token.ShrAssign},
	{"==", token.Eq}, {"!=", token.Ne}, {"<=", token.Le}, {">=", token.Ge},
	{"&&", token.LogAnd}, {"||", token.LogOr},
	{"+=", token.PlusAssign}, {"-=", token.MinusAssign}, {"*=", token.StarAssign},
	{"/=", token.SlashAssign}, {"%=", token.PercentAssign}, {"&=", token.AndAssign},
	{"|=", token.OrAssign}, {"^=", token.XorAssign},
	{"<<", token.Shl}, {">>", token.Shr},
	{"->", token.Arrow}, {"++", token.Inc}, {"--", token.Dec},
}

var singleCharOps = map[byte]token.Kind{
	'(': token.LParen, ')': token.RParen, '{': token.LBrace, '}': token.RBrace,
	'[': token.LBracket, ']': token.RBracket, ';': token.Semicolon, ':': token.Colon,
	',': token.Comma, '.': token.Dot, '?': token.Question,
	'=': token.Assign, '+': token.Plus, '-': token.Minus, '*': token.Star,
	'/': token.Slash, '%': token.Percent, '&': token.Amp, '|': token.Pipe,
	'^': token.Caret, '~': token.Tilde, '<': token.Lt, '>': token.Gt, '!': token.Bang,
}

func (l *Lexer) scanOperator(start token.Position) token.Token {
	for _, op := range multiCharOps {
		if l.matches(op.text) {
			for range op.text {
				l.advance()
			}
			return token.Token{Kind: op.kind, Spelling: op.text, Pos: start}
		}
	}
	ch := l.peekByte()
	if kind, ok := singleCharOps[ch]; ok {
		l.advance()
		return token.Token{Kind: kind, Spelling: string(ch), Pos: start}
	}
	l.advance()
	return l.errorf(start, "unexpected character '%c'", ch)
}

func (l *Lexer) matches(s string) bool {
	for i := 0; i < len(s); i++ {
		if l.peekByteN(i) != s[i] {
			return false
		}
	}
	return true
}
