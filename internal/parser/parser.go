// Package parser implements the recursive-descent parser: it consumes
// a token.Token stream from internal/lexer and produces an
// internal/ast tree plus a populated internal/symtab.Table, reporting
// diagnostics through internal/diag rather than stopping at the first
// error.
package parser

import (
	"github.com/xinuc/xinuc/internal/ast"
	"github.com/xinuc/xinuc/internal/diag"
	"github.com/xinuc/xinuc/internal/lexer"
	"github.com/xinuc/xinuc/internal/symtab"
	"github.com/xinuc/xinuc/internal/token"
	"github.com/xinuc/xinuc/internal/types"
)

// TokenSource is the interface the parser needs from a lexer; tests
// can supply a fake implementing the same three methods.
type TokenSource interface {
	Next() token.Token
	Peek() token.Token
	Unget(token.Token)
}

// Parser drives the token stream through the grammar, accumulating
// declarations into a Program and symbols into a Table.
type Parser struct {
	toks TokenSource
	sym  *symtab.Table
	bag  *diag.Bag

	cur       token.Token
	panicMode bool
}

// New builds a Parser reading from toks and populating sym.
func New(toks TokenSource, sym *symtab.Table, bag *diag.Bag) *Parser {
	p := &Parser{toks: toks, sym: sym, bag: bag}
	p.advance()
	return p
}

// FromLexer is a convenience constructor wrapping an *lexer.Lexer.
func FromLexer(lx *lexer.Lexer, sym *symtab.Table, bag *diag.Bag) *Parser {
	return New(lx, sym, bag)
}

func (p *Parser) advance() token.Token {
	prev := p.cur
	p.cur = p.toks.Next()
	// An Error token carries the lexer's message as its spelling;
	// surface it here so lexical errors share the parser's latch and
	// recovery path.
	if p.cur.Kind == token.Error && !p.panicMode {
		p.panicMode = true
		p.bag.Errorf(p.cur.Pos, "%s", p.cur.Spelling)
	}
	return prev
}

func (p *Parser) at(k token.Kind) bool { return p.cur.Kind == k }

func (p *Parser) match(k token.Kind) bool {
	if p.at(k) {
		p.advance()
		return true
	}
	return false
}

// expect consumes a token of kind k, recording an error and entering
// panic mode if the current token does not match.
func (p *Parser) expect(k token.Kind, context string) token.Token {
	if p.at(k) {
		return p.advance()
	}
	p.errorf("expected %s %s", k, context)
	return p.cur
}

// errorf latches the first diagnostic of a panic episode, appending the
// offending lexeme so every message reads "... at '<lexeme>'". Later
// errors are suppressed until synchronize clears panic mode.
func (p *Parser) errorf(format string, args ...interface{}) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	args = append(args, p.cur.Spelling)
	p.bag.Errorf(p.cur.Pos, format+" at '%s'", args...)
}

// synchronize resyncs at top level: on a token that can start a new
// declaration, or after consuming a ';' or '}'.
func (p *Parser) synchronize() {
	p.panicMode = false
	for !p.at(token.EOF) {
		if p.at(token.Semicolon) {
			p.advance()
			return
		}
		switch p.cur.Kind {
		case token.KwInt, token.KwVoid, token.KwChar, token.KwShort, token.KwLong,
			token.KwFloat, token.KwDouble, token.KwUnsigned, token.KwSigned,
			token.KwStatic, token.KwExtern, token.KwConst, token.KwStruct,
			token.KwUnion, token.KwEnum, token.KwTypedef, token.KwProcess,
			token.KwSyscall, token.KwInterrupt:
			return
		}
		if p.at(token.RBrace) {
			p.advance()
			return
		}
		p.advance()
	}
}

// synchronizeStmt resyncs at statement level: at a token that can
// start a new statement, after a ';', or before a '}' (left
// unconsumed so the enclosing block sees it).
func (p *Parser) synchronizeStmt() {
	p.panicMode = false
	for !p.at(token.EOF) {
		if p.at(token.Semicolon) {
			p.advance()
			return
		}
		if p.at(token.RBrace) {
			return
		}
		switch p.cur.Kind {
		case token.KwIf, token.KwWhile, token.KwFor, token.KwDo, token.KwReturn,
			token.KwBreak, token.KwContinue, token.KwGoto, token.KwSwitch,
			token.KwInt, token.KwVoid, token.KwChar, token.KwShort, token.KwLong,
			token.KwFloat, token.KwDouble, token.KwConst, token.KwStatic:
			return
		}
		p.advance()
	}
}

// Parse runs the whole program grammar, returning the tree built so
// far even when diagnostics were recorded; the caller inspects the
// diag.Bag to decide whether compilation may proceed.
func (p *Parser) Parse() *ast.Program {
	prog := &ast.Program{NodeBase: ast.NewPos(p.cur.Pos)}
	for !p.at(token.EOF) {
		if p.panicMode {
			p.synchronize()
			continue
		}
		d := p.parseTopLevel()
		if d != nil {
			prog.Decls = append(prog.Decls, d)
		}
	}
	return prog
}

// ============================================================
// Top-level declarations
// ============================================================

func (p *Parser) parseTopLevel() ast.Decl {
	switch p.cur.Kind {
	case token.KwStruct, token.KwUnion, token.KwEnum:
		return p.parseAggregateDecl()
	case token.KwTypedef:
		// Reserved surface syntax: recognized but never given meaning.
		p.errorf("unsupported: typedef declarations are reserved")
		p.advance()
		return nil
	case token.KwProcess:
		p.advance()
		return p.parseFuncLike(ast.DeclProcess)
	case token.KwSyscall:
		p.advance()
		return p.parseFuncLike(ast.DeclSyscall)
	case token.KwInterrupt:
		p.advance()
		return p.parseFuncLike(ast.DeclInterrupt)
	default:
		return p.parseDeclaration()
	}
}

// parseDeclaration parses "[static|extern] type declarator ( ; | = init ; | ( params ) block )"
// which covers global variables, arrays and ordinary functions.
func (p *Parser) parseDeclaration() ast.Decl {
	pos := p.cur.Pos
	isStatic := p.match(token.KwStatic)
	isExtern := !isStatic && p.match(token.KwExtern)

	base := p.parseTypeSpec()
	if base == nil {
		p.errorf("expected a declaration")
		p.advance()
		return nil
	}
	typ, name := p.parseDeclarator(base)

	if p.at(token.LParen) {
		return p.finishFuncDecl(pos, ast.DeclFunction, typ, name, isStatic, isExtern)
	}
	return p.finishVarDecl(pos, typ, name, isStatic, isExtern)
}

func (p *Parser) parseFuncLike(kind ast.DeclKind) ast.Decl {
	pos := p.cur.Pos
	ret := p.parseTypeSpec()
	if ret == nil {
		ret = types.Basic(types.Int)
	}
	name := p.expect(token.Ident, "after return type").Spelling
	return p.finishFuncDecl(pos, kind, ret, name, false, false)
}

func (p *Parser) finishFuncDecl(pos token.Position, kind ast.DeclKind, ret *types.Type, name string, isStatic, isExtern bool) ast.Decl {
	fn := &ast.FuncDecl{DeclKind: kind, Name: name, ReturnType: ret, IsStatic: isStatic, IsExtern: isExtern}
	fn.P = pos

	sym := &symtab.Symbol{Name: name, Kind: funcSymKind(kind), Type: ret, Storage: symtab.StorageNone, Loc: pos}
	if err := p.sym.Define(sym); err != nil {
		p.bag.Errorf(pos, "%s", err)
	}

	p.expect(token.LParen, "after function name")
	p.sym.PushScope()
	if !p.at(token.RParen) {
		for {
			fn.Params = append(fn.Params, p.parseParam())
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(token.RParen, "to close parameter list")

	if p.match(token.Semicolon) {
		p.sym.PopScope()
		return fn // prototype only
	}
	fn.Body = p.parseBlockNoScope()
	p.sym.PopScope()
	return fn
}

func funcSymKind(k ast.DeclKind) symtab.Kind {
	switch k {
	case ast.DeclProcess:
		return symtab.SymProcess
	case ast.DeclSyscall:
		return symtab.SymSyscall
	case ast.DeclInterrupt:
		return symtab.SymInterrupt
	default:
		return symtab.SymFunc
	}
}

func (p *Parser) parseParam() *ast.Param {
	pos := p.cur.Pos
	base := p.parseTypeSpec()
	if base == nil {
		base = types.Basic(types.Int)
	}
	typ, name := p.parseDeclarator(base)
	param := &ast.Param{Name: name, Type: typ}
	param.P = pos
	if name != "" {
		sym := &symtab.Symbol{Name: name, Kind: symtab.SymParam, Type: typ, Storage: symtab.StorageParam, Loc: pos}
		if err := p.sym.Define(sym); err != nil {
			p.bag.Errorf(pos, "%s", err)
		}
	}
	return param
}

func (p *Parser) finishVarDecl(pos token.Position, typ *types.Type, name string, isStatic, isExtern bool) ast.Decl {
	vd := &ast.VarDecl{Name: name, Type: typ, IsStatic: isStatic, IsExtern: isExtern}
	vd.P = pos
	if typ.IsArray() {
		vd.IsArray = true
		vd.ArrayLen = typ.ArraySizes[0]
	}
	if p.match(token.Assign) {
		vd.Init = p.parseAssignExpr()
	}
	p.expect(token.Semicolon, "to terminate declaration")

	storage := symtab.StorageLocal
	if p.sym.AtGlobalScope() {
		storage = symtab.StorageGlobal
	}
	if isStatic {
		storage = symtab.StorageStatic
	}
	sym := &symtab.Symbol{Name: name, Kind: symtab.SymVar, Type: typ, Storage: storage, Loc: pos}
	if err := p.sym.Define(sym); err != nil {
		p.bag.Errorf(pos, "%s", err)
	} else {
		vd.Sym = sym
	}
	return vd
}

func (p *Parser) parseAggregateDecl() ast.Decl {
	pos := p.cur.Pos
	var kind ast.AggregateKind
	var symKind symtab.Kind
	switch p.cur.Kind {
	case token.KwStruct:
		kind, symKind = ast.AggStruct, symtab.SymStruct
	case token.KwUnion:
		kind, symKind = ast.AggUnion, symtab.SymUnion
	default:
		kind, symKind = ast.AggEnum, symtab.SymEnum
	}
	p.advance()
	name := p.expect(token.Ident, "after struct/union/enum").Spelling
	decl := &ast.AggregateDecl{AggKind: kind, Name: name}
	decl.P = pos

	p.expect(token.LBrace, "to open aggregate body")
	agg := &symtab.Aggregate{Name: name, Kind: symKind}
	offset := 0
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		if kind == ast.AggEnum {
			member := p.expect(token.Ident, "enum member").Spelling
			decl.Members = append(decl.Members, member)
			agg.Members = append(agg.Members, member)
			p.match(token.Comma)
			continue
		}
		base := p.parseTypeSpec()
		if base == nil {
			p.errorf("expected a field type")
			p.advance()
			continue
		}
		ftyp, fname := p.parseDeclarator(base)
		field := &ast.FieldDecl{Name: fname, Type: ftyp}
		field.P = p.cur.Pos
		decl.Fields = append(decl.Fields, field)
		agg.Fields = append(agg.Fields, symtab.AggField{Name: fname, Type: ftyp, Offset: offset})
		offset += ftyp.Size()
		p.expect(token.Semicolon, "to terminate field")
	}
	p.expect(token.RBrace, "to close aggregate body")
	p.match(token.Semicolon)

	if err := p.sym.DefineAggregate(agg); err != nil {
		p.bag.Errorf(pos, "%s", err)
	}
	return decl
}

// ============================================================
// Types and declarators
// ============================================================

func (p *Parser) parseTypeSpec() *types.Type {
	var quals types.Qualifier
	for {
		switch p.cur.Kind {
		case token.KwConst:
			quals |= types.QConst
			p.advance()
			continue
		case token.KwVolatile:
			quals |= types.QVolatile
			p.advance()
			continue
		case token.KwUnsigned:
			quals |= types.QUnsigned
			p.advance()
			continue
		case token.KwSigned:
			quals |= types.QSigned
			p.advance()
			continue
		case token.KwRegister:
			quals |= types.QRegister
			p.advance()
			continue
		}
		break
	}

	var base types.BaseKind
	switch p.cur.Kind {
	case token.KwVoid:
		base = types.Void
	case token.KwChar:
		base = types.Char
	case token.KwShort:
		base = types.Short
	case token.KwInt:
		base = types.Int
	case token.KwLong:
		base = types.Long
	case token.KwFloat:
		base = types.Float
	case token.KwDouble:
		base = types.Double
	case token.KwSemaphore:
		base = types.Semaphore
	case token.KwStruct, token.KwUnion, token.KwEnum:
		aggKw := p.cur.Kind
		p.advance()
		name := p.expect(token.Ident, "aggregate type name").Spelling
		aggBase := types.Struct
		switch aggKw {
		case token.KwUnion:
			aggBase = types.Union
		case token.KwEnum:
			aggBase = types.Enum
		}
		t := &types.Type{Base: aggBase, StructName: name, Quals: quals}
		return p.parsePointerSuffix(t)
	default:
		if quals != 0 {
			t := &types.Type{Base: types.Int, Quals: quals}
			return p.parsePointerSuffix(t)
		}
		return nil
	}
	p.advance()
	t := &types.Type{Base: base, Quals: quals}
	return p.parsePointerSuffix(t)
}

func (p *Parser) parsePointerSuffix(base *types.Type) *types.Type {
	t := base
	for p.match(token.Star) {
		t = types.NewPointer(t)
	}
	return t
}

// parseDeclarator consumes an identifier plus any trailing array
// dimensions, returning the fully composed type and the declared name.
func (p *Parser) parseDeclarator(base *types.Type) (*types.Type, string) {
	name := ""
	if p.at(token.Ident) {
		name = p.advance().Spelling
	}
	t := base
	var dims []int
	for p.match(token.LBracket) {
		size := -1
		if !p.at(token.RBracket) {
			size = int(p.parseConstIntExpr())
		}
		p.expect(token.RBracket, "to close array dimension")
		dims = append(dims, size)
	}
	for i := len(dims) - 1; i >= 0; i-- {
		t = types.NewArray(t, dims[i])
	}
	return t, name
}

// parseConstIntExpr evaluates a constant array-size expression; the
// grammar only needs integer literals and simple arithmetic on them.
func (p *Parser) parseConstIntExpr() int64 {
	e := p.parseAssignExpr()
	return foldConstInt(e)
}

func foldConstInt(e ast.Expr) int64 {
	switch n := e.(type) {
	case *ast.NumberLitExpr:
		return n.Value
	case *ast.UnaryExpr:
		v := foldConstInt(n.Operand)
		if n.Op == ast.UNeg {
			return -v
		}
		return v
	case *ast.BinaryExpr:
		l, r := foldConstInt(n.Left), foldConstInt(n.Right)
		switch n.Op {
		case ast.OpAdd:
			return l + r
		case ast.OpSub:
			return l - r
		case ast.OpMul:
			return l * r
		case ast.OpDiv:
			if r != 0 {
				return l / r
			}
		}
	}
	return 0
}

// ============================================================
// Statements
// ============================================================

func (p *Parser) parseStatement() ast.Stmt {
	if p.panicMode {
		p.synchronizeStmt()
		// Resync stopped before the enclosing block's '}' (or at EOF):
		// leave it for the block instead of parsing it as an expression.
		if p.at(token.RBrace) || p.at(token.EOF) {
			return &ast.ExprStmt{NodeBase: ast.NewPos(p.cur.Pos)}
		}
	}
	switch p.cur.Kind {
	case token.LBrace:
		return p.parseBlock()
	case token.KwIf:
		return p.parseIf()
	case token.KwWhile:
		return p.parseWhile()
	case token.KwDo:
		return p.parseDoWhile()
	case token.KwFor:
		return p.parseFor()
	case token.KwSwitch:
		return p.parseSwitch()
	case token.KwCase:
		return p.parseCase()
	case token.KwDefault:
		return p.parseDefault()
	case token.KwReturn:
		return p.parseReturn()
	case token.KwBreak:
		pos := p.advance().Pos
		p.expect(token.Semicolon, "after break")
		return &ast.BreakStmt{NodeBase: ast.NewPos(pos)}
	case token.KwContinue:
		pos := p.advance().Pos
		p.expect(token.Semicolon, "after continue")
		return &ast.ContinueStmt{NodeBase: ast.NewPos(pos)}
	case token.KwGoto:
		pos := p.advance().Pos
		label := p.expect(token.Ident, "after goto").Spelling
		p.expect(token.Semicolon, "after goto label")
		return &ast.GotoStmt{NodeBase: ast.NewPos(pos), Label: label}
	case token.KwCreate, token.KwResume, token.KwSuspend, token.KwKill,
		token.KwSleep, token.KwYield, token.KwWait, token.KwSignal:
		return p.parseXinuStmt()
	case token.KwInt, token.KwVoid, token.KwChar, token.KwShort, token.KwLong,
		token.KwFloat, token.KwDouble, token.KwConst, token.KwStatic, token.KwExtern,
		token.KwSemaphore:
		return p.parseLocalVarDecl()
	case token.Semicolon:
		pos := p.advance().Pos
		return &ast.ExprStmt{NodeBase: ast.NewPos(pos)}
	default:
		if p.at(token.Ident) {
			if lbl, ok := p.tryParseLabel(); ok {
				return lbl
			}
		}
		return p.parseExprStmt()
	}
}

func (p *Parser) tryParseLabel() (ast.Stmt, bool) {
	save := p.cur
	name := p.advance().Spelling
	if p.at(token.Colon) {
		p.advance()
		stmt := p.parseStatement()
		return &ast.LabelStmt{NodeBase: ast.NewPos(save.Pos), Label: name, Stmt: stmt}, true
	}
	p.toks.Unget(p.cur)
	p.cur = save
	return nil, false
}

func (p *Parser) parseLocalVarDecl() ast.Stmt {
	pos := p.cur.Pos
	isStatic := p.match(token.KwStatic)
	isExtern := !isStatic && p.match(token.KwExtern)
	base := p.parseTypeSpec()
	if base == nil {
		p.errorf("expected a type")
		p.advance()
		return &ast.ExprStmt{NodeBase: ast.NewPos(pos)}
	}
	typ, name := p.parseDeclarator(base)
	vd := &ast.VarDecl{Name: name, Type: typ, IsStatic: isStatic, IsExtern: isExtern}
	vd.P = pos
	if typ.IsArray() {
		vd.IsArray = true
		vd.ArrayLen = typ.ArraySizes[0]
	}
	if p.match(token.Assign) {
		vd.Init = p.parseAssignExpr()
	}
	p.expect(token.Semicolon, "to terminate declaration")

	storage := symtab.StorageLocal
	if isStatic {
		storage = symtab.StorageStatic
	}
	sym := &symtab.Symbol{Name: name, Kind: symtab.SymVar, Type: typ, Storage: storage, Loc: pos}
	if err := p.sym.Define(sym); err != nil {
		p.bag.Errorf(pos, "%s", err)
	} else {
		vd.Sym = sym
	}
	return vd
}

func (p *Parser) parseBlock() *ast.Block {
	p.sym.PushScope()
	b := p.parseBlockNoScope()
	p.sym.PopScope()
	return b
}

// parseBlockNoScope parses "{ stmt* }" without pushing a new symtab
// scope; callers that already pushed one (function bodies, whose
// scope also holds parameters) use this directly.
func (p *Parser) parseBlockNoScope() *ast.Block {
	pos := p.expect(token.LBrace, "to open block").Pos
	b := &ast.Block{NodeBase: ast.NewPos(pos)}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		b.Stmts = append(b.Stmts, p.parseStatement())
	}
	p.expect(token.RBrace, "to close block")
	return b
}

func (p *Parser) parseIf() ast.Stmt {
	pos := p.advance().Pos
	p.expect(token.LParen, "after if")
	cond := p.parseExpression()
	p.expect(token.RParen, "to close if condition")
	then := p.parseStatement()
	var els ast.Stmt
	if p.match(token.KwElse) {
		els = p.parseStatement()
	}
	return &ast.IfStmt{NodeBase: ast.NewPos(pos), Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseWhile() ast.Stmt {
	pos := p.advance().Pos
	p.expect(token.LParen, "after while")
	cond := p.parseExpression()
	p.expect(token.RParen, "to close while condition")
	body := p.parseStatement()
	return &ast.WhileStmt{NodeBase: ast.NewPos(pos), Cond: cond, Body: body}
}

func (p *Parser) parseDoWhile() ast.Stmt {
	pos := p.advance().Pos
	body := p.parseStatement()
	p.expect(token.KwWhile, "after do-body")
	p.expect(token.LParen, "after while")
	cond := p.parseExpression()
	p.expect(token.RParen, "to close while condition")
	p.expect(token.Semicolon, "after do-while")
	return &ast.DoWhileStmt{NodeBase: ast.NewPos(pos), Body: body, Cond: cond}
}

func (p *Parser) parseFor() ast.Stmt {
	pos := p.advance().Pos
	p.expect(token.LParen, "after for")
	p.sym.PushScope()
	defer p.sym.PopScope()

	var init ast.Expr
	if !p.at(token.Semicolon) {
		init = p.parseExpression()
	}
	p.expect(token.Semicolon, "after for-init")
	var cond ast.Expr
	if !p.at(token.Semicolon) {
		cond = p.parseExpression()
	}
	p.expect(token.Semicolon, "after for-condition")
	var post ast.Expr
	if !p.at(token.RParen) {
		post = p.parseExpression()
	}
	p.expect(token.RParen, "to close for header")
	body := p.parseStatement()
	return &ast.ForStmt{NodeBase: ast.NewPos(pos), Init: init, Cond: cond, Post: post, Body: body}
}

func (p *Parser) parseSwitch() ast.Stmt {
	pos := p.advance().Pos
	p.expect(token.LParen, "after switch")
	tag := p.parseExpression()
	p.expect(token.RParen, "to close switch tag")
	body := p.parseBlock()
	return &ast.SwitchStmt{NodeBase: ast.NewPos(pos), Tag: tag, Body: body}
}

func (p *Parser) parseCase() ast.Stmt {
	pos := p.advance().Pos
	val := p.parseExpression()
	p.expect(token.Colon, "after case value")
	return &ast.CaseStmt{NodeBase: ast.NewPos(pos), Value: val}
}

func (p *Parser) parseDefault() ast.Stmt {
	pos := p.advance().Pos
	p.expect(token.Colon, "after default")
	return &ast.DefaultStmt{NodeBase: ast.NewPos(pos)}
}

func (p *Parser) parseReturn() ast.Stmt {
	pos := p.advance().Pos
	var v ast.Expr
	if !p.at(token.Semicolon) {
		v = p.parseExpression()
	}
	p.expect(token.Semicolon, "after return value")
	return &ast.ReturnStmt{NodeBase: ast.NewPos(pos), Value: v}
}

func (p *Parser) parseExprStmt() ast.Stmt {
	pos := p.cur.Pos
	e := p.parseExpression()
	p.expect(token.Semicolon, "after expression")
	return &ast.ExprStmt{NodeBase: ast.NewPos(pos), X: e}
}

var xinuOpByKind = map[token.Kind]ast.XinuOp{
	token.KwCreate:  ast.XCreate,
	token.KwResume:  ast.XResume,
	token.KwSuspend: ast.XSuspend,
	token.KwKill:    ast.XKill,
	token.KwSleep:   ast.XSleep,
	token.KwYield:   ast.XYield,
	token.KwWait:    ast.XWait,
	token.KwSignal:  ast.XSignal,
}

func (p *Parser) parseXinuStmt() ast.Stmt {
	pos := p.cur.Pos
	op := xinuOpByKind[p.cur.Kind]
	p.advance()
	var args []ast.Expr
	p.expect(token.LParen, "after Xinu primitive")
	if !p.at(token.RParen) {
		for {
			args = append(args, p.parseAssignExpr())
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(token.RParen, "to close Xinu primitive arguments")
	p.expect(token.Semicolon, "after Xinu primitive call")
	return &ast.XinuStmt{NodeBase: ast.NewPos(pos), Op: op, Args: args}
}

// ============================================================
// Expressions
//
// Precedence, loosest to tightest: comma, assignment, ternary,
// logical-or, logical-and, bitwise-or, bitwise-xor, bitwise-and,
// equality, relational, shift, additive, multiplicative, unary,
// postfix, primary.
// ============================================================

func (p *Parser) parseExpression() ast.Expr {
	e := p.parseAssignExpr()
	for p.at(token.Comma) {
		pos := p.advance().Pos
		rhs := p.parseAssignExpr()
		ce := &ast.CommaExpr{ExprBase: ast.NewBaseExpr(pos), Left: e, Right: rhs}
		e = ce
	}
	return e
}

var compoundAssignOps = map[token.Kind]ast.BinaryOp{
	token.PlusAssign:    ast.OpAdd,
	token.MinusAssign:   ast.OpSub,
	token.StarAssign:    ast.OpMul,
	token.SlashAssign:   ast.OpDiv,
	token.PercentAssign: ast.OpMod,
	token.AndAssign:     ast.OpAnd,
	token.OrAssign:      ast.OpOr,
	token.XorAssign:     ast.OpXor,
	token.ShlAssign:     ast.OpShl,
	token.ShrAssign:     ast.OpShr,
}

func (p *Parser) parseAssignExpr() ast.Expr {
	lhs := p.parseTernary()
	if p.at(token.Assign) {
		pos := p.advance().Pos
		rhs := p.parseAssignExpr()
		return &ast.AssignExpr{ExprBase: ast.NewBaseExpr(pos), LHS: lhs, RHS: rhs}
	}
	if op, ok := compoundAssignOps[p.cur.Kind]; ok {
		pos := p.advance().Pos
		rhs := p.parseAssignExpr()
		return &ast.CompoundAssignExpr{ExprBase: ast.NewBaseExpr(pos), Op: op, LHS: lhs, RHS: rhs}
	}
	return lhs
}

func (p *Parser) parseTernary() ast.Expr {
	cond := p.parseLogicalOr()
	if p.match(token.Question) {
		then := p.parseAssignExpr()
		p.expect(token.Colon, "in ternary expression")
		els := p.parseAssignExpr()
		return &ast.TernaryExpr{ExprBase: ast.NewBaseExpr(cond.Pos()), Cond: cond, Then: then, Else: els}
	}
	return cond
}

func (p *Parser) parseLogicalOr() ast.Expr {
	e := p.parseLogicalAnd()
	for p.at(token.LogOr) {
		pos := p.advance().Pos
		rhs := p.parseLogicalAnd()
		e = &ast.BinaryExpr{ExprBase: ast.NewBaseExpr(pos), Op: ast.OpLOr, Left: e, Right: rhs}
	}
	return e
}

func (p *Parser) parseLogicalAnd() ast.Expr {
	e := p.parseBitOr()
	for p.at(token.LogAnd) {
		pos := p.advance().Pos
		rhs := p.parseBitOr()
		e = &ast.BinaryExpr{ExprBase: ast.NewBaseExpr(pos), Op: ast.OpLAnd, Left: e, Right: rhs}
	}
	return e
}

func (p *Parser) parseBitOr() ast.Expr {
	e := p.parseBitXor()
	for p.at(token.Pipe) {
		pos := p.advance().Pos
		rhs := p.parseBitXor()
		e = &ast.BinaryExpr{ExprBase: ast.NewBaseExpr(pos), Op: ast.OpOr, Left: e, Right: rhs}
	}
	return e
}

func (p *Parser) parseBitXor() ast.Expr {
	e := p.parseBitAnd()
	for p.at(token.Caret) {
		pos := p.advance().Pos
		rhs := p.parseBitAnd()
		e = &ast.BinaryExpr{ExprBase: ast.NewBaseExpr(pos), Op: ast.OpXor, Left: e, Right: rhs}
	}
	return e
}

func (p *Parser) parseBitAnd() ast.Expr {
	e := p.parseEquality()
	for p.at(token.Amp) {
		pos := p.advance().Pos
		rhs := p.parseEquality()
		e = &ast.BinaryExpr{ExprBase: ast.NewBaseExpr(pos), Op: ast.OpAnd, Left: e, Right: rhs}
	}
	return e
}

var equalityOps = map[token.Kind]ast.BinaryOp{token.Eq: ast.OpEq, token.Ne: ast.OpNe}

func (p *Parser) parseEquality() ast.Expr {
	e := p.parseRelational()
	for {
		op, ok := equalityOps[p.cur.Kind]
		if !ok {
			return e
		}
		pos := p.advance().Pos
		rhs := p.parseRelational()
		e = &ast.BinaryExpr{ExprBase: ast.NewBaseExpr(pos), Op: op, Left: e, Right: rhs}
	}
}

var relationalOps = map[token.Kind]ast.BinaryOp{
	token.Lt: ast.OpLt, token.Le: ast.OpLe, token.Gt: ast.OpGt, token.Ge: ast.OpGe,
}

func (p *Parser) parseRelational() ast.Expr {
	e := p.parseShift()
	for {
		op, ok := relationalOps[p.cur.Kind]
		if !ok {
			return e
		}
		pos := p.advance().Pos
		rhs := p.parseShift()
		e = &ast.BinaryExpr{ExprBase: ast.NewBaseExpr(pos), Op: op, Left: e, Right: rhs}
	}
}

var shiftOps = map[token.Kind]ast.BinaryOp{token.Shl: ast.OpShl, token.Shr: ast.OpShr}

func (p *Parser) parseShift() ast.Expr {
	e := p.parseAdditive()
	for {
		op, ok := shiftOps[p.cur.Kind]
		if !ok {
			return e
		}
		pos := p.advance().Pos
		rhs := p.parseAdditive()
		e = &ast.BinaryExpr{ExprBase: ast.NewBaseExpr(pos), Op: op, Left: e, Right: rhs}
	}
}

var additiveOps = map[token.Kind]ast.BinaryOp{token.Plus: ast.OpAdd, token.Minus: ast.OpSub}

func (p *Parser) parseAdditive() ast.Expr {
	e := p.parseMultiplicative()
	for {
		op, ok := additiveOps[p.cur.Kind]
		if !ok {
			return e
		}
		pos := p.advance().Pos
		rhs := p.parseMultiplicative()
		e = &ast.BinaryExpr{ExprBase: ast.NewBaseExpr(pos), Op: op, Left: e, Right: rhs}
	}
}

var multiplicativeOps = map[token.Kind]ast.BinaryOp{
	token.Star: ast.OpMul, token.Slash: ast.OpDiv, token.Percent: ast.OpMod,
}

func (p *Parser) parseMultiplicative() ast.Expr {
	e := p.parseUnary()
	for {
		op, ok := multiplicativeOps[p.cur.Kind]
		if !ok {
			return e
		}
		pos := p.advance().Pos
		rhs := p.parseUnary()
		e = &ast.BinaryExpr{ExprBase: ast.NewBaseExpr(pos), Op: op, Left: e, Right: rhs}
	}
}

func (p *Parser) parseUnary() ast.Expr {
	pos := p.cur.Pos
	switch p.cur.Kind {
	case token.Minus:
		p.advance()
		return &ast.UnaryExpr{ExprBase: ast.NewBaseExpr(pos), Op: ast.UNeg, Operand: p.parseUnary()}
	case token.Plus:
		p.advance()
		return &ast.UnaryExpr{ExprBase: ast.NewBaseExpr(pos), Op: ast.UPos, Operand: p.parseUnary()}
	case token.Bang:
		p.advance()
		return &ast.UnaryExpr{ExprBase: ast.NewBaseExpr(pos), Op: ast.ULNot, Operand: p.parseUnary()}
	case token.Tilde:
		p.advance()
		return &ast.UnaryExpr{ExprBase: ast.NewBaseExpr(pos), Op: ast.UNot, Operand: p.parseUnary()}
	case token.Amp:
		p.advance()
		operand := p.parseUnary()
		return &ast.AddrExpr{ExprBase: ast.NewBaseExpr(pos), Operand: operand}
	case token.Star:
		p.advance()
		operand := p.parseUnary()
		deref := &ast.DerefExpr{ExprBase: ast.NewBaseExpr(pos), Operand: operand}
		deref.SetLvalue(true)
		return deref
	case token.Inc:
		p.advance()
		operand := p.parseUnary()
		return &ast.IncDecExpr{ExprBase: ast.NewBaseExpr(pos), Operand: operand, IsInc: true, IsPost: false}
	case token.Dec:
		p.advance()
		operand := p.parseUnary()
		return &ast.IncDecExpr{ExprBase: ast.NewBaseExpr(pos), Operand: operand, IsInc: false, IsPost: false}
	case token.KwSizeof:
		return p.parseSizeof()
	case token.LParen:
		if t, ok := p.tryParseCast(); ok {
			return t
		}
	}
	return p.parsePostfix()
}

func (p *Parser) parseSizeof() ast.Expr {
	pos := p.advance().Pos
	p.expect(token.LParen, "after sizeof")
	if t := p.parseTypeSpec(); t != nil {
		_, _ = p.parseDeclarator(t)
		p.expect(token.RParen, "to close sizeof")
		return &ast.SizeofExpr{ExprBase: ast.NewBaseExpr(pos), TargetType: t}
	}
	e := p.parseExpression()
	p.expect(token.RParen, "to close sizeof")
	return &ast.SizeofExpr{ExprBase: ast.NewBaseExpr(pos), Operand: e}
}

// tryParseCast attempts "( typename ) unary". If the token after '('
// cannot start a type it rewinds by unget-ing that token, so the
// caller falls through to parenthesized-expression parsing; once a
// type is seen the cast is committed, since no expression can start
// with a type keyword either.
func (p *Parser) tryParseCast() (ast.Expr, bool) {
	savedLParen := p.cur
	p.advance()
	if !p.isTypeStart() {
		p.toks.Unget(p.cur)
		p.cur = savedLParen
		return nil, false
	}
	pos := savedLParen.Pos
	t := p.parseTypeSpec()
	t, _ = p.parseDeclarator(t)
	p.expect(token.RParen, "to close cast")
	operand := p.parseUnary()
	return &ast.CastExpr{ExprBase: ast.NewBaseExpr(pos), TargetType: t, Operand: operand}, true
}

func (p *Parser) isTypeStart() bool {
	switch p.cur.Kind {
	case token.KwInt, token.KwVoid, token.KwChar, token.KwShort, token.KwLong,
		token.KwFloat, token.KwDouble, token.KwConst, token.KwVolatile,
		token.KwUnsigned, token.KwSigned, token.KwStruct, token.KwUnion,
		token.KwEnum, token.KwSemaphore:
		return true
	}
	return false
}

func (p *Parser) parsePostfix() ast.Expr {
	e := p.parsePrimary()
	for {
		switch p.cur.Kind {
		case token.LBracket:
			pos := p.advance().Pos
			idx := p.parseExpression()
			p.expect(token.RBracket, "to close array index")
			e = &ast.IndexExpr{ExprBase: ast.NewBaseExpr(pos), Array: e, Index: idx}
			e.SetLvalue(true)
		case token.Dot:
			pos := p.advance().Pos
			field := p.expect(token.Ident, "after '.'").Spelling
			e = &ast.MemberExpr{ExprBase: ast.NewBaseExpr(pos), Object: e, Field: field, IsArrow: false}
			e.SetLvalue(true)
		case token.Arrow:
			pos := p.advance().Pos
			field := p.expect(token.Ident, "after '->'").Spelling
			e = &ast.MemberExpr{ExprBase: ast.NewBaseExpr(pos), Object: e, Field: field, IsArrow: true}
			e.SetLvalue(true)
		case token.LParen:
			pos := p.advance().Pos
			var args []ast.Expr
			if !p.at(token.RParen) {
				for {
					args = append(args, p.parseAssignExpr())
					if !p.match(token.Comma) {
						break
					}
				}
			}
			p.expect(token.RParen, "to close call arguments")
			e = &ast.CallExpr{ExprBase: ast.NewBaseExpr(pos), Callee: e, Args: args}
		case token.Inc:
			pos := p.advance().Pos
			e = &ast.IncDecExpr{ExprBase: ast.NewBaseExpr(pos), Operand: e, IsInc: true, IsPost: true}
		case token.Dec:
			pos := p.advance().Pos
			e = &ast.IncDecExpr{ExprBase: ast.NewBaseExpr(pos), Operand: e, IsInc: false, IsPost: true}
		default:
			return e
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	pos := p.cur.Pos
	switch p.cur.Kind {
	case token.Number:
		t := p.advance()
		return &ast.NumberLitExpr{ExprBase: ast.NewBaseExpr(pos), Value: t.IntVal}
	case token.Float:
		t := p.advance()
		return &ast.FloatLitExpr{ExprBase: ast.NewBaseExpr(pos), Value: t.FloatVal}
	case token.String:
		t := p.advance()
		return &ast.StringLitExpr{ExprBase: ast.NewBaseExpr(pos), Value: t.Spelling}
	case token.Char:
		t := p.advance()
		return &ast.CharLitExpr{ExprBase: ast.NewBaseExpr(pos), Value: t.CharVal}
	case token.KwTrue:
		p.advance()
		return &ast.NumberLitExpr{ExprBase: ast.NewBaseExpr(pos), Value: 1}
	case token.KwFalse, token.KwNull, token.KwNULL:
		p.advance()
		return &ast.NumberLitExpr{ExprBase: ast.NewBaseExpr(pos), Value: 0}
	case token.KwGetpid:
		p.advance()
		p.expect(token.LParen, "after getpid")
		p.expect(token.RParen, "to close getpid")
		return &ast.GetpidExpr{ExprBase: ast.NewBaseExpr(pos)}
	case token.Ident, token.KwGetprio, token.KwChprio:
		name := p.advance().Spelling
		id := &ast.IdentExpr{ExprBase: ast.NewBaseExpr(pos), Name: name}
		// Resolve now, while the declaring scope is still alive; a nil
		// result is a forward reference retried against the global
		// scope during code generation.
		id.Sym = p.sym.Lookup(name)
		id.SetLvalue(true)
		return id
	case token.LParen:
		p.advance()
		e := p.parseExpression()
		p.expect(token.RParen, "to close parenthesized expression")
		return e
	default:
		p.errorf("expected an expression")
		p.advance()
		return &ast.NumberLitExpr{ExprBase: ast.NewBaseExpr(pos), Value: 0}
	}
}
