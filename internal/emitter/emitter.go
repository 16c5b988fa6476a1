// Package emitter walks an internal/ast tree and produces the
// stack-machine instruction stream: a flat sequence of opcode/operand
// pairs interspersed with symbolic labels, exactly as
// internal/asmwrite renders it to text.
package emitter

import (
	"fmt"

	"github.com/xinuc/xinuc/internal/ast"
	"github.com/xinuc/xinuc/internal/diag"
	"github.com/xinuc/xinuc/internal/symtab"
	"github.com/xinuc/xinuc/internal/token"
	"github.com/xinuc/xinuc/internal/types"
)

// Instr is one line of the eventual textual listing: either a bare
// label definition (Label set, Op empty) or an opcode with an
// optional operand (a decimal literal or a label reference, carried
// as text so the writer never needs to resolve addresses itself).
type Instr struct {
	Label      string
	Op         string
	Operand    string
	HasOperand bool
}

// Emitter accumulates Instr values while walking the tree, handing out
// fresh labels and latching diagnostics for anything code generation
// cannot lower (an undefined identifier, or reserved-but-unsupported
// surface syntax such as switch/goto/aggregate member access).
type Emitter struct {
	sym   *symtab.Table
	bag   *diag.Bag
	instr []Instr

	labelCount int

	breakLabels    []string
	continueLabels []string
}

// New builds an Emitter that resolves identifiers against sym and
// reports problems into bag.
func New(sym *symtab.Table, bag *diag.Bag) *Emitter {
	return &Emitter{sym: sym, bag: bag}
}

// Instructions returns the accumulated instruction stream, with every
// jump and call target resolved from its symbolic label to the
// decimal address of the instruction the label precedes. Label lines
// remain in the listing for readability; only operands must be
// decimal.
func (e *Emitter) Instructions() []Instr {
	addrOf := make(map[string]int)
	addr := 0
	for _, in := range e.instr {
		if in.Label != "" {
			addrOf[in.Label] = addr
			continue
		}
		addr++
	}

	jumpOps := map[string]bool{"JMP": true, "JZ": true, "JNZ": true, "CALL": true}
	out := make([]Instr, len(e.instr))
	for i, in := range e.instr {
		if in.Label != "" || !jumpOps[in.Op] {
			out[i] = in
			continue
		}
		target, ok := addrOf[in.Operand]
		if !ok {
			e.errorf(token.Position{}, "undefined label '%s'", in.Operand)
			out[i] = in
			continue
		}
		out[i] = Instr{Op: in.Op, Operand: fmt.Sprintf("%d", target), HasOperand: true}
	}
	return out
}

func (e *Emitter) newLabel(prefix string) string {
	l := fmt.Sprintf("L_%s%d", prefix, e.labelCount)
	e.labelCount++
	return l
}

func (e *Emitter) label(name string) {
	e.instr = append(e.instr, Instr{Label: name})
}

func (e *Emitter) op0(op string) {
	e.instr = append(e.instr, Instr{Op: op})
}

func (e *Emitter) op1(op string, operand string) {
	e.instr = append(e.instr, Instr{Op: op, Operand: operand, HasOperand: true})
}

func (e *Emitter) op1i(op string, n int) { e.op1(op, fmt.Sprintf("%d", n)) }

func (e *Emitter) errorf(pos token.Position, format string, args ...interface{}) {
	e.bag.Errorf(pos, format, args...)
}

// EmitProgram lowers every declaration in prog, appending a trailing
// HALT so the resulting listing always terminates program execution
// cleanly regardless of how the source's entry point returns.
func (e *Emitter) EmitProgram(prog *ast.Program) {
	for _, d := range prog.Decls {
		e.emitDecl(d)
	}
	e.op0("HALT")
}

func (e *Emitter) emitDecl(d ast.Decl) {
	switch n := d.(type) {
	case *ast.FuncDecl:
		e.emitFunc(n)
	case *ast.VarDecl:
		e.emitGlobalVar(n)
	case *ast.AggregateDecl:
		// The declaration's layout is recorded in the symbol table at
		// parse time, but aggregates are reserved surface syntax with
		// no lowering yet.
		e.errorf(n.Pos(), "unsupported: %s declarations are not lowered by this code generator", aggKindName(n.AggKind))
	}
}

func aggKindName(k ast.AggregateKind) string {
	switch k {
	case ast.AggUnion:
		return "union"
	case ast.AggEnum:
		return "enum"
	default:
		return "struct"
	}
}

func (e *Emitter) emitGlobalVar(n *ast.VarDecl) {
	if n.Init == nil {
		return
	}
	sym := e.resolve(n.Pos(), n.Name, n.Sym)
	if sym == nil {
		return
	}
	e.emitExpr(n.Init)
	e.emitStore(sym)
}

func (e *Emitter) emitFunc(fn *ast.FuncDecl) {
	switch fn.DeclKind {
	case ast.DeclSyscall:
		e.errorf(fn.Pos(), "unsupported: syscall declarations are not lowered by this code generator")
		return
	case ast.DeclInterrupt:
		e.errorf(fn.Pos(), "unsupported: interrupt declarations are not lowered by this code generator")
		return
	}
	if fn.Body == nil {
		return // prototype: nothing to emit
	}
	e.label(funcLabel(fn.Name))
	for _, s := range fn.Body.Stmts {
		e.emitStmt(s)
	}
	// Implicit epilogue for falling off the end of the body.
	e.op1i("PUSH", 0)
	e.op0("RET")
}

// ============================================================
// Statements
// ============================================================

func (e *Emitter) emitStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.Block:
		for _, st := range n.Stmts {
			e.emitStmt(st)
		}
	case *ast.VarDecl:
		if n.Init != nil {
			sym := e.resolve(n.Pos(), n.Name, n.Sym)
			if sym == nil {
				return
			}
			e.emitExpr(n.Init)
			e.emitStore(sym)
		}
	case *ast.ExprStmt:
		if n.X != nil {
			e.emitExpr(n.X)
			e.op0("POP")
		}
	case *ast.IfStmt:
		e.emitIf(n)
	case *ast.WhileStmt:
		e.emitWhile(n)
	case *ast.DoWhileStmt:
		e.emitDoWhile(n)
	case *ast.ForStmt:
		e.emitFor(n)
	case *ast.ReturnStmt:
		if n.Value != nil {
			e.emitExpr(n.Value)
		} else {
			e.op1i("PUSH", 0)
		}
		e.op0("RET")
	case *ast.BreakStmt:
		if len(e.breakLabels) == 0 {
			e.errorf(n.Pos(), "break outside of a loop")
			return
		}
		e.op1("JMP", e.breakLabels[len(e.breakLabels)-1])
	case *ast.ContinueStmt:
		if len(e.continueLabels) == 0 {
			e.errorf(n.Pos(), "continue outside of a loop")
			return
		}
		e.op1("JMP", e.continueLabels[len(e.continueLabels)-1])
	case *ast.XinuStmt:
		e.emitXinuStmt(n)
	case *ast.SwitchStmt:
		e.errorf(n.Pos(), "unsupported: switch statements are not lowered by this code generator")
	case *ast.GotoStmt:
		e.errorf(n.Pos(), "unsupported: goto is not lowered by this code generator")
	case *ast.LabelStmt:
		e.errorf(n.Pos(), "unsupported: labeled statements are not lowered by this code generator")
	case *ast.CaseStmt, *ast.DefaultStmt:
		e.errorf(s.Pos(), "unsupported: case/default outside of a lowered switch")
	default:
		e.errorf(s.Pos(), "internal: unhandled statement kind")
	}
}

func (e *Emitter) emitIf(n *ast.IfStmt) {
	elseLabel := e.newLabel("else")
	endLabel := e.newLabel("endif")
	e.emitExpr(n.Cond)
	e.op1("JZ", elseLabel)
	e.emitStmt(n.Then)
	if n.Else != nil {
		e.op1("JMP", endLabel)
		e.label(elseLabel)
		e.emitStmt(n.Else)
		e.label(endLabel)
	} else {
		e.label(elseLabel)
	}
}

func (e *Emitter) emitWhile(n *ast.WhileStmt) {
	top := e.newLabel("wtop")
	end := e.newLabel("wend")
	e.pushLoop(end, top)
	e.label(top)
	e.emitExpr(n.Cond)
	e.op1("JZ", end)
	e.emitStmt(n.Body)
	e.op1("JMP", top)
	e.label(end)
	e.popLoop()
}

func (e *Emitter) emitDoWhile(n *ast.DoWhileStmt) {
	top := e.newLabel("dtop")
	contLabel := e.newLabel("dcont")
	end := e.newLabel("dend")
	e.pushLoop(end, contLabel)
	e.label(top)
	e.emitStmt(n.Body)
	e.label(contLabel)
	e.emitExpr(n.Cond)
	e.op1("JNZ", top)
	e.label(end)
	e.popLoop()
}

func (e *Emitter) emitFor(n *ast.ForStmt) {
	if n.Init != nil {
		e.emitExpr(n.Init)
		e.op0("POP")
	}
	top := e.newLabel("ftop")
	contLabel := e.newLabel("fcont")
	end := e.newLabel("fend")
	e.pushLoop(end, contLabel)
	e.label(top)
	if n.Cond != nil {
		e.emitExpr(n.Cond)
		e.op1("JZ", end)
	}
	e.emitStmt(n.Body)
	e.label(contLabel)
	if n.Post != nil {
		e.emitExpr(n.Post)
		e.op0("POP")
	}
	e.op1("JMP", top)
	e.label(end)
	e.popLoop()
}

func (e *Emitter) pushLoop(breakLabel, continueLabel string) {
	e.breakLabels = append(e.breakLabels, breakLabel)
	e.continueLabels = append(e.continueLabels, continueLabel)
}

func (e *Emitter) popLoop() {
	e.breakLabels = e.breakLabels[:len(e.breakLabels)-1]
	e.continueLabels = e.continueLabels[:len(e.continueLabels)-1]
}

var xinuOpcode = map[ast.XinuOp]string{
	ast.XCreate:  "CREATE",
	ast.XResume:  "RESUME",
	ast.XSuspend: "SUSPEND",
	ast.XKill:    "KILL",
	ast.XSleep:   "SLEEP",
	ast.XYield:   "YIELD",
	ast.XWait:    "WAIT",
	ast.XSignal:  "SIGNAL",
}

func (e *Emitter) emitXinuStmt(n *ast.XinuStmt) {
	for _, a := range n.Args {
		e.emitExpr(a)
	}
	e.op1i(xinuOpcode[n.Op], len(n.Args))
}

// ============================================================
// Expressions
// ============================================================

func (e *Emitter) emitExpr(x ast.Expr) {
	switch n := x.(type) {
	case *ast.NumberLitExpr:
		e.op1i("PUSH", int(n.Value))
	case *ast.CharLitExpr:
		e.op1i("PUSH", int(n.Value))
	case *ast.FloatLitExpr:
		e.op1i("PUSH", int(n.Value))
	case *ast.StringLitExpr:
		e.errorf(n.Pos(), "unsupported: string literals have no stack-machine representation")
		e.op1i("PUSH", 0)
	case *ast.IdentExpr:
		e.emitIdentLoad(n)
	case *ast.GetpidExpr:
		e.op0("GETPID")
	case *ast.BinaryExpr:
		e.emitBinary(n)
	case *ast.UnaryExpr:
		e.emitUnary(n)
	case *ast.TernaryExpr:
		e.emitTernary(n)
	case *ast.AssignExpr:
		e.emitAssign(n.LHS, n.RHS)
	case *ast.CompoundAssignExpr:
		e.emitCompoundAssign(n)
	case *ast.IncDecExpr:
		e.emitIncDec(n)
	case *ast.CallExpr:
		e.emitCall(n)
	case *ast.CommaExpr:
		e.emitExpr(n.Left)
		e.op0("POP")
		e.emitExpr(n.Right)
	case *ast.AddrExpr:
		e.emitAddr(n.Operand)
	case *ast.DerefExpr:
		e.emitExpr(n.Operand)
		e.op0("LOAD")
	case *ast.IndexExpr:
		e.emitAddr(n)
		e.op0("LOAD")
	case *ast.MemberExpr:
		e.errorf(n.Pos(), "unsupported: struct/union member access is not lowered by this code generator")
		e.op1i("PUSH", 0)
	case *ast.CastExpr:
		// Casts are reserved surface syntax; the operand's value is
		// still produced so the stack stays balanced.
		e.errorf(n.Pos(), "unsupported: casts are not lowered by this code generator")
		e.emitExpr(n.Operand)
	case *ast.SizeofExpr:
		e.emitSizeof(n)
	case *ast.InitListExpr:
		e.errorf(n.Pos(), "unsupported: aggregate initializer lists are not lowered by this code generator")
	default:
		e.errorf(x.Pos(), "internal: unhandled expression kind")
	}
}

// resolve returns the symbol for name: the parse-time back-reference
// when one was recorded, otherwise a lookup against the scopes still
// alive at emit time (covers forward references to globals). A nil
// result latches an undefined-identifier error.
func (e *Emitter) resolve(pos token.Position, name string, cached *symtab.Symbol) *symtab.Symbol {
	if cached != nil {
		return cached
	}
	sym := e.sym.Lookup(name)
	if sym == nil {
		e.errorf(pos, "undefined identifier '%s'", name)
	}
	return sym
}

// emitLoad and emitStore select global versus local addressing by the
// symbol's scope level: level 0 is the global storage region.
func (e *Emitter) emitLoad(sym *symtab.Symbol) {
	if sym.Level == 0 {
		e.op1i("LOADG", sym.Offset)
	} else {
		e.op1i("LOADL", sym.Offset)
	}
}

func (e *Emitter) emitStore(sym *symtab.Symbol) {
	if sym.Level == 0 {
		e.op1i("STOREG", sym.Offset)
	} else {
		e.op1i("STOREL", sym.Offset)
	}
}

func (e *Emitter) emitIdentLoad(n *ast.IdentExpr) {
	sym := e.resolve(n.Pos(), n.Name, n.Sym)
	if sym == nil {
		e.op1i("PUSH", 0)
		return
	}
	e.emitLoad(sym)
}

// emitAddr computes the address of an lvalue expression and leaves it
// on the stack, for &x and for the address half of assignments to
// indexed/pointer targets.
func (e *Emitter) emitAddr(x ast.Expr) {
	switch n := x.(type) {
	case *ast.IdentExpr:
		sym := e.resolve(n.Pos(), n.Name, n.Sym)
		if sym == nil {
			e.op1i("PUSH", 0)
			return
		}
		e.op1i("ADDR", sym.Offset)
	case *ast.IndexExpr:
		e.emitAddr(n.Array)
		e.emitExpr(n.Index)
		elemSize := 1
		if arrTyp := e.resolveType(n.Array); arrTyp != nil && arrTyp.Pointee != nil {
			elemSize = arrTyp.Pointee.Size()
		}
		e.op1i("PUSH", elemSize)
		e.op0("MUL")
		e.op0("ADD")
	case *ast.DerefExpr:
		e.emitExpr(n.Operand)
	default:
		e.errorf(x.Pos(), "expression is not assignable")
	}
}

// resolveType recovers x's type on demand from the identifiers it
// ultimately bottoms out on; there is no separate type-checking pass,
// so the declared types in the symbol table are the only source.
func (e *Emitter) resolveType(x ast.Expr) *types.Type {
	switch n := x.(type) {
	case *ast.IdentExpr:
		sym := n.Sym
		if sym == nil {
			sym = e.sym.Lookup(n.Name)
		}
		if sym == nil {
			return nil
		}
		return sym.Type
	case *ast.IndexExpr:
		arrTyp := e.resolveType(n.Array)
		if arrTyp == nil {
			return nil
		}
		return arrTyp.Pointee
	case *ast.DerefExpr:
		opTyp := e.resolveType(n.Operand)
		if opTyp == nil {
			return nil
		}
		return opTyp.Pointee
	case *ast.AddrExpr:
		return types.NewPointer(e.resolveType(n.Operand))
	case *ast.CastExpr:
		return n.TargetType
	case *ast.CallExpr:
		if callee, ok := n.Callee.(*ast.IdentExpr); ok {
			if sym := e.sym.Lookup(callee.Name); sym != nil {
				return sym.Type
			}
		}
		return nil
	default:
		return x.Type()
	}
}

func (e *Emitter) emitAssign(lhs, rhs ast.Expr) {
	e.emitExpr(rhs)
	e.storeTo(lhs)
}

func (e *Emitter) storeTo(lhs ast.Expr) {
	switch n := lhs.(type) {
	case *ast.IdentExpr:
		sym := e.resolve(n.Pos(), n.Name, n.Sym)
		if sym == nil {
			return
		}
		// DUP before the store so the assignment expression still
		// yields the assigned value, matching the DerefExpr/IndexExpr
		// branches below.
		e.op0("DUP")
		e.emitStore(sym)
	case *ast.DerefExpr:
		e.op0("DUP")
		e.emitExpr(n.Operand)
		e.op0("STORE")
	case *ast.IndexExpr:
		e.op0("DUP")
		e.emitAddr(n)
		e.op0("STORE")
	default:
		e.errorf(lhs.Pos(), "expression is not assignable")
	}
}

var binOpcode = map[ast.BinaryOp]string{
	ast.OpAdd: "ADD", ast.OpSub: "SUB", ast.OpMul: "MUL", ast.OpDiv: "DIV", ast.OpMod: "MOD",
	ast.OpAnd: "AND", ast.OpOr: "OR", ast.OpXor: "XOR", ast.OpShl: "SHL", ast.OpShr: "SHR",
	ast.OpEq: "EQ", ast.OpNe: "NE", ast.OpLt: "LT", ast.OpLe: "LE", ast.OpGt: "GT", ast.OpGe: "GE",
	ast.OpLAnd: "LAND", ast.OpLOr: "LOR",
}

// emitBinary pushes both operands left to right and then the operator
// opcode. && and || lower to LAND/LOR the same way: both operands are
// evaluated unconditionally, there is no short-circuit jump.
func (e *Emitter) emitBinary(n *ast.BinaryExpr) {
	e.emitExpr(n.Left)
	e.emitExpr(n.Right)
	op, ok := binOpcode[n.Op]
	if !ok {
		e.errorf(n.Pos(), "internal: unhandled binary operator")
		return
	}
	e.op0(op)
}

func (e *Emitter) emitUnary(n *ast.UnaryExpr) {
	e.emitExpr(n.Operand)
	switch n.Op {
	case ast.UNeg:
		e.op0("NEG")
	case ast.UPos:
		// unary plus performs no operation
	case ast.ULNot:
		e.op0("LNOT")
	case ast.UNot:
		e.op0("NOT")
	}
}

func (e *Emitter) emitTernary(n *ast.TernaryExpr) {
	elseLabel := e.newLabel("tfalse")
	endLabel := e.newLabel("tend")
	e.emitExpr(n.Cond)
	e.op1("JZ", elseLabel)
	e.emitExpr(n.Then)
	e.op1("JMP", endLabel)
	e.label(elseLabel)
	e.emitExpr(n.Else)
	e.label(endLabel)
}

func (e *Emitter) emitCompoundAssign(n *ast.CompoundAssignExpr) {
	// Evaluate as lhs = lhs OP rhs; re-reads lhs rather than caching its
	// address, so an indexed target's index expression is evaluated
	// twice (once for the read, once for the store).
	bin := &ast.BinaryExpr{Op: n.Op, Left: n.LHS, Right: n.RHS}
	e.emitExpr(bin)
	e.storeTo(n.LHS)
}

func (e *Emitter) emitIncDec(n *ast.IncDecExpr) {
	delta := 1
	if !n.IsInc {
		delta = -1
	}
	if n.IsPost {
		e.emitExpr(n.Operand)
		e.op0("DUP")
		e.op1i("PUSH", delta)
		e.op0("ADD")
		e.storeTo(n.Operand)
		e.op0("POP")
	} else {
		e.emitExpr(n.Operand)
		e.op1i("PUSH", delta)
		e.op0("ADD")
		e.storeTo(n.Operand)
	}
}

// emitCall pushes the arguments in order and emits CALL; the argument
// count is conveyed by the call's arity, which the machine honours.
func (e *Emitter) emitCall(n *ast.CallExpr) {
	callee, ok := n.Callee.(*ast.IdentExpr)
	if !ok {
		e.errorf(n.Pos(), "unsupported: indirect calls are not lowered by this code generator")
		return
	}
	for _, a := range n.Args {
		e.emitExpr(a)
	}
	if e.resolve(n.Pos(), callee.Name, callee.Sym) == nil {
		return
	}
	e.op1("CALL", funcLabel(callee.Name))
}

// funcLabel names the label attached to every top-level
// function/process prologue.
func funcLabel(name string) string { return "func_" + name }

func (e *Emitter) emitSizeof(n *ast.SizeofExpr) {
	if n.TargetType != nil {
		e.op1i("PUSH", n.TargetType.Size())
		return
	}
	if n.Operand != nil {
		if t := e.resolveType(n.Operand); t != nil {
			e.op1i("PUSH", t.Size())
			return
		}
	}
	e.op1i("PUSH", 0)
}
