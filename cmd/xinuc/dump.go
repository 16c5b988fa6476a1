package main

import (
	"fmt"
	"io"

	"github.com/xinuc/xinuc/internal/ast"
	"github.com/xinuc/xinuc/internal/compiler"
)

// dumpProgram renders the AST as an indented tree, one node per line.
func dumpProgram(w io.Writer, prog *ast.Program) {
	d := &dumper{w: w}
	for _, decl := range prog.Decls {
		d.decl(decl)
	}
}

type dumper struct {
	w      io.Writer
	indent int
}

func (d *dumper) line(format string, args ...interface{}) {
	for i := 0; i < d.indent; i++ {
		fmt.Fprint(d.w, "  ")
	}
	fmt.Fprintf(d.w, format+"\n", args...)
}

func (d *dumper) decl(decl ast.Decl) {
	switch n := decl.(type) {
	case *ast.FuncDecl:
		d.line("FUNC %s", n.Name)
		d.indent++
		if n.Body != nil {
			d.stmt(n.Body)
		}
		d.indent--
	case *ast.VarDecl:
		d.line("VAR %s", n.Name)
	case *ast.AggregateDecl:
		d.line("AGGREGATE %s", n.Name)
	}
}

func (d *dumper) stmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.Block:
		d.line("BLOCK")
		d.indent++
		for _, st := range n.Stmts {
			d.stmt(st)
		}
		d.indent--
	case *ast.IfStmt:
		d.line("IF")
		d.indent++
		d.expr(n.Cond)
		d.stmt(n.Then)
		if n.Else != nil {
			d.stmt(n.Else)
		}
		d.indent--
	case *ast.WhileStmt:
		d.line("WHILE")
		d.indent++
		d.expr(n.Cond)
		d.stmt(n.Body)
		d.indent--
	case *ast.ReturnStmt:
		d.line("RETURN")
		if n.Value != nil {
			d.indent++
			d.expr(n.Value)
			d.indent--
		}
	case *ast.ExprStmt:
		if n.X != nil {
			d.expr(n.X)
		}
	case *ast.VarDecl:
		d.line("VAR %s", n.Name)
	default:
		d.line("STMT")
	}
}

func (d *dumper) expr(e ast.Expr) {
	switch n := e.(type) {
	case *ast.BinaryExpr:
		d.line("BINARY")
		d.indent++
		d.expr(n.Left)
		d.expr(n.Right)
		d.indent--
	case *ast.CallExpr:
		d.line("CALL")
		d.indent++
		for _, a := range n.Args {
			d.expr(a)
		}
		d.indent--
	case *ast.IdentExpr:
		d.line("ID %s", n.Name)
	case *ast.NumberLitExpr:
		d.line("LIT %d", n.Value)
	default:
		d.line("EXPR")
	}
}

// dumpSymtab renders the global symbol table and every struct/union/
// enum aggregate recorded during parsing. Nested block scopes are
// already gone by the time compilation finishes, so only global
// symbols and the aggregate namespace remain to report.
func dumpSymtab(w io.Writer, res *compiler.Result) {
	for _, sym := range res.Sym.GlobalSymbols() {
		fmt.Fprintf(w, "%s %s %s @%d\n", sym.Kind, sym.Name, sym.Type, sym.Offset)
	}
	for name, agg := range res.Sym.Structs {
		fmt.Fprintf(w, "%s %s\n", agg.Kind, name)
		for _, f := range agg.Fields {
			fmt.Fprintf(w, "  %s %s @%d\n", f.Name, f.Type, f.Offset)
		}
		for _, m := range agg.Members {
			fmt.Fprintf(w, "  %s\n", m)
		}
	}
}
