// Package compiler sequences the lexer, parser, symbol table and
// emitter into a single synchronous pipeline, aggregating diagnostics
// from every phase into one bag so the driver can report them
// together.
package compiler

import (
	"github.com/xinuc/xinuc/internal/asmwrite"
	"github.com/xinuc/xinuc/internal/ast"
	"github.com/xinuc/xinuc/internal/diag"
	"github.com/xinuc/xinuc/internal/emitter"
	"github.com/xinuc/xinuc/internal/lexer"
	"github.com/xinuc/xinuc/internal/parser"
	"github.com/xinuc/xinuc/internal/symtab"
	"github.com/xinuc/xinuc/internal/token"
)

// Product and Version identify this compiler in the generated
// listing's header and in the CLI's -version output.
const (
	Product = "xinuc"
	Version = "0.1.0"
)

// Result carries every artifact a caller might want to inspect or
// dump, plus the aggregated diagnostics.
type Result struct {
	Tokens []token.Token
	Tree   *ast.Program
	Sym    *symtab.Table
	Instrs []emitter.Instr
	Bag    *diag.Bag
}

// Options configures which phases run beyond the minimum needed to
// produce Instrs; the CLI's -dump-tokens flag, for instance, asks the
// compiler to retain the full token stream it would otherwise discard
// once parsing consumes it.
type Options struct {
	CollectTokens bool
}

// Compile runs the full pipeline over src (named filename for
// diagnostics) and returns every phase's output. Compilation proceeds
// through every phase regardless of earlier errors so -dump-tokens,
// -dump-ast and -dump-symbols remain useful even on invalid input;
// callers must check Result.Bag.HasErrors() before trusting Instrs.
func Compile(src []byte, filename string, opts Options) *Result {
	bag := &diag.Bag{}
	res := &Result{Bag: bag}

	lx := lexer.New(src, filename)
	if opts.CollectTokens {
		res.Tokens = collectTokens(src, filename)
	}

	sym := symtab.New()
	res.Sym = sym

	p := parser.FromLexer(lx, sym, bag)
	prog := p.Parse()
	res.Tree = prog

	// The parser reports lexical errors as it consumes Error tokens;
	// this latch only fires if one somehow never reached it.
	if lx.HadError() && !bag.HasErrors() {
		bag.Errorf(token.Position{File: filename}, "%s", lx.ErrMsg())
	}

	em := emitter.New(sym, bag)
	em.EmitProgram(prog)
	res.Instrs = em.Instructions()

	return res
}

// collectTokens re-lexes src independently so -dump-tokens can show
// the full stream even though the parser consumes its own lexer
// instance token by token.
func collectTokens(src []byte, filename string) []token.Token {
	lx := lexer.New(src, filename)
	var toks []token.Token
	for {
		t := lx.Next()
		toks = append(toks, t)
		if t.Kind == token.EOF {
			break
		}
	}
	return toks
}

// WriteAssembly renders res.Instrs in the textual listing format.
func WriteAssembly(w *asmwrite.Writer, sourceName string, res *Result) error {
	h := asmwrite.Header{
		Product: Product,
		Source:  sourceName,
		Version: Version,
	}
	return w.WriteProgram(h, res.Instrs)
}
