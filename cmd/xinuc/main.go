// Command xinuc is the compiler driver: it wires flag parsing, source
// loading and the internal/compiler pipeline together, reports
// diagnostics to stderr and exits non-zero on any error.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xinuc/xinuc/internal/asmwrite"
	"github.com/xinuc/xinuc/internal/compiler"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("xinuc", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		outPath     = fs.String("o", "out.xc", "output assembly file")
		dumpTokens  = fs.Bool("dump-tokens", false, "print the token stream and exit")
		dumpAST     = fs.Bool("dump-ast", false, "print the parsed AST and exit")
		dumpSymbols = fs.Bool("dump-symbols", false, "print the symbol table and exit")
		dumpCode    = fs.Bool("dump-code", false, "print the emitted instructions and exit")
		_           = fs.Bool("O", false, "reserved; this code generator performs no optimization")
		warnLevel   = fs.Int("W", 0, "warning verbosity level")
		showVersion = fs.Bool("version", false, "print version and exit")
	)
	fs.BoolVar(showVersion, "v", false, "print version and exit (shorthand)")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	if *showVersion {
		fmt.Fprintf(os.Stdout, "%s version %s\n", compiler.Product, compiler.Version)
		return 0
	}

	rest := fs.Args()
	if len(rest) != 1 {
		fmt.Fprintln(os.Stderr, "usage: xinuc [flags] <source-file>")
		return 2
	}
	srcPath := rest[0]

	src, err := os.ReadFile(srcPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xinuc: %s\n", err)
		return 1
	}

	opts := compiler.Options{CollectTokens: *dumpTokens}
	res := compiler.Compile(src, srcPath, opts)

	switch {
	case *dumpTokens:
		for _, t := range res.Tokens {
			fmt.Fprintln(os.Stdout, t.String())
		}
		return exitCode(res)
	case *dumpAST:
		dumpProgram(os.Stdout, res.Tree)
		return exitCode(res)
	case *dumpSymbols:
		dumpSymtab(os.Stdout, res)
		return exitCode(res)
	case *dumpCode:
		for _, in := range res.Instrs {
			if in.Label != "" {
				fmt.Fprintf(os.Stdout, "%s:\n", in.Label)
				continue
			}
			if in.HasOperand {
				fmt.Fprintf(os.Stdout, "%-10s %s\n", in.Op, in.Operand)
			} else {
				fmt.Fprintf(os.Stdout, "%-10s\n", in.Op)
			}
		}
		return exitCode(res)
	}

	reportDiagnostics(res, *warnLevel)
	if res.Bag.HasErrors() {
		return 1
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "xinuc: %s\n", err)
			return 1
		}
		defer f.Close()
		out = f
	}
	if err := compiler.WriteAssembly(asmwrite.New(out), srcPath, res); err != nil {
		fmt.Fprintf(os.Stderr, "xinuc: %s\n", err)
		return 1
	}
	return 0
}

func exitCode(res *compiler.Result) int {
	reportDiagnostics(res, 0)
	if res.Bag.HasErrors() {
		return 1
	}
	return 0
}

func reportDiagnostics(res *compiler.Result, warnLevel int) {
	for _, d := range res.Bag.All() {
		if d.Severity.String() == "warning" && warnLevel <= 0 {
			continue
		}
		fmt.Fprintln(os.Stderr, d.String())
	}
}
