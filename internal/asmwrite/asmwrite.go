// Package asmwrite renders an emitter.Instr stream to the textual
// assembly format: three ';'-comment header lines (product name,
// source filename, compiler version), a blank line, then one line per
// instruction — two leading spaces, the mnemonic left-padded to width
// 10, one space, and the decimal operand — with a standalone "label:"
// line preceding the instruction it names.
package asmwrite

import (
	"bufio"
	"fmt"
	"io"

	"github.com/xinuc/xinuc/internal/emitter"
)

const mnemonicWidth = 10

// Writer renders a resolved instruction stream to an io.Writer.
type Writer struct {
	w *bufio.Writer
}

// New wraps w in a Writer.
func New(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Header holds the three comment lines the format requires.
type Header struct {
	Product string
	Source  string
	Version string
}

// WriteProgram emits the header, a blank line, and then every
// instruction in instrs, flushing the underlying writer before
// returning. An instruction with no operand prints operand 0.
func (wr *Writer) WriteProgram(h Header, instrs []emitter.Instr) error {
	fmt.Fprintf(wr.w, "; %s\n", h.Product)
	fmt.Fprintf(wr.w, "; source: %s\n", h.Source)
	fmt.Fprintf(wr.w, "; version: %s\n", h.Version)
	fmt.Fprintln(wr.w)

	for _, in := range instrs {
		if in.Label != "" {
			fmt.Fprintf(wr.w, "%s:\n", in.Label)
			continue
		}
		operand := in.Operand
		if !in.HasOperand {
			operand = "0"
		}
		fmt.Fprintf(wr.w, "  %*s %s\n", mnemonicWidth, in.Op, operand)
	}
	return wr.w.Flush()
}
