package emitter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xinuc/xinuc/internal/diag"
	"github.com/xinuc/xinuc/internal/lexer"
	"github.com/xinuc/xinuc/internal/parser"
	"github.com/xinuc/xinuc/internal/symtab"
)

func compile(t *testing.T, src string) ([]Instr, *diag.Bag) {
	t.Helper()
	lx := lexer.New([]byte(src), "test.xc")
	sym := symtab.New()
	bag := &diag.Bag{}
	prog := parser.FromLexer(lx, sym, bag).Parse()
	require.False(t, bag.HasErrors(), "unexpected parse errors: %v", bag.All())
	em := New(sym, bag)
	em.EmitProgram(prog)
	return em.Instructions(), bag
}

func opSeq(instrs []Instr) []string {
	var ops []string
	for _, in := range instrs {
		if in.Label != "" {
			continue
		}
		ops = append(ops, in.Op)
	}
	return ops
}

func indexOf(ops []string, op string) int {
	for i, o := range ops {
		if o == op {
			return i
		}
	}
	return -1
}

func TestEmitterSimpleReturnProgram(t *testing.T) {
	instrs, bag := compile(t, `int f() { return 1 + 2; }`)
	require.False(t, bag.HasErrors())
	// explicit return, then the implicit PUSH 0; RET epilogue
	require.Equal(t, []string{"PUSH", "PUSH", "ADD", "RET", "PUSH", "RET", "HALT"}, opSeq(instrs))
}

func TestEmitterReturnWithoutValuePushesZero(t *testing.T) {
	instrs, bag := compile(t, `void f() { return; }`)
	require.False(t, bag.HasErrors())
	ops := opSeq(instrs)
	require.Equal(t, "PUSH", ops[0])
	require.Equal(t, "RET", ops[1])
}

func TestEmitterGlobalVarStoresAtOffsetZero(t *testing.T) {
	instrs, bag := compile(t, `int counter = 5;`)
	require.False(t, bag.HasErrors())
	require.Equal(t, []string{"PUSH", "STOREG", "HALT"}, opSeq(instrs))
	require.Equal(t, "0", instrs[1].Operand)
}

func TestEmitterGlobalOffsetsAccumulateBySize(t *testing.T) {
	instrs, bag := compile(t, `
		int a = 1;
		char b = 2;
		int c = 3;
	`)
	require.False(t, bag.HasErrors())
	var offsets []string
	for _, in := range instrs {
		if in.Op == "STOREG" {
			offsets = append(offsets, in.Operand)
		}
	}
	require.Equal(t, []string{"0", "4", "5"}, offsets)
}

// Assigning through an identifier must leave the assigned value on the
// stack (DUP before the store), so the enclosing expression statement's
// trailing POP has something to discard.
func TestEmitterAssignmentToIdentifierDupsBeforeStore(t *testing.T) {
	instrs, bag := compile(t, `
		int x;
		int f() {
			x = 2 + 3 * 4;
			return 0;
		}
	`)
	require.False(t, bag.HasErrors())
	ops := opSeq(instrs)
	idx := indexOf(ops, "STOREG")
	require.GreaterOrEqual(t, idx, 1, "expected a STOREG in %v", ops)
	require.Equal(t, "DUP", ops[idx-1], "assignment must DUP the value before STOREG")
	require.Equal(t, "POP", ops[idx+1], "the expression statement must discard the duplicated value")
}

func TestEmitterIfElseProducesDecimalJumpTargets(t *testing.T) {
	instrs, bag := compile(t, `
		int f() {
			if (1) { return 1; } else { return 0; }
		}
	`)
	require.False(t, bag.HasErrors())
	found := false
	for _, in := range instrs {
		if in.Op == "JZ" || in.Op == "JMP" {
			found = true
			require.Regexp(t, `^\d+$`, in.Operand, "jump operand must be decimal, got %q", in.Operand)
		}
	}
	require.True(t, found, "expected at least one jump instruction")
}

func TestEmitterWhileLoopBreakContinue(t *testing.T) {
	instrs, bag := compile(t, `
		int f() {
			while (1) {
				break;
				continue;
			}
		}
	`)
	require.False(t, bag.HasErrors())
	for _, in := range instrs {
		if in.Op == "JMP" {
			require.Regexp(t, `^\d+$`, in.Operand)
		}
	}
}

// After `while (1) break;` the loop-exit JZ and the break JMP must
// resolve to the same address, and the back-edge must jump to the
// loop-start index.
func TestEmitterWhileBreakTargetCoincidesWithLoopExit(t *testing.T) {
	instrs, bag := compile(t, `int f() { while (1) break; }`)
	require.False(t, bag.HasErrors())

	var jumps []Instr
	for _, in := range instrs {
		if in.Op == "JZ" || in.Op == "JMP" {
			jumps = append(jumps, in)
		}
	}
	require.Len(t, jumps, 3)
	require.Equal(t, "JZ", jumps[0].Op)
	require.Equal(t, "JMP", jumps[1].Op) // break
	require.Equal(t, jumps[0].Operand, jumps[1].Operand)
	require.Equal(t, "JMP", jumps[2].Op) // back edge
	require.Equal(t, "0", jumps[2].Operand)
}

func TestEmitterForLoopUsesLocalSlotAndPatchedExit(t *testing.T) {
	instrs, bag := compile(t, `
		int f() {
			int i;
			for (i = 0; i < 3; i = i + 1) { }
		}
	`)
	require.False(t, bag.HasErrors())
	ops := opSeq(instrs)
	require.Contains(t, ops, "LOADL")
	require.Contains(t, ops, "STOREL")
	for _, in := range instrs {
		if in.Op == "JZ" || in.Op == "JMP" {
			require.Regexp(t, `^\d+$`, in.Operand)
		}
	}
}

func TestEmitterBreakOutsideLoopIsAnError(t *testing.T) {
	instrs, bag := compile(t, `int f() { break; }`)
	_ = instrs
	require.True(t, bag.HasErrors())
}

func TestEmitterLogicalOperatorsLowerToLandLor(t *testing.T) {
	instrs, bag := compile(t, `int f() { return 1 && 2 || 0; }`)
	require.False(t, bag.HasErrors())
	ops := opSeq(instrs)
	require.Contains(t, ops, "LAND")
	require.Contains(t, ops, "LOR")
}

func TestEmitterUndefinedIdentifierIsAnError(t *testing.T) {
	_, bag := compile(t, `int f() { return undeclared_name; }`)
	require.True(t, bag.HasErrors())
}

// Calling an undeclared function parses fine but latches an undefined
// error during code generation; the instructions emitted before the
// error are preserved and the program still ends in HALT.
func TestEmitterUndefinedCalleeIsACodegenError(t *testing.T) {
	instrs, bag := compile(t, `int f() { return g(); }`)
	require.True(t, bag.HasErrors())
	require.NotEmpty(t, instrs)
	require.Equal(t, "HALT", instrs[len(instrs)-1].Op)
}

func TestEmitterSwitchIsReportedUnsupported(t *testing.T) {
	_, bag := compile(t, `
		int f() {
			switch (1) {
				case 1:
					return 1;
				default:
					return 0;
			}
		}
	`)
	require.True(t, bag.HasErrors())
}

func TestEmitterSyscallDeclIsReportedUnsupported(t *testing.T) {
	_, bag := compile(t, `syscall open() { return 0; }`)
	require.True(t, bag.HasErrors())
}

func TestEmitterStructDeclIsReportedUnsupported(t *testing.T) {
	_, bag := compile(t, `
		struct point {
			int x;
			int y;
		};
	`)
	require.True(t, bag.HasErrors())
}

func TestEmitterCastIsReportedUnsupported(t *testing.T) {
	_, bag := compile(t, `
		int f() {
			int n;
			return (char)n;
		}
	`)
	require.True(t, bag.HasErrors())
}

func TestEmitterMemberAccessIsReportedUnsupported(t *testing.T) {
	_, bag := compile(t, `
		int f() {
			int p;
			return p.x;
		}
	`)
	require.True(t, bag.HasErrors())
}

func TestEmitterIndirectCallIsReportedUnsupported(t *testing.T) {
	_, bag := compile(t, `
		int f() {
			int fp;
			return (*fp)();
		}
	`)
	require.True(t, bag.HasErrors())
}

func TestEmitterCallResolvesToFunctionLabelAddress(t *testing.T) {
	instrs, bag := compile(t, `
		int g() { return 1; }
		int f() { return g(); }
	`)
	require.False(t, bag.HasErrors())
	var callAddr string
	for _, in := range instrs {
		if in.Op == "CALL" {
			callAddr = in.Operand
		}
	}
	require.NotEmpty(t, callAddr)
	require.Regexp(t, `^\d+$`, callAddr)

	addr := 0
	var gAddr int
	for _, in := range instrs {
		if in.Label == "func_g" {
			gAddr = addr
			continue
		}
		if in.Label != "" {
			continue
		}
		addr++
	}
	require.Equal(t, gAddr, atoi(t, callAddr))
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	n := 0
	for _, c := range s {
		require.True(t, c >= '0' && c <= '9')
		n = n*10 + int(c-'0')
	}
	return n
}

func TestEmitterPostIncrementLeavesOldValueOnStack(t *testing.T) {
	instrs, bag := compile(t, `
		int f() {
			int i;
			return i++;
		}
	`)
	require.False(t, bag.HasErrors())
	ops := opSeq(instrs)
	// old value pushed and DUP'd, new value stored, duplicate popped,
	// then the old value alone feeds RET.
	require.Contains(t, ops, "DUP")
	storeIdx := indexOf(ops, "STOREL")
	require.GreaterOrEqual(t, storeIdx, 0)
	require.Equal(t, "POP", ops[storeIdx+1])
	require.Equal(t, "RET", ops[storeIdx+2])
}

func TestEmitterPreIncrementLeavesNewValueOnStack(t *testing.T) {
	instrs, bag := compile(t, `
		int f() {
			int i;
			return ++i;
		}
	`)
	require.False(t, bag.HasErrors())
	ops := opSeq(instrs)
	storeIdx := indexOf(ops, "STOREL")
	require.GreaterOrEqual(t, storeIdx, 0)
	require.Equal(t, "DUP", ops[storeIdx-1])
	require.Equal(t, "RET", ops[storeIdx+1], "no extra POP should follow a pre-increment store")
}

func TestEmitterGetpidIsAnExpression(t *testing.T) {
	instrs, bag := compile(t, `int f() { return getpid(); }`)
	require.False(t, bag.HasErrors())
	require.Contains(t, opSeq(instrs), "GETPID")
}

func TestEmitterXinuCreateEmitsArgCountOperand(t *testing.T) {
	instrs, bag := compile(t, `
		process child() { return 0; }
		process f() {
			create(child, 1024, 20, 0, 0);
		}
	`)
	require.False(t, bag.HasErrors())
	var found bool
	for _, in := range instrs {
		if in.Op == "CREATE" {
			found = true
			require.Equal(t, "5", in.Operand)
		}
	}
	require.True(t, found)
}

func TestEmitterXinuYield(t *testing.T) {
	instrs, bag := compile(t, `process f() { yield(); }`)
	require.False(t, bag.HasErrors())
	var found bool
	for _, in := range instrs {
		if in.Op == "YIELD" {
			found = true
			require.Equal(t, "0", in.Operand)
		}
	}
	require.True(t, found)
}
