package compiler

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xinuc/xinuc/internal/asmwrite"
)

func TestCompileValidProgramProducesInstructions(t *testing.T) {
	res := Compile([]byte(`int main() { return 0; }`), "main.xc", Options{})
	require.False(t, res.Bag.HasErrors(), "unexpected errors: %v", res.Bag.All())
	require.NotEmpty(t, res.Instrs)
	require.Equal(t, "HALT", res.Instrs[len(res.Instrs)-1].Op)
}

func TestCompileCollectsTokensWhenRequested(t *testing.T) {
	res := Compile([]byte(`int x;`), "x.xc", Options{CollectTokens: true})
	require.NotEmpty(t, res.Tokens)
	require.Nil(t, Compile([]byte(`int x;`), "x.xc", Options{}).Tokens)
}

func TestCompileReportsParseErrorsButStillReturnsATree(t *testing.T) {
	res := Compile([]byte(`int f() { return )); }`), "bad.xc", Options{})
	require.True(t, res.Bag.HasErrors())
	require.NotNil(t, res.Tree)
}

func TestCompileReportsUndefinedIdentifier(t *testing.T) {
	res := Compile([]byte(`int f() { return missing; }`), "bad.xc", Options{})
	require.True(t, res.Bag.HasErrors())
}

func TestCompileLexErrorSurfacesInBag(t *testing.T) {
	res := Compile([]byte(`int f() { char c = "unterminated; }`), "bad.xc", Options{})
	require.True(t, res.Bag.HasErrors())
}

func TestCompileThenWriteAssemblyProducesPinnedFormat(t *testing.T) {
	res := Compile([]byte(`int main() { return 0; }`), "main.xc", Options{})
	require.False(t, res.Bag.HasErrors())

	var buf bytes.Buffer
	w := asmwrite.New(&buf)
	err := WriteAssembly(w, "main.xc", res)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "; source: main.xc")
	require.Contains(t, buf.String(), "HALT")
}

func TestCompileGlobalAssignmentInstructionOrder(t *testing.T) {
	res := Compile([]byte(`
		int x;
		int main() {
			x = 2 + 3 * 4;
		}
	`), "main.xc", Options{})
	require.False(t, res.Bag.HasErrors(), "unexpected errors: %v", res.Bag.All())

	var got []string
	for _, in := range res.Instrs {
		if in.Label != "" {
			continue
		}
		got = append(got, in.Op+" "+in.Operand)
	}
	want := []string{"PUSH 2", "PUSH 3", "PUSH 4", "MUL ", "ADD ", "DUP ", "STOREG 0", "POP "}
	idx := 0
	for _, g := range got {
		if idx < len(want) && g == want[idx] {
			idx++
		}
	}
	require.Equal(t, len(want), idx, "expected %v as a subsequence of %v", want, got)
	require.Equal(t, "HALT", res.Instrs[len(res.Instrs)-1].Op)
}

func TestCompileSymbolTableIsPopulated(t *testing.T) {
	res := Compile([]byte(`int counter = 0;`), "g.xc", Options{})
	require.False(t, res.Bag.HasErrors())
	sym := res.Sym.Lookup("counter")
	require.NotNil(t, sym)
}
