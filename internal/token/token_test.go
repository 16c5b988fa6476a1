package token

import "testing"

func TestLookupKeyword(t *testing.T) {
	cases := []struct {
		spelling string
		want     Kind
	}{
		{"if", KwIf},
		{"while", KwWhile},
		{"create", KwCreate},
		{"semaphore", KwSemaphore},
		{"getpid", KwGetpid},
		{"chprio", KwChprio},
	}
	for _, c := range cases {
		got, ok := Lookup(c.spelling)
		if !ok {
			t.Errorf("Lookup(%q): expected a keyword match", c.spelling)
			continue
		}
		if got != c.want {
			t.Errorf("Lookup(%q) = %v, want %v", c.spelling, got, c.want)
		}
	}
}

func TestLookupNonKeyword(t *testing.T) {
	if _, ok := Lookup("myVariable"); ok {
		t.Fatal("Lookup(\"myVariable\") should not match a keyword")
	}
}

func TestIsKeyword(t *testing.T) {
	if !KwIf.IsKeyword() {
		t.Error("KwIf.IsKeyword() = false, want true")
	}
	if Ident.IsKeyword() {
		t.Error("Ident.IsKeyword() = true, want false")
	}
	if EOF.IsKeyword() {
		t.Error("EOF.IsKeyword() = true, want false")
	}
}

func TestKindStringRoundTripsKeywords(t *testing.T) {
	if KwProcess.String() != "process" {
		t.Errorf("KwProcess.String() = %q, want %q", KwProcess.String(), "process")
	}
}

func TestPositionString(t *testing.T) {
	p := Position{File: "a.xc", Line: 3, Column: 7}
	want := "a.xc:3:7"
	if got := p.String(); got != want {
		t.Errorf("Position.String() = %q, want %q", got, want)
	}
}

func TestTokenStringIncludesSpelling(t *testing.T) {
	tok := Token{Kind: Ident, Spelling: "count", Pos: Position{File: "a.xc", Line: 1, Column: 1}}
	got := tok.String()
	if got == "" {
		t.Fatal("Token.String() returned empty string")
	}
}
