package ast

import "testing"

func TestFuncDeclKindReflectsDeclKind(t *testing.T) {
	cases := []struct {
		dk   DeclKind
		want Kind
	}{
		{DeclFunction, KFunction},
		{DeclProcess, KProcess},
		{DeclSyscall, KSyscall},
		{DeclInterrupt, KInterrupt},
	}
	for _, c := range cases {
		fn := &FuncDecl{DeclKind: c.dk}
		if got := fn.Kind(); got != c.want {
			t.Errorf("FuncDecl{DeclKind: %v}.Kind() = %v, want %v", c.dk, got, c.want)
		}
	}
}

func TestVarDeclKindDistinguishesArrays(t *testing.T) {
	scalar := &VarDecl{Name: "x"}
	if scalar.Kind() != KVarDecl {
		t.Errorf("scalar VarDecl.Kind() = %v, want KVarDecl", scalar.Kind())
	}
	array := &VarDecl{Name: "xs", IsArray: true}
	if array.Kind() != KArrayDecl {
		t.Errorf("array VarDecl.Kind() = %v, want KArrayDecl", array.Kind())
	}
}

func TestAggregateDeclKindPerKind(t *testing.T) {
	cases := []struct {
		ak   AggregateKind
		want Kind
	}{
		{AggStruct, KStructDecl},
		{AggUnion, KUnionDecl},
		{AggEnum, KEnumDecl},
	}
	for _, c := range cases {
		d := &AggregateDecl{AggKind: c.ak}
		if got := d.Kind(); got != c.want {
			t.Errorf("AggregateDecl{AggKind: %v}.Kind() = %v, want %v", c.ak, got, c.want)
		}
	}
}

func TestMemberExprKindDistinguishesArrow(t *testing.T) {
	dot := &MemberExpr{Field: "x"}
	if dot.Kind() != KMember {
		t.Errorf("dot MemberExpr.Kind() = %v, want KMember", dot.Kind())
	}
	arrow := &MemberExpr{Field: "x", IsArrow: true}
	if arrow.Kind() != KPtrMember {
		t.Errorf("arrow MemberExpr.Kind() = %v, want KPtrMember", arrow.Kind())
	}
}

func TestXinuStmtKindPerOp(t *testing.T) {
	cases := []struct {
		op   XinuOp
		want Kind
	}{
		{XCreate, KXinuCreate},
		{XResume, KXinuResume},
		{XSuspend, KXinuSuspend},
		{XKill, KXinuKill},
		{XSleep, KXinuSleep},
		{XYield, KXinuYield},
		{XWait, KXinuWait},
		{XSignal, KXinuSignal},
	}
	for _, c := range cases {
		s := &XinuStmt{Op: c.op}
		if got := s.Kind(); got != c.want {
			t.Errorf("XinuStmt{Op: %v}.Kind() = %v, want %v", c.op, got, c.want)
		}
	}
}

func TestExprBaseTypeAndLvalueAccessors(t *testing.T) {
	e := &IdentExpr{Name: "x"}
	if e.IsLvalue() {
		t.Error("new ExprBase should start as not-lvalue")
	}
	e.SetLvalue(true)
	if !e.IsLvalue() {
		t.Error("SetLvalue(true) did not stick")
	}
	if e.Type() != nil {
		t.Error("new ExprBase should start with a nil type")
	}
}
