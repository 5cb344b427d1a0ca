package sqlengine

import "testing"

func TestParseFilterComparison(t *testing.T) {
	expr, err := ParseFilter("age gt 18")
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	cmp, ok := expr.(*Comparison)
	if !ok {
		t.Fatalf("expected *Comparison, got %T", expr)
	}
	if cmp.Field != "age" || cmp.Op != "gt" || cmp.Literal.Num != 18 {
		t.Errorf("got %+v", cmp)
	}
}

func TestParseFilterPrecedenceAndOverOr(t *testing.T) {
	expr, err := ParseFilter("a eq 1 or b eq 2 and c eq 3")
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	or, ok := expr.(*BinaryExpr)
	if !ok || or.Op != "or" {
		t.Fatalf("expected top-level or, got %+v", expr)
	}
	if _, ok := or.Left.(*Comparison); !ok {
		t.Errorf("left of or should be a plain comparison, got %T", or.Left)
	}
	and, ok := or.Right.(*BinaryExpr)
	if !ok || and.Op != "and" {
		t.Fatalf("right of or should be an and, got %+v", or.Right)
	}
}

func TestParseFilterExplicitParens(t *testing.T) {
	expr, err := ParseFilter("(a eq 1 or b eq 2) and c eq 3")
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	and, ok := expr.(*BinaryExpr)
	if !ok || and.Op != "and" {
		t.Fatalf("expected top-level and, got %+v", expr)
	}
	if _, ok := and.Left.(*BinaryExpr); !ok {
		t.Errorf("left of and should be the parenthesized or, got %T", and.Left)
	}
}

func TestParseFilterNot(t *testing.T) {
	expr, err := ParseFilter("not (active eq true)")
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	not, ok := expr.(*NotExpr)
	if !ok {
		t.Fatalf("expected *NotExpr, got %T", expr)
	}
	cmp, ok := not.Expr.(*Comparison)
	if !ok || cmp.Literal.Bool != true {
		t.Errorf("got %+v", not.Expr)
	}
}

func TestParseFilterFuncCall(t *testing.T) {
	expr, err := ParseFilter("contains(name, 'bob')")
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	fc, ok := expr.(*FuncCall)
	if !ok || fc.Name != "contains" || fc.Field != "name" || fc.Literal.Str != "bob" {
		t.Fatalf("got %+v", expr)
	}
}

func TestParseFilterTrailingInputFails(t *testing.T) {
	if _, err := ParseFilter("a eq 1 b eq 2"); err == nil {
		t.Fatal("expected a syntax error for trailing input")
	}
}

func TestParseFilterUnmatchedParenFails(t *testing.T) {
	if _, err := ParseFilter("(a eq 1"); err == nil {
		t.Fatal("expected a syntax error for an unmatched parenthesis")
	}
}
