package composite

import "testing"

func TestResolveGuidIsStableAcrossSteps(t *testing.T) {
	s := NewScratch()
	g1, ok := s.Resolve("$guid")
	if !ok {
		t.Fatal("$guid should always resolve")
	}
	g2, _ := s.Resolve("$guid")
	if g1 != g2 {
		t.Fatal("$guid must be stable across the whole request")
	}
}

func TestResolvePrevDotPath(t *testing.T) {
	s := NewScratch()
	s.SetStepResult("createOrder", map[string]any{"id": "ord_1", "customer": map[string]any{"email": "a@b.com"}})

	v, ok := s.Resolve("$prev.createOrder.id")
	if !ok || v != "ord_1" {
		t.Fatalf("Resolve = %v, %v; want ord_1, true", v, ok)
	}
	v2, ok := s.Resolve("$prev.createOrder.customer.email")
	if !ok || v2 != "a@b.com" {
		t.Fatalf("Resolve nested = %v, %v; want a@b.com, true", v2, ok)
	}
}

func TestResolvePrevArrayIndex(t *testing.T) {
	s := NewScratch()
	s.SetStepResult("items", []any{
		map[string]any{"id": "i1"},
		map[string]any{"id": "i2"},
	})
	v, ok := s.Resolve("$prev.items.1.id")
	if !ok || v != "i2" {
		t.Fatalf("Resolve = %v, %v; want i2, true", v, ok)
	}
}

func TestResolveUnknownReferenceFails(t *testing.T) {
	s := NewScratch()
	if _, ok := s.Resolve("$prev.missingStep.field"); ok {
		t.Fatal("unknown step reference should not resolve")
	}
}

func TestApplyTemplateWholeValueAndInterpolation(t *testing.T) {
	s := NewScratch()
	s.SetStepResult("createOrder", map[string]any{"id": "ord_42"})

	body := map[string]any{}
	err := ApplyTemplate(body, map[string]string{
		"orderId":     "$prev.createOrder.id",
		"note":        "ref:$prev.createOrder.id:done",
		"nested.flag": "$guid",
	}, s, "linkInvoice")
	if err != nil {
		t.Fatalf("ApplyTemplate: %v", err)
	}
	if body["orderId"] != "ord_42" {
		t.Fatalf("orderId = %v, want ord_42", body["orderId"])
	}
	if body["note"] != "ref:ord_42:done" {
		t.Fatalf("note = %v, want interpolated string", body["note"])
	}
	nested, ok := body["nested"].(map[string]any)
	if !ok || nested["flag"] != s.guid {
		t.Fatalf("nested.flag not set correctly: %v", body["nested"])
	}
}

func TestApplyTemplateUnknownReferenceErrors(t *testing.T) {
	s := NewScratch()
	err := ApplyTemplate(map[string]any{}, map[string]string{"x": "$prev.nope.field"}, s, "step1")
	if err == nil {
		t.Fatal("unresolved reference should produce a CompositeTemplateError")
	}
}
