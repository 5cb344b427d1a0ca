package composite

import (
	"context"
	"fmt"
	"testing"

	"github.com/melosso/portway/internal/registry"
)

func TestRunSequentialStepsCarryScratch(t *testing.T) {
	def := &registry.Definition{
		Steps: []registry.CompositeStep{
			{Name: "createOrder", TargetEndpoint: "orders", Method: "POST"},
			{Name: "linkInvoice", TargetEndpoint: "invoices", Method: "POST",
				TemplateTransformations: map[string]string{"orderId": "$prev.createOrder.id"}},
		},
	}
	var seenOrderID any
	exec := func(ctx context.Context, target, method string, body map[string]any) (map[string]any, error) {
		switch target {
		case "orders":
			return map[string]any{"id": "ord_7"}, nil
		case "invoices":
			seenOrderID = body["orderId"]
			return map[string]any{"invoiceId": "inv_1"}, nil
		}
		return nil, fmt.Errorf("unexpected target %s", target)
	}

	result := Run(context.Background(), def, exec)
	if result.Err != nil {
		t.Fatalf("unexpected failure: %v", result.Err)
	}
	if len(result.StepResults) != 2 {
		t.Fatalf("expected 2 step results, got %d", len(result.StepResults))
	}
	if seenOrderID != "ord_7" {
		t.Fatalf("second step should see first step's id via $prev, got %v", seenOrderID)
	}
}

func TestRunShortCircuitsOnFirstFailure(t *testing.T) {
	def := &registry.Definition{
		Steps: []registry.CompositeStep{
			{Name: "step1", TargetEndpoint: "a", Method: "POST"},
			{Name: "step2", TargetEndpoint: "b", Method: "POST"},
			{Name: "step3", TargetEndpoint: "c", Method: "POST"},
		},
	}
	exec := func(ctx context.Context, target, method string, body map[string]any) (map[string]any, error) {
		if target == "b" {
			return nil, fmt.Errorf("boom")
		}
		return map[string]any{"ok": true}, nil
	}

	result := Run(context.Background(), def, exec)
	if result.Err == nil {
		t.Fatal("expected the run to fail at step2")
	}
	if result.FailedStep != "step2" {
		t.Fatalf("FailedStep = %q, want step2", result.FailedStep)
	}
	if len(result.StepResults) != 2 {
		t.Fatalf("expected partial results through the failing step, got %d", len(result.StepResults))
	}
}

func TestRunArrayStepPreservesOrder(t *testing.T) {
	def := &registry.Definition{
		Steps: []registry.CompositeStep{
			{Name: "seed", TargetEndpoint: "seed", Method: "POST"},
			{Name: "fanout", TargetEndpoint: "items", Method: "POST", IsArray: true, ArrayProperty: "$prev.seed.items"},
		},
	}
	exec := func(ctx context.Context, target, method string, body map[string]any) (map[string]any, error) {
		if target == "seed" {
			return map[string]any{"items": []any{
				map[string]any{"n": float64(1)},
				map[string]any{"n": float64(2)},
				map[string]any{"n": float64(3)},
			}}, nil
		}
		n := body["n"]
		return map[string]any{"n": n, "doubled": n}, nil
	}

	result := Run(context.Background(), def, exec)
	if result.Err != nil {
		t.Fatalf("unexpected failure: %v", result.Err)
	}
	arr, ok := result.StepResults[1].Result.([]any)
	if !ok || len(arr) != 3 {
		t.Fatalf("expected 3 ordered sub-results, got %v", result.StepResults[1].Result)
	}
	for i, want := range []float64{1, 2, 3} {
		got := arr[i].(map[string]any)["n"]
		if got != want {
			t.Fatalf("sub-result %d = %v, want %v (order must match input)", i, got, want)
		}
	}
}
