package composite

import (
	"context"
	"sync"

	"github.com/melosso/portway/internal/gwerr"
	"github.com/melosso/portway/internal/registry"
)

// maxFanout bounds isArray sub-step concurrency, per §4.6's "small fixed
// fanout" — we don't pull in errgroup for a handful of goroutines.
const maxFanout = 8

// StepExecutor runs a single resolved sub-request against another
// endpoint in the same environment and returns its decoded JSON body. The
// router supplies the concrete implementation (it runs SQL stored-procedure
// targets and refuses other kinds); composite only orchestrates.
type StepExecutor func(ctx context.Context, targetEndpoint, method string, body map[string]any) (map[string]any, error)

// StepResult is one step's outcome, returned in StepResults regardless of
// whether the overall run ultimately fails.
type StepResult struct {
	Name    string
	Success bool
	Result  any // map[string]any for scalar steps, []any for isArray steps
	Error   string
}

// RunResult is the orchestrator's full response: partial StepResults up to
// (and including) the failing step, per §4.6's atomicity contract.
type RunResult struct {
	StepResults []StepResult
	FailedStep  string
	Err         error
}

// Run executes def's steps sequentially, short-circuiting on the first
// failure. There is no automatic compensation — the spec leaves it to step
// targets.
func Run(ctx context.Context, def *registry.Definition, exec StepExecutor) RunResult {
	scratch := NewScratch()
	var out RunResult

	for _, step := range def.Steps {
		var result StepResult
		var err error
		if step.IsArray {
			result, err = runArrayStep(ctx, step, scratch, exec)
		} else {
			result, err = runScalarStep(ctx, step, scratch, exec)
		}
		out.StepResults = append(out.StepResults, result)
		if err != nil {
			out.FailedStep = step.Name
			out.Err = err
			return out
		}
		scratch.SetStepResult(step.Name, result.Result)
	}
	return out
}

func runScalarStep(ctx context.Context, step registry.CompositeStep, scratch *Scratch, exec StepExecutor) (StepResult, error) {
	body := map[string]any{}
	if err := ApplyTemplate(body, step.TemplateTransformations, scratch, step.Name); err != nil {
		return StepResult{Name: step.Name, Success: false, Error: err.Error()}, err
	}
	res, err := exec(ctx, step.TargetEndpoint, step.Method, body)
	if err != nil {
		return StepResult{Name: step.Name, Success: false, Error: err.Error()}, err
	}
	return StepResult{Name: step.Name, Success: true, Result: res}, nil
}

// runArrayStep iterates the input array at ArrayProperty, running each
// element's sub-request with bounded concurrency, then re-orders results
// by input index so $prev.step.N.* addressing stays stable regardless of
// completion order.
func runArrayStep(ctx context.Context, step registry.CompositeStep, scratch *Scratch, exec StepExecutor) (StepResult, error) {
	items, ok := scratch.Resolve(step.ArrayProperty)
	if !ok {
		err := gwerr.New(gwerr.CodeCompositeTemplateError, "composite.array", step.Name, nil).
			WithDetail("unresolved ArrayProperty " + step.ArrayProperty)
		return StepResult{Name: step.Name, Success: false, Error: err.Error()}, err
	}
	arr, ok := items.([]any)
	if !ok {
		err := gwerr.New(gwerr.CodeCompositeTemplateError, "composite.array", step.Name, nil).
			WithDetail(step.ArrayProperty + " did not resolve to an array")
		return StepResult{Name: step.Name, Success: false, Error: err.Error()}, err
	}

	results := make([]any, len(arr))
	errs := make([]error, len(arr))
	sem := make(chan struct{}, maxFanout)
	var wg sync.WaitGroup

	for i, item := range arr {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, item any) {
			defer wg.Done()
			defer func() { <-sem }()

			elemScratch := scratch
			body, ok := item.(map[string]any)
			if !ok {
				body = map[string]any{}
			}
			out := map[string]any{}
			for k, v := range body {
				out[k] = v
			}
			if err := ApplyTemplate(out, step.TemplateTransformations, elemScratch, step.Name); err != nil {
				errs[i] = err
				return
			}
			res, err := exec(ctx, step.TargetEndpoint, step.Method, out)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = res
		}(i, item)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return StepResult{Name: step.Name, Success: false, Result: results, Error: err.Error()}, err
		}
	}
	return StepResult{Name: step.Name, Success: true, Result: results}, nil
}
