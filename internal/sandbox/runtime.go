// Package sandbox runs a mounted primitive's handler inside a
// restricted yaegi interpreter. Each invocation gets a fresh
// interpreter, a deadline equal to the primitive's timeout, and a
// capability surface limited to the validated input, a scoped
// data-access handle, and a small utility library. On deadline expiry
// the in-flight handler is abandoned and a timeout result is returned;
// the interpreter goroutine cannot outlive its usefulness because
// nothing reads its channels afterwards.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"toolforge/internal/primitive"
	"toolforge/internal/registry"
	"toolforge/internal/schema"
	"toolforge/internal/store"
	"toolforge/internal/validation"
)

// Result is the structured outcome of one invocation.
type Result struct {
	Success          bool     `json:"success"`
	Result           any      `json:"result,omitempty"`
	Error            string   `json:"error,omitempty"`
	ExecutionTimeMs  int64    `json:"executionTimeMs"`
	ValidationErrors []string `json:"validationErrors,omitempty"`
	SecurityWarnings []string `json:"securityWarnings,omitempty"`
}

// Runtime executes mounted primitives and records every attempt.
type Runtime struct {
	cache     *registry.MountCache
	store     *store.Store
	validator *validation.Validator
	log       *zap.Logger
}

// New builds the execution runtime on top of the mount cache and store.
func New(cache *registry.MountCache, st *store.Store, log *zap.Logger) *Runtime {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runtime{
		cache:     cache,
		store:     st,
		validator: validation.New(),
		log:       log.Named("sandbox"),
	}
}

// ExecuteByName resolves a mounted primitive by name and executes it.
// Unmounted or unknown names report primitive.ErrNotFound.
func (rt *Runtime) ExecuteByName(ctx context.Context, name string, raw map[string]any) (*Result, error) {
	mounted, ok := rt.cache.GetByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not mounted", primitive.ErrNotFound, name)
	}
	return rt.Execute(ctx, mounted.Primitive, raw), nil
}

// Execute runs one invocation end to end: validate and coerce input,
// interpret the handler under the primitive's deadline, then persist an
// ExecutionRecord and bump the mount counters. Input validation
// failures return before the handler runs and are not recorded; every
// attempted run is.
func (rt *Runtime) Execute(ctx context.Context, p *primitive.Primitive, raw map[string]any) *Result {
	input, verrs := schema.ValidateInput(p.InputSchema, raw)
	if len(verrs) > 0 {
		return &Result{
			Success:          false,
			Error:            "input validation failed",
			ValidationErrors: verrs,
		}
	}

	res := &Result{SecurityWarnings: securityScan(p.Handler)}
	startedAt := time.Now()

	output, err := rt.run(ctx, p, input)
	elapsed := time.Since(startedAt).Milliseconds()

	switch {
	case err == nil:
		res.Success = true
		res.Result = output
		res.ExecutionTimeMs = elapsed
	case isTimeout(err):
		res.Error = primitive.ErrTimeout.Error()
		res.ExecutionTimeMs = int64(p.TimeoutMs)
	default:
		res.Error = err.Error()
		res.ExecutionTimeMs = elapsed
	}

	rec := &primitive.ExecutionRecord{
		PrimitiveID:     p.ID,
		PrimitiveName:   p.Name,
		Input:           input,
		Output:          res.Result,
		Error:           res.Error,
		Success:         res.Success,
		ExecutionTimeMs: res.ExecutionTimeMs,
		StartedAt:       startedAt,
	}
	if err := rt.store.InsertExecution(rec); err != nil {
		rt.log.Error("failed to persist execution record",
			zap.String("primitive", p.Name), zap.Error(err))
	}
	rt.cache.RecordInvocation(p.ID)

	rt.log.Debug("invocation finished",
		zap.String("primitive", p.Name),
		zap.Bool("success", res.Success),
		zap.Int64("elapsed_ms", res.ExecutionTimeMs))
	return res
}

// run interprets the handler with a hard deadline. Interpretation and
// the Run call both happen on a dedicated goroutine: top-level handler
// code (package var initializers, init bodies) executes while the
// source is evaluated, so it must sit under the same deadline as Run
// itself. If the deadline wins the select, the goroutine is abandoned
// and its eventual result discarded.
func (rt *Runtime) run(ctx context.Context, p *primitive.Primitive, input map[string]any) (any, error) {
	// Re-validate at the execution boundary. The handler was validated
	// when persisted, but the stored text is still untrusted data and
	// the scan is cheap.
	if p.Sandboxed {
		if _, err := rt.validator.Validate(p.Handler); err != nil {
			return nil, err
		}
	}

	deadline := time.Duration(p.TimeoutMs) * time.Millisecond
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	resultCh := make(chan any, 1)
	errCh := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("handler panicked: %v", r)
			}
		}()

		i := interp.New(interp.Options{})
		if err := i.Use(stdlib.Symbols); err != nil {
			errCh <- fmt.Errorf("failed to load interpreter stdlib: %w", err)
			return
		}
		if err := i.Use(capabilityExports(rt.store, p.ID, input, rt.log)); err != nil {
			errCh <- fmt.Errorf("failed to inject capabilities: %w", err)
			return
		}

		if _, err := i.Eval(wrapHandler(p.Handler)); err != nil {
			errCh <- fmt.Errorf("handler evaluation failed: %w", err)
			return
		}

		entry, err := i.Eval("main." + validation.EntrypointName)
		if err != nil {
			errCh <- fmt.Errorf("handler entrypoint not found: %w", err)
			return
		}
		run, ok := entry.Interface().(func(map[string]any) (any, error))
		if !ok {
			errCh <- fmt.Errorf("handler %s has wrong signature (want func(map[string]any) (any, error))",
				validation.EntrypointName)
			return
		}

		out, err := run(input)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- out
	}()

	select {
	case out := <-resultCh:
		return out, nil
	case err := <-errCh:
		return nil, err
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.Canceled) {
			// The caller withdrew, not the deadline; report it as an
			// execution failure with the real elapsed time.
			rt.log.Debug("invocation cancelled by caller", zap.String("primitive", p.Name))
			return nil, fmt.Errorf("invocation cancelled: %w", runCtx.Err())
		}
		rt.log.Warn("handler deadline exceeded",
			zap.String("primitive", p.Name), zap.Int("timeout_ms", p.TimeoutMs))
		return nil, fmt.Errorf("%w: exceeded %dms", primitive.ErrTimeout, p.TimeoutMs)
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, primitive.ErrTimeout)
}

// wrapHandler adds the package clause when the handler source omits it.
func wrapHandler(source string) string {
	if strings.Contains(source, "package main") {
		return source
	}
	return "package main\n\n" + source
}
