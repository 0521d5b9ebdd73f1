package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// Stage is one step of the pipeline.
type Stage interface {
	Name() string
	Execute(ctx context.Context, rc RunContext) (RunContext, error)
}

// StageFunc adapts a function to Stage.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, rc RunContext) (RunContext, error)
}

func (s StageFunc) Name() string { return s.StageName }

func (s StageFunc) Execute(ctx context.Context, rc RunContext) (RunContext, error) {
	return s.Fn(ctx, rc)
}

const (
	DefaultPipelineTimeout = 10 * time.Minute
	finalizeTimeout        = 30 * time.Second
)

// Executor runs stages in order until one sets a terminal status, then
// always runs the finalize hook.
type Executor struct {
	stages   []Stage
	finalize Stage
	timeout  time.Duration
	logger   *slog.Logger
}

func NewExecutor(stages []Stage, finalize Stage, timeout time.Duration, logger *slog.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultPipelineTimeout
	}
	return &Executor{stages: stages, finalize: finalize, timeout: timeout, logger: logger}
}

type stageResult struct {
	rc  RunContext
	err error
}

// Execute never returns an error: stage errors, panics and the pipeline
// deadline all become a FAILED status on the returned context.
func (e *Executor) Execute(ctx context.Context, rc RunContext) RunContext {
	if rc.Status.Status == "" {
		rc.Status.Status = StatusRunning
	}
	e.logger.Info("pipeline started", e.attrs(rc, "")...)
	started := time.Now()
	deadline := time.NewTimer(e.timeout)
	defer deadline.Stop()

	for _, stage := range e.stages {
		if rc.Status.Status.Terminal() {
			break
		}
		e.logger.Info("stage started", e.attrs(rc, stage.Name())...)

		done := make(chan stageResult, 1)
		go func(in RunContext) {
			done <- e.run(ctx, stage, in)
		}(rc)

		select {
		case res := <-done:
			if res.err != nil {
				e.logger.Error("stage failed", append(e.attrs(rc, stage.Name()), slog.String("error", res.err.Error()))...)
				reason := ReasonStageError
				var pe *panicError
				if errors.As(res.err, &pe) {
					reason = ReasonStagePanic
				}
				rc = rc.Fail(reason, fmt.Sprintf("%s: %v", stage.Name(), res.err))
				continue
			}
			rc = res.rc
			e.logger.Info("stage completed", e.attrs(rc, stage.Name())...)
		case <-deadline.C:
			// The stage keeps running with its own context; its result is
			// discarded.
			e.logger.Error("pipeline timed out", e.attrs(rc, stage.Name())...)
			rc = rc.Fail(ReasonTimeout, fmt.Sprintf("pipeline exceeded %s during %s", e.timeout, stage.Name()))
		case <-ctx.Done():
			rc = rc.Fail(ReasonCancelled, fmt.Sprintf("%s: %v", stage.Name(), ctx.Err()))
		}
	}

	if e.finalize != nil {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		res := e.run(fctx, e.finalize, rc)
		cancel()
		if res.err != nil {
			e.logger.Error("finalize failed", append(e.attrs(rc, e.finalize.Name()), slog.String("error", res.err.Error()))...)
		} else {
			rc = res.rc
		}
	}

	e.logger.Info("pipeline finished", append(e.attrs(rc, ""),
		slog.String("status", string(rc.Status.Status)),
		slog.String("reason", string(rc.Status.Reason)),
		slog.Int("comments", len(rc.Results)),
		slog.Duration("duration", time.Since(started)))...)
	return rc
}

type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

func (e *Executor) run(ctx context.Context, stage Stage, rc RunContext) (res stageResult) {
	defer func() {
		if r := recover(); r != nil {
			pe := &panicError{value: r, stack: debug.Stack()}
			e.logger.Error("stage panicked", append(e.attrs(rc, stage.Name()), slog.String("stack", string(pe.stack)))...)
			res = stageResult{rc: rc, err: pe}
		}
	}()
	out, err := stage.Execute(ctx, rc)
	return stageResult{rc: out, err: err}
}

func (e *Executor) attrs(rc RunContext, stage string) []any {
	attrs := []any{
		slog.String("run_id", rc.RunID.String()),
		slog.String("platform", string(rc.Platform)),
		slog.String("repository", rc.Repository.FullName),
		slog.Int("pull_request", rc.prNumber()),
	}
	if stage != "" {
		attrs = append(attrs, slog.String("stage", stage))
	}
	return attrs
}
