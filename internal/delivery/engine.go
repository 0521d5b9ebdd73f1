// Package delivery posts prioritized suggestions as inline review comments,
// retrying with adjusted line geometry and substituting same-severity
// fallbacks when a suggestion cannot be placed.
package delivery

import (
	"context"
	"log/slog"
	"time"

	"github.com/maraichr/reviewgate/internal/platform"
	"github.com/maraichr/reviewgate/internal/prioritize"
	"github.com/maraichr/reviewgate/pkg/models"
)

const (
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultCallTimeout = 30 * time.Second
)

// Target is the pull request comments are posted to.
type Target struct {
	Repository  models.Repository
	PullRequest models.PullRequest
}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Engine posts suggestions as line comments and substitutes fallbacks for
// those that cannot be delivered.
type Engine struct {
	poster      platform.CommentPoster
	logger      *slog.Logger
	retryDelay  time.Duration
	callTimeout time.Duration
	wait        WaitFunc
	format      func(models.CodeSuggestion) string
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetryDelay sets the wait before a transient failure is retried.
func WithRetryDelay(d time.Duration) Option { return func(e *Engine) { e.retryDelay = d } }

// WithCallTimeout bounds each platform call.
func WithCallTimeout(d time.Duration) Option { return func(e *Engine) { e.callTimeout = d } }

// WithWait replaces the retry sleep, mainly for tests.
func WithWait(w WaitFunc) Option { return func(e *Engine) { e.wait = w } }

// WithBodyFormatter overrides how a suggestion is rendered as a comment body.
func WithBodyFormatter(f func(models.CodeSuggestion) string) Option {
	return func(e *Engine) { e.format = f }
}

// NewEngine returns an Engine that delivers through poster.
func NewEngine(poster platform.CommentPoster, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		poster:      poster,
		logger:      logger,
		retryDelay:  DefaultRetryDelay,
		callTimeout: DefaultCallTimeout,
		wait:        sleep,
		format:      FormatBody,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// attemptOutcome is the end of one suggestion's state machine.
type attemptOutcome struct {
	ref      platform.CommentRef
	geometry Geometry
	sent     bool
	class    platform.Class
	err      error
	// exhausted is set when every geometry variant was tried, which is the
	// only case that allows fallback substitution.
	exhausted bool
}

// CreateLineComments delivers suggestions in order. The output holds one
// result per attempted suggestion, original or fallback, in the order they
// were attempted; an original superseded by a fallback is REPLACED and is
// immediately followed by its substitute.
func (e *Engine) CreateLineComments(ctx context.Context, target Target, suggestions []models.CodeSuggestion, pool *prioritize.FallbackPool) []models.CommentResult {
	results := make([]models.CommentResult, 0, len(suggestions))
	for _, s := range suggestions {
		results = append(results, e.deliverWithFallback(ctx, target, s, pool)...)
	}
	return results
}

func (e *Engine) deliverWithFallback(ctx context.Context, target Target, s models.CodeSuggestion, pool *prioritize.FallbackPool) []models.CommentResult {
	out := e.deliver(ctx, target, s)
	if out.sent {
		return []models.CommentResult{e.result(target, s, out, models.DeliverySent)}
	}
	if !out.exhausted {
		return []models.CommentResult{e.result(target, s, out, models.DeliveryFailed)}
	}

	var substitutes []models.CommentResult
	for {
		fb, ok := pool.Next(s.Severity)
		if !ok {
			break
		}
		e.logger.Info("substituting fallback suggestion",
			slog.String("suggestion_id", s.ID),
			slog.String("fallback_id", fb.ID),
			slog.String("severity", string(fb.Severity)))

		fbOut := e.deliver(ctx, target, fb)
		if fbOut.sent {
			replaced := e.result(target, s, out, models.DeliveryReplaced)
			return append([]models.CommentResult{replaced}, append(substitutes, e.result(target, fb, fbOut, models.DeliverySent))...)
		}
		substitutes = append(substitutes, e.result(target, fb, fbOut, failureStatus(fbOut.class)))
		if fbOut.class == platform.ClassDefinitive || ctx.Err() != nil {
			break
		}
	}

	return append([]models.CommentResult{e.result(target, s, out, failureStatus(out.class))}, substitutes...)
}

// deliver runs the geometry state machine for one suggestion.
func (e *Engine) deliver(ctx context.Context, target Target, s models.CodeSuggestion) attemptOutcome {
	body := e.format(s)
	var last attemptOutcome

	for state := stateOriginal; state != stateExhausted; {
		geom, _ := state.geometry(s)
		last = e.attempt(ctx, target, s, body, geom, state)
		if last.sent {
			return last
		}

		switch last.class {
		case platform.ClassLineMismatch, platform.ClassTransient:
			state = state.next()
		default:
			return last
		}
		if ctx.Err() != nil {
			last.err = ctx.Err()
			return last
		}
	}

	last.exhausted = true
	return last
}

// attempt posts at one geometry. A transient failure is retried once at the
// same geometry after the retry delay.
func (e *Engine) attempt(ctx context.Context, target Target, s models.CodeSuggestion, body string, geom Geometry, state attemptState) attemptOutcome {
	ref, err := e.post(ctx, target, s, body, geom)
	if err == nil {
		return attemptOutcome{ref: ref, geometry: geom, sent: true}
	}

	class := platform.Classify(err)
	e.logAttempt(s, geom, state, class, err)

	if class == platform.ClassTransient {
		if werr := e.wait(ctx, e.retryDelay); werr != nil {
			return attemptOutcome{geometry: geom, class: class, err: err}
		}
		ref, err = e.post(ctx, target, s, body, geom)
		if err == nil {
			return attemptOutcome{ref: ref, geometry: geom, sent: true}
		}
		class = platform.Classify(err)
		e.logAttempt(s, geom, state, class, err)
	}
	return attemptOutcome{geometry: geom, class: class, err: err}
}

func (e *Engine) post(ctx context.Context, target Target, s models.CodeSuggestion, body string, geom Geometry) (platform.CommentRef, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.poster.CreateComment(callCtx, platform.CommentRequest{
		Repository:  target.Repository,
		PullRequest: target.PullRequest,
		Path:        s.RelevantFile,
		Body:        body,
		StartLine:   geom.Start,
		Line:        geom.Line,
		Side:        platform.SideRight,
	})
}

func (e *Engine) logAttempt(s models.CodeSuggestion, geom Geometry, state attemptState, class platform.Class, err error) {
	e.logger.Warn("comment attempt failed",
		slog.String("suggestion_id", s.ID),
		slog.String("path", s.RelevantFile),
		slog.String("lines", geom.String()),
		slog.String("attempt", state.String()),
		slog.String("class", class.String()),
		slog.String("error", err.Error()))
}

func (e *Engine) result(target Target, s models.CodeSuggestion, out attemptOutcome, status models.DeliveryStatus) models.CommentResult {
	r := models.CommentResult{
		Path:           s.RelevantFile,
		Body:           e.format(s),
		StartLine:      out.geometry.StartPtr(),
		Line:           out.geometry.Line,
		DeliveryStatus: status,
		Suggestion:     s,
	}
	if out.sent {
		r.CodeReviewFeedbackData = &models.CodeReviewFeedbackData{
			CommentID:     out.ref.ID,
			ReviewID:      out.ref.ReviewID,
			PullRequestID: target.PullRequest.ID,
		}
	}
	if out.err != nil {
		r.Error = out.err.Error()
	}
	return r
}

func failureStatus(c platform.Class) models.DeliveryStatus {
	switch c {
	case platform.ClassLineMismatch:
		return models.DeliveryFailedLineMismatch
	case platform.ClassTransient:
		return models.DeliveryFailedTransient
	}
	return models.DeliveryFailed
}
