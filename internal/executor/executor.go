// Package executor runs a single chat completion call, streaming or buffered,
// and reduces it to a Result. Failures never escape as errors: they are
// carried in Result.Err so that sibling branches stay isolated.
package executor

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vendshop/aiadvent/internal/cost"
	"github.com/vendshop/aiadvent/internal/llm"
)

// TracerName is the instrumentation name of the per-call spans.
const TracerName = "github.com/vendshop/aiadvent/internal/executor"

// Transport submits chat requests. *llm.Client implements it.
type Transport interface {
	Complete(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error)
	Stream(ctx context.Context, req *llm.ChatCompletionRequest) (io.ReadCloser, error)
}

// ProgressFunc receives the accumulated text after every streamed delta.
type ProgressFunc func(text string)

// Result is the outcome of one branch.
type Result struct {
	Source  string
	Text    string
	Elapsed time.Duration
	Usage   llm.Usage
	Cost    float64
	Err     string
	// Partial marks a live snapshot of a call that is still streaming.
	Partial bool
}

// Failed reports whether the call ended in an error.
func (r Result) Failed() bool {
	return r.Err != ""
}

// ElapsedMillis returns Elapsed in whole milliseconds.
func (r Result) ElapsedMillis() int64 {
	return r.Elapsed.Milliseconds()
}

// Executor issues calls through a Transport.
type Executor struct {
	transport Transport
	pricing   cost.Pricing
	logger    *zap.Logger
	tracer    trace.Tracer
}

// Option configures an Executor.
type Option func(*Executor)

// WithPricing overrides cost.DefaultPricing.
func WithPricing(p cost.Pricing) Option {
	return func(e *Executor) { e.pricing = p }
}

// WithLogger sets the executor logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracer sets the tracer used for per-call spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) {
		if t != nil {
			e.tracer = t
		}
	}
}

// New creates an Executor.
func New(t Transport, opts ...Option) *Executor {
	e := &Executor{
		transport: t,
		pricing:   cost.DefaultPricing,
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("executor")
	return e
}

// Execute performs req and returns its result. Streaming requests report
// progress through onProgress, which may be nil; it runs on the calling
// goroutine between reads.
func (e *Executor) Execute(ctx context.Context, source string, req llm.ChatCompletionRequest, onProgress ProgressFunc) Result {
	ctx, span := e.tracer.Start(ctx, "chat.completion", trace.WithAttributes(
		attribute.String("llm.source", source),
		attribute.String("llm.model", req.Model),
		attribute.Bool("llm.stream", req.Stream),
		attribute.Float64("llm.temperature", req.Temperature),
	))
	defer span.End()

	start := time.Now()
	var res Result
	if req.Stream {
		res = e.stream(ctx, &req, onProgress)
	} else {
		res = e.complete(ctx, &req)
	}
	res.Source = source
	res.Elapsed = time.Since(start)
	res.Cost = e.pricing.EstimateUsage(res.Usage)

	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", res.Usage.PromptTokens),
		attribute.Int("llm.completion_tokens", res.Usage.CompletionTokens),
	)
	if res.Failed() {
		span.SetStatus(codes.Error, res.Err)
		e.logger.Warn("call failed",
			zap.String("source", source),
			zap.String("model", req.Model),
			zap.Duration("elapsed", res.Elapsed),
			zap.String("error", res.Err),
		)
	} else {
		e.logger.Debug("call completed",
			zap.String("source", source),
			zap.String("model", req.Model),
			zap.Duration("elapsed", res.Elapsed),
			zap.Int("chars", len(res.Text)),
			zap.Int("total_tokens", res.Usage.TotalTokens),
		)
	}
	return res
}

func (e *Executor) complete(ctx context.Context, req *llm.ChatCompletionRequest) Result {
	resp, err := e.transport.Complete(ctx, req)
	if err != nil {
		return Result{Err: err.Error()}
	}
	res := Result{Text: resp.FirstContent()}
	if resp.Usage != nil {
		res.Usage = *resp.Usage
	}
	return res
}

func (e *Executor) stream(ctx context.Context, req *llm.ChatCompletionRequest, onProgress ProgressFunc) Result {
	body, err := e.transport.Stream(ctx, req)
	if err != nil {
		return Result{Err: err.Error()}
	}
	dec := llm.NewDecoder(body)
	defer dec.Close()

	var acc []byte
	for delta := range dec.Deltas() {
		acc = append(acc, delta...)
		if onProgress != nil {
			onProgress(string(acc))
		}
	}
	if err := dec.Err(); err != nil {
		return Result{Err: "read stream: " + err.Error()}
	}

	res := Result{Text: string(acc)}
	if usage, ok := dec.Usage(); ok {
		res.Usage = usage
	}
	return res
}
