// Package orchestrator drives the send modes: it builds one request per
// branch, runs the branches sequentially or concurrently, and publishes the
// merged results as immutable State snapshots.
//
// At most one send per mode may be in flight. A second send for a busy mode
// is rejected with ErrBusy; there is no mid-flight abort. The context passed
// to a send reaches the transport, so cancelling it (e.g. on shutdown) ends
// in-flight calls, which then settle as failed branches.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vendshop/aiadvent/internal/executor"
	"github.com/vendshop/aiadvent/internal/llm"
	"github.com/vendshop/aiadvent/internal/logging"
	"github.com/vendshop/aiadvent/internal/metrics"
	"github.com/vendshop/aiadvent/internal/models"
	"github.com/vendshop/aiadvent/internal/prompts"
	"github.com/vendshop/aiadvent/internal/state"
)

var (
	ErrBusy         = errors.New("a send for this mode is already in progress")
	ErrEmptyPrompt  = errors.New("prompt is empty")
	ErrClosed       = errors.New("orchestrator is closed")
	ErrUnknownModel = errors.New("unknown model")
	ErrUnknownMode  = errors.New("unknown mode")
)

// DefaultTemperatures are the sweep temperatures.
var DefaultTemperatures = []float64{0.0, 0.7, 1.2}

// Runner executes one call. *executor.Executor implements it.
type Runner interface {
	Execute(ctx context.Context, source string, req llm.ChatCompletionRequest, onProgress executor.ProgressFunc) executor.Result
}

// ModelLister returns the model ids the service exposes. *models.Manager implements it.
type ModelLister interface {
	IDs(ctx context.Context) ([]string, error)
}

// Orchestrator is the single writer of State.
type Orchestrator struct {
	runner  Runner
	catalog *models.Catalog
	store   *state.Store[State]
	logger  *zap.Logger
	metrics *metrics.Metrics
	lister  ModelLister

	temperatures     []float64
	steps            []Step
	task             string
	restrictionModel string
	streamSingle     bool

	mu       sync.Mutex
	inflight map[Mode]bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records every settled branch.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithModelLister sets the source for LoadAvailableModels.
func WithModelLister(l ModelLister) Option {
	return func(o *Orchestrator) { o.lister = l }
}

// WithTemperatures overrides DefaultTemperatures.
func WithTemperatures(ts ...float64) Option {
	return func(o *Orchestrator) {
		if len(ts) > 0 {
			o.temperatures = append([]float64(nil), ts...)
		}
	}
}

// WithSteps overrides the reasoning pipeline steps.
func WithSteps(steps ...Step) Option {
	return func(o *Orchestrator) {
		if len(steps) > 0 {
			o.steps = append([]Step(nil), steps...)
		}
	}
}

// WithPipelineTask overrides prompts.DiagnosticTask.
func WithPipelineTask(task string) Option {
	return func(o *Orchestrator) {
		if task != "" {
			o.task = task
		}
	}
}

// WithRestrictionModel sets the model used by the restriction comparison.
func WithRestrictionModel(id string) Option {
	return func(o *Orchestrator) {
		if id != "" {
			o.restrictionModel = id
		}
	}
}

// WithSingleStreaming toggles streaming for single mode (on by default).
func WithSingleStreaming(stream bool) Option {
	return func(o *Orchestrator) { o.streamSingle = stream }
}

// New creates an Orchestrator over catalog. The restriction comparison
// defaults to the catalog's weak model.
func New(runner Runner, catalog *models.Catalog, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runner:       runner,
		catalog:      catalog,
		logger:       zap.NewNop(),
		temperatures: DefaultTemperatures,
		steps:        DefaultSteps(),
		task:         prompts.DiagnosticTask,
		streamSingle: true,
		inflight:     make(map[Mode]bool),
	}
	if weak, ok := catalog.ByTier(models.TierWeak); ok {
		o.restrictionModel = weak.ID
	} else {
		o.restrictionModel = catalog.Default().ID
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("orchestrator")
	o.store = state.NewStore(State{
		Busy:          map[Mode]bool{},
		SelectedModel: catalog.Default(),
		Branches:      map[Mode]map[string]executor.Result{},
		PipelineSteps: len(o.steps),
	})
	return o
}

// State returns the current snapshot.
func (o *Orchestrator) State() State {
	return o.store.Load()
}

// Subscribe registers fn for every published snapshot. fn runs on the
// publishing goroutine and must not call back into the Orchestrator's send methods.
func (o *Orchestrator) Subscribe(fn func(State)) func() {
	return o.store.Subscribe(fn)
}

// Catalog returns the model catalog.
func (o *Orchestrator) Catalog() *models.Catalog {
	return o.catalog
}

// SlotOrder returns the slot keys of mode in display order.
func (o *Orchestrator) SlotOrder(m Mode) []string {
	switch m {
	case ModeSingle:
		return []string{o.State().SelectedModel.ID}
	case ModeRestriction:
		return []string{SlotUnrestricted, SlotRestricted}
	case ModeModels:
		var keys []string
		for _, opt := range o.catalog.All() {
			keys = append(keys, opt.ID)
		}
		return keys
	case ModeSweep:
		keys := make([]string, 0, len(o.temperatures))
		for _, t := range o.temperatures {
			keys = append(keys, TemperatureKey(t))
		}
		return keys
	case ModePipeline:
		keys := make([]string, 0, len(o.steps))
		for _, s := range o.steps {
			keys = append(keys, s.Name)
		}
		return keys
	}
	return nil
}

// Steps returns the pipeline steps.
func (o *Orchestrator) Steps() []Step {
	return append([]Step(nil), o.steps...)
}

// SelectModel picks the catalog model used by single mode, the sweep and the pipeline.
func (o *Orchestrator) SelectModel(id string) error {
	if o.isClosed() {
		return ErrClosed
	}
	opt, ok := o.catalog.Get(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	o.update(func(s State) State {
		s.SelectedModel = opt
		return s
	})
	return nil
}

// LoadAvailableModels fetches the service's model ids into State.
// Failures are logged and otherwise ignored.
func (o *Orchestrator) LoadAvailableModels(ctx context.Context) {
	if o.lister == nil {
		return
	}
	ids, err := o.lister.IDs(ctx)
	if err != nil {
		o.logger.Info("model list unavailable", zap.Error(err))
		return
	}
	o.update(func(s State) State {
		s.AvailableModelIDs = append([]string(nil), ids...)
		return s
	})
}

// Send dispatches prompt to the given mode. Pipeline mode ignores prompt
// and answers its fixed task.
func (o *Orchestrator) Send(ctx context.Context, prompt string, m Mode) error {
	switch m {
	case ModeSingle:
		return o.SendSingle(ctx, prompt)
	case ModeRestriction:
		return o.CompareRestrictions(ctx, prompt)
	case ModeModels:
		return o.CompareModels(ctx, prompt)
	case ModeSweep:
		return o.SweepTemperatures(ctx, prompt)
	case ModePipeline:
		return o.RunPipeline(ctx)
	}
	return fmt.Errorf("%w: %q", ErrUnknownMode, m)
}

// Close freezes the published state. In-flight sends may finish but their
// results are no longer published.
func (o *Orchestrator) Close() {
	o.store.Freeze()
}

func (o *Orchestrator) isClosed() bool {
	return o.store.Frozen()
}

func (o *Orchestrator) update(fn func(State) State) {
	o.store.Update(fn)
}

// start claims mode, resets its part of the state and returns a context
// carrying an operation-scoped logger plus the release func.
func (o *Orchestrator) start(ctx context.Context, m Mode, question string) (context.Context, func(), error) {
	if m != ModePipeline && strings.TrimSpace(question) == "" {
		return ctx, nil, ErrEmptyPrompt
	}

	o.mu.Lock()
	switch {
	case o.isClosed():
		o.mu.Unlock()
		return ctx, nil, ErrClosed
	case o.inflight[m]:
		o.mu.Unlock()
		return ctx, nil, ErrBusy
	}
	o.inflight[m] = true
	o.mu.Unlock()

	logger := o.logger.With(zap.String("op_id", uuid.NewString()), zap.String("mode", string(m)))
	logger.Info("send started")
	ctx = logging.WithLogger(ctx, logger)

	o.update(func(s State) State { return s.begin(m, question) })

	release := func() {
		if o.State().IsBusy(m) {
			o.update(func(s State) State { return s.withBusy(m, false) })
		}
		o.mu.Lock()
		delete(o.inflight, m)
		o.mu.Unlock()
		logger.Info("send finished")
	}
	return ctx, release, nil
}
