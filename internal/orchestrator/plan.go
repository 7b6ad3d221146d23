package orchestrator

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vendshop/aiadvent/internal/executor"
	"github.com/vendshop/aiadvent/internal/llm"
	"github.com/vendshop/aiadvent/internal/logging"
	"github.com/vendshop/aiadvent/internal/metrics"
)

// Strategy says how the branches of a mode are scheduled.
type Strategy int

const (
	// Sequential runs each branch after the previous one settled.
	Sequential Strategy = iota
	// Concurrent runs all branches at once and waits for every one to settle.
	Concurrent
)

func (s Strategy) String() string {
	if s == Concurrent {
		return "concurrent"
	}
	return "sequential"
}

// branch is one call of a fan-out, keyed by a stable slot key.
type branch struct {
	key    string
	source string
	req    llm.ChatCompletionRequest
}

// plan describes a mode's fan-out.
type plan struct {
	mode     Mode
	strategy Strategy
	// publishEach publishes every slot as soon as it settles (Sequential only).
	publishEach bool
	// stopOnError skips the remaining branches after a failure (Sequential only).
	stopOnError bool
}

// runPlan runs branches and returns their results keyed by slot key.
// Branch failures never abort a Concurrent plan.
func (o *Orchestrator) runPlan(ctx context.Context, p plan, branches []branch) map[string]executor.Result {
	results := make(map[string]executor.Result, len(branches))
	ctx = logging.WithFields(ctx, zap.Stringer("strategy", p.strategy))
	logging.FromContext(ctx).Debug("plan started", zap.Int("branches", len(branches)))

	if p.strategy == Concurrent {
		var (
			mu sync.Mutex
			g  errgroup.Group
		)
		for _, b := range branches {
			g.Go(func() error {
				r := o.runBranch(ctx, p.mode, b, nil)
				mu.Lock()
				results[b.key] = r
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
		return results
	}

	for _, b := range branches {
		r := o.runBranch(ctx, p.mode, b, nil)
		results[b.key] = r
		if p.publishEach {
			o.update(func(s State) State { return s.withSlot(p.mode, b.key, r) })
		}
		if r.Failed() && p.stopOnError {
			logging.FromContext(ctx).Info("stopping after failed branch", zap.String("branch", b.key))
			break
		}
	}
	return results
}

func (o *Orchestrator) runBranch(ctx context.Context, m Mode, b branch, onProgress executor.ProgressFunc) executor.Result {
	r := o.runner.Execute(ctx, b.source, b.req, onProgress)
	o.metrics.ObserveBranch(metrics.Branch{
		Mode:             string(m),
		Source:           b.source,
		Seconds:          r.Elapsed.Seconds(),
		PromptTokens:     r.Usage.PromptTokens,
		CompletionTokens: r.Usage.CompletionTokens,
		CostUSD:          r.Cost,
		Failed:           r.Failed(),
	})
	logging.FromContext(ctx).Debug("branch settled",
		zap.String("branch", b.key),
		zap.String("source", b.source),
		zap.Int64("elapsed_ms", r.ElapsedMillis()),
		zap.Bool("failed", r.Failed()),
	)
	return r
}
