package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vendshop/aiadvent/internal/executor"
	"github.com/vendshop/aiadvent/internal/llm"
	"github.com/vendshop/aiadvent/internal/logging"
	"github.com/vendshop/aiadvent/internal/prompts"
	"github.com/vendshop/aiadvent/internal/request"
)

// Pipeline step names, which double as slot keys.
const (
	StepDirect    = "direct"
	StepByStep    = "step_by_step"
	StepAuthored  = "authored_prompt"
	StepExperts   = "experts"
	StepSynthesis = "synthesis"
)

// StepOutput is the settled text of an earlier step.
type StepOutput struct {
	Name  string
	Title string
	Text  string
}

// Step describes one stage of the reasoning pipeline.
//
// Prompt builds the first call from the task and the outputs of the steps
// before it. When Chain is set its result is fed into a second call, and Join
// merges both texts into the step's result.
type Step struct {
	Name   string
	Title  string
	Prompt func(task string, prior []StepOutput) string
	Chain  func(first string) string
	Join   func(first, second string) string
}

func (s Step) chained() bool {
	return s.Chain != nil
}

// DefaultSteps returns the five reasoning strategies compared by the pipeline.
func DefaultSteps() []Step {
	return []Step{
		{
			Name:   StepDirect,
			Title:  "Direct answer",
			Prompt: func(task string, _ []StepOutput) string { return task },
		},
		{
			Name:   StepByStep,
			Title:  "Step by step",
			Prompt: func(task string, _ []StepOutput) string { return prompts.StepByStep(task) },
		},
		{
			Name:   StepAuthored,
			Title:  "Authored prompt",
			Prompt: func(task string, _ []StepOutput) string { return prompts.AuthorPrompt(task) },
			Chain:  func(authored string) string { return authored },
			Join:   prompts.JoinAuthored,
		},
		{
			Name:   StepExperts,
			Title:  "Expert panel",
			Prompt: func(task string, _ []StepOutput) string { return prompts.Experts(task) },
		},
		{
			Name:  StepSynthesis,
			Title: "Synthesis",
			Prompt: func(task string, prior []StepOutput) string {
				candidates := make([]prompts.Candidate, 0, len(prior))
				for _, p := range prior {
					candidates = append(candidates, prompts.Candidate{Title: p.Title, Text: p.Text})
				}
				return prompts.Synthesis(task, candidates)
			},
		},
	}
}

// RunPipeline answers the fixed task through every step in order. Each step
// streams into its own slot. The first failing step aborts the rest, sets
// State.Error and resets the step counter.
func (o *Orchestrator) RunPipeline(ctx context.Context) error {
	ctx, release, err := o.start(ctx, ModePipeline, o.task)
	if err != nil {
		return err
	}
	defer release()

	sel := o.State().SelectedModel
	logger := logging.FromContext(ctx)

	prior := make([]StepOutput, 0, len(o.steps))
	for i, step := range o.steps {
		o.update(func(s State) State {
			s.PipelineStep = i + 1
			return s
		})

		r := o.runStep(ctx, step, sel.ID, sel.Temperature, prior)

		if r.Failed() {
			logger.Warn("pipeline aborted", zap.String("step", step.Name), zap.String("error", r.Err))
			msg := fmt.Sprintf("pipeline step %d (%s): %s", i+1, step.Title, r.Err)
			o.update(func(s State) State {
				s = s.withSlot(ModePipeline, step.Name, r)
				s.PipelineStep = 0
				s.Error = msg
				return s.withBusy(ModePipeline, false)
			})
			return nil
		}

		o.update(func(s State) State { return s.withSlot(ModePipeline, step.Name, r) })
		prior = append(prior, StepOutput{Name: step.Name, Title: step.Title, Text: r.Text})
	}

	o.update(func(s State) State {
		s.PipelineStep = 0
		return s.withBusy(ModePipeline, false)
	})
	return nil
}

// runStep runs one step, publishing partial text into its slot while it streams.
// A chained step reports the summed elapsed time, usage and cost of both calls.
func (o *Orchestrator) runStep(ctx context.Context, step Step, model string, temperature float64, prior []StepOutput) executor.Result {
	ctx = logging.WithFields(ctx, zap.String("step", step.Name))
	call := func(prompt string, progress func(string) string) executor.Result {
		b := branch{
			key:    step.Name,
			source: step.Name,
			req: request.Build(prompt, request.Params{
				Model:       model,
				Temperature: temperature,
				Stream:      true,
			}),
		}
		return o.runBranch(ctx, ModePipeline, b, func(text string) {
			shown := progress(text)
			o.update(func(s State) State {
				return s.withSlot(ModePipeline, step.Name, partial(step.Name, shown))
			})
		})
	}
	identity := func(text string) string { return text }

	first := call(step.Prompt(o.task, prior), identity)
	if !step.chained() || first.Failed() {
		return first
	}

	join := step.Join
	if join == nil {
		join = func(_, second string) string { return second }
	}
	second := call(step.Chain(first.Text), func(text string) string { return join(first.Text, text) })

	return executor.Result{
		Source:  step.Name,
		Text:    join(first.Text, second.Text),
		Elapsed: first.Elapsed + second.Elapsed,
		Usage:   addUsage(first.Usage, second.Usage),
		Cost:    first.Cost + second.Cost,
		Err:     second.Err,
	}
}

func addUsage(a, b llm.Usage) llm.Usage {
	return llm.Usage{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
	}
}
