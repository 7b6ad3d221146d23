// Package chat runs the interactive REPL on top of the orchestrator.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/vendshop/aiadvent/internal/commands"
	"github.com/vendshop/aiadvent/internal/config"
	"github.com/vendshop/aiadvent/internal/cost"
	"github.com/vendshop/aiadvent/internal/models"
	"github.com/vendshop/aiadvent/internal/orchestrator"
	"github.com/vendshop/aiadvent/internal/render"
	"github.com/vendshop/aiadvent/internal/request"
	"github.com/vendshop/aiadvent/internal/view"
)

// InputReader reads a line of user input. Returns the line and any error (io.EOF on end).
type InputReader func(prompt string) (string, error)

// Session owns the REPL: it sends plain input in the current mode and
// prints the orchestrator's published state.
type Session struct {
	cfg      *config.Config
	orch     *orchestrator.Orchestrator
	modelMgr *models.Manager
	renderer *render.Renderer
	printer  *view.Printer
	live     *render.Typewriter
	cmdReg   *commands.Registry
	writer   io.Writer

	mu       sync.Mutex
	mode     orchestrator.Mode
	lastStep int
	ctx      context.Context
}

// NewSession creates a session over orch. modelMgr may be nil.
func NewSession(cfg *config.Config, orch *orchestrator.Orchestrator, modelMgr *models.Manager, w io.Writer) (*Session, error) {
	if w == nil {
		w = os.Stdout
	}
	mode, err := orchestrator.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	useColor := view.ResolveColors(cfg.NoColor)
	r, err := render.NewRenderer(w, render.WithPlain(!useColor))
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	s := &Session{
		cfg:      cfg,
		orch:     orch,
		modelMgr: modelMgr,
		renderer: r,
		printer:  view.NewPrinter(w, useColor),
		live:     render.NewTypewriter(w),
		writer:   w,
		mode:     mode,
		ctx:      context.Background(),
	}

	reg := commands.NewRegistry()
	commands.RegisterDefaults(reg, commands.Callbacks{
		OnMode:      s.switchMode,
		OnModel:     s.switchModel,
		OnAvailable: s.showAvailable,
		OnPipeline:  s.runPipeline,
		OnState:     s.showState,
		OnConfig:    s.showConfig,
	})
	s.cmdReg = reg

	return s, nil
}

// Mode returns the current send mode.
func (s *Session) Mode() orchestrator.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Run starts the main loop using the provided input reader. It returns
// when the input ends, on /quit, or when ctx is cancelled.
func (s *Session) Run(ctx context.Context, readInput InputReader) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	unsubscribe := s.orch.Subscribe(s.onState)
	defer unsubscribe()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		input, err := readInput(s.prompt())
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if output, isCmd := s.cmdReg.Execute(input); isCmd {
			if output == commands.Quit {
				return nil
			}
			if output != "" {
				fmt.Fprintln(s.writer, output)
			}
			continue
		}

		s.send(ctx, input, s.Mode())
	}
}

func (s *Session) prompt() string {
	return fmt.Sprintf("%s> ", s.Mode())
}

func (s *Session) send(ctx context.Context, input string, m orchestrator.Mode) {
	s.mu.Lock()
	s.lastStep = 0
	s.mu.Unlock()

	if err := s.orch.Send(ctx, input, m); err != nil {
		s.printer.Error(err.Error())
		return
	}
	streamed := s.live.Finish()
	s.show(m, streamed)
}

// onState receives every published snapshot. It types single-mode text as it
// streams and announces pipeline steps.
func (s *Session) onState(st orchestrator.State) {
	if st.IsBusy(orchestrator.ModeSingle) && st.SingleText != "" {
		s.live.Update(st.SingleText)
	}
	if !st.IsBusy(orchestrator.ModePipeline) || st.PipelineStep == 0 {
		return
	}

	s.mu.Lock()
	changed := st.PipelineStep != s.lastStep
	s.lastStep = st.PipelineStep
	s.mu.Unlock()

	if changed {
		steps := s.orch.Steps()
		title := ""
		if i := st.PipelineStep - 1; i < len(steps) {
			title = steps[i].Title
		}
		s.printer.StepProgress(st.PipelineStep, st.PipelineSteps, title)
	}
}

func (s *Session) show(m orchestrator.Mode, streamed bool) {
	st := s.orch.State()
	if m == orchestrator.ModeSingle {
		s.showSingle(st, streamed)
		return
	}
	s.printer.Mode(st, m, s.orch.SlotOrder(m), s.titles(m))
}

func (s *Session) showSingle(st orchestrator.State, streamed bool) {
	if st.Error != "" {
		s.printer.Error(st.Error)
		return
	}
	if !streamed {
		if err := s.renderer.Render(st.SingleText); err != nil {
			s.printer.Error(err.Error())
		}
	}
	r, ok := st.Slot(orchestrator.ModeSingle, st.SelectedModel.ID)
	if !ok {
		return
	}
	s.printer.Info("%s | %d ms | %d in / %d out tokens | $%.6f",
		r.Source, r.ElapsedMillis(), r.Usage.PromptTokens, r.Usage.CompletionTokens, r.Cost)
}

func (s *Session) titles(m orchestrator.Mode) map[string]string {
	titles := make(map[string]string)
	switch m {
	case orchestrator.ModeRestriction:
		titles[orchestrator.SlotUnrestricted] = "Without restrictions"
		titles[orchestrator.SlotRestricted] = fmt.Sprintf("With restrictions (max %d tokens)", request.RestrictedMaxTokens)
	case orchestrator.ModeModels:
		for _, opt := range s.orch.Catalog().All() {
			titles[opt.ID] = opt.DisplayName
		}
	case orchestrator.ModeSweep:
		for _, key := range s.orch.SlotOrder(m) {
			titles[key] = "Temperature " + key
		}
	case orchestrator.ModePipeline:
		for i, step := range s.orch.Steps() {
			titles[step.Name] = fmt.Sprintf("%d. %s", i+1, step.Title)
		}
	}
	return titles
}

func (s *Session) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Session) switchMode(args string) string {
	if args == "" {
		names := make([]string, 0, len(orchestrator.Modes))
		for _, m := range orchestrator.Modes {
			names = append(names, string(m))
		}
		return fmt.Sprintf("Mode: %s (available: %s)", s.Mode(), strings.Join(names, ", "))
	}
	m, err := orchestrator.ParseMode(args)
	if err != nil {
		return err.Error()
	}
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
	return fmt.Sprintf("Switched to mode: %s", m)
}

func (s *Session) switchModel(args string) string {
	selected := s.orch.State().SelectedModel
	if args == "" {
		var sb strings.Builder
		sb.WriteString("Models:\n")
		for _, opt := range s.orch.Catalog().All() {
			marker := "  "
			if opt.ID == selected.ID {
				marker = "* "
			}
			sb.WriteString(fmt.Sprintf("%s%s - %s, max %d tokens, temperature %.1f\n",
				marker, opt.ID, opt.DisplayName, opt.MaxTokens, opt.Temperature))
		}
		return strings.TrimRight(sb.String(), "\n")
	}

	if err := s.orch.SelectModel(args); err != nil {
		return err.Error()
	}
	s.cfg.Model = args
	msg := fmt.Sprintf("Switched to model: %s", args)
	if s.modelMgr != nil {
		if ok, err := s.modelMgr.Has(s.runContext(), args); err == nil && !ok {
			msg += " (not listed by the service)"
		}
	}
	return msg
}

func (s *Session) showAvailable() string {
	if s.modelMgr != nil {
		s.modelMgr.Invalidate()
	}
	s.orch.LoadAvailableModels(s.runContext())
	ids := s.orch.State().AvailableModelIDs
	if len(ids) == 0 {
		return "No models available."
	}
	return "Available models:\n  " + strings.Join(ids, "\n  ")
}

func (s *Session) runPipeline() string {
	s.send(s.runContext(), "", orchestrator.ModePipeline)
	return ""
}

func (s *Session) showState() string {
	s.printer.State(s.orch.State())
	return ""
}

func (s *Session) showConfig() string {
	return fmt.Sprintf("Model: %s\nAPI Base: %s\nAPI Key: %s\nMode: %s\nStream: %v\nTimeout: %s\nPricing: $%.2f in / $%.2f out per 1M tokens",
		s.cfg.Model, s.cfg.APIBase, maskKey(s.cfg.APIKey), s.Mode(), s.cfg.Stream, s.cfg.Timeout,
		cost.DefaultPricing.InputPerMillion, cost.DefaultPricing.OutputPerMillion)
}

func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
