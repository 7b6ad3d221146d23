package view

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vendshop/aiadvent/internal/executor"
	"github.com/vendshop/aiadvent/internal/llm"
	"github.com/vendshop/aiadvent/internal/models"
	"github.com/vendshop/aiadvent/internal/orchestrator"
)

func TestSummaryRow(t *testing.T) {
	r := executor.Result{
		Text:    "4",
		Elapsed: 1500 * time.Millisecond,
		Usage:   llm.Usage{PromptTokens: 10, CompletionTokens: 5},
		Cost:    0.0000049,
	}
	assert.Equal(t, []string{"deepseek-chat", "1500", "10", "5", "0.000005", "ok"}, SummaryRow("deepseek-chat", r))

	r.Err = "API error 500"
	assert.Equal(t, "error", SummaryRow("x", r)[5])

	assert.Equal(t, "streaming", SummaryRow("x", executor.Result{Partial: true})[5])
}

func TestSummaryFollowsOrder(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)
	p.Summary(map[string]executor.Result{
		"1.2": {Text: "c"},
		"0.0": {Text: "a"},
	}, []string{"0.0", "0.7", "1.2"})

	out := buf.String()
	assert.Contains(t, out, "Slot")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("0.0")), bytes.Index(buf.Bytes(), []byte("1.2")))
	assert.NotContains(t, out, "0.7")
}

func TestSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, false).Summary(nil, []string{"a"})
	assert.Empty(t, buf.String())
}

func TestAnswersShowErrors(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)
	p.Answers(map[string]executor.Result{
		orchestrator.SlotUnrestricted: {Err: "do request: refused"},
	}, []string{orchestrator.SlotUnrestricted, orchestrator.SlotRestricted}, map[string]string{
		orchestrator.SlotUnrestricted: "Without restrictions",
	})

	out := buf.String()
	assert.Contains(t, out, "Without restrictions")
	assert.Contains(t, out, "Error: do request: refused")
	assert.NotContains(t, out, orchestrator.SlotRestricted)
}

func TestModeWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	o := orchestrator.New(nil, models.DefaultCatalog())
	s := o.State()
	p.Mode(s, orchestrator.ModeModels, o.SlotOrder(orchestrator.ModeModels), nil)
	assert.Empty(t, buf.String())

	s.Error = "pipeline step 2 (Step by step): boom"
	p.Mode(s, orchestrator.ModePipeline, nil, nil)
	assert.Equal(t, "Error: pipeline step 2 (Step by step): boom\n", buf.String())
}

func TestStatePrintsBusyAndStep(t *testing.T) {
	var buf bytes.Buffer
	s := orchestrator.State{
		Busy:          map[orchestrator.Mode]bool{orchestrator.ModePipeline: true},
		SelectedModel: models.DefaultCatalog().Default(),
		PipelineStep:  3,
		PipelineSteps: 5,
	}
	NewPrinter(&buf, false).State(s)

	out := buf.String()
	assert.Contains(t, out, "Model: deepseek-chat (weak)")
	assert.Contains(t, out, "Busy: pipeline")
	assert.Contains(t, out, "Pipeline: step 3 of 5")
}

func TestStepProgress(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, false).StepProgress(2, 5, "Step by step")
	assert.Equal(t, "[2/5] Step by step\n", buf.String())
}

func TestResolveColors(t *testing.T) {
	assert.False(t, ResolveColors(true))

	t.Setenv("NO_COLOR", "1")
	assert.False(t, ResolveColors(false))
}
