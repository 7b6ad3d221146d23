// Package view formats orchestrator state for the terminal.
package view

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/vendshop/aiadvent/internal/executor"
	"github.com/vendshop/aiadvent/internal/orchestrator"
)

var summaryHeader = []string{"Slot", "Time ms", "Prompt tok", "Completion tok", "Cost USD", "Status"}

// Printer writes formatted results to a writer.
type Printer struct {
	out      io.Writer
	useColor bool
}

// NewPrinter creates a Printer. If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer, useColor bool) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w, useColor: useColor}
}

// ResolveColors reports whether colored output should be used.
func ResolveColors(disabled bool) bool {
	if disabled {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

func (p *Printer) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if p.useColor {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// Error prints an error line.
func (p *Printer) Error(msg string) {
	p.paint(color.FgRed, color.Bold).Fprintf(p.out, "Error: %s\n", msg)
}

// Info prints an informational line.
func (p *Printer) Info(format string, args ...any) {
	p.paint(color.FgCyan).Fprintf(p.out, format+"\n", args...)
}

// Heading prints a bold section title.
func (p *Printer) Heading(title string) {
	p.paint(color.Bold).Fprintf(p.out, "\n%s\n", title)
	fmt.Fprintln(p.out, strings.Repeat("─", len([]rune(title))))
}

// StepProgress prints the pipeline step counter, e.g. "[2/5] Step by step".
func (p *Printer) StepProgress(step, total int, title string) {
	p.paint(color.FgYellow).Fprintf(p.out, "[%d/%d] %s\n", step, total, title)
}

// Summary renders one row per slot, in order. Missing slots are skipped.
func (p *Printer) Summary(slots map[string]executor.Result, order []string) {
	var rows [][]string
	for _, key := range order {
		r, ok := slots[key]
		if !ok {
			continue
		}
		rows = append(rows, SummaryRow(key, r))
	}
	if len(rows) == 0 {
		return
	}

	table := tablewriter.NewTable(p.out,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.Off},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.On},
			},
		}),
	)
	table.Header(summaryHeader)
	_ = table.Bulk(rows)
	_ = table.Render()
}

// SummaryRow formats a result as a summary table row.
func SummaryRow(key string, r executor.Result) []string {
	status := "ok"
	switch {
	case r.Failed():
		status = "error"
	case r.Partial:
		status = "streaming"
	}
	return []string{
		key,
		strconv.FormatInt(r.ElapsedMillis(), 10),
		strconv.Itoa(r.Usage.PromptTokens),
		strconv.Itoa(r.Usage.CompletionTokens),
		fmt.Sprintf("%.6f", r.Cost),
		status,
	}
}

// Answers prints every slot's text under its own heading, in order.
func (p *Printer) Answers(slots map[string]executor.Result, order []string, titles map[string]string) {
	for _, key := range order {
		r, ok := slots[key]
		if !ok {
			continue
		}
		title := key
		if t, ok := titles[key]; ok {
			title = t
		}
		p.Heading(title)
		if r.Failed() {
			p.Error(r.Err)
			continue
		}
		fmt.Fprintln(p.out, strings.TrimRight(r.Text, "\n"))
	}
}

// Mode prints the results of mode held in s: the answers followed by the summary table.
func (p *Printer) Mode(s orchestrator.State, m orchestrator.Mode, order []string, titles map[string]string) {
	slots := s.Slots(m)
	if len(slots) == 0 {
		if s.Error != "" {
			p.Error(s.Error)
		}
		return
	}
	p.Answers(slots, order, titles)
	fmt.Fprintln(p.out)
	p.Summary(slots, order)
	if s.Error != "" {
		p.Error(s.Error)
	}
}

// State prints a short status overview.
func (p *Printer) State(s orchestrator.State) {
	fmt.Fprintf(p.out, "Model: %s (%s)\n", s.SelectedModel.ID, s.SelectedModel.Tier)
	if s.LastQuestion != "" {
		fmt.Fprintf(p.out, "Last question: %s\n", s.LastQuestion)
	}
	var busy []string
	for _, m := range orchestrator.Modes {
		if s.IsBusy(m) {
			busy = append(busy, string(m))
		}
	}
	if len(busy) > 0 {
		fmt.Fprintf(p.out, "Busy: %s\n", strings.Join(busy, ", "))
	}
	if s.PipelineStep > 0 {
		fmt.Fprintf(p.out, "Pipeline: step %d of %d\n", s.PipelineStep, s.PipelineSteps)
	}
	if s.Error != "" {
		p.Error(s.Error)
	}
}
