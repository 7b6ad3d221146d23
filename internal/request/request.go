// Package request builds chat completion requests for the comparison modes.
// Builders are pure: every call allocates fresh message and stop slices.
package request

import (
	"github.com/vendshop/aiadvent/internal/llm"
	"github.com/vendshop/aiadvent/internal/models"
	"github.com/vendshop/aiadvent/internal/prompts"
)

// RestrictedMaxTokens caps the length of restricted answers.
const RestrictedMaxTokens = 150

// DefaultTemperature is used when a mode has no model-specific temperature.
const DefaultTemperature = 0.7

// Params are the mode-specific knobs of a request.
type Params struct {
	Model       string
	Temperature float64
	Stream      bool
	MaxTokens   int
	Stop        []string
	System      string
	Format      llm.ResponseFormatType
}

// Build returns a request for prompt. A non-empty System becomes a leading system message.
func Build(prompt string, p Params) llm.ChatCompletionRequest {
	msgs := make([]llm.ChatMessage, 0, 2)
	if p.System != "" {
		msgs = append(msgs, llm.ChatMessage{Role: llm.RoleSystem, Content: p.System})
	}
	msgs = append(msgs, llm.ChatMessage{Role: llm.RoleUser, Content: prompt})

	req := llm.ChatCompletionRequest{
		Model:       p.Model,
		Messages:    msgs,
		Temperature: p.Temperature,
		Stream:      p.Stream,
		MaxTokens:   p.MaxTokens,
	}
	if len(p.Stop) > 0 {
		req.Stop = append([]string(nil), p.Stop...)
	}
	if p.Format != "" {
		req.ResponseFormat = &llm.ResponseFormat{Type: p.Format}
	}
	return req
}

// ForModel uses the model's default output cap and temperature.
func ForModel(prompt string, opt models.ModelOption, stream bool) llm.ChatCompletionRequest {
	return Build(prompt, Params{
		Model:       opt.ID,
		Temperature: opt.Temperature,
		Stream:      stream,
		MaxTokens:   opt.MaxTokens,
	})
}

// ForTemperature is ForModel with the temperature overridden.
func ForTemperature(prompt string, opt models.ModelOption, temperature float64, stream bool) llm.ChatCompletionRequest {
	return Build(prompt, Params{
		Model:       opt.ID,
		Temperature: temperature,
		Stream:      stream,
		MaxTokens:   opt.MaxTokens,
	})
}

// ForRestriction builds one side of the restriction comparison. Restricted
// requests carry the brevity instruction, a token cap and the termination
// marker as stop sequence; unrestricted ones carry only the user message.
func ForRestriction(prompt, model string, restricted bool, temperature float64) llm.ChatCompletionRequest {
	p := Params{
		Model:       model,
		Temperature: temperature,
		Stream:      true,
	}
	if restricted {
		p.System = prompts.RestrictionInstruction
		p.MaxTokens = RestrictedMaxTokens
		p.Stop = []string{prompts.TerminationMarker}
	}
	return Build(prompt, p)
}
