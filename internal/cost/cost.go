// Package cost estimates the monetary cost of a completion from its token usage.
package cost

import "github.com/vendshop/aiadvent/internal/llm"

// TokensPerUnit is the pricing unit: prices are quoted per million tokens.
const TokensPerUnit = 1_000_000

// Pricing holds USD prices per million input and output tokens.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultPricing is the DeepSeek API list price.
var DefaultPricing = Pricing{
	InputPerMillion:  0.28,
	OutputPerMillion: 0.42,
}

// Estimate returns the cost in USD of the given token counts.
func (p Pricing) Estimate(promptTokens, completionTokens int) float64 {
	return (float64(promptTokens)*p.InputPerMillion + float64(completionTokens)*p.OutputPerMillion) / TokensPerUnit
}

// EstimateUsage is Estimate applied to a usage block.
func (p Pricing) EstimateUsage(u llm.Usage) float64 {
	return p.Estimate(u.PromptTokens, u.CompletionTokens)
}

// Estimate prices token counts with DefaultPricing.
func Estimate(promptTokens, completionTokens int) float64 {
	return DefaultPricing.Estimate(promptTokens, completionTokens)
}
