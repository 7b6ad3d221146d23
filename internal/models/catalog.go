package models

import "fmt"

// Tier ranks a model by capability.
type Tier string

const (
	TierWeak   Tier = "weak"
	TierStrong Tier = "strong"
)

// ModelOption is a model the client is allowed to address, with its default parameters.
type ModelOption struct {
	ID          string
	DisplayName string
	Tier        Tier
	MaxTokens   int
	Temperature float64
}

// Catalog is an immutable, ordered set of model options.
type Catalog struct {
	options []ModelOption
}

// NewCatalog builds a catalog. IDs must be unique and the list non-empty.
func NewCatalog(options ...ModelOption) (*Catalog, error) {
	if len(options) == 0 {
		return nil, fmt.Errorf("catalog needs at least one model")
	}
	seen := make(map[string]bool, len(options))
	for _, o := range options {
		if o.ID == "" {
			return nil, fmt.Errorf("model option without id")
		}
		if seen[o.ID] {
			return nil, fmt.Errorf("duplicate model id %q", o.ID)
		}
		seen[o.ID] = true
	}
	return &Catalog{options: append([]ModelOption(nil), options...)}, nil
}

// DefaultCatalog returns the two DeepSeek models: a cheap chat model and a reasoner.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog(
		ModelOption{
			ID:          "deepseek-chat",
			DisplayName: "Weak (deepseek-chat)",
			Tier:        TierWeak,
			MaxTokens:   256,
			Temperature: 0.5,
		},
		ModelOption{
			ID:          "deepseek-reasoner",
			DisplayName: "Strong (deepseek-reasoner)",
			Tier:        TierStrong,
			MaxTokens:   2048,
			Temperature: 0.7,
		},
	)
	return c
}

// All returns a copy of the options in catalog order.
func (c *Catalog) All() []ModelOption {
	return append([]ModelOption(nil), c.options...)
}

// Default returns the first option.
func (c *Catalog) Default() ModelOption {
	return c.options[0]
}

// Get looks up an option by id.
func (c *Catalog) Get(id string) (ModelOption, bool) {
	for _, o := range c.options {
		if o.ID == id {
			return o, true
		}
	}
	return ModelOption{}, false
}

// ByTier returns the first option of the given tier.
func (c *Catalog) ByTier(t Tier) (ModelOption, bool) {
	for _, o := range c.options {
		if o.Tier == t {
			return o, true
		}
	}
	return ModelOption{}, false
}

// Len returns the number of options.
func (c *Catalog) Len() int {
	return len(c.options)
}
