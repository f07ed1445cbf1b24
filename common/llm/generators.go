package llm

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownProvider       = errors.New("unknown llm provider")
	ErrProviderNotConfigured = errors.New("llm provider not configured")
)

// Generators holds one generator per configured provider. A nil *Generators
// has no providers.
type Generators struct {
	fallback string
	byName   map[string]Generator
}

// NewGenerators serves requests that name no provider with fallback.
// Nil generators in byName are skipped.
func NewGenerators(fallback string, byName map[string]Generator) *Generators {
	g := &Generators{fallback: fallback, byName: make(map[string]Generator, len(byName))}
	for name, gen := range byName {
		if gen != nil {
			g.byName[name] = gen
		}
	}
	return g
}

// Get returns the generator of provider, or the default one when provider is empty.
func (g *Generators) Get(provider string) (Generator, error) {
	provider = g.Resolve(provider)
	if provider == "" {
		return nil, ErrProviderNotConfigured
	}
	if provider != ProviderOpenAI && provider != ProviderAnthropic {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	if g == nil {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, provider)
	}
	gen, ok := g.byName[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, provider)
	}
	return gen, nil
}

// Resolve names the provider a request for provider is served by.
func (g *Generators) Resolve(provider string) string {
	if provider == "" && g != nil {
		return g.fallback
	}
	return provider
}

// Default returns the generator used when no provider is named, or nil.
func (g *Generators) Default() Generator {
	gen, _ := g.Get("")
	return gen
}

// Providers lists the configured provider names in order.
func (g *Generators) Providers() []string {
	if g == nil {
		return []string{}
	}
	names := make([]string, 0, len(g.byName))
	for name := range g.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
