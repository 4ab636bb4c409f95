// Package llm provides the language-model layer used by the analysis agents.
//
// A Provider turns a prompt into completed text. The package ships an
// Anthropic-backed provider (direct API or AWS Bedrock) plus a fallback
// chain that tries providers in order until one answers.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoProviders is returned when a chain is asked to complete a request
// but has no providers configured.
var ErrNoProviders = errors.New("llm: no providers configured")

// Request describes a single completion call.
type Request struct {
	// System is the system prompt. Optional.
	System string
	// Prompt is the user prompt.
	Prompt string
	// MaxTokens caps the response length. Zero means the provider default.
	MaxTokens int64
}

// Response is the text produced by a provider.
type Response struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Provider completes prompts.
type Provider interface {
	// Name identifies the provider for logging and error reporting.
	Name() string
	// Complete runs a single prompt to completion.
	Complete(ctx context.Context, req Request) (Response, error)
}

// Chain tries providers in order until one succeeds. Errors from earlier
// providers are collected and returned together if every provider fails.
type Chain struct {
	providers []Provider
}

// NewChain creates a fallback chain over the given providers.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Name returns a label describing the chain members.
func (c *Chain) Name() string {
	if len(c.providers) == 0 {
		return "chain(empty)"
	}
	name := "chain(" + c.providers[0].Name()
	for _, p := range c.providers[1:] {
		name += "," + p.Name()
	}
	return name + ")"
}

// Complete runs the request against each provider in turn. A provider
// error falls through to the next provider; a context cancellation stops
// the chain immediately.
func (c *Chain) Complete(ctx context.Context, req Request) (Response, error) {
	if len(c.providers) == 0 {
		return Response{}, ErrNoProviders
	}

	var errs []error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}

		resp, err := p.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}

	return Response{}, fmt.Errorf("llm: all providers failed: %w", errors.Join(errs...))
}
