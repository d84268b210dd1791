// Package dispatch turns one validated external request into one agent
// query and relays the resulting message stream.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agentgate/internal/agent"
)

// MaxPromptLength is the hard cap on a single prompt.
const MaxPromptLength = 100000

var (
	ErrEmptyPrompt           = errors.New("prompt is required")
	ErrPromptTooLong         = fmt.Errorf("prompt too long: maximum %d characters", MaxPromptLength)
	ErrModelNotAllowed       = errors.New("model not in the allowed set")
	ErrUpstreamNotConfigured = errors.New("upstream agent credential not configured")
)

// UpstreamError wraps a failure from the agent stream so callers can
// distinguish it from validation failures. The client only ever sees a
// generic message; the wrapped detail is for server-side logs.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return e.Err.Error() }
func (e *UpstreamError) Unwrap() error { return e.Err }

type Config struct {
	// UpstreamConfigured reports whether the agent credential is present.
	// Without it every turn fails validation before touching the runner.
	UpstreamConfigured bool
	DefaultModel       string
	AllowedModels      []string
}

type Dispatcher struct {
	runner agent.Runner
	cfg    Config
}

func New(runner agent.Runner, cfg Config) *Dispatcher {
	return &Dispatcher{runner: runner, cfg: cfg}
}

// Turn describes one prompt. OnText receives each assistant text block in
// order; its error aborts the remaining stream. OnResume receives the
// fresh resumption identifier as soon as the turn's init message carries
// one.
type Turn struct {
	Prompt string
	Model  string
	Resume string

	OnText   func(chunk string) error
	OnResume func(id string)
}

// AllowedModels returns the fixed model menu, for client-facing messages.
func (d *Dispatcher) AllowedModels() []string {
	return d.cfg.AllowedModels
}

// Validate applies the request checks in contract order: prompt presence,
// prompt length, upstream credential, then model membership.
func (d *Dispatcher) Validate(prompt string, model string) error {
	if prompt == "" {
		return ErrEmptyPrompt
	}
	if len(prompt) > MaxPromptLength {
		return ErrPromptTooLong
	}
	if !d.cfg.UpstreamConfigured {
		return ErrUpstreamNotConfigured
	}
	if model != "" && !d.modelAllowed(model) {
		return ErrModelNotAllowed
	}
	return nil
}

// Run validates the turn, issues exactly one agent query with an
// explicitly constructed option set, and consumes the stream to
// completion. No caller-supplied option ever reaches the agent verbatim.
func (d *Dispatcher) Run(ctx context.Context, turn Turn) error {
	if err := d.Validate(turn.Prompt, turn.Model); err != nil {
		return err
	}

	model := turn.Model
	if model == "" {
		model = d.cfg.DefaultModel
	}

	stream, err := d.runner.Query(ctx, turn.Prompt, agent.QueryOptions{
		Model:  model,
		Resume: turn.Resume,
	})
	if err != nil {
		return &UpstreamError{Err: err}
	}

	var relayErr error
	for msg := range stream.Messages() {
		if relayErr != nil {
			// Drain the remainder so the runner can finish the turn.
			continue
		}
		if msg.IsInit() && turn.OnResume != nil {
			turn.OnResume(msg.SessionID)
		}
		for _, block := range msg.TextBlocks() {
			if turn.OnText == nil {
				continue
			}
			if err := turn.OnText(block); err != nil {
				relayErr = err
				break
			}
		}
	}

	if relayErr != nil {
		return relayErr
	}
	if err := stream.Err(); err != nil {
		return &UpstreamError{Err: err}
	}
	return nil
}

// Collect runs a turn and buffers the full reply, for the REST endpoint.
func (d *Dispatcher) Collect(ctx context.Context, prompt string, model string) (string, error) {
	var buf strings.Builder
	err := d.Run(ctx, Turn{
		Prompt: prompt,
		Model:  model,
		OnText: func(chunk string) error {
			buf.WriteString(chunk)
			return nil
		},
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (d *Dispatcher) modelAllowed(model string) bool {
	for _, allowed := range d.cfg.AllowedModels {
		if allowed == model {
			return true
		}
	}
	return false
}
