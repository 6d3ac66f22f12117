// Package target normalizes calling conventions over the systems under
// test. The orchestrator only ever sees the Client interface; api, chain,
// and custom backends all sit behind it.
package target

import (
	"context"
	"errors"
	"fmt"
	"time"

	"redcell/internal/types"
)

// Client is one uniform invocation surface per target. Implementations are
// stateless across invocations except for connection reuse.
type Client interface {
	Name() string
	// Invoke sends one prompt and returns the target's text answer. All
	// failures surface as TARGET_INVOCATION errors; deadline expiry as
	// TARGET_TIMEOUT.
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Invoker is the injected pipeline contract for chain targets.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// InvokeFunc is the injected callable for custom targets.
type InvokeFunc func(ctx context.Context, prompt string) (string, error)

// Config describes a system under test. Exactly one kind is active; the
// fields that kind requires must be present or construction fails.
type Config struct {
	Name string           `json:"name" yaml:"name"`
	Kind types.TargetKind `json:"kind" yaml:"kind"`

	// api kind
	Endpoint    string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Method      string            `json:"method,omitempty" yaml:"method,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	PromptKey   string            `json:"prompt_key,omitempty" yaml:"prompt_key,omitempty"`
	ResponseKey string            `json:"response_key,omitempty" yaml:"response_key,omitempty"`

	TimeoutSec int `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`
	RateRPM    int `json:"rate_rpm,omitempty" yaml:"rate_rpm,omitempty"`

	// chain and custom kinds are injected in-process, never parsed from a
	// config document.
	Chain  Invoker    `json:"-" yaml:"-"`
	Custom InvokeFunc `json:"-" yaml:"-"`
}

// Timeout returns the per-invocation bound, defaulting to 30 seconds.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// Validate checks kind selection and kind-required fields.
func (c Config) Validate() error {
	if c.Name == "" {
		return types.NewError(types.CodeConfigInvalid, "target name is required")
	}
	if !c.Kind.IsValid() {
		return types.NewError(types.CodeConfigInvalid, fmt.Sprintf("unknown target kind %q", c.Kind))
	}
	switch c.Kind {
	case types.TargetKindAPI:
		if c.Endpoint == "" {
			return types.NewError(types.CodeConfigInvalid, "api target requires an endpoint")
		}
	case types.TargetKindChain:
		if c.Chain == nil {
			return types.NewError(types.CodeConfigInvalid, "chain target requires an injected pipeline")
		}
	case types.TargetKindCustom:
		if c.Custom == nil {
			return types.NewError(types.CodeConfigInvalid, "custom target requires an injected callable")
		}
	}
	return nil
}

// New builds the client for cfg, wrapping it with a rate limiter when
// RateRPM is set.
func New(cfg Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var client Client
	switch cfg.Kind {
	case types.TargetKindAPI:
		client = newAPIClient(cfg)
	case types.TargetKindChain:
		client = &chainClient{name: cfg.Name, chain: cfg.Chain, timeout: cfg.Timeout()}
	case types.TargetKindCustom:
		client = &customClient{name: cfg.Name, fn: cfg.Custom, timeout: cfg.Timeout()}
	}
	if cfg.RateRPM > 0 {
		client = newRateLimited(client, cfg.RateRPM)
	}
	return client, nil
}

// wrapInvokeErr classifies a failed invocation: context deadline becomes a
// timeout, everything else a plain invocation error.
func wrapInvokeErr(ctx context.Context, err error) error {
	if types.IsInvocationError(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.WrapError(types.CodeTargetTimeout, "target call timed out", err)
	}
	return types.NewRetryableError(types.CodeTargetInvocation, "target call failed", err)
}
