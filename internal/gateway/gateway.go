// Package gateway answers research queries. A Gateway is stateless and is
// built fresh for every query from a validated configuration.
package gateway

import (
	"context"

	"github.com/pkg/errors"

	"github.com/zhouzirui/research-relay/internal/config"
)

// ErrGateway matches every failure produced by a gateway implementation.
var ErrGateway = errors.New("gateway failure")

// Gateway turns one query into one complete answer.
type Gateway interface {
	Invoke(ctx context.Context, query string) (string, error)
}

// Factory constructs a Gateway from configuration.
type Factory interface {
	New(ctx context.Context, cfg config.GatewayConfig) (Gateway, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, cfg config.GatewayConfig) (Gateway, error)

// New calls f.
func (f FactoryFunc) New(ctx context.Context, cfg config.GatewayConfig) (Gateway, error) {
	return f(ctx, cfg)
}

// DefaultFactory picks the provider named in the configuration.
var DefaultFactory Factory = FactoryFunc(New)

// New builds the gateway for cfg.Provider.
func New(ctx context.Context, cfg config.GatewayConfig) (Gateway, error) {
	switch cfg.Provider {
	case config.ProviderArk:
		return newArk(ctx, cfg)
	case config.ProviderOpenAI:
		return newOpenAI(cfg), nil
	case config.ProviderAnthropic:
		return newAnthropic(cfg), nil
	case config.ProviderEcho:
		return Echo{}, nil
	default:
		return nil, wrap(cfg.Provider, errors.Errorf("unsupported provider %q", cfg.Provider))
	}
}

// Error carries the provider that failed.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string { return e.Provider + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Is reports ErrGateway so callers can classify without knowing the provider.
func (e *Error) Is(target error) bool { return target == ErrGateway }

func wrap(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Provider: provider, Err: err}
}

// Echo answers with the query itself. Useful offline and in tests.
type Echo struct{}

// Invoke returns query unchanged.
func (Echo) Invoke(ctx context.Context, query string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", wrap(config.ProviderEcho, err)
	}
	return query, nil
}
