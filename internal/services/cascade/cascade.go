// Package cascade evaluates ranked providers until one succeeds.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrExhausted is returned when no provider produced a value.
var ErrExhausted = errors.New("all providers failed")

// Provider is one named source in a ranked list.
type Provider[T any] struct {
	Name  string
	Fetch func(ctx context.Context, key string) (T, error)
}

// FailFunc observes a skipped provider. It must not block.
type FailFunc func(provider string, err error)

// Result carries the winning value and the provider that produced it.
type Result[T any] struct {
	Value    T
	Provider string
}

// FirstSuccess calls providers in order and returns the first value for which
// Fetch returns a nil error and accept (if non-nil) returns true. A failing
// provider is reported to onFail and skipped. Context cancellation stops the
// walk early.
func FirstSuccess[T any](ctx context.Context, key string, providers []Provider[T], accept func(T) bool, onFail FailFunc) (Result[T], error) {
	var failed []string
	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			return Result[T]{}, err
		}
		if p.Fetch == nil {
			continue
		}

		v, err := p.Fetch(ctx, key)
		if err == nil && accept != nil && !accept(v) {
			err = errRejected
		}
		if err != nil {
			failed = append(failed, p.Name)
			if onFail != nil {
				onFail(p.Name, err)
			}
			continue
		}
		return Result[T]{Value: v, Provider: p.Name}, nil
	}

	if len(failed) == 0 {
		return Result[T]{}, ErrExhausted
	}
	return Result[T]{}, fmt.Errorf("%w: %s", ErrExhausted, strings.Join(failed, ", "))
}

var errRejected = errors.New("result rejected")

// Names lists provider names in rank order.
func Names[T any](providers []Provider[T]) []string {
	out := make([]string, len(providers))
	for i, p := range providers {
		out[i] = p.Name
	}
	return out
}
