// Package secret resolves confidential values (OAuth client secrets)
// from a process-wide backend chosen by configuration.
package secret

import (
	"context"
	"slices"

	"github.com/pkg/errors"
)

type Store interface {
	Get(ctx context.Context, key string) (string, error)
}

type Type string

type FactoryFunc func(options map[string]any) (Store, error)

var factories = map[Type]FactoryFunc{}

func Register(t Type, fn FactoryFunc) {
	factories[t] = fn
}

func Registered() []Type {
	types := make([]Type, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	slices.Sort(types)

	return types
}

func New(t Type, options map[string]any) (Store, error) {
	factory, exists := factories[t]
	if !exists {
		return nil, errors.Errorf("unknown secret store type '%s', available: %v", t, Registered())
	}

	store, err := factory(options)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return store, nil
}
