package di

import (
	"github.com/goliatone/go-swr-cache/cache"
	"github.com/goliatone/go-swr-cache/resource"
	"github.com/goliatone/go-swr-cache/swr"
)

// Container provides dependency injection for the cache components. It wires
// a store, a registry, and an engine together and hands out singletons, so
// application code never assembles the coordination plumbing by hand.
type Container struct {
	store    *cache.Store
	registry *swr.Registry
	engine   *swr.Engine
	config   swr.Config
}

// NewContainer creates a container around a fresh store and registry using
// the provided engine configuration.
func NewContainer(config swr.Config) (*Container, error) {
	store := cache.NewStore()
	registry := swr.NewRegistry()

	engine, err := swr.New(store, registry, config)
	if err != nil {
		return nil, err
	}

	return &Container{
		store:    store,
		registry: registry,
		engine:   engine,
		config:   config,
	}, nil
}

// NewContainerWithDefaults creates a container using the default
// configuration and the given fetcher.
func NewContainerWithDefaults(fetcher swr.Fetcher) (*Container, error) {
	cfg := swr.DefaultConfig()
	cfg.Fetcher = fetcher
	return NewContainer(cfg)
}

// Engine returns the singleton engine instance.
func (c *Container) Engine() *swr.Engine {
	return c.engine
}

// Store returns the singleton cache store.
func (c *Container) Store() *cache.Store {
	return c.store
}

// Registry returns the coordination registry shared by engines built from
// this container.
func (c *Container) Registry() *swr.Registry {
	return c.registry
}

// Config returns a copy of the engine configuration used by this container.
func (c *Container) Config() swr.Config {
	return c.config
}

// NewResource creates a typed resource facade over the container's engine.
//
// Since Go methods cannot have type parameters, this is provided as a
// package-level function. Example: NewResource[User](container).
func NewResource[T any](container *Container) *resource.Resource[T] {
	return resource.New[T](container.engine)
}
