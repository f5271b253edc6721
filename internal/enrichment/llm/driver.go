// Package llm contains the text-generation drivers used for enrichment.
package llm

import (
	"context"
	"sort"

	"github.com/joshsymonds/warlens/internal/enrichment"
)

// Driver is the interface that all LLM drivers must implement.
type Driver interface {
	// Generate sends one prompt and returns the generated suggestion.
	// Every failure is an *enrichment.FailureError.
	Generate(ctx context.Context, prompt string) (string, error)

	// GetCapabilities returns the driver's capabilities
	GetCapabilities() Capabilities

	// HealthCheck verifies the driver is working
	HealthCheck(ctx context.Context) error
}

// Capabilities describes the model a driver talks to.
type Capabilities struct {
	Driver    string
	ModelName string
	Endpoint  string
}

// Factory builds a driver from enrichment settings.
type Factory func(cfg enrichment.Config) (Driver, error)

// DriverRegistry manages available LLM drivers.
type DriverRegistry struct {
	drivers map[string]Factory
}

// NewDriverRegistry creates a new driver registry.
func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{
		drivers: make(map[string]Factory),
	}
}

// Register registers a new driver.
func (r *DriverRegistry) Register(name string, factory Factory) {
	r.drivers[name] = factory
}

// Get builds the named driver.
func (r *DriverRegistry) Get(name string, cfg enrichment.Config) (Driver, error) {
	factory, ok := r.drivers[name]
	if !ok {
		return nil, &DriverNotFoundError{Name: name}
	}
	return factory(cfg)
}

// Names returns the registered driver names in sorted order.
func (r *DriverRegistry) Names() []string {
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DriverNotFoundError is returned when a requested driver doesn't exist.
type DriverNotFoundError struct {
	Name string
}

func (e *DriverNotFoundError) Error() string {
	return "driver not found: " + e.Name
}

// DefaultRegistry is the global driver registry.
var DefaultRegistry = NewDriverRegistry()

// New builds the configured driver from the default registry and wraps it
// with transport retries.
func New(cfg enrichment.Config) (Driver, error) {
	d, err := DefaultRegistry.Get(cfg.Driver, cfg)
	if err != nil {
		return nil, err
	}
	return WithRetry(d, cfg.MaxRetries), nil
}
