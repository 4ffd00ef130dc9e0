// Package registrytest provides an in-memory registry.Client for tests.
package registrytest

import (
	"context"
	"errors"
	"sync"

	"github.com/MrSnakeDoc/hasu/internal/domain"
)

// ErrUnavailable is returned by failing Fake calls.
var ErrUnavailable = errors.New("registry unavailable")

// Fake serves a fixed registry snapshot. Health results are keyed by
// service name; tags are recorded but not filtered on.
type Fake struct {
	mu sync.Mutex

	Catalog domain.CatalogSnapshot
	Local   domain.LocalServiceSet
	Health  map[string][]domain.HealthyInstance

	// FailCatalog, FailLocal and FailHealth make the matching call fail.
	FailCatalog bool
	FailLocal   bool
	FailHealth  map[string]bool

	// HealthCalls records every health query in call order.
	HealthCalls []string
	// LastTags is the tag filter of the most recent health query.
	LastTags []string
}

func (f *Fake) ListCatalogServices(context.Context) (domain.CatalogSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCatalog {
		return nil, ErrUnavailable
	}
	out := make(domain.CatalogSnapshot, len(f.Catalog))
	for k, v := range f.Catalog {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) ListLocalServices(context.Context) (domain.LocalServiceSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailLocal {
		return nil, ErrUnavailable
	}
	out := make(domain.LocalServiceSet, len(f.Local))
	for k, v := range f.Local {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) ListHealthyInstances(_ context.Context, service string, tags []string) ([]domain.HealthyInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HealthCalls = append(f.HealthCalls, service)
	f.LastTags = tags
	if f.FailHealth[service] {
		return nil, ErrUnavailable
	}
	return append([]domain.HealthyInstance(nil), f.Health[service]...), nil
}

// SetFailHealth toggles failure of health queries for service.
func (f *Fake) SetFailHealth(service string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailHealth == nil {
		f.FailHealth = make(map[string]bool)
	}
	f.FailHealth[service] = fail
}
