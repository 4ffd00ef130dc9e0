package reconcile

import (
	"context"
	"slices"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/hasu/internal/domain"
	"github.com/MrSnakeDoc/hasu/internal/logger"
	"github.com/MrSnakeDoc/hasu/internal/registry"
)

// Options are fixed for the lifetime of a Reconciler.
type Options struct {
	// Tags every healthy instance must carry.
	Tags []string
	// Workers bounds concurrent health queries. Values below 2 query
	// services one at a time.
	Workers int
}

// Reconciler computes which catalog services are external and healthy.
type Reconciler struct {
	client  registry.Client
	tags    []string
	workers int
	logger  logger.Logger
}

// New creates a reconciler reading from client.
func New(client registry.Client, opts Options, log logger.Logger) *Reconciler {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Reconciler{
		client:  client,
		tags:    slices.Clone(opts.Tags),
		workers: workers,
		logger:  log,
	}
}

// Reconcile fetches the catalog and the local agent services, then queries
// health for every catalog service not hosted locally. Services without a
// healthy instance are left out. Any registry failure aborts the whole
// reconciliation with a *domain.RegistryUnavailableError; no partial map is
// returned.
func (r *Reconciler) Reconcile(ctx context.Context) (domain.ExternalServiceMap, error) {
	catalog, err := r.client.ListCatalogServices(ctx)
	if err != nil {
		return nil, &domain.RegistryUnavailableError{Op: "catalog", Err: err}
	}

	local, err := r.client.ListLocalServices(ctx)
	if err != nil {
		return nil, &domain.RegistryUnavailableError{Op: "agent", Err: err}
	}

	candidates := Candidates(catalog, local)
	r.logger.Debug("computed candidate services",
		logger.Int("catalog", len(catalog)),
		logger.Int("local", len(local)),
		logger.Int("candidates", len(candidates)))

	results, err := r.fetchHealth(ctx, candidates)
	if err != nil {
		return nil, err
	}

	external := make(domain.ExternalServiceMap, len(candidates))
	for i, name := range candidates {
		if len(results[i]) == 0 {
			r.logger.Debug("skipping service without healthy instances",
				logger.String("service", name))
			continue
		}
		external[name] = results[i]
	}

	return external, nil
}

// Candidates returns the catalog services not registered on the local
// agent, sorted by name.
func Candidates(catalog domain.CatalogSnapshot, local domain.LocalServiceSet) []string {
	names := lo.Filter(lo.Keys(catalog), func(name string, _ int) bool {
		_, isLocal := local[name]
		return !isLocal
	})
	slices.Sort(names)
	return names
}

// fetchHealth returns one result per candidate, index-aligned.
func (r *Reconciler) fetchHealth(ctx context.Context, candidates []string) ([][]domain.HealthyInstance, error) {
	results := make([][]domain.HealthyInstance, len(candidates))

	if r.workers == 1 {
		for i, name := range candidates {
			instances, err := r.health(ctx, name)
			if err != nil {
				return nil, err
			}
			results[i] = instances
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, name := range candidates {
		i, name := i, name
		g.Go(func() error {
			instances, err := r.health(gctx, name)
			if err != nil {
				return err
			}
			results[i] = instances
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Reconciler) health(ctx context.Context, service string) ([]domain.HealthyInstance, error) {
	instances, err := r.client.ListHealthyInstances(ctx, service, r.tags)
	if err != nil {
		return nil, &domain.RegistryUnavailableError{Op: "health", Service: service, Err: err}
	}
	return instances, nil
}
