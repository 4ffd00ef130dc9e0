package registry

import (
	"context"

	"github.com/MrSnakeDoc/hasu/internal/domain"
)

// Client is the subset of the registry API the reconciler consumes.
type Client interface {
	// ListCatalogServices returns every service known to the catalog.
	ListCatalogServices(ctx context.Context) (domain.CatalogSnapshot, error)
	// ListLocalServices returns services registered on the local agent,
	// keyed by service name.
	ListLocalServices(ctx context.Context) (domain.LocalServiceSet, error)
	// ListHealthyInstances returns passing instances of service carrying
	// every tag in tags.
	ListHealthyInstances(ctx context.Context, service string, tags []string) ([]domain.HealthyInstance, error)
}
