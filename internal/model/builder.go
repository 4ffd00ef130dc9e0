package model

import (
	"slices"

	"github.com/samber/lo"

	"github.com/MrSnakeDoc/hasu/internal/domain"
)

// Builder turns reconciled services into the template document.
type Builder struct{}

// NewBuilder creates a builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build produces one entry per service, sorted by name. It fails with a
// *domain.DataIntegrityError when instances of a service disagree on port.
// The result depends only on the contents of external, not on map order.
func (b *Builder) Build(external domain.ExternalServiceMap) (domain.RenderDocument, error) {
	names := lo.Keys(external)
	slices.Sort(names)

	entries := make([]domain.ServiceEntry, 0, len(names))
	for _, name := range names {
		entry, err := buildEntry(name, external[name])
		if err != nil {
			return domain.RenderDocument{}, err
		}
		entries = append(entries, entry)
	}

	return domain.RenderDocument{Services: entries}, nil
}

func buildEntry(name string, instances []domain.HealthyInstance) (domain.ServiceEntry, error) {
	port, err := sharedPort(name, instances)
	if err != nil {
		return domain.ServiceEntry{}, err
	}

	nodes := lo.Map(instances, func(inst domain.HealthyInstance, _ int) string {
		return inst.Node
	})
	slices.Sort(nodes)

	return domain.ServiceEntry{
		Name:  name,
		Port:  port,
		Mode:  Mode(instances),
		Nodes: nodes,
	}, nil
}

// sharedPort returns the port every instance agrees on.
func sharedPort(name string, instances []domain.HealthyInstance) (int, error) {
	ports := lo.Uniq(lo.Map(instances, func(inst domain.HealthyInstance, _ int) int {
		return inst.Port
	}))
	if len(ports) != 1 {
		slices.Sort(ports)
		return 0, &domain.DataIntegrityError{Service: name, Ports: ports}
	}
	return ports[0], nil
}

// Mode is "http" when any instance carries the http tag, "tcp" otherwise.
func Mode(instances []domain.HealthyInstance) string {
	if lo.SomeBy(instances, func(inst domain.HealthyInstance) bool {
		return inst.HasTag(domain.TagHTTP)
	}) {
		return domain.ModeHTTP
	}
	return domain.ModeTCP
}
