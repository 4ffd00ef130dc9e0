package registry

import (
	"github.com/MrSnakeDoc/hasu/internal/domain"
)

// mapLocalServices re-keys the agent response by service name.
// Services without a name fall back to their ID.
func mapLocalServices(raw map[string]agentService) domain.LocalServiceSet {
	set := make(domain.LocalServiceSet, len(raw))
	for id, svc := range raw {
		name := svc.Service
		if name == "" {
			name = id
		}
		if svc.ID == "" {
			svc.ID = id
		}
		set[name] = domain.LocalService{
			ID:      svc.ID,
			Service: name,
			Tags:    svc.Tags,
			Port:    svc.Port,
			Address: svc.Address,
		}
	}
	return set
}

// mapHealthEntries converts health entries to instances of service.
func mapHealthEntries(service string, entries []healthEntry) []domain.HealthyInstance {
	instances := make([]domain.HealthyInstance, 0, len(entries))
	for _, e := range entries {
		addr := e.Service.Address
		if addr == "" {
			addr = e.Node.Address
		}

		name := e.Service.Service
		if name == "" {
			name = service
		}

		instances = append(instances, domain.HealthyInstance{
			Node:    e.Node.Node,
			Address: addr,
			Port:    e.Service.Port,
			Tags:    append([]string(nil), e.Service.Tags...),
			Service: name,
		})
	}
	return instances
}
