package domain

// CatalogSnapshot maps every service name known to the registry to its tags.
type CatalogSnapshot map[string][]string

// LocalService describes a service registered on the local agent.
type LocalService struct {
	ID      string
	Service string
	Tags    []string
	Port    int
	Address string
}

// LocalServiceSet holds the services registered on the local agent,
// keyed by service name. Only the keys matter to reconciliation.
type LocalServiceSet map[string]LocalService

// HealthyInstance is one instance of a service that passes its health
// checks and carries the configured tag filter.
type HealthyInstance struct {
	// Node is the registry node identifier hosting the instance.
	Node string
	// Address is the instance address, falling back to the node address
	// when the service does not advertise its own.
	Address string
	Port    int
	Tags    []string
	Service string
}

// HasTag reports whether the instance carries tag.
func (h HealthyInstance) HasTag(tag string) bool {
	for _, t := range h.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ExternalServiceMap is the reconciled set of services to expose.
// Every value holds at least one instance.
type ExternalServiceMap map[string][]HealthyInstance

// Modes a ServiceEntry can be rendered in.
const (
	ModeHTTP = "http"
	ModeTCP  = "tcp"
)

// TagHTTP marks an instance as speaking HTTP.
const TagHTTP = "http"

// ServiceEntry is a render-ready row of the configuration template.
type ServiceEntry struct {
	Name  string   `json:"Name"`
	Port  int      `json:"Port"`
	Mode  string   `json:"Mode"`
	Nodes []string `json:"Nodes"`
}

// RenderDocument is the data handed to the template engine.
type RenderDocument struct {
	Services []ServiceEntry `json:"Services"`
}
