package registry

// agentService is one entry of GET /agent/services, keyed by service ID.
type agentService struct {
	ID      string   `json:"ID"`
	Service string   `json:"Service"`
	Tags    []string `json:"Tags"`
	Port    int      `json:"Port"`
	Address string   `json:"Address"`
}

// healthEntry is one element of GET /health/service/{name}.
type healthEntry struct {
	Node    healthNode    `json:"Node"`
	Service healthService `json:"Service"`
}

type healthNode struct {
	ID      string `json:"ID"`
	Node    string `json:"Node"`
	Address string `json:"Address"`
}

type healthService struct {
	ID      string   `json:"ID"`
	Service string   `json:"Service"`
	Tags    []string `json:"Tags"`
	Port    int      `json:"Port"`
	Address string   `json:"Address"`
}
