package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/MrSnakeDoc/hasu/internal/domain"
	"github.com/MrSnakeDoc/hasu/internal/logger"
)

var _ Client = (*ConsulClient)(nil)

// ConsulClient talks to the Consul HTTP API (v1) of an agent.
type ConsulClient struct {
	cl     *resty.Client
	logger logger.Logger
}

// NewConsulClient creates a client for the API rooted at address,
// e.g. "http://localhost:8500/v1".
func NewConsulClient(address string, timeout time.Duration, log logger.Logger) *ConsulClient {
	return &ConsulClient{
		logger: log,
		cl: resty.New().
			SetBaseURL(address).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json").
			SetRetryCount(0),
	}
}

// ListCatalogServices calls GET /catalog/services.
func (c *ConsulClient) ListCatalogServices(ctx context.Context) (domain.CatalogSnapshot, error) {
	c.logger.Debug("listing catalog services")

	var raw map[string][]string
	if err := c.get(ctx, c.cl.R(), "/catalog/services", &raw); err != nil {
		return nil, err
	}

	snapshot := make(domain.CatalogSnapshot, len(raw))
	for name, tags := range raw {
		snapshot[name] = tags
	}
	return snapshot, nil
}

// ListLocalServices calls GET /agent/services.
func (c *ConsulClient) ListLocalServices(ctx context.Context) (domain.LocalServiceSet, error) {
	c.logger.Debug("listing local agent services")

	var raw map[string]agentService
	if err := c.get(ctx, c.cl.R(), "/agent/services", &raw); err != nil {
		return nil, err
	}
	return mapLocalServices(raw), nil
}

// ListHealthyInstances calls GET /health/service/{name}?passing=true&tag=...
func (c *ConsulClient) ListHealthyInstances(
	ctx context.Context,
	service string,
	tags []string,
) ([]domain.HealthyInstance, error) {
	c.logger.Debug("listing healthy instances",
		logger.String("service", service),
		logger.Strings("tags", tags))

	query := url.Values{"passing": {"true"}}
	for _, tag := range tags {
		query.Add("tag", tag)
	}

	req := c.cl.R().
		SetPathParam("service", service).
		SetQueryParamsFromValues(query)

	var entries []healthEntry
	if err := c.get(ctx, req, "/health/service/{service}", &entries); err != nil {
		return nil, err
	}
	return mapHealthEntries(service, entries), nil
}

func (c *ConsulClient) get(ctx context.Context, req *resty.Request, path string, out any) error {
	resp, err := req.SetContext(ctx).Get(path)
	if err != nil {
		return fmt.Errorf("executing request %s: %w", path, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("got non-ok response for %s (%s): %s", path, resp.Status(), resp.String())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("unmarshaling %s: %w", path, err)
	}
	return nil
}
