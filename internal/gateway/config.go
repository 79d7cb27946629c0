package gateway

import (
	"errors"
	"fmt"

	"github.com/wondertwin-ai/bookshelf/pkg/admin"
	"github.com/wondertwin-ai/bookshelf/pkg/server"
)

var _ admin.ConfigProvider = (*RuntimeConfig)(nil)

// RuntimeConfig exposes the gateway's server settings together with its
// upstream settings on /admin/config. The upstream is fixed at startup.
type RuntimeConfig struct {
	srv    *server.Server
	client *Client
}

// NewRuntimeConfig creates the config provider for a gateway service.
func NewRuntimeConfig(srv *server.Server, client *Client) *RuntimeConfig {
	return &RuntimeConfig{srv: srv, client: client}
}

// GetConfig returns the server config plus upstream_url and upstream_timeout.
// fail_rate is omitted because the gateway never fails at random.
func (c *RuntimeConfig) GetConfig() map[string]any {
	cfg := c.srv.GetConfig()
	delete(cfg, "fail_rate")
	cfg["upstream_url"] = c.client.BaseURL()
	cfg["upstream_timeout"] = c.client.Timeout().String()
	return cfg
}

// UpdateConfig rejects upstream and fail_rate changes and delegates the rest.
func (c *RuntimeConfig) UpdateConfig(updates map[string]any) error {
	if _, ok := updates["fail_rate"]; ok {
		return errors.New("fail_rate is not supported by the gateway")
	}
	for _, k := range []string{"upstream_url", "upstream_timeout"} {
		if _, ok := updates[k]; ok {
			return fmt.Errorf("%s cannot be changed at runtime", k)
		}
	}
	return c.srv.UpdateConfig(updates)
}
