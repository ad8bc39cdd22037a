package cytube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Endpoint is one concrete server partition a channel can be reached
// on, as returned by the service's socketconfig lookup.
type Endpoint struct {
	URL    string `json:"url"`
	Secure bool   `json:"secure"`
}

type socketConfig struct {
	Servers []Endpoint `json:"servers"`
}

// ResolvePartition looks up which server partition hosts the channel.
// It prefers the first secure endpoint and falls back to the first
// listed one. Any failure means the caller must not attempt to connect;
// there is no retry at this level.
func (c *Client) ResolvePartition(ctx context.Context, channel string) (Endpoint, error) {
	lookupURL := fmt.Sprintf("%s/socketconfig/%s.json", c.baseURL, channel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return Endpoint{}, fmt.Errorf("build partition request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Endpoint{}, fmt.Errorf("partition lookup for %q: %w", channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Endpoint{}, fmt.Errorf("partition lookup for %q: status %s", channel, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Endpoint{}, fmt.Errorf("read partition response: %w", err)
	}

	var config socketConfig
	if err := json.Unmarshal(body, &config); err != nil {
		return Endpoint{}, fmt.Errorf("parse partition response: %w", err)
	}
	if len(config.Servers) == 0 {
		return Endpoint{}, fmt.Errorf("partition lookup for %q: no servers listed", channel)
	}

	for _, server := range config.Servers {
		if server.Secure {
			return server, nil
		}
	}
	return config.Servers[0], nil
}
