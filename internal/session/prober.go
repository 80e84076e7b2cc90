package session

import (
	"context"
	"net/http"
)

// ProbeHealth performs the one-shot startup reachability check against
// the service health endpoint. Any 2xx counts as reachable, regardless
// of body; any other status or transport failure marks the backend
// down. The result only feeds the rendered banner — turns are never
// blocked on it, and the probe is not retried.
func (c *Controller) ProbeHealth(ctx context.Context) Reachability {
	resp, err := c.client.Send(ctx, http.MethodGet, healthPath, nil)

	state := ReachabilityDown
	if err == nil && resp.Status >= 200 && resp.Status < 300 {
		state = ReachabilityUp
	}

	if err != nil {
		c.logger.Warn("health probe failed", "base_url", c.baseURL, "error", err)
	} else if state == ReachabilityDown {
		c.logger.Warn("health probe returned non-2xx", "base_url", c.baseURL, "status", resp.Status)
	} else {
		c.logger.Info("support service reachable", "base_url", c.baseURL)
	}

	c.mu.Lock()
	c.backend = state
	c.mu.Unlock()

	return state
}
