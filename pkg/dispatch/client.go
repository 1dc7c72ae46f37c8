// pkg/dispatch/client.go
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Metadata rides along with every outbound request.
type Metadata struct {
	DeviceID string `json:"device_id"`
	AgentID  string `json:"agent_id"`
}

// Payload is the wire shape POSTed to the agent's callback endpoint.
type Payload struct {
	SenderID       string   `json:"sender_id"`
	ConversationID string   `json:"conversation_id"`
	Text           string   `json:"text"`
	Language       string   `json:"language"`
	Metadata       Metadata `json:"metadata"`
}

// Client pushes outbound requests to the agent and probes its endpoint.
type Client struct {
	http         *http.Client
	probeTimeout time.Duration
	log          *zap.Logger
}

// NewClient wraps hc (or http.DefaultClient when nil) with the bridge's
// outbound conventions.
func NewClient(hc *http.Client, probeTimeout time.Duration, log *zap.Logger) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &Client{http: hc, probeTimeout: probeTimeout, log: log}
}

// Probe checks that url answers at all. A lightweight HEAD with its own
// short timeout, independent of the submit deadline; any status below 500
// counts as alive (the endpoint may not serve HEAD meaningfully).
func (c *Client) Probe(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("endpoint probe failed", zap.String("url", url), zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// Send POSTs the payload to url. Success is judged purely by a 2xx status.
func (c *Client) Send(ctx context.Context, url string, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("agent returned HTTP %d for %s", resp.StatusCode, url)
	}
	return nil
}
