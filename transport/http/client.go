package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/joyqueue/journalkeeper/follower"
)

// Client sends AppendEntries requests to a follower's HTTP ingress,
// grounded on raft-server/client.go. The follower spec never defines
// a leader; this exists so tests (and any leader implementation,
// out of scope here) have something to drive the ingress with.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

func (c *Client) SendAppendEntries(addr string, req *follower.AppendEntriesRequest) (*Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("transport/http: marshal request: %w", err)
	}

	url := fmt.Sprintf("http://%s/append-entries", addr)
	resp, err := c.httpClient.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("transport/http: post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transport/http: unexpected status %d", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("transport/http: decode response: %w", err)
	}
	return &out, nil
}
