package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/veesix-networks/netbind/pkg/northbound"
)

// Client talks to the netbindd northbound API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(server string, timeout time.Duration) *Client {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	return &Client{
		baseURL: strings.TrimRight(server, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Bind(ctx context.Context, ssid string) (bool, error) {
	var resp struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/bind", map[string]string{"ssid": ssid}, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

func (c *Client) Unbind(ctx context.Context) (bool, error) {
	var resp struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/unbind", nil, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Call(ctx context.Context, method string, params any) (any, error) {
	var resp struct {
		Result any `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/call/"+method, params, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var ce northbound.CallError
		if err := json.NewDecoder(resp.Body).Decode(&ce); err != nil || ce.Code == "" {
			return fmt.Errorf("request %s: unexpected status %s", path, resp.Status)
		}
		return &ce
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
