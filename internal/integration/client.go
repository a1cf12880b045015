// Package integration is a Go client for the hivewatch HTTP API.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-hive/hivewatch/internal/api"
	"github.com/go-hive/hivewatch/internal/surveillance"
)

type prefixRoundTripper struct {
	addr string
	rt   http.RoundTripper
}

func (p *prefixRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	u := r.URL
	if u.Scheme == "" {
		u.Scheme = "http"
	}
	if u.Host == "" {
		u.Host = p.addr
	}

	return p.rt.RoundTrip(r)
}

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hivewatch api: status %d: %s", e.Code, e.Body)
}

// NewClient talks to the service at addr (host:port, or a URL whose host is used).
func NewClient(addr string) *Client {
	if u, err := url.Parse(addr); err == nil && u.Host != "" {
		addr = u.Host
	}
	return &Client{client: &http.Client{Transport: &prefixRoundTripper{addr: addr, rt: http.DefaultTransport}}}
}

type Client struct {
	client *http.Client
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("unable marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("create new request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error with sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("unable decode response: %w", err)
	}
	return nil
}

func (c *Client) Watch(ctx context.Context, entityID, label string) error {
	return c.do(ctx, http.MethodPost, "/watch", api.WatchRequest{EntityID: entityID, Label: label}, nil)
}

func (c *Client) Unwatch(ctx context.Context, entityID string) error {
	return c.do(ctx, http.MethodDelete, "/watch?entityId="+url.QueryEscape(entityID), nil, nil)
}

func (c *Client) Watched(ctx context.Context) ([]surveillance.WatchedEntity, error) {
	var resp api.WatchListResponse
	if err := c.do(ctx, http.MethodGet, "/watch", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entities, nil
}

// ActiveAlert returns nil when no alert is active.
func (c *Client) ActiveAlert(ctx context.Context) (*surveillance.ActiveAlert, error) {
	var resp api.AlertResponse
	if err := c.do(ctx, http.MethodGet, "/alert", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Alert, nil
}

func (c *Client) CloseAlert(ctx context.Context) (bool, error) {
	var resp api.CloseResponse
	err := c.do(ctx, http.MethodPost, "/alert/close", nil, &resp)
	return resp.Closed, err
}

func (c *Client) Suppress(ctx context.Context, minutes int) (bool, error) {
	var resp api.SuppressResponse
	err := c.do(ctx, http.MethodPost, "/alert/suppress", api.SuppressRequest{Minutes: minutes}, &resp)
	return resp.Suppressed, err
}

func (c *Client) SuppressForSession(ctx context.Context) (bool, error) {
	var resp api.SuppressResponse
	err := c.do(ctx, http.MethodPost, "/alert/suppress", api.SuppressRequest{Session: true}, &resp)
	return resp.Suppressed, err
}

func (c *Client) Suppression(ctx context.Context, entityID string) (api.SuppressionResponse, error) {
	var resp api.SuppressionResponse
	err := c.do(ctx, http.MethodGet, "/suppressions/"+url.PathEscape(entityID), nil, &resp)
	return resp, err
}

func (c *Client) Suppressions(ctx context.Context) (api.RulesResponse, error) {
	var resp api.RulesResponse
	err := c.do(ctx, http.MethodGet, "/suppressions", nil, &resp)
	return resp, err
}

func (c *Client) Reactivate(ctx context.Context, entityID string) (bool, error) {
	var resp api.ReactivateResponse
	err := c.do(ctx, http.MethodDelete, "/suppressions/"+url.PathEscape(entityID), nil, &resp)
	return resp.Reactivated, err
}

// Health returns the raw health document.
func (c *Client) Health(ctx context.Context) (map[string]interface{}, error) {
	var resp map[string]interface{}
	err := c.do(ctx, http.MethodGet, "/health", nil, &resp)
	return resp, err
}
