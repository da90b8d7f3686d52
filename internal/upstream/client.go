// Package upstream talks to the meter reading source and the meter registry.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/domain"
)

// Client reads cumulative values from the meter reading source.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// New returns a client for baseURL. Each request is bounded by timeout
// on top of the caller's context.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
	}
}

// Reading fetches the current cumulative reading of meterID.
func (c *Client) Reading(ctx context.Context, meterID string) (float64, error) {
	var out struct {
		Reading *float64 `json:"reading"`
	}
	if err := getJSON(ctx, c.http, c.timeout, c.baseURL+"/reading/"+url.PathEscape(meterID), &out); err != nil {
		return 0, fmt.Errorf("%w: meter %s: %v", domain.ErrUpstreamUnavailable, meterID, err)
	}
	if out.Reading == nil {
		return 0, fmt.Errorf("%w: meter %s: response has no reading", domain.ErrUpstreamUnavailable, meterID)
	}
	return *out.Reading, nil
}

// Registry lists the meters to collect.
type Registry interface {
	MeterIDs(ctx context.Context) ([]string, error)
}

// HTTPRegistry fetches a JSON array of meter ids from url.
type HTTPRegistry struct {
	url     string
	http    *http.Client
	timeout time.Duration
}

func NewRegistry(endpoint string, timeout time.Duration) *HTTPRegistry {
	return &HTTPRegistry{url: endpoint, http: &http.Client{}, timeout: timeout}
}

func (r *HTTPRegistry) MeterIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := getJSON(ctx, r.http, r.timeout, r.url, &ids); err != nil {
		return nil, fmt.Errorf("%w: meter registry: %v", domain.ErrUpstreamUnavailable, err)
	}
	return ids, nil
}

// StaticRegistry always returns the same ids.
type StaticRegistry []string

func (s StaticRegistry) MeterIDs(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

func getJSON(ctx context.Context, hc *http.Client, timeout time.Duration, u string, out any) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
