package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds every backend request. It is not configurable.
const DefaultTimeout = 15 * time.Second

const (
	PathHospitals = "/hospitals"
	PathAlerts    = "/alerts"
	PathAggregate = "/simulate/aggregate?by=city"
	PathHealth    = "/health"
)

// ResponseCache stores raw response bodies keyed by request path.
type ResponseCache interface {
	Get(ctx context.Context, path string) ([]byte, bool, error)
	Set(ctx context.Context, path string, body []byte) error
}

// ObserveFunc is called once per issued request with the request path, an
// outcome label ("ok", "error", "cached") and the elapsed time.
type ObserveFunc func(path, outcome string, elapsed time.Duration)

// Client talks to the dashboard backend proxy. Every request inherits the
// base URL and the fixed timeout. There is no retry.
type Client struct {
	mu         sync.RWMutex
	baseURL    string
	httpClient *http.Client
	cache      ResponseCache
	observe    ObserveFunc
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// SetCache installs a response cache. Nil disables caching.
func (c *Client) SetCache(rc ResponseCache) {
	c.mu.Lock()
	c.cache = rc
	c.mu.Unlock()
}

func (c *Client) SetObserver(fn ObserveFunc) {
	c.mu.Lock()
	c.observe = fn
	c.mu.Unlock()
}

// ListHospitals fetches GET /hospitals. A body without "data" yields an
// empty list.
func (c *Client) ListHospitals(ctx context.Context) ([]Hospital, error) {
	var resp HospitalsResponse
	if err := c.GetJSON(ctx, PathHospitals, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return []Hospital{}, nil
	}
	return resp.Data, nil
}

func (c *Client) GetAlerts(ctx context.Context) (*AlertsSummary, error) {
	var resp AlertsSummary
	if err := c.GetJSON(ctx, PathAlerts, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) AggregateByCity(ctx context.Context) (*Aggregation, error) {
	var resp Aggregation
	if err := c.GetJSON(ctx, PathAggregate, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ping reports whether the backend answers HTTP at all. Any response,
// including an error status, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL()+PathHealth, nil)
	if err != nil {
		return fmt.Errorf("backend ping: %w", err)
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return fmt.Errorf("backend ping: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// GetJSON issues GET path and decodes the JSON body into result.
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	c.mu.RLock()
	cache, observe := c.cache, c.observe
	c.mu.RUnlock()

	start := time.Now()
	if cache != nil {
		if data, ok, err := cache.Get(ctx, path); err != nil {
			log.Printf("backend: cache get %s: %v", path, err)
		} else if ok {
			if err := json.Unmarshal(data, result); err == nil {
				if observe != nil {
					observe(path, "cached", time.Since(start))
				}
				return nil
			}
		}
	}

	data, err := c.getRaw(ctx, path)
	if observe != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		observe(path, outcome, time.Since(start))
	}
	if err != nil {
		return err
	}
	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("backend decode %s: %w", path, err)
		}
	}
	if cache != nil {
		if err := cache.Set(ctx, path, data); err != nil {
			log.Printf("backend: cache set %s: %v", path, err)
		}
	}
	return nil
}

func (c *Client) getRaw(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL()+path, nil)
	if err != nil {
		return nil, fmt.Errorf("backend GET %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("backend HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

func (c *Client) http() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.httpClient
}

// BaseURL returns the client's base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.http().Timeout
}

// Reconfigure points the client at a new base URL for hot-reload.
// Requests already in flight keep the URL they started with.
func (c *Client) Reconfigure(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimRight(baseURL, "/")
}
