// Package simplon is a small client for the Dectris SIMPLON REST API, used to
// check the detector stream interface before and while stream2tiff listens.
package simplon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultAPIVersion = "1.8.0"

var (
	ErrMissingBaseURL   = errors.New("simplon: missing base url")
	ErrMissingParameter = errors.New("simplon: missing parameter")
)

// HTTPError is a non-2xx answer from the detector.
type HTTPError struct {
	URL    string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("simplon: %s: http %d: %s", e.URL, e.Status, e.Body)
}

type Client struct {
	BaseURL    string
	APIVersion string
	HTTP       *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIVersion: DefaultAPIVersion,
		HTTP:       &http.Client{Timeout: 2 * time.Second},
	}
}

// BuildPaths lists the URLs tried for one parameter, newest API layout first.
// Older firmware only answers the unversioned form.
func BuildPaths(baseURL, apiVersion, module, kind, param string) []string {
	baseURL = strings.TrimRight(baseURL, "/")
	apiVersion = strings.Trim(apiVersion, "/")
	module = strings.Trim(module, "/")
	kind = strings.Trim(kind, "/")
	param = strings.TrimLeft(param, "/")
	if baseURL == "" || module == "" || kind == "" || param == "" {
		return nil
	}

	paths := make([]string, 0, 3)
	if apiVersion != "" {
		paths = append(paths, baseURL+"/"+module+"/api/"+apiVersion+"/"+kind+"/"+param)
		paths = append(paths, baseURL+"/api/"+apiVersion+"/"+module+"/"+kind+"/"+param)
	}
	paths = append(paths, baseURL+"/"+module+"/"+kind+"/"+param)
	return paths
}

// Config reads module/config/param and returns its "value" field.
func (c *Client) Config(ctx context.Context, module, param string) (any, error) {
	body, err := c.get(ctx, module, "config", param)
	if err != nil {
		return nil, err
	}
	return valueOf(body)
}

// SetConfig writes {"value": value} to module/config/param.
func (c *Client) SetConfig(ctx context.Context, module, param string, value any) error {
	payload, err := json.Marshal(map[string]any{"value": value})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPut, module, "config", param, payload)
	return err
}

// State reads module/status/state, lower-cased.
func (c *Client) State(ctx context.Context, module string) (string, error) {
	body, err := c.get(ctx, module, "status", "state")
	if err != nil {
		return "", err
	}
	state, ok := extractState(body)
	if !ok {
		return "", fmt.Errorf("simplon: %s state: no state in response", module)
	}
	return state, nil
}

func (c *Client) get(ctx context.Context, module, kind, param string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, module, kind, param, nil)
}

func (c *Client) do(ctx context.Context, method, module, kind, param string, payload []byte) ([]byte, error) {
	if c.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	paths := BuildPaths(c.BaseURL, c.APIVersion, module, kind, param)
	if len(paths) == 0 {
		return nil, ErrMissingParameter
	}
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	var lastErr error
	for _, path := range paths {
		var body io.Reader
		if len(payload) > 0 {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, path, body)
		if err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			lastErr = &HTTPError{URL: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &HTTPError{URL: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
		}
		return respBody, nil
	}
	return nil, lastErr
}

func valueOf(body []byte) (any, error) {
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("simplon: decode response: %w", err)
	}
	v, ok := decoded["value"]
	if !ok {
		return nil, fmt.Errorf("simplon: response has no value field")
	}
	return v, nil
}
