package vysion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/byronlabs/vysion-cti/app/failure"
	"github.com/byronlabs/vysion-cti/app/metrics"
	"github.com/byronlabs/vysion-cti/app/observable"
)

const (
	feedPath   = "/api/v1/feed/ransomware"
	lookupPath = "/api/v1/"
)

type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey, userAgent string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		userAgent:  userAgent,
		httpClient: httpClient,
	}
}

// FetchRansomwareFeed performs one request against the ransomware feed. Hits
// that cannot be decoded are skipped and logged; any other failure yields no
// records at all.
func (c *Client) FetchRansomwareFeed(ctx context.Context) ([]FeedRecord, error) {
	hits, err := c.get(ctx, "feed", c.baseURL+feedPath)
	if err != nil {
		return nil, err
	}

	records := make([]FeedRecord, 0, len(hits))
	for i, raw := range hits {
		var record FeedRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			slog.Warn("Skipping undecodable feed record", "index", i, "error", err)
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// Lookup queries the endpoint matching kind for value. Unknown kinds are
// refused without a request.
func (c *Client) Lookup(ctx context.Context, kind observable.Kind, value string) ([]RawHit, error) {
	endpoint, ok := kind.Endpoint()
	if !ok {
		return nil, failure.Classification("lookup", value, observable.ErrUnclassifiable)
	}

	hits, err := c.get(ctx, strings.TrimSuffix(endpoint, "/"), c.baseURL+lookupPath+endpoint+lookupValue(value))
	if err != nil {
		return nil, err
	}

	out := make([]RawHit, len(hits))
	for i, raw := range hits {
		out[i] = RawHit(raw)
	}
	return out, nil
}

// lookupValue appends the value as the rest of the path. Slashes stay literal
// so URL lookups reach Vysion unchanged; characters that would end the path or
// break its encoding (space, '?', '#', '%') are escaped.
func lookupValue(value string) string {
	return strings.ReplaceAll(url.PathEscape(value), "%2F", "/")
}

func (c *Client) get(ctx context.Context, endpoint, target string) ([]json.RawMessage, error) {
	op := "GET " + endpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, failure.Network(op, target, fmt.Errorf("failed to create request: %w", err))
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.VysionRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, failure.Network(op, target, err)
	}
	defer resp.Body.Close()

	metrics.VysionRequests.WithLabelValues(endpoint, statusClass(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, failure.Network(op, target, fmt.Errorf("HTTP error: %s", resp.Status))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure.Network(op, target, fmt.Errorf("failed to read response body: %w", err))
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, failure.Malformed(op, target, fmt.Errorf("failed to decode response: %w", err))
	}
	if env.Data == nil {
		return nil, failure.Malformed(op, target, errors.New("response has no data object"))
	}
	if env.Data.Hits == nil {
		return nil, failure.Malformed(op, target, errors.New("response has no data.hits"))
	}

	return *env.Data.Hits, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}
