// Package polymarket provides REST clients for the two public Polymarket
// APIs this system reads: the Gamma API for market discovery and slug
// resolution, and the data-api for historical and recent trades.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/smartflow/engine/internal/domain"
)

// DefaultGammaHost is the public Gamma API root.
const DefaultGammaHost = "https://gamma-api.polymarket.com"

const userAgent = "smartflow/0.1"

// GammaClient is the REST client for the Polymarket Gamma API.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a Gamma API client. baseURL falls back to the
// public host when empty.
func NewGammaClient(baseURL string) *GammaClient {
	if baseURL == "" {
		baseURL = DefaultGammaHost
	}
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// ListMarkets returns one page of markets.
func (g *GammaClient) ListMarkets(ctx context.Context, limit, offset int) ([]APIMarket, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list markets: %w", err)
	}

	var markets []APIMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}
	return markets, nil
}

// MarketBySlug returns a single market looked up by its URL slug. It tries
// the /markets/slug/{slug} route first and falls back to /markets?slug= for
// deployments without it.
func (g *GammaClient) MarketBySlug(ctx context.Context, slug string) (APIMarket, error) {
	body, err := g.doGet(ctx, "/markets/slug/"+url.PathEscape(slug))
	if err == nil {
		if m, ok := decodeSingleMarket(body); ok {
			return m, nil
		}
	}

	params := url.Values{}
	params.Set("slug", slug)
	body, err = g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: market by slug %s: %w", slug, err)
	}

	var markets []APIMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}
	if len(markets) == 0 {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: slug %s: %w", slug, domain.ErrNotResolvable)
	}
	return markets[0], nil
}

// ResolveConditionID maps a market slug to its condition id, failing with
// domain.ErrNotResolvable when the slug does not map to exactly one market
// with a well-formed 0x + 64-hex identifier.
func (g *GammaClient) ResolveConditionID(ctx context.Context, slug string) (string, error) {
	m, err := g.MarketBySlug(ctx, slug)
	if err != nil {
		return "", err
	}
	cid := m.EffectiveConditionID()
	if !domain.IsConditionID(cid) {
		return "", fmt.Errorf("polymarket/gamma: slug %s resolved to %q: %w", slug, cid, domain.ErrNotResolvable)
	}
	return cid, nil
}

// decodeSingleMarket accepts either an object or a one-element array, which
// the slug route returns on different gamma versions.
func decodeSingleMarket(body []byte) (APIMarket, bool) {
	var m APIMarket
	if err := json.Unmarshal(body, &m); err == nil && m.EffectiveConditionID() != "" {
		return m, true
	}
	var ms []APIMarket
	if err := json.Unmarshal(body, &ms); err == nil && len(ms) > 0 {
		return ms[0], true
	}
	return APIMarket{}, false
}

func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
