package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smartflow/engine/internal/domain"
)

// DefaultDataHost is the public data-api root.
const DefaultDataHost = "https://data-api.polymarket.com"

// DataClient is the REST client for the Polymarket data-api, which serves
// trade history. It implements ingest.MarketDataSource.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDataClient creates a data-api client. baseURL falls back to the public
// host when empty.
func NewDataClient(baseURL string) *DataClient {
	if baseURL == "" {
		baseURL = DefaultDataHost
	}
	return &DataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// FetchTrades returns one page of taker trades for a market, most recent
// first.
func (d *DataClient) FetchTrades(ctx context.Context, conditionID string, limit, offset int) ([]domain.Trade, error) {
	return d.fetch(ctx, conditionID, limit, offset)
}

// FetchTradesMulti returns one page of taker trades across several markets.
func (d *DataClient) FetchTradesMulti(ctx context.Context, conditionIDs []string, limit, offset int) ([]domain.Trade, error) {
	return d.fetch(ctx, strings.Join(conditionIDs, ","), limit, offset)
}

func (d *DataClient) fetch(ctx context.Context, market string, limit, offset int) ([]domain.Trade, error) {
	params := url.Values{}
	params.Set("market", market)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("takerOnly", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/trades?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: fetch trades: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("polymarket/data: unexpected status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	var apiTrades []APITrade
	if err := json.Unmarshal(body, &apiTrades); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode trades: %w", err)
	}

	trades := make([]domain.Trade, 0, len(apiTrades))
	for i := range apiTrades {
		trades = append(trades, apiTrades[i].ToDomain())
	}
	return trades, nil
}
