package okx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"swapcollector/internal/market"
)

// ErrRateLimited is returned on HTTP 429. Callers back off and retry the
// same request; every other non-200 status is a hard error for that page.
var ErrRateLimited = errors.New("okx: rate limited")

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CandleHistory fetches one page of candles for a swap instrument,
// newest-first. beforeMillis pages backwards: only rows older than the
// cursor are returned. An empty cursor fetches the most recent page.
func (c *RESTClient) CandleHistory(ctx context.Context, symbol string, tf market.Timeframe,
	limit int, beforeMillis string) ([][]string, error) {

	params := url.Values{}
	params.Set("instId", InstID(symbol))
	params.Set("bar", string(tf))
	params.Set("limit", strconv.Itoa(limit))
	if beforeMillis != "" {
		params.Set("before", beforeMillis)
	}
	endpoint := c.baseURL + "/api/v5/market/candles?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("okx error: status %d: %s", resp.StatusCode, body)
	}

	var envelope Envelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if envelope.Code != "0" {
		return nil, fmt.Errorf("okx error: code %s: %s", envelope.Code, envelope.Msg)
	}

	var rows [][]string
	if err := json.Unmarshal(envelope.Data, &rows); err != nil {
		return nil, fmt.Errorf("decode candle rows: %w", err)
	}
	return rows, nil
}
