package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tickd/internal/application/port"
)

// InstrumentClient fetches the tradable-symbol universe. Unsigned endpoint,
// no credentials needed.
type InstrumentClient struct {
	baseURL string
	client  *http.Client
}

func NewInstrumentClient(baseURL string) *InstrumentClient {
	return &InstrumentClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *InstrumentClient) ListInstruments(ctx context.Context) ([]string, error) {
	endpoint := c.baseURL + "/api/v3/ticker/price"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{Status: resp.StatusCode, Message: string(body)}
	}

	var tickers []struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tickers); err != nil {
		return nil, fmt.Errorf("decode instruments: %w", err)
	}

	symbols := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if s := strings.ToUpper(strings.TrimSpace(t.Symbol)); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols, nil
}

var _ port.InstrumentLister = (*InstrumentClient)(nil)
