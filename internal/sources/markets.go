// Package sources ships the built-in scan connectors. Each one implements
// the scan.Source interface and turns one upstream format into mentions.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/types"
)

const sourceUserAgent = "coinsentry/1"

// marketListing is one entry of the market-data new-listings feed.
type marketListing struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Symbol         string  `json:"symbol"`
	Price          float64 `json:"current_price"`
	MarketCap      float64 `json:"market_cap"`
	Volume24h      float64 `json:"total_volume"`
	PriceChange24h float64 `json:"price_change_percentage_24h"`
	Homepage       string  `json:"homepage"`
	ListedAt       string  `json:"listed_at"`
}

// Markets polls a market-data API for newly listed tokens.
type Markets struct {
	logger *zap.Logger
	client *http.Client
	url    string
	apiKey string
}

func NewMarkets(logger *zap.Logger, url, apiKey string, timeout time.Duration) *Markets {
	return &Markets{
		logger: logger.Named("markets"),
		client: &http.Client{Timeout: timeout},
		url:    url,
		apiKey: apiKey,
	}
}

func (s *Markets) Name() string { return "markets" }

func (s *Markets) Scan(ctx context.Context) ([]types.Mention, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", sourceUserAgent)
	if s.apiKey != "" {
		req.Header.Set("X-Api-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market feed returned %s", resp.Status)
	}

	var listings []marketListing
	if err := json.NewDecoder(resp.Body).Decode(&listings); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}

	mentions := make([]types.Mention, 0, len(listings))
	for _, l := range listings {
		if l.ID == "" {
			continue
		}
		listedAt := time.Now()
		if t, err := time.Parse(time.RFC3339, l.ListedAt); err == nil {
			listedAt = t
		}
		mentions = append(mentions, types.Mention{
			Identifier: l.ID,
			Source:     s.Name(),
			Timestamp:  listedAt,
			Payload: types.Payload{
				Name:           l.Name,
				Symbol:         l.Symbol,
				Website:        l.Homepage,
				Price:          l.Price,
				MarketCap:      l.MarketCap,
				Volume24h:      l.Volume24h,
				PriceChange24h: l.PriceChange24h,
				CreatedAt:      listedAt,
			},
		})
	}
	return mentions, nil
}
