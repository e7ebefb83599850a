package scorers

import (
	"context"

	"github.com/coinsentry/coinsentry/internal/types"
)

// Trend classification thresholds for 24h price movement and volume.
const (
	bullishChangePct = 5.0
	bearishChangePct = -5.0
	highVolume       = 100_000
	lowVolume        = 1_000
)

// TechnicalAnalyzer extracts corroborating signals from the mention payload.
// It only reads what the source connector already fetched; it performs no
// network calls of its own.
type TechnicalAnalyzer struct{}

func NewTechnicalAnalyzer() *TechnicalAnalyzer {
	return &TechnicalAnalyzer{}
}

func (a *TechnicalAnalyzer) Analyze(_ context.Context, m types.Mention) (types.TechnicalSignals, error) {
	p := m.Payload

	signals := types.TechnicalSignals{
		MarketCap:     p.MarketCap,
		Volume24h:     p.Volume24h,
		HasWebsite:    p.Website != "",
		HasWhitepaper: p.Whitepaper,
		PriceTrend:    "neutral",
		VolumeTrend:   "neutral",
	}

	switch {
	case p.PriceChange24h > bullishChangePct:
		signals.PriceTrend = "bullish"
	case p.PriceChange24h < bearishChangePct:
		signals.PriceTrend = "bearish"
	}

	switch {
	case p.Volume24h > highVolume:
		signals.VolumeTrend = "high"
	case p.Volume24h > 0 && p.Volume24h < lowVolume:
		signals.VolumeTrend = "low"
	}

	return signals, nil
}
