package analysis

import (
	"context"

	"github.com/coinsentry/coinsentry/internal/types"
)

// SentimentScorer scores free text in [-1, 1]. Implemented externally;
// internal/scorers ships a fixed-lexicon default.
type SentimentScorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// RiskScorer classifies the fraud/hazard risk of a mention.
type RiskScorer interface {
	Assess(ctx context.Context, m types.Mention) (types.RiskLevel, error)
}

// TechnicalScorer extracts corroborating market and web-presence signals.
type TechnicalScorer interface {
	Analyze(ctx context.Context, m types.Mention) (types.TechnicalSignals, error)
}
