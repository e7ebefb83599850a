package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/types"
)

func TestFuse_LegitimacyScore(t *testing.T) {
	tests := []struct {
		name      string
		sentiment float64
		risk      types.RiskLevel
		signals   types.TechnicalSignals
		want      float64
	}{
		{
			name: "neutral inputs keep the prior",
			risk: types.RiskUnknown,
			want: 0.5,
		},
		{
			name:      "positive sentiment and low risk",
			sentiment: 0.9,
			risk:      types.RiskLow,
			want:      0.98, // 0.5 + 0.18 + 0.3
		},
		{
			name:      "high risk subtracts",
			sentiment: 0.5,
			risk:      types.RiskHigh,
			want:      0.4, // 0.5 + 0.1 - 0.2
		},
		{
			name:      "technical corroboration",
			sentiment: 0,
			risk:      types.RiskMedium,
			signals: types.TechnicalSignals{
				MarketCap:     500_000,
				Volume24h:     50_000,
				HasWebsite:    true,
				HasWhitepaper: true,
			},
			want: 0.9, // 0.5 + 0.1 + (0.1 + 0.05 + 0.1 + 0.05)
		},
		{
			name:      "clamped at one",
			sentiment: 1.0,
			risk:      types.RiskLow,
			signals:   types.TechnicalSignals{MarketCap: 1e9, Volume24h: 1e8, HasWebsite: true, HasWhitepaper: true},
			want:      1.0,
		},
		{
			name:      "clamped at zero",
			sentiment: -1.0,
			risk:      types.RiskHigh,
			want:      0.1, // 0.5 - 0.2 - 0.2
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Fuse(tt.sentiment, tt.risk, tt.signals)
			assert.InDelta(t, tt.want, result.LegitimacyScore, 1e-9)
			assert.GreaterOrEqual(t, result.LegitimacyScore, 0.0)
			assert.LessOrEqual(t, result.LegitimacyScore, 1.0)
		})
	}
}

func TestFuse_Deterministic(t *testing.T) {
	signals := types.TechnicalSignals{MarketCap: 200_000, HasWebsite: true}
	a := Fuse(0.55, types.RiskLow, signals)
	b := Fuse(0.55, types.RiskLow, signals)

	assert.Equal(t, a.LegitimacyScore, b.LegitimacyScore)
	assert.Equal(t, a.Recommendation, b.Recommendation)
	assert.Equal(t, a.Priority, b.Priority)
}

func TestFuse_HighRiskAlwaysAvoid(t *testing.T) {
	for _, sentiment := range []float64{-1, 0, 0.5, 0.9, 1} {
		result := Fuse(sentiment, types.RiskHigh, types.TechnicalSignals{})
		assert.Equal(t, types.RecommendAvoid, result.Recommendation,
			"sentiment %.1f must not override high risk", sentiment)
		assert.Equal(t, types.PriorityHigh, result.Priority)
	}
}

func TestFuse_Recommendations(t *testing.T) {
	tests := []struct {
		sentiment float64
		risk      types.RiskLevel
		want      types.Recommendation
	}{
		{0.9, types.RiskLow, types.RecommendStrongBuy},
		{0.5, types.RiskLow, types.RecommendBuy},
		{0.5, types.RiskMedium, types.RecommendResearch},
		{0.3, types.RiskUnknown, types.RecommendResearch},
		{0.1, types.RiskLow, types.RecommendHold},
		{-0.5, types.RiskMedium, types.RecommendHold},
	}

	for _, tt := range tests {
		result := Fuse(tt.sentiment, tt.risk, types.TechnicalSignals{})
		assert.Equal(t, tt.want, result.Recommendation,
			"sentiment=%.1f risk=%s", tt.sentiment, tt.risk)
	}
}

func TestFuse_Priorities(t *testing.T) {
	tests := []struct {
		name      string
		sentiment float64
		risk      types.RiskLevel
		want      types.Priority
	}{
		{"very positive sentiment", 0.85, types.RiskMedium, types.PriorityHigh},
		{"high legitimacy", 0.7, types.RiskLow, types.PriorityHigh}, // 0.5+0.14+0.3 > 0.8
		{"moderate sentiment", 0.65, types.RiskMedium, types.PriorityMedium},
		{"quiet mention", 0.1, types.RiskMedium, types.PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Fuse(tt.sentiment, tt.risk, types.TechnicalSignals{})
			assert.Equal(t, tt.want, result.Priority)
		})
	}
}

type stubSentiment struct {
	score float64
	err   error
}

func (s stubSentiment) Score(context.Context, string) (float64, error) { return s.score, s.err }

type stubRisk struct {
	level types.RiskLevel
	err   error
}

func (s stubRisk) Assess(context.Context, types.Mention) (types.RiskLevel, error) {
	return s.level, s.err
}

type stubTechnical struct {
	signals types.TechnicalSignals
	err     error
}

func (s stubTechnical) Analyze(context.Context, types.Mention) (types.TechnicalSignals, error) {
	return s.signals, s.err
}

func TestFuser_Analyze(t *testing.T) {
	f := NewFuser(zap.NewNop(),
		stubSentiment{score: 0.9},
		stubRisk{level: types.RiskLow},
		stubTechnical{signals: types.TechnicalSignals{HasWebsite: true}},
	)

	result := f.Analyze(context.Background(), types.Mention{Source: "x", Identifier: "abc"})
	require.False(t, result.Degraded)
	assert.Equal(t, types.RecommendStrongBuy, result.Recommendation)
	assert.Equal(t, types.PriorityHigh, result.Priority)
	assert.InDelta(t, 1.0, result.LegitimacyScore, 1e-9) // 0.98 + 0.1 website, clamped
}

func TestFuser_Analyze_ScorerFailureDegrades(t *testing.T) {
	f := NewFuser(zap.NewNop(),
		stubSentiment{score: 0.9},
		stubRisk{err: errors.New("risk api down")},
		stubTechnical{},
	)

	result := f.Analyze(context.Background(), types.Mention{Source: "x", Identifier: "abc"})
	assert.True(t, result.Degraded)
	assert.Equal(t, types.RecommendResearchRequired, result.Recommendation)
	assert.Equal(t, types.RiskUnknown, result.RiskLevel)
	assert.InDelta(t, 0.5, result.LegitimacyScore, 1e-9)
	assert.Zero(t, result.SentimentScore)
}

func TestFuser_Analyze_NilScorersStayNeutral(t *testing.T) {
	f := NewFuser(zap.NewNop(), nil, nil, nil)

	result := f.Analyze(context.Background(), types.Mention{Source: "x", Identifier: "abc"})
	assert.False(t, result.Degraded)
	assert.Equal(t, types.RiskUnknown, result.RiskLevel)
	assert.InDelta(t, 0.5, result.LegitimacyScore, 1e-9)
}
