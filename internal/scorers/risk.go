package scorers

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/types"
)

// Risk scoring weights and thresholds. Each matched keyword contributes
// keywordWeight; the total maps to a level through the two thresholds.
const (
	keywordWeight       = 2
	suspiciousWeight    = 1
	highRiskThreshold   = 6
	mediumRiskThreshold = 3
)

// riskKeywords are phrases that correlate with pump-and-dump and exit-scam
// promotion. Matched case-insensitively against the mention text.
var riskKeywords = []string{
	"guaranteed returns",
	"guaranteed profit",
	"risk free",
	"100x",
	"1000x",
	"get rich",
	"moon soon",
	"pump",
	"presale bonus",
	"limited time",
	"double your",
	"no audit",
	"anonymous team",
	"ponzi",
}

// suspiciousNameParts flag token names that imitate well-known projects or
// lean on hype branding.
var suspiciousNameParts = []string{
	"elon",
	"inu",
	"moon",
	"safe",
	"baby",
	"rocket",
	"gem",
}

// RiskAssessor is the default keyword-weighted risk classifier.
type RiskAssessor struct {
	logger *zap.Logger
}

func NewRiskAssessor(logger *zap.Logger) *RiskAssessor {
	return &RiskAssessor{logger: logger.Named("risk")}
}

// Assess scores the mention text against the risk lexicon and maps the total
// to a level. It never fails; the error return satisfies the scorer contract.
func (r *RiskAssessor) Assess(_ context.Context, m types.Mention) (types.RiskLevel, error) {
	text := m.Payload.Text()

	score := 0
	for _, kw := range riskKeywords {
		if strings.Contains(text, kw) {
			score += keywordWeight
		}
	}

	name := strings.ToLower(m.Payload.Name)
	for _, part := range suspiciousNameParts {
		if strings.Contains(name, part) {
			score += suspiciousWeight
		}
	}

	level := types.RiskLow
	switch {
	case score >= highRiskThreshold:
		level = types.RiskHigh
	case score >= mediumRiskThreshold:
		level = types.RiskMedium
	}

	if level != types.RiskLow {
		r.logger.Debug("Risk keywords matched",
			zap.String("mention", m.Key().String()),
			zap.Int("score", score),
			zap.String("level", string(level)),
		)
	}
	return level, nil
}
