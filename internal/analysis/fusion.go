package analysis

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/types"
)

// Design constants for the fusion algorithm. The ordering of the derived
// checks in Fuse is first-match-wins and must not be rearranged.
const (
	neutralPrior    = 0.5
	sentimentWeight = 0.2

	riskAdjustLow    = 0.3
	riskAdjustMedium = 0.1
	riskAdjustHigh   = -0.2

	marketCapBonus  = 0.1
	volumeBonus     = 0.05
	websiteBonus    = 0.1
	whitepaperBonus = 0.05

	// Technical attributes only corroborate; their combined contribution is
	// capped so market data alone cannot dominate the score.
	technicalCap = 0.3

	marketCapThreshold = 100_000
	volumeThreshold    = 10_000
)

// Fuser runs the external scorers for a mention and fuses their outputs.
type Fuser struct {
	logger    *zap.Logger
	sentiment SentimentScorer
	risk      RiskScorer
	technical TechnicalScorer
}

// NewFuser wires the three scorer capabilities. Any scorer may be nil; a nil
// scorer contributes its neutral value without marking the result degraded.
func NewFuser(logger *zap.Logger, sentiment SentimentScorer, risk RiskScorer, technical TechnicalScorer) *Fuser {
	return &Fuser{
		logger:    logger.Named("analysis"),
		sentiment: sentiment,
		risk:      risk,
		technical: technical,
	}
}

// Analyze scores the mention with all configured scorers concurrently and
// fuses the results. Scorer errors degrade the result instead of failing:
// the returned AnalysisResult is always usable.
func (f *Fuser) Analyze(ctx context.Context, m types.Mention) types.AnalysisResult {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		sentiment float64
		risk      = types.RiskUnknown
		signals   types.TechnicalSignals
		failed    bool
	)

	scorerFailed := func(name string, err error) {
		mu.Lock()
		failed = true
		mu.Unlock()
		f.logger.Warn("Scorer failed, degrading analysis",
			zap.String("scorer", name),
			zap.String("mention", m.Key().String()),
			zap.Error(err),
		)
	}

	if f.sentiment != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			score, err := f.sentiment.Score(ctx, m.Payload.Text())
			if err != nil {
				scorerFailed("sentiment", err)
				return
			}
			mu.Lock()
			sentiment = clamp(score, -1, 1)
			mu.Unlock()
		}()
	}

	if f.risk != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			level, err := f.risk.Assess(ctx, m)
			if err != nil {
				scorerFailed("risk", err)
				return
			}
			mu.Lock()
			risk = level
			mu.Unlock()
		}()
	}

	if f.technical != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sig, err := f.technical.Analyze(ctx, m)
			if err != nil {
				scorerFailed("technical", err)
				return
			}
			mu.Lock()
			signals = sig
			mu.Unlock()
		}()
	}

	wg.Wait()

	if failed {
		return Degraded()
	}
	return Fuse(sentiment, risk, signals)
}

// Fuse combines scorer outputs into an AnalysisResult. Pure and
// deterministic apart from the ComputedAt timestamp.
func Fuse(sentiment float64, risk types.RiskLevel, signals types.TechnicalSignals) types.AnalysisResult {
	legitimacy := neutralPrior + sentiment*sentimentWeight

	switch risk {
	case types.RiskLow:
		legitimacy += riskAdjustLow
	case types.RiskMedium:
		legitimacy += riskAdjustMedium
	case types.RiskHigh:
		legitimacy += riskAdjustHigh
	}

	technical := 0.0
	if signals.MarketCap > marketCapThreshold {
		technical += marketCapBonus
	}
	if signals.Volume24h > volumeThreshold {
		technical += volumeBonus
	}
	if signals.HasWebsite {
		technical += websiteBonus
	}
	if signals.HasWhitepaper {
		technical += whitepaperBonus
	}
	legitimacy += min(technical, technicalCap)

	legitimacy = clamp(legitimacy, 0, 1)

	return types.AnalysisResult{
		SentimentScore:  sentiment,
		RiskLevel:       risk,
		Signals:         signals,
		LegitimacyScore: legitimacy,
		Recommendation:  recommend(sentiment, risk),
		Priority:        prioritize(sentiment, risk, legitimacy),
		ComputedAt:      time.Now(),
	}
}

// Degraded returns the neutral substitute used when a scorer fails.
func Degraded() types.AnalysisResult {
	return types.AnalysisResult{
		SentimentScore:  0,
		RiskLevel:       types.RiskUnknown,
		LegitimacyScore: neutralPrior,
		Recommendation:  types.RecommendResearchRequired,
		Priority:        types.PriorityLow,
		Degraded:        true,
		ComputedAt:      time.Now(),
	}
}

// recommend derives the verdict. Checks are ordered first-match-wins: high
// risk always yields avoid, regardless of how positive the sentiment is.
func recommend(sentiment float64, risk types.RiskLevel) types.Recommendation {
	switch {
	case risk == types.RiskHigh:
		return types.RecommendAvoid
	case sentiment > 0.7 && risk == types.RiskLow:
		return types.RecommendStrongBuy
	case sentiment > 0.4 && risk == types.RiskLow:
		return types.RecommendBuy
	case sentiment > 0.2:
		return types.RecommendResearch
	default:
		return types.RecommendHold
	}
}

// prioritize derives the delivery tier. High risk is high priority: warnings
// about likely scams are as urgent as strong opportunities.
func prioritize(sentiment float64, risk types.RiskLevel, legitimacy float64) types.Priority {
	switch {
	case risk == types.RiskHigh, sentiment > 0.8, legitimacy > 0.8:
		return types.PriorityHigh
	case sentiment > 0.6:
		return types.PriorityMedium
	default:
		return types.PriorityLow
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
