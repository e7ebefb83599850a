// Package prefs holds user notification preferences: which channels are
// enabled for which priority tiers, keyword escalation, and content filters
// applied before a mention becomes a notification.
package prefs

import (
	"strings"
	"sync"

	"github.com/coinsentry/coinsentry/internal/types"
)

// ChannelPref enables a channel for priorities at or above MinPriority.
type ChannelPref struct {
	MinPriority types.Priority `yaml:"min_priority"`
}

// Enabled reports whether the channel accepts the given priority tier.
func (c ChannelPref) Enabled(p types.Priority) bool {
	return p.Rank() >= c.MinPriority.Rank()
}

// Filters drop mentions before analysis results become notifications. Zero
// values disable the corresponding check.
type Filters struct {
	MinPrice       float64           `yaml:"min_price"`
	MaxPrice       float64           `yaml:"max_price"`
	MinMarketCap   float64           `yaml:"min_market_cap"`
	MaxMarketCap   float64           `yaml:"max_market_cap"`
	AllowedRisk    []types.RiskLevel `yaml:"allowed_risk"`
	AllowedSources []string          `yaml:"allowed_sources"`
}

// Preferences is one complete preference document.
type Preferences struct {
	Channels           map[string]ChannelPref `yaml:"channels"`
	EscalationKeywords []string               `yaml:"escalation_keywords"`
	Filters            Filters                `yaml:"filters"`
}

// Default returns the built-in preferences used when no store is supplied:
// realtime receives everything, telegram and webhook receive medium and
// above, slack and email receive high only. No content filters.
func Default() Preferences {
	return Preferences{
		Channels: map[string]ChannelPref{
			"realtime": {MinPriority: types.PriorityLow},
			"telegram": {MinPriority: types.PriorityMedium},
			"webhook":  {MinPriority: types.PriorityMedium},
			"slack":    {MinPriority: types.PriorityHigh},
			"email":    {MinPriority: types.PriorityHigh},
		},
	}
}

// Escalates reports whether the text matches any escalation keyword,
// case-insensitively. Matching text is routed as if it were high priority.
func (p Preferences) Escalates(text string) bool {
	if len(p.EscalationKeywords) == 0 {
		return false
	}
	text = strings.ToLower(text)
	for _, kw := range p.EscalationKeywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Allows applies the content filters to an analyzed mention.
func (p Preferences) Allows(m types.Mention, a types.AnalysisResult) bool {
	f := p.Filters

	if f.MinPrice > 0 && m.Payload.Price < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && m.Payload.Price > f.MaxPrice {
		return false
	}
	if f.MinMarketCap > 0 && m.Payload.MarketCap < f.MinMarketCap {
		return false
	}
	if f.MaxMarketCap > 0 && m.Payload.MarketCap > f.MaxMarketCap {
		return false
	}
	if len(f.AllowedRisk) > 0 && !containsRisk(f.AllowedRisk, a.RiskLevel) {
		return false
	}
	if len(f.AllowedSources) > 0 && !containsFold(f.AllowedSources, m.Source) {
		return false
	}
	return true
}

func containsRisk(levels []types.RiskLevel, level types.RiskLevel) bool {
	for _, l := range levels {
		if l == level {
			return true
		}
	}
	return false
}

func containsFold(values []string, v string) bool {
	for _, s := range values {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// Provider yields the current preferences at notification time.
type Provider interface {
	Get() Preferences
}

// Static is a swappable in-memory Provider.
type Static struct {
	mu    sync.RWMutex
	prefs Preferences
}

func NewStatic(p Preferences) *Static {
	if p.Channels == nil {
		p.Channels = Default().Channels
	}
	return &Static{prefs: p}
}

func (s *Static) Get() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// Set replaces the preference document. Takes effect on the next routing
// decision; in-flight jobs keep their resolved channels.
func (s *Static) Set(p Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
}
