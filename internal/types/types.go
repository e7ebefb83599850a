package types

import (
	"fmt"
	"strings"
	"time"
)

// Priority ranks how urgently a notification should be delivered.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank returns a numeric rank for priority comparison. Higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// RiskLevel classifies how likely a mentioned project is to be fraudulent
// or otherwise hazardous.
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskUnknown RiskLevel = "unknown"
)

// Recommendation is the analyst-facing verdict derived from fused signals.
type Recommendation string

const (
	RecommendAvoid            Recommendation = "avoid"
	RecommendHold             Recommendation = "hold"
	RecommendResearch         Recommendation = "research"
	RecommendBuy              Recommendation = "buy"
	RecommendStrongBuy        Recommendation = "strong_buy"
	RecommendResearchRequired Recommendation = "research_required"
)

// ChannelStatus records the outcome of one channel's delivery attempt.
type ChannelStatus string

const (
	ChannelSuccess       ChannelStatus = "success"
	ChannelFailed        ChannelStatus = "failed"
	ChannelNotConfigured ChannelStatus = "not_configured"
)

// Key is the composite identity of a mention. Uniqueness is scoped to
// (Source, Identifier): the same identifier from two sources is two mentions.
type Key struct {
	Source     string
	Identifier string
}

func (k Key) String() string {
	return k.Source + "/" + k.Identifier
}

// Payload carries the project attributes a source connector was able to
// extract. Not every source fills every field; zero values mean "unknown".
type Payload struct {
	Name           string  `json:"name"`
	Symbol         string  `json:"symbol,omitempty"`
	Description    string  `json:"description,omitempty"`
	URL            string  `json:"url,omitempty"`
	Website        string  `json:"website,omitempty"`
	Whitepaper     bool    `json:"whitepaper,omitempty"`
	Repository     string  `json:"repository,omitempty"`
	Author         string  `json:"author,omitempty"`
	Price          float64 `json:"price,omitempty"`
	MarketCap      float64 `json:"market_cap,omitempty"`
	Volume24h      float64 `json:"volume_24h,omitempty"`
	PriceChange24h float64 `json:"price_change_24h,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

// Text returns the searchable text of the payload, used for keyword matching
// in scorers and the channel router. Always lowercase.
func (p Payload) Text() string {
	parts := []string{p.Name, p.Symbol, p.Description, p.Website, p.Repository}
	return strings.ToLower(strings.Join(parts, " "))
}

// Mention is a raw candidate record emitted by a source connector: a new
// token, repository, forum post, or similar project sighting. Immutable once
// created; consumed exactly once by the pipeline.
type Mention struct {
	Identifier string
	Source     string
	Payload    Payload
	Timestamp  time.Time
}

// Key returns the dedup identity of the mention.
func (m Mention) Key() Key {
	return Key{Source: m.Source, Identifier: m.Identifier}
}

// TechnicalSignals are the corroborating attributes extracted by the
// technical scorer.
type TechnicalSignals struct {
	MarketCap     float64
	Volume24h     float64
	HasWebsite    bool
	HasWhitepaper bool
	PriceTrend    string // bullish, bearish, neutral
	VolumeTrend   string // high, low, neutral
}

// AnalysisResult is the fused verdict for one mention. Derived
// deterministically from the mention plus the three scorer outputs; never
// mutated after creation.
type AnalysisResult struct {
	SentimentScore  float64
	RiskLevel       RiskLevel
	Signals         TechnicalSignals
	LegitimacyScore float64
	Recommendation  Recommendation
	Priority        Priority
	Degraded        bool // true when a scorer failed and neutral values were substituted
	ComputedAt      time.Time
}

// Notification pairs a mention with its analysis for delivery. Owned by the
// pipeline from creation until a DeliveryRecord is produced.
type Notification struct {
	ID                string
	CreatedAt         time.Time
	Source            string
	Mention           Mention
	Analysis          AnalysisResult
	Priority          Priority
	RequestedChannels []string // optional explicit channel set, normally empty
}

// Summary renders a one-line description for delivery channels and logs.
func (n Notification) Summary() string {
	name := n.Mention.Payload.Name
	if name == "" {
		name = n.Mention.Identifier
	}
	return fmt.Sprintf("[%s] %s (%s) legitimacy=%.2f risk=%s recommendation=%s",
		strings.ToUpper(string(n.Priority)), name, n.Source,
		n.Analysis.LegitimacyScore, n.Analysis.RiskLevel, n.Analysis.Recommendation)
}

// ChannelResult is one channel's outcome within a DeliveryRecord.
type ChannelResult struct {
	Channel string
	Status  ChannelStatus
	Detail  string // error text for failed entries
}

// DeliveryRecord is the write-once audit record produced for every terminal
// delivery job.
type DeliveryRecord struct {
	NotificationID string
	PerChannel     []ChannelResult
	SuccessCount   int
	FailureCount   int
	Attempts       int
	Failed         bool // job-level failure after exhausting attempts
	StoredAt       time.Time
}
