package scorers

import (
	"context"
	"strings"
)

// LexiconSentiment is a small fixed-lexicon sentiment scorer. It exists so
// the pipeline has a working default; production deployments are expected to
// plug in a real model behind the same interface.
type LexiconSentiment struct {
	positive []string
	negative []string
}

func NewLexiconSentiment() *LexiconSentiment {
	return &LexiconSentiment{
		positive: []string{
			"audited", "partnership", "mainnet", "launch", "listed",
			"open source", "whitepaper", "roadmap", "innovative",
		},
		negative: []string{
			"rug", "scam", "hack", "exploit", "delisted", "lawsuit",
			"abandoned", "honeypot",
		},
	}
}

// Score returns the normalized balance of positive and negative lexicon hits
// in [-1, 1]. Text with no hits scores 0.
func (s *LexiconSentiment) Score(_ context.Context, text string) (float64, error) {
	text = strings.ToLower(text)

	pos, neg := 0, 0
	for _, w := range s.positive {
		if strings.Contains(text, w) {
			pos++
		}
	}
	for _, w := range s.negative {
		if strings.Contains(text, w) {
			neg++
		}
	}

	total := pos + neg
	if total == 0 {
		return 0, nil
	}
	return float64(pos-neg) / float64(total), nil
}
