package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/types"
)

// darkwebFeed is the intelligence feed document.
type darkwebFeed struct {
	Entries []struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Content  string `json:"content"`
		URL      string `json:"url"`
		PostedAt string `json:"posted_at"`
	} `json:"entries"`
}

// Darkweb polls a slow-cadence intelligence feed. Entries that match none of
// the monitored keywords are dropped before they enter the pipeline.
type Darkweb struct {
	logger   *zap.Logger
	client   *http.Client
	url      string
	keywords []string
}

func NewDarkweb(logger *zap.Logger, feedURL string, keywords []string, timeout time.Duration) *Darkweb {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &Darkweb{
		logger:   logger.Named("darkweb"),
		client:   &http.Client{Timeout: timeout},
		url:      feedURL,
		keywords: lowered,
	}
}

func (s *Darkweb) Name() string { return "darkweb" }

func (s *Darkweb) Scan(ctx context.Context) ([]types.Mention, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", sourceUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	var feed darkwebFeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	var mentions []types.Mention
	for _, e := range feed.Entries {
		if e.ID == "" || !s.relevant(e.Title+" "+e.Content) {
			continue
		}
		postedAt := time.Now()
		if t, err := time.Parse(time.RFC3339, e.PostedAt); err == nil {
			postedAt = t
		}
		mentions = append(mentions, types.Mention{
			Identifier: e.ID,
			Source:     s.Name(),
			Timestamp:  postedAt,
			Payload: types.Payload{
				Name:        e.Title,
				Description: e.Content,
				URL:         e.URL,
				CreatedAt:   postedAt,
			},
		})
	}
	return mentions, nil
}

// relevant applies the keyword prefilter. An empty keyword list admits
// everything.
func (s *Darkweb) relevant(text string) bool {
	if len(s.keywords) == 0 {
		return true
	}
	text = strings.ToLower(text)
	for _, kw := range s.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
