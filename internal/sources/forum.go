package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/types"
)

// Forum scrapes announcement threads from an HTML forum index. A thread's
// relative URL is its identifier.
type Forum struct {
	logger *zap.Logger
	client *http.Client
	url    string
}

func NewForum(logger *zap.Logger, pageURL string, timeout time.Duration) *Forum {
	return &Forum{
		logger: logger.Named("forum"),
		client: &http.Client{Timeout: timeout},
		url:    pageURL,
	}
}

func (s *Forum) Name() string { return "forum" }

func (s *Forum) Scan(ctx context.Context) ([]types.Mention, error) {
	doc, err := s.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}

	base, _ := url.Parse(s.url)
	now := time.Now()

	var mentions []types.Mention
	doc.Find(".topic").Each(func(_ int, topic *goquery.Selection) {
		link := topic.Find("a.topic-title").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return
		}
		if base != nil {
			if resolved, err := base.Parse(href); err == nil {
				href = resolved.String()
			}
		}

		mentions = append(mentions, types.Mention{
			Identifier: href,
			Source:     s.Name(),
			Timestamp:  now,
			Payload: types.Payload{
				Name:        title,
				Description: strings.TrimSpace(topic.Find(".topic-excerpt").First().Text()),
				Author:      strings.TrimSpace(topic.Find(".topic-author").First().Text()),
				URL:         href,
			},
		})
	})

	return mentions, nil
}

func (s *Forum) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", sourceUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch forum index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forum returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse forum page: %w", err)
	}
	return doc, nil
}
