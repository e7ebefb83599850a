package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/types"
)

// repoSearchResult matches the search endpoint of a code-hosting API.
type repoSearchResult struct {
	Items []struct {
		FullName    string `json:"full_name"`
		HTMLURL     string `json:"html_url"`
		Description string `json:"description"`
		CreatedAt   string `json:"created_at"`
		Owner       struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"items"`
}

// Codehost polls a repository search API for fresh crypto projects.
type Codehost struct {
	logger *zap.Logger
	client *http.Client
	url    string
	apiKey string
}

func NewCodehost(logger *zap.Logger, url, apiKey string, timeout time.Duration) *Codehost {
	return &Codehost{
		logger: logger.Named("codehost"),
		client: &http.Client{Timeout: timeout},
		url:    url,
		apiKey: apiKey,
	}
}

func (s *Codehost) Name() string { return "codehost" }

func (s *Codehost) Scan(ctx context.Context) ([]types.Mention, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", sourceUserAgent)
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search repositories: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("repository search returned %s", resp.Status)
	}

	var result repoSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}

	mentions := make([]types.Mention, 0, len(result.Items))
	for _, item := range result.Items {
		if item.FullName == "" {
			continue
		}
		createdAt := time.Now()
		if t, err := time.Parse(time.RFC3339, item.CreatedAt); err == nil {
			createdAt = t
		}
		mentions = append(mentions, types.Mention{
			Identifier: item.FullName,
			Source:     s.Name(),
			Timestamp:  createdAt,
			Payload: types.Payload{
				Name:        item.FullName,
				Description: item.Description,
				URL:         item.HTMLURL,
				Repository:  item.HTMLURL,
				Author:      item.Owner.Login,
				CreatedAt:   createdAt,
			},
		})
	}
	return mentions, nil
}
