package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"leadpilot/config"

	"golang.org/x/time/rate"
)

const serpPageSize = 10

// SerpScraper queries a search-engine results API page by page and mines
// contact details out of the organic results
type SerpScraper struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewSerpScraper(cfg config.ScraperConfig) *SerpScraper {
	return &SerpScraper{
		apiKey:  cfg.SerpAPIKey,
		baseURL: cfg.SerpBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		// one request per second keeps us inside every search API's free tier
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (s *SerpScraper) Name() string { return "serp" }

type serpResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

func (s *SerpScraper) Scrape(ctx context.Context, query string, limit int) ([]Result, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("serp scraper: no API key configured")
	}

	var results []Result
	for start := 0; len(results) < limit; start += serpPageSize {
		if err := s.limiter.Wait(ctx); err != nil {
			return results, err
		}

		page, err := s.fetchPage(ctx, query, start)
		if err != nil {
			return results, err
		}
		if len(page.OrganicResults) == 0 {
			break
		}

		for _, item := range page.OrganicResults {
			raw := map[string]interface{}{
				"title":   item.Title,
				"link":    item.Link,
				"snippet": item.Snippet,
			}
			emails := extractEmails(item.Snippet)
			if len(emails) == 0 {
				results = append(results, Result{
					Company:   item.Title,
					Website:   item.Link,
					SourceURL: item.Link,
					Raw:       raw,
				})
			} else {
				for _, email := range emails {
					results = append(results, Result{
						Email:     email,
						Company:   item.Title,
						Website:   item.Link,
						SourceURL: item.Link,
						Raw:       raw,
					})
				}
			}
			if len(results) >= limit {
				break
			}
		}
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *SerpScraper) fetchPage(ctx context.Context, query string, start int) (*serpResponse, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("start", fmt.Sprintf("%d", start))
	params.Set("api_key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serp request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serp API returned %d", resp.StatusCode)
	}

	var page serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode serp response: %w", err)
	}
	return &page, nil
}
