package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"leadpilot/config"

	"golang.org/x/time/rate"
)

// PlacesScraper queries a text-search places API and normalizes business
// listings. Listings rarely expose an email directly; rows come back with the
// website and phone filled in and the import step decides what to do with them.
type PlacesScraper struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewPlacesScraper(cfg config.ScraperConfig) *PlacesScraper {
	return &PlacesScraper{
		apiKey:  cfg.PlacesAPIKey,
		baseURL: cfg.PlacesBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (p *PlacesScraper) Name() string { return "places" }

type placesRequest struct {
	TextQuery string `json:"textQuery"`
	PageToken string `json:"pageToken,omitempty"`
}

type placesResponse struct {
	Places []struct {
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		FormattedAddress    string `json:"formattedAddress"`
		WebsiteURI          string `json:"websiteUri"`
		NationalPhoneNumber string `json:"nationalPhoneNumber"`
		GoogleMapsURI       string `json:"googleMapsUri"`
	} `json:"places"`
	NextPageToken string `json:"nextPageToken"`
}

func (p *PlacesScraper) Scrape(ctx context.Context, query string, limit int) ([]Result, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("places scraper: no API key configured")
	}

	var results []Result
	pageToken := ""
	for len(results) < limit {
		if err := p.limiter.Wait(ctx); err != nil {
			return results, err
		}

		page, err := p.fetchPage(ctx, query, pageToken)
		if err != nil {
			return results, err
		}
		if len(page.Places) == 0 {
			break
		}

		for _, place := range page.Places {
			results = append(results, Result{
				Company:   place.DisplayName.Text,
				Website:   place.WebsiteURI,
				Phone:     place.NationalPhoneNumber,
				Address:   place.FormattedAddress,
				SourceURL: place.GoogleMapsURI,
				Raw: map[string]interface{}{
					"displayName":      place.DisplayName.Text,
					"formattedAddress": place.FormattedAddress,
					"websiteUri":       place.WebsiteURI,
				},
			})
			if len(results) >= limit {
				break
			}
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return results, nil
}

func (p *PlacesScraper) fetchPage(ctx context.Context, query, pageToken string) (*placesResponse, error) {
	body, err := json.Marshal(placesRequest{TextQuery: query, PageToken: pageToken})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", p.apiKey)
	req.Header.Set("X-Goog-FieldMask",
		"places.displayName,places.formattedAddress,places.websiteUri,places.nationalPhoneNumber,places.googleMapsUri,nextPageToken")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places API returned %d", resp.StatusCode)
	}

	var page placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode places response: %w", err)
	}
	return &page, nil
}
