package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"leadpilot/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKnownSources(t *testing.T) {
	cfg := config.ScraperConfig{}
	for _, source := range []string{"maps", "serp", "places"} {
		s, err := New(source, cfg)
		require.NoError(t, err)
		assert.Equal(t, source, s.Name())
	}

	_, err := New("linkedin", cfg)
	assert.Error(t, err)
}

func TestExtractEmails(t *testing.T) {
	text := "Reach us at Sales@Acme.COM or support@acme.com. " +
		"Ignore logo@2x.png and test@example.com and errors@sentry.io. " +
		"Also sales@acme.com again."

	emails := extractEmails(text)
	assert.Equal(t, []string{"sales@acme.com", "support@acme.com"}, emails)
}

func TestExtractEmailsNone(t *testing.T) {
	assert.Empty(t, extractEmails("no contact info on this page"))
}

func TestSplitName(t *testing.T) {
	first, last := splitName("Jane Doe")
	assert.Equal(t, "Jane", first)
	assert.Equal(t, "Doe", last)

	first, last = splitName("Cher")
	assert.Equal(t, "Cher", first)
	assert.Empty(t, last)

	first, last = splitName("  Mary Jane Watson ")
	assert.Equal(t, "Mary", first)
	assert.Equal(t, "Jane Watson", last)

	first, last = splitName("")
	assert.Empty(t, first)
	assert.Empty(t, last)
}

func TestSerpScrape(t *testing.T) {
	pages := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "google", r.URL.Query().Get("engine"))
		assert.Equal(t, "plumbers austin", r.URL.Query().Get("q"))
		assert.Equal(t, "k", r.URL.Query().Get("api_key"))

		pages++
		response := map[string]interface{}{"organic_results": []map[string]string{}}
		if pages == 1 {
			response["organic_results"] = []map[string]string{
				{
					"title":   "Acme Plumbing",
					"link":    "https://acmeplumbing.test",
					"snippet": "Call us or email info@acmeplumbing.test today",
				},
				{
					"title":   "No Contact Co",
					"link":    "https://nocontact.test",
					"snippet": "We have no email listed",
				},
			}
		}
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	s := NewSerpScraper(config.ScraperConfig{SerpAPIKey: "k", SerpBaseURL: server.URL})

	results, err := s.Scrape(context.Background(), "plumbers austin", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "info@acmeplumbing.test", results[0].Email)
	assert.Equal(t, "Acme Plumbing", results[0].Company)
	assert.Equal(t, "https://acmeplumbing.test", results[0].SourceURL)

	assert.Empty(t, results[1].Email)
	assert.Equal(t, "No Contact Co", results[1].Company)
}

func TestSerpScrapeHonorsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"organic_results": []map[string]string{
				{"title": "A", "link": "https://a.test", "snippet": "a@a.test"},
				{"title": "B", "link": "https://b.test", "snippet": "b@b.test"},
				{"title": "C", "link": "https://c.test", "snippet": "c@c.test"},
			},
		})
	}))
	defer server.Close()

	s := NewSerpScraper(config.ScraperConfig{SerpAPIKey: "k", SerpBaseURL: server.URL})

	results, err := s.Scrape(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSerpScrapeRequiresAPIKey(t *testing.T) {
	s := NewSerpScraper(config.ScraperConfig{})
	_, err := s.Scrape(context.Background(), "q", 5)
	assert.Error(t, err)
}

func TestPlacesScrapePagination(t *testing.T) {
	var tokens []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/places:searchText", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-Goog-Api-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Goog-FieldMask"))

		var body placesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		tokens = append(tokens, body.PageToken)

		response := map[string]interface{}{}
		if body.PageToken == "" {
			response["nextPageToken"] = "page-2"
			response["places"] = []map[string]interface{}{{
				"displayName":         map[string]string{"text": "Acme Dental"},
				"formattedAddress":    "1 Main St, Austin, TX",
				"websiteUri":          "https://acmedental.test",
				"nationalPhoneNumber": "(512) 555-0100",
				"googleMapsUri":       "https://maps.test/acme",
			}}
		}
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	p := NewPlacesScraper(config.ScraperConfig{PlacesAPIKey: "k", PlacesBaseURL: server.URL})

	results, err := p.Scrape(context.Background(), "dentists austin", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "Acme Dental", results[0].Company)
	assert.Equal(t, "https://acmedental.test", results[0].Website)
	assert.Equal(t, "(512) 555-0100", results[0].Phone)
	assert.Equal(t, "https://maps.test/acme", results[0].SourceURL)
	assert.Empty(t, results[0].Email, "places listings carry no email")

	assert.Equal(t, []string{"", "page-2"}, tokens)
}

func TestPlacesScrapeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	p := NewPlacesScraper(config.ScraperConfig{PlacesAPIKey: "k", PlacesBaseURL: server.URL})
	_, err := p.Scrape(context.Background(), "q", 5)
	assert.Error(t, err)
}
