package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"leadpilot/config"
)

// Result is one raw contact record produced by an adapter, normalized into
// the lead shape. Email may be empty; the import step decides what to keep.
type Result struct {
	Email     string                 `json:"email"`
	FirstName string                 `json:"first_name"`
	LastName  string                 `json:"last_name"`
	Company   string                 `json:"company"`
	Website   string                 `json:"website"`
	Phone     string                 `json:"phone"`
	Address   string                 `json:"address"`
	City      string                 `json:"city"`
	State     string                 `json:"state"`
	SourceURL string                 `json:"source_url"`
	Raw       map[string]interface{} `json:"raw,omitempty"`
}

// Scraper is one data-source connector
type Scraper interface {
	Name() string
	Scrape(ctx context.Context, query string, limit int) ([]Result, error)
}

// New returns the adapter for a source name
func New(source string, cfg config.ScraperConfig) (Scraper, error) {
	switch source {
	case "maps":
		return NewMapsScraper(cfg), nil
	case "serp":
		return NewSerpScraper(cfg), nil
	case "places":
		return NewPlacesScraper(cfg), nil
	default:
		return nil, fmt.Errorf("unknown scraper source %q", source)
	}
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// extractEmails pulls plausible addresses out of free text, skipping the
// image filenames and example domains that litter scraped pages
func extractEmails(text string) []string {
	seen := make(map[string]bool)
	var emails []string
	for _, match := range emailPattern.FindAllString(text, -1) {
		email := strings.ToLower(match)
		if strings.HasSuffix(email, ".png") || strings.HasSuffix(email, ".jpg") ||
			strings.HasSuffix(email, ".gif") || strings.HasSuffix(email, ".svg") {
			continue
		}
		if strings.Contains(email, "example.com") || strings.Contains(email, "sentry") {
			continue
		}
		if !seen[email] {
			seen[email] = true
			emails = append(emails, email)
		}
	}
	return emails
}

// splitName splits a display name into first/last on the first space
func splitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	parts := strings.SplitN(name, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
