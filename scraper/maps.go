package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"leadpilot/config"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"
)

// MapsScraper drives a headless browser against the public maps search page.
// It is the fallback for when no API key is available: slower, noisier, and
// limited to what the rendered page exposes (names, links, occasionally a
// mailto: on the listing).
type MapsScraper struct {
	headless bool
	limiter  *rate.Limiter
}

func NewMapsScraper(cfg config.ScraperConfig) *MapsScraper {
	return &MapsScraper{
		headless: cfg.ChromeHeadless,
		// browser navigations are expensive and maps is quick to throttle
		limiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
}

func (m *MapsScraper) Name() string { return "maps" }

func (m *MapsScraper) Scrape(ctx context.Context, query string, limit int) ([]Result, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, 2*time.Minute)
	defer cancelTimeout()

	searchURL := "https://www.google.com/maps/search/" + url.PathEscape(query)

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(searchURL),
		chromedp.Sleep(4*time.Second),
		// scroll the results feed to force more listings to render
		chromedp.Evaluate(`(() => {
			const feed = document.querySelector('div[role="feed"]');
			if (feed) { feed.scrollTop = feed.scrollHeight; }
		})()`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("maps navigation failed: %w", err)
	}

	return m.parseListings(html, searchURL, limit)
}

func (m *MapsScraper) parseListings(html, sourceURL string, limit int) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse maps page: %w", err)
	}

	var results []Result
	doc.Find(`div[role="feed"] div[role="article"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		name := strings.TrimSpace(sel.AttrOr("aria-label", ""))
		if name == "" {
			return true
		}

		result := Result{
			Company:   name,
			SourceURL: sourceURL,
			Raw:       map[string]interface{}{"aria_label": name},
		}

		// listing cards sometimes carry an external website link
		sel.Find(`a[data-value="Website"]`).Each(func(_ int, link *goquery.Selection) {
			result.Website = link.AttrOr("href", "")
		})
		if emails := extractEmails(sel.Text()); len(emails) > 0 {
			result.Email = emails[0]
		}

		results = append(results, result)
		return len(results) < limit
	})

	// mailto: links anywhere on the page are the best email source maps gives us
	if len(results) > 0 {
		doc.Find(`a[href^="mailto:"]`).Each(func(i int, link *goquery.Selection) {
			if i < len(results) && results[i].Email == "" {
				results[i].Email = strings.TrimPrefix(link.AttrOr("href", ""), "mailto:")
			}
		})
	}

	return results, nil
}
