package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"leadpilot/models"
)

var variablePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

var trackableLinkPattern = regexp.MustCompile(`href="(https?://[^"]+)"`)

// BuildVariables derives the personalization map from a lead, substituting
// fallback literals for absent fields
func BuildVariables(lead *models.Lead) map[string]string {
	firstName := strings.TrimSpace(lead.FirstName)
	if firstName == "" {
		firstName = "there"
	}

	fullName := strings.TrimSpace(strings.TrimSpace(lead.FirstName) + " " + strings.TrimSpace(lead.LastName))
	if fullName == "" {
		fullName = "there"
	}

	company := strings.TrimSpace(lead.Company)
	if company == "" {
		company = "your company"
	}

	industry := strings.TrimSpace(lead.Industry)
	if industry == "" {
		industry = "your industry"
	}

	city := strings.TrimSpace(lead.City)
	if city == "" {
		city = "your area"
	}

	return map[string]string{
		"firstName": firstName,
		"lastName":  strings.TrimSpace(lead.LastName),
		"fullName":  fullName,
		"company":   company,
		"industry":  industry,
		"city":      city,
		"state":     strings.TrimSpace(lead.State),
		"email":     lead.Email,
	}
}

// ReplaceVariables substitutes {{identifier}} tokens with matching map values.
// Tokens without a matching key are left untouched.
func ReplaceVariables(text string, vars map[string]string) string {
	return variablePattern.ReplaceAllStringFunc(text, func(token string) string {
		name := variablePattern.FindStringSubmatch(token)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return token
	})
}

// ExtractVariables returns the de-duplicated token names appearing in text,
// in order of first occurrence
func ExtractVariables(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, match := range variablePattern.FindAllStringSubmatch(text, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}
	return names
}

// PersonalizeTemplate applies the variable map to a template's subject and bodies
func PersonalizeTemplate(template *models.EmailTemplate, vars map[string]string) (subject, html, text string) {
	subject = ReplaceVariables(template.Subject, vars)
	html = ReplaceVariables(template.HTMLContent, vars)
	text = ReplaceVariables(template.TextContent, vars)
	return subject, html, text
}

// AddComplianceFooter appends the footer (with unsubscribe link) before the
// closing body tag, or at the end when no body tag is present
func AddComplianceFooter(html, footerText, unsubscribeURL string) string {
	footer := fmt.Sprintf(
		`<div style="margin-top:24px;padding-top:12px;border-top:1px solid #eee;font-size:12px;color:#888">`+
			`<p>%s</p><p><a href="%s">Unsubscribe</a></p></div>`,
		footerText, unsubscribeURL)
	return insertBeforeBodyClose(html, footer)
}

// AddTrackingPixel appends a 1x1 open-tracking image before the closing body
// tag, or at the end when no body tag is present
func AddTrackingPixel(html, pixelURL string) string {
	pixel := fmt.Sprintf(`<img src="%s" alt="" width="1" height="1" style="display:none">`, pixelURL)
	return insertBeforeBodyClose(html, pixel)
}

// WrapLinksForTracking rewrites every absolute http(s) href to a click-tracking
// redirect carrying the original URL as a query parameter. Links already
// pointing at an unsubscribe path are excluded.
func WrapLinksForTracking(html, baseURL string, campaignLeadID uint) string {
	return trackableLinkPattern.ReplaceAllStringFunc(html, func(match string) string {
		original := trackableLinkPattern.FindStringSubmatch(match)[1]
		if strings.Contains(original, "/unsubscribe") {
			return match
		}
		tracked := fmt.Sprintf("%s/track/click/%d?url=%s", baseURL, campaignLeadID, url.QueryEscape(original))
		return fmt.Sprintf(`href="%s"`, tracked)
	})
}

// ProcessEmailForSending composes footer, pixel, and link-wrapping in that
// order. Wrapping last means the freshly inserted unsubscribe link is visible
// to the exclusion check and never click-tracked.
func ProcessEmailForSending(html, footerText, baseURL string, campaignLeadID uint, unsubscribeToken string) string {
	unsubscribeURL := fmt.Sprintf("%s/unsubscribe/%s", baseURL, unsubscribeToken)
	pixelURL := fmt.Sprintf("%s/track/open/%d", baseURL, campaignLeadID)

	html = AddComplianceFooter(html, footerText, unsubscribeURL)
	html = AddTrackingPixel(html, pixelURL)
	html = WrapLinksForTracking(html, baseURL, campaignLeadID)
	return html
}

func insertBeforeBodyClose(html, fragment string) string {
	if idx := strings.LastIndex(html, "</body>"); idx != -1 {
		return html[:idx] + fragment + html[idx:]
	}
	return html + fragment
}
