package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"leadpilot/config"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// OutgoingEmail is one send request to the transactional provider
type OutgoingEmail struct {
	FromName string
	From     string
	To       string
	ReplyTo  string
	Subject  string
	HTML     string
	Text     string
	Headers  map[string]string
}

// Mailer sends through the transactional email provider's HTTP API,
// falling back to plain SMTP when no provider key is configured
type Mailer struct {
	apiKey  string
	baseURL string
	client  *http.Client

	smtpHost     string
	smtpPort     int
	smtpUsername string
	smtpPassword string
}

func NewMailer(cfg config.Config) *Mailer {
	return &Mailer{
		apiKey:       cfg.Provider.APIKey,
		baseURL:      cfg.Provider.BaseURL,
		client:       &http.Client{Timeout: 30 * time.Second},
		smtpHost:     cfg.SMTPHost,
		smtpPort:     cfg.SMTPPort,
		smtpUsername: cfg.SMTPUsername,
		smtpPassword: cfg.SMTPPassword,
	}
}

// Send delivers one email and returns the provider message id
func (m *Mailer) Send(email OutgoingEmail) (string, error) {
	if m.apiKey == "" {
		return m.sendSMTP(email)
	}
	return m.sendProvider(email)
}

type providerSendRequest struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	ReplyTo string            `json:"reply_to,omitempty"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html,omitempty"`
	Text    string            `json:"text,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type providerSendResponse struct {
	ID string `json:"id"`
}

type providerErrorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (m *Mailer) sendProvider(email OutgoingEmail) (string, error) {
	from := email.From
	if email.FromName != "" {
		from = fmt.Sprintf("%s <%s>", email.FromName, email.From)
	}

	body, err := json.Marshal(providerSendRequest{
		From:    from,
		To:      []string{email.To},
		ReplyTo: email.ReplyTo,
		Subject: email.Subject,
		HTML:    email.HTML,
		Text:    email.Text,
		Headers: email.Headers,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode send request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, m.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var provErr providerErrorResponse
		if json.Unmarshal(respBody, &provErr) == nil && provErr.Message != "" {
			return "", fmt.Errorf("provider rejected send (%d): %s", resp.StatusCode, provErr.Message)
		}
		return "", fmt.Errorf("provider rejected send (%d)", resp.StatusCode)
	}

	var sendResp providerSendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		return "", fmt.Errorf("failed to decode provider response: %w", err)
	}
	if sendResp.ID == "" {
		return "", fmt.Errorf("provider returned no message id")
	}
	return sendResp.ID, nil
}

// sendSMTP is the development transport; the message id is generated locally
// since SMTP gives us nothing to correlate webhooks against
func (m *Mailer) sendSMTP(email OutgoingEmail) (string, error) {
	if m.smtpHost == "" {
		return "", fmt.Errorf("no email provider API key and no SMTP host configured")
	}

	msg := gomail.NewMessage()
	if email.FromName != "" {
		msg.SetAddressHeader("From", email.From, email.FromName)
	} else {
		msg.SetHeader("From", email.From)
	}
	msg.SetHeader("To", email.To)
	msg.SetHeader("Subject", email.Subject)
	if email.ReplyTo != "" {
		msg.SetHeader("Reply-To", email.ReplyTo)
	}
	for name, value := range email.Headers {
		msg.SetHeader(name, value)
	}
	if email.Text != "" {
		msg.SetBody("text/plain", email.Text)
		msg.AddAlternative("text/html", email.HTML)
	} else {
		msg.SetBody("text/html", email.HTML)
	}

	dialer := gomail.NewDialer(m.smtpHost, m.smtpPort, m.smtpUsername, m.smtpPassword)
	if err := dialer.DialAndSend(msg); err != nil {
		return "", fmt.Errorf("smtp send failed: %w", err)
	}
	return "smtp-" + uuid.New().String(), nil
}
