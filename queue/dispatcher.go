package queue

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"leadpilot/config"

	"github.com/robfig/cron/v3"
)

// Dispatcher wraps the managed push-queue/scheduler service. One-shot jobs are
// published with an optional delay; recurring jobs are cron schedules bound to
// a callback path. When no queue service URL is configured the dispatcher runs
// in local mode: robfig/cron for schedules, timers for delays, both delivering
// to the service's own callback endpoints.
//
// Delivery is at-least-once either way; callbacks are signed with HMAC-SHA256
// over the body.
type Dispatcher struct {
	cfg     config.QueueConfig
	baseURL string
	client  *http.Client
	logger  *log.Logger

	cron      *cron.Cron
	mu        sync.Mutex
	schedules map[string]cron.EntryID
	remoteIDs map[string]string
}

func NewDispatcher(cfg config.QueueConfig, baseURL string, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
		cron:      cron.New(),
		schedules: make(map[string]cron.EntryID),
		remoteIDs: make(map[string]string),
	}
}

// Start begins local cron processing. No-op in remote mode.
func (d *Dispatcher) Start() {
	if d.cfg.URL == "" {
		d.cron.Start()
		d.logger.Println("Dispatcher running in local mode")
	}
}

// Stop halts local cron processing
func (d *Dispatcher) Stop() {
	d.cron.Stop()
}

// Publish enqueues a one-shot job delivering payload to path after delay
func (d *Dispatcher) Publish(path string, payload interface{}, delay time.Duration) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode job payload: %w", err)
	}

	if d.cfg.URL == "" {
		if delay <= 0 {
			go d.deliver(path, body)
		} else {
			time.AfterFunc(delay, func() { d.deliver(path, body) })
		}
		return nil
	}

	req, err := http.NewRequest(http.MethodPost, d.cfg.URL+"/v2/publish/"+d.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+d.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Upstash-Retries", fmt.Sprintf("%d", d.cfg.MaxRetries))
	if delay > 0 {
		req.Header.Set("Upstash-Delay", fmt.Sprintf("%ds", int(delay.Seconds())))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("queue publish failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("queue publish rejected (%d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Schedule registers a recurring cron job delivering an empty payload to path.
// Re-registering the same name replaces the previous schedule.
func (d *Dispatcher) Schedule(name, cronExpr, path string) error {
	if d.cfg.URL == "" {
		d.mu.Lock()
		defer d.mu.Unlock()
		if id, ok := d.schedules[name]; ok {
			d.cron.Remove(id)
		}
		id, err := d.cron.AddFunc(cronExpr, func() { d.deliver(path, []byte("{}")) })
		if err != nil {
			return fmt.Errorf("failed to add cron schedule %s: %w", name, err)
		}
		d.schedules[name] = id
		return nil
	}

	req, err := http.NewRequest(http.MethodPost, d.cfg.URL+"/v2/schedules/"+d.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+d.cfg.Token)
	req.Header.Set("Upstash-Cron", cronExpr)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("schedule create failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("schedule create rejected (%d)", resp.StatusCode)
	}

	var created struct {
		ScheduleID string `json:"scheduleId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err == nil && created.ScheduleID != "" {
		d.mu.Lock()
		d.remoteIDs[name] = created.ScheduleID
		d.mu.Unlock()
	}
	return nil
}

// Unschedule cancels a recurring job. Already-published one-shot jobs are not
// retracted; in-flight sends complete regardless.
func (d *Dispatcher) Unschedule(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cfg.URL == "" {
		if id, ok := d.schedules[name]; ok {
			d.cron.Remove(id)
			delete(d.schedules, name)
		}
		return
	}

	scheduleID, ok := d.remoteIDs[name]
	if !ok {
		return
	}
	delete(d.remoteIDs, name)

	req, err := http.NewRequest(http.MethodDelete, d.cfg.URL+"/v2/schedules/"+scheduleID, nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+d.cfg.Token)
	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Printf("Failed to delete schedule %s: %v", name, err)
		return
	}
	resp.Body.Close()
}

// deliver posts a signed callback in local mode
func (d *Dispatcher) deliver(path string, body []byte) {
	req, err := http.NewRequest(http.MethodPost, d.baseURL+path, bytes.NewReader(body))
	if err != nil {
		d.logger.Printf("Failed to build callback request for %s: %v", path, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if d.cfg.SigningKey != "" {
		req.Header.Set("X-Queue-Signature", Sign(d.cfg.SigningKey, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Printf("Callback delivery to %s failed: %v", path, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		d.logger.Printf("Callback to %s returned %d", path, resp.StatusCode)
	}
}

// Sign computes the hex HMAC-SHA256 signature for a callback body
func Sign(signingKey string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches the body under signingKey
func VerifySignature(signingKey string, body []byte, signature string) bool {
	expected := Sign(signingKey, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
