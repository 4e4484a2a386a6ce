package queue

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadpilot/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	body := []byte(`{"campaign_lead_id":7}`)

	signature := Sign("secret-key", body)
	assert.True(t, VerifySignature("secret-key", body, signature))
	assert.False(t, VerifySignature("other-key", body, signature))
	assert.False(t, VerifySignature("secret-key", []byte("tampered"), signature))
	assert.False(t, VerifySignature("secret-key", body, ""))
}

func TestSignDeterministic(t *testing.T) {
	body := []byte("payload")
	assert.Equal(t, Sign("k", body), Sign("k", body))
	assert.NotEqual(t, Sign("k", body), Sign("k2", body))
}

func TestLocalPublishDeliversSignedCallback(t *testing.T) {
	received := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		received <- r
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewDispatcher(config.QueueConfig{SigningKey: "test-key"}, server.URL,
		log.New(io.Discard, "", 0))

	payload := map[string]uint{"campaign_lead_id": 7}
	require.NoError(t, d.Publish("/jobs/send", payload, 0))

	select {
	case r := <-received:
		assert.Equal(t, "/jobs/send", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		body := <-bodies
		var decoded map[string]uint
		require.NoError(t, json.Unmarshal(body, &decoded))
		assert.Equal(t, uint(7), decoded["campaign_lead_id"])
		assert.True(t, VerifySignature("test-key", body, r.Header.Get("X-Queue-Signature")))
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not delivered")
	}
}

func TestLocalPublishHonorsDelay(t *testing.T) {
	received := make(chan time.Time, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- time.Now()
	}))
	defer server.Close()

	d := NewDispatcher(config.QueueConfig{}, server.URL, log.New(io.Discard, "", 0))

	start := time.Now()
	require.NoError(t, d.Publish("/jobs/send", map[string]int{}, 100*time.Millisecond))

	select {
	case at := <-received:
		assert.GreaterOrEqual(t, at.Sub(start), 100*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("delayed callback was not delivered")
	}
}

func TestRemotePublishSendsQueueHeaders(t *testing.T) {
	var gotPath, gotAuth, gotDelay, gotRetries string
	queueServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotDelay = r.Header.Get("Upstash-Delay")
		gotRetries = r.Header.Get("Upstash-Retries")
		w.WriteHeader(http.StatusOK)
	}))
	defer queueServer.Close()

	d := NewDispatcher(config.QueueConfig{
		URL:        queueServer.URL,
		Token:      "qtoken",
		MaxRetries: 3,
	}, "http://app.example.com", log.New(io.Discard, "", 0))

	require.NoError(t, d.Publish("/jobs/send", map[string]int{}, 30*time.Second))

	assert.Equal(t, "/v2/publish/http://app.example.com/jobs/send", gotPath)
	assert.Equal(t, "Bearer qtoken", gotAuth)
	assert.Equal(t, "30s", gotDelay)
	assert.Equal(t, "3", gotRetries)
}

func TestScheduleReplaceAndUnschedule(t *testing.T) {
	d := NewDispatcher(config.QueueConfig{}, "http://localhost:0", log.New(io.Discard, "", 0))

	require.NoError(t, d.Schedule("campaign:1", "0 8 * * *", "/jobs/dispatch/1"))
	require.NoError(t, d.Schedule("campaign:1", "0 9 * * *", "/jobs/dispatch/1"))
	assert.Len(t, d.schedules, 1)

	d.Unschedule("campaign:1")
	assert.Empty(t, d.schedules)

	// Unscheduling something unknown is a no-op
	d.Unschedule("campaign:99")
}

func TestScheduleRejectsBadCron(t *testing.T) {
	d := NewDispatcher(config.QueueConfig{}, "http://localhost:0", log.New(io.Discard, "", 0))
	assert.Error(t, d.Schedule("bad", "not a cron expr", "/jobs/dispatch"))
}
