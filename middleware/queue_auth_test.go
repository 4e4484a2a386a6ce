package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"leadpilot/config"
	"leadpilot/queue"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProtectedApp() *fiber.App {
	app := fiber.New()
	app.Post("/jobs/test", QueueAuth(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app
}

func TestQueueAuthBypassedWithoutSigningKey(t *testing.T) {
	config.AppConfig.Queue.SigningKey = ""
	app := newProtectedApp()

	req := httptest.NewRequest(http.MethodPost, "/jobs/test", bytes.NewReader([]byte("{}")))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestQueueAuthRejectsMissingSignature(t *testing.T) {
	config.AppConfig.Queue.SigningKey = "sig-key"
	t.Cleanup(func() { config.AppConfig.Queue.SigningKey = "" })
	app := newProtectedApp()

	req := httptest.NewRequest(http.MethodPost, "/jobs/test", bytes.NewReader([]byte("{}")))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestQueueAuthRejectsTamperedBody(t *testing.T) {
	config.AppConfig.Queue.SigningKey = "sig-key"
	t.Cleanup(func() { config.AppConfig.Queue.SigningKey = "" })
	app := newProtectedApp()

	req := httptest.NewRequest(http.MethodPost, "/jobs/test", bytes.NewReader([]byte(`{"tampered":true}`)))
	req.Header.Set("X-Queue-Signature", queue.Sign("sig-key", []byte("{}")))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestQueueAuthAcceptsValidSignature(t *testing.T) {
	config.AppConfig.Queue.SigningKey = "sig-key"
	t.Cleanup(func() { config.AppConfig.Queue.SigningKey = "" })
	app := newProtectedApp()

	body := []byte(`{"campaign_lead_id":7}`)
	req := httptest.NewRequest(http.MethodPost, "/jobs/test", bytes.NewReader(body))
	req.Header.Set("X-Queue-Signature", queue.Sign("sig-key", body))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
