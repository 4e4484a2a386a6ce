package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"leadpilot/config"
	"leadpilot/models"
	"leadpilot/queue"
	"leadpilot/utils"
	"leadpilot/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(t.TempDir()+"/test.db"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))
	return db
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func testQueue() *queue.Dispatcher {
	return queue.NewDispatcher(config.QueueConfig{}, "http://localhost:0", discardLogger())
}

// fakeProvider runs an httptest server that accepts sends and returns a fixed
// message id, and a Mailer pointed at it
func fakeProvider(t *testing.T, messageID string) (*utils.Mailer, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": messageID})
	}))
	t.Cleanup(server.Close)

	mailer := utils.NewMailer(config.Config{
		Provider: config.ProviderConfig{APIKey: "test-key", BaseURL: server.URL},
	})
	return mailer, server
}

func jsonRequest(method, path string, payload interface{}) *http.Request {
	var body io.Reader
	if payload != nil {
		encoded, _ := json.Marshal(payload)
		body = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded
}

func createLead(t *testing.T, db *gorm.DB, email string) *models.Lead {
	t.Helper()
	lead := &models.Lead{Email: email, FirstName: "Jane", Company: "Acme", Status: "new"}
	require.NoError(t, db.Create(lead).Error)
	return lead
}

func createCampaignFixture(t *testing.T, db *gorm.DB, status string) *models.Campaign {
	t.Helper()

	template := &models.EmailTemplate{
		Name:        "intro",
		Subject:     "Hello {{firstName}}",
		HTMLContent: "<p>Hi {{firstName}}</p>",
	}
	require.NoError(t, db.Create(template).Error)

	campaign := &models.Campaign{
		Name:              "fixture",
		TemplateID:        &template.ID,
		FromEmail:         "sales@sender.test",
		Status:            status,
		DailyLimit:        50,
		SendWindowStart:   "00:00",
		SendWindowEnd:     "23:59",
		SendDays:          "1,2,3,4,5,6,7",
		DelayBetweenSends: 0,
		Timezone:          "UTC",
	}
	require.NoError(t, db.Create(campaign).Error)
	return campaign
}

func createRecipient(t *testing.T, db *gorm.DB, campaignID, leadID uint, status string) *models.CampaignLead {
	t.Helper()
	recipient := &models.CampaignLead{
		CampaignID: campaignID,
		LeadID:     leadID,
		Status:     status,
	}
	require.NoError(t, db.Create(recipient).Error)
	return recipient
}

func newCampaignApp(t *testing.T, db *gorm.DB) (*fiber.App, *CampaignController) {
	t.Helper()

	q := testQueue()
	dispatcher := worker.NewCampaignDispatcher(db, utils.NewRateLimiter(nil), q, discardLogger())
	cc := NewCampaignController(db, discardLogger(), dispatcher, q)

	app := fiber.New()
	app.Post("/api/v1/campaigns", cc.CreateCampaign)
	app.Get("/api/v1/campaigns", cc.GetCampaigns)
	app.Get("/api/v1/campaigns/:id", cc.GetCampaign)
	app.Put("/api/v1/campaigns/:id", cc.UpdateCampaign)
	app.Delete("/api/v1/campaigns/:id", cc.DeleteCampaign)
	app.Post("/api/v1/campaigns/:id/recipients", cc.AddRecipients)
	app.Get("/api/v1/campaigns/:id/stats", cc.GetCampaignStats)
	app.Post("/api/v1/campaigns/:id/start", cc.StartCampaign)
	app.Post("/api/v1/campaigns/:id/pause", cc.PauseCampaign)
	app.Post("/api/v1/campaigns/:id/resume", cc.ResumeCampaign)
	app.Post("/api/v1/campaigns/:id/cancel", cc.CancelCampaign)
	return app, cc
}
