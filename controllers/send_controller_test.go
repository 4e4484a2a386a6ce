package controller

import (
	"net/http"
	"testing"

	"leadpilot/config"
	"leadpilot/models"
	"leadpilot/utils"
	"leadpilot/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newSendApp(t *testing.T, db *gorm.DB, mailer *utils.Mailer) *fiber.App {
	t.Helper()
	sc := NewSendController(db, discardLogger(), mailer, utils.NewRateLimiter(nil))

	app := fiber.New()
	app.Post("/jobs/send", sc.HandleSendJob)
	return app
}

func sendPayload(recipient *models.CampaignLead, email string) worker.SendJobPayload {
	return worker.SendJobPayload{
		CampaignLeadID: recipient.ID,
		CampaignID:     recipient.CampaignID,
		Email:          email,
		Subject:        "Hello Jane",
		HTMLBody:       "<html><body><p>Hi Jane</p></body></html>",
		TextBody:       "Hi Jane",
	}
}

func TestHandleSendJobSuccess(t *testing.T) {
	db := setupTestDB(t)
	mailer, _ := fakeProvider(t, "msg-abc")
	app := newSendApp(t, db, mailer)

	config.AppConfig.BaseURL = "http://app.test"

	campaign := createCampaignFixture(t, db, models.CampaignStatusActive)
	lead := createLead(t, db, "jane@acme.test")
	recipient := createRecipient(t, db, campaign.ID, lead.ID, models.RecipientStatusQueued)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/jobs/send", sendPayload(recipient, lead.Email)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var reloaded models.CampaignLead
	require.NoError(t, db.First(&reloaded, recipient.ID).Error)
	assert.Equal(t, models.RecipientStatusSent, reloaded.Status)
	assert.Equal(t, "msg-abc", reloaded.MessageID)
	assert.NotNil(t, reloaded.SentAt)
	assert.NotEmpty(t, reloaded.UnsubscribeToken)

	var reloadedCampaign models.Campaign
	require.NoError(t, db.First(&reloadedCampaign, campaign.ID).Error)
	assert.Equal(t, 1, reloadedCampaign.SentCount)

	var reloadedLead models.Lead
	require.NoError(t, db.First(&reloadedLead, lead.ID).Error)
	assert.Equal(t, "contacted", reloadedLead.Status)
	assert.NotNil(t, reloadedLead.LastContact)
}

func TestHandleSendJobIdempotentOnRedelivery(t *testing.T) {
	db := setupTestDB(t)
	mailer, server := fakeProvider(t, "msg-abc")
	app := newSendApp(t, db, mailer)

	campaign := createCampaignFixture(t, db, models.CampaignStatusActive)
	lead := createLead(t, db, "jane@acme.test")
	recipient := createRecipient(t, db, campaign.ID, lead.ID, models.RecipientStatusSent)

	server.Close() // any provider call would now fail loudly

	resp, err := app.Test(jsonRequest(http.MethodPost, "/jobs/send", sendPayload(recipient, lead.Email)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var reloadedCampaign models.Campaign
	require.NoError(t, db.First(&reloadedCampaign, campaign.ID).Error)
	assert.Zero(t, reloadedCampaign.SentCount)
}

func TestHandleSendJobSkipsUnsubscribed(t *testing.T) {
	db := setupTestDB(t)
	mailer, _ := fakeProvider(t, "msg-abc")
	app := newSendApp(t, db, mailer)

	campaign := createCampaignFixture(t, db, models.CampaignStatusActive)
	lead := createLead(t, db, "jane@acme.test")
	recipient := createRecipient(t, db, campaign.ID, lead.ID, models.RecipientStatusQueued)

	require.NoError(t, db.Create(&models.Unsubscribe{
		Email:  lead.Email,
		Token:  "tok-old",
		Reason: "link",
	}).Error)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/jobs/send", sendPayload(recipient, lead.Email)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var reloaded models.CampaignLead
	require.NoError(t, db.First(&reloaded, recipient.ID).Error)
	assert.Equal(t, models.RecipientStatusSkipped, reloaded.Status)
	assert.Empty(t, reloaded.MessageID)
}

func TestHandleSendJobProviderFailure(t *testing.T) {
	db := setupTestDB(t)
	mailer, server := fakeProvider(t, "msg-abc")
	server.Close()
	app := newSendApp(t, db, mailer)

	campaign := createCampaignFixture(t, db, models.CampaignStatusActive)
	lead := createLead(t, db, "jane@acme.test")
	recipient := createRecipient(t, db, campaign.ID, lead.ID, models.RecipientStatusQueued)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/jobs/send", sendPayload(recipient, lead.Email)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var reloaded models.CampaignLead
	require.NoError(t, db.First(&reloaded, recipient.ID).Error)
	assert.Equal(t, models.RecipientStatusFailed, reloaded.Status)
	assert.Equal(t, 1, reloaded.RetryCount)
	assert.NotEmpty(t, reloaded.LastError)
}

func TestHandleSendJobUnknownRecipient(t *testing.T) {
	db := setupTestDB(t)
	mailer, _ := fakeProvider(t, "msg-abc")
	app := newSendApp(t, db, mailer)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/jobs/send", worker.SendJobPayload{
		CampaignLeadID: 9999,
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
