package controller

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"leadpilot/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTrackingApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()
	tc := NewTrackingController(db, discardLogger())

	app := fiber.New()
	app.Get("/track/open/:id", tc.HandleOpenTracking)
	app.Get("/track/click/:id", tc.HandleClickTracking)
	app.Get("/unsubscribe/:token", tc.HandleUnsubscribe)
	return app
}

func TestOpenTrackingFirstAndRepeat(t *testing.T) {
	db := setupTestDB(t)
	app := newTrackingApp(t, db)

	campaign := createCampaignFixture(t, db, models.CampaignStatusActive)
	lead := createLead(t, db, "jane@acme.test")
	recipient := createRecipient(t, db, campaign.ID, lead.ID, models.RecipientStatusSent)

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet,
			"/track/open/"+itoa(recipient.ID), nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/gif", resp.Header.Get("Content-Type"))
	}

	var reloaded models.CampaignLead
	require.NoError(t, db.First(&reloaded, recipient.ID).Error)
	assert.Equal(t, models.RecipientStatusOpened, reloaded.Status)
	assert.NotNil(t, reloaded.OpenedAt)
	assert.Equal(t, 3, reloaded.OpenCount)

	// The campaign aggregate only counts the first open
	var reloadedCampaign models.Campaign
	require.NoError(t, db.First(&reloadedCampaign, campaign.ID).Error)
	assert.Equal(t, 1, reloadedCampaign.OpenedCount)

	var events int64
	db.Model(&models.EmailEvent{}).Where("event_type = ?", "opened").Count(&events)
	assert.Equal(t, int64(3), events)
}

func TestOpenTrackingUnknownRecipientStillServesPixel(t *testing.T) {
	db := setupTestDB(t)
	app := newTrackingApp(t, db)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/track/open/9999", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/gif", resp.Header.Get("Content-Type"))
}

func TestClickTrackingRedirectsAndCounts(t *testing.T) {
	db := setupTestDB(t)
	app := newTrackingApp(t, db)

	campaign := createCampaignFixture(t, db, models.CampaignStatusActive)
	lead := createLead(t, db, "jane@acme.test")
	recipient := createRecipient(t, db, campaign.ID, lead.ID, models.RecipientStatusSent)

	target := "https://example.org/pricing?a=1"
	path := "/track/click/" + itoa(recipient.ID) + "?url=" + url.QueryEscape(target)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, target, resp.Header.Get("Location"))

	var reloaded models.CampaignLead
	require.NoError(t, db.First(&reloaded, recipient.ID).Error)
	assert.Equal(t, models.RecipientStatusClicked, reloaded.Status)
	assert.Equal(t, 1, reloaded.ClickCount)

	var reloadedCampaign models.Campaign
	require.NoError(t, db.First(&reloadedCampaign, campaign.ID).Error)
	assert.Equal(t, 1, reloadedCampaign.ClickedCount)

	var event models.EmailEvent
	require.NoError(t, db.Where("event_type = ?", "clicked").First(&event).Error)
	assert.Equal(t, target, event.URL)
}

func TestClickTrackingEmptyURLFallsBackToRoot(t *testing.T) {
	db := setupTestDB(t)
	app := newTrackingApp(t, db)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/track/click/9999", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestUnsubscribeFlow(t *testing.T) {
	db := setupTestDB(t)
	app := newTrackingApp(t, db)

	campaign := createCampaignFixture(t, db, models.CampaignStatusActive)
	lead := createLead(t, db, "jane@acme.test")
	recipient := createRecipient(t, db, campaign.ID, lead.ID, models.RecipientStatusSent)
	require.NoError(t, db.Model(recipient).Update("unsubscribe_token", "tok-123").Error)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/unsubscribe/tok-123", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var unsub models.Unsubscribe
	require.NoError(t, db.Where("email = ?", "jane@acme.test").First(&unsub).Error)
	assert.Equal(t, "link", unsub.Reason)
	require.NotNil(t, unsub.CampaignID)
	assert.Equal(t, campaign.ID, *unsub.CampaignID)

	var reloadedLead models.Lead
	require.NoError(t, db.First(&reloadedLead, lead.ID).Error)
	assert.Equal(t, "unsubscribed", reloadedLead.Status)

	var reloadedCampaign models.Campaign
	require.NoError(t, db.First(&reloadedCampaign, campaign.ID).Error)
	assert.Equal(t, 1, reloadedCampaign.UnsubscribedCount)

	// Hitting the link again must not double-count
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/unsubscribe/tok-123", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, db.First(&reloadedCampaign, campaign.ID).Error)
	assert.Equal(t, 1, reloadedCampaign.UnsubscribedCount)

	var unsubCount int64
	db.Model(&models.Unsubscribe{}).Count(&unsubCount)
	assert.Equal(t, int64(1), unsubCount)
}

func TestUnsubscribeUnknownToken(t *testing.T) {
	db := setupTestDB(t)
	app := newTrackingApp(t, db)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/unsubscribe/no-such-token", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
