package controller

import (
	"encoding/csv"
	"fmt"
	"log"
	"strings"
	"time"

	"leadpilot/models"
	"leadpilot/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type LeadController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewLeadController(db *gorm.DB, logger *log.Logger) *LeadController {
	return &LeadController{DB: db, Logger: logger}
}

type leadInput struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Industry  string `json:"industry"`
	City      string `json:"city"`
	State     string `json:"state"`
	Position  string `json:"position"`
	Phone     string `json:"phone"`
	Website   string `json:"website"`
	Source    string `json:"source"`
}

func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	var input leadInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation failed",
			"details": err.Error(),
		})
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))

	var existing models.Lead
	if err := lc.DB.Where("email = ?", email).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "A lead with this email already exists",
			"lead_id": existing.ID,
		})
	}

	source := input.Source
	if source == "" {
		source = "manual"
	}

	lead := models.Lead{
		Email:     email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Company:   input.Company,
		Industry:  input.Industry,
		City:      input.City,
		State:     input.State,
		Position:  input.Position,
		Phone:     input.Phone,
		Website:   input.Website,
		Status:    "new",
		Source:    source,
	}
	if err := lc.DB.Create(&lead).Error; err != nil {
		lc.Logger.Printf("Failed to create lead: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create lead",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Lead created successfully",
		"lead":    lead,
	})
}

func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := lc.DB.Model(&models.Lead{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if source := c.Query("source"); source != "" {
		query = query.Where("source = ?", source)
	}
	if search := c.Query("search"); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(company) LIKE ?",
			like, like, like, like)
	}

	var total int64
	query.Count(&total)

	var leads []models.Lead
	if err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&leads).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch leads",
		})
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  leads,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	var lead models.Lead
	if err := lc.DB.Preload("LeadTags").Preload("CustomFields").
		First(&lead, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Lead not found",
		})
	}
	return c.JSON(lead)
}

func (lc *LeadController) UpdateLead(c *fiber.Ctx) error {
	var lead models.Lead
	if err := lc.DB.First(&lead, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Lead not found",
		})
	}

	var input leadInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}

	updates := map[string]interface{}{}
	if input.Email != "" {
		email := strings.ToLower(strings.TrimSpace(input.Email))
		if email != lead.Email {
			var existing models.Lead
			if err := lc.DB.Where("email = ? AND id <> ?", email, lead.ID).First(&existing).Error; err == nil {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": "A lead with this email already exists",
				})
			}
			// Changing the address invalidates any previous verification
			updates["email"] = email
			updates["is_verified"] = false
			updates["verification_status"] = ""
			updates["verified_at"] = nil
		}
	}
	if input.FirstName != "" {
		updates["first_name"] = input.FirstName
	}
	if input.LastName != "" {
		updates["last_name"] = input.LastName
	}
	if input.Company != "" {
		updates["company"] = input.Company
	}
	if input.Industry != "" {
		updates["industry"] = input.Industry
	}
	if input.City != "" {
		updates["city"] = input.City
	}
	if input.State != "" {
		updates["state"] = input.State
	}
	if input.Position != "" {
		updates["position"] = input.Position
	}
	if input.Phone != "" {
		updates["phone"] = input.Phone
	}
	if input.Website != "" {
		updates["website"] = input.Website
	}

	if len(updates) > 0 {
		if err := lc.DB.Model(&lead).Updates(updates).Error; err != nil {
			lc.Logger.Printf("Failed to update lead %d: %v", lead.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update lead",
			})
		}
	}

	return c.JSON(fiber.Map{
		"message": "Lead updated successfully",
		"lead":    lead,
	})
}

func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	var lead models.Lead
	if err := lc.DB.First(&lead, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Lead not found",
		})
	}

	tx := lc.DB.Begin()
	if err := tx.Where("lead_id = ?", lead.ID).Delete(&models.LeadTag{}).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete lead",
		})
	}
	if err := tx.Where("lead_id = ?", lead.ID).Delete(&models.LeadCustomField{}).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete lead",
		})
	}
	if err := tx.Delete(&lead).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete lead",
		})
	}
	tx.Commit()

	return c.JSON(fiber.Map{
		"message": "Lead deleted successfully",
	})
}

// VerifyLead runs the syntax and MX check for one lead's address
func (lc *LeadController) VerifyLead(c *fiber.Ctx) error {
	var lead models.Lead
	if err := lc.DB.First(&lead, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Lead not found",
		})
	}

	status := utils.VerifyEmailAddress(lead.Email)
	now := time.Now()

	updates := map[string]interface{}{
		"verification_status": status,
		"is_verified":         status == utils.VerificationValid,
		"verified_at":         now,
	}
	if status == utils.VerificationValid && lead.Status == "new" {
		updates["status"] = "verified"
	}
	if err := lc.DB.Model(&lead).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record verification",
		})
	}

	return c.JSON(fiber.Map{
		"lead_id":             lead.ID,
		"email":               lead.Email,
		"verification_status": status,
	})
}

var csvHeader = []string{
	"email", "first_name", "last_name", "company", "industry",
	"city", "state", "position", "phone", "website",
}

// ImportLeads accepts a CSV upload (multipart field "file") with the standard
// header row. Rows with missing or duplicate emails are counted, not fatal.
func (lc *LeadController) ImportLeads(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "CSV file is required (multipart field 'file')",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "CSV file is empty or malformed",
		})
	}

	colIndex := map[string]int{}
	for i, name := range header {
		colIndex[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := colIndex["email"]; !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "CSV must have an 'email' column",
		})
	}

	field := func(row []string, name string) string {
		idx, ok := colIndex[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	imported := 0
	skipped := 0
	for {
		row, err := reader.Read()
		if err != nil {
			break
		}

		email := strings.ToLower(field(row, "email"))
		if email == "" || !utils.ValidateEmailSyntax(email) {
			skipped++
			continue
		}

		lead := models.Lead{
			Email:     email,
			FirstName: field(row, "first_name"),
			LastName:  field(row, "last_name"),
			Company:   field(row, "company"),
			Industry:  field(row, "industry"),
			City:      field(row, "city"),
			State:     field(row, "state"),
			Position:  field(row, "position"),
			Phone:     field(row, "phone"),
			Website:   field(row, "website"),
			Status:    "new",
			Source:    "csv",
		}
		if err := lc.DB.Create(&lead).Error; err != nil {
			// duplicate email
			skipped++
			continue
		}
		imported++
	}

	lc.Logger.Printf("CSV import: %d imported, %d skipped", imported, skipped)

	return c.JSON(fiber.Map{
		"message":  "Import completed",
		"imported": imported,
		"skipped":  skipped,
	})
}

// ExportLeads streams the lead list as a CSV download, honoring the same
// status/source filters as the list endpoint
func (lc *LeadController) ExportLeads(c *fiber.Ctx) error {
	query := lc.DB.Model(&models.Lead{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if source := c.Query("source"); source != "" {
		query = query.Where("source = ?", source)
	}

	var leads []models.Lead
	if err := query.Order("id").Find(&leads).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch leads",
		})
	}

	var sb strings.Builder
	writer := csv.NewWriter(&sb)
	writer.Write(append(csvHeader, "status", "source"))
	for _, lead := range leads {
		writer.Write([]string{
			lead.Email, lead.FirstName, lead.LastName, lead.Company, lead.Industry,
			lead.City, lead.State, lead.Position, lead.Phone, lead.Website,
			lead.Status, lead.Source,
		})
	}
	writer.Flush()

	filename := fmt.Sprintf("leads-%s.csv", time.Now().Format("2006-01-02"))
	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.SendString(sb.String())
}
