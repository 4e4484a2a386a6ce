package controller

import (
	"log"
	"strings"

	"leadpilot/models"
	"leadpilot/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type TemplateController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewTemplateController(db *gorm.DB, logger *log.Logger) *TemplateController {
	return &TemplateController{DB: db, Logger: logger}
}

type templateInput struct {
	Name         string `json:"name" validate:"required,min=1,max=200"`
	Subject      string `json:"subject" validate:"required,min=1"`
	HTMLContent  string `json:"html_content" validate:"required,min=1"`
	TextContent  string `json:"text_content"`
	TemplateType string `json:"template_type" validate:"omitempty,oneof=campaign follow-up warm-up"`
}

// extractedVariables collects placeholder names across subject and both bodies,
// deduplicated in first-occurrence order
func extractedVariables(subject, html, text string) string {
	seen := map[string]bool{}
	var ordered []string
	for _, source := range []string{subject, html, text} {
		for _, name := range utils.ExtractVariables(source) {
			if !seen[name] {
				seen[name] = true
				ordered = append(ordered, name)
			}
		}
	}
	return strings.Join(ordered, ",")
}

func (tc *TemplateController) CreateTemplate(c *fiber.Ctx) error {
	var input templateInput
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

	template := models.EmailTemplate{
		Name:        input.Name,
		Subject:     input.Subject,
		HTMLContent: input.HTMLContent,
		TextContent: input.TextContent,
		Variables:   extractedVariables(input.Subject, input.HTMLContent, input.TextContent),
		IsActive:    true,
	}
	if input.TemplateType != "" {
		template.TemplateType = input.TemplateType
	}

	if err := tc.DB.Create(&template).Error; err != nil {
		tc.Logger.Printf("Failed to create template: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create template",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Template created successfully",
		"template": template,
	})
}

func (tc *TemplateController) GetTemplates(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := tc.DB.Model(&models.EmailTemplate{})
	if templateType := c.Query("type"); templateType != "" {
		query = query.Where("template_type = ?", templateType)
	}
	if c.Query("active") == "true" {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	query.Count(&total)

	var templates []models.EmailTemplate
	if err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&templates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch templates",
		})
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  templates,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func (tc *TemplateController) GetTemplate(c *fiber.Ctx) error {
	var template models.EmailTemplate
	if err := tc.DB.First(&template, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}
	return c.JSON(template)
}

func (tc *TemplateController) UpdateTemplate(c *fiber.Ctx) error {
	var template models.EmailTemplate
	if err := tc.DB.First(&template, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	var input struct {
		Name         string `json:"name"`
		Subject      string `json:"subject"`
		HTMLContent  string `json:"html_content"`
		TextContent  *string `json:"text_content"`
		TemplateType string `json:"template_type"`
		IsActive     *bool  `json:"is_active"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}

	if input.Name != "" {
		template.Name = input.Name
	}
	if input.Subject != "" {
		template.Subject = input.Subject
	}
	if input.HTMLContent != "" {
		template.HTMLContent = input.HTMLContent
	}
	if input.TextContent != nil {
		template.TextContent = *input.TextContent
	}
	if input.TemplateType != "" {
		template.TemplateType = input.TemplateType
	}
	if input.IsActive != nil {
		template.IsActive = *input.IsActive
	}
	template.Variables = extractedVariables(template.Subject, template.HTMLContent, template.TextContent)

	if err := tc.DB.Save(&template).Error; err != nil {
		tc.Logger.Printf("Failed to update template %d: %v", template.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update template",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Template updated successfully",
		"template": template,
	})
}

func (tc *TemplateController) DeleteTemplate(c *fiber.Ctx) error {
	var template models.EmailTemplate
	if err := tc.DB.First(&template, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	var inUse int64
	tc.DB.Model(&models.Campaign{}).
		Where("template_id = ? AND status IN ?", template.ID,
			[]string{models.CampaignStatusActive, models.CampaignStatusPaused, models.CampaignStatusScheduled}).
		Count(&inUse)
	if inUse > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Template is used by an active campaign",
		})
	}

	if err := tc.DB.Delete(&template).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete template",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Template deleted successfully",
	})
}

// PreviewTemplate renders the template against a lead (or placeholder values
// when no lead_id is given) without sending anything
func (tc *TemplateController) PreviewTemplate(c *fiber.Ctx) error {
	var template models.EmailTemplate
	if err := tc.DB.First(&template, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	lead := &models.Lead{
		Email:     "jane.doe@example.com",
		FirstName: "Jane",
		LastName:  "Doe",
		Company:   "Acme Corp",
		Industry:  "software",
		City:      "Austin",
		State:     "TX",
	}
	if leadID := utils.ParseUint(c.Query("lead_id")); leadID != 0 {
		var found models.Lead
		if err := tc.DB.First(&found, leadID).Error; err == nil {
			lead = &found
		}
	}

	vars := utils.BuildVariables(lead)
	subject, html, text := utils.PersonalizeTemplate(&template, vars)

	return c.JSON(fiber.Map{
		"subject":      subject,
		"html_content": html,
		"text_content": text,
		"variables":    strings.Split(template.Variables, ","),
	})
}
