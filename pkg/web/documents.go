package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/tabwright/tabwright/pkg/persistence"
	"github.com/tabwright/tabwright/pkg/templates"
)

// ImportWorkflows validates the posted document and merges it into the
// store, overwriting colliding names.
func (h *APIHandlers) ImportWorkflows(c fiber.Ctx) error {
	if h.porter == nil {
		return notFound(c, "Import is not supported by this store")
	}

	count, err := h.porter.Import(c.Context(), c.Body())
	if err != nil {
		if persistence.IsInvalidDocument(err) {
			return commandResult(c, fiber.Map{"success": false, "message": err.Error()}, err)
		}

		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "Workflows imported", "imported": count})
}

// ExportWorkflows returns the pretty-printed workflow document.
func (h *APIHandlers) ExportWorkflows(c fiber.Ctx) error {
	if h.porter == nil {
		return notFound(c, "Export is not supported by this store")
	}

	data, err := h.porter.Export(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	return c.Send(data)
}

type templateRequest struct {
	Name   string            `json:"name"   validate:"required"`
	Fields []templates.Field `json:"fields" validate:"required,min=1"`
}

func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	list, err := h.templates.GetAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(list)
}

func (h *APIHandlers) GetTemplate(c fiber.Ctx) error {
	template, err := h.templates.Get(c.Context(), c.Params("name"))
	if err != nil {
		return notFound(c, "Template not found")
	}

	return c.JSON(template)
}

func (h *APIHandlers) SaveTemplate(c fiber.Ctx) error {
	var req templateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	template, err := h.templates.Save(c.Context(), req.Name, req.Fields)
	if err != nil {
		return commandResult(c, fiber.Map{"success": false, "message": err.Error()}, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"message":  "Saved template: " + template.Name,
		"template": template,
	})
}

func (h *APIHandlers) UpdateTemplate(c fiber.Ctx) error {
	var req templateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	template, err := h.templates.Update(c.Context(), c.Params("name"), req.Fields)
	if err != nil {
		return commandResult(c, fiber.Map{"success": false, "message": err.Error()}, err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "Updated template: " + template.Name,
		"template": template,
	})
}

func (h *APIHandlers) DeleteTemplate(c fiber.Ctx) error {
	name := c.Params("name")

	if err := h.templates.Delete(c.Context(), name); err != nil {
		return commandResult(c, fiber.Map{"success": false, "message": err.Error()}, err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "Deleted template: " + name})
}

type analyzeRequest struct {
	Content string `json:"content" validate:"required"`
	URL     string `json:"url"     validate:"required,url"`
}

func (h *APIHandlers) AnalyzeForm(c fiber.Ctx) error {
	if h.llm == nil {
		return badGateway(c, "No model server configured")
	}

	var req analyzeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	analysis, err := h.llm.Analyze(c.Context(), req.Content, req.URL)
	if err != nil {
		return badGateway(c, err.Error())
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"suggestedName": analysis.FormName,
		"fields":        analysis.Fields,
	})
}

type planRequest struct {
	Template string `json:"template" validate:"required"`
	Content  string `json:"content"  validate:"required"`
	URL      string `json:"url"      validate:"required,url"`
}

// PlanFormFill asks the model for a fill plan using a stored template.
func (h *APIHandlers) PlanFormFill(c fiber.Ctx) error {
	if h.llm == nil {
		return badGateway(c, "No model server configured")
	}

	var req planRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	template, err := h.templates.Get(c.Context(), req.Template)
	if err != nil {
		return notFound(c, "Template not found")
	}

	plan, err := h.llm.Plan(c.Context(), template, req.Content, req.URL)
	if err != nil {
		return badGateway(c, err.Error())
	}

	return c.JSON(fiber.Map{"success": true, "actions": plan.Actions})
}
