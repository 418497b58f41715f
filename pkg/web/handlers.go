// Package web exposes the engine's command surface as REST endpoints.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/tabwright/tabwright/pkg/llm"
	"github.com/tabwright/tabwright/pkg/models"
	"github.com/tabwright/tabwright/pkg/persistence"
	"github.com/tabwright/tabwright/pkg/services"
	"github.com/tabwright/tabwright/pkg/templates"
)

// Porter moves whole workflow documents in and out of the store. The
// file store implements it; stores without a document form may not.
type Porter interface {
	Import(ctx context.Context, data []byte) (int, error)
	Export(ctx context.Context) ([]byte, error)
}

type APIHandlers struct {
	engine    *services.WorkflowEngine
	store     persistence.Persistence
	porter    Porter
	templates *templates.Store
	llm       *llm.Client
	validator *validator.Validate
}

// NewAPIHandlers builds the handler set. The porter and llm client are
// optional; their endpoints answer 404 / 502 when absent.
func NewAPIHandlers(
	engine *services.WorkflowEngine,
	store persistence.Persistence,
	porter Porter,
	templateStore *templates.Store,
	llmClient *llm.Client,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:    engine,
		store:     store,
		porter:    porter,
		templates: templateStore,
		llm:       llmClient,
		validator: validator,
	}
}

type startRecordingRequest struct {
	Name string `json:"name"`
}

func (h *APIHandlers) StartRecording(c fiber.Ctx) error {
	var req startRecordingRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	result := h.engine.StartRecording(c.Context(), req.Name)

	return commandResult(c, result, result.Err)
}

func (h *APIHandlers) StopRecording(c fiber.Ctx) error {
	result := h.engine.StopRecording(c.Context())

	return commandResult(c, result, result.Err)
}

func (h *APIHandlers) RecordStep(c fiber.Ctx) error {
	var step models.Step
	if err := c.Bind().JSON(&step); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	result := h.engine.RecordStep(c.Context(), step)

	return commandResult(c, result, result.Err)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.engine.GetWorkflows(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	name := c.Params("name")

	workflow, err := h.engine.GetWorkflow(c.Context(), name)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	result := h.engine.RunWorkflow(c.Context(), c.Params("name"))

	return commandResult(c, result, result.Err)
}

func (h *APIHandlers) GetNextStep(c fiber.Ctx) error {
	next, err := h.engine.GetNextStep(c.Params("id"))
	if err != nil {
		return commandResult(c, fiber.Map{"success": false, "message": "Workflow run not found"}, err)
	}

	return c.JSON(next)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	result := h.engine.DeleteWorkflow(c.Context(), c.Params("name"))

	return commandResult(c, result, result.Err)
}

func (h *APIHandlers) SetSchedule(c fiber.Ctx) error {
	var schedule models.Schedule
	if err := c.Bind().JSON(&schedule); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	result := h.engine.Schedule(c.Context(), c.Params("name"), &schedule)

	return commandResult(c, result, result.Err)
}

func (h *APIHandlers) ClearSchedule(c fiber.Ctx) error {
	result := h.engine.Unschedule(c.Context(), c.Params("name"))

	return commandResult(c, result, result.Err)
}

func (h *APIHandlers) GetSchedule(c fiber.Ctx) error {
	status, err := h.engine.GetSchedule(c.Context(), c.Params("name"))
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(status)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.store.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}
