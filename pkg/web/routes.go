package web

import (
	"github.com/gofiber/fiber/v3"
)

// RegisterRoutes mounts every endpoint of the command surface on the app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	w := app.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/import", h.ImportWorkflows)
	w.Get("/export", h.ExportWorkflows)

	w.Post("/recording/start", h.StartRecording)
	w.Post("/recording/stop", h.StopRecording)
	w.Post("/recording/steps", h.RecordStep)

	w.Get("/:name", h.GetWorkflow)
	w.Delete("/:name", h.DeleteWorkflow)
	w.Post("/:name/run", h.RunWorkflow)
	w.Put("/:name/schedule", h.SetSchedule)
	w.Delete("/:name/schedule", h.ClearSchedule)
	w.Get("/:name/schedule", h.GetSchedule)

	app.Get("/runs/:id/next", h.GetNextStep)

	t := app.Group("/templates")
	t.Get("/", h.GetTemplates)
	t.Post("/", h.SaveTemplate)
	t.Get("/:name", h.GetTemplate)
	t.Put("/:name", h.UpdateTemplate)
	t.Delete("/:name", h.DeleteTemplate)

	app.Post("/analyze", h.AnalyzeForm)
	app.Post("/plan", h.PlanFormFill)

	app.Get("/health", h.HealthCheck)
}
