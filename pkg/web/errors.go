package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
	"github.com/tabwright/tabwright/pkg/engine"
	"github.com/tabwright/tabwright/pkg/models"
	"github.com/tabwright/tabwright/pkg/persistence"
	"github.com/tabwright/tabwright/pkg/recorder"
	"github.com/tabwright/tabwright/pkg/templates"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

func badGateway(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(502).
		WithInstance(c.Path()).
		WithType("upstream_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadGateway).JSON(problem)
}

// commandResult renders a command outcome with the HTTP status implied
// by its failure class. The body is always the {success, message} shape.
func commandResult(c fiber.Ctx, result any, err error) error {
	return c.Status(statusFor(err)).JSON(result)
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, recorder.ErrAlreadyRecording),
		errors.Is(err, engine.ErrAlreadyRunning):
		return fiber.StatusConflict
	case errors.Is(err, engine.ErrRunNotFound),
		errors.Is(err, templates.ErrTemplateNotFound),
		persistence.IsWorkflowNotFound(err):
		return fiber.StatusNotFound
	case errors.Is(err, recorder.ErrNotRecording),
		errors.Is(err, models.ErrScheduleInPast),
		errors.Is(err, models.ErrInvalidSchedule),
		errors.Is(err, models.ErrInvalidStep),
		errors.Is(err, models.ErrUnknownStepType),
		errors.Is(err, templates.ErrEmptyTemplate),
		persistence.IsEmptyWorkflow(err),
		persistence.IsInvalidDocument(err):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}
