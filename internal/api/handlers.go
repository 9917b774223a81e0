// Package api exposes the MADO draft endpoints over HTTP.
package api

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"cliniq/internal/fax"
	"cliniq/internal/mado"
	"cliniq/internal/pdfform"
	"cliniq/internal/telemetry"
	appvalidator "cliniq/internal/validator"
)

type Handler struct {
	logger    *slog.Logger
	service   *mado.Service
	validator *appvalidator.Validator
}

func NewHandler(logger *slog.Logger, service *mado.Service, v *appvalidator.Validator) Handler {
	return Handler{
		logger:    logger,
		service:   service,
		validator: v,
	}
}

func (h *Handler) Healthy(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// GenerateMado creates a draft: fills the form template, stores document and
// metadata, and returns a preview URL.
func (h *Handler) GenerateMado(c *fiber.Ctx) error {
	var req mado.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": validationMessage(err),
		})
	}

	ctx := telemetry.GetContextFromFiber(c)

	result, err := h.service.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, pdfform.ErrNoAcroForm) {
			// Distinct from a generic fill failure: the operator needs to
			// re-derive the template and field map (see cmd/listfields).
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "PDF fill failed: " + pdfform.ErrNoAcroForm.Error(),
			})
		}
		h.logger.ErrorContext(ctx, "draft generation failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "PDF fill failed",
		})
	}

	return c.JSON(result)
}

// SendMado dispatches a draft by fax or email, or marks it for manual
// handling.
func (h *Handler) SendMado(c *fiber.Ctx) error {
	var req mado.DispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": validationMessage(err),
		})
	}

	ctx := telemetry.GetContextFromFiber(c)

	result, err := h.service.Dispatch(ctx, req)
	if err != nil {
		return h.dispatchError(c, err)
	}

	return c.JSON(result)
}

// GetDraft returns a draft's metadata and a fresh preview URL.
func (h *Handler) GetDraft(c *fiber.Ctx) error {
	draftID := c.Params("id")

	ctx := telemetry.GetContextFromFiber(c)

	result, err := h.service.GetDraft(ctx, draftID)
	if err != nil {
		if errors.Is(err, mado.ErrDraftNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "draft not found",
			})
		}
		h.logger.ErrorContext(ctx, "draft lookup failed", "draft_id", draftID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(result)
}

// dispatchError maps the dispatch error taxonomy onto status codes:
// 404 unknown draft, 400 missing destination, 500 missing credentials,
// 502 provider failure.
func (h *Handler) dispatchError(c *fiber.Ctx, err error) error {
	ctx := telemetry.GetContextFromFiber(c)

	switch {
	case errors.Is(err, mado.ErrDraftNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "draft not found",
		})
	case errors.Is(err, mado.ErrNoRecipient), errors.Is(err, mado.ErrNoRecipientEmail):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, mado.ErrMissingCredentials):
		h.logger.ErrorContext(ctx, "dispatch misconfigured", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": mado.ErrMissingCredentials.Error(),
		})
	}

	var transmissionErr *fax.TransmissionError
	if errors.As(err, &transmissionErr) {
		h.logger.ErrorContext(ctx, "transmission failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.logger.ErrorContext(ctx, "dispatch failed", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}

// validationMessage flattens validator errors into a single readable line.
func validationMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return "invalid request"
	}

	message := "invalid request:"
	for i, fieldErr := range validationErrs {
		if i > 0 {
			message += ","
		}
		message += " " + fieldErr.Namespace() + " failed " + fieldErr.Tag()
	}
	return message
}
