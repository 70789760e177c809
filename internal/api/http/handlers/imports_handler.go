package handlers

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/dto"
	"github.com/spec-kit/incident-service/internal/service"
	apperrors "github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// ImportsHandler manages spreadsheet drops and ghost resolution.
type ImportsHandler struct {
	service        *service.ImportService
	maxUploadBytes int64
}

// NewImportsHandler constructs handler.
func NewImportsHandler(importService *service.ImportService, maxUploadBytes int64) *ImportsHandler {
	return &ImportsHandler{service: importService, maxUploadBytes: maxUploadBytes}
}

// Upload POST /imports. Accepts one multipart file field named "file".
func (h *ImportsHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("multipart field 'file' required", nil)
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		return apperrors.NewValidationError("file too large", map[string]any{
			"size":  fileHeader.Size,
			"limit": h.maxUploadBytes,
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return apperrors.NewValidationError("unreadable upload", nil)
	}
	defer src.Close()
	payload, err := io.ReadAll(src)
	if err != nil {
		return apperrors.NewValidationError("unreadable upload", nil)
	}

	summary, err := h.service.ProcessFile(c.UserContext(), fileHeader.Filename, payload)
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if summary.Status == service.ImportGhostsPending {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(fiber.Map{"data": summary})
}

// ListPending GET /imports/pending.
func (h *ImportsHandler) ListPending(c *fiber.Ctx) error {
	pending := h.service.PendingImports()
	items := make([]dto.PendingImportResponse, 0, len(pending))
	for _, p := range pending {
		items = append(items, dto.FromPendingImport(p))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ResolveGhost POST /imports/:id/ghosts/:numero/resolve.
func (h *ImportsHandler) ResolveGhost(c *fiber.Ctx) error {
	summary, err := h.service.ResolveGhost(c.UserContext(), c.Params("id"), c.Params("numero"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// ResolveAll POST /imports/:id/ghosts/resolve-all.
func (h *ImportsHandler) ResolveAll(c *fiber.Ctx) error {
	summary, err := h.service.ResolveAllGhosts(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// Dismiss POST /imports/:id/ghosts/dismiss.
func (h *ImportsHandler) Dismiss(c *fiber.Ctx) error {
	summary, err := h.service.DismissGhosts(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// Abort POST /imports/:id/abort.
func (h *ImportsHandler) Abort(c *fiber.Ctx) error {
	if err := h.service.AbortPending(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"import_id": c.Params("id"), "status": service.ImportAborted}})
}
