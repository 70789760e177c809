package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/dto"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/internal/service"
	apperrors "github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// IncidentsHandler serves record lookup and manual workflow actions.
type IncidentsHandler struct {
	incidents repository.IncidentRepository
	workflow  *service.WorkflowService
}

// NewIncidentsHandler constructs handler.
func NewIncidentsHandler(incidents repository.IncidentRepository, workflow *service.WorkflowService) *IncidentsHandler {
	return &IncidentsHandler{incidents: incidents, workflow: workflow}
}

// List GET /incidents.
func (h *IncidentsHandler) List(c *fiber.Ctx) error {
	filter := parseIncidentQuery(c)
	records, err := h.incidents.Query(c.UserContext(), filter)
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.IncidentResponse, 0, len(records))
	for i := range records {
		items = append(items, dto.FromIncident(&records[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /incidents/:numero.
func (h *IncidentsHandler) Get(c *fiber.Ctx) error {
	incident, err := h.incidents.GetByNumero(c.UserContext(), c.Params("numero"))
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.FromIncident(incident)})
}

// RequestParts POST /incidents/:numero/parts.
func (h *IncidentsHandler) RequestParts(c *fiber.Ctx) error {
	var req dto.PartsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	parts := make([]string, 0, len(req.Parti))
	for _, part := range req.Parti {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	incident, err := h.workflow.RequestParts(c.UserContext(), c.Params("numero"), parts)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromIncident(incident)})
}

// RequestDevice POST /incidents/:numero/device.
func (h *IncidentsHandler) RequestDevice(c *fiber.Ctx) error {
	incident, err := h.workflow.RequestDevice(c.UserContext(), c.Params("numero"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromIncident(incident)})
}

// UpdatePartsStatus PATCH /incidents/:numero/parts-status.
func (h *IncidentsHandler) UpdatePartsStatus(c *fiber.Ctx) error {
	var req dto.PartsStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Stato) == "" {
		return apperrors.NewValidationError("stato required", nil)
	}
	incident, err := h.workflow.AdvancePartsStatus(c.UserContext(), c.Params("numero"), domain.PartsStatus(req.Stato), req.LDV)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromIncident(incident)})
}

// AddNote POST /incidents/:numero/notes.
func (h *IncidentsHandler) AddNote(c *fiber.Ctx) error {
	operator, ok := auth.OperatorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("operator required")
	}
	var req dto.NoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Text) == "" {
		return apperrors.NewValidationError("text required", nil)
	}
	incident, err := h.workflow.AddNote(c.UserContext(), c.Params("numero"), operator, strings.TrimSpace(req.Text))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromIncident(incident)})
}

func parseIncidentQuery(c *fiber.Ctx) repository.IncidentFilter {
	filter := repository.IncidentFilter{}
	if raw := c.Query("stato"); raw != "" {
		for _, status := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(status); trimmed != "" {
				filter.Statuses = append(filter.Statuses, domain.IncidentStatus(trimmed))
			}
		}
	}
	if regione := c.Query("regione"); regione != "" {
		filter.Regione = &regione
	}
	if fornitore := c.Query("fornitore"); fornitore != "" {
		filter.Fornitore = &fornitore
	}
	if gruppo := c.Query("gruppo"); gruppo != "" {
		filter.Gruppo = &gruppo
	}
	if search := c.Query("search"); search != "" {
		filter.SearchTerm = &search
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}
	return filter
}
