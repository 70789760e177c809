package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/cache"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// WorkflowDependencies bundles collaborators for manual incident actions.
type WorkflowDependencies struct {
	IncidentRepo repository.IncidentRepository
	Dispatcher   events.Dispatcher
	StatsCache   *cache.StatsCache
	Logger       *zap.Logger
}

// WorkflowService applies manual mutations to incident records: parts
// requests, the parts lifecycle, and the append-only note log.
type WorkflowService struct {
	incidents  repository.IncidentRepository
	dispatcher events.Dispatcher
	statsCache *cache.StatsCache
	logger     *zap.Logger
	now        func() time.Time
}

// NewWorkflowService constructs the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	return &WorkflowService{
		incidents:  deps.IncidentRepo,
		dispatcher: deps.Dispatcher,
		statsCache: deps.StatsCache,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// RequestParts records a parts request. Parts and whole-device requests are
// mutually exclusive, so any standing device request is cleared. The
// data_richiesta_parti timestamp is set on the first request only.
func (s *WorkflowService) RequestParts(ctx context.Context, numero string, parts []string) (*domain.Incident, error) {
	if len(parts) == 0 {
		return nil, apperrors.NewValidationError("at least one part required", nil)
	}
	incident, err := s.incidents.GetByNumero(ctx, numero)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	requestedAt := incident.DataRichiestaParti
	if requestedAt == nil {
		now := s.now()
		requestedAt = &now
	}
	patch := repository.PartsPatch{
		PartiRichieste:     parts,
		RichiestaApparato:  false,
		StatoRichiesta:     domain.PartsPending,
		DataRichiestaParti: requestedAt,
	}
	if err := s.incidents.UpdateParts(ctx, numero, patch); err != nil {
		return nil, apperrors.MapError(err)
	}

	incident.PartiRichieste = parts
	incident.RichiestaApparato = false
	incident.StatoRichiesta = domain.PartsPending
	incident.DataRichiestaParti = requestedAt
	s.afterMutation(ctx, events.Event{
		Type:    events.EventPartsRequested,
		Numero:  numero,
		Payload: events.PartsRequestedPayload{Parti: parts},
	})
	return incident, nil
}

// RequestDevice records a whole-device replacement request, clearing any
// standing parts request.
func (s *WorkflowService) RequestDevice(ctx context.Context, numero string) (*domain.Incident, error) {
	incident, err := s.incidents.GetByNumero(ctx, numero)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	requestedAt := incident.DataRichiestaParti
	if requestedAt == nil {
		now := s.now()
		requestedAt = &now
	}
	patch := repository.PartsPatch{
		PartiRichieste:     nil,
		RichiestaApparato:  true,
		StatoRichiesta:     domain.PartsPending,
		DataRichiestaParti: requestedAt,
	}
	if err := s.incidents.UpdateParts(ctx, numero, patch); err != nil {
		return nil, apperrors.MapError(err)
	}

	incident.PartiRichieste = nil
	incident.RichiestaApparato = true
	incident.StatoRichiesta = domain.PartsPending
	incident.DataRichiestaParti = requestedAt
	s.afterMutation(ctx, events.Event{
		Type:    events.EventPartsRequested,
		Numero:  numero,
		Payload: events.PartsRequestedPayload{RichiestaApparato: true},
	})
	return incident, nil
}

// AdvancePartsStatus moves the request along its lifecycle. Bocciato and
// Annullato clear the request entirely, including its timestamp; CONSEGNATO
// stamps the delivery date.
func (s *WorkflowService) AdvancePartsStatus(ctx context.Context, numero string, to domain.PartsStatus, ldv *string) (*domain.Incident, error) {
	incident, err := s.incidents.GetByNumero(ctx, numero)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if incident.StatoRichiesta == "" {
		return nil, apperrors.NewConflict("no parts request on record", map[string]any{"numero": numero})
	}
	if !incident.StatoRichiesta.CanTransition(to) {
		return nil, apperrors.NewConflict("invalid parts status transition", map[string]any{
			"from": string(incident.StatoRichiesta),
			"to":   string(to),
		})
	}

	patch := repository.PartsPatch{
		PartiRichieste:     incident.PartiRichieste,
		RichiestaApparato:  incident.RichiestaApparato,
		StatoRichiesta:     to,
		DataRichiestaParti: incident.DataRichiestaParti,
		LDV:                ldv,
	}
	switch to {
	case domain.PartsBocciato, domain.PartsAnnullato:
		patch.PartiRichieste = nil
		patch.RichiestaApparato = false
		patch.DataRichiestaParti = nil
	case domain.PartsConsegnato:
		now := s.now()
		patch.DataConsegna = &now
	}
	if err := s.incidents.UpdateParts(ctx, numero, patch); err != nil {
		return nil, apperrors.MapError(err)
	}

	incident.StatoRichiesta = to
	incident.PartiRichieste = patch.PartiRichieste
	incident.RichiestaApparato = patch.RichiestaApparato
	incident.DataRichiestaParti = patch.DataRichiestaParti
	if ldv != nil {
		incident.LDV = *ldv
	}
	if patch.DataConsegna != nil {
		incident.DataConsegna = patch.DataConsegna
	}
	s.afterMutation(ctx, events.Event{Type: events.EventPartsRequested, Numero: numero})
	return incident, nil
}

// AddNote appends a timestamped, attributed entry to the incident log.
// The log is append-only; existing entries are never rewritten.
func (s *WorkflowService) AddNote(ctx context.Context, numero, author, text string) (*domain.Incident, error) {
	incident, err := s.incidents.GetByNumero(ctx, numero)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	incident.AppendNote(s.now(), author, text)
	if err := s.incidents.AppendNote(ctx, numero, domain.FormatNoteLog(incident.Note)); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.afterMutation(ctx, events.Event{
		Type:    events.EventNoteAdded,
		Numero:  numero,
		Payload: events.NoteAddedPayload{Author: author, Text: text},
	})
	return incident, nil
}

func (s *WorkflowService) afterMutation(ctx context.Context, event events.Event) {
	s.statsCache.Invalidate(ctx)
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, event)
	}
}
