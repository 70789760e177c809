package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/cache"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/ingest"
	"github.com/spec-kit/incident-service/internal/observability"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// ImportStatus summarizes the outcome of processing one file.
type ImportStatus string

const (
	ImportCommitted     ImportStatus = "committed"
	ImportSkipped       ImportStatus = "skipped"
	ImportGhostsPending ImportStatus = "ghosts_pending"
	ImportTerritories   ImportStatus = "territories_replaced"
	ImportPlanning      ImportStatus = "planning_applied"
	ImportAborted       ImportStatus = "aborted"
)

// ImportSummary reports what a file drop did.
type ImportSummary struct {
	ImportID string                     `json:"import_id,omitempty"`
	FileName string                     `json:"file_name"`
	Profile  ingest.Profile             `json:"profile"`
	Status   ImportStatus               `json:"status"`
	Rows     int                        `json:"rows"`
	Dropped  int                        `json:"dropped"`
	Success  int                        `json:"success"`
	Failures []repository.UpsertFailure `json:"failures,omitempty"`
	Ghosts   []ingest.Ghost             `json:"ghosts,omitempty"`
}

// ImportDependencies bundles collaborators for the import pipeline.
type ImportDependencies struct {
	IncidentRepo repository.IncidentRepository
	SupplierRepo repository.SupplierRepository
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	StatsCache   *cache.StatsCache
	Logger       *zap.Logger
}

// ImportService runs the classify, normalize, reconcile, commit pipeline.
//
// Processing is synchronous and serialized: one file is fully handled before
// the next starts, so two ghost-detection passes never race an uncommitted
// intermediate state within this process. The read-diff-write sequence is
// not wrapped in a store-level transaction; a concurrent writer outside this
// process could still race between the diff and the commit.
type ImportService struct {
	incidents  repository.IncidentRepository
	suppliers  repository.SupplierRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	statsCache *cache.StatsCache
	logger     *zap.Logger
	now        func() time.Time

	importMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]*ingest.PendingImport
}

// NewImportService constructs the service.
func NewImportService(deps ImportDependencies) *ImportService {
	return &ImportService{
		incidents:  deps.IncidentRepo,
		suppliers:  deps.SupplierRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		statsCache: deps.StatsCache,
		logger:     deps.Logger,
		now:        time.Now,
		pending:    make(map[string]*ingest.PendingImport),
	}
}

// ProcessFile classifies, normalizes and commits one dropped file. For the
// main feed the commit is gated on ghost reconciliation: when the store holds
// active records the feed no longer mentions, the batch is held and the
// summary carries the ghost list for human resolution.
func (s *ImportService) ProcessFile(ctx context.Context, fileName string, payload []byte) (*ImportSummary, error) {
	s.importMu.Lock()
	defer s.importMu.Unlock()

	profile := ingest.DetectProfile(fileName)
	if profile == ingest.ProfileUnknown {
		s.logger.Info("unknown file type; skipping", zap.String("file", fileName))
		s.metrics.RecordFile(string(profile), "skipped")
		return &ImportSummary{FileName: fileName, Profile: profile, Status: ImportSkipped}, nil
	}

	rows, err := ingest.ParseSheet(fileName, payload, profile.HeaderRow())
	if err != nil {
		s.metrics.RecordFile(string(profile), "parse_error")
		return nil, apperrors.NewValidationError("unreadable spreadsheet", map[string]any{"file": fileName, "cause": err.Error()})
	}

	lookup, err := s.suppliers.LookupTable(ctx)
	if err != nil {
		s.logger.Warn("supplier lookup unavailable; fornitore auto-assignment disabled", zap.Error(err))
		lookup = map[string]string{}
	}

	normalizer := ingest.NewNormalizer(lookup, s.logger)
	result := normalizer.Normalize(profile, rows)
	s.metrics.RecordDroppedRows(result.Dropped)

	summary := &ImportSummary{
		FileName: fileName,
		Profile:  profile,
		Rows:     len(rows),
		Dropped:  result.Dropped,
	}

	switch profile {
	case ingest.ProfileTerritory:
		count, err := s.suppliers.ReplaceTerritories(ctx, result.Territories)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		summary.Status = ImportTerritories
		summary.Success = count
		s.metrics.RecordFile(string(profile), "committed")
		return summary, nil

	case ingest.ProfilePlanning:
		for _, update := range result.Planning {
			if err := s.incidents.UpdatePlanning(ctx, update.Numero, update.Pianificazione); err != nil {
				summary.Failures = append(summary.Failures, repository.UpsertFailure{Numero: update.Numero, Reason: err.Error()})
				continue
			}
			summary.Success++
		}
		summary.Status = ImportPlanning
		s.metrics.RecordFile(string(profile), "committed")
		s.statsCache.Invalidate(ctx)
		return summary, nil
	}

	if profile == ingest.ProfileMain {
		active, err := s.incidents.ListActive(ctx)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		ghosts := ingest.FindGhosts(active, ingest.ImportedIDs(result.Records))
		if len(ghosts) > 0 {
			pending := ingest.NewPendingImport(uuid.NewString(), fileName, profile, result.Records, len(rows), result.Dropped, ghosts, s.now())
			s.pendingMu.Lock()
			s.pending[pending.ID] = pending
			s.pendingMu.Unlock()

			s.metrics.RecordGhosts(len(ghosts))
			s.metrics.RecordFile(string(profile), "ghosts_pending")
			s.publish(ctx, events.Event{
				Type:     events.EventGhostsDetected,
				ImportID: pending.ID,
				Payload:  events.GhostsDetectedPayload{FileName: fileName, Ghosts: ghostNumeri(ghosts)},
			})

			summary.ImportID = pending.ID
			summary.Status = ImportGhostsPending
			summary.Ghosts = ghosts
			return summary, nil
		}
	}

	return s.commitBatch(ctx, summary, profile, result.Records, normalizer)
}

// PendingImports lists batches currently awaiting ghost resolution.
func (s *ImportService) PendingImports() []*ingest.PendingImport {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	out := make([]*ingest.PendingImport, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p)
	}
	return out
}

// ResolveGhost marks one ghost as reassigned and, when it was the last one,
// releases the held batch to the store.
func (s *ImportService) ResolveGhost(ctx context.Context, importID, numero string) (*ImportSummary, error) {
	pending, err := s.lookupPending(importID)
	if err != nil {
		return nil, err
	}

	if err := pending.HasGhost(numero); err != nil {
		return nil, apperrors.NewConflict(err.Error(), map[string]any{"import_id": importID, "numero": numero})
	}
	// Persist the reassignment before touching the review set: if the write
	// fails the ghost stays pending and the resolve can simply be retried.
	if err := s.incidents.UpdateStatus(ctx, numero, domain.StatusRiassegnato); err != nil {
		return nil, apperrors.MapError(err)
	}
	ready, err := pending.ResolveGhost(numero)
	if err != nil {
		return nil, apperrors.NewConflict(err.Error(), map[string]any{"import_id": importID, "numero": numero})
	}
	s.metrics.RecordGhostResolved(1)
	s.publish(ctx, events.Event{
		Type:     events.EventGhostResolved,
		ImportID: importID,
		Numero:   numero,
		Payload:  events.GhostResolvedPayload{Numeri: []string{numero}},
	})

	if !ready {
		return &ImportSummary{
			ImportID: importID,
			FileName: pending.FileName,
			Profile:  pending.Profile,
			Status:   ImportGhostsPending,
			Ghosts:   pending.Ghosts(),
		}, nil
	}
	return s.commitPending(ctx, pending)
}

// ResolveAllGhosts reassigns every remaining ghost, then commits.
func (s *ImportService) ResolveAllGhosts(ctx context.Context, importID string) (*ImportSummary, error) {
	pending, err := s.lookupPending(importID)
	if err != nil {
		return nil, err
	}

	ghosts, err := pending.ResolveAll()
	if err != nil {
		return nil, apperrors.NewConflict(err.Error(), map[string]any{"import_id": importID})
	}
	numeri := ghostNumeri(ghosts)
	for _, numero := range numeri {
		if err := s.incidents.UpdateStatus(ctx, numero, domain.StatusRiassegnato); err != nil {
			s.logger.Warn("ghost reassignment failed", zap.String("numero", numero), zap.Error(err))
		}
	}
	s.metrics.RecordGhostResolved(len(numeri))
	s.publish(ctx, events.Event{
		Type:     events.EventGhostResolved,
		ImportID: importID,
		Payload:  events.GhostResolvedPayload{Numeri: numeri},
	})
	return s.commitPending(ctx, pending)
}

// DismissGhosts abandons ghost review and force-commits the held batch
// without touching the ghost records.
func (s *ImportService) DismissGhosts(ctx context.Context, importID string) (*ImportSummary, error) {
	pending, err := s.lookupPending(importID)
	if err != nil {
		return nil, err
	}
	if err := pending.Dismiss(); err != nil {
		return nil, apperrors.NewConflict(err.Error(), map[string]any{"import_id": importID})
	}
	return s.commitPending(ctx, pending)
}

// AbortPending discards a held batch without committing anything.
func (s *ImportService) AbortPending(ctx context.Context, importID string) error {
	pending, err := s.lookupPending(importID)
	if err != nil {
		return err
	}
	if err := pending.Abort(); err != nil {
		return apperrors.NewConflict(err.Error(), map[string]any{"import_id": importID})
	}
	s.removePending(importID)
	s.metrics.RecordFile(string(pending.Profile), "aborted")
	s.publish(ctx, events.Event{Type: events.EventImportAborted, ImportID: importID})
	return nil
}

func (s *ImportService) commitPending(ctx context.Context, pending *ingest.PendingImport) (*ImportSummary, error) {
	lookup, err := s.suppliers.LookupTable(ctx)
	if err != nil {
		lookup = map[string]string{}
	}
	normalizer := ingest.NewNormalizer(lookup, s.logger)

	summary := &ImportSummary{
		ImportID: pending.ID,
		FileName: pending.FileName,
		Profile:  pending.Profile,
		Rows:     pending.Rows,
		Dropped:  pending.Dropped,
	}
	committed, err := s.commitBatch(ctx, summary, pending.Profile, pending.Records, normalizer)
	if err != nil {
		return nil, err
	}
	if err := pending.MarkCommitted(); err != nil {
		return nil, apperrors.NewConflict(err.Error(), map[string]any{"import_id": pending.ID})
	}
	s.removePending(pending.ID)
	return committed, nil
}

// commitBatch merges the normalized records onto any existing store records
// (a feed only overwrites the attributes it actually carries) and upserts
// the result keyed by numero.
func (s *ImportService) commitBatch(ctx context.Context, summary *ImportSummary, profile ingest.Profile, records []ingest.NormalizedRecord, normalizer *ingest.Normalizer) (*ImportSummary, error) {
	numeri := make([]string, 0, len(records))
	for _, rec := range records {
		numeri = append(numeri, rec.Numero)
	}
	existing, err := s.incidents.ListByNumeri(ctx, numeri)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byNumero := make(map[string]domain.Incident, len(existing))
	for _, rec := range existing {
		byNumero[rec.Numero] = rec
	}

	batch := make([]domain.Incident, 0, len(records))
	for _, rec := range records {
		if current, ok := byNumero[rec.Numero]; ok {
			batch = append(batch, normalizer.Remap(current, rec))
			continue
		}
		incident := rec.Incident
		if profile == ingest.ProfileSiteInventory || profile == ingest.ProfileSiteInventoryAlt {
			ingest.ApplyInventoryDefaults(&incident)
		}
		batch = append(batch, incident)
	}

	result, err := s.incidents.UpsertBatch(ctx, batch)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	summary.Status = ImportCommitted
	summary.Success = result.Success
	summary.Failures = result.Failures
	s.metrics.RecordFile(string(profile), "committed")
	s.metrics.RecordUpsertFailures(len(result.Failures))
	s.statsCache.Invalidate(ctx)
	s.publish(ctx, events.Event{
		Type:     events.EventImportCommitted,
		ImportID: summary.ImportID,
		Payload: events.ImportCommittedPayload{
			FileName: summary.FileName,
			Profile:  profile,
			Success:  result.Success,
			Failures: len(result.Failures),
			Dropped:  summary.Dropped,
		},
	})
	return summary, nil
}

func (s *ImportService) lookupPending(importID string) (*ingest.PendingImport, error) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	pending, ok := s.pending[importID]
	if !ok {
		return nil, apperrors.NewNotFound("pending import", map[string]any{"import_id": importID})
	}
	return pending, nil
}

func (s *ImportService) removePending(importID string) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	delete(s.pending, importID)
}

func (s *ImportService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func ghostNumeri(ghosts []ingest.Ghost) []string {
	numeri := make([]string, 0, len(ghosts))
	for _, g := range ghosts {
		numeri = append(numeri, g.Numero)
	}
	return numeri
}
