package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/cache"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/observability"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// fakeIncidentRepo is an in-memory IncidentRepository for service tests.
type fakeIncidentRepo struct {
	mu      sync.Mutex
	records map[string]domain.Incident
}

func newFakeIncidentRepo(seed ...domain.Incident) *fakeIncidentRepo {
	repo := &fakeIncidentRepo{records: make(map[string]domain.Incident)}
	for _, rec := range seed {
		repo.records[rec.Numero] = rec
	}
	return repo
}

func (f *fakeIncidentRepo) get(numero string) (domain.Incident, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[numero]
	return rec, ok
}

func (f *fakeIncidentRepo) Query(ctx context.Context, filter repository.IncidentFilter) ([]domain.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Incident, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Numero < out[j].Numero })
	return out, nil
}

func (f *fakeIncidentRepo) GetByNumero(ctx context.Context, numero string) (*domain.Incident, error) {
	rec, ok := f.get(numero)
	if !ok {
		return nil, apperrors.NewNotFound("incident", map[string]any{"numero": numero})
	}
	return &rec, nil
}

func (f *fakeIncidentRepo) ListActive(ctx context.Context) ([]domain.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Incident
	for _, rec := range f.records {
		if rec.Stato.IsActive() {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Numero < out[j].Numero })
	return out, nil
}

func (f *fakeIncidentRepo) ListByNumeri(ctx context.Context, numeri []string) ([]domain.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Incident
	for _, numero := range numeri {
		if rec, ok := f.records[numero]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeIncidentRepo) ExistingNumeri(ctx context.Context, numeri []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(numeri))
	for _, numero := range numeri {
		if _, ok := f.records[numero]; ok {
			out[numero] = true
		}
	}
	return out, nil
}

func (f *fakeIncidentRepo) UpsertBatch(ctx context.Context, records []domain.Incident) (repository.UpsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := repository.UpsertResult{}
	for _, rec := range records {
		if rec.Numero == "" {
			result.Failures = append(result.Failures, repository.UpsertFailure{Numero: rec.Numero, Reason: "missing numero"})
			continue
		}
		// data_richiesta_parti is set-once for batch writes, mirroring the
		// COALESCE in the store's upsert.
		if existing, ok := f.records[rec.Numero]; ok && existing.DataRichiestaParti != nil {
			rec.DataRichiestaParti = existing.DataRichiestaParti
		}
		f.records[rec.Numero] = rec
		result.Success++
	}
	return result, nil
}

func (f *fakeIncidentRepo) Update(ctx context.Context, incident *domain.Incident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[incident.Numero]; !ok {
		return apperrors.NewNotFound("incident", nil)
	}
	f.records[incident.Numero] = *incident
	return nil
}

func (f *fakeIncidentRepo) UpdateStatus(ctx context.Context, numero string, status domain.IncidentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[numero]
	if !ok {
		return apperrors.NewNotFound("incident", map[string]any{"numero": numero})
	}
	rec.Stato = status
	f.records[numero] = rec
	return nil
}

func (f *fakeIncidentRepo) UpdateParts(ctx context.Context, numero string, patch repository.PartsPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[numero]
	if !ok {
		return apperrors.NewNotFound("incident", map[string]any{"numero": numero})
	}
	rec.PartiRichieste = patch.PartiRichieste
	rec.RichiestaApparato = patch.RichiestaApparato
	rec.StatoRichiesta = patch.StatoRichiesta
	rec.DataRichiestaParti = patch.DataRichiestaParti
	if patch.LDV != nil {
		rec.LDV = *patch.LDV
	}
	if patch.DataConsegna != nil {
		rec.DataConsegna = patch.DataConsegna
	}
	f.records[numero] = rec
	return nil
}

func (f *fakeIncidentRepo) UpdatePlanning(ctx context.Context, numero string, pianificazione *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[numero]
	if !ok {
		return apperrors.NewNotFound("incident", map[string]any{"numero": numero})
	}
	rec.Pianificazione = pianificazione
	f.records[numero] = rec
	return nil
}

func (f *fakeIncidentRepo) AppendNote(ctx context.Context, numero string, noteLaser string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[numero]
	if !ok {
		return apperrors.NewNotFound("incident", map[string]any{"numero": numero})
	}
	rec.Note = domain.ParseNoteLog(noteLaser)
	f.records[numero] = rec
	return nil
}

// fakeSupplierRepo is an in-memory SupplierRepository.
type fakeSupplierRepo struct {
	mu    sync.Mutex
	table map[string]string
}

func newFakeSupplierRepo(table map[string]string) *fakeSupplierRepo {
	if table == nil {
		table = make(map[string]string)
	}
	return &fakeSupplierRepo{table: table}
}

func (f *fakeSupplierRepo) LookupTable(ctx context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.table))
	for k, v := range f.table {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSupplierRepo) ReplaceTerritories(ctx context.Context, entries []domain.SupplierTerritory) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range entries {
		f.table[entry.Provincia] = entry.Fornitore
	}
	return len(entries), nil
}

// fakeRegionRepo is an in-memory RegionRepository.
type fakeRegionRepo struct {
	visibility map[string]bool
}

func (f *fakeRegionRepo) Visibility(ctx context.Context) (map[string]bool, error) {
	return f.visibility, nil
}

func (f *fakeRegionRepo) SetVisibility(ctx context.Context, regione string, visible bool) error {
	if f.visibility == nil {
		f.visibility = make(map[string]bool)
	}
	f.visibility[regione] = visible
	return nil
}

func noopCache() *cache.StatsCache {
	return cache.NewStatsCache(nil, "stats", 0, zap.NewNop())
}

func noopMetrics() *observability.Metrics {
	return observability.NewMetrics()
}
