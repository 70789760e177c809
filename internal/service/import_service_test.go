package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/ingest"
	"github.com/spec-kit/incident-service/internal/repository"
)

// failingIncidentRepo wraps the in-memory repo and fails a fixed number of
// writes before recovering, simulating a store outage mid-resolution.
type failingIncidentRepo struct {
	*fakeIncidentRepo
	statusFailures int
	upsertFailures int
}

func (f *failingIncidentRepo) UpdateStatus(ctx context.Context, numero string, status domain.IncidentStatus) error {
	if f.statusFailures > 0 {
		f.statusFailures--
		return errors.New("connection reset")
	}
	return f.fakeIncidentRepo.UpdateStatus(ctx, numero, status)
}

func (f *failingIncidentRepo) UpsertBatch(ctx context.Context, records []domain.Incident) (repository.UpsertResult, error) {
	if f.upsertFailures > 0 {
		f.upsertFailures--
		return repository.UpsertResult{}, errors.New("connection reset")
	}
	return f.fakeIncidentRepo.UpsertBatch(ctx, records)
}

func newImportService(incidents repository.IncidentRepository, suppliers *fakeSupplierRepo) *ImportService {
	return NewImportService(ImportDependencies{
		IncidentRepo: incidents,
		SupplierRepo: suppliers,
		Dispatcher:   events.NewInMemoryDispatcher(),
		Metrics:      noopMetrics(),
		StatsCache:   noopCache(),
		Logger:       zap.NewNop(),
	})
}

func TestProcessFileUnknownIsSkipped(t *testing.T) {
	svc := newImportService(newFakeIncidentRepo(), newFakeSupplierRepo(nil))

	summary, err := svc.ProcessFile(context.Background(), "bilancio_2024.csv", []byte("a,b\n1,2\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Status != ImportSkipped {
		t.Fatalf("status = %s, want skipped", summary.Status)
	}
}

func TestProcessFileUnreadablePayload(t *testing.T) {
	svc := newImportService(newFakeIncidentRepo(), newFakeSupplierRepo(nil))
	if _, err := svc.ProcessFile(context.Background(), "laser.xlsx", []byte("not an xlsx")); err == nil {
		t.Fatal("expected validation error for unreadable spreadsheet")
	}
}

func TestProcessFileMainCommitsWhenNoGhosts(t *testing.T) {
	incidents := newFakeIncidentRepo()
	svc := newImportService(incidents, newFakeSupplierRepo(map[string]string{"RM": "TechService"}))

	payload := []byte("Numero,Stato,Regione,Provincia Stato\nINC001,Aperto,Lazio,RM\nINC002,Chiuso,Lazio,RM\n")
	summary, err := svc.ProcessFile(context.Background(), "laser.csv", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Status != ImportCommitted {
		t.Fatalf("status = %s, want committed", summary.Status)
	}
	if summary.Success != 2 {
		t.Fatalf("success = %d, want 2", summary.Success)
	}

	rec, ok := incidents.get("INC001")
	if !ok {
		t.Fatal("INC001 not stored")
	}
	if rec.Fornitore != "TechService" {
		t.Fatalf("supplier not auto-assigned: %+v", rec)
	}
}

func TestProcessFileMainHoldsOnGhosts(t *testing.T) {
	incidents := newFakeIncidentRepo(
		domain.Incident{Numero: "INC001", Stato: domain.StatusAperto, Regione: "Lazio"},
		domain.Incident{Numero: "INC-GONE", Stato: domain.StatusInCorso, Regione: "Lazio"},
	)
	svc := newImportService(incidents, newFakeSupplierRepo(nil))

	payload := []byte("Numero,Stato,Regione\nINC001,Aperto,Lazio\n")
	summary, err := svc.ProcessFile(context.Background(), "laser.csv", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Status != ImportGhostsPending {
		t.Fatalf("status = %s, want ghosts_pending", summary.Status)
	}
	if len(summary.Ghosts) != 1 || summary.Ghosts[0].Numero != "INC-GONE" {
		t.Fatalf("ghosts = %v", summary.Ghosts)
	}
	if summary.ImportID == "" {
		t.Fatal("held batch must carry an import id")
	}
	// Nothing is written while the batch is held.
	if rec, _ := incidents.get("INC-GONE"); rec.Stato != domain.StatusInCorso {
		t.Fatalf("ghost mutated before resolution: %+v", rec)
	}
	if len(svc.PendingImports()) != 1 {
		t.Fatal("pending registry should hold the batch")
	}
}

func TestResolveGhostCommitsWhenLast(t *testing.T) {
	incidents := newFakeIncidentRepo(
		domain.Incident{Numero: "INC-GONE", Stato: domain.StatusAperto, Regione: "Lazio"},
	)
	svc := newImportService(incidents, newFakeSupplierRepo(nil))

	// One row lacks a numero, so parsed rows and normalized records differ.
	payload := []byte("Numero,Stato,Regione\nINC010,Aperto,Lazio\n,Aperto,Lazio\n")
	summary, err := svc.ProcessFile(context.Background(), "laser.csv", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Rows != 2 || summary.Dropped != 1 {
		t.Fatalf("rows = %d dropped = %d, want 2/1", summary.Rows, summary.Dropped)
	}

	committed, err := svc.ResolveGhost(context.Background(), summary.ImportID, "INC-GONE")
	if err != nil {
		t.Fatalf("resolve ghost: %v", err)
	}
	if committed.Status != ImportCommitted {
		t.Fatalf("status = %s, want committed after last ghost", committed.Status)
	}
	// The post-resolution summary reports the same figures the upload did.
	if committed.Rows != 2 || committed.Dropped != 1 {
		t.Fatalf("rows = %d dropped = %d, want 2/1", committed.Rows, committed.Dropped)
	}

	ghost, _ := incidents.get("INC-GONE")
	if ghost.Stato != domain.StatusRiassegnato {
		t.Fatalf("ghost stato = %s, want Riassegnato", ghost.Stato)
	}
	if _, ok := incidents.get("INC010"); !ok {
		t.Fatal("held batch not committed")
	}
	if len(svc.PendingImports()) != 0 {
		t.Fatal("pending registry should be empty after commit")
	}
}

func TestResolveGhostRetriesAfterFailedStatusWrite(t *testing.T) {
	incidents := newFakeIncidentRepo(
		domain.Incident{Numero: "INC-GONE", Stato: domain.StatusAperto, Regione: "Lazio"},
	)
	flaky := &failingIncidentRepo{fakeIncidentRepo: incidents, statusFailures: 1}
	svc := newImportService(flaky, newFakeSupplierRepo(nil))

	summary, err := svc.ProcessFile(context.Background(), "laser.csv", []byte("Numero,Stato\nINC010,Aperto\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.ResolveGhost(context.Background(), summary.ImportID, "INC-GONE"); err == nil {
		t.Fatal("expected error from failed status write")
	}
	// The ghost stays in the review set and the record stays untouched.
	pendings := svc.PendingImports()
	if len(pendings) != 1 || len(pendings[0].Ghosts()) != 1 {
		t.Fatalf("ghost consumed by a failed write: %+v", pendings)
	}
	if rec, _ := incidents.get("INC-GONE"); rec.Stato != domain.StatusAperto {
		t.Fatalf("ghost stato = %s, want Aperto", rec.Stato)
	}

	// Once the store recovers the same resolve succeeds and releases the batch.
	committed, err := svc.ResolveGhost(context.Background(), summary.ImportID, "INC-GONE")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if committed.Status != ImportCommitted {
		t.Fatalf("status = %s, want committed", committed.Status)
	}
	if rec, _ := incidents.get("INC-GONE"); rec.Stato != domain.StatusRiassegnato {
		t.Fatalf("ghost stato = %s, want Riassegnato", rec.Stato)
	}
	if _, ok := incidents.get("INC010"); !ok {
		t.Fatal("held batch not committed after retry")
	}
}

func TestDismissGhostsRetriesAfterFailedCommit(t *testing.T) {
	incidents := newFakeIncidentRepo(
		domain.Incident{Numero: "INC-A", Stato: domain.StatusAperto},
	)
	flaky := &failingIncidentRepo{fakeIncidentRepo: incidents, upsertFailures: 1}
	svc := newImportService(flaky, newFakeSupplierRepo(nil))

	summary, err := svc.ProcessFile(context.Background(), "laser.csv", []byte("Numero,Stato\nINC010,Aperto\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.DismissGhosts(context.Background(), summary.ImportID); err == nil {
		t.Fatal("expected error from failed upsert")
	}
	if len(svc.PendingImports()) != 1 {
		t.Fatal("failed commit must keep the batch in the registry")
	}

	committed, err := svc.DismissGhosts(context.Background(), summary.ImportID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if committed.Status != ImportCommitted {
		t.Fatalf("status = %s, want committed", committed.Status)
	}
	if _, ok := incidents.get("INC010"); !ok {
		t.Fatal("held batch not committed after retry")
	}
}

func TestResolveAllGhosts(t *testing.T) {
	incidents := newFakeIncidentRepo(
		domain.Incident{Numero: "INC-A", Stato: domain.StatusAperto},
		domain.Incident{Numero: "INC-B", Stato: domain.StatusAperto},
	)
	svc := newImportService(incidents, newFakeSupplierRepo(nil))

	summary, err := svc.ProcessFile(context.Background(), "laser.csv", []byte("Numero,Stato\nINC010,Aperto\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	committed, err := svc.ResolveAllGhosts(context.Background(), summary.ImportID)
	if err != nil {
		t.Fatalf("resolve all: %v", err)
	}
	if committed.Status != ImportCommitted {
		t.Fatalf("status = %s", committed.Status)
	}
	for _, numero := range []string{"INC-A", "INC-B"} {
		rec, _ := incidents.get(numero)
		if rec.Stato != domain.StatusRiassegnato {
			t.Errorf("%s stato = %s, want Riassegnato", numero, rec.Stato)
		}
	}
}

func TestDismissGhostsCommitsWithoutTouchingThem(t *testing.T) {
	incidents := newFakeIncidentRepo(
		domain.Incident{Numero: "INC-A", Stato: domain.StatusAperto},
	)
	svc := newImportService(incidents, newFakeSupplierRepo(nil))

	summary, err := svc.ProcessFile(context.Background(), "laser.csv", []byte("Numero,Stato\nINC010,Aperto\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	committed, err := svc.DismissGhosts(context.Background(), summary.ImportID)
	if err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if committed.Status != ImportCommitted {
		t.Fatalf("status = %s", committed.Status)
	}
	rec, _ := incidents.get("INC-A")
	if rec.Stato != domain.StatusAperto {
		t.Fatalf("dismiss must not touch ghosts: %+v", rec)
	}
}

func TestAbortPendingDiscardsBatch(t *testing.T) {
	incidents := newFakeIncidentRepo(
		domain.Incident{Numero: "INC-A", Stato: domain.StatusAperto},
	)
	svc := newImportService(incidents, newFakeSupplierRepo(nil))

	summary, err := svc.ProcessFile(context.Background(), "laser.csv", []byte("Numero,Stato\nINC010,Aperto\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.AbortPending(context.Background(), summary.ImportID); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if _, ok := incidents.get("INC010"); ok {
		t.Fatal("aborted batch must not be committed")
	}
	if len(svc.PendingImports()) != 0 {
		t.Fatal("aborted batch should leave the registry")
	}
	// The id is gone afterwards.
	if _, err := svc.ResolveAllGhosts(context.Background(), summary.ImportID); err == nil {
		t.Fatal("expected not found for aborted import id")
	}
}

func TestProcessFilePartialFeedMergesOntoExisting(t *testing.T) {
	opened := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	incidents := newFakeIncidentRepo(domain.Incident{
		Numero:           "INC001",
		Stato:            domain.StatusAperto,
		Regione:          "Lazio",
		BreveDescrizione: "Guasto stampante",
		DataApertura:     &opened,
	})
	svc := newImportService(incidents, newFakeSupplierRepo(nil))

	// The violation feed carries only its own columns; the commit must not
	// wipe what it does not mention.
	payload := []byte("Numero,Stato,In SLA,Durata,Violazione Avvenuta\nINC001,Chiuso,NO,3000,SI\n")
	summary, err := svc.ProcessFile(context.Background(), "laser OUT.csv", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Profile != ingest.ProfileSLAViolations {
		t.Fatalf("profile = %s", summary.Profile)
	}
	if summary.Status != ImportCommitted {
		t.Fatalf("status = %s", summary.Status)
	}

	rec, _ := incidents.get("INC001")
	if rec.Stato != domain.StatusChiuso || rec.InSLA != "NO" || rec.Durata != 3000 {
		t.Fatalf("violation columns not applied: %+v", rec)
	}
	if rec.Regione != "Lazio" || rec.BreveDescrizione != "Guasto stampante" {
		t.Fatalf("unmentioned columns wiped: %+v", rec)
	}
	if rec.DataApertura == nil || !rec.DataApertura.Equal(opened) {
		t.Fatalf("data apertura wiped: %+v", rec)
	}
}

func TestProcessFileTerritoryReplacesLookup(t *testing.T) {
	suppliers := newFakeSupplierRepo(map[string]string{"MI": "OldSupplier"})
	svc := newImportService(newFakeIncidentRepo(), suppliers)

	payload := []byte("Provincia,Fornitore\nMI,NordTech\nRM,TechService\n")
	summary, err := svc.ProcessFile(context.Background(), "distribuzione fornitori.csv", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Status != ImportTerritories || summary.Success != 2 {
		t.Fatalf("summary = %+v", summary)
	}

	table, _ := suppliers.LookupTable(context.Background())
	if table["MI"] != "NordTech" || table["RM"] != "TechService" {
		t.Fatalf("lookup not replaced: %v", table)
	}
}

func TestProcessFilePlanningPatchesExisting(t *testing.T) {
	incidents := newFakeIncidentRepo(
		domain.Incident{Numero: "INC001", Stato: domain.StatusAperto},
	)
	svc := newImportService(incidents, newFakeSupplierRepo(nil))

	payload := []byte("Numero,Pianificazione\nINC001,20/05/2024\nINC-MISSING,21/05/2024\n")
	summary, err := svc.ProcessFile(context.Background(), "pianificazione.csv", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Status != ImportPlanning {
		t.Fatalf("status = %s", summary.Status)
	}
	if summary.Success != 1 || len(summary.Failures) != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	rec, _ := incidents.get("INC001")
	if rec.Pianificazione == nil || !rec.Pianificazione.Equal(time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("planning not applied: %+v", rec)
	}
}

func TestProcessFileInventoryDefaultsForNewRecords(t *testing.T) {
	incidents := newFakeIncidentRepo()
	svc := newImportService(incidents, newFakeSupplierRepo(nil))

	payload := []byte("Anagrafica Siti\nNumero Ticket,Regione,Provincia\nINC050,Lazio,RM\n")
	summary, err := svc.ProcessFile(context.Background(), "anagrafica siti.csv", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Status != ImportCommitted {
		t.Fatalf("status = %s", summary.Status)
	}

	rec, ok := incidents.get("INC050")
	if !ok {
		t.Fatal("record not created")
	}
	if rec.Stato != domain.StatusChiuso {
		t.Fatalf("stato = %s, want inventory default Chiuso", rec.Stato)
	}
	if rec.BreveDescrizione != "Sito censito da anagrafica" {
		t.Fatalf("breve descrizione = %q", rec.BreveDescrizione)
	}
}

func TestProcessFileReimportIsIdempotent(t *testing.T) {
	incidents := newFakeIncidentRepo()
	svc := newImportService(incidents, newFakeSupplierRepo(nil))

	payload := []byte("Numero,Stato,Regione\nINC001,Aperto,Lazio\n")
	if _, err := svc.ProcessFile(context.Background(), "laser.csv", payload); err != nil {
		t.Fatalf("first import: %v", err)
	}
	summary, err := svc.ProcessFile(context.Background(), "laser.csv", payload)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if summary.Status != ImportCommitted {
		t.Fatalf("status = %s", summary.Status)
	}

	if len(incidents.records) != 1 {
		t.Fatalf("records = %d, want 1 (upsert keyed by numero)", len(incidents.records))
	}
}
