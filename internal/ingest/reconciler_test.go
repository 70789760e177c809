package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

func activeRecord(numero, regione string) domain.Incident {
	return domain.Incident{Numero: numero, Stato: domain.StatusAperto, Regione: regione}
}

func TestFindGhosts(t *testing.T) {
	active := []domain.Incident{
		activeRecord("INC001", "Lazio"),
		activeRecord("INC002", "Lazio"),
		activeRecord("INC003", "Molise"),
	}
	imported := map[string]struct{}{"INC001": {}, "INC003": {}}

	ghosts := FindGhosts(active, imported)
	if len(ghosts) != 1 {
		t.Fatalf("ghosts = %d, want 1", len(ghosts))
	}
	if ghosts[0].Numero != "INC002" || ghosts[0].Regione != "Lazio" {
		t.Fatalf("unexpected ghost %+v", ghosts[0])
	}
}

func TestFindGhostsEmptyImportFlagsEverything(t *testing.T) {
	active := []domain.Incident{activeRecord("INC001", ""), activeRecord("INC002", "")}
	ghosts := FindGhosts(active, map[string]struct{}{})
	if len(ghosts) != len(active) {
		t.Fatalf("ghosts = %d, want %d: an empty feed is suspicious, not a mass closure", len(ghosts), len(active))
	}
}

func TestFindGhostsNoActive(t *testing.T) {
	if ghosts := FindGhosts(nil, map[string]struct{}{"INC001": {}}); len(ghosts) != 0 {
		t.Fatalf("ghosts = %d, want 0", len(ghosts))
	}
}

func newPending(t *testing.T, ghosts ...Ghost) *PendingImport {
	t.Helper()
	records := []NormalizedRecord{{Numero: "INC100"}}
	return NewPendingImport("imp-1", "laser.xlsx", ProfileMain, records, 1, 0, ghosts, time.Now())
}

func TestPendingImportResolveOneByOne(t *testing.T) {
	p := newPending(t, Ghost{Numero: "INC001"}, Ghost{Numero: "INC002"})
	if p.State() != StateGhostsPending {
		t.Fatalf("state = %s", p.State())
	}

	ready, err := p.ResolveGhost("INC001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ready {
		t.Fatal("should not be ready with one ghost left")
	}

	ready, err = p.ResolveGhost("INC002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ready {
		t.Fatal("last resolution should report ready")
	}
	if p.State() != StateResolving {
		t.Fatalf("state = %s, want Resolving", p.State())
	}

	if err := p.MarkCommitted(); err != nil {
		t.Fatalf("mark committed: %v", err)
	}
	if p.State() != StateCommitted {
		t.Fatalf("state = %s, want Committed", p.State())
	}
}

func TestPendingImportHasGhost(t *testing.T) {
	p := newPending(t, Ghost{Numero: "INC001"})
	if err := p.HasGhost("INC001"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The check does not consume the ghost.
	if err := p.HasGhost("INC001"); err != nil {
		t.Fatalf("second check: %v", err)
	}
	if err := p.HasGhost("INC999"); !errors.Is(err, ErrGhostNotFound) {
		t.Fatalf("got %v, want ErrGhostNotFound", err)
	}
	if err := p.Dismiss(); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if err := p.HasGhost("INC001"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("got %v, want ErrNotPending", err)
	}
}

func TestPendingImportResolveUnknownGhost(t *testing.T) {
	p := newPending(t, Ghost{Numero: "INC001"})
	if _, err := p.ResolveGhost("INC999"); !errors.Is(err, ErrGhostNotFound) {
		t.Fatalf("got %v, want ErrGhostNotFound", err)
	}
}

func TestPendingImportResolveAll(t *testing.T) {
	p := newPending(t, Ghost{Numero: "INC001"}, Ghost{Numero: "INC002"})
	drained, err := p.ResolveAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drained) != 2 {
		t.Fatalf("drained = %d, want 2", len(drained))
	}
	if len(p.Ghosts()) != 0 {
		t.Fatal("ghost set should be empty")
	}
	if p.State() != StateResolving {
		t.Fatalf("state = %s, want Resolving", p.State())
	}
}

func TestPendingImportDismiss(t *testing.T) {
	p := newPending(t, Ghost{Numero: "INC001"})
	if err := p.Dismiss(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.State() != StateResolving {
		t.Fatalf("state = %s, want Resolving", p.State())
	}
	// A dismissed batch cannot be resolved again.
	if _, err := p.ResolveGhost("INC001"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("got %v, want ErrNotPending", err)
	}
}

func TestPendingImportDismissRepeatableWhileResolving(t *testing.T) {
	p := newPending(t, Ghost{Numero: "INC001"})
	if err := p.Dismiss(); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	// A batch stuck in Resolving after a failed commit can be re-released.
	if err := p.Dismiss(); err != nil {
		t.Fatalf("dismiss while resolving: %v", err)
	}
	if err := p.MarkCommitted(); err != nil {
		t.Fatalf("mark committed: %v", err)
	}
	if err := p.Dismiss(); !errors.Is(err, ErrNotPending) {
		t.Fatalf("dismiss after commit: got %v, want ErrNotPending", err)
	}
}

func TestPendingImportAbort(t *testing.T) {
	p := newPending(t, Ghost{Numero: "INC001"})
	if err := p.Abort(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.State() != StateAborted {
		t.Fatalf("state = %s, want Aborted", p.State())
	}
	if err := p.Abort(); !errors.Is(err, ErrNotPending) {
		t.Fatalf("double abort: got %v, want ErrNotPending", err)
	}
}

func TestImportedIDs(t *testing.T) {
	ids := ImportedIDs([]NormalizedRecord{{Numero: "INC001"}, {Numero: "INC002"}})
	if len(ids) != 2 {
		t.Fatalf("ids = %d, want 2", len(ids))
	}
	if _, ok := ids["INC001"]; !ok {
		t.Fatal("INC001 missing")
	}
}
