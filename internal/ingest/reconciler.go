package ingest

import (
	"errors"
	"sync"
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// ReconcileState tracks the lifecycle of a held import batch.
type ReconcileState string

const (
	StateIdle          ReconcileState = "Idle"
	StateGhostsPending ReconcileState = "GhostsPending"
	StateResolving     ReconcileState = "Resolving"
	StateCommitted     ReconcileState = "Committed"
	StateAborted       ReconcileState = "Aborted"
)

// ErrGhostNotFound is returned when resolving a numero that is not a ghost
// of the pending import.
var ErrGhostNotFound = errors.New("ghost not found in pending import")

// ErrNotPending is returned for operations on a batch that is no longer held.
var ErrNotPending = errors.New("import is not pending ghost resolution")

// Ghost is a store-side active record absent from the newest authoritative feed.
type Ghost struct {
	Numero  string
	Stato   domain.IncidentStatus
	Regione string
}

// FindGhosts computes the exact set difference between the store's active
// backlog and the imported identifiers. The reconciler never guesses why a
// ticket went missing; every ghost requires an explicit human decision.
func FindGhosts(active []domain.Incident, importedIDs map[string]struct{}) []Ghost {
	var ghosts []Ghost
	for _, rec := range active {
		if _, ok := importedIDs[rec.Numero]; ok {
			continue
		}
		ghosts = append(ghosts, Ghost{Numero: rec.Numero, Stato: rec.Stato, Regione: rec.Regione})
	}
	return ghosts
}

// ImportedIDs extracts the identifier set of a normalized batch.
func ImportedIDs(records []NormalizedRecord) map[string]struct{} {
	ids := make(map[string]struct{}, len(records))
	for _, rec := range records {
		ids[rec.Numero] = struct{}{}
	}
	return ids
}

// PendingImport holds a normalized batch whose commit is gated on ghost
// resolution. The batch is released only when every ghost has been resolved
// or review is explicitly dismissed.
type PendingImport struct {
	ID        string
	FileName  string
	Profile   Profile
	Records   []NormalizedRecord
	Rows      int
	Dropped   int
	CreatedAt time.Time

	mu     sync.Mutex
	state  ReconcileState
	ghosts map[string]Ghost
}

// NewPendingImport creates a held batch in GhostsPending state. rows is the
// parsed row count of the source file, kept so the post-resolution summary
// reports the same figure the upload did.
func NewPendingImport(id, fileName string, profile Profile, records []NormalizedRecord, rows, dropped int, ghosts []Ghost, now time.Time) *PendingImport {
	ghostSet := make(map[string]Ghost, len(ghosts))
	for _, g := range ghosts {
		ghostSet[g.Numero] = g
	}
	return &PendingImport{
		ID:        id,
		FileName:  fileName,
		Profile:   profile,
		Records:   records,
		Rows:      rows,
		Dropped:   dropped,
		CreatedAt: now,
		state:     StateGhostsPending,
		ghosts:    ghostSet,
	}
}

// State returns the current lifecycle state.
func (p *PendingImport) State() ReconcileState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Ghosts returns the remaining unresolved ghosts.
func (p *PendingImport) Ghosts() []Ghost {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Ghost, 0, len(p.ghosts))
	for _, g := range p.ghosts {
		out = append(out, g)
	}
	return out
}

// HasGhost reports whether numero is still awaiting resolution. Callers that
// must persist a side effect before resolving use this to validate first, so
// the ghost leaves the review set only after the side effect succeeded.
func (p *PendingImport) HasGhost(numero string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateGhostsPending {
		return ErrNotPending
	}
	if _, ok := p.ghosts[numero]; !ok {
		return ErrGhostNotFound
	}
	return nil
}

// ResolveGhost removes one ghost from the pending set. It returns true when
// no ghosts remain, meaning the batch is ready to commit.
func (p *PendingImport) ResolveGhost(numero string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateGhostsPending {
		return false, ErrNotPending
	}
	if _, ok := p.ghosts[numero]; !ok {
		return false, ErrGhostNotFound
	}
	delete(p.ghosts, numero)
	if len(p.ghosts) == 0 {
		p.state = StateResolving
		return true, nil
	}
	return false, nil
}

// ResolveAll drains the ghost set and returns the drained ghosts.
func (p *PendingImport) ResolveAll() ([]Ghost, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateGhostsPending {
		return nil, ErrNotPending
	}
	out := make([]Ghost, 0, len(p.ghosts))
	for _, g := range p.ghosts {
		out = append(out, g)
	}
	p.ghosts = map[string]Ghost{}
	p.state = StateResolving
	return out, nil
}

// Dismiss abandons ghost review and marks the batch ready to commit as-is.
// It also accepts a batch already in Resolving state, so a commit attempt
// that failed against the store can be retried instead of wedging the batch.
func (p *PendingImport) Dismiss() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateGhostsPending && p.state != StateResolving {
		return ErrNotPending
	}
	p.ghosts = map[string]Ghost{}
	p.state = StateResolving
	return nil
}

// MarkCommitted finalizes the lifecycle after a successful commit.
func (p *PendingImport) MarkCommitted() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateResolving {
		return ErrNotPending
	}
	p.state = StateCommitted
	return nil
}

// Abort discards the held batch without committing.
func (p *PendingImport) Abort() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateCommitted || p.state == StateAborted {
		return ErrNotPending
	}
	p.state = StateAborted
	return nil
}
