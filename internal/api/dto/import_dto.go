package dto

import (
	"time"

	"github.com/spec-kit/incident-service/internal/ingest"
)

// GhostResponse is one unresolved ghost candidate.
type GhostResponse struct {
	Numero  string `json:"numero"`
	Stato   string `json:"stato"`
	Regione string `json:"regione"`
}

// PendingImportResponse describes a batch awaiting ghost resolution.
type PendingImportResponse struct {
	ImportID  string          `json:"import_id"`
	FileName  string          `json:"file_name"`
	Profile   string          `json:"profile"`
	State     string          `json:"state"`
	Rows      int             `json:"rows"`
	Records   int             `json:"records"`
	CreatedAt time.Time       `json:"created_at"`
	Ghosts    []GhostResponse `json:"ghosts"`
}

// FromPendingImport maps a held batch to its response shape.
func FromPendingImport(p *ingest.PendingImport) PendingImportResponse {
	ghosts := p.Ghosts()
	out := PendingImportResponse{
		ImportID:  p.ID,
		FileName:  p.FileName,
		Profile:   string(p.Profile),
		State:     string(p.State()),
		Rows:      p.Rows,
		Records:   len(p.Records),
		CreatedAt: p.CreatedAt,
		Ghosts:    make([]GhostResponse, 0, len(ghosts)),
	}
	for _, g := range ghosts {
		out.Ghosts = append(out.Ghosts, GhostResponse{
			Numero:  g.Numero,
			Stato:   string(g.Stato),
			Regione: g.Regione,
		})
	}
	return out
}
