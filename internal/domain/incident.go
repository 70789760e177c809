package domain

import "time"

// IncidentStatus enumerates lifecycle states observed across the source feeds.
// Italian and English spellings coexist because the upstream platform emits both.
type IncidentStatus string

const (
	StatusAperto        IncidentStatus = "Aperto"
	StatusOpen          IncidentStatus = "Open"
	StatusInCorso       IncidentStatus = "In Corso"
	StatusInLavorazione IncidentStatus = "In Lavorazione"
	StatusSospeso       IncidentStatus = "Sospeso"
	StatusSuspended     IncidentStatus = "Suspended"
	StatusChiuso        IncidentStatus = "Chiuso"
	StatusClosed        IncidentStatus = "Closed"
	StatusRiassegnato   IncidentStatus = "Riassegnato"
	StatusAnnullato     IncidentStatus = "Annullato"
)

// ActiveStatuses is the backlog membership set used by ghost reconciliation.
var ActiveStatuses = []IncidentStatus{
	StatusAperto,
	StatusOpen,
	StatusInCorso,
	StatusInLavorazione,
	StatusSospeso,
	StatusSuspended,
}

// IsClosed reports whether the status is terminal for backlog membership.
func (s IncidentStatus) IsClosed() bool {
	return s == StatusChiuso || s == StatusClosed
}

// IsActive reports whether the status counts toward the open backlog.
func (s IncidentStatus) IsActive() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// IsSuspended reports whether the status is a suspension variant.
func (s IncidentStatus) IsSuspended() bool {
	return s == StatusSospeso || s == StatusSuspended
}

// PartsStatus enumerates the parts-request lifecycle.
type PartsStatus string

const (
	PartsPending     PartsStatus = "Pending"
	PartsInGestione  PartsStatus = "In gestione"
	PartsDisponibile PartsStatus = "Disponibile"
	PartsEvasione    PartsStatus = "Evasione"
	PartsConsegnato  PartsStatus = "CONSEGNATO"
	PartsBocciato    PartsStatus = "Bocciato"
	PartsAnnullato   PartsStatus = "Annullato"
)

// partsNext maps each lifecycle state to its allowed successors.
// Bocciato and Annullato are side exits reachable from any non-terminal state.
var partsNext = map[PartsStatus][]PartsStatus{
	PartsPending:     {PartsInGestione, PartsBocciato, PartsAnnullato},
	PartsInGestione:  {PartsDisponibile, PartsBocciato, PartsAnnullato},
	PartsDisponibile: {PartsEvasione, PartsBocciato, PartsAnnullato},
	PartsEvasione:    {PartsConsegnato, PartsBocciato, PartsAnnullato},
}

// CanTransition reports whether moving from one parts status to another is allowed.
func (s PartsStatus) CanTransition(to PartsStatus) bool {
	for _, n := range partsNext[s] {
		if n == to {
			return true
		}
	}
	return false
}

// PenaltyThresholdMinutes is the resolution duration beyond which an SLA
// breach counts as a contractual penalty (44 hours).
const PenaltyThresholdMinutes = 2640

// Incident is the canonical record normalized from any source feed.
// Columns that have no canonical attribute are retained in Extra untouched.
type Incident struct {
	Numero             string
	Stato              IncidentStatus
	GruppoAssegnazione string

	DataApertura             *time.Time
	DataAggiornamento        *time.Time
	DataUltimaRiassegnazione *time.Time
	DataChiusura             *time.Time
	Pianificazione           *time.Time
	OraViolazione            *time.Time
	DataRichiestaParti       *time.Time
	DataConsegna             *time.Time

	ViolazioneAvvenuta bool
	InSLA              string
	Durata             int
	ServizioHD         string

	Regione        string
	Citta          string
	ProvinciaStato string
	Fornitore      string

	Indirizzo             string
	IndirizzoBeneficiario string
	Seriale               string

	PartiRichieste    []string
	RichiestaApparato bool
	StatoRichiesta    PartsStatus
	LDV               string

	BreveDescrizione string
	Descrizione      string
	Note             []NoteEntry

	Extra map[string]string
}

// HasPartsRequest reports whether a parts request is pending on the record.
func (i *Incident) HasPartsRequest() bool {
	return len(i.PartiRichieste) > 0
}

// InSLAValid reports whether the SLA outcome is usable for rollups.
// Anything other than SI/NO is excluded from numerators and denominators.
func (i *Incident) InSLAValid() bool {
	return i.InSLA == "SI" || i.InSLA == "NO"
}

// IsPenalty reports whether the record counts as a contractual penalty:
// a valid SLA outcome with a resolution duration strictly over the threshold.
func (i *Incident) IsPenalty() bool {
	return i.InSLAValid() && i.Durata > PenaltyThresholdMinutes
}

// ClosedIn reports whether the record was closed within the given month.
func (i *Incident) ClosedIn(year int, month time.Month) bool {
	if i.DataChiusura == nil {
		return false
	}
	return i.DataChiusura.Year() == year && i.DataChiusura.Month() == month
}

// OpenedIn reports whether the record was opened within the given month.
func (i *Incident) OpenedIn(year int, month time.Month) bool {
	if i.DataApertura == nil {
		return false
	}
	return i.DataApertura.Year() == year && i.DataApertura.Month() == month
}
