package dto

import (
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse payload.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PartsRequest payload.
type PartsRequest struct {
	Parti []string `json:"parti"`
}

// PartsStatusRequest payload.
type PartsStatusRequest struct {
	Stato string  `json:"stato"`
	LDV   *string `json:"ldv,omitempty"`
}

// NoteRequest payload.
type NoteRequest struct {
	Text string `json:"text"`
}

// NoteEntryResponse is one decoded note log line.
type NoteEntryResponse struct {
	At     *time.Time `json:"at,omitempty"`
	Author string     `json:"author,omitempty"`
	Text   string     `json:"text"`
}

// IncidentResponse is the full canonical record.
type IncidentResponse struct {
	Numero             string `json:"numero"`
	Stato              string `json:"stato"`
	GruppoAssegnazione string `json:"gruppo_assegnazione,omitempty"`

	DataApertura             *time.Time `json:"data_apertura,omitempty"`
	DataAggiornamento        *time.Time `json:"data_aggiornamento,omitempty"`
	DataUltimaRiassegnazione *time.Time `json:"data_ultima_riassegnazione,omitempty"`
	DataChiusura             *time.Time `json:"data_chiusura,omitempty"`
	Pianificazione           *time.Time `json:"pianificazione,omitempty"`
	OraViolazione            *time.Time `json:"ora_violazione,omitempty"`
	DataRichiestaParti       *time.Time `json:"data_richiesta_parti,omitempty"`
	DataConsegna             *time.Time `json:"data_consegna,omitempty"`

	ViolazioneAvvenuta bool   `json:"violazione_avvenuta"`
	InSLA              string `json:"in_sla,omitempty"`
	Durata             int    `json:"durata"`
	ServizioHD         string `json:"servizio_hd,omitempty"`

	Regione        string `json:"regione,omitempty"`
	Citta          string `json:"citta,omitempty"`
	ProvinciaStato string `json:"provincia_stato,omitempty"`
	Fornitore      string `json:"fornitore,omitempty"`

	Indirizzo             string `json:"indirizzo,omitempty"`
	IndirizzoBeneficiario string `json:"indirizzo_beneficiario,omitempty"`
	Seriale               string `json:"seriale,omitempty"`

	PartiRichieste    []string `json:"parti_richieste,omitempty"`
	RichiestaApparato bool     `json:"richiesta_apparato"`
	StatoRichiesta    string   `json:"stato_richiesta,omitempty"`
	LDV               string   `json:"ldv,omitempty"`

	BreveDescrizione string              `json:"breve_descrizione,omitempty"`
	Descrizione      string              `json:"descrizione,omitempty"`
	Note             []NoteEntryResponse `json:"note,omitempty"`

	Extra map[string]string `json:"extra,omitempty"`
}

// FromIncident maps the domain record to its response shape.
func FromIncident(rec *domain.Incident) IncidentResponse {
	notes := make([]NoteEntryResponse, 0, len(rec.Note))
	for _, entry := range rec.Note {
		out := NoteEntryResponse{Author: entry.Author, Text: entry.Text}
		if !entry.At.IsZero() {
			at := entry.At
			out.At = &at
		}
		notes = append(notes, out)
	}
	return IncidentResponse{
		Numero:                   rec.Numero,
		Stato:                    string(rec.Stato),
		GruppoAssegnazione:       rec.GruppoAssegnazione,
		DataApertura:             rec.DataApertura,
		DataAggiornamento:        rec.DataAggiornamento,
		DataUltimaRiassegnazione: rec.DataUltimaRiassegnazione,
		DataChiusura:             rec.DataChiusura,
		Pianificazione:           rec.Pianificazione,
		OraViolazione:            rec.OraViolazione,
		DataRichiestaParti:       rec.DataRichiestaParti,
		DataConsegna:             rec.DataConsegna,
		ViolazioneAvvenuta:       rec.ViolazioneAvvenuta,
		InSLA:                    rec.InSLA,
		Durata:                   rec.Durata,
		ServizioHD:               rec.ServizioHD,
		Regione:                  rec.Regione,
		Citta:                    rec.Citta,
		ProvinciaStato:           rec.ProvinciaStato,
		Fornitore:                rec.Fornitore,
		Indirizzo:                rec.Indirizzo,
		IndirizzoBeneficiario:    rec.IndirizzoBeneficiario,
		Seriale:                  rec.Seriale,
		PartiRichieste:           rec.PartiRichieste,
		RichiestaApparato:        rec.RichiestaApparato,
		StatoRichiesta:           string(rec.StatoRichiesta),
		LDV:                      rec.LDV,
		BreveDescrizione:         rec.BreveDescrizione,
		Descrizione:              rec.Descrizione,
		Note:                     notes,
		Extra:                    rec.Extra,
	}
}
