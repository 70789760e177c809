package ingest

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/domain"
)

// Canonical attribute names shared by every profile dictionary.
const (
	attrNumero                   = "numero"
	attrStato                    = "stato"
	attrGruppoAssegnazione       = "gruppo_assegnazione"
	attrDataApertura             = "data_apertura"
	attrDataAggiornamento        = "data_aggiornamento"
	attrDataUltimaRiassegnazione = "data_ultima_riassegnazione"
	attrDataChiusura             = "data_chiusura"
	attrPianificazione           = "pianificazione"
	attrOraViolazione            = "ora_violazione"
	attrViolazioneAvvenuta       = "violazione_avvenuta"
	attrInSLA                    = "in_sla"
	attrDurata                   = "durata"
	attrServizioHD               = "servizio_hd"
	attrRegione                  = "regione"
	attrCitta                    = "citta"
	attrProvinciaStato           = "provincia_stato"
	attrFornitore                = "fornitore"
	attrIndirizzo                = "indirizzo"
	attrIndirizzoBeneficiario    = "indirizzo_beneficiario"
	attrSeriale                  = "seriale"
	attrPartiRichieste           = "parti_richieste"
	attrRichiestaApparato        = "richiesta_apparato"
	attrStatoRichiesta           = "stato_richiesta"
	attrDataRichiestaParti       = "data_richiesta_parti"
	attrLDV                      = "ldv"
	attrDataConsegna             = "data_consegna"
	attrBreveDescrizione         = "breve_descrizione"
	attrDescrizione              = "descrizione"
	attrNoteLaser                = "note_laser"
	attrProvincia                = "provincia"
)

// columnDictionary maps lowercased source headers to canonical attributes.
type columnDictionary map[string]string

var mainColumns = columnDictionary{
	"numero":                     attrNumero,
	"stato":                      attrStato,
	"gruppo di assegnazione":     attrGruppoAssegnazione,
	"data di apertura":           attrDataApertura,
	"data di aggiornamento":      attrDataAggiornamento,
	"data ultima riassegnazione": attrDataUltimaRiassegnazione,
	"chiuso":                     attrDataChiusura,
	"pianificazione":             attrPianificazione,
	"ora violazione":             attrOraViolazione,
	"violazione avvenuta":        attrViolazioneAvvenuta,
	"in sla":                     attrInSLA,
	"durata":                     attrDurata,
	"servizio hd":                attrServizioHD,
	"regione":                    attrRegione,
	"città":                      attrCitta,
	"citta":                      attrCitta,
	"provincia stato":            attrProvinciaStato,
	"fornitore":                  attrFornitore,
	"indirizzo":                  attrIndirizzo,
	"indirizzo beneficiario":     attrIndirizzoBeneficiario,
	"numero di serie":            attrSeriale,
	"parti richieste":            attrPartiRichieste,
	"richiesta apparato":         attrRichiestaApparato,
	"stato richiesta":            attrStatoRichiesta,
	"data richiesta parti":       attrDataRichiestaParti,
	"ldv":                        attrLDV,
	"data consegna":              attrDataConsegna,
	"breve descrizione":          attrBreveDescrizione,
	"descrizione":                attrDescrizione,
	"note laser":                 attrNoteLaser,
}

var slaViolationColumns = columnDictionary{
	"numero":              attrNumero,
	"stato":               attrStato,
	"ora violazione":      attrOraViolazione,
	"violazione avvenuta": attrViolazioneAvvenuta,
	"in sla":              attrInSLA,
	"durata":              attrDurata,
	"servizio hd":         attrServizioHD,
	"chiuso":              attrDataChiusura,
	"regione":             attrRegione,
	"fornitore":           attrFornitore,
}

var postSaleColumns = columnDictionary{
	"number":            attrNumero,
	"state":             attrStato,
	"assignment group":  attrGruppoAssegnazione,
	"opened":            attrDataApertura,
	"updated":           attrDataAggiornamento,
	"closed":            attrDataChiusura,
	"short description": attrBreveDescrizione,
	"description":       attrDescrizione,
	"region":            attrRegione,
	"city":              attrCitta,
	"province":          attrProvinciaStato,
	"supplier":          attrFornitore,
	"serial number":     attrSeriale,
}

var siteInventoryColumns = columnDictionary{
	"numero ticket":  attrNumero,
	"regione":        attrRegione,
	"città":          attrCitta,
	"citta":          attrCitta,
	"provincia":      attrProvinciaStato,
	"indirizzo sito": attrIndirizzo,
	"seriale":        attrSeriale,
	"gruppo":         attrGruppoAssegnazione,
}

var siteInventoryAltColumns = columnDictionary{
	"ticket":    attrNumero,
	"regione":   attrRegione,
	"comune":    attrCitta,
	"prov":      attrProvinciaStato,
	"indirizzo": attrIndirizzo,
	"matricola": attrSeriale,
	"gruppo":    attrGruppoAssegnazione,
}

var territoryColumns = columnDictionary{
	"provincia": attrProvincia,
	"fornitore": attrFornitore,
}

var planningColumns = columnDictionary{
	"numero":              attrNumero,
	"pianificazione":      attrPianificazione,
	"data pianificazione": attrPianificazione,
}

var profileDictionaries = map[Profile]columnDictionary{
	ProfileMain:             mainColumns,
	ProfileSLAViolations:    slaViolationColumns,
	ProfilePostSale:         postSaleColumns,
	ProfileSiteInventory:    siteInventoryColumns,
	ProfileSiteInventoryAlt: siteInventoryAltColumns,
	ProfileTerritory:        territoryColumns,
	ProfilePlanning:         planningColumns,
}

// NormalizedRecord is one canonical incident plus the set of attributes the
// source row actually provided, so callers can merge onto existing records
// without wiping attributes the feed does not carry.
type NormalizedRecord struct {
	Numero   string
	Attrs    map[string]string
	Incident domain.Incident
}

// PlanningUpdate patches the planned intervention date of one record.
type PlanningUpdate struct {
	Numero         string
	Pianificazione *time.Time
}

// NormalizeResult is the outcome of remapping a parsed sheet.
type NormalizeResult struct {
	Records     []NormalizedRecord
	Territories []domain.SupplierTerritory
	Planning    []PlanningUpdate
	Dropped     int
}

// Normalizer remaps source rows to canonical incident records.
type Normalizer struct {
	suppliers map[string]string
	logger    *zap.Logger
}

// NewNormalizer builds a normalizer with the given supplier lookup table.
func NewNormalizer(suppliers map[string]string, logger *zap.Logger) *Normalizer {
	return &Normalizer{suppliers: suppliers, logger: logger}
}

// Normalize remaps rows for the matched profile. Rows lacking a resolvable
// numero are dropped silently and counted; this is not an error.
func (n *Normalizer) Normalize(profile Profile, rows []Row) NormalizeResult {
	dictionary, ok := profileDictionaries[profile]
	if !ok {
		return NormalizeResult{Dropped: len(rows)}
	}

	var result NormalizeResult
	for _, row := range rows {
		attrs := remapRow(dictionary, row)

		switch profile {
		case ProfileTerritory:
			provincia := strings.ToUpper(strings.TrimSpace(attrs[attrProvincia]))
			fornitore := strings.TrimSpace(attrs[attrFornitore])
			if provincia == "" || fornitore == "" {
				result.Dropped++
				continue
			}
			result.Territories = append(result.Territories, domain.SupplierTerritory{
				Provincia: provincia,
				Fornitore: fornitore,
			})
		case ProfilePlanning:
			numero := strings.TrimSpace(attrs[attrNumero])
			if numero == "" {
				result.Dropped++
				continue
			}
			update := PlanningUpdate{Numero: numero}
			if t, ok := ParseDateValue(attrs[attrPianificazione]); ok {
				update.Pianificazione = &t
			}
			result.Planning = append(result.Planning, update)
		default:
			numero := strings.TrimSpace(attrs[attrNumero])
			if numero == "" {
				result.Dropped++
				continue
			}
			incident := ApplyAttrs(domain.Incident{}, attrs)
			n.assignSupplier(&incident)
			result.Records = append(result.Records, NormalizedRecord{
				Numero:   numero,
				Attrs:    attrs,
				Incident: incident,
			})
		}
	}

	if result.Dropped > 0 && n.logger != nil {
		n.logger.Info("rows dropped during normalization",
			zap.String("profile", string(profile)),
			zap.Int("dropped", result.Dropped))
	}
	return result
}

// Remap merges a normalized row onto an existing record, overwriting only
// the attributes the source row provided.
func (n *Normalizer) Remap(existing domain.Incident, rec NormalizedRecord) domain.Incident {
	merged := ApplyAttrs(existing, rec.Attrs)
	n.assignSupplier(&merged)
	return merged
}

// ApplyInventoryDefaults fills the fields a creation requires when an
// inventory-only feed references a ticket the store does not know yet.
func ApplyInventoryDefaults(incident *domain.Incident) {
	if incident.Stato == "" {
		incident.Stato = domain.StatusChiuso
	}
	if incident.BreveDescrizione == "" {
		incident.BreveDescrizione = "Sito censito da anagrafica"
	}
}

// assignSupplier derives fornitore from the province code when absent.
// Resolution is exact-match only; a miss leaves the field empty.
func (n *Normalizer) assignSupplier(incident *domain.Incident) {
	if incident.Fornitore != "" || incident.ProvinciaStato == "" {
		return
	}
	key := strings.ToUpper(strings.TrimSpace(incident.ProvinciaStato))
	if fornitore, ok := n.suppliers[key]; ok {
		incident.Fornitore = fornitore
	}
}

func remapRow(dictionary columnDictionary, row Row) map[string]string {
	attrs := make(map[string]string, len(row))
	for header, value := range row {
		canonical, ok := dictionary[strings.ToLower(strings.TrimSpace(header))]
		if !ok {
			// Passthrough: unmapped columns survive under their own name.
			canonical = strings.ToLower(strings.TrimSpace(header))
		}
		if value == "" && attrs[canonical] != "" {
			continue
		}
		attrs[canonical] = value
	}
	return attrs
}

// ApplyAttrs writes canonical attributes onto a record, coercing dates,
// numbers, and flags. Attributes with no canonical field land in Extra.
func ApplyAttrs(base domain.Incident, attrs map[string]string) domain.Incident {
	rec := base
	for attr, value := range attrs {
		switch attr {
		case attrNumero:
			rec.Numero = strings.TrimSpace(value)
		case attrStato:
			rec.Stato = domain.IncidentStatus(strings.TrimSpace(value))
		case attrGruppoAssegnazione:
			rec.GruppoAssegnazione = value
		case attrDataApertura:
			rec.DataApertura = coerceTimePtr(value, rec.DataApertura)
		case attrDataAggiornamento:
			rec.DataAggiornamento = coerceTimePtr(value, rec.DataAggiornamento)
		case attrDataUltimaRiassegnazione:
			rec.DataUltimaRiassegnazione = coerceTimePtr(value, rec.DataUltimaRiassegnazione)
		case attrDataChiusura:
			rec.DataChiusura = coerceTimePtr(value, rec.DataChiusura)
		case attrPianificazione:
			rec.Pianificazione = coerceTimePtr(value, rec.Pianificazione)
		case attrOraViolazione:
			rec.OraViolazione = coerceTimePtr(value, rec.OraViolazione)
		case attrDataRichiestaParti:
			rec.DataRichiestaParti = coerceTimePtr(value, rec.DataRichiestaParti)
		case attrDataConsegna:
			rec.DataConsegna = coerceTimePtr(value, rec.DataConsegna)
		case attrViolazioneAvvenuta:
			rec.ViolazioneAvvenuta = truthy(value)
		case attrInSLA:
			rec.InSLA = strings.ToUpper(strings.TrimSpace(value))
		case attrDurata:
			rec.Durata = coerceMinutes(value)
		case attrServizioHD:
			rec.ServizioHD = strings.TrimSpace(value)
		case attrRegione:
			rec.Regione = strings.TrimSpace(value)
		case attrCitta:
			rec.Citta = strings.TrimSpace(value)
		case attrProvinciaStato:
			rec.ProvinciaStato = strings.ToUpper(strings.TrimSpace(value))
		case attrFornitore:
			rec.Fornitore = strings.TrimSpace(value)
		case attrIndirizzo:
			rec.Indirizzo = strings.TrimSpace(value)
		case attrIndirizzoBeneficiario:
			rec.IndirizzoBeneficiario = strings.TrimSpace(value)
		case attrSeriale:
			rec.Seriale = strings.TrimSpace(value)
		case attrPartiRichieste:
			rec.PartiRichieste = splitParts(value)
		case attrRichiestaApparato:
			rec.RichiestaApparato = truthy(value)
		case attrStatoRichiesta:
			rec.StatoRichiesta = domain.PartsStatus(strings.TrimSpace(value))
		case attrLDV:
			rec.LDV = strings.TrimSpace(value)
		case attrBreveDescrizione:
			rec.BreveDescrizione = value
		case attrDescrizione:
			rec.Descrizione = value
		case attrNoteLaser:
			rec.Note = domain.ParseNoteLog(value)
		default:
			if value == "" {
				continue
			}
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[attr] = value
		}
	}
	return rec
}

func coerceTimePtr(value string, current *time.Time) *time.Time {
	if strings.TrimSpace(value) == "" {
		return current
	}
	if t, ok := ParseDateValue(value); ok {
		return &t
	}
	return current
}

func coerceMinutes(value string) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}
	if minutes, err := strconv.Atoi(trimmed); err == nil {
		return minutes
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return int(f)
	}
	return 0
}

func truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "si", "sì", "true", "1", "yes", "x", "vero":
		return true
	}
	return false
}

func splitParts(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	raw := strings.Split(value, "|")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
