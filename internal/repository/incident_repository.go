package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-service/internal/domain"
)

// IncidentFilter captures query parameters for the record store.
type IncidentFilter struct {
	Statuses   []domain.IncidentStatus
	Regione    *string
	Fornitore  *string
	Gruppo     *string
	SearchTerm *string
	Limit      int
	Offset     int
}

// UpsertFailure describes a single row the store rejected.
type UpsertFailure struct {
	Numero string
	Reason string
}

// UpsertResult summarizes a batch commit. Rows that succeeded stay committed
// even when others fail; the batch is idempotent per row, not transactional.
type UpsertResult struct {
	Success  int
	Failures []UpsertFailure
}

// IncidentRepository encapsulates incident persistence keyed by numero.
type IncidentRepository interface {
	Query(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error)
	GetByNumero(ctx context.Context, numero string) (*domain.Incident, error)
	ListActive(ctx context.Context) ([]domain.Incident, error)
	ListByNumeri(ctx context.Context, numeri []string) ([]domain.Incident, error)
	ExistingNumeri(ctx context.Context, numeri []string) (map[string]bool, error)
	UpsertBatch(ctx context.Context, records []domain.Incident) (UpsertResult, error)
	Update(ctx context.Context, incident *domain.Incident) error
	UpdateStatus(ctx context.Context, numero string, status domain.IncidentStatus) error
	UpdateParts(ctx context.Context, numero string, patch PartsPatch) error
	UpdatePlanning(ctx context.Context, numero string, pianificazione *time.Time) error
	AppendNote(ctx context.Context, numero string, noteLaser string) error
}

// PartsPatch sets the parts workflow columns explicitly, including clearing
// data_richiesta_parti, which batch upserts deliberately never overwrite.
type PartsPatch struct {
	PartiRichieste     []string
	RichiestaApparato  bool
	StatoRichiesta     domain.PartsStatus
	DataRichiestaParti *time.Time
	LDV                *string
	DataConsegna       *time.Time
}

type incidentRepository struct {
	pool *pgxpool.Pool
}

// NewIncidentRepository instantiates the repository.
func NewIncidentRepository(pool *pgxpool.Pool) IncidentRepository {
	return &incidentRepository{pool: pool}
}

const incidentColumns = `numero, stato, gruppo_assegnazione, data_apertura, data_aggiornamento,
       data_ultima_riassegnazione, data_chiusura, pianificazione, ora_violazione,
       data_richiesta_parti, data_consegna, violazione_avvenuta, in_sla, durata, servizio_hd,
       regione, citta, provincia_stato, fornitore, indirizzo, indirizzo_beneficiario, seriale,
       parti_richieste, richiesta_apparato, stato_richiesta, ldv,
       breve_descrizione, descrizione, note_laser, extra`

func (r *incidentRepository) Query(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error) {
	base := `SELECT ` + incidentColumns + ` FROM incidents`
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("stato IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Regione != nil {
		args = append(args, *filter.Regione)
		clauses = append(clauses, fmt.Sprintf("regione=$%d", len(args)))
	}
	if filter.Fornitore != nil {
		args = append(args, *filter.Fornitore)
		clauses = append(clauses, fmt.Sprintf("fornitore=$%d", len(args)))
	}
	if filter.Gruppo != nil {
		args = append(args, *filter.Gruppo)
		clauses = append(clauses, fmt.Sprintf("gruppo_assegnazione=$%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(numero) LIKE %s OR LOWER(breve_descrizione) LIKE %s OR LOWER(descrizione) LIKE %s)",
			placeholder, placeholder, placeholder))
	}

	query := fmt.Sprintf("%s WHERE %s ORDER BY data_apertura DESC NULLS LAST", base, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query = fmt.Sprintf("%s LIMIT %d OFFSET %d", query, filter.Limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidents(rows)
}

func (r *incidentRepository) GetByNumero(ctx context.Context, numero string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE numero=$1`
	rows, err := r.pool.Query(ctx, query, numero)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records, err := scanIncidents(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &records[0], nil
}

func (r *incidentRepository) ListActive(ctx context.Context) ([]domain.Incident, error) {
	return r.Query(ctx, IncidentFilter{Statuses: domain.ActiveStatuses})
}

func (r *incidentRepository) ListByNumeri(ctx context.Context, numeri []string) ([]domain.Incident, error) {
	if len(numeri) == 0 {
		return nil, nil
	}
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE numero = ANY($1)`
	rows, err := r.pool.Query(ctx, query, numeri)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidents(rows)
}

func (r *incidentRepository) ExistingNumeri(ctx context.Context, numeri []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(numeri))
	if len(numeri) == 0 {
		return existing, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT numero FROM incidents WHERE numero = ANY($1)`, numeri)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var numero string
		if err := rows.Scan(&numero); err != nil {
			return nil, err
		}
		existing[numero] = true
	}
	return existing, rows.Err()
}

func (r *incidentRepository) UpsertBatch(ctx context.Context, records []domain.Incident) (UpsertResult, error) {
	const query = `
        INSERT INTO incidents (` + incidentColumns + `, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,NOW())
        ON CONFLICT (numero) DO UPDATE SET
            stato=EXCLUDED.stato,
            gruppo_assegnazione=EXCLUDED.gruppo_assegnazione,
            data_apertura=EXCLUDED.data_apertura,
            data_aggiornamento=EXCLUDED.data_aggiornamento,
            data_ultima_riassegnazione=EXCLUDED.data_ultima_riassegnazione,
            data_chiusura=EXCLUDED.data_chiusura,
            pianificazione=EXCLUDED.pianificazione,
            ora_violazione=EXCLUDED.ora_violazione,
            data_richiesta_parti=COALESCE(incidents.data_richiesta_parti, EXCLUDED.data_richiesta_parti),
            data_consegna=EXCLUDED.data_consegna,
            violazione_avvenuta=EXCLUDED.violazione_avvenuta,
            in_sla=EXCLUDED.in_sla,
            durata=EXCLUDED.durata,
            servizio_hd=EXCLUDED.servizio_hd,
            regione=EXCLUDED.regione,
            citta=EXCLUDED.citta,
            provincia_stato=EXCLUDED.provincia_stato,
            fornitore=EXCLUDED.fornitore,
            indirizzo=EXCLUDED.indirizzo,
            indirizzo_beneficiario=EXCLUDED.indirizzo_beneficiario,
            seriale=EXCLUDED.seriale,
            parti_richieste=EXCLUDED.parti_richieste,
            richiesta_apparato=EXCLUDED.richiesta_apparato,
            stato_richiesta=EXCLUDED.stato_richiesta,
            ldv=EXCLUDED.ldv,
            breve_descrizione=EXCLUDED.breve_descrizione,
            descrizione=EXCLUDED.descrizione,
            note_laser=EXCLUDED.note_laser,
            extra=EXCLUDED.extra,
            updated_at=NOW()`

	var result UpsertResult
	for i := range records {
		rec := &records[i]
		extra, err := marshalExtra(rec.Extra)
		if err != nil {
			result.Failures = append(result.Failures, UpsertFailure{Numero: rec.Numero, Reason: err.Error()})
			continue
		}
		_, err = r.pool.Exec(ctx, query,
			rec.Numero,
			rec.Stato,
			rec.GruppoAssegnazione,
			rec.DataApertura,
			rec.DataAggiornamento,
			rec.DataUltimaRiassegnazione,
			rec.DataChiusura,
			rec.Pianificazione,
			rec.OraViolazione,
			rec.DataRichiestaParti,
			rec.DataConsegna,
			rec.ViolazioneAvvenuta,
			rec.InSLA,
			rec.Durata,
			rec.ServizioHD,
			rec.Regione,
			rec.Citta,
			rec.ProvinciaStato,
			rec.Fornitore,
			rec.Indirizzo,
			rec.IndirizzoBeneficiario,
			rec.Seriale,
			strings.Join(rec.PartiRichieste, "|"),
			rec.RichiestaApparato,
			rec.StatoRichiesta,
			rec.LDV,
			rec.BreveDescrizione,
			rec.Descrizione,
			domain.FormatNoteLog(rec.Note),
			extra,
		)
		if err != nil {
			result.Failures = append(result.Failures, UpsertFailure{Numero: rec.Numero, Reason: err.Error()})
			continue
		}
		result.Success++
	}
	return result, nil
}

func (r *incidentRepository) Update(ctx context.Context, incident *domain.Incident) error {
	res, err := r.UpsertBatch(ctx, []domain.Incident{*incident})
	if err != nil {
		return err
	}
	if len(res.Failures) > 0 {
		return fmt.Errorf("update %s: %s", incident.Numero, res.Failures[0].Reason)
	}
	return nil
}

func (r *incidentRepository) UpdateStatus(ctx context.Context, numero string, status domain.IncidentStatus) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE incidents SET stato=$1, data_aggiornamento=NOW(), updated_at=NOW() WHERE numero=$2`,
		status, numero)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *incidentRepository) UpdateParts(ctx context.Context, numero string, patch PartsPatch) error {
	clauses := []string{
		"parti_richieste=$1",
		"richiesta_apparato=$2",
		"stato_richiesta=$3",
		"data_richiesta_parti=$4",
		"data_aggiornamento=NOW()",
		"updated_at=NOW()",
	}
	args := []any{
		strings.Join(patch.PartiRichieste, "|"),
		patch.RichiestaApparato,
		patch.StatoRichiesta,
		patch.DataRichiestaParti,
	}
	if patch.LDV != nil {
		args = append(args, *patch.LDV)
		clauses = append(clauses, fmt.Sprintf("ldv=$%d", len(args)))
	}
	if patch.DataConsegna != nil {
		args = append(args, *patch.DataConsegna)
		clauses = append(clauses, fmt.Sprintf("data_consegna=$%d", len(args)))
	}
	args = append(args, numero)
	query := fmt.Sprintf("UPDATE incidents SET %s WHERE numero=$%d", strings.Join(clauses, ", "), len(args))

	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *incidentRepository) UpdatePlanning(ctx context.Context, numero string, pianificazione *time.Time) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE incidents SET pianificazione=$1, data_aggiornamento=NOW(), updated_at=NOW() WHERE numero=$2`,
		pianificazione, numero)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *incidentRepository) AppendNote(ctx context.Context, numero string, noteLaser string) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE incidents SET note_laser=$1, data_aggiornamento=NOW(), updated_at=NOW() WHERE numero=$2`,
		noteLaser, numero)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanIncidents(rows pgx.Rows) ([]domain.Incident, error) {
	var result []domain.Incident
	for rows.Next() {
		var (
			rec       domain.Incident
			parti     string
			noteLaser string
			extra     []byte
		)
		if err := rows.Scan(
			&rec.Numero,
			&rec.Stato,
			&rec.GruppoAssegnazione,
			&rec.DataApertura,
			&rec.DataAggiornamento,
			&rec.DataUltimaRiassegnazione,
			&rec.DataChiusura,
			&rec.Pianificazione,
			&rec.OraViolazione,
			&rec.DataRichiestaParti,
			&rec.DataConsegna,
			&rec.ViolazioneAvvenuta,
			&rec.InSLA,
			&rec.Durata,
			&rec.ServizioHD,
			&rec.Regione,
			&rec.Citta,
			&rec.ProvinciaStato,
			&rec.Fornitore,
			&rec.Indirizzo,
			&rec.IndirizzoBeneficiario,
			&rec.Seriale,
			&parti,
			&rec.RichiestaApparato,
			&rec.StatoRichiesta,
			&rec.LDV,
			&rec.BreveDescrizione,
			&rec.Descrizione,
			&noteLaser,
			&extra,
		); err != nil {
			return nil, err
		}
		if parti != "" {
			rec.PartiRichieste = strings.Split(parti, "|")
		}
		rec.Note = domain.ParseNoteLog(noteLaser)
		if len(extra) > 0 {
			if err := json.Unmarshal(extra, &rec.Extra); err != nil {
				return nil, fmt.Errorf("decode extra for %s: %w", rec.Numero, err)
			}
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func marshalExtra(extra map[string]string) ([]byte, error) {
	if len(extra) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(extra)
}
