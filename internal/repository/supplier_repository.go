package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-service/internal/domain"
)

// SupplierRepository manages the province to supplier lookup table.
type SupplierRepository interface {
	LookupTable(ctx context.Context) (map[string]string, error)
	ReplaceTerritories(ctx context.Context, entries []domain.SupplierTerritory) (int, error)
}

type supplierRepository struct {
	pool *pgxpool.Pool
}

// NewSupplierRepository instantiates the repository.
func NewSupplierRepository(pool *pgxpool.Pool) SupplierRepository {
	return &supplierRepository{pool: pool}
}

// LookupTable returns the full mapping keyed by normalized province code.
func (r *supplierRepository) LookupTable(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT provincia, fornitore FROM supplier_territories`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	table := make(map[string]string)
	for rows.Next() {
		var provincia, fornitore string
		if err := rows.Scan(&provincia, &fornitore); err != nil {
			return nil, err
		}
		table[strings.ToUpper(strings.TrimSpace(provincia))] = fornitore
	}
	return table, rows.Err()
}

// ReplaceTerritories upserts entries keyed by province. Entries for provinces
// not present in the feed are left untouched.
func (r *supplierRepository) ReplaceTerritories(ctx context.Context, entries []domain.SupplierTerritory) (int, error) {
	const query = `
        INSERT INTO supplier_territories (provincia, fornitore, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (provincia) DO UPDATE SET fornitore=EXCLUDED.fornitore, updated_at=NOW()`

	count := 0
	for _, entry := range entries {
		provincia := strings.ToUpper(strings.TrimSpace(entry.Provincia))
		if provincia == "" {
			continue
		}
		if _, err := r.pool.Exec(ctx, query, provincia, entry.Fornitore); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
