package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RegionRepository manages the region visibility whitelist.
type RegionRepository interface {
	Visibility(ctx context.Context) (map[string]bool, error)
	SetVisibility(ctx context.Context, regione string, visible bool) error
}

type regionRepository struct {
	pool *pgxpool.Pool
}

// NewRegionRepository instantiates the repository.
func NewRegionRepository(pool *pgxpool.Pool) RegionRepository {
	return &regionRepository{pool: pool}
}

func (r *regionRepository) Visibility(ctx context.Context) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT regione, visible FROM region_visibility`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	visibility := make(map[string]bool)
	for rows.Next() {
		var regione string
		var visible bool
		if err := rows.Scan(&regione, &visible); err != nil {
			return nil, err
		}
		visibility[regione] = visible
	}
	return visibility, rows.Err()
}

func (r *regionRepository) SetVisibility(ctx context.Context, regione string, visible bool) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO region_visibility (regione, visible, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (regione) DO UPDATE SET visible=EXCLUDED.visible, updated_at=NOW()`,
		regione, visible)
	return err
}
