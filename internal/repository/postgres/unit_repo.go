// internal/repository/postgres/unit_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"prospect-service/internal/domain/staff"
	xerrors "prospect-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CoordinationUnitRepository struct {
	db *pgxpool.Pool
}

func NewCoordinationUnitRepository(db *pgxpool.Pool) *CoordinationUnitRepository {
	return &CoordinationUnitRepository{db: db}
}

// FindByID retrieves a coordination unit
func (r *CoordinationUnitRepository) FindByID(ctx context.Context, id int64) (*staff.CoordinationUnit, error) {
	query := `
		SELECT id, code, name, is_active, is_archived, created_at, updated_at
		FROM coordination_units
		WHERE id = $1
	`

	var u staff.CoordinationUnit
	err := r.db.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Code, &u.Name, &u.IsActive, &u.IsArchived, &u.CreatedAt, &u.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find coordination unit: %w", err)
	}

	return &u, nil
}

// ListAssignable returns active, non-archived units for target listings
func (r *CoordinationUnitRepository) ListAssignable(ctx context.Context) ([]staff.CoordinationUnit, error) {
	query := `
		SELECT id, code, name, is_active, is_archived, created_at, updated_at
		FROM coordination_units
		WHERE is_active = TRUE AND is_archived = FALSE
		ORDER BY name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list coordination units: %w", err)
	}
	defer rows.Close()

	units := []staff.CoordinationUnit{}
	for rows.Next() {
		var u staff.CoordinationUnit
		err := rows.Scan(&u.ID, &u.Code, &u.Name, &u.IsActive, &u.IsArchived, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coordination unit: %w", err)
		}
		units = append(units, u)
	}

	return units, rows.Err()
}

// AllocateUnit invokes the remote allocation procedure for an
// unassigned prospect. The selection policy (round-robin,
// least-loaded) is owned by the database function.
func (r *CoordinationUnitRepository) AllocateUnit(ctx context.Context, prospectID int64) (*int64, error) {
	query := `SELECT allocate_coordination_unit($1)`

	var unitID *int64
	if err := r.db.QueryRow(ctx, query, prospectID).Scan(&unitID); err != nil {
		return nil, fmt.Errorf("failed to allocate coordination unit: %w", err)
	}

	return unitID, nil
}
