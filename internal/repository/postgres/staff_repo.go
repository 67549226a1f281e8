// internal/repository/postgres/staff_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prospect-service/internal/domain/staff"
	xerrors "prospect-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StaffRepository reads and writes the staff table, which stores both
// executives and coordinators discriminated by the kind column.
// Coordinator unit membership lives in coordinator_units.
type StaffRepository struct {
	db *pgxpool.Pool
}

func NewStaffRepository(db *pgxpool.Pool) *StaffRepository {
	return &StaffRepository{db: db}
}

const executiveColumns = `
	id, full_name, email, phone, coordination_unit_id,
	is_active, is_operational, backup_id, original_phone, has_backup,
	created_at, updated_at
`

// FindExecutiveByID retrieves an executive row
func (r *StaffRepository) FindExecutiveByID(ctx context.Context, id int64) (*staff.Executive, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM staff
		WHERE id = $1 AND kind = 'executive'
	`, executiveColumns)

	var e staff.Executive
	err := r.db.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.FullName, &e.Email, &e.Phone, &e.CoordinationUnitID,
		&e.IsActive, &e.IsOperational, &e.BackupID, &e.OriginalPhone, &e.HasBackup,
		&e.CreatedAt, &e.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find executive: %w", err)
	}

	return &e, nil
}

// FindCoordinatorByID retrieves a coordinator with its unit membership
func (r *StaffRepository) FindCoordinatorByID(ctx context.Context, id int64) (*staff.Coordinator, error) {
	query := `
		SELECT id, full_name, email, phone, is_active, created_at, updated_at
		FROM staff
		WHERE id = $1 AND kind = 'coordinator'
	`

	var c staff.Coordinator
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.FullName, &c.Email, &c.Phone, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find coordinator: %w", err)
	}

	unitIDs, err := r.CoordinatorUnitIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	c.UnitIDs = unitIDs

	return &c, nil
}

// FindMemberByID retrieves either staff variant behind the Member interface
func (r *StaffRepository) FindMemberByID(ctx context.Context, id int64) (staff.Member, error) {
	query := `SELECT kind FROM staff WHERE id = $1`

	var kind staff.Kind
	err := r.db.QueryRow(ctx, query, id).Scan(&kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find staff member: %w", err)
	}

	if kind == staff.KindCoordinator {
		return r.FindCoordinatorByID(ctx, id)
	}
	return r.FindExecutiveByID(ctx, id)
}

// CoordinatorUnitIDs returns the coordination units a coordinator oversees
func (r *StaffRepository) CoordinatorUnitIDs(ctx context.Context, coordinatorID int64) ([]int64, error) {
	query := `
		SELECT coordination_unit_id
		FROM coordinator_units
		WHERE coordinator_id = $1
		ORDER BY coordination_unit_id
	`

	rows, err := r.db.Query(ctx, query, coordinatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list coordinator units: %w", err)
	}
	defer rows.Close()

	unitIDs := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan unit id: %w", err)
		}
		unitIDs = append(unitIDs, id)
	}

	return unitIDs, rows.Err()
}

// ExecutivesByUnit returns active executives of a coordination unit
func (r *StaffRepository) ExecutivesByUnit(ctx context.Context, unitID int64) ([]staff.Executive, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM staff
		WHERE kind = 'executive' AND coordination_unit_id = $1 AND is_active = TRUE
		ORDER BY full_name
	`, executiveColumns)

	rows, err := r.db.Query(ctx, query, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executives: %w", err)
	}
	defer rows.Close()

	executives := []staff.Executive{}
	for rows.Next() {
		var e staff.Executive
		err := rows.Scan(
			&e.ID, &e.FullName, &e.Email, &e.Phone, &e.CoordinationUnitID,
			&e.IsActive, &e.IsOperational, &e.BackupID, &e.OriginalPhone, &e.HasBackup,
			&e.CreatedAt, &e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan executive: %w", err)
		}
		executives = append(executives, e)
	}

	return executives, rows.Err()
}

// CoordinatorsByUnit returns active coordinators overseeing a unit
func (r *StaffRepository) CoordinatorsByUnit(ctx context.Context, unitID int64) ([]staff.Coordinator, error) {
	query := `
		SELECT s.id, s.full_name, s.email, s.phone, s.is_active, s.created_at, s.updated_at
		FROM staff s
		JOIN coordinator_units cu ON cu.coordinator_id = s.id
		WHERE s.kind = 'coordinator' AND cu.coordination_unit_id = $1 AND s.is_active = TRUE
		ORDER BY s.full_name
	`

	rows, err := r.db.Query(ctx, query, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list coordinators: %w", err)
	}
	defer rows.Close()

	coordinators := []staff.Coordinator{}
	for rows.Next() {
		var c staff.Coordinator
		err := rows.Scan(&c.ID, &c.FullName, &c.Email, &c.Phone, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coordinator: %w", err)
		}
		coordinators = append(coordinators, c)
	}

	return coordinators, rows.Err()
}

// UpdateBackup writes the backup/phone override fields of an executive
func (r *StaffRepository) UpdateBackup(ctx context.Context, executiveID int64, phone string, originalPhone *string, backupID *int64, hasBackup bool) error {
	query := `
		UPDATE staff
		SET phone = $1, original_phone = $2, backup_id = $3, has_backup = $4, updated_at = $5
		WHERE id = $6 AND kind = 'executive'
	`

	result, err := r.db.Exec(ctx, query, phone, originalPhone, backupID, hasBackup, time.Now(), executiveID)
	if err != nil {
		return fmt.Errorf("failed to update backup fields: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}
