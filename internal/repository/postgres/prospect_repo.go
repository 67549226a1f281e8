// internal/repository/postgres/prospect_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"prospect-service/internal/domain/prospect"
	xerrors "prospect-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type ProspectRepository struct {
	db *pgxpool.Pool
}

func NewProspectRepository(db *pgxpool.Pool) *ProspectRepository {
	return &ProspectRepository{db: db}
}

const prospectColumns = `
	id, full_name, whatsapp_name, phone, email, crm_id,
	coordination_unit_id, executive_id, requires_attention,
	created_at, updated_at
`

// FindByID retrieves a prospect by ID
func (r *ProspectRepository) FindByID(ctx context.Context, id int64) (*prospect.Prospect, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM prospects
		WHERE id = $1
	`, prospectColumns)

	var p prospect.Prospect
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.FullName, &p.WhatsappName, &p.Phone, &p.Email, &p.CRMID,
		&p.CoordinationUnitID, &p.ExecutiveID, &p.RequiresAttention,
		&p.CreatedAt, &p.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find prospect: %w", err)
	}

	return &p, nil
}

// UpdateAssignment writes both ownership fields. The executive/unit
// match is validated by the assignment engine before this write;
// last writer wins at the storage layer.
func (r *ProspectRepository) UpdateAssignment(ctx context.Context, id int64, unitID, executiveID *int64) error {
	query := `
		UPDATE prospects
		SET coordination_unit_id = $1, executive_id = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.db.Exec(ctx, query, unitID, executiveID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// ClearExecutive clears executive ownership, retaining the
// coordination unit.
func (r *ProspectRepository) ClearExecutive(ctx context.Context, id int64) error {
	query := `
		UPDATE prospects
		SET executive_id = NULL, updated_at = $1
		WHERE id = $2
	`

	result, err := r.db.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to clear executive: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// SetCoordinationUnit mirrors an allocation result onto the prospect
func (r *ProspectRepository) SetCoordinationUnit(ctx context.Context, id int64, unitID int64) error {
	query := `
		UPDATE prospects
		SET coordination_unit_id = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.db.Exec(ctx, query, unitID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set coordination unit: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// List retrieves prospects within a permission scope
func (r *ProspectRepository) List(ctx context.Context, filters *prospect.ListFilters) ([]prospect.Prospect, int64, error) {
	conditions := []string{"TRUE"}
	args := []interface{}{}
	argPos := 1

	if filters.UnitIDs != nil {
		conditions = append(conditions, fmt.Sprintf("coordination_unit_id = ANY($%d)", argPos))
		args = append(args, pq.Array(filters.UnitIDs))
		argPos++
	}

	if filters.ExecutiveID != nil {
		conditions = append(conditions, fmt.Sprintf("executive_id = $%d", argPos))
		args = append(args, *filters.ExecutiveID)
		argPos++
	}

	if filters.RequiresAttention != nil {
		conditions = append(conditions, fmt.Sprintf("requires_attention = $%d", argPos))
		args = append(args, *filters.RequiresAttention)
		argPos++
	}

	if filters.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(full_name ILIKE $%d OR whatsapp_name ILIKE $%d OR phone ILIKE $%d)",
			argPos, argPos, argPos,
		))
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM prospects WHERE %s", whereClause)
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count prospects: %w", err)
	}

	// Pagination
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}

	offset := (filters.Page - 1) * filters.PageSize

	query := fmt.Sprintf(`
		SELECT %s
		FROM prospects
		WHERE %s
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d
	`, prospectColumns, whereClause, argPos, argPos+1)

	args = append(args, filters.PageSize, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list prospects: %w", err)
	}
	defer rows.Close()

	prospects := []prospect.Prospect{}
	for rows.Next() {
		var p prospect.Prospect
		err := rows.Scan(
			&p.ID, &p.FullName, &p.WhatsappName, &p.Phone, &p.Email, &p.CRMID,
			&p.CoordinationUnitID, &p.ExecutiveID, &p.RequiresAttention,
			&p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan prospect: %w", err)
		}
		prospects = append(prospects, p)
	}

	return prospects, total, rows.Err()
}

// ListRequiringAttention returns every flagged prospect, for attention
// list snapshots on viewer registration.
func (r *ProspectRepository) ListRequiringAttention(ctx context.Context) ([]prospect.Prospect, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM prospects
		WHERE requires_attention = TRUE
		ORDER BY updated_at DESC
	`, prospectColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list flagged prospects: %w", err)
	}
	defer rows.Close()

	prospects := []prospect.Prospect{}
	for rows.Next() {
		var p prospect.Prospect
		err := rows.Scan(
			&p.ID, &p.FullName, &p.WhatsappName, &p.Phone, &p.Email, &p.CRMID,
			&p.CoordinationUnitID, &p.ExecutiveID, &p.RequiresAttention,
			&p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prospect: %w", err)
		}
		prospects = append(prospects, p)
	}

	return prospects, rows.Err()
}
