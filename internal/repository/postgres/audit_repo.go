// internal/repository/postgres/audit_repo.go
package postgres

import (
	"context"
	"fmt"

	"prospect-service/internal/domain/prospect"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AssignmentAuditRepository appends to the assignment_audit table.
// Rows are never updated or deleted.
type AssignmentAuditRepository struct {
	db *pgxpool.Pool
}

func NewAssignmentAuditRepository(db *pgxpool.Pool) *AssignmentAuditRepository {
	return &AssignmentAuditRepository{db: db}
}

// Insert appends an audit record
func (r *AssignmentAuditRepository) Insert(ctx context.Context, a *prospect.AssignmentAudit) error {
	query := `
		INSERT INTO assignment_audit (
			reference, prospect_id,
			prev_coordination_unit_id, next_coordination_unit_id,
			prev_executive_id, next_executive_id,
			actor_user_id, reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		a.Reference, a.ProspectID,
		a.PrevUnitID, a.NextUnitID,
		a.PrevExecID, a.NextExecID,
		a.ActorUserID, a.Reason,
	).Scan(&a.ID, &a.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	return nil
}

// ListByProspect returns the assignment history of a prospect,
// newest first
func (r *AssignmentAuditRepository) ListByProspect(ctx context.Context, prospectID int64) ([]prospect.AssignmentAudit, error) {
	query := `
		SELECT id, reference, prospect_id,
		       prev_coordination_unit_id, next_coordination_unit_id,
		       prev_executive_id, next_executive_id,
		       actor_user_id, reason, created_at
		FROM assignment_audit
		WHERE prospect_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, prospectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	records := []prospect.AssignmentAudit{}
	for rows.Next() {
		var a prospect.AssignmentAudit
		err := rows.Scan(
			&a.ID, &a.Reference, &a.ProspectID,
			&a.PrevUnitID, &a.NextUnitID,
			&a.PrevExecID, &a.NextExecID,
			&a.ActorUserID, &a.Reason, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, a)
	}

	return records, rows.Err()
}
