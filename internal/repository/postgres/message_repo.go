// internal/repository/postgres/message_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepository is a read-only view over the messages table owned
// by the chat collaborator. Only the last-activity timestamp is
// consumed here.
type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// LastInboundAt returns the timestamp of the newest inbound message
// for a prospect, or nil when the prospect has never written.
func (r *MessageRepository) LastInboundAt(ctx context.Context, prospectID int64) (*time.Time, error) {
	query := `
		SELECT MAX(created_at)
		FROM messages
		WHERE prospect_id = $1 AND direction = 'inbound'
	`

	var last *time.Time
	if err := r.db.QueryRow(ctx, query, prospectID).Scan(&last); err != nil {
		return nil, fmt.Errorf("failed to read last inbound message: %w", err)
	}

	return last, nil
}
