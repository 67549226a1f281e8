// internal/realtime/feed.go
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"prospect-service/internal/domain/prospect"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	feedBackoffMin = time.Second
	feedBackoffMax = 30 * time.Second
)

// ChangeHandler consumes decoded prospect change events.
type ChangeHandler interface {
	HandleChange(ctx context.Context, ev *prospect.ChangeEvent)
}

// Feed tails the prospect change channel. A database trigger publishes
// every prospect INSERT/UPDATE as a NOTIFY payload with the old and
// new row versions; old may be absent depending on the trigger
// configuration.
type Feed struct {
	pool    *pgxpool.Pool
	channel string
	handler ChangeHandler
	logger  *zap.Logger
}

func NewFeed(pool *pgxpool.Pool, channel string, handler ChangeHandler, logger *zap.Logger) *Feed {
	return &Feed{
		pool:    pool,
		channel: channel,
		handler: handler,
		logger:  logger,
	}
}

// Run listens until the context ends, reconnecting with exponential
// backoff on connection loss. Events missed while disconnected are not
// replayed; viewer snapshots rebuild state on re-subscribe.
func (f *Feed) Run(ctx context.Context) {
	backoff := feedBackoffMin

	for {
		if ctx.Err() != nil {
			return
		}

		err := f.listen(ctx)
		if ctx.Err() != nil {
			return
		}

		f.logger.Warn("change feed disconnected, reconnecting",
			zap.String("channel", f.channel),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > feedBackoffMax {
			backoff = feedBackoffMax
		}
	}
}

// listen holds one dedicated connection for the lifetime of the
// subscription.
func (f *Feed) listen(ctx context.Context) error {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire feed connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+f.channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.channel, err)
	}

	f.logger.Info("change feed listening", zap.String("channel", f.channel))

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("notification wait failed: %w", err)
		}

		ev, err := decodeChange([]byte(notification.Payload))
		if err != nil {
			f.logger.Warn("dropping malformed feed payload", zap.Error(err))
			continue
		}

		f.handler.HandleChange(ctx, ev)
	}
}

type feedPayload struct {
	Op  string             `json:"op"`
	Old *prospect.Prospect `json:"old,omitempty"`
	New *prospect.Prospect `json:"new"`
}

// decodeChange parses one NOTIFY payload into a change event.
func decodeChange(payload []byte) (*prospect.ChangeEvent, error) {
	var raw feedPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode feed payload: %w", err)
	}

	op := prospect.ChangeOp(raw.Op)
	if op != prospect.OpInsert && op != prospect.OpUpdate {
		return nil, fmt.Errorf("unsupported feed operation %q", raw.Op)
	}
	if raw.New == nil {
		return nil, fmt.Errorf("feed payload missing new row")
	}

	return &prospect.ChangeEvent{
		Op:  op,
		Old: raw.Old,
		New: raw.New,
		At:  time.Now(),
	}, nil
}
