package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/paybridge/paybridge/pkg/messaging"
)

// Journal appends settlement events to Postgres for offline audit. It is
// strictly write-only: the engine's in-memory stores stay the single
// source of truth and are never rebuilt from this table.
type Journal struct {
	db  *sql.DB
	log *slog.Logger
}

// New creates a journal over an open database handle.
func New(db *sql.DB, log *slog.Logger) *Journal {
	if log == nil {
		log = slog.Default()
	}
	return &Journal{db: db, log: log}
}

// Migrate creates the journal table when it does not exist yet.
func (j *Journal) Migrate(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS settlement_events (
			id          UUID PRIMARY KEY,
			subject     TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			payload     JSONB NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}
	return nil
}

// Record inserts one event. Duplicate deliveries are ignored via the
// event id, so replays do not double-journal.
func (j *Journal) Record(ctx context.Context, event *messaging.Event) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO settlement_events (id, subject, occurred_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		event.ID, event.Subject, event.Timestamp, []byte(event.Data),
	)
	if err != nil {
		return fmt.Errorf("record %s event: %w", event.Subject, err)
	}
	return nil
}

// Subscriber registers queue-grouped event handlers; implemented by the
// messaging client.
type Subscriber interface {
	QueueSubscribe(subject, queue string, handler func(event *messaging.Event)) error
}

// Run subscribes to every settlement subject and journals each event until
// the context is cancelled. Journal replicas share a queue group so each
// event lands once.
func (j *Journal) Run(ctx context.Context, sub Subscriber) error {
	subjects := []string{
		messaging.SubjectPaymentCreated,
		messaging.SubjectPaymentExecuted,
		messaging.SubjectBalanceDeposited,
		messaging.SubjectChainConfigured,
	}

	for _, subject := range subjects {
		if err := sub.QueueSubscribe(subject, "journal", func(event *messaging.Event) {
			if err := j.Record(ctx, event); err != nil {
				j.log.Error("journal write failed", "subject", event.Subject, "error", err)
			}
		}); err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
	}

	j.log.Info("journal running")
	<-ctx.Done()
	return ctx.Err()
}
