// Package dedup tracks, per consumer and partition, the last event sequence
// that was applied, so redelivered events are skipped.
package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Executor interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Verdict says what to do with an incoming sequence number.
type Verdict int

const (
	Apply Verdict = iota
	// Duplicate means the sequence was already applied.
	Duplicate
	// Gap means earlier sequences were never seen. The event is still applied.
	Gap
)

func (v Verdict) String() string {
	switch v {
	case Apply:
		return "apply"
	case Duplicate:
		return "duplicate"
	case Gap:
		return "gap"
	}
	return "unknown"
}

// Decide compares an incoming sequence with the stored checkpoint. A zero
// incoming sequence carries no ordering information and is always applied.
func Decide(last int64, found bool, incoming int64) Verdict {
	if incoming == 0 || !found {
		return Apply
	}
	if incoming <= last {
		return Duplicate
	}
	if incoming > last+1 {
		return Gap
	}
	return Apply
}

type Checkpoints struct {
	db Executor
}

func NewCheckpoints(db Executor) *Checkpoints {
	return &Checkpoints{db: db}
}

// WithExecutor returns a copy bound to db, e.g. the transaction applying the
// event.
func (c *Checkpoints) WithExecutor(db Executor) *Checkpoints {
	return &Checkpoints{db: db}
}

// Last returns the last applied sequence and whether a checkpoint exists.
func (c *Checkpoints) Last(ctx context.Context, consumer, partition string) (int64, bool, error) {
	var last int64
	err := c.db.QueryRow(ctx, `
		SELECT last_sequence
		FROM event_dedup_checkpoint
		WHERE consumer_name = $1 AND partition_key = $2
		FOR UPDATE
	`, consumer, partition).Scan(&last)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("select checkpoint: %w", err)
	}
	return last, true, nil
}

// Advance moves the checkpoint forward. It never moves backwards, even when
// two deliveries race.
func (c *Checkpoints) Advance(ctx context.Context, consumer, partition string, seq int64) error {
	_, err := c.db.Exec(ctx, `
		INSERT INTO event_dedup_checkpoint (consumer_name, partition_key, last_sequence)
		VALUES ($1, $2, $3)
		ON CONFLICT (consumer_name, partition_key)
		DO UPDATE SET
			last_sequence = GREATEST(event_dedup_checkpoint.last_sequence, EXCLUDED.last_sequence),
			updated_at = now()
	`, consumer, partition, seq)
	if err != nil {
		return fmt.Errorf("advance checkpoint: %w", err)
	}
	return nil
}
