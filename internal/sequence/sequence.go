// Package sequence hands out monotonically increasing event sequence numbers
// per partition, backed by the event_sequence table.
package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var ErrEmptyPartition = errors.New("partition key is required")

type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Allocator struct {
	db Querier
}

func NewAllocator(db Querier) *Allocator {
	return &Allocator{db: db}
}

// WithQuerier binds the allocator to a transaction so the number is only
// consumed if the surrounding work commits.
func (a *Allocator) WithQuerier(db Querier) *Allocator {
	return &Allocator{db: db}
}

// Next returns the next sequence for partition, starting at 1. The upsert
// takes a row lock, so concurrent callers never share a number.
func (a *Allocator) Next(ctx context.Context, partition string) (int64, error) {
	if partition == "" {
		return 0, ErrEmptyPartition
	}
	var seq int64
	err := a.db.QueryRow(ctx, `
		INSERT INTO event_sequence (partition_key, last_sequence)
		VALUES ($1, 1)
		ON CONFLICT (partition_key)
		DO UPDATE SET last_sequence = event_sequence.last_sequence + 1, updated_at = now()
		RETURNING last_sequence
	`, partition).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence for %s: %w", partition, err)
	}
	return seq, nil
}
