// Package store persists plays, either on the local filesystem (partitioned
// by lifecycle status, C5) or in an embedded sqlite table. Both
// implementations satisfy the same Store interface so the lifecycle engine
// and orchestrator never know which backend is active (SPEC_FULL.md §9.1).
package store

import (
	"context"

	"github.com/aristath/goldcore/internal/domain"
)

// Store is the Play Store contract (C5).
type Store interface {
	// List returns every play currently in the given lifecycle status.
	List(ctx context.Context, status domain.Status) ([]*domain.Play, error)
	// Get loads a single play by id regardless of its current status.
	Get(ctx context.Context, playID string) (*domain.Play, error)
	// Save persists play in its current Status.Lifecycle partition,
	// creating it if new.
	Save(ctx context.Context, play *domain.Play) error
	// Move transitions play to newStatus, persisting the status change and
	// relocating it in the underlying storage atomically from the caller's
	// point of view (I3: a play exists in exactly one partition at all
	// observable times).
	Move(ctx context.Context, play *domain.Play, newStatus domain.Status) error
}
