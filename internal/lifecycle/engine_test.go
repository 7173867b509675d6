package lifecycle_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aristath/goldcore/internal/clock"
	"github.com/aristath/goldcore/internal/domain"
	"github.com/aristath/goldcore/internal/lifecycle"
)

// fakeStore is a minimal in-memory store.Store keyed by PlayID, sufficient
// for exercising the lifecycle engine's OCO/OTO fan-out without touching
// the filesystem.
type fakeStore struct {
	plays map[string]*domain.Play
}

func newFakeStore(plays ...*domain.Play) *fakeStore {
	s := &fakeStore{plays: map[string]*domain.Play{}}
	for _, p := range plays {
		s.plays[p.PlayID] = p
	}
	return s
}

func (s *fakeStore) List(ctx context.Context, status domain.Status) ([]*domain.Play, error) {
	var out []*domain.Play
	for _, p := range s.plays {
		if p.Status.Lifecycle == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) Get(ctx context.Context, playID string) (*domain.Play, error) {
	p, ok := s.plays[playID]
	if !ok {
		return nil, fmt.Errorf("lifecycle_test: play %q not found: %w", playID, domain.ErrStoreError)
	}
	return p, nil
}

func (s *fakeStore) Save(ctx context.Context, p *domain.Play) error {
	s.plays[p.PlayID] = p
	return nil
}

func (s *fakeStore) Move(ctx context.Context, p *domain.Play, newStatus domain.Status) error {
	p.Status.Lifecycle = newStatus
	s.plays[p.PlayID] = p
	return nil
}

// fakeCanceler records every broker order id it is asked to cancel.
type fakeCanceler struct {
	canceled []string
}

func (f *fakeCanceler) CancelOrder(ctx context.Context, brokerOrderID string) error {
	f.canceled = append(f.canceled, brokerOrderID)
	return nil
}

// TestHandleOCO_CancelsAndExpiresLiveSibling covers I8: once the triggering
// play reaches OPEN, a sibling still sitting in PENDING_OPENING with a live
// broker order is canceled and moved to EXPIRED; a sibling already CLOSED is
// left untouched.
func TestHandleOCO_CancelsAndExpiresLiveSibling(t *testing.T) {
	a := &domain.Play{PlayID: "A", Status: domain.PlayStatus{Lifecycle: domain.StatusOpen}}
	b := &domain.Play{PlayID: "B", Status: domain.PlayStatus{Lifecycle: domain.StatusPendingOpening, OrderID: "bo-1"}}
	c := &domain.Play{PlayID: "C", Status: domain.PlayStatus{Lifecycle: domain.StatusClosed}}
	a.Conditionals.OCOTriggers = []string{"B", "C"}

	st := newFakeStore(a, b, c)
	canceler := &fakeCanceler{}
	e := lifecycle.NewEngine(zerolog.Nop(), st, canceler, clock.Fixed{Instant: time.Now()})

	require.NoError(t, e.HandleOCO(context.Background(), a))
	require.Equal(t, domain.StatusExpired, b.Status.Lifecycle)
	require.Equal(t, []string{"bo-1"}, canceler.canceled)
	require.Equal(t, domain.StatusClosed, c.Status.Lifecycle, "a sibling already CLOSED must not be touched")
}

// TestHandleOCO_NoopUntilParentOpenOrClosed ensures the fan-out does not
// fire prematurely.
func TestHandleOCO_NoopUntilParentOpenOrClosed(t *testing.T) {
	a := &domain.Play{PlayID: "A", Status: domain.PlayStatus{Lifecycle: domain.StatusPendingOpening}}
	b := &domain.Play{PlayID: "B", Status: domain.PlayStatus{Lifecycle: domain.StatusNew}}
	a.Conditionals.OCOTriggers = []string{"B"}

	st := newFakeStore(a, b)
	e := lifecycle.NewEngine(zerolog.Nop(), st, &fakeCanceler{}, clock.Fixed{Instant: time.Now()})

	require.NoError(t, e.HandleOCO(context.Background(), a))
	require.Equal(t, domain.StatusNew, b.Status.Lifecycle)
}

// TestHandleOTO_FansOutExactlyOnce covers I9: TEMP children move to NEW once
// the parent reaches OPEN, and a second call is a no-op because
// ConditionalsHandled gates it.
func TestHandleOTO_FansOutExactlyOnce(t *testing.T) {
	parent := &domain.Play{PlayID: "P", Status: domain.PlayStatus{Lifecycle: domain.StatusOpen}}
	child1 := &domain.Play{PlayID: "C1", Status: domain.PlayStatus{Lifecycle: domain.StatusTemp}}
	child2 := &domain.Play{PlayID: "C2", Status: domain.PlayStatus{Lifecycle: domain.StatusTemp}}
	parent.Conditionals.OTOTriggers = []string{"C1", "C2"}

	st := newFakeStore(parent, child1, child2)
	e := lifecycle.NewEngine(zerolog.Nop(), st, nil, clock.Fixed{Instant: time.Now()})

	require.NoError(t, e.HandleOTO(context.Background(), parent))
	require.Equal(t, domain.StatusNew, child1.Status.Lifecycle)
	require.Equal(t, domain.StatusNew, child2.Status.Lifecycle)
	require.True(t, parent.Status.ConditionalsHandled)

	// Simulate an external actor advancing a child further before the cycle
	// replays HandleOTO; the gate must prevent reprocessing regardless.
	child1.Status.Lifecycle = domain.StatusPendingOpening
	require.NoError(t, e.HandleOTO(context.Background(), parent))
	require.Equal(t, domain.StatusPendingOpening, child1.Status.Lifecycle, "second call must not touch children again")
}

// TestHandleOTO_NoopBeforeParentOpen ensures TEMP children stay put until
// the parent itself reaches OPEN.
func TestHandleOTO_NoopBeforeParentOpen(t *testing.T) {
	parent := &domain.Play{PlayID: "P", Status: domain.PlayStatus{Lifecycle: domain.StatusPendingOpening}}
	child := &domain.Play{PlayID: "C1", Status: domain.PlayStatus{Lifecycle: domain.StatusTemp}}
	parent.Conditionals.OTOTriggers = []string{"C1"}

	st := newFakeStore(parent, child)
	e := lifecycle.NewEngine(zerolog.Nop(), st, nil, clock.Fixed{Instant: time.Now()})

	require.NoError(t, e.HandleOTO(context.Background(), parent))
	require.Equal(t, domain.StatusTemp, child.Status.Lifecycle)
	require.False(t, parent.Status.ConditionalsHandled)
}
