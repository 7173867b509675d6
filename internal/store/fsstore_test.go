package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aristath/goldcore/internal/domain"
	"github.com/aristath/goldcore/internal/store"
)

func newTestStore(t *testing.T) *store.FSStore {
	t.Helper()
	s, err := store.NewFSStore(zerolog.Nop(), t.TempDir())
	require.NoError(t, err)
	return s
}

// TestMove_NeverLeavesPlayUndiscoverable covers I3: after Move returns, the
// play file exists in the destination partition and not in the source one,
// and Get/List agree with the new status.
func TestMove_NeverLeavesPlayUndiscoverable(t *testing.T) {
	root := t.TempDir()
	s, err := store.NewFSStore(zerolog.Nop(), root)
	require.NoError(t, err)

	p := &domain.Play{PlayID: "p1", Status: domain.PlayStatus{Lifecycle: domain.StatusNew}}
	require.NoError(t, s.Save(context.Background(), p))

	oldPath := filepath.Join(root, string(domain.StatusNew), "p1.json")
	_, err = os.Stat(oldPath)
	require.NoError(t, err, "play file must exist in NEW partition after Save")

	require.NoError(t, s.Move(context.Background(), p, domain.StatusPendingOpening))

	_, err = os.Stat(oldPath)
	require.True(t, os.IsNotExist(err), "old partition file must be gone after Move")

	newPath := filepath.Join(root, string(domain.StatusPendingOpening), "p1.json")
	_, err = os.Stat(newPath)
	require.NoError(t, err, "play file must exist in PENDING_OPENING partition after Move")

	got, err := s.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPendingOpening, got.Status.Lifecycle)

	newList, err := s.List(context.Background(), domain.StatusPendingOpening)
	require.NoError(t, err)
	require.Len(t, newList, 1)
	require.Equal(t, "p1", newList[0].PlayID)

	oldList, err := s.List(context.Background(), domain.StatusNew)
	require.NoError(t, err)
	require.Empty(t, oldList)
}

// TestMove_SameStatusIsNoopOnDisk ensures moving a play to its own current
// status doesn't delete the file it just wrote.
func TestMove_SameStatusIsNoopOnDisk(t *testing.T) {
	s := newTestStore(t)
	p := &domain.Play{PlayID: "p2", Status: domain.PlayStatus{Lifecycle: domain.StatusOpen}}
	require.NoError(t, s.Save(context.Background(), p))
	require.NoError(t, s.Move(context.Background(), p, domain.StatusOpen))

	got, err := s.Get(context.Background(), "p2")
	require.NoError(t, err)
	require.Equal(t, domain.StatusOpen, got.Status.Lifecycle)
}

// TestNewFSStore_RebuildsIndexFromDisk covers the startup rebuild: a second
// FSStore opened against the same root, with no index.msgpack written,
// discovers plays purely from the directory walk.
func TestNewFSStore_RebuildsIndexFromDisk(t *testing.T) {
	root := t.TempDir()
	s1, err := store.NewFSStore(zerolog.Nop(), root)
	require.NoError(t, err)

	p := &domain.Play{PlayID: "p3", Status: domain.PlayStatus{Lifecycle: domain.StatusClosed}}
	require.NoError(t, s1.Save(context.Background(), p))

	s2, err := store.NewFSStore(zerolog.Nop(), root)
	require.NoError(t, err)

	got, err := s2.Get(context.Background(), "p3")
	require.NoError(t, err)
	require.Equal(t, domain.StatusClosed, got.Status.Lifecycle)
}

func TestGet_UnknownPlayReturnsStoreError(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "does-not-exist")
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrStoreError)
}
