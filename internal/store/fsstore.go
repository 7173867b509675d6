package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/goldcore/internal/domain"
)

var allStatuses = []domain.Status{
	domain.StatusNew, domain.StatusTemp, domain.StatusPendingOpening,
	domain.StatusOpen, domain.StatusPendingClosing, domain.StatusClosed,
	domain.StatusExpired, domain.StatusInvalid,
}

// indexEntry is the warm-start snapshot record for one play.
type indexEntry struct {
	PlayID string
	Status string
}

// FSStore is the filesystem-backed Play Store: one directory per lifecycle
// status under Root, one JSON file per play, status transitions implemented
// as cross-directory renames. Atomicity follows the teacher's
// write-temp-then-rename idiom (internal/deployment/binary.go's
// os.Rename(tempPath, targetPath) and internal/reliability's quarantine
// rename), applied here to play files instead of binaries.
type FSStore struct {
	log  zerolog.Logger
	root string

	mu    sync.RWMutex
	index map[string]domain.Status // play_id -> current status
}

// NewFSStore creates the status partitions under root if missing and
// rebuilds the in-memory index from a filesystem walk. An index.msgpack
// snapshot, if present, is not read.
func NewFSStore(log zerolog.Logger, root string) (*FSStore, error) {
	s := &FSStore{
		log:   log.With().Str("component", "store.fs").Logger(),
		root:  root,
		index: make(map[string]domain.Status),
	}
	for _, st := range allStatuses {
		if err := os.MkdirAll(s.statusDir(st), 0o755); err != nil {
			return nil, fmt.Errorf("store: creating partition %s: %w", st, err)
		}
	}
	if err := s.rebuildIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FSStore) statusDir(status domain.Status) string {
	return filepath.Join(s.root, string(status))
}

func (s *FSStore) playPath(status domain.Status, playID string) string {
	return filepath.Join(s.statusDir(status), playID+".json")
}

// rebuildIndex walks every status partition; the filesystem is the source of
// truth regardless of whether a snapshot exists.
func (s *FSStore) rebuildIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := make(map[string]domain.Status)
	for _, st := range allStatuses {
		entries, err := os.ReadDir(s.statusDir(st))
		if err != nil {
			return fmt.Errorf("store: listing partition %s: %w", st, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			playID := trimJSONExt(e.Name())
			idx[playID] = st
		}
	}
	s.index = idx
	return nil
}

func trimJSONExt(name string) string {
	const ext = ".json"
	if len(name) > len(ext) && name[len(name)-len(ext):] == ext {
		return name[:len(name)-len(ext)]
	}
	return name
}

// SnapshotIndex serializes the current index to index.msgpack under root.
// The snapshot is write-only: NewFSStore always rebuilds the index from the
// directory walk and never loads it.
func (s *FSStore) SnapshotIndex() error {
	s.mu.RLock()
	entries := make([]indexEntry, 0, len(s.index))
	for id, st := range s.index {
		entries = append(entries, indexEntry{PlayID: id, Status: string(st)})
	}
	s.mu.RUnlock()

	b, err := msgpack.Marshal(entries)
	if err != nil {
		return fmt.Errorf("store: encoding index snapshot: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.root, "index.msgpack"), b)
}

// writeFileAtomic writes data to a temp file in the same directory as path
// and renames it into place, so path never transiently disappears.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("store: creating temp file: %w: %v", domain.ErrStoreError, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: writing temp file: %w: %v", domain.ErrStoreError, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: closing temp file: %w: %v", domain.ErrStoreError, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: renaming into place: %w: %v", domain.ErrStoreError, err)
	}
	return nil
}

func (s *FSStore) List(ctx context.Context, status domain.Status) ([]*domain.Play, error) {
	entries, err := os.ReadDir(s.statusDir(status))
	if err != nil {
		return nil, fmt.Errorf("store: listing %s: %w: %v", status, domain.ErrStoreError, err)
	}
	plays := make([]*domain.Play, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(s.statusDir(status), e.Name()))
		if err != nil {
			s.log.Error().Err(err).Str("file", e.Name()).Msg("failed to read play file")
			continue
		}
		p, err := UnmarshalPlay(b)
		if err != nil {
			s.log.Error().Err(err).Str("file", e.Name()).Msg("failed to parse play file")
			continue
		}
		plays = append(plays, p)
	}
	return plays, nil
}

func (s *FSStore) Get(ctx context.Context, playID string) (*domain.Play, error) {
	s.mu.RLock()
	status, ok := s.index[playID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: play %s not found: %w", playID, domain.ErrStoreError)
	}
	b, err := os.ReadFile(s.playPath(status, playID))
	if err != nil {
		return nil, fmt.Errorf("store: reading play %s: %w: %v", playID, domain.ErrStoreError, err)
	}
	return UnmarshalPlay(b)
}

func (s *FSStore) Save(ctx context.Context, play *domain.Play) error {
	b, err := MarshalPlay(play)
	if err != nil {
		return err
	}
	path := s.playPath(play.Status.Lifecycle, play.PlayID)
	if err := writeFileAtomic(path, b); err != nil {
		return err
	}
	s.mu.Lock()
	s.index[play.PlayID] = play.Status.Lifecycle
	s.mu.Unlock()
	return nil
}

// Move relocates play from its current on-disk partition to newStatus. The
// updated file is first rewritten in place inside the source partition
// (write-temp + rename, so it is never observable half-written) and then
// renamed across partitions, so at every instant, including after a crash
// between the two steps, the play is in exactly one partition (I3).
func (s *FSStore) Move(ctx context.Context, play *domain.Play, newStatus domain.Status) error {
	oldStatus := play.Status.Lifecycle
	oldPath := s.playPath(oldStatus, play.PlayID)

	play.Status.Lifecycle = newStatus
	b, err := MarshalPlay(play)
	if err != nil {
		play.Status.Lifecycle = oldStatus
		return err
	}
	if err := writeFileAtomic(oldPath, b); err != nil {
		play.Status.Lifecycle = oldStatus
		return err
	}

	if oldStatus != newStatus {
		if err := os.Rename(oldPath, s.playPath(newStatus, play.PlayID)); err != nil {
			play.Status.Lifecycle = oldStatus
			if ob, merr := MarshalPlay(play); merr == nil {
				_ = writeFileAtomic(oldPath, ob)
			}
			return fmt.Errorf("store: moving play %s to %s: %w: %v", play.PlayID, newStatus, domain.ErrStoreError, err)
		}
	}

	s.mu.Lock()
	s.index[play.PlayID] = newStatus
	s.mu.Unlock()
	return nil
}
