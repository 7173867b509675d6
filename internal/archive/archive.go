// Package archive uploads terminal-state plays (CLOSED/EXPIRED) to an
// S3-compatible bucket for durable, queryable history once the local store
// has moved on. Uploads are best-effort and asynchronous: a failure here
// never holds up a cycle or loses the play, since the filesystem/sqlite
// store already has it.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/aristath/goldcore/internal/domain"
)

// Uploader is the narrow slice of *manager.Uploader this package needs,
// mirroring the teacher's preference for small interfaces over its
// concrete clients so tests can substitute a fake.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Archiver uploads closed/expired plays to Bucket, one object per play.
type Archiver struct {
	uploader Uploader
	bucket   string
	prefix   string
	log      zerolog.Logger
}

func New(uploader Uploader, bucket, prefix string, log zerolog.Logger) *Archiver {
	return &Archiver{
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
		log:      log.With().Str("component", "archive.archiver").Logger(),
	}
}

// ArchivePlay uploads play as a JSON object keyed by its id and terminal
// status. It is meant to be called in its own goroutine by the caller (the
// orchestrator does this right after a play lands in CLOSED/EXPIRED) so a
// slow or failing upload never delays the cycle that produced it.
func (a *Archiver) ArchivePlay(ctx context.Context, play *domain.Play) error {
	if play.Status.Lifecycle != domain.StatusClosed && play.Status.Lifecycle != domain.StatusExpired {
		return fmt.Errorf("archive: play %s is not terminal (status %s)", play.PlayID, play.Status.Lifecycle)
	}

	body, err := json.Marshal(play)
	if err != nil {
		return fmt.Errorf("archive: encoding play %s: %w", play.PlayID, err)
	}

	key := a.objectKey(play)
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: strPtr("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: uploading play %s: %w", play.PlayID, err)
	}

	a.log.Debug().Str("play_id", play.PlayID).Str("key", key).Msg("archived play to S3")
	return nil
}

// ArchivePlayAsync spawns ArchivePlay in its own goroutine with a bounded
// timeout, logging but never propagating failure. Use this from cycle code
// that must not block on network I/O.
func (a *Archiver) ArchivePlayAsync(parent context.Context, play *domain.Play, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	// Copy the play so later in-place mutation by the caller (e.g. the
	// lifecycle engine recycling the struct) can't race the goroutine.
	snapshot := *play
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := a.ArchivePlay(ctx, &snapshot); err != nil {
			a.log.Warn().Err(err).Str("play_id", play.PlayID).Msg("background play archival failed")
		}
	}()
	_ = parent // retained for signature symmetry with other cycle hooks; archival deliberately outlives the cycle's own context
}

func (a *Archiver) objectKey(play *domain.Play) string {
	year := play.Logging.ClosedAt.Year()
	month := play.Logging.ClosedAt.Month()
	if play.Logging.ClosedAt.IsZero() {
		year, month, _ = play.CreationDate.Date()
	}
	return fmt.Sprintf("%s%04d/%02d/%s-%s.json", a.prefix, year, month, play.Status.Lifecycle, play.PlayID)
}

func strPtr(s string) *string { return &s }
