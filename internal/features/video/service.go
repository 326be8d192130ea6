package video

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/features/course"
	"github.com/aulavirtual/lms-server-go/pkg/cache"
	"github.com/aulavirtual/lms-server-go/pkg/metrics"
	"github.com/aulavirtual/lms-server-go/pkg/storage"
)

const (
	DefaultPlaybackTTL = time.Hour
	MaxPlaybackTTL     = 2 * time.Hour
	// PlayerSaveInterval is how often players report the playback position.
	PlayerSaveInterval = 5 * time.Second
)

// UploadInput describes a video upload.
type UploadInput struct {
	CourseID       uuid.UUID
	Title          string
	Description    *string
	ThumbnailURL   *string
	Week           int
	OrderInWeek    *int
	AvailableFrom  *time.Time
	AvailableUntil *time.Time
	UploadedBy     *uuid.UUID

	Filename string
	Body     io.Reader
	Size     int64
}

// Playback is a resolved playback location.
type Playback struct {
	URL       string     `json:"url"`
	Signed    bool       `json:"signed"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Service owns the two-step lifecycle of video binaries and their rows.
type Service struct {
	db     *gorm.DB
	store  storage.ObjectStore
	cache  cache.Client
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time
}

// NewService constructs a video service. The playback TTL is clamped to
// (0, MaxPlaybackTTL]; zero selects DefaultPlaybackTTL. store may be nil
// when uploads are disabled, and cache may be nil.
func NewService(db *gorm.DB, store storage.ObjectStore, cacheClient cache.Client, logger *slog.Logger, playbackTTL time.Duration) *Service {
	switch {
	case playbackTTL <= 0:
		playbackTTL = DefaultPlaybackTTL
	case playbackTTL > MaxPlaybackTTL:
		playbackTTL = MaxPlaybackTTL
	}
	return &Service{
		db:     db,
		store:  store,
		cache:  cacheClient,
		logger: logger,
		ttl:    playbackTTL,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// PlaybackTTL returns the lifetime of signed playback URLs.
func (s *Service) PlaybackTTL() time.Duration { return s.ttl }

// Upload stores the binary and then inserts the row pointing at it. When the
// insert fails the stored object is deleted again.
func (s *Service) Upload(ctx context.Context, input UploadInput) (Video, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Video{}, ErrTitleRequired
	}
	if input.Week < 1 {
		return Video{}, ErrInvalidWeek
	}
	if input.OrderInWeek != nil && *input.OrderInWeek < 0 {
		return Video{}, ErrInvalidOrder
	}
	if input.Body == nil || input.Size <= 0 {
		return Video{}, ErrFileRequired
	}
	from, until := utcPtr(input.AvailableFrom), utcPtr(input.AvailableUntil)
	if !validWindow(from, until) {
		return Video{}, ErrInvalidWindow
	}
	if s.store == nil {
		return Video{}, fmt.Errorf("%w: no object store configured", ErrUploadFailed)
	}

	db := s.db.WithContext(ctx)
	if _, err := course.Get(db, input.CourseID); err != nil {
		return Video{}, err
	}

	order := 0
	if input.OrderInWeek != nil {
		order = *input.OrderInWeek
	} else {
		next, err := NextOrderInWeek(db, input.CourseID, input.Week)
		if err != nil {
			return Video{}, err
		}
		order = next
	}

	key := storage.VideoObjectKey(input.CourseID, input.Filename, s.now())
	counter := &countingReader{r: input.Body}
	if err := s.store.Put(ctx, key, counter, input.Size, storage.ContentTypeFor(key)); err != nil {
		metrics.RecordVideoUpload("failed", 0)
		return Video{}, errors.Join(ErrUploadFailed, err)
	}

	v := Video{
		CourseID:       input.CourseID,
		Title:          title,
		Description:    input.Description,
		ThumbnailURL:   input.ThumbnailURL,
		VideoURL:       key,
		Week:           input.Week,
		OrderInWeek:    order,
		Duration:       0,
		FileSize:       counter.n,
		UploadedBy:     input.UploadedBy,
		Active:         true,
		AvailableFrom:  from,
		AvailableUntil: until,
	}
	if err := Insert(db, &v); err != nil {
		s.removeObject(ctx, key, err)
		metrics.RecordVideoUpload("rolled_back", 0)
		return Video{}, err
	}

	metrics.RecordVideoUpload("stored", v.FileSize)
	s.logger.InfoContext(ctx, "video uploaded",
		"videoId", v.ID, "courseId", v.CourseID, "key", key, "bytes", v.FileSize)
	return v, nil
}

func (s *Service) removeObject(ctx context.Context, key string, cause error) {
	delErr := s.store.Delete(context.WithoutCancel(ctx), key)
	metrics.RecordCompensation("video_object", delErr)
	if delErr != nil {
		s.logger.ErrorContext(ctx, "failed to remove stored video after insert failed",
			"key", key, "cause", cause, "error", delErr)
		return
	}
	s.logger.WarnContext(ctx, "stored video removed after insert failed", "key", key, "cause", cause)
}

// Delete removes the stored object and then the row. A failed object delete
// is logged and does not stop the row delete.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	db := s.db.WithContext(ctx)
	v, err := Get(db, id)
	if err != nil {
		return err
	}

	if key := objectKey(v.VideoURL); key != "" && s.store != nil {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.ErrorContext(ctx, "failed to delete stored video", "videoId", id, "key", key, "error", err)
		}
	}

	if err := DeleteRow(db, id); err != nil {
		return err
	}

	s.forgetPlayback(ctx, v)
	s.logger.InfoContext(ctx, "video deleted", "videoId", id, "courseId", v.CourseID)
	return nil
}

// PlaybackURL returns a signed URL for the video, reusing a cached one while
// at least half of its lifetime remains. When signing fails the public URL
// of the stored pointer is returned instead.
func (s *Service) PlaybackURL(ctx context.Context, v Video) (Playback, error) {
	key := objectKey(v.VideoURL)
	if key == "" {
		if v.VideoURL == "" {
			return Playback{}, ErrPlaybackUnresolved
		}
		return Playback{URL: v.VideoURL}, nil
	}

	cacheKey := playbackCacheKey(v)
	if s.cache != nil {
		var cached Playback
		if err := cache.GetJSON(ctx, s.cache, cacheKey, &cached); err == nil && cached.URL != "" {
			return cached, nil
		}
	}

	if s.store == nil {
		return Playback{}, ErrPlaybackUnresolved
	}

	signed, err := s.store.SignedURL(ctx, key, s.ttl)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to sign playback url, using public url",
			"videoId", v.ID, "key", key, "error", err)
		return Playback{URL: s.store.PublicURL(key)}, nil
	}

	expires := s.now().Add(s.ttl)
	playback := Playback{URL: signed, Signed: true, ExpiresAt: &expires}
	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, cacheKey, playback, s.ttl/2); err != nil {
			s.logger.WarnContext(ctx, "failed to cache playback url", "videoId", v.ID, "error", err)
		}
	}
	return playback, nil
}

func (s *Service) forgetPlayback(ctx context.Context, v Video) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, playbackCacheKey(v)); err != nil {
		s.logger.WarnContext(ctx, "failed to drop cached playback url", "videoId", v.ID, "error", err)
	}
}

func playbackCacheKey(v Video) string {
	sum := sha256.Sum256([]byte(v.VideoURL))
	return "video:playback:" + v.ID.String() + ":" + hex.EncodeToString(sum[:8])
}

// objectKey returns the store key for a pointer, or "" for absolute URLs
// recorded before uploads went through the object store.
func objectKey(pointer string) string {
	pointer = strings.TrimSpace(pointer)
	if strings.HasPrefix(pointer, "http://") || strings.HasPrefix(pointer, "https://") {
		return ""
	}
	return strings.TrimPrefix(pointer, "/")
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
