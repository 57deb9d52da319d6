// Package store is the local persistence layer: a read-through cache of
// session state with TTL expiry, plus draft autosave for the session creation
// form. Backed by an embedded sqlite database so CLI invocations share state
// without a daemon.
package store

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-logr/logr"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stormloop-dev/stormloop/pkg/brainstorm"
	apperrors "github.com/stormloop-dev/stormloop/pkg/errors"
)

// DefaultTTL is how long a cached session stays fresh.
const DefaultTTL = 5 * time.Minute

// ErrCacheMiss is returned when no fresh entry exists for a key. Expired
// entries count as misses and are removed on read.
var ErrCacheMiss = apperrors.New(apperrors.ErrCodeCache, "cache miss", nil)

// ErrDraftNotFound is returned when no draft exists under a key.
var ErrDraftNotFound = apperrors.New(apperrors.ErrCodeCache, "draft not found", nil)

type cachedSession struct {
	SessionID int `gorm:"primaryKey"`
	Payload   []byte
	UpdatedAt time.Time
	ExpiresAt time.Time
}

type draftRecord struct {
	Key       string `gorm:"primaryKey"`
	Topic     string
	AgentIDs  []byte
	UpdatedAt time.Time
}

type filterRecord struct {
	Name      string `gorm:"primaryKey"`
	Payload   []byte
	UpdatedAt time.Time
}

// Draft is an unsaved session creation form.
type Draft struct {
	Key      string
	Topic    string
	AgentIDs []int
	SavedAt  time.Time
}

// Options configures a Store.
type Options struct {
	TTL    time.Duration
	Logger logr.Logger
}

// Store is the sqlite-backed local cache.
type Store struct {
	db  *gorm.DB
	ttl time.Duration
	log logr.Logger

	now func() time.Time // test hook
}

// Open opens or creates the database at path and migrates its schema.
func Open(path string, opts Options) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCache, "failed to open cache database", err)
	}
	if err := db.AutoMigrate(&cachedSession{}, &draftRecord{}, &filterRecord{}); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCache, "failed to migrate cache schema", err)
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	return &Store{
		db:  db,
		ttl: opts.TTL,
		log: opts.Logger.WithName("store"),
		now: time.Now,
	}, nil
}

// PutSession caches a session snapshot under its id, refreshing the TTL.
func (s *Store) PutSession(session brainstorm.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeCache, "failed to marshal session", err)
	}
	now := s.now()
	rec := cachedSession{
		SessionID: session.ID,
		Payload:   payload,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.db.Save(&rec).Error; err != nil {
		return apperrors.New(apperrors.ErrCodeCache, "failed to write session cache", err)
	}
	return nil
}

// GetSession returns the cached session, or ErrCacheMiss when absent or
// stale. Stale entries are deleted on the way out.
func (s *Store) GetSession(id int) (*brainstorm.Session, error) {
	var rec cachedSession
	err := s.db.First(&rec, "session_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCache, "failed to read session cache", err)
	}
	if s.now().After(rec.ExpiresAt) {
		s.db.Delete(&cachedSession{}, "session_id = ?", id)
		return nil, ErrCacheMiss
	}
	var session brainstorm.Session
	if err := json.Unmarshal(rec.Payload, &session); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCache, "failed to unmarshal cached session", err)
	}
	return &session, nil
}

// DeleteSession drops a session from the cache.
func (s *Store) DeleteSession(id int) error {
	if err := s.db.Delete(&cachedSession{}, "session_id = ?", id).Error; err != nil {
		return apperrors.New(apperrors.ErrCodeCache, "failed to delete cached session", err)
	}
	return nil
}

// PurgeExpired removes all stale entries and returns how many were dropped.
func (s *Store) PurgeExpired() (int64, error) {
	res := s.db.Delete(&cachedSession{}, "expires_at < ?", s.now())
	if res.Error != nil {
		return 0, apperrors.New(apperrors.ErrCodeCache, "failed to purge cache", res.Error)
	}
	if res.RowsAffected > 0 {
		s.log.V(1).Info("purged stale sessions", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// SaveDraft upserts a session creation draft. Drafts never expire; they are
// removed explicitly when the session is created or the draft discarded.
func (s *Store) SaveDraft(d Draft) error {
	ids, err := json.Marshal(d.AgentIDs)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeCache, "failed to marshal draft", err)
	}
	rec := draftRecord{
		Key:       d.Key,
		Topic:     d.Topic,
		AgentIDs:  ids,
		UpdatedAt: s.now(),
	}
	if err := s.db.Save(&rec).Error; err != nil {
		return apperrors.New(apperrors.ErrCodeCache, "failed to write draft", err)
	}
	return nil
}

// GetDraft returns the draft stored under key.
func (s *Store) GetDraft(key string) (*Draft, error) {
	var rec draftRecord
	err := s.db.First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCache, "failed to read draft", err)
	}
	return draftFromRecord(rec)
}

// ListDrafts returns all drafts, most recently saved first.
func (s *Store) ListDrafts() ([]Draft, error) {
	var recs []draftRecord
	if err := s.db.Order("updated_at desc").Find(&recs).Error; err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCache, "failed to list drafts", err)
	}
	drafts := make([]Draft, 0, len(recs))
	for _, rec := range recs {
		d, err := draftFromRecord(rec)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, *d)
	}
	return drafts, nil
}

// DeleteDraft removes the draft stored under key.
func (s *Store) DeleteDraft(key string) error {
	if err := s.db.Delete(&draftRecord{}, "key = ?", key).Error; err != nil {
		return apperrors.New(apperrors.ErrCodeCache, "failed to delete draft", err)
	}
	return nil
}

func draftFromRecord(rec draftRecord) (*Draft, error) {
	var ids []int
	if len(rec.AgentIDs) > 0 {
		if err := json.Unmarshal(rec.AgentIDs, &ids); err != nil {
			return nil, apperrors.New(apperrors.ErrCodeCache, "failed to unmarshal draft", err)
		}
	}
	return &Draft{
		Key:      rec.Key,
		Topic:    rec.Topic,
		AgentIDs: ids,
		SavedAt:  rec.UpdatedAt,
	}, nil
}

// SaveFilter persists the last used filter settings of a list view under
// name, so the next invocation starts from the same view.
func (s *Store) SaveFilter(name string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeCache, "failed to marshal filter", err)
	}
	rec := filterRecord{Name: name, Payload: payload, UpdatedAt: s.now()}
	if err := s.db.Save(&rec).Error; err != nil {
		return apperrors.New(apperrors.ErrCodeCache, "failed to write filter", err)
	}
	return nil
}

// LoadFilter restores filter settings saved under name into out. A missing
// record is a cache miss, not an error state.
func (s *Store) LoadFilter(name string, out any) error {
	var rec filterRecord
	err := s.db.First(&rec, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrCacheMiss
	}
	if err != nil {
		return apperrors.New(apperrors.ErrCodeCache, "failed to read filter", err)
	}
	if err := json.Unmarshal(rec.Payload, out); err != nil {
		return apperrors.New(apperrors.ErrCodeCache, "failed to unmarshal filter", err)
	}
	return nil
}
