package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/4ndr3jS/TravelStory/pkg/db"
	"github.com/4ndr3jS/TravelStory/pkg/model"
)

// Store defines the repository interface.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	StoryStore
	CacheStore
	StateStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Stories ---

// SaveStory upserts a story. Route and story are stored as JSON; the
// summary columns are denormalized for listing.
func (s *SQLiteStore) SaveStory(ctx context.Context, rec *StoryRecord) error {
	if rec == nil || rec.Story == nil || rec.Route == nil {
		return errors.New("story record requires route and story")
	}
	routeJSON, err := json.Marshal(rec.Route)
	if err != nil {
		return fmt.Errorf("failed to marshal route: %w", err)
	}
	storyJSON, err := json.Marshal(rec.Story)
	if err != nil {
		return fmt.Errorf("failed to marshal story: %w", err)
	}

	created := rec.Story.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	query := `INSERT INTO stories (id, start_address, end_address, style, total_segments, buffered_segments, cursor_index, route, story, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			buffered_segments = excluded.buffered_segments,
			cursor_index = excluded.cursor_index,
			story = excluded.story,
			updated_at = excluded.updated_at`
	_, err = s.db.ExecContext(ctx, query,
		rec.Story.ID, rec.Route.StartAddress, rec.Route.EndAddress, string(rec.Route.Style),
		rec.Story.TotalSegmentsEstimate, len(rec.Story.Segments), rec.Cursor,
		string(routeJSON), string(storyJSON),
		created.UTC().Format(db.TimeLayout), db.Now(),
	)
	return err
}

// GetStory returns nil, nil when the story does not exist.
func (s *SQLiteStore) GetStory(ctx context.Context, id string) (*StoryRecord, error) {
	var routeJSON, storyJSON, updated string
	var cursor int
	err := s.db.QueryRowContext(ctx,
		`SELECT route, story, cursor_index, updated_at FROM stories WHERE id = ?`, id,
	).Scan(&routeJSON, &storyJSON, &cursor, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec := &StoryRecord{Cursor: cursor, UpdatedAt: parseTime(updated)}
	if err := json.Unmarshal([]byte(routeJSON), &rec.Route); err != nil {
		return nil, fmt.Errorf("failed to decode route of story %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(storyJSON), &rec.Story); err != nil {
		return nil, fmt.Errorf("failed to decode story %s: %w", id, err)
	}
	return rec, nil
}

// ListStories returns the most recently updated stories first.
func (s *SQLiteStore) ListStories(ctx context.Context, limit int) ([]StorySummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, start_address, end_address, style, total_segments, buffered_segments, cursor_index, created_at, updated_at
		 FROM stories ORDER BY updated_at DESC, created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StorySummary
	for rows.Next() {
		var sum StorySummary
		var style, created, updated string
		if err := rows.Scan(&sum.ID, &sum.StartAddress, &sum.EndAddress, &style,
			&sum.Total, &sum.Buffered, &sum.Cursor, &created, &updated); err != nil {
			return nil, err
		}
		sum.Style = model.StoryStyle(style)
		sum.CreatedAt = parseTime(created)
		sum.UpdatedAt = parseTime(updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteStory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM stories WHERE id = ?", id)
	return err
}

func parseTime(s string) time.Time {
	for _, layout := range []string{db.TimeLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// --- Cache ---

func (s *SQLiteStore) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM cache WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		slog.Debug("Store: cache read failed", "key", key, "error", err)
		return nil, false
	}

	// Transparent decompression; undecodable values are returned raw.
	if isGzip(val) {
		if decompressed, err := decompress(val); err == nil {
			return decompressed, true
		}
	}

	return val, true
}

// --- Compression Pooling ---

var (
	gzipWriterPool = sync.Pool{
		New: func() interface{} {
			return gzip.NewWriter(io.Discard)
		},
	}
	bufferPool = sync.Pool{
		New: func() interface{} {
			return new(bytes.Buffer)
		},
	}
)

func isGzip(b []byte) bool {
	return len(b) > 2 && b[0] == 0x1f && b[1] == 0x8b
}

func compress(data []byte) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	w := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(w)

	w.Reset(buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	// buf goes back to the pool
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *SQLiteStore) HasCache(ctx context.Context, key string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM cache WHERE key = ?", key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) SetCache(ctx context.Context, key string, val []byte) error {
	if compressed, err := compress(val); err == nil {
		val = compressed
	}

	query := `INSERT OR REPLACE INTO cache (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, db.Now())
	return err
}

func (s *SQLiteStore) ListCacheKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM cache WHERE key LIKE ?", prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("Store: state read failed", "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, db.Now())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}
