// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache keeps recent discovery answers in SQLite so repeated
// expansions around the same papers do not hit upstream APIs again.
// Entries are keyed by (source, dedup key, limit) and expire after a TTL.
// Failed lookups are never stored.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/research-spider/internal/discovery"
	"github.com/pdiddy/research-spider/internal/identity"
	"github.com/pdiddy/research-spider/internal/observability"
	"github.com/pdiddy/research-spider/pkg/types"
)

const defaultTTL = 24 * time.Hour

// Store manages the candidate cache database.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens or creates the cache database at cfg.Path and drops expired
// entries.
func Open(cfg types.CacheConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("cache path is empty")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	db.SetMaxOpenConns(1)

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	s := &Store{db: db, ttl: ttl, now: time.Now}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if _, err := s.Prune(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS candidates (
			source TEXT NOT NULL,
			paper_key TEXT NOT NULL,
			lim INTEGER NOT NULL,
			payload TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (source, paper_key, lim)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_candidates_expires ON candidates(expires_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Get returns the cached candidates for (source, key, limit). The bool is
// false on a miss or an expired entry.
func (s *Store) Get(ctx context.Context, source, key string, limit int) ([]types.CandidatePaper, bool, error) {
	var payload string
	var expires int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM candidates WHERE source = ? AND paper_key = ? AND lim = ?`,
		source, key, limit).Scan(&payload, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache: %w", err)
	}
	if s.now().UnixNano() >= expires {
		return nil, false, nil
	}

	var cands []types.CandidatePaper
	if err := json.Unmarshal([]byte(payload), &cands); err != nil {
		return nil, false, fmt.Errorf("decoding cached candidates: %w", err)
	}
	return cands, true, nil
}

// Put stores candidates for (source, key, limit), replacing any previous
// entry.
func (s *Store) Put(ctx context.Context, source, key string, limit int, cands []types.CandidatePaper) error {
	if cands == nil {
		cands = []types.CandidatePaper{}
	}
	payload, err := json.Marshal(cands)
	if err != nil {
		return fmt.Errorf("encoding candidates: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO candidates (source, paper_key, lim, payload, expires_at) VALUES (?, ?, ?, ?, ?)`,
		source, key, limit, string(payload), s.now().Add(s.ttl).UnixNano())
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Prune deletes expired entries and returns how many were removed.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM candidates WHERE expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return res.RowsAffected()
}

// Wrapper returns a discovery.Wrapper that serves each source through
// the store. m may be nil.
func Wrapper(s *Store, m *observability.Metrics) discovery.Wrapper {
	return func(src discovery.Source) discovery.Source {
		return &cachedSource{Source: src, store: s, metrics: m}
	}
}

// cachedSource serves FindRelated from the store when possible and
// collapses concurrent identical misses into one upstream call.
type cachedSource struct {
	discovery.Source
	store   *Store
	metrics *observability.Metrics
	group   singleflight.Group
}

func (c *cachedSource) FindRelated(ctx context.Context, paper types.PaperMetadata, limit int) ([]types.CandidatePaper, error) {
	name := c.Source.Name()
	key := identity.Resolve(paper)

	if cands, ok, err := c.store.Get(ctx, name, key, limit); err == nil && ok {
		c.metrics.ObserveCache(true)
		return cands, nil
	}
	c.metrics.ObserveCache(false)

	v, err, _ := c.group.Do(key+"|"+strconv.Itoa(limit), func() (any, error) {
		cands, err := c.Source.FindRelated(ctx, paper, limit)
		if err != nil {
			return nil, err
		}
		for i := range cands {
			cands[i].Signal = c.Source.Signal()
			cands[i].Source = name
		}
		if err := c.store.Put(ctx, name, key, limit, cands); err != nil {
			slog.Warn("caching candidates failed", "source", name, "paper", key, "error", err)
		}
		return cands, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]types.CandidatePaper), nil
}
