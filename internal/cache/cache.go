// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache persists analysis results, paper metadata, and full text in
// a local SQLite database so repeated requests skip NCBI and the model.
//
// Three record kinds share one shape: a payload keyed by PMID with a
// creation timestamp and a source tag. Writes are upserts; concurrent
// writers to the same key race with last-write-wins.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/bioanalyzer/internal/logging"
	"github.com/pdiddy/bioanalyzer/pkg/types"
)

// Kind selects one of the three record tables.
type Kind string

const (
	KindAnalysis Kind = "analysis"
	KindMetadata Kind = "metadata"
	KindFullText Kind = "fulltext"
)

// Kinds lists every record kind in a fixed order.
var Kinds = []Kind{KindAnalysis, KindMetadata, KindFullText}

// ParseKind maps a name onto a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", eris.Errorf("unknown cache kind %q: use analysis, metadata, or fulltext", s)
}

type table struct {
	name       string
	payloadCol string
	analysis   bool
}

var tables = map[Kind]table{
	KindAnalysis: {name: "analysis_cache", payloadCol: "analysis_data", analysis: true},
	KindMetadata: {name: "metadata_cache", payloadCol: "metadata"},
	KindFullText: {name: "fulltext_cache", payloadCol: "fulltext"},
}

func (k Kind) table() (table, error) {
	t, ok := tables[k]
	if !ok {
		return table{}, eris.Errorf("unknown cache kind %q", k)
	}
	return t, nil
}

// ErrNotFound is returned by Lookup when no record exists for the key.
var ErrNotFound = eris.New("cache: record not found")

// DefaultValidity is how long a record is considered fresh.
const DefaultValidity = 24 * time.Hour

// DefaultSweepAge is the age beyond which Sweep deletes records.
const DefaultSweepAge = 168 * time.Hour

const defaultMaxConnections = 5

// Entry is one cached record.
type Entry struct {
	Kind Kind
	Key  types.PaperID

	// Payload is the serialized record body.
	Payload []byte

	// Metadata is a bibliographic summary stored next to analysis records.
	Metadata []byte

	// Timestamp is the creation time. A zero value means "now" on Store.
	Timestamp time.Time

	// Source tags where the payload came from (e.g. "efetch", "gemini").
	Source string

	// Confidence is the document-level score of an analysis record.
	Confidence *float64
}

// Store manages the cache database. All methods are safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	log  *zap.Logger
	now  func() time.Time
}

// Open opens or creates the cache database at cfg.Path and creates the
// schema if it does not exist. The connection pool is capped at
// cfg.MaxConnections; callers beyond the cap block until a connection frees.
func Open(cfg types.CacheConfig, log *zap.Logger) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = types.DefaultConfig().Cache.Path
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "creating cache directory")
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, eris.Wrap(err, "opening cache database")
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = defaultMaxConnections
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	s := &Store{
		db:   db,
		path: path,
		log:  logging.OrNop(log).Named("cache"),
		now:  time.Now,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "creating schema")
	}

	return s, nil
}

// Close releases the database connections.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS analysis_cache (
			pmid TEXT PRIMARY KEY,
			analysis_data TEXT NOT NULL,
			metadata TEXT,
			timestamp INTEGER NOT NULL,
			source TEXT,
			confidence REAL
		)`,
		`CREATE TABLE IF NOT EXISTS metadata_cache (
			pmid TEXT PRIMARY KEY,
			metadata TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			source TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS fulltext_cache (
			pmid TEXT PRIMARY KEY,
			fulltext TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			source TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_timestamp ON analysis_cache(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_metadata_timestamp ON metadata_cache(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_fulltext_timestamp ON fulltext_cache(timestamp)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return eris.Wrap(err, "executing schema statement")
		}
	}
	return nil
}

// Store upserts e by (kind, key). A later Store for the same key replaces
// the earlier record entirely. Failures are logged and reported as false.
func (s *Store) Store(ctx context.Context, e Entry) bool {
	if err := s.put(ctx, e); err != nil {
		s.log.Error("store failed",
			zap.String("kind", string(e.Kind)),
			zap.String("pmid", e.Key.String()),
			zap.Error(err))
		return false
	}
	return true
}

func (s *Store) put(ctx context.Context, e Entry) error {
	t, err := e.Kind.table()
	if err != nil {
		return err
	}
	if !e.Key.Valid() {
		return eris.New("empty cache key")
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	if t.analysis {
		var conf sql.NullFloat64
		if e.Confidence != nil {
			conf = sql.NullFloat64{Float64: *e.Confidence, Valid: true}
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO analysis_cache (pmid, analysis_data, metadata, timestamp, source, confidence)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(pmid) DO UPDATE SET
				analysis_data=excluded.analysis_data, metadata=excluded.metadata,
				timestamp=excluded.timestamp, source=excluded.source, confidence=excluded.confidence`,
			e.Key.String(), string(e.Payload), nullString(e.Metadata), ts.UnixNano(), e.Source, conf,
		)
		return eris.Wrap(err, "upserting analysis record")
	}

	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %[1]s (pmid, %[2]s, timestamp, source) VALUES (?, ?, ?, ?)
			ON CONFLICT(pmid) DO UPDATE SET %[2]s=excluded.%[2]s, timestamp=excluded.timestamp, source=excluded.source`,
			t.name, t.payloadCol),
		e.Key.String(), string(e.Payload), ts.UnixNano(), e.Source,
	)
	return eris.Wrapf(err, "upserting %s record", e.Kind)
}

// Lookup returns the record for (kind, id), ErrNotFound on a miss, or the
// underlying read error. It is the explicit-error form of Get.
func (s *Store) Lookup(ctx context.Context, kind Kind, id types.PaperID) (Entry, error) {
	t, err := kind.table()
	if err != nil {
		return Entry{}, err
	}

	e := Entry{Kind: kind, Key: id}
	var (
		payload string
		ts      int64
		source  sql.NullString
	)

	if t.analysis {
		var (
			meta sql.NullString
			conf sql.NullFloat64
		)
		err = s.db.QueryRowContext(ctx,
			`SELECT analysis_data, metadata, timestamp, source, confidence FROM analysis_cache WHERE pmid = ?`,
			id.String(),
		).Scan(&payload, &meta, &ts, &source, &conf)
		if meta.Valid {
			e.Metadata = []byte(meta.String)
		}
		if conf.Valid {
			c := conf.Float64
			e.Confidence = &c
		}
	} else {
		err = s.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT %s, timestamp, source FROM %s WHERE pmid = ?`, t.payloadCol, t.name),
			id.String(),
		).Scan(&payload, &ts, &source)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, eris.Wrapf(err, "reading %s record %s", kind, id)
	}

	e.Payload = []byte(payload)
	e.Timestamp = time.Unix(0, ts)
	e.Source = source.String
	return e, nil
}

// Get returns the record for (kind, id). The boolean is false on a miss or
// a read failure; failures are logged. Use Lookup to tell the two apart.
func (s *Store) Get(ctx context.Context, kind Kind, id types.PaperID) (Entry, bool) {
	e, err := s.Lookup(ctx, kind, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn("read failed", zap.String("kind", string(kind)), zap.String("pmid", id.String()), zap.Error(err))
		}
		return Entry{}, false
	}
	return e, true
}

// IsValid reports whether a record created at ts is younger than maxAge.
// A non-positive maxAge means DefaultValidity.
func IsValid(ts time.Time, maxAge time.Duration) bool {
	return isValidAt(time.Now(), ts, maxAge)
}

func isValidAt(now, ts time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = DefaultValidity
	}
	return now.Sub(ts) < maxAge
}

// Fresh reports whether e is still within maxAge according to the store clock.
func (s *Store) Fresh(e Entry, maxAge time.Duration) bool {
	return isValidAt(s.now(), e.Timestamp, maxAge)
}

// Delete removes the record for (kind, id). It reports false on failure;
// deleting a missing record succeeds.
func (s *Store) Delete(ctx context.Context, kind Kind, id types.PaperID) bool {
	t, err := kind.table()
	if err == nil {
		_, err = s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE pmid = ?`, t.name), id.String())
	}
	if err != nil {
		s.log.Error("delete failed", zap.String("kind", string(kind)), zap.String("pmid", id.String()), zap.Error(err))
		return false
	}
	return true
}

// ClearAll removes every record of every kind.
func (s *Store) ClearAll(ctx context.Context) bool {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, k := range Kinds {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+tables[k].name); err != nil {
				return eris.Wrapf(err, "clearing %s", k)
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error("clear failed", zap.Error(err))
		return false
	}
	return true
}

// Sweep deletes every record strictly older than maxAge across all three
// kinds and returns the number removed. A non-positive maxAge means
// DefaultSweepAge. On failure nothing is removed and 0 is returned.
func (s *Store) Sweep(ctx context.Context, maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = DefaultSweepAge
	}
	cutoff := s.now().Add(-maxAge).UnixNano()

	var removed int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, k := range Kinds {
			res, err := tx.ExecContext(ctx, `DELETE FROM `+tables[k].name+` WHERE timestamp < ?`, cutoff)
			if err != nil {
				return eris.Wrapf(err, "sweeping %s", k)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return eris.Wrap(err, "counting swept rows")
			}
			removed += n
		}
		return nil
	})
	if err != nil {
		s.log.Error("sweep failed", zap.Error(err))
		return 0
	}

	s.log.Info("sweep complete", zap.Int64("removed", removed), zap.Duration("max_age", maxAge))
	return int(removed)
}

// Stats summarizes cache contents.
type Stats struct {
	Counts         map[Kind]int `json:"counts" yaml:"counts"`
	RecentAnalyses int          `json:"recent_analyses_24h" yaml:"recent_analyses_24h"`
	SizeMB         float64      `json:"size_mb" yaml:"size_mb"`
	Path           string       `json:"path" yaml:"path"`
}

// Total returns the number of records across all kinds.
func (st Stats) Total() int {
	total := 0
	for _, n := range st.Counts {
		total += n
	}
	return total
}

// Stats returns per-kind counts, the number of analyses stored in the last
// 24 hours, and the on-disk size of the database including its WAL.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Counts: make(map[Kind]int, len(Kinds)), Path: s.path}
	for _, k := range Kinds {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM `+tables[k].name).Scan(&n); err != nil {
			return Stats{}, eris.Wrapf(err, "counting %s", k)
		}
		st.Counts[k] = n
	}

	since := s.now().Add(-24 * time.Hour).UnixNano()
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM analysis_cache WHERE timestamp >= ?`, since,
	).Scan(&st.RecentAnalyses); err != nil {
		return Stats{}, eris.Wrap(err, "counting recent analyses")
	}

	var size int64
	for _, p := range []string{s.path, s.path + "-wal"} {
		if info, err := os.Stat(p); err == nil {
			size += info.Size()
		}
	}
	st.SizeMB = math.Round(float64(size)/(1024*1024)*100) / 100
	return st, nil
}

// Search returns analysis records whose payload contains query, newest first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT pmid, analysis_data, timestamp, source FROM analysis_cache
		 WHERE analysis_data LIKE ? OR metadata LIKE ?
		 ORDER BY timestamp DESC LIMIT ?`,
		"%"+query+"%", "%"+query+"%", limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "searching analysis cache")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			pmid, payload string
			ts            int64
			source        sql.NullString
		)
		if err := rows.Scan(&pmid, &payload, &ts, &source); err != nil {
			return nil, eris.Wrap(err, "scanning search row")
		}
		out = append(out, Entry{
			Kind:      KindAnalysis,
			Key:       types.PaperID(pmid),
			Payload:   []byte(payload),
			Timestamp: time.Unix(0, ts),
			Source:    source.String,
		})
	}
	return out, eris.Wrap(rows.Err(), "iterating search rows")
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "beginning transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return eris.Wrap(tx.Commit(), "committing transaction")
}

func nullString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
