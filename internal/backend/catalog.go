// Package backend is the reference assistant service behind POST /api/chat:
// an echo HTTP server, a pluggable model provider and the sqlite media
// catalog whose summary is returned with every reply.
package backend

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"mediachat/internal/logging"
	"mediachat/internal/metadata"
	"mediachat/internal/transport"
)

// timeFormat keeps updated_at lexically sortable.
const timeFormat = "2006-01-02T15:04:05Z"

// Record is one item in the media catalog.
type Record struct {
	ID        string
	Title     string
	Type      string // audio, video, image, document
	Language  string
	RelatedTo string // ID of a related record, empty when none
	UpdatedAt time.Time
}

// Catalog is the sqlite-backed media catalog.
type Catalog struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// OpenCatalog creates or opens the catalog at dbPath.
func OpenCatalog(dbPath string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create directory")
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	db.SetMaxOpenConns(1)

	c := &Catalog{db: db, dbPath: dbPath}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	logging.Get(logging.CategoryStore).Info("catalog opened at %s", dbPath)
	return c, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.dbPath
}

func (c *Catalog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		type TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		related_to TEXT,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_type ON records(type);
	CREATE INDEX IF NOT EXISTS idx_records_language ON records(language);
	CREATE INDEX IF NOT EXISTS idx_records_updated ON records(updated_at);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Add inserts or replaces r. An empty ID gets a fresh one, which is returned.
func (c *Catalog) Add(ctx context.Context, r Record) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	var related any
	if r.RelatedTo != "" {
		related = r.RelatedTo
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO records (id, title, type, language, related_to, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Title, strings.ToLower(r.Type), strings.ToLower(r.Language), related,
		r.UpdatedAt.UTC().Format(timeFormat))
	if err != nil {
		return "", errors.Wrapf(err, "failed to insert record %s", r.ID)
	}
	return r.ID, nil
}

// Count returns the number of records.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count records")
	}
	return n, nil
}

// Query filters the catalog. Empty fields match everything.
type Query struct {
	Type     string
	Language string
	Limit    int
}

// Find returns records matching q, most recently updated first.
func (c *Catalog) Find(ctx context.Context, q Query) ([]Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sqlText := `SELECT id, title, type, language, COALESCE(related_to, ''), updated_at FROM records WHERE 1=1`
	var args []any
	if q.Type != "" {
		sqlText += ` AND type = ?`
		args = append(args, strings.ToLower(q.Type))
	}
	if q.Language != "" {
		sqlText += ` AND language = ?`
		args = append(args, strings.ToLower(q.Language))
	}
	sqlText += ` ORDER BY updated_at DESC, id`
	if q.Limit > 0 {
		sqlText += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := c.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query records")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r       Record
			updated string
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Type, &r.Language, &r.RelatedTo, &updated); err != nil {
			return nil, errors.Wrap(err, "failed to scan record")
		}
		if ts, ok := transport.ParseTime(updated); ok {
			r.UpdatedAt = ts
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate records")
}

// Stats summarizes the catalog in the shape returned to clients.
func (c *Catalog) Stats(ctx context.Context) (metadata.DbStats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		stats   metadata.DbStats
		related int
		latest  sql.NullString
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(related_to), MAX(updated_at) FROM records`).
		Scan(&stats.TotalRecords, &related, &latest)
	if err != nil {
		return metadata.DbStats{}, errors.Wrap(err, "failed to summarize records")
	}

	rows, err := c.db.QueryContext(ctx, `SELECT DISTINCT type FROM records ORDER BY type`)
	if err != nil {
		return metadata.DbStats{}, errors.Wrap(err, "failed to list types")
	}
	defer rows.Close()

	stats.Types = []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return metadata.DbStats{}, errors.Wrap(err, "failed to scan type")
		}
		stats.Types = append(stats.Types, t)
	}
	if err := rows.Err(); err != nil {
		return metadata.DbStats{}, errors.Wrap(err, "failed to iterate types")
	}

	stats.RelatedRecords = &related
	if latest.Valid {
		if ts, ok := transport.ParseTime(latest.String); ok {
			stats.LatestUpdate = &ts
		}
	}
	return stats, nil
}

// DemoRecords is the sample catalog loaded into an empty database.
func DemoRecords(now time.Time) []Record {
	day := 24 * time.Hour
	return []Record{
		{ID: "rec-001", Title: "Entrevista con la alcaldesa", Type: "audio", Language: "es", UpdatedAt: now.Add(-30 * day)},
		{ID: "rec-002", Title: "Podcast de tecnología, episodio 12", Type: "audio", Language: "es", UpdatedAt: now.Add(-12 * day)},
		{ID: "rec-003", Title: "Morning news briefing", Type: "audio", Language: "en", UpdatedAt: now.Add(-3 * day)},
		{ID: "rec-004", Title: "Documental sobre el río Ebro", Type: "video", Language: "es", UpdatedAt: now.Add(-20 * day)},
		{ID: "rec-005", Title: "Tráiler del documental", Type: "video", Language: "es", RelatedTo: "rec-004", UpdatedAt: now.Add(-19 * day)},
		{ID: "rec-006", Title: "Foto de portada del documental", Type: "image", Language: "es", RelatedTo: "rec-004", UpdatedAt: now.Add(-18 * day)},
		{ID: "rec-007", Title: "Infografía de lluvias 2023", Type: "image", Language: "es", UpdatedAt: now.Add(-7 * day)},
		{ID: "rec-008", Title: "Transcripción de la entrevista", Type: "document", Language: "es", RelatedTo: "rec-001", UpdatedAt: now.Add(-29 * day)},
		{ID: "rec-009", Title: "Press kit", Type: "document", Language: "en", UpdatedAt: now.Add(-1 * day)},
	}
}

// SeedDemo loads DemoRecords when the catalog is empty. It returns the
// number of rows inserted.
func (c *Catalog) SeedDemo(ctx context.Context) (int, error) {
	n, err := c.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	recs := DemoRecords(time.Now())
	for _, r := range recs {
		if _, err := c.Add(ctx, r); err != nil {
			return 0, errors.Wrap(err, "failed to seed demo catalog")
		}
	}
	logging.Get(logging.CategoryStore).Info("seeded %d demo records", len(recs))
	return len(recs), nil
}
