package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rendis/placetap/internal/model"
)

// Store persists discovered businesses and run summaries. place_id is unique
// across runs, so a second scan of the same area only adds new listings.
type Store struct {
	db    *sql.DB
	mu    sync.Mutex
	runID string
}

func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS businesses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		place_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		address TEXT,
		phone TEXT NOT NULL DEFAULT '',
		website TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		emails TEXT NOT NULL DEFAULT '[]',
		rating REAL,
		review_count INTEGER,
		category TEXT,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		query TEXT NOT NULL,
		run_id TEXT,
		scraped_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_businesses_query ON businesses(query);
	CREATE INDEX IF NOT EXISTS idx_businesses_coords ON businesses(lat, lng);
	CREATE INDEX IF NOT EXISTS idx_businesses_run ON businesses(run_id);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		min_lat REAL, max_lat REAL, min_lng REAL, max_lng REAL,
		tile_size REAL,
		target INTEGER,
		state TEXT NOT NULL DEFAULT 'running',
		found INTEGER NOT NULL DEFAULT 0,
		passes INTEGER NOT NULL DEFAULT 0,
		multiplier REAL NOT NULL DEFAULT 1,
		api_calls INTEGER NOT NULL DEFAULT 0,
		cache_hits INTEGER NOT NULL DEFAULT 0,
		cost_usd REAL NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);
	`
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Run is one recorded scan.
type Run struct {
	ID         string
	Config     model.SearchConfig
	Target     int
	State      string
	Found      int
	Passes     int
	Multiplier float64
	APICalls   int64
	CacheHits  int64
	CostUSD    float64
	StartedAt  time.Time
	FinishedAt *time.Time
}

// BeginRun records a new scan and tags subsequent inserts with its id.
func (s *Store) BeginRun(cfg model.SearchConfig, target int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO runs (id, query, min_lat, max_lat, min_lng, max_lng, tile_size, target, started_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		id, cfg.Query, cfg.MinLat, cfg.MaxLat, cfg.MinLng, cfg.MaxLng, cfg.TileSize, target, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}
	s.runID = id
	return id, nil
}

// FinishRun stores a scan's outcome.
func (s *Store) FinishRun(r Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE runs SET state = ?, found = ?, passes = ?, multiplier = ?,
			api_calls = ?, cache_hits = ?, cost_usd = ?, finished_at = ?
		WHERE id = ?`,
		r.State, r.Found, r.Passes, r.Multiplier, r.APICalls, r.CacheHits, r.CostUSD, time.Now().UTC(), r.ID)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", r.ID, err)
	}
	return nil
}

// Runs lists recorded scans, newest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, query, min_lat, max_lat, min_lng, max_lng, tile_size, target, state, found,
		       passes, multiplier, api_calls, cache_hits, cost_usd, started_at, finished_at
		FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Config.Query, &r.Config.MinLat, &r.Config.MaxLat, &r.Config.MinLng, &r.Config.MaxLng,
			&r.Config.TileSize, &r.Target, &r.State, &r.Found, &r.Passes, &r.Multiplier,
			&r.APICalls, &r.CacheHits, &r.CostUSD, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// InsertBatch adds businesses not already stored and returns how many were new.
func (s *Store) InsertBatch(businesses []model.Business) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO businesses
		(place_id, name, address, phone, website, email, emails, rating, review_count,
		 category, lat, lng, query, run_id, scraped_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing stmt: %w", err)
	}
	defer stmt.Close()

	var runID any
	if s.runID != "" {
		runID = s.runID
	}

	inserted := 0
	for _, b := range businesses {
		emails, err := encodeEmails(b.Emails)
		if err != nil {
			return 0, err
		}
		res, err := stmt.Exec(
			b.PlaceID, b.Name, b.Address, b.Phone, b.Website, b.Email, emails,
			b.Rating, b.ReviewCount, b.Category, b.Lat, b.Lng, b.Query, runID, b.ScrapedAt.UTC(),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting %s: %w", b.PlaceID, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing tx: %w", err)
	}
	return inserted, nil
}

// Exists reports whether placeID is already stored.
func (s *Store) Exists(placeID string) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM businesses WHERE place_id = ?", placeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", placeID, err)
	}
	return n > 0, nil
}

const businessColumns = `place_id, name, address, phone, website, email, emails, rating,
	review_count, category, lat, lng, query, scraped_at`

// All returns every stored business ordered by name.
func (s *Store) All() ([]model.Business, error) {
	return s.query("SELECT " + businessColumns + " FROM businesses ORDER BY name")
}

// ByRun returns the businesses first found by the given run.
func (s *Store) ByRun(runID string) ([]model.Business, error) {
	return s.query("SELECT "+businessColumns+" FROM businesses WHERE run_id = ? ORDER BY id", runID)
}

// WithWebsiteMissingEmail lists businesses eligible for email enrichment.
func (s *Store) WithWebsiteMissingEmail() ([]model.Business, error) {
	return s.query("SELECT " + businessColumns + " FROM businesses WHERE website != '' AND email = '' ORDER BY id")
}

func (s *Store) query(q string, args ...any) ([]model.Business, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying businesses: %w", err)
	}
	defer rows.Close()

	var businesses []model.Business
	for rows.Next() {
		var (
			b       model.Business
			address sql.NullString
			cat     sql.NullString
			rating  sql.NullFloat64
			reviews sql.NullInt64
			emails  string
			scraped sql.NullTime
		)
		if err := rows.Scan(&b.PlaceID, &b.Name, &address, &b.Phone, &b.Website, &b.Email, &emails,
			&rating, &reviews, &cat, &b.Lat, &b.Lng, &b.Query, &scraped); err != nil {
			return nil, fmt.Errorf("scanning business: %w", err)
		}
		b.Address = address.String
		b.Category = cat.String
		b.Rating = rating.Float64
		b.ReviewCount = int(reviews.Int64)
		if scraped.Valid {
			b.ScrapedAt = scraped.Time
		}
		if emails != "" && emails != "[]" {
			if err := json.Unmarshal([]byte(emails), &b.Emails); err != nil {
				return nil, fmt.Errorf("decoding emails for %s: %w", b.PlaceID, err)
			}
		}
		businesses = append(businesses, b)
	}
	return businesses, rows.Err()
}

// UpdateContact fills phone and website from a details lookup. Empty values
// leave the stored field unchanged.
func (s *Store) UpdateContact(placeID, phone, website string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE businesses SET
			phone = CASE WHEN ? != '' THEN ? ELSE phone END,
			website = CASE WHEN ? != '' THEN ? ELSE website END
		WHERE place_id = ?`,
		phone, phone, website, website, placeID)
	if err != nil {
		return fmt.Errorf("updating contact for %s: %w", placeID, err)
	}
	return nil
}

// UpdateEmails records enrichment output.
func (s *Store) UpdateEmails(placeID, best string, all []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	emails, err := encodeEmails(all)
	if err != nil {
		return err
	}
	_, err = s.db.Exec("UPDATE businesses SET email = ?, emails = ? WHERE place_id = ?", best, emails, placeID)
	if err != nil {
		return fmt.Errorf("updating emails for %s: %w", placeID, err)
	}
	return nil
}

// Stats summarises contact coverage.
type Stats struct {
	Total           int
	WithWebsite     int
	WithEmail       int
	WithPhone       int
	WithRating      int
	WebsiteCoverage float64
	EmailCoverage   float64
}

func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(website != ''), 0),
		       COALESCE(SUM(email != ''), 0),
		       COALESCE(SUM(phone != ''), 0),
		       COALESCE(SUM(rating > 0), 0)
		FROM businesses`).Scan(&st.Total, &st.WithWebsite, &st.WithEmail, &st.WithPhone, &st.WithRating)
	if err != nil {
		return st, fmt.Errorf("computing stats: %w", err)
	}
	if st.Total > 0 {
		st.WebsiteCoverage = float64(st.WithWebsite) / float64(st.Total) * 100
		st.EmailCoverage = float64(st.WithEmail) / float64(st.Total) * 100
	}
	return st, nil
}

func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM businesses").Scan(&count)
	return count, err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func encodeEmails(emails []string) (string, error) {
	if len(emails) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(emails)
	if err != nil {
		return "", fmt.Errorf("encoding emails: %w", err)
	}
	return string(b), nil
}
