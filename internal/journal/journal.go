// Package journal records one row per pull in a local SQLite database: when
// it started, where, which plan was loaded and how it ended. It is not a
// combat log store.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Outcome is how a pull finished.
type Outcome string

const (
	// OutcomeActive marks a pull that has not finished yet.
	OutcomeActive  Outcome = ""
	OutcomeEnded   Outcome = "ended"
	OutcomeWipe    Outcome = "wipe"
	OutcomeZone    Outcome = "zone"
	OutcomeAborted Outcome = "aborted"
)

// Valid reports whether o is a finished outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeEnded, OutcomeWipe, OutcomeZone, OutcomeAborted:
		return true
	}
	return false
}

// ErrNotFound is returned when a pull id does not exist.
var ErrNotFound = errors.New("pull not found")

// Pull is one journal row.
type Pull struct {
	ID        string     `json:"id"`
	ZoneID    int        `json:"zoneId"`
	Zone      string     `json:"zone"`
	Fight     string     `json:"fight,omitempty"`
	PlanID    string     `json:"planId,omitempty"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Elapsed   float64    `json:"elapsed"`
	Outcome   Outcome    `json:"outcome"`
}

// Start describes a pull as it begins.
type Start struct {
	ZoneID    int
	Zone      string
	Fight     string
	PlanID    string
	StartedAt time.Time
}

// Store manages the journal database in WAL mode.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the journal at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func retryOnContention(fn func() error) error {
	return retryOp(defaultRetryConfig, fn)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pulls (
		id         TEXT PRIMARY KEY,
		zone_id    INTEGER NOT NULL DEFAULT 0,
		zone       TEXT NOT NULL DEFAULT '',
		fight      TEXT NOT NULL DEFAULT '',
		plan_id    TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		ended_at   TEXT,
		elapsed    REAL NOT NULL DEFAULT 0,
		outcome    TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_pulls_started ON pulls(started_at);
	CREATE INDEX IF NOT EXISTS idx_pulls_fight ON pulls(fight, outcome);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// Begin records a new pull and returns its id.
func (s *Store) Begin(st Start) (string, error) {
	id := uuid.NewString()
	err := retryOnContention(func() error {
		_, err := s.db.Exec(
			`INSERT INTO pulls (id, zone_id, zone, fight, plan_id, started_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, st.ZoneID, st.Zone, st.Fight, st.PlanID, formatTime(st.StartedAt),
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("begin pull: %w", err)
	}
	return id, nil
}

// Finish closes an active pull. Finishing an already finished pull is an
// error so a late timer cannot overwrite a wipe.
func (s *Store) Finish(id string, outcome Outcome, endedAt time.Time, elapsed float64) error {
	if !outcome.Valid() {
		return fmt.Errorf("finish pull: invalid outcome %q", outcome)
	}
	var n int64
	err := retryOnContention(func() error {
		res, err := s.db.Exec(
			`UPDATE pulls SET outcome = ?, ended_at = ?, elapsed = ?
			 WHERE id = ? AND outcome = ''`,
			string(outcome), formatTime(endedAt), elapsed, id,
		)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("finish pull: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish pull %s: %w", id, ErrNotFound)
	}
	return nil
}

// Relabel changes the outcome of a finished pull, e.g. when a wipe is
// detected after the end of combat was already recorded.
func (s *Store) Relabel(id string, outcome Outcome) error {
	if !outcome.Valid() {
		return fmt.Errorf("relabel pull: invalid outcome %q", outcome)
	}
	var n int64
	err := retryOnContention(func() error {
		res, err := s.db.Exec(`UPDATE pulls SET outcome = ? WHERE id = ? AND outcome != ''`, string(outcome), id)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("relabel pull: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("relabel pull %s: %w", id, ErrNotFound)
	}
	return nil
}

// AbortActive marks every unfinished pull as aborted. The daemon calls it at
// startup for pulls cut short by a crash or restart.
func (s *Store) AbortActive(at time.Time) (int64, error) {
	var n int64
	err := retryOnContention(func() error {
		res, err := s.db.Exec(
			`UPDATE pulls SET outcome = ?, ended_at = ? WHERE outcome = ''`,
			string(OutcomeAborted), formatTime(at),
		)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("abort active pulls: %w", err)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

const pullColumns = `id, zone_id, zone, fight, plan_id, started_at, ended_at, elapsed, outcome`

// Get returns one pull.
func (s *Store) Get(id string) (*Pull, error) {
	row := s.db.QueryRow(`SELECT `+pullColumns+` FROM pulls WHERE id = ?`, id)
	p, err := scanPull(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get pull %s: %w", id, ErrNotFound)
	}
	return p, err
}

// List returns the most recent pulls, newest first. limit <= 0 means 50.
func (s *Store) List(limit int) ([]Pull, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT `+pullColumns+` FROM pulls ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pulls: %w", err)
	}
	defer rows.Close()

	var out []Pull
	for rows.Next() {
		p, err := scanPull(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// FightStats aggregates the pulls of one fight.
type FightStats struct {
	Fight       string  `json:"fight"`
	Pulls       int     `json:"pulls"`
	Wipes       int     `json:"wipes"`
	Ended       int     `json:"ended"`
	LongestPull float64 `json:"longestPull"`
	TotalTime   float64 `json:"totalTime"`
}

// Stats summarizes the whole journal.
type Stats struct {
	Total     int             `json:"total"`
	Active    int             `json:"active"`
	ByOutcome map[Outcome]int `json:"byOutcome"`
	ByFight   []FightStats    `json:"byFight"`
}

// Stats returns pull counts per outcome and per fight.
func (s *Store) Stats() (*Stats, error) {
	st := &Stats{ByOutcome: map[Outcome]int{}}

	rows, err := s.db.Query(`SELECT outcome, COUNT(*) FROM pulls GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("pull stats: %w", err)
	}
	for rows.Next() {
		var o string
		var n int
		if err := rows.Scan(&o, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("pull stats: %w", err)
		}
		st.Total += n
		if Outcome(o) == OutcomeActive {
			st.Active = n
			continue
		}
		st.ByOutcome[Outcome(o)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pull stats: %w", err)
	}

	rows, err = s.db.Query(`
		SELECT fight,
		       COUNT(*),
		       SUM(CASE WHEN outcome = 'wipe' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN outcome = 'ended' THEN 1 ELSE 0 END),
		       MAX(elapsed),
		       SUM(elapsed)
		FROM pulls
		WHERE fight != ''
		GROUP BY fight
		ORDER BY fight`)
	if err != nil {
		return nil, fmt.Errorf("pull stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var f FightStats
		if err := rows.Scan(&f.Fight, &f.Pulls, &f.Wipes, &f.Ended, &f.LongestPull, &f.TotalTime); err != nil {
			return nil, fmt.Errorf("pull stats: %w", err)
		}
		st.ByFight = append(st.ByFight, f)
	}
	return st, rows.Err()
}

// ---------------------------------------------------------------------------
// Scan helpers
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...any) error
}

func scanPull(sc scanner) (*Pull, error) {
	var p Pull
	var started string
	var ended sql.NullString
	var outcome string
	if err := sc.Scan(&p.ID, &p.ZoneID, &p.Zone, &p.Fight, &p.PlanID, &started, &ended, &p.Elapsed, &outcome); err != nil {
		return nil, err
	}
	p.Outcome = Outcome(outcome)
	p.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if ended.Valid {
		t, err := time.Parse(time.RFC3339Nano, ended.String)
		if err == nil {
			p.EndedAt = &t
		}
	}
	return &p, nil
}

// timeLayout keeps a fixed width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
