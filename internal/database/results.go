package database

import (
	"fmt"
	"strings"
	"time"

	"athle-results-sync/internal/perf"
)

// dateLayout is the ISO calendar date form results are stored under. It
// sorts lexicographically, so MAX(date) and date comparisons work in SQL.
const dateLayout = "2006-01-02"

// Result represents one canonical competition performance
type Result struct {
	Seq    string
	Club   string
	Date   time.Time
	Event  string // epreuve
	Round  string // tour
	Place  string // pl
	Perf   string // raw performance string, preserved for display
	Wind   string // vt
	Level  string // niv
	Points string // pts
	Venue  string // ville
	Year   int    // annee, derived from Date
}

// ResultView is a Result with the numeric-seconds projection of the raw
// performance computed on demand. The projection is never persisted; Seconds
// is nil when the performance string has no numeric value.
type ResultView struct {
	Result
	Seconds *float64
}

// UpsertResults bulk-inserts result rows, doing nothing on natural-key
// conflict, and returns the number of rows attempted. The batch runs in a
// single transaction so a transient failure never leaves a partial batch;
// the caller simply retries on the next staleness cycle.
func (db *DB) UpsertResults(rows []Result) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO results (seq, club, date, epreuve, tour, pl, perf, vt, niv, pts, ville, annee)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq, date, epreuve, tour, perf) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.Exec(
			r.Seq, r.Club, r.Date.Format(dateLayout), r.Event, r.Round,
			r.Place, r.Perf, r.Wind, r.Level, r.Points, r.Venue, r.Year,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit results: %w", err)
	}

	return len(rows), nil
}

// LatestResultDate returns the most recent known result date for an athlete,
// or nil when no results are stored. It drives incremental filtering.
func (db *DB) LatestResultDate(seq string) (*time.Time, error) {
	var raw *string
	err := db.conn.QueryRow(`SELECT MAX(date) FROM results WHERE seq = ?`, seq).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest result date: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	t, err := time.Parse(dateLayout, *raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored date %q: %w", *raw, err)
	}
	return &t, nil
}

// ResultsForAthlete returns an athlete's results, newest first, optionally
// filtered to a set of canonical event labels. This is the dashboard-facing
// read contract: the seconds projection is computed here, not stored.
func (db *DB) ResultsForAthlete(seq string, events []string) ([]ResultView, error) {
	query := `
		SELECT seq, club, date, epreuve, tour, pl, perf, vt, niv, pts, ville, annee
		FROM results WHERE seq = ?
	`
	args := []any{seq}

	if len(events) > 0 {
		query += " AND epreuve IN (?" + strings.Repeat(", ?", len(events)-1) + ")"
		for _, e := range events {
			args = append(args, e)
		}
	}
	query += " ORDER BY date DESC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []ResultView
	for rows.Next() {
		var v ResultView
		var date string
		err := rows.Scan(
			&v.Seq, &v.Club, &date, &v.Event, &v.Round, &v.Place,
			&v.Perf, &v.Wind, &v.Level, &v.Points, &v.Venue, &v.Year,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		v.Date, err = time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored date %q: %w", date, err)
		}
		if secs, ok := perf.Parse(v.Perf); ok {
			v.Seconds = &secs
		}
		out = append(out, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return out, nil
}

// CountAllResults returns the total number of stored result rows
func (db *DB) CountAllResults() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return n, nil
}

// CountResults returns the number of stored result rows for an athlete
func (db *DB) CountResults(seq string) (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM results WHERE seq = ?`, seq).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return n, nil
}
