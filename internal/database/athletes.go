package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Athlete represents an athlete identity tracked by the system
type Athlete struct {
	Seq          string
	Name         string
	Club         string
	Sex          string
	BirthDateRaw *string
	BirthYear    *int
	LastUpdate   *time.Time
}

// UpsertAthlete inserts or updates an athlete identity keyed on seq.
//
// On conflict the mutable display fields (name, club, sex) are overwritten.
// Birth info and last_update are only overwritten with non-null values: a
// known birth year is never regressed to unknown, and an identity-only
// upsert does not clear the last synchronization stamp.
func (db *DB) UpsertAthlete(a *Athlete) error {
	var lastUpdate *int64
	if a.LastUpdate != nil {
		v := a.LastUpdate.Unix()
		lastUpdate = &v
	}

	_, err := db.conn.Exec(`
		INSERT INTO athletes (seq, name, club, sex, birth_date_raw, birth_year, last_update)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO UPDATE SET
			name = excluded.name,
			club = excluded.club,
			sex = excluded.sex,
			birth_date_raw = COALESCE(excluded.birth_date_raw, birth_date_raw),
			birth_year = COALESCE(excluded.birth_year, birth_year),
			last_update = COALESCE(excluded.last_update, last_update)
	`, a.Seq, a.Name, a.Club, a.Sex, a.BirthDateRaw, a.BirthYear, lastUpdate)

	if err != nil {
		return fmt.Errorf("failed to upsert athlete: %w", err)
	}
	return nil
}

// GetAthlete retrieves an athlete by seq, or nil if unknown
func (db *DB) GetAthlete(seq string) (*Athlete, error) {
	row := db.conn.QueryRow(`
		SELECT seq, name, club, sex, birth_date_raw, birth_year, last_update
		FROM athletes WHERE seq = ?
	`, seq)

	a, err := scanAthlete(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get athlete: %w", err)
	}
	return a, nil
}

// SelectStale returns athletes whose last synchronization attempt is older
// than olderThan, never-synchronized athletes first, then oldest first,
// limited to limit rows.
func (db *DB) SelectStale(olderThan time.Duration, limit int) ([]*Athlete, error) {
	cutoff := time.Now().Add(-olderThan).Unix()

	rows, err := db.conn.Query(`
		SELECT seq, name, club, sex, birth_date_raw, birth_year, last_update
		FROM athletes
		WHERE last_update IS NULL OR last_update < ?
		ORDER BY last_update IS NOT NULL, last_update ASC
		LIMIT ?
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select stale athletes: %w", err)
	}
	defer rows.Close()

	var athletes []*Athlete
	for rows.Next() {
		a, err := scanAthlete(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan athlete: %w", err)
		}
		athletes = append(athletes, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating athletes: %w", err)
	}

	return athletes, nil
}

// ListAthletes returns every tracked athlete, ordered by name
func (db *DB) ListAthletes() ([]*Athlete, error) {
	rows, err := db.conn.Query(`
		SELECT seq, name, club, sex, birth_date_raw, birth_year, last_update
		FROM athletes ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list athletes: %w", err)
	}
	defer rows.Close()

	var athletes []*Athlete
	for rows.Next() {
		a, err := scanAthlete(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan athlete: %w", err)
		}
		athletes = append(athletes, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating athletes: %w", err)
	}

	return athletes, nil
}

// CountStale returns the number of athletes past the staleness threshold
func (db *DB) CountStale(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).Unix()

	var n int
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM athletes
		WHERE last_update IS NULL OR last_update < ?
	`, cutoff).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count stale athletes: %w", err)
	}
	return n, nil
}

// CountAthletes returns the total number of athlete rows
func (db *DB) CountAthletes() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM athletes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count athletes: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAthlete(r rowScanner) (*Athlete, error) {
	var a Athlete
	var lastUpdate *int64
	err := r.Scan(&a.Seq, &a.Name, &a.Club, &a.Sex, &a.BirthDateRaw, &a.BirthYear, &lastUpdate)
	if err != nil {
		return nil, err
	}
	if lastUpdate != nil {
		t := time.Unix(*lastUpdate, 0).UTC()
		a.LastUpdate = &t
	}
	return &a, nil
}
