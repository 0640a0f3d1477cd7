package database

// Schema contains all SQL statements for creating tables and indexes
const Schema = `
-- Athletes table: one row per athlete identity known to the system.
-- seq is namespaced by source: World Athletics identifiers carry a WA_
-- prefix, federation identifiers are bare numeric strings.
CREATE TABLE IF NOT EXISTS athletes (
    seq TEXT PRIMARY KEY,

    -- Display fields, overwritten on every upsert
    name TEXT NOT NULL,
    club TEXT NOT NULL DEFAULT '',
    sex TEXT NOT NULL DEFAULT '',

    -- Birth info, only ever upgraded from unknown to known
    birth_date_raw TEXT,
    birth_year INTEGER,

    -- Unix timestamp of the last synchronization attempt; NULL means never
    last_update INTEGER
);

-- Results table: one row per competition performance. Rows are immutable
-- historical facts: inserted once, never updated, never deleted.
CREATE TABLE IF NOT EXISTS results (
    seq TEXT NOT NULL,
    club TEXT NOT NULL DEFAULT '',
    date TEXT NOT NULL,      -- ISO calendar date (YYYY-MM-DD)
    epreuve TEXT NOT NULL DEFAULT '',
    tour TEXT NOT NULL DEFAULT '',
    pl TEXT NOT NULL DEFAULT '',
    perf TEXT NOT NULL DEFAULT '',
    vt TEXT NOT NULL DEFAULT '',
    niv TEXT NOT NULL DEFAULT '',
    pts TEXT NOT NULL DEFAULT '',
    ville TEXT NOT NULL DEFAULT '',
    annee INTEGER NOT NULL
);

-- Natural key: a re-fetch of already-known history must not create
-- duplicate rows. Upstream sources always return the full history.
CREATE UNIQUE INDEX IF NOT EXISTS idx_results_natural_key
    ON results(seq, date, epreuve, tour, perf);

CREATE INDEX IF NOT EXISTS idx_results_seq ON results(seq);
CREATE INDEX IF NOT EXISTS idx_results_seq_date ON results(seq, date DESC);
CREATE INDEX IF NOT EXISTS idx_athletes_last_update ON athletes(last_update);
`
