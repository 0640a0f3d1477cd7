// Package normalize converts raw adapter rows into canonical result rows.
//
// Each source reports its own column names, date formats and event labels;
// everything is funneled into database.Result here, at the adapter boundary,
// so nothing downstream ever sees an open-ended row shape. Rows without a
// parseable date are dropped: they cannot be deduplicated or ordered.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"athle-results-sync/internal/database"
	"athle-results-sync/internal/discipline"
	"athle-results-sync/internal/ffa"
	"athle-results-sync/internal/wa"
)

// months maps abbreviated month tokens from both sources' locales onto
// month numbers. Tokens are matched lowercase with any trailing dot removed.
var months = map[string]time.Month{
	// English abbreviations (World Athletics, e.g. "14 JUL 2023")
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
	// French abbreviations (federation, e.g. "14 juil. 2023")
	"janv": time.January, "fév": time.February, "févr": time.February,
	"mars": time.March, "avr": time.April, "mai": time.May,
	"juin": time.June, "juil": time.July, "août": time.August,
	"sept": time.September, "déc": time.December,
}

// FromFFA converts raw federation rows for one athlete into canonical
// result rows. Rows with unparseable dates are dropped; exact in-batch
// duplicates are collapsed.
func FromFFA(rows []ffa.Row, seq string) []database.Result {
	var out []database.Result
	for _, r := range rows {
		date, ok := parseDate(r.Date, r.Year)
		if !ok {
			continue
		}
		out = append(out, database.Result{
			Seq:    seq,
			Club:   strings.TrimSpace(r.Club),
			Date:   date,
			Event:  discipline.Normalize(r.Event, false),
			Round:  strings.TrimSpace(r.Round),
			Place:  strings.TrimSpace(r.Place),
			Perf:   strings.TrimSpace(r.Perf),
			Wind:   strings.TrimSpace(r.Wind),
			Level:  strings.TrimSpace(r.Level),
			Points: strings.TrimSpace(r.Points),
			Venue:  strings.TrimSpace(r.Venue),
			Year:   date.Year(),
		})
	}
	return dedupe(out)
}

// FromWA converts raw World Athletics rows for one athlete into canonical
// result rows. The indoor flag disambiguates short-track event variants.
func FromWA(rows []wa.Row, seq string) []database.Result {
	var out []database.Result
	for _, r := range rows {
		date, ok := parseDate(r.Date, r.Year)
		if !ok {
			continue
		}
		out = append(out, database.Result{
			Seq:    seq,
			Date:   date,
			Event:  discipline.Normalize(r.Discipline, r.Indoor),
			Round:  strings.TrimSpace(r.Race),
			Place:  strings.TrimSpace(r.Place),
			Perf:   strings.TrimSpace(r.Mark),
			Wind:   strings.TrimSpace(r.Wind),
			Level:  strings.TrimSpace(r.Category),
			Points: formatScore(r.Score),
			Venue:  strings.TrimSpace(r.Venue),
			Year:   date.Year(),
		})
	}
	return dedupe(out)
}

// FilterNew discards rows dated on or before the latest known result date.
// Upstream sources always return the full history; this keeps writes
// proportional to new activity only. A nil latest passes everything through.
func FilterNew(rows []database.Result, latest *time.Time) []database.Result {
	if latest == nil {
		return rows
	}
	var out []database.Result
	for _, r := range rows {
		if r.Date.After(*latest) {
			out = append(out, r)
		}
	}
	return out
}

// dedupe collapses exact in-batch duplicates on the natural key, keeping
// first occurrences in order. Storage enforces the same key; dropping
// duplicates here just avoids redundant upsert attempts.
func dedupe(rows []database.Result) []database.Result {
	type key struct {
		date, event, round, perf string
	}
	seen := make(map[key]bool, len(rows))
	out := rows[:0]
	for _, r := range rows {
		k := key{r.Date.Format("2006-01-02"), r.Event, r.Round, r.Perf}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// parseDate reconstructs a calendar date from the partial and locale-bound
// forms the sources emit. fallbackYear supplies the year when the raw value
// carries only day and month.
func parseDate(raw string, fallbackYear int) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	// ISO form, possibly with a time suffix
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t, true
		}
	}

	// Slash-delimited: dd/mm/yyyy or dd/mm plus the season year
	if strings.Contains(s, "/") {
		parts := strings.Split(s, "/")
		switch len(parts) {
		case 3:
			return makeDate(parts[0], parts[1], parts[2])
		case 2:
			if fallbackYear <= 0 {
				return time.Time{}, false
			}
			return makeDate(parts[0], parts[1], strconv.Itoa(fallbackYear))
		}
		return time.Time{}, false
	}

	// Space-delimited with a month name: "14 JUL 2023" or "14 juil."
	fields := strings.Fields(s)
	if len(fields) >= 2 {
		month, ok := monthOf(fields[1])
		if !ok {
			return time.Time{}, false
		}
		day, err := strconv.Atoi(fields[0])
		if err != nil {
			return time.Time{}, false
		}
		year := fallbackYear
		if len(fields) >= 3 {
			if y, err := strconv.Atoi(fields[2]); err == nil {
				year = y
			}
		}
		if year <= 0 {
			return time.Time{}, false
		}
		return validDate(year, int(month), day)
	}

	return time.Time{}, false
}

func makeDate(dayStr, monthStr, yearStr string) (time.Time, bool) {
	day, err1 := strconv.Atoi(strings.TrimSpace(dayStr))
	month, err2 := strconv.Atoi(strings.TrimSpace(monthStr))
	year, err3 := strconv.Atoi(strings.TrimSpace(yearStr))
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	return validDate(year, month, day)
}

// validDate builds a date and rejects field values that would roll over
// (e.g. day 32 becoming the 1st of the next month).
func validDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

func monthOf(token string) (time.Month, bool) {
	key := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(token), "."))
	if m, ok := months[key]; ok {
		return m, true
	}
	// Full month names match on their abbreviated prefix
	runes := []rune(key)
	for _, n := range []int{4, 3} {
		if len(runes) > n {
			if m, ok := months[string(runes[:n])]; ok {
				return m, true
			}
		}
	}
	return 0, false
}

func formatScore(score float64) string {
	if score <= 0 {
		return ""
	}
	return strconv.FormatFloat(score, 'f', -1, 64)
}
