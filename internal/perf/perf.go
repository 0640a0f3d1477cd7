// Package perf converts free-form performance strings into elapsed seconds.
//
// Upstream sources mix several historical notations for the same duration:
// apostrophe-delimited track times ("14'09''95"), colon-delimited road times
// ("13:13.66"), sub-minute sprint times ("9''58") and bare numbers. Parse
// accepts all of them and degrades to "no value" for anything else.
package perf

import (
	"regexp"
	"strconv"
	"strings"
)

// invalidMarkers are substrings that mark a result as having no usable time:
// disqualifications, non-starts, non-finishes, retirements and the like.
// The list matches what the upstream sources actually emit.
var invalidMarkers = []string{
	"DQ", "DSQ", "DNS", "DNF", "AB", "NP", "RET", "NC", "NCL", "NQ", "EL", "X",
}

var (
	parenRe = regexp.MustCompile(`\(([^)]+)\)`)

	// 9''58 or 9"58: sub-minute sprint time, no minutes field.
	subMinuteRe = regexp.MustCompile(`^(\d+)(?:''|")(\d+)$`)

	// [1h]02'23[''45]: apostrophe-delimited track time. Trailing lone
	// apostrophes (whole seconds) are stripped before matching.
	trackRe = regexp.MustCompile(`^(?:(\d+)h)?(\d+)'(\d+)(?:''(\d+))?$`)

	// [1:]02:23[.45]: colon-delimited road/clock time.
	clockRe = regexp.MustCompile(`^(?:(\d+):)?(\d+):(\d+(?:\.\d+)?)$`)
)

// Parse converts a raw performance string into elapsed seconds.
//
// It returns ok=false for strings carrying an invalid-result marker and for
// unrecognized notations. It never fails hard: a record with an unparseable
// performance is still a valid record, it just has no numeric projection.
//
// When the string carries a parenthetical (typically a wind-assisted mark
// with the official time in parentheses) the parenthetical content is parsed
// instead of the outer text.
func Parse(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	for _, marker := range invalidMarkers {
		if strings.Contains(s, marker) {
			return 0, false
		}
	}

	if m := parenRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	if m := subMinuteRe.FindStringSubmatch(s); m != nil {
		return float64(atoi(m[1])) + float64(atoi(m[2]))/100, true
	}

	if m := trackRe.FindStringSubmatch(strings.TrimRight(s, `'"`)); m != nil {
		secs := float64(atoi(m[1]))*3600 + float64(atoi(m[2]))*60 + float64(atoi(m[3]))
		if m[4] != "" {
			// Centiseconds are taken literally as entered: a single
			// leftover digit is not rescaled. This matches upstream
			// behavior rather than "correcting" it.
			secs += float64(atoi(m[4])) / 100
		}
		return secs, true
	}

	if m := clockRe.FindStringSubmatch(s); m != nil {
		secs, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			return 0, false
		}
		return float64(atoi(m[1]))*3600 + float64(atoi(m[2]))*60 + secs, true
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}

	return 0, false
}

// atoi parses a digits-only submatch. Empty submatches count as zero.
func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}
