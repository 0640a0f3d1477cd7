// Package discipline maps source-specific event labels onto the canonical
// event vocabulary used for storage and display grouping.
package discipline

import "strings"

// shortTrackSuffix is the World Athletics naming for indoor variants.
const shortTrackSuffix = " short track"

// table is the case-insensitive lookup from source labels to canonical
// labels. Keys are lowercase. It covers both the federation vocabulary
// (mostly already canonical, modulo casing) and the World Athletics one.
var table = map[string]string{
	"100 metres": "100m",

	"200 metres":             "200m",
	"200 metres short track": "200m Piste Courte",

	"400 metres":             "400m",
	"400 metres short track": "400m Piste Courte",

	"800 metres":             "800m",
	"800 metres short track": "800m Piste Courte",

	"1500 metres":             "1 500m",
	"1500 metres short track": "1 500m Piste Courte",

	"3000 metres steeplechase": "3000m Steeple (91)",

	"3000 metres":             "3 000m",
	"3000 metres short track": "3 000m Piste Courte",

	"5000 metres":             "5 000m",
	"5000 metres short track": "5 000m Piste Courte",
	"5 kilometres road":       "5 Km Route",

	"10,000 metres":      "10 000m",
	"10000 metres":       "10 000m",
	"10 kilometres road": "10 Km Route",

	"half marathon": "1/2 Marathon",
	"marathon":      "Marathon",

	// Federation labels round-trip through the same table so that casing
	// variants normalize too.
	"100m":                "100m",
	"200m":                "200m",
	"200m piste courte":   "200m Piste Courte",
	"400m":                "400m",
	"400m piste courte":   "400m Piste Courte",
	"800m":                "800m",
	"800m piste courte":   "800m Piste Courte",
	"1 500m":              "1 500m",
	"1 500m piste courte": "1 500m Piste Courte",
	"3000m steeple (91)":  "3000m Steeple (91)",
	"3 000m":              "3 000m",
	"3 000m piste courte": "3 000m Piste Courte",
	"5 000m":              "5 000m",
	"5 000m piste courte": "5 000m Piste Courte",
	"5 km route":          "5 Km Route",
	"10 000m":             "10 000m",
	"10 km route":         "10 Km Route",
	"1/2 marathon":        "1/2 Marathon",
}

// Groups maps display-level event groups onto the canonical labels that
// belong to them. The dashboard filters per-athlete result sets by group.
var Groups = map[string][]string{
	"100m":          {"100m"},
	"200m":          {"200m", "200m Piste Courte"},
	"400m":          {"400m", "400m Piste Courte"},
	"800m":          {"800m", "800m Piste Courte"},
	"1500m":         {"1 500m", "1 500m Piste Courte"},
	"3000m":         {"3 000m", "3 000m Piste Courte"},
	"3000m Steeple": {"3000m Steeple (91)"},
	"5000m":         {"5 000m", "5 000m Piste Courte", "5 Km Route"},
	"10000m":        {"10 000m", "10 Km Route"},
	"Semi-marathon": {"1/2 Marathon"},
	"Marathon":      {"Marathon"},
}

// Normalize maps a source event label to its canonical form. The indoor flag
// disambiguates identically-named indoor/outdoor variants for sources that
// report it separately from the label. Unmatched labels pass through
// unchanged: the canonical vocabulary is closed and only drives display
// filters, unknown events still round-trip through storage.
func Normalize(label string, indoor bool) string {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return strings.TrimSpace(label)
	}
	if indoor && !strings.HasSuffix(key, shortTrackSuffix) {
		if canonical, ok := table[key+shortTrackSuffix]; ok {
			return canonical
		}
	}
	if canonical, ok := table[key]; ok {
		return canonical
	}
	return strings.TrimSpace(label)
}
