// Package wa fetches athlete results from the World Athletics GraphQL API.
//
// The API is keyed by a numeric competitor identifier. A free-text search
// resolves a name to that identifier; result queries are per calendar year
// and report back the list of years the competitor was active in, which cuts
// the number of year queries down considerably.
package wa

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	searchQuery = `
	query SearchCompetitors($query: String) {
	  searchCompetitors(query: $query) {
	    aaAthleteId
	    familyName
	    givenName
	    birthDate
	    gender
	    country
	  }
	}`

	resultsQuery = `
	query GetSingleCompetitorResultsDate($id: Int, $resultsByYearOrderBy: String, $resultsByYear: Int) {
	  getSingleCompetitorResultsDate(id: $id, resultsByYear: $resultsByYear, resultsByYearOrderBy: $resultsByYearOrderBy) {
	    activeYears
	    resultsByDate {
	      date
	      competition
	      venue
	      indoor
	      discipline
	      country
	      category
	      race
	      place
	      mark
	      wind
	      notLegal
	      resultScore
	      remark
	    }
	  }
	}`
)

// SeqPrefix namespaces World Athletics identifiers in the athletes table.
const SeqPrefix = "WA_"

// Identity is a competitor identity as returned by the search endpoint.
type Identity struct {
	ID         int
	GivenName  string
	FamilyName string
	BirthDate  string
	Gender     string
	Country    string
}

// Seq returns the namespaced athlete identifier for this competitor.
func (id Identity) Seq() string {
	return fmt.Sprintf("%s%d", SeqPrefix, id.ID)
}

// FullName returns the display name for this competitor.
func (id Identity) FullName() string {
	return strings.TrimSpace(id.GivenName + " " + id.FamilyName)
}

// BirthYear extracts the year from the raw birth date, or nil when unknown.
// Birth dates come back as "25 FEB 1986"; the year is the last token.
func (id Identity) BirthYear() *int {
	fields := strings.Fields(id.BirthDate)
	if len(fields) == 0 {
		return nil
	}
	year, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil || year < 1900 {
		return nil
	}
	return &year
}

// Row is one raw result row as returned by the results endpoint.
type Row struct {
	Date        string // e.g. "14 JUL 2023"
	Competition string
	Venue       string
	Indoor      bool
	Discipline  string
	Country     string
	Category    string
	Race        string
	Place       string
	Mark        string
	Wind        string
	NotLegal    bool
	Score       float64
	Remark      string
	Year        int
}

// Options configures a World Athletics client. Zero values fall back to
// conservative defaults.
type Options struct {
	Endpoint       string
	APIKey         string
	Timeout        time.Duration
	Concurrency    int     // max in-flight year queries; this is a shared API
	RequestsPerSec float64 // request pacing across all calls
	YearMin        int
	YearMax        int // 0 = current year
	Logger         *slog.Logger
}

// Client is a World Athletics GraphQL API client
type Client struct {
	httpClient  *http.Client
	endpoint    string
	apiKey      string
	limiter     *rate.Limiter
	concurrency int
	yearMin     int
	yearMax     int
	logger      *slog.Logger
}

// NewClient creates a new World Athletics API client
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 5
	}
	if opts.YearMin <= 0 {
		opts.YearMin = 1960
	}
	if opts.YearMax <= 0 {
		opts.YearMax = time.Now().Year()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		httpClient:  &http.Client{Timeout: opts.Timeout},
		endpoint:    opts.Endpoint,
		apiKey:      opts.APIKey,
		limiter:     rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Concurrency),
		concurrency: opts.Concurrency,
		yearMin:     opts.YearMin,
		yearMax:     opts.YearMax,
		logger:      opts.Logger,
	}
}

type gqlRequest struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
}

type searchResponse struct {
	Data struct {
		SearchCompetitors []struct {
			AaAthleteID json.Number `json:"aaAthleteId"`
			FamilyName  string      `json:"familyName"`
			GivenName   string      `json:"givenName"`
			BirthDate   string      `json:"birthDate"`
			Gender      string      `json:"gender"`
			Country     string      `json:"country"`
		} `json:"searchCompetitors"`
	} `json:"data"`
}

type resultsResponse struct {
	Data struct {
		GetSingleCompetitorResultsDate *struct {
			ActiveYears   []int `json:"activeYears"`
			ResultsByDate []struct {
				Date        string  `json:"date"`
				Competition string  `json:"competition"`
				Venue       string  `json:"venue"`
				Indoor      bool    `json:"indoor"`
				Discipline  string  `json:"discipline"`
				Country     string  `json:"country"`
				Category    string  `json:"category"`
				Race        string  `json:"race"`
				Place       string  `json:"place"`
				Mark        string  `json:"mark"`
				Wind        string  `json:"wind"`
				NotLegal    bool    `json:"notLegal"`
				ResultScore float64 `json:"resultScore"`
				Remark      string  `json:"remark"`
			} `json:"resultsByDate"`
		} `json:"getSingleCompetitorResultsDate"`
	} `json:"data"`
}

// Search resolves a free-text name to competitor identities, at most limit
// of them, in the order the API returned them.
func (c *Client) Search(ctx context.Context, name string, limit int) ([]Identity, error) {
	var resp searchResponse
	err := c.do(ctx, gqlRequest{
		OperationName: "SearchCompetitors",
		Variables:     map[string]any{"query": name},
		Query:         searchQuery,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("competitor search failed: %w", err)
	}

	var out []Identity
	for _, raw := range resp.Data.SearchCompetitors {
		if limit > 0 && len(out) >= limit {
			break
		}
		id, err := raw.AaAthleteID.Int64()
		if err != nil {
			continue
		}
		out = append(out, Identity{
			ID:         int(id),
			GivenName:  raw.GivenName,
			FamilyName: raw.FamilyName,
			BirthDate:  raw.BirthDate,
			Gender:     raw.Gender,
			Country:    raw.Country,
		})
	}
	return out, nil
}

// SearchCompetitor resolves a name to exactly one competitor by taking the
// top search match. Ambiguous names are not disambiguated: first match wins.
// Returns nil when the name matches nobody.
func (c *Client) SearchCompetitor(ctx context.Context, name string) (*Identity, error) {
	matches, err := c.Search(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

// FetchYear retrieves the raw result rows for one calendar year, along with
// the server-reported list of years the competitor was active in.
func (c *Client) FetchYear(ctx context.Context, id, year int) ([]Row, []int, error) {
	var resp resultsResponse
	err := c.do(ctx, gqlRequest{
		OperationName: "GetSingleCompetitorResultsDate",
		Variables: map[string]any{
			"id":                   id,
			"resultsByYear":        year,
			"resultsByYearOrderBy": "date",
		},
		Query: resultsQuery,
	}, &resp)
	if err != nil {
		return nil, nil, fmt.Errorf("results query for %d failed: %w", year, err)
	}

	data := resp.Data.GetSingleCompetitorResultsDate
	if data == nil {
		return nil, nil, nil
	}

	rows := make([]Row, 0, len(data.ResultsByDate))
	for _, r := range data.ResultsByDate {
		rows = append(rows, Row{
			Date:        r.Date,
			Competition: r.Competition,
			Venue:       r.Venue,
			Indoor:      r.Indoor,
			Discipline:  r.Discipline,
			Country:     r.Country,
			Category:    r.Category,
			Race:        r.Race,
			Place:       r.Place,
			Mark:        r.Mark,
			Wind:        r.Wind,
			NotLegal:    r.NotLegal,
			Score:       r.ResultScore,
			Remark:      r.Remark,
			Year:        year,
		})
	}
	return rows, data.ActiveYears, nil
}

// ResolveYears determines which years to fetch for a competitor. It queries
// an anchor year and uses the server-reported active years when present;
// fetching every plausible year instead is 5-10x more requests. When the
// server does not report active years, the full bounded range is scanned.
func (c *Client) ResolveYears(ctx context.Context, id int) ([]int, error) {
	_, active, err := c.FetchYear(ctx, id, c.yearMin)
	if err != nil {
		return nil, err
	}

	var years []int
	for _, year := range active {
		if year >= c.yearMin && year <= c.yearMax {
			years = append(years, year)
		}
	}
	if len(years) > 0 {
		sort.Ints(years)
		return years, nil
	}

	for year := c.yearMin; year <= c.yearMax; year++ {
		years = append(years, year)
	}
	return years, nil
}

// FetchAll fetches every active year for a competitor with a bounded worker
// count and concatenates the rows. Individual year failures are logged and
// degrade to zero rows; a total resolution failure yields an empty result
// set, not an error.
func (c *Client) FetchAll(ctx context.Context, id int) ([]Row, error) {
	years, err := c.ResolveYears(ctx, id)
	if err != nil {
		c.logger.Warn("could not resolve active years", "athlete_id", id, "error", err)
		return nil, nil
	}

	perYear := make([][]Row, len(years))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, year := range years {
		i, year := i, year
		g.Go(func() error {
			rows, _, err := c.FetchYear(gctx, id, year)
			if err != nil {
				c.logger.Warn("year fetch failed",
					"athlete_id", id, "year", year, "error", err)
				return nil
			}
			perYear[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Row
	for _, rows := range perYear {
		all = append(all, rows...)
	}
	return all, nil
}

func (c *Client) do(ctx context.Context, payload gqlRequest, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("x-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("wa_request",
		"operation", payload.OperationName, "status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
