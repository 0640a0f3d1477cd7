// Package ffa fetches athlete results from the French federation results
// site. Results are plain HTML pages: one bilans page listing the seasons an
// athlete competed in, and one result-table page per season.
package ffa

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

const userAgent = "Mozilla/5.0 (athle-results-sync/1.0)"

// Row is one raw result row as scraped from the federation result table.
type Row struct {
	Club   string
	Date   string // partial date, usually dd/mm; the year comes separately
	Event  string
	Round  string
	Place  string
	Perf   string
	Wind   string
	Level  string
	Points string
	Venue  string
	Year   int
}

// Client fetches and parses federation athlete pages
type Client struct {
	httpClient *http.Client
	baseURL    string
	yearMin    int
	yearMax    int
	logger     *slog.Logger
}

// NewClient creates a federation client. yearMax of 0 means the current
// year. The year bounds cap the season scan when the year selector cannot
// be parsed into a sane range.
func NewClient(baseURL string, timeout time.Duration, yearMin, yearMax int, logger *slog.Logger) *Client {
	if yearMax <= 0 {
		yearMax = time.Now().Year()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		yearMin:    yearMin,
		yearMax:    yearMax,
		logger:     logger,
	}
}

// ResolveYears discovers which result seasons exist for an athlete by
// parsing the year selector on the bilans page. Years outside the
// configured bounds are discarded.
func (c *Client) ResolveYears(ctx context.Context, seq string) ([]int, error) {
	url := fmt.Sprintf("%s/asp.net/athletes.aspx?base=bilans&seq=%s", c.baseURL, seq)
	doc, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bilans page: %w", err)
	}

	seen := make(map[int]bool)
	var years []int
	for _, year := range parseYears(doc) {
		if year < c.yearMin || year > c.yearMax || seen[year] {
			continue
		}
		seen[year] = true
		years = append(years, year)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

// FetchYear retrieves the raw result rows for one season. An empty page
// yields zero rows and no error.
func (c *Client) FetchYear(ctx context.Context, seq string, year int) ([]Row, error) {
	url := fmt.Sprintf("%s/asp.net/athletes.aspx?base=resultats&seq=%s&saison=%d", c.baseURL, seq, year)
	doc, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch results for %d: %w", year, err)
	}

	var rows []Row
	for _, cells := range parseResultsTable(doc) {
		rows = append(rows, Row{
			Club:   cells[0],
			Date:   cells[1],
			Event:  cells[2],
			Round:  cells[3],
			Place:  cells[4],
			Perf:   cells[5],
			Wind:   cells[6],
			Level:  cells[7],
			Points: cells[8],
			Venue:  cells[9],
			Year:   year,
		})
	}
	return rows, nil
}

// FetchAll fetches every available season for an athlete concurrently and
// concatenates the rows. A failure on one season is logged and degrades to
// zero rows for that season; a failure to resolve any seasons at all yields
// an empty result set, not an error, so the caller treats the athlete as
// checked with nothing found.
func (c *Client) FetchAll(ctx context.Context, seq string) ([]Row, error) {
	years, err := c.ResolveYears(ctx, seq)
	if err != nil {
		c.logger.Warn("could not resolve federation seasons", "seq", seq, "error", err)
		return nil, nil
	}
	if len(years) == 0 {
		return nil, nil
	}

	// One goroutine per season. The season count bounds the fan-out.
	perYear := make([][]Row, len(years))
	g, gctx := errgroup.WithContext(ctx)
	for i, year := range years {
		i, year := i, year
		g.Go(func() error {
			rows, err := c.FetchYear(gctx, seq, year)
			if err != nil {
				c.logger.Warn("federation season fetch failed",
					"seq", seq, "year", year, "error", err)
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

func (c *Client) get(ctx context.Context, url string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("ffa_request",
		"url", url, "status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}
