package wa

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		Endpoint:       srv.URL,
		APIKey:         "test-key",
		Timeout:        5 * time.Second,
		Concurrency:    4,
		RequestsPerSec: 1000,
		YearMin:        2020,
		YearMax:        2023,
	})
}

func decodeRequest(t *testing.T, r *http.Request) gqlRequest {
	t.Helper()
	var req gqlRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func TestSearchCompetitorTakesFirstMatch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		req := decodeRequest(t, r)
		assert.Equal(t, "SearchCompetitors", req.OperationName)
		assert.Equal(t, "jimmy gressier", req.Variables["query"])

		fmt.Fprint(w, `{"data":{"searchCompetitors":[
			{"aaAthleteId":"14659502","familyName":"GRESSIER","givenName":"Jimmy","birthDate":"04 APR 1997","gender":"Men","country":"FRA"},
			{"aaAthleteId":"99999999","familyName":"OTHER","givenName":"Jim","birthDate":"","gender":"Men","country":"USA"}
		]}}`)
	}))

	identity, err := client.SearchCompetitor(context.Background(), "jimmy gressier")
	require.NoError(t, err)
	require.NotNil(t, identity)

	assert.Equal(t, 14659502, identity.ID)
	assert.Equal(t, "WA_14659502", identity.Seq())
	assert.Equal(t, "Jimmy GRESSIER", identity.FullName())
	require.NotNil(t, identity.BirthYear())
	assert.Equal(t, 1997, *identity.BirthYear())
}

func TestSearchCompetitorNoMatch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"searchCompetitors":[]}}`)
	}))

	identity, err := client.SearchCompetitor(context.Background(), "nobody at all")
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestFetchYear(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		assert.Equal(t, "GetSingleCompetitorResultsDate", req.OperationName)
		assert.EqualValues(t, 2023, req.Variables["resultsByYear"])

		fmt.Fprint(w, `{"data":{"getSingleCompetitorResultsDate":{
			"activeYears":[2021,2022,2023],
			"resultsByDate":[
				{"date":"14 JUL 2023","competition":"Meeting de Paris","venue":"Paris (FRA)","indoor":false,"discipline":"5000 Metres","category":"A","race":"F1","place":"2.","mark":"13:13.66","wind":"","notLegal":false,"resultScore":1180}
			]}}}`)
	}))

	rows, active, err := client.FetchYear(context.Background(), 14659502, 2023)
	require.NoError(t, err)

	assert.Equal(t, []int{2021, 2022, 2023}, active)
	require.Len(t, rows, 1)
	assert.Equal(t, "14 JUL 2023", rows[0].Date)
	assert.Equal(t, "5000 Metres", rows[0].Discipline)
	assert.Equal(t, "13:13.66", rows[0].Mark)
	assert.Equal(t, float64(1180), rows[0].Score)
	assert.Equal(t, 2023, rows[0].Year)
}

func TestFetchAllUsesReportedActiveYears(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		req := decodeRequest(t, r)
		year := int(req.Variables["resultsByYear"].(float64))

		// Active years include one outside the configured bounds
		fmt.Fprintf(w, `{"data":{"getSingleCompetitorResultsDate":{
			"activeYears":[1999,2022,2023],
			"resultsByDate":[
				{"date":"01 MAY %d","discipline":"800 Metres","mark":"1:54.00"}
			]}}}`, year)
	}))

	rows, err := client.FetchAll(context.Background(), 14659502)
	require.NoError(t, err)

	// One anchor query plus one per in-bounds active year
	assert.EqualValues(t, 3, requests.Load())
	assert.Len(t, rows, 2)
}

func TestFetchAllScansRangeWithoutActiveYears(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		fmt.Fprint(w, `{"data":{"getSingleCompetitorResultsDate":{
			"activeYears":[],"resultsByDate":[]}}}`)
	}))

	rows, err := client.FetchAll(context.Background(), 14659502)
	require.NoError(t, err)

	// Anchor query plus the full 2020-2023 scan
	assert.EqualValues(t, 5, requests.Load())
	assert.Empty(t, rows)
}

func TestFetchAllToleratesYearFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		year := int(req.Variables["resultsByYear"].(float64))
		if year == 2022 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, `{"data":{"getSingleCompetitorResultsDate":{
			"activeYears":[2022,2023],
			"resultsByDate":[
				{"date":"01 MAY %d","discipline":"800 Metres","mark":"1:54.00"}
			]}}}`, year)
	}))

	rows, err := client.FetchAll(context.Background(), 14659502)
	require.NoError(t, err)

	// The 2022 failure degrades to zero rows for that year
	assert.Len(t, rows, 1)
	assert.Equal(t, 2023, rows[0].Year)
}

func TestFetchAllSwallowsResolutionFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rows, err := client.FetchAll(context.Background(), 14659502)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestBirthYearUnknown(t *testing.T) {
	assert.Nil(t, Identity{BirthDate: ""}.BirthYear())
	assert.Nil(t, Identity{BirthDate: "garbage"}.BirthYear())
}
