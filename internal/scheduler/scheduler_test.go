package scheduler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"athle-results-sync/internal/database"
	"athle-results-sync/internal/ffa"
	"athle-results-sync/internal/wa"
)

// ffaFixture serves a bilans page advertising two seasons and a result page
// per season. The 2022 page carries one row with an unusable date.
func ffaFixture() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("base") {
		case "bilans":
			fmt.Fprint(w, `<html><body><select class="selectMain">
				<option value="athletes.aspx?base=bilans&seq=1&saison=2023">2023</option>
				<option value="athletes.aspx?base=bilans&seq=1&saison=2022">2022</option>
			</select></body></html>`)
		case "resultats":
			if r.URL.Query().Get("saison") == "2023" {
				fmt.Fprint(w, resultTablePage(
					`<td>EA Exemple</td><td>14/07</td><td>800m</td><td>Finale</td><td>1</td><td>1'54''38</td><td></td><td>Nat</td><td>1050</td><td>Paris</td>`,
					`<td>EA Exemple</td><td>prochainement</td><td>800m</td><td>Série</td><td></td><td></td><td></td><td></td><td></td><td>Caen</td>`,
				))
			} else {
				fmt.Fprint(w, resultTablePage(
					`<td>EA Exemple</td><td>02/06</td><td>1 500m</td><td>Série</td><td>3</td><td>3'52''10</td><td></td><td>Rég</td><td></td><td>Lyon</td>`,
				))
			}
		}
	})
}

func resultTablePage(rows ...string) string {
	page := `<html><body><table></table><table></table><table></table><table>
		<tr><td>Club</td><td>Date</td><td>Epreuve</td><td>Tour</td><td>Pl.</td><td>Perf.</td><td>Vt.</td><td>Niv.</td><td>Pts</td><td>Ville</td></tr>`
	for _, r := range rows {
		page += "<tr>" + r + "</tr>"
	}
	return page + `</table></body></html>`
}

func waFixture() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"getSingleCompetitorResultsDate":{
			"activeYears":[2023],
			"resultsByDate":[
				{"date":"20 AUG 2023","discipline":"5000 Metres","race":"F1","place":"4.","mark":"13:13.66","resultScore":1180}
			]}}}`)
	})
}

func setupScheduler(t *testing.T, ffaHandler, waHandler http.Handler) (*Scheduler, *database.DB) {
	t.Helper()

	db, err := database.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Init(); err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}

	ffaSrv := httptest.NewServer(ffaHandler)
	t.Cleanup(ffaSrv.Close)
	waSrv := httptest.NewServer(waHandler)
	t.Cleanup(waSrv.Close)

	ffaClient := ffa.NewClient(ffaSrv.URL, 5*time.Second, 2020, 2023, nil)
	waClient := wa.NewClient(wa.Options{
		Endpoint:       waSrv.URL,
		APIKey:         "test-key",
		Timeout:        5 * time.Second,
		RequestsPerSec: 1000,
		YearMin:        2023,
		YearMax:        2023,
	})

	return New(db, ffaClient, waClient, 10, 7*24*time.Hour, time.Millisecond, nil), db
}

func TestSyncAthleteEndToEnd(t *testing.T) {
	sched, db := setupScheduler(t, ffaFixture(), waFixture())

	athlete := &database.Athlete{Seq: "1", Name: "Jeanne Martin"}
	if err := db.UpsertAthlete(athlete); err != nil {
		t.Fatalf("Failed to upsert athlete: %v", err)
	}

	inserted, err := sched.SyncAthlete(context.Background(), athlete)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// Three raw rows over two seasons, one with an unusable date
	if inserted != 2 {
		t.Errorf("Expected 2 rows upserted, got %d", inserted)
	}
	count, err := db.CountResults("1")
	if err != nil {
		t.Fatalf("Failed to count results: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 stored rows, got %d", count)
	}

	// The athlete must carry a fresh stamp and no longer be stale
	stored, err := db.GetAthlete("1")
	if err != nil {
		t.Fatalf("Failed to get athlete: %v", err)
	}
	if stored.LastUpdate == nil || time.Since(*stored.LastUpdate) > time.Minute {
		t.Errorf("Expected fresh last_update, got %v", stored.LastUpdate)
	}

	stale, err := db.SelectStale(7*24*time.Hour, 10)
	if err != nil {
		t.Fatalf("Failed to select stale: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("Expected no stale athletes after sync, got %d", len(stale))
	}
}

func TestSyncAthleteIsIncremental(t *testing.T) {
	sched, db := setupScheduler(t, ffaFixture(), waFixture())

	athlete := &database.Athlete{Seq: "1", Name: "Jeanne Martin"}
	if _, err := sched.SyncAthlete(context.Background(), athlete); err != nil {
		t.Fatalf("First sync failed: %v", err)
	}

	// A second sync against unchanged upstream data finds nothing new
	inserted, err := sched.SyncAthlete(context.Background(), athlete)
	if err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}
	if inserted != 0 {
		t.Errorf("Expected 0 new rows on re-sync, got %d", inserted)
	}

	count, err := db.CountResults("1")
	if err != nil {
		t.Fatalf("Failed to count results: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 stored rows, got %d", count)
	}
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	sched, db := setupScheduler(t, ffaFixture(), waFixture())

	// A malformed World Athletics seq cannot be fetched and must fail alone
	for _, a := range []*database.Athlete{
		{Seq: "WA_notanumber", Name: "Broken"},
		{Seq: "1", Name: "Jeanne Martin"},
		{Seq: "WA_14659502", Name: "Jimmy Gressier"},
	} {
		if err := db.UpsertAthlete(a); err != nil {
			t.Fatalf("Failed to upsert athlete: %v", err)
		}
	}

	stats, err := sched.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}

	if stats.Selected != 3 {
		t.Errorf("Expected 3 selected, got %d", stats.Selected)
	}
	if stats.Succeeded != 2 || stats.Failed != 1 {
		t.Errorf("Expected 2 succeeded and 1 failed, got %d/%d", stats.Succeeded, stats.Failed)
	}

	// The healthy athletes got their rows and their stamps
	if n, _ := db.CountResults("1"); n != 2 {
		t.Errorf("Expected 2 federation rows, got %d", n)
	}
	if n, _ := db.CountResults("WA_14659502"); n != 1 {
		t.Errorf("Expected 1 world athletics row, got %d", n)
	}

	// The broken athlete stays stale and is selected again next cycle
	stale, err := db.SelectStale(7*24*time.Hour, 10)
	if err != nil {
		t.Fatalf("Failed to select stale: %v", err)
	}
	if len(stale) != 1 || stale[0].Seq != "WA_notanumber" {
		t.Errorf("Expected only the broken athlete to stay stale, got %+v", stale)
	}
}

func TestRunConvergesWhenNothingIsStale(t *testing.T) {
	sched, db := setupScheduler(t, ffaFixture(), waFixture())

	now := time.Now()
	if err := db.UpsertAthlete(&database.Athlete{Seq: "1", Name: "Fresh", LastUpdate: &now}); err != nil {
		t.Fatalf("Failed to upsert athlete: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Loop mode must return once a batch comes back empty
	if err := sched.Run(ctx, true); err != nil {
		t.Fatalf("Expected convergence, got %v", err)
	}
}

func TestRunLoopDrainsBacklog(t *testing.T) {
	sched, db := setupScheduler(t, ffaFixture(), waFixture())

	if err := db.UpsertAthlete(&database.Athlete{Seq: "1", Name: "Jeanne Martin"}); err != nil {
		t.Fatalf("Failed to upsert athlete: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sched.Run(ctx, true); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stale, err := db.SelectStale(7*24*time.Hour, 10)
	if err != nil {
		t.Fatalf("Failed to select stale: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("Expected drained backlog, got %d stale athletes", len(stale))
	}
}

func TestIsWorldSeq(t *testing.T) {
	if !IsWorldSeq("WA_14659502") {
		t.Error("Expected WA_14659502 to be a world seq")
	}
	if IsWorldSeq("1234567") {
		t.Error("Expected 1234567 to be a federation seq")
	}
}

func TestSyncByName(t *testing.T) {
	waHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "SearchCompetitors") {
			fmt.Fprint(w, `{"data":{"searchCompetitors":[
				{"aaAthleteId":"14659502","familyName":"GRESSIER","givenName":"Jimmy","birthDate":"04 APR 1997","gender":"Men","country":"FRA"}
			]}}`)
			return
		}
		fmt.Fprint(w, `{"data":{"getSingleCompetitorResultsDate":{
			"activeYears":[2023],
			"resultsByDate":[
				{"date":"20 AUG 2023","discipline":"5000 Metres","race":"F1","place":"4.","mark":"13:13.66","resultScore":1180}
			]}}}`)
	})

	sched, db := setupScheduler(t, ffaFixture(), waHandler)

	athlete, inserted, err := sched.SyncByName(context.Background(), "jimmy gressier")
	if err != nil {
		t.Fatalf("Sync by name failed: %v", err)
	}
	if athlete == nil {
		t.Fatal("Expected a resolved athlete")
	}

	if athlete.Seq != "WA_14659502" {
		t.Errorf("Expected seq WA_14659502, got %s", athlete.Seq)
	}
	if athlete.Name != "Jimmy GRESSIER" {
		t.Errorf("Expected resolved name, got %s", athlete.Name)
	}
	if athlete.Sex != "M" {
		t.Errorf("Expected sex M, got %s", athlete.Sex)
	}
	if athlete.BirthYear == nil || *athlete.BirthYear != 1997 {
		t.Errorf("Expected birth year 1997, got %v", athlete.BirthYear)
	}
	if inserted != 1 {
		t.Errorf("Expected 1 row upserted, got %d", inserted)
	}

	stored, err := db.GetAthlete("WA_14659502")
	if err != nil {
		t.Fatalf("Failed to get athlete: %v", err)
	}
	if stored == nil || stored.LastUpdate == nil {
		t.Fatal("Expected the resolved athlete to be stored with a stamp")
	}
}

func TestSyncByNameNoMatch(t *testing.T) {
	waHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"searchCompetitors":[]}}`)
	})
	sched, _ := setupScheduler(t, ffaFixture(), waHandler)

	athlete, inserted, err := sched.SyncByName(context.Background(), "nobody at all")
	if err != nil {
		t.Fatalf("Expected no error on no match, got %v", err)
	}
	if athlete != nil || inserted != 0 {
		t.Errorf("Expected nil athlete and zero rows, got %+v/%d", athlete, inserted)
	}
}
