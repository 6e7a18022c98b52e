package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"

	"github.com/padraicbc/keibadata/convert"
	"github.com/padraicbc/keibadata/ingest"
	"github.com/padraicbc/keibadata/jobs"
	"github.com/padraicbc/keibadata/models"
	"github.com/padraicbc/keibadata/scrape"
	"github.com/padraicbc/keibadata/store"
)

type emptyEnumerator struct{}

func (emptyEnumerator) EnumerateForDate(context.Context, time.Time, string) ([]string, error) {
	return nil, nil
}

type noRaces struct{}

func (noRaces) Scrape(_ context.Context, id string) (*scrape.RaceRaw, error) {
	return nil, fmt.Errorf("scrape %s: not wired in this test", id)
}

func testHandler(t *testing.T) *Handler {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	for _, model := range []interface{}{(*models.Race)(nil), (*models.RaceResult)(nil), (*models.User)(nil)} {
		if _, err := db.NewCreateTable().Model(model).Exec(ctx); err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	t.Cleanup(func() { db.Close() })

	log := zap.NewNop()
	st := store.New(db)
	orch := ingest.New(emptyEnumerator{}, noRaces{}, convert.New(log), st, log)
	return New(st, orch, jobs.NewRunner(log), []byte("test-key"), log)
}

func postJSON(t *testing.T, handler echo.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestStartScrapingGuards(t *testing.T) {
	h := testHandler(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"bad date", `{"start_date":"26-05-2024","end_date":"2024-05-26"}`, http.StatusBadRequest},
		{"inverted range", `{"start_date":"2024-05-26","end_date":"2024-05-25"}`, http.StatusBadRequest},
		{"over a year", `{"start_date":"2023-01-01","end_date":"2024-06-01","async_mode":true}`, http.StatusBadRequest},
		{"sync over a week", `{"start_date":"2024-05-01","end_date":"2024-05-20"}`, http.StatusBadRequest},
		{"sync small range", `{"start_date":"2024-05-26","end_date":"2024-05-26"}`, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h.StartScraping, "/kd/scraping/start", tc.body)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.want, rec.Body)
			}
		})
	}
}

func TestStartScrapingAsyncReturnsJobID(t *testing.T) {
	h := testHandler(t)

	rec := postJSON(t, h.StartScraping, "/kd/scraping/start",
		`{"start_date":"2024-05-01","end_date":"2024-05-31","async_mode":true}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := resp["job_id"]
	if id == "" {
		t.Fatal("no job_id in response")
	}

	// The empty enumerator makes the run finish quickly; poll until it does.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := h.runner.Status(id)
		if !ok {
			t.Fatal("submitted job not tracked")
		}
		if job.State.Terminal() {
			if job.State != jobs.StateSucceeded {
				t.Errorf("state = %s, want succeeded", job.State)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never finished")
}

func TestScrapingJobUnknownID(t *testing.T) {
	h := testHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/kd/scraping/jobs/job-0-0", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("job-0-0")
	if err := h.ScrapingJob(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRacesRequiresRange(t *testing.T) {
	h := testHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/kd/races", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.Races(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
