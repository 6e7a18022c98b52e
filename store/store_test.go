package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/padraicbc/keibadata/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()
	for _, model := range []interface{}{(*models.Race)(nil), (*models.RaceResult)(nil)} {
		if _, err := db.NewCreateTable().Model(model).Exec(ctx); err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func sampleRace(id, date string) (*models.Race, []*models.RaceResult) {
	one, two := 1, 2
	race := &models.Race{ID: id, Date: date, Venue: "東京", RaceNumber: 11, Distance: 2400, Surface: "芝"}
	results := []*models.RaceResult{
		{RaceID: id, PostPosition: 1, HorseName: "A", FinishPosition: &one},
		{RaceID: id, PostPosition: 2, HorseName: "B", FinishPosition: &two},
	}
	return race, results
}

func TestSaveRaceRoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	race, results := sampleRace("202405021211", "2024-05-26")
	if err := st.SaveRace(ctx, race, results); err != nil {
		t.Fatalf("SaveRace: %v", err)
	}

	exists, err := st.RaceExists(ctx, race.ID)
	if err != nil {
		t.Fatalf("RaceExists: %v", err)
	}
	if !exists {
		t.Error("RaceExists = false after save")
	}

	got, err := st.RaceByID(ctx, race.ID)
	if err != nil {
		t.Fatalf("RaceByID: %v", err)
	}
	if got == nil || len(got.Results) != 2 {
		t.Fatalf("got = %+v", got)
	}
	// Results come back ordered by post position.
	if got.Results[0].PostPosition != 1 || got.Results[1].PostPosition != 2 {
		t.Errorf("result order = %d, %d", got.Results[0].PostPosition, got.Results[1].PostPosition)
	}
}

func TestSaveRaceRejectsDuplicate(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	race, results := sampleRace("202405021211", "2024-05-26")
	if err := st.SaveRace(ctx, race, results); err != nil {
		t.Fatalf("first save: %v", err)
	}

	again, againResults := sampleRace("202405021211", "2024-05-26")
	if err := st.SaveRace(ctx, again, againResults); err == nil {
		t.Error("duplicate race id accepted")
	}

	// The failed transaction must not leave extra rows behind.
	got, err := st.RaceByID(ctx, race.ID)
	if err != nil {
		t.Fatalf("RaceByID: %v", err)
	}
	if len(got.Results) != 2 {
		t.Errorf("results = %d, want 2", len(got.Results))
	}
}

func TestRaceByIDMissing(t *testing.T) {
	st := testStore(t)

	got, err := st.RaceByID(context.Background(), "209905021211")
	if err != nil {
		t.Fatalf("RaceByID: %v", err)
	}
	if got != nil {
		t.Errorf("got = %+v, want nil", got)
	}
}

func TestRacesByDateRange(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	for _, c := range []struct{ id, date string }{
		{"202405021211", "2024-05-25"},
		{"202405021212", "2024-05-26"},
		{"202406021211", "2024-06-02"},
	} {
		race, results := sampleRace(c.id, c.date)
		if err := st.SaveRace(ctx, race, results); err != nil {
			t.Fatalf("SaveRace %s: %v", c.id, err)
		}
	}

	got, err := st.RacesByDateRange(ctx, "2024-05-25", "2024-05-26")
	if err != nil {
		t.Fatalf("RacesByDateRange: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("races = %d, want 2", len(got))
	}
}

func TestSummarize(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	race, results := sampleRace("202405021211", "2024-05-26")
	if err := st.SaveRace(ctx, race, results); err != nil {
		t.Fatalf("SaveRace: %v", err)
	}

	sum, err := st.Summarize(ctx)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.TotalRaces != 1 || sum.TotalResults != 2 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.VenueCounts["東京"] != 1 {
		t.Errorf("venue counts = %v", sum.VenueCounts)
	}
}
