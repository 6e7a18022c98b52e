package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/padraicbc/keibadata/config"
	"github.com/padraicbc/keibadata/models"
)

// Setup opens a PostgreSQL connection using the provided config.
func Setup(cfg *config.Config) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.PostgresDSN())))
	db := bun.NewDB(sqldb, pgdialect.New())

	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if err := db.PingContext(context.Background()); err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	return db
}

// CreateTables creates all tables in dependency order, then the constraints
// and indexes the pipeline and its consumers rely on.
func CreateTables(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.User)(nil),
		(*models.Race)(nil),
		(*models.RaceResult)(nil),
	}

	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("creating table for %T: %w", model, err)
		}
	}

	constraints := []string{
		// One entrant per post position; also the backstop against two
		// concurrent runs inserting the same race.
		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'race_results_no_dupes') THEN ALTER TABLE race_results ADD CONSTRAINT race_results_no_dupes UNIQUE (race_id, post_position); END IF; END $$`,
		`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'race_results_race_fk') THEN ALTER TABLE race_results ADD CONSTRAINT race_results_race_fk FOREIGN KEY (race_id) REFERENCES races (race_id) ON DELETE CASCADE; END IF; END $$`,
	}
	for _, stmt := range constraints {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			log.Printf("constraint: %v", err)
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_races_date_venue ON races (date, venue)`,
		`CREATE INDEX IF NOT EXISTS idx_races_grade ON races (grade)`,
		`CREATE INDEX IF NOT EXISTS idx_results_race ON race_results (race_id)`,
		`CREATE INDEX IF NOT EXISTS idx_results_horse ON race_results (horse_id, horse_name)`,
		`CREATE INDEX IF NOT EXISTS idx_results_jockey ON race_results (jockey_id)`,
		`CREATE INDEX IF NOT EXISTS idx_results_trainer ON race_results (trainer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_results_finish ON race_results (finish_position)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			log.Printf("index: %v", err)
		}
	}

	return nil
}
