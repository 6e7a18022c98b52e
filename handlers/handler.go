package handlers

import (
	"go.uber.org/zap"

	"github.com/padraicbc/keibadata/ingest"
	"github.com/padraicbc/keibadata/jobs"
	"github.com/padraicbc/keibadata/store"
)

// Handler holds shared dependencies used by all route handlers.
type Handler struct {
	store  *store.Store
	orch   *ingest.Orchestrator
	runner *jobs.Runner
	JWTKey []byte
	log    *zap.Logger
}

// New creates a Handler wired to the data store, the ingestion
// orchestrator and the background job runner.
func New(st *store.Store, orch *ingest.Orchestrator, runner *jobs.Runner, jwtKey []byte, log *zap.Logger) *Handler {
	return &Handler{
		store:  st,
		orch:   orch,
		runner: runner,
		JWTKey: jwtKey,
		log:    log,
	}
}
