package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// Largest window accepted at all; anything bigger is a mistyped year.
	maxRangeDays = 365
	// Largest window run synchronously inside the request.
	maxSyncRangeDays = 7

	dateLayout = "2006-01-02"
)

type scrapeRequest struct {
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Venue        string `json:"venue,omitempty"`
	SkipExisting *bool  `json:"skip_existing,omitempty"`
	AsyncMode    bool   `json:"async_mode,omitempty"`
}

func (r *scrapeRequest) parse() (start, end time.Time, err error) {
	start, err = time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return
	}
	end, err = time.Parse(dateLayout, r.EndDate)
	return
}

// StartScraping ingests a date range, either inline or as a background job.
func (h *Handler) StartScraping(c echo.Context) error {
	var req scrapeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	start, end, err := req.parse()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "dates must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return echo.NewHTTPError(http.StatusBadRequest, "end_date is before start_date")
	}

	days := int(end.Sub(start).Hours()/24) + 1
	if days > maxRangeDays {
		return echo.NewHTTPError(http.StatusBadRequest, "date range exceeds 365 days")
	}
	if !req.AsyncMode && days > maxSyncRangeDays {
		return echo.NewHTTPError(http.StatusBadRequest,
			"date range exceeds 7 days; use async_mode for large backfills")
	}

	skipExisting := true
	if req.SkipExisting != nil {
		skipExisting = *req.SkipExisting
	}

	if req.AsyncMode {
		id := h.runner.Submit(context.Background(), func(ctx context.Context) (interface{}, error) {
			return h.orch.Run(ctx, start, end, req.Venue, skipExisting)
		})
		h.log.Info("scraping job submitted",
			zap.String("job", id),
			zap.String("start", req.StartDate),
			zap.String("end", req.EndDate))
		return c.JSON(http.StatusAccepted, map[string]string{"job_id": id})
	}

	stats, err := h.orch.Run(c.Request().Context(), start, end, req.Venue, skipExisting)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

// ScrapingJob reports the state of one background job.
func (h *Handler) ScrapingJob(c echo.Context) error {
	job, ok := h.runner.Status(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown job id")
	}
	return c.JSON(http.StatusOK, job)
}

// CancelScrapingJob stops a pending or running job.
func (h *Handler) CancelScrapingJob(c echo.Context) error {
	id := c.Param("id")
	if !h.runner.Cancel(id) {
		return echo.NewHTTPError(http.StatusConflict, "job unknown or already finished")
	}
	h.log.Info("scraping job cancelled", zap.String("job", id))
	return c.JSON(http.StatusOK, map[string]string{"job_id": id, "state": "cancelling"})
}

// ScrapingStatus summarises what has been ingested so far.
func (h *Handler) ScrapingStatus(c echo.Context) error {
	sum, err := h.store.Summarize(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sum)
}

// Cleanup removes races persisted without any results.
func (h *Handler) Cleanup(c echo.Context) error {
	n, err := h.orch.CleanupIncomplete(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"deleted": n})
}
