package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Race returns one race with its full result set.
func (h *Handler) Race(c echo.Context) error {
	race, err := h.store.RaceByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if race == nil {
		return echo.NewHTTPError(http.StatusNotFound, "race not found")
	}
	return c.JSON(http.StatusOK, race)
}

// Races lists races by date range, optionally narrowed to one venue.
func (h *Handler) Races(c echo.Context) error {
	start := c.QueryParam("start")
	end := c.QueryParam("end")
	venue := c.QueryParam("venue")

	if start == "" || end == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "start and end query params are required")
	}

	if venue != "" && start == end {
		races, err := h.store.RacesByDateVenue(c.Request().Context(), start, venue)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, races)
	}

	races, err := h.store.RacesByDateRange(c.Request().Context(), start, end)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if venue != "" {
		filtered := races[:0]
		for _, r := range races {
			if r.Venue == venue {
				filtered = append(filtered, r)
			}
		}
		races = filtered
	}
	return c.JSON(http.StatusOK, races)
}
