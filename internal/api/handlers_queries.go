// handlers_queries.go - Analytical query handlers for ready sessions
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/covid-insights/backend/internal/models"
	"github.com/covid-insights/backend/internal/store"
)

// QueryHandlerImpl implements the QueryHandler interface
type QueryHandlerImpl struct {
	sessionMgr SessionManager
}

// NewQueryHandler creates a new query handler instance
func NewQueryHandler(sessionMgr SessionManager) QueryHandler {
	return &QueryHandlerImpl{sessionMgr: sessionMgr}
}

// sessionStore resolves the :sessionId param to a ready session's store.
func sessionStore(c echo.Context, mgr SessionManager) (*store.CovidStore, error) {
	id := c.Param("sessionId")
	if id == "" {
		return nil, NewValidationError("sessionId")
	}

	s, ok := mgr.GetStore(id)
	if !ok {
		// Distinguish "still loading" from "no such session".
		if sess, exists := mgr.Get(id); exists {
			if sess.Status == models.SessionStatusError {
				return nil, NewConflictError("session failed to load: " + sess.Error)
			}
			return nil, NewConflictError("session is not ready yet")
		}
		return nil, NewNotFoundError("session", id)
	}

	mgr.Touch(id)
	return s, nil
}

type coverageResponse struct {
	Records  []models.JoinedRecord `json:"records"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"pageSize"`
	Total    int                   `json:"total"`
}

func coverageParams(c echo.Context) store.CoverageParams {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if pageSize < 1 || pageSize > 10000 {
		pageSize = 500
	}
	return store.CoverageParams{
		Location: c.QueryParam("location"),
		Page:     page,
		PageSize: pageSize,
	}
}

// HandleCoverage returns the paginated joined coverage rows
func (h *QueryHandlerImpl) HandleCoverage(c echo.Context) error {
	s, err := sessionStore(c, h.sessionMgr)
	if err != nil {
		return err
	}

	params := coverageParams(c)
	records, total, err := s.Coverage(c.Request().Context(), params)
	if err != nil {
		return NewInternalError("coverage query failed", err)
	}

	return c.JSON(http.StatusOK, coverageResponse{
		Records:  records,
		Page:     params.Page,
		PageSize: params.PageSize,
		Total:    total,
	})
}

// HandleCoverageMsgpack returns coverage rows in MessagePack format
func (h *QueryHandlerImpl) HandleCoverageMsgpack(c echo.Context) error {
	s, err := sessionStore(c, h.sessionMgr)
	if err != nil {
		return err
	}

	params := coverageParams(c)
	records, total, err := s.Coverage(c.Request().Context(), params)
	if err != nil {
		return NewInternalError("coverage query failed", err)
	}

	data, err := msgpack.Marshal(coverageResponse{
		Records:  records,
		Page:     params.Page,
		PageSize: params.PageSize,
		Total:    total,
	})
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleCoverageSummary returns the per-location coverage totals
func (h *QueryHandlerImpl) HandleCoverageSummary(c echo.Context) error {
	s, err := sessionStore(c, h.sessionMgr)
	if err != nil {
		return err
	}

	summaries, err := s.CoverageSummary(c.Request().Context())
	if err != nil {
		return NewInternalError("coverage summary query failed", err)
	}
	return c.JSON(http.StatusOK, summaries)
}

// HandleHighestInfection returns per-location infection peaks
func (h *QueryHandlerImpl) HandleHighestInfection(c echo.Context) error {
	s, err := sessionStore(c, h.sessionMgr)
	if err != nil {
		return err
	}

	peaks, err := s.HighestInfection(c.Request().Context())
	if err != nil {
		return NewInternalError("infection query failed", err)
	}
	return c.JSON(http.StatusOK, peaks)
}

// HandleDeathsByLocation returns peak death counts per location
func (h *QueryHandlerImpl) HandleDeathsByLocation(c echo.Context) error {
	s, err := sessionStore(c, h.sessionMgr)
	if err != nil {
		return err
	}

	counts, err := s.DeathsByLocation(c.Request().Context())
	if err != nil {
		return NewInternalError("death count query failed", err)
	}
	return c.JSON(http.StatusOK, counts)
}

// HandleDeathsByContinent returns peak death counts summed per continent
func (h *QueryHandlerImpl) HandleDeathsByContinent(c echo.Context) error {
	s, err := sessionStore(c, h.sessionMgr)
	if err != nil {
		return err
	}

	counts, err := s.DeathsByContinent(c.Request().Context())
	if err != nil {
		return NewInternalError("death count query failed", err)
	}
	return c.JSON(http.StatusOK, counts)
}

// HandleGlobalDaily returns worldwide daily totals
func (h *QueryHandlerImpl) HandleGlobalDaily(c echo.Context) error {
	s, err := sessionStore(c, h.sessionMgr)
	if err != nil {
		return err
	}

	days, err := s.GlobalDaily(c.Request().Context())
	if err != nil {
		return NewInternalError("global daily query failed", err)
	}
	return c.JSON(http.StatusOK, days)
}

// HandleLocations returns the distinct country-level locations in the session
func (h *QueryHandlerImpl) HandleLocations(c echo.Context) error {
	s, err := sessionStore(c, h.sessionMgr)
	if err != nil {
		return err
	}

	locations, err := s.Locations(c.Request().Context())
	if err != nil {
		return NewInternalError("locations query failed", err)
	}
	return c.JSON(http.StatusOK, locations)
}
