// handlers_export.go - Workbook export handler
package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/covid-insights/backend/internal/export"
	"github.com/covid-insights/backend/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandlerImpl implements the ExportHandler interface
type ExportHandlerImpl struct {
	sessionMgr SessionManager
}

// NewExportHandler creates a new export handler instance
func NewExportHandler(sessionMgr SessionManager) ExportHandler {
	return &ExportHandlerImpl{sessionMgr: sessionMgr}
}

// HandleExportWorkbook runs every analysis for the session and returns them as
// one xlsx workbook
func (h *ExportHandlerImpl) HandleExportWorkbook(c echo.Context) error {
	s, err := sessionStore(c, h.sessionMgr)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	var report export.Report

	// Export always covers the full coverage set, not one page of it.
	report.Coverage, _, err = s.Coverage(ctx, store.CoverageParams{Page: 1, PageSize: 1 << 30})
	if err != nil {
		return NewInternalError("coverage query failed", err)
	}
	report.Summaries, err = s.CoverageSummary(ctx)
	if err != nil {
		return NewInternalError("coverage summary query failed", err)
	}
	report.Peaks, err = s.HighestInfection(ctx)
	if err != nil {
		return NewInternalError("infection query failed", err)
	}
	report.DeathsByLocation, err = s.DeathsByLocation(ctx)
	if err != nil {
		return NewInternalError("death count query failed", err)
	}
	report.DeathsByContinent, err = s.DeathsByContinent(ctx)
	if err != nil {
		return NewInternalError("death count query failed", err)
	}
	report.Global, err = s.GlobalDaily(ctx)
	if err != nil {
		return NewInternalError("global daily query failed", err)
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, report); err != nil {
		return NewInternalError("failed to build workbook", err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="covid-analysis-%s.xlsx"`, c.Param("sessionId")))
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}
