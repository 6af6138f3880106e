// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/covid-insights/backend/internal/models"
	"github.com/covid-insights/backend/internal/store"
)

// DatasetHandler handles dataset upload operations
type DatasetHandler interface {
	HandleUploadDataset(c echo.Context) error
	HandleUploadBinary(c echo.Context) error
	HandleGetRecentDatasets(c echo.Context) error
	HandleGetDataset(c echo.Context) error
	HandleDeleteDataset(c echo.Context) error
}

// AnalysisHandler handles analysis session lifecycle operations
type AnalysisHandler interface {
	HandleStartAnalysis(c echo.Context) error
	HandleAnalysisStatus(c echo.Context) error
	HandleAnalysisProgressStream(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleDeleteAnalysis(c echo.Context) error
}

// QueryHandler serves analytical queries against a ready session
type QueryHandler interface {
	HandleCoverage(c echo.Context) error
	HandleCoverageMsgpack(c echo.Context) error
	HandleCoverageSummary(c echo.Context) error
	HandleHighestInfection(c echo.Context) error
	HandleDeathsByLocation(c echo.Context) error
	HandleDeathsByContinent(c echo.Context) error
	HandleGlobalDaily(c echo.Context) error
	HandleLocations(c echo.Context) error
}

// ViewHandler serves named, re-runnable analysis views
type ViewHandler interface {
	HandleCreateView(c echo.Context) error
	HandleListViews(c echo.Context) error
	HandleQueryView(c echo.Context) error
}

// ExportHandler serves workbook exports of a session's analyses
type ExportHandler interface {
	HandleExportWorkbook(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	StartSession(caseFileID, casePath, vaccinationFileID, vaccinationPath string) (*models.AnalysisSession, error)
	Get(sessionID string) (*models.AnalysisSession, bool)
	GetStore(sessionID string) (*store.CovidStore, bool)
	Touch(sessionID string) bool
	Delete(sessionID string) bool
}
