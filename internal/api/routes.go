// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/covid-insights/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store      storage.Store
	SessionMgr SessionManager
	Version    string
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Dataset  DatasetHandler
	Analysis AnalysisHandler
	Query    QueryHandler
	View     ViewHandler
	Export   ExportHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(deps.Version),
		Dataset:  NewDatasetHandler(deps.Store),
		Analysis: NewAnalysisHandler(deps.Store, deps.SessionMgr),
		Query:    NewQueryHandler(deps.SessionMgr),
		View:     NewViewHandler(deps.SessionMgr),
		Export:   NewExportHandler(deps.SessionMgr),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/health", handlers.Health.HandleHealth)

	// Dataset upload routes
	datasetGroup := e.Group("/api/datasets")
	datasetGroup.POST("/upload", handlers.Dataset.HandleUploadDataset)
	datasetGroup.POST("/upload/binary", handlers.Dataset.HandleUploadBinary)
	datasetGroup.GET("/recent", handlers.Dataset.HandleGetRecentDatasets)
	datasetGroup.GET("/:id", handlers.Dataset.HandleGetDataset)
	datasetGroup.DELETE("/:id", handlers.Dataset.HandleDeleteDataset)

	// Analysis session routes
	analysisGroup := e.Group("/api/analysis")
	analysisGroup.POST("", handlers.Analysis.HandleStartAnalysis)
	analysisGroup.GET("/:sessionId/status", handlers.Analysis.HandleAnalysisStatus)
	analysisGroup.GET("/:sessionId/progress", handlers.Analysis.HandleAnalysisProgressStream)
	analysisGroup.POST("/:sessionId/keepalive", handlers.Analysis.HandleSessionKeepAlive)
	analysisGroup.DELETE("/:sessionId", handlers.Analysis.HandleDeleteAnalysis)

	// Query routes against a ready session
	analysisGroup.GET("/:sessionId/coverage", handlers.Query.HandleCoverage)
	analysisGroup.GET("/:sessionId/coverage/msgpack", handlers.Query.HandleCoverageMsgpack)
	analysisGroup.GET("/:sessionId/coverage/summary", handlers.Query.HandleCoverageSummary)
	analysisGroup.GET("/:sessionId/infection/highest", handlers.Query.HandleHighestInfection)
	analysisGroup.GET("/:sessionId/deaths/by-location", handlers.Query.HandleDeathsByLocation)
	analysisGroup.GET("/:sessionId/deaths/by-continent", handlers.Query.HandleDeathsByContinent)
	analysisGroup.GET("/:sessionId/global/daily", handlers.Query.HandleGlobalDaily)
	analysisGroup.GET("/:sessionId/locations", handlers.Query.HandleLocations)

	// Named view routes
	analysisGroup.POST("/:sessionId/views", handlers.View.HandleCreateView)
	analysisGroup.GET("/:sessionId/views", handlers.View.HandleListViews)
	analysisGroup.GET("/:sessionId/views/:name", handlers.View.HandleQueryView)

	// Workbook export
	analysisGroup.GET("/:sessionId/export", handlers.Export.HandleExportWorkbook)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
}
