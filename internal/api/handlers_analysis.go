// handlers_analysis.go - Analysis session operation handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/covid-insights/backend/internal/models"
	"github.com/covid-insights/backend/internal/storage"
)

// AnalysisHandlerImpl implements the AnalysisHandler interface
type AnalysisHandlerImpl struct {
	store      storage.Store
	sessionMgr SessionManager
}

// NewAnalysisHandler creates a new analysis handler instance
func NewAnalysisHandler(store storage.Store, sessionMgr SessionManager) AnalysisHandler {
	return &AnalysisHandlerImpl{
		store:      store,
		sessionMgr: sessionMgr,
	}
}

type startAnalysisRequest struct {
	CaseFileID        string `json:"caseFileId"`
	VaccinationFileID string `json:"vaccinationFileId"`
}

// HandleStartAnalysis starts loading a case/vaccination dataset pair
func (h *AnalysisHandlerImpl) HandleStartAnalysis(c echo.Context) error {
	var req startAnalysisRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.CaseFileID == "" {
		return NewValidationError("caseFileId")
	}
	if req.VaccinationFileID == "" {
		return NewValidationError("vaccinationFileId")
	}

	casePath, err := h.resolveDataset(req.CaseFileID, models.DatasetKindCases)
	if err != nil {
		return err
	}
	vaccinationPath, err := h.resolveDataset(req.VaccinationFileID, models.DatasetKindVaccinations)
	if err != nil {
		return err
	}

	sess, err := h.sessionMgr.StartSession(req.CaseFileID, casePath, req.VaccinationFileID, vaccinationPath)
	if err != nil {
		return NewInternalError("failed to start session", err)
	}

	return c.JSON(http.StatusAccepted, sess)
}

// resolveDataset checks that the dataset exists and holds the expected schema,
// and returns its file path.
func (h *AnalysisHandlerImpl) resolveDataset(id string, want models.DatasetKind) (string, error) {
	info, err := h.store.Get(id)
	if err != nil {
		return "", NewNotFoundError("dataset", id)
	}
	if info.Kind != want {
		return "", NewBadRequestError(
			fmt.Sprintf("dataset %s holds %s data, expected %s", id, info.Kind, want), nil)
	}

	path, err := h.store.GetFilePath(id)
	if err != nil {
		return "", NewInternalError("failed to get dataset path", err)
	}
	return path, nil
}

// HandleAnalysisStatus returns the current status of an analysis session
func (h *AnalysisHandlerImpl) HandleAnalysisStatus(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	sess, ok := h.sessionMgr.Get(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	// Touch session to prevent cleanup while being viewed
	h.sessionMgr.Touch(id)

	return c.JSON(http.StatusOK, sess)
}

// HandleSessionKeepAlive extends session lifetime for active viewing
func (h *AnalysisHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if ok := h.sessionMgr.Touch(id); !ok {
		return NewNotFoundError("session", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleDeleteAnalysis releases a session and its store
func (h *AnalysisHandlerImpl) HandleDeleteAnalysis(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if ok := h.sessionMgr.Delete(id); !ok {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleAnalysisProgressStream streams loading progress via SSE
func (h *AnalysisHandlerImpl) HandleAnalysisProgressStream(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sess, ok := h.sessionMgr.Get(id)
	if !ok {
		h.sendSSEError(c, "session not found")
		return nil
	}

	// Send initial status
	h.sendSSEData(c, sess)
	if sess.Status == models.SessionStatusReady || sess.Status == models.SessionStatusError {
		return nil
	}

	// Stream updates until ready or error
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(5 * time.Minute)
	defer timeout.Stop()

	for {
		select {
		case <-ticker.C:
			sess, ok := h.sessionMgr.Get(id)
			if !ok {
				h.sendSSEError(c, "session not found")
				return nil
			}

			h.sendSSEData(c, sess)

			if sess.Status == models.SessionStatusReady ||
				sess.Status == models.SessionStatusError {
				return nil
			}

		case <-timeout.C:
			h.sendSSEError(c, "stream timeout")
			return nil

		case <-c.Request().Context().Done():
			return nil
		}
	}
}

func (h *AnalysisHandlerImpl) sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func (h *AnalysisHandlerImpl) sendSSEError(c echo.Context, message string) {
	h.sendSSEData(c, map[string]string{"error": message})
}
