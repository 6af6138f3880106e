// handlers_views.go - Named view handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/covid-insights/backend/internal/store"
)

// ViewHandlerImpl implements the ViewHandler interface
type ViewHandlerImpl struct {
	sessionMgr SessionManager
}

// NewViewHandler creates a new view handler instance
func NewViewHandler(sessionMgr SessionManager) ViewHandler {
	return &ViewHandlerImpl{sessionMgr: sessionMgr}
}

// HandleCreateView defines a named view over the session's coverage query
func (h *ViewHandlerImpl) HandleCreateView(c echo.Context) error {
	s, err := sessionStore(c, h.sessionMgr)
	if err != nil {
		return err
	}

	var def store.ViewDefinition
	if err := c.Bind(&def); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if def.Name == "" {
		return NewValidationError("name")
	}

	if err := s.CreateView(def); err != nil {
		return NewBadRequestError("failed to create view", err)
	}
	return c.JSON(http.StatusCreated, def)
}

// HandleListViews lists the views defined in the session
func (h *ViewHandlerImpl) HandleListViews(c echo.Context) error {
	s, err := sessionStore(c, h.sessionMgr)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.ListViews())
}

// HandleQueryView re-runs a named view and returns its rows
func (h *ViewHandlerImpl) HandleQueryView(c echo.Context) error {
	s, err := sessionStore(c, h.sessionMgr)
	if err != nil {
		return err
	}

	name := c.Param("name")
	if name == "" {
		return NewValidationError("name")
	}

	rows, err := s.QueryView(c.Request().Context(), name)
	if err != nil {
		return NewNotFoundError("view", name)
	}
	return c.JSON(http.StatusOK, rows)
}
