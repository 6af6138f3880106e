// handlers_datasets.go - Dataset upload operation handlers
package api

import (
	"encoding/base64"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/covid-insights/backend/internal/models"
	"github.com/covid-insights/backend/internal/storage"
)

// DatasetHandlerImpl implements the DatasetHandler interface
type DatasetHandlerImpl struct {
	store storage.Store
}

// NewDatasetHandler creates a new dataset handler instance
func NewDatasetHandler(store storage.Store) DatasetHandler {
	return &DatasetHandlerImpl{store: store}
}

type uploadDatasetRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // base64-encoded CSV content
}

func (r *uploadDatasetRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

// HandleUploadDataset accepts a dataset as base64 JSON and saves it to storage
func (h *DatasetHandlerImpl) HandleUploadDataset(c echo.Context) error {
	var req uploadDatasetRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	info, err := h.store.SaveBytes(req.Name, decoded)
	if err != nil {
		return NewInternalError("failed to save dataset", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleUploadBinary accepts a raw dataset upload (multipart/form-data)
func (h *DatasetHandlerImpl) HandleUploadBinary(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save dataset", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleGetRecentDatasets returns recently uploaded datasets with a recognized
// schema first
func (h *DatasetHandlerImpl) HandleGetRecentDatasets(c echo.Context) error {
	datasets, err := h.store.List(50)
	if err != nil {
		return NewInternalError("failed to list datasets", err)
	}

	recognized := make([]*models.DatasetInfo, 0, len(datasets))
	for _, d := range datasets {
		if d.Kind != models.DatasetKindUnknown {
			recognized = append(recognized, d)
		}
	}

	if len(recognized) > 20 {
		recognized = recognized[:20]
	}
	return c.JSON(http.StatusOK, recognized)
}

// HandleGetDataset returns metadata for a specific dataset
func (h *DatasetHandlerImpl) HandleGetDataset(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("dataset", id)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleDeleteDataset removes a dataset from storage
func (h *DatasetHandlerImpl) HandleDeleteDataset(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(id); err != nil {
		return NewNotFoundError("dataset", id)
	}
	return c.NoContent(http.StatusNoContent)
}
