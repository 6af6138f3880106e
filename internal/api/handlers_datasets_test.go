// handlers_datasets_test.go - Tests for dataset handlers
package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covid-insights/backend/internal/models"
	"github.com/covid-insights/backend/internal/testutil"
)

const sampleCasesCSV = `continent,location,date,population,total_cases,new_cases,total_deaths,new_deaths
Europe,Albania,2021-01-01,1000,10,10,1,1
`

const sampleVaccinationsCSV = `location,date,new_vaccinations
Albania,2021-01-01,100
`

func TestDatasetHandler_HandleUploadDataset(t *testing.T) {
	tests := []struct {
		name       string
		request    uploadDatasetRequest
		wantStatus int
		errCode    string
	}{
		{
			name: "valid cases upload",
			request: uploadDatasetRequest{
				Name: "cases.csv",
				Data: base64.StdEncoding.EncodeToString([]byte(sampleCasesCSV)),
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "empty name",
			request: uploadDatasetRequest{
				Data: base64.StdEncoding.EncodeToString([]byte(sampleCasesCSV)),
			},
			wantStatus: http.StatusBadRequest,
			errCode:    "VALIDATION_ERROR",
		},
		{
			name:       "empty data",
			request:    uploadDatasetRequest{Name: "cases.csv"},
			wantStatus: http.StatusBadRequest,
			errCode:    "VALIDATION_ERROR",
		},
		{
			name: "invalid base64",
			request: uploadDatasetRequest{
				Name: "cases.csv",
				Data: "not-valid-base64!!!",
			},
			wantStatus: http.StatusBadRequest,
			errCode:    "BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage()
			handler := NewDatasetHandler(store)

			e := echo.New()
			body, _ := json.Marshal(tt.request)
			req := httptest.NewRequest(http.MethodPost, "/api/datasets/upload", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := handler.HandleUploadDataset(c)

			if tt.errCode != "" {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantStatus, apiErr.Status)
				assert.Equal(t, tt.errCode, apiErr.Code)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var info models.DatasetInfo
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
			assert.Equal(t, models.DatasetKindCases, info.Kind, "schema sniffed on upload")
			assert.NotEmpty(t, info.ID)
		})
	}
}

func TestDatasetHandler_HandleUploadBinary(t *testing.T) {
	store := testutil.NewMockStorage()
	handler := NewDatasetHandler(store)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "vaccinations.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(sampleVaccinationsCSV))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/datasets/upload/binary", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handler.HandleUploadBinary(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var info models.DatasetInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, models.DatasetKindVaccinations, info.Kind)
	assert.Equal(t, "vaccinations.csv", info.Name)
}

func TestDatasetHandler_HandleGetRecentDatasets(t *testing.T) {
	store := testutil.NewMockStorage()
	store.AddFile("c1", "cases.csv", []byte(sampleCasesCSV))
	store.AddFile("v1", "vaccinations.csv", []byte(sampleVaccinationsCSV))
	store.AddFile("x1", "junk.csv", []byte("a,b\n1,2\n"))
	handler := NewDatasetHandler(store)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/datasets/recent", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handler.HandleGetRecentDatasets(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var list []models.DatasetInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2, "unrecognized schemas are filtered out")
}

func TestDatasetHandler_GetAndDelete(t *testing.T) {
	store := testutil.NewMockStorage()
	store.AddFile("c1", "cases.csv", []byte(sampleCasesCSV))
	handler := NewDatasetHandler(store)
	e := echo.New()

	get := func(id string) (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues(id)
		return rec, handler.HandleGetDataset(c)
	}

	rec, err := get("c1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err = get("missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec = httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("c1")
	require.NoError(t, handler.HandleDeleteDataset(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err = get("c1")
	assert.Error(t, err)
}
