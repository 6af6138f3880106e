package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covid-insights/backend/internal/models"
	"github.com/covid-insights/backend/internal/store"
)

const testCasesCSV = `continent,location,date,population,total_cases,new_cases,total_deaths,new_deaths
Europe,Albania,2021-01-01,1000,10,10,1,1
Europe,Albania,2021-01-02,1000,30,20,2,1
`

const testVaccinationsCSV = `location,date,new_vaccinations
Albania,2021-01-01,100
Albania,2021-01-02,
`

func writeTestFiles(t *testing.T) (casePath, vaccinationPath string) {
	t.Helper()
	dir := t.TempDir()
	casePath = filepath.Join(dir, "cases.csv")
	vaccinationPath = filepath.Join(dir, "vaccinations.csv")
	require.NoError(t, os.WriteFile(casePath, []byte(testCasesCSV), 0644))
	require.NoError(t, os.WriteFile(vaccinationPath, []byte(testVaccinationsCSV), 0644))
	return casePath, vaccinationPath
}

func waitForSession(t *testing.T, m *Manager, id string) *models.AnalysisSession {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		s, ok := m.Get(id)
		require.True(t, ok, "session disappeared while loading")
		switch s.Status {
		case models.SessionStatusReady:
			return s
		case models.SessionStatusError:
			t.Fatalf("session failed: %s", s.Error)
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("session did not become ready in time")
	return nil
}

func TestSessionManager_LoadAndQuery(t *testing.T) {
	casePath, vaccinationPath := writeTestFiles(t)

	m := NewManagerWithTempDir(t.TempDir())
	m.SetPredefinedViews([]store.ViewDefinition{{Name: "percent_population_vaccinated"}})

	sess, err := m.StartSession("case-file", casePath, "vaccination-file", vaccinationPath)
	require.NoError(t, err)

	done := waitForSession(t, m, sess.ID)
	assert.Equal(t, 2, done.CaseRows)
	assert.Equal(t, 2, done.VaccinationRows)
	assert.Equal(t, 1, done.LocationCount)
	assert.Equal(t, 100.0, done.Progress)

	covidStore, ok := m.GetStore(sess.ID)
	require.True(t, ok)

	records, total, err := covidStore.Coverage(context.Background(), store.CoverageParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, records, 2)
	assert.Equal(t, int64(100), records[1].RollingVaccinated, "null day accumulates as 0")

	// Predefined view was created during load.
	rows, err := covidStore.QueryView(context.Background(), "percent_population_vaccinated")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSessionManager_MalformedFileSetsError(t *testing.T) {
	dir := t.TempDir()
	casePath := filepath.Join(dir, "cases.csv")
	bad := "continent,location,date,population,total_cases,new_cases,total_deaths,new_deaths\nEurope,Albania,not-a-date,1000,10,10,1,1\n"
	require.NoError(t, os.WriteFile(casePath, []byte(bad), 0644))
	vaccinationPath := filepath.Join(dir, "vaccinations.csv")
	require.NoError(t, os.WriteFile(vaccinationPath, []byte(testVaccinationsCSV), 0644))

	m := NewManagerWithTempDir(t.TempDir())
	sess, err := m.StartSession("case-file", casePath, "vaccination-file", vaccinationPath)
	require.NoError(t, err)

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		s, ok := m.Get(sess.ID)
		require.True(t, ok)
		if s.Status == models.SessionStatusError {
			assert.Contains(t, s.Error, "line 2")
			return
		}
		require.NotEqual(t, models.SessionStatusReady, s.Status, "malformed file must not produce a ready session")
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("session never reached error status")
}

func TestSessionManager_GetStoreBeforeReady(t *testing.T) {
	m := NewManagerWithTempDir(t.TempDir())

	_, ok := m.GetStore("missing")
	assert.False(t, ok)
}

func TestSessionManager_DeleteAndTouch(t *testing.T) {
	casePath, vaccinationPath := writeTestFiles(t)

	m := NewManagerWithTempDir(t.TempDir())
	sess, err := m.StartSession("case-file", casePath, "vaccination-file", vaccinationPath)
	require.NoError(t, err)
	waitForSession(t, m, sess.ID)

	assert.True(t, m.Touch(sess.ID))
	assert.Equal(t, 1, m.Count())

	assert.True(t, m.Delete(sess.ID))
	assert.False(t, m.Delete(sess.ID))
	_, ok := m.Get(sess.ID)
	assert.False(t, ok)
}

func TestSessionManager_CleanupKeepsRecentlyUsed(t *testing.T) {
	casePath, vaccinationPath := writeTestFiles(t)

	m := NewManagerWithTempDir(t.TempDir())
	sess, err := m.StartSession("case-file", casePath, "vaccination-file", vaccinationPath)
	require.NoError(t, err)
	waitForSession(t, m, sess.ID)

	// Recently touched sessions survive cleanup regardless of age.
	m.Touch(sess.ID)
	m.CleanupOldSessions(time.Nanosecond)
	_, ok := m.Get(sess.ID)
	assert.True(t, ok)
}
