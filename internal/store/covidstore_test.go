// covidstore_test.go - End-to-end tests for the DuckDB-backed analysis store
package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covid-insights/backend/internal/models"
)

func createTestStore(t *testing.T) *CovidStore {
	t.Helper()
	store, err := NewCovidStore(t.TempDir(), "test_"+time.Now().Format("20060102_150405"))
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { store.Close() })
	return store
}

func date(d int) time.Time {
	return time.Date(2021, 1, d, 0, 0, 0, 0, time.UTC)
}

func ptr(v int64) *int64 { return &v }

// loadFixture loads a small two-location dataset plus one world aggregate row.
func loadFixture(t *testing.T, store *CovidStore) {
	t.Helper()

	cases := []models.CaseRecord{
		{Continent: "Europe", Location: "Albania", Date: date(1), Population: 1000, TotalCases: 10, NewCases: 10, TotalDeaths: ptr(1), NewDeaths: 1},
		{Continent: "Europe", Location: "Albania", Date: date(2), Population: 1000, TotalCases: 30, NewCases: 20, TotalDeaths: ptr(2), NewDeaths: 1},
		{Continent: "Europe", Location: "Albania", Date: date(3), Population: 1000, TotalCases: 60, NewCases: 30, TotalDeaths: nil, NewDeaths: 0},
		{Continent: "Asia", Location: "Japan", Date: date(1), Population: 2000, TotalCases: 4, NewCases: 4, TotalDeaths: ptr(0), NewDeaths: 0},
		{Continent: "Asia", Location: "Japan", Date: date(2), Population: 2000, TotalCases: 4, NewCases: 0, TotalDeaths: ptr(0), NewDeaths: 0},
		{Continent: "", Location: "World", Date: date(1), Population: 7800000000, TotalCases: 999999, NewCases: 99999, TotalDeaths: ptr(9999), NewDeaths: 999},
	}
	vaccinations := []models.VaccinationRecord{
		{Location: "Albania", Date: date(1), NewVaccinations: ptr(100)},
		{Location: "Albania", Date: date(2), NewVaccinations: nil},
		{Location: "Albania", Date: date(3), NewVaccinations: ptr(50)},
		{Location: "Japan", Date: date(1), NewVaccinations: ptr(40)},
		{Location: "World", Date: date(1), NewVaccinations: ptr(12345)},
		// Japan day 2 missing on purpose: inner join drops the case row.
	}

	for _, c := range cases {
		store.AddCase(c)
	}
	for _, v := range vaccinations {
		store.AddVaccination(v)
	}
	require.NoError(t, store.Finalize())
	require.NoError(t, store.LastError())
}

func TestNewCovidStore(t *testing.T) {
	tempDir := t.TempDir()
	store, err := NewCovidStore(tempDir, "create_test")
	require.NoError(t, err)
	defer store.Close()

	dbPath := filepath.Join(tempDir, "analysis_create_test.duckdb")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected database file to be created")
	}
}

func TestCovidStore_Coverage(t *testing.T) {
	store := createTestStore(t)
	loadFixture(t, store)

	records, total, err := store.Coverage(context.Background(), CoverageParams{Page: 1, PageSize: 100})
	require.NoError(t, err)

	// 3 Albania rows + 1 Japan row; Japan day 2 dropped by the join, the
	// World aggregate row filtered by the continent guard.
	require.Equal(t, 4, total)
	require.Len(t, records, 4)

	assert.Equal(t, "Albania", records[0].Location)
	assert.Equal(t, int64(100), records[0].RollingVaccinated)
	assert.Equal(t, int64(100), records[1].RollingVaccinated, "null new_vaccinations accumulates as 0")
	assert.Nil(t, records[1].NewVaccinations)
	assert.Equal(t, int64(150), records[2].RollingVaccinated)

	require.NotNil(t, records[2].PercentVaccinated)
	assert.Equal(t, 15.0, *records[2].PercentVaccinated)

	assert.Equal(t, "Japan", records[3].Location)
	assert.Equal(t, int64(40), records[3].RollingVaccinated)
	assert.Equal(t, date(1), records[3].Date)
}

func TestCovidStore_CoveragePagination(t *testing.T) {
	store := createTestStore(t)
	loadFixture(t, store)

	page1, total, err := store.Coverage(context.Background(), CoverageParams{Page: 1, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page1, 3)

	page2, total, err := store.Coverage(context.Background(), CoverageParams{Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total, "count cache must return the same total")
	require.Len(t, page2, 1)
	assert.Equal(t, "Japan", page2[0].Location)
}

func TestCovidStore_CoverageLocationFilter(t *testing.T) {
	store := createTestStore(t)
	loadFixture(t, store)

	records, total, err := store.Coverage(context.Background(), CoverageParams{Location: "Japan", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, "Japan", records[0].Location)
}

func TestCovidStore_CoverageSummary(t *testing.T) {
	store := createTestStore(t)
	loadFixture(t, store)

	summaries, err := store.CoverageSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "Albania", summaries[0].Location)
	assert.Equal(t, int64(150), summaries[0].TotalVaccinated)
	require.NotNil(t, summaries[0].PercentVaccinated)
	assert.Equal(t, 15.0, *summaries[0].PercentVaccinated)

	assert.Equal(t, "Japan", summaries[1].Location)
	assert.Equal(t, int64(40), summaries[1].TotalVaccinated)
	assert.Equal(t, 2.0, *summaries[1].PercentVaccinated)
}

func TestCovidStore_HighestInfection(t *testing.T) {
	store := createTestStore(t)
	loadFixture(t, store)

	peaks, err := store.HighestInfection(context.Background())
	require.NoError(t, err)
	require.Len(t, peaks, 2, "aggregate rows excluded")

	assert.Equal(t, "Albania", peaks[0].Location)
	assert.Equal(t, int64(60), peaks[0].MaxTotalCases)
	require.NotNil(t, peaks[0].MaxInfectionPct)
	assert.Equal(t, 6.0, *peaks[0].MaxInfectionPct)

	assert.Equal(t, "Japan", peaks[1].Location)
	assert.Equal(t, 0.2, *peaks[1].MaxInfectionPct)
}

func TestCovidStore_DeathCounts(t *testing.T) {
	store := createTestStore(t)
	loadFixture(t, store)

	byLocation, err := store.DeathsByLocation(context.Background())
	require.NoError(t, err)
	require.Len(t, byLocation, 2)
	assert.Equal(t, models.DeathCount{Group: "Albania", TotalDeaths: 2}, byLocation[0])
	assert.Equal(t, models.DeathCount{Group: "Japan", TotalDeaths: 0}, byLocation[1])

	byContinent, err := store.DeathsByContinent(context.Background())
	require.NoError(t, err)
	require.Len(t, byContinent, 2)
	assert.Equal(t, models.DeathCount{Group: "Europe", TotalDeaths: 2}, byContinent[0])
}

func TestCovidStore_GlobalDaily(t *testing.T) {
	store := createTestStore(t)
	loadFixture(t, store)

	days, err := store.GlobalDaily(context.Background())
	require.NoError(t, err)
	require.Len(t, days, 3)

	// Day 1: Albania 10 + Japan 4 cases, 1 death.
	assert.Equal(t, date(1), days[0].Date)
	assert.Equal(t, int64(14), days[0].TotalCases)
	assert.Equal(t, int64(1), days[0].TotalDeaths)
	assert.Equal(t, 7.14, days[0].DeathPct)

	// Day 3: Albania only, 30 cases, 0 deaths.
	assert.Equal(t, 0.0, days[2].DeathPct)
}

func TestCovidStore_GlobalDailyZeroCaseGuard(t *testing.T) {
	store := createTestStore(t)

	// A date where deaths are reported but no new cases: guarded to 0.
	store.AddCase(models.CaseRecord{
		Continent: "Europe", Location: "France", Date: date(1),
		Population: 100, NewCases: 0, NewDeaths: 5,
	})
	require.NoError(t, store.Finalize())

	days, err := store.GlobalDaily(context.Background())
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, int64(0), days[0].TotalCases)
	assert.Equal(t, int64(5), days[0].TotalDeaths)
	assert.Equal(t, 0.0, days[0].DeathPct)
}

func TestCovidStore_Locations(t *testing.T) {
	store := createTestStore(t)
	loadFixture(t, store)

	locations, err := store.Locations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Albania", "Japan"}, locations)
	assert.Equal(t, 2, store.LocationCount())
}

func TestCovidStore_Views(t *testing.T) {
	store := createTestStore(t)
	loadFixture(t, store)

	require.NoError(t, store.CreateView(ViewDefinition{Name: "percent_population_vaccinated"}))
	require.NoError(t, store.CreateView(ViewDefinition{Name: "albania_coverage", Location: "Albania"}))

	defs := store.ListViews()
	require.Len(t, defs, 2)
	assert.Equal(t, "albania_coverage", defs[0].Name)

	rows, err := store.QueryView(context.Background(), "percent_population_vaccinated")
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	albania, err := store.QueryView(context.Background(), "albania_coverage")
	require.NoError(t, err)
	require.Len(t, albania, 3)
	assert.Equal(t, int64(150), albania[2].RollingVaccinated)

	// Re-running a view on unchanged data yields identical output.
	again, err := store.QueryView(context.Background(), "albania_coverage")
	require.NoError(t, err)
	assert.Equal(t, albania, again)
}

func TestCovidStore_ViewValidation(t *testing.T) {
	store := createTestStore(t)

	assert.Error(t, store.CreateView(ViewDefinition{Name: "drop table; --"}))
	assert.Error(t, store.CreateView(ViewDefinition{Name: ""}))

	_, err := store.QueryView(context.Background(), "nope")
	assert.Error(t, err)
}

func TestLoadViewDefinitions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "views.yaml")
	content := `views:
  - name: percent_population_vaccinated
  - name: albania_coverage
    location: Albania
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	defs, err := LoadViewDefinitions(path)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "Albania", defs[1].Location)

	missing, err := LoadViewDefinitions(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err, "missing views file is not an error")
	assert.Nil(t, missing)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("views:\n  - name: \"x; drop\"\n"), 0644))
	_, err = LoadViewDefinitions(bad)
	assert.Error(t, err)
}
