package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/covid-insights/backend/internal/analytics"
	"github.com/covid-insights/backend/internal/models"
)

// coverageSelect is the join + ordered cumulative sum at the heart of every
// vaccination coverage query. The window orders by (date, id): id is the
// insert-order column, making the running total deterministic when a location
// reports twice on one date.
const coverageSelect = `
	SELECT c.continent, c.location, c.date, c.population, v.new_vaccinations,
	       SUM(COALESCE(v.new_vaccinations, 0)) OVER (
	           PARTITION BY c.location ORDER BY c.date, c.id
	       ) AS rolling_vaccinated
	FROM cases c
	JOIN vaccinations v ON v.location = c.location AND v.date = c.date
	WHERE c.continent IS NOT NULL AND c.continent <> ''`

// CoverageParams filters and paginates vaccination coverage queries.
type CoverageParams struct {
	Location string
	Page     int
	PageSize int
}

// Coverage returns the paginated vaccination coverage result set along with
// the unpaginated row count. PercentVaccinated is nil for zero-population
// rows.
func (s *CovidStore) Coverage(ctx context.Context, params CoverageParams) ([]models.JoinedRecord, int, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer release()

	where := ""
	var args []interface{}
	if params.Location != "" {
		where = " WHERE location = ?"
		args = append(args, params.Location)
	}

	total, err := s.coverageCount(ctx, where, args)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []models.JoinedRecord{}, 0, nil
	}

	offset := (params.Page - 1) * params.PageSize
	query := fmt.Sprintf(
		"WITH coverage AS (%s)\nSELECT * FROM coverage%s ORDER BY location, date LIMIT %d OFFSET %d",
		coverageSelect, where, params.PageSize, offset,
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("coverage query failed: %w", err)
	}
	defer rows.Close()

	records, err := scanCoverageRows(rows, params.PageSize)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *CovidStore) coverageCount(ctx context.Context, where string, args []interface{}) (int, error) {
	cacheKey := "coverage" + where
	for _, a := range args {
		cacheKey += fmt.Sprintf("|%v", a)
	}

	s.countCacheMu.RLock()
	total, found := s.countCache[cacheKey]
	s.countCacheMu.RUnlock()
	if found {
		return total, nil
	}

	query := fmt.Sprintf("WITH coverage AS (%s)\nSELECT COUNT(*) FROM coverage%s", coverageSelect, where)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("coverage count failed: %w", err)
	}

	s.countCacheMu.Lock()
	s.countCache[cacheKey] = total
	s.countCacheMu.Unlock()
	return total, nil
}

// CoverageSummary returns each location's rolling total at its last date:
// the full-history vaccination total per location.
func (s *CovidStore) CoverageSummary(ctx context.Context) ([]models.CoverageSummary, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.continent, c.location, c.population,
		       SUM(COALESCE(v.new_vaccinations, 0)) AS total_vaccinated
		FROM cases c
		JOIN vaccinations v ON v.location = c.location AND v.date = c.date
		WHERE c.continent IS NOT NULL AND c.continent <> ''
		GROUP BY c.continent, c.location, c.population
		ORDER BY c.location
	`)
	if err != nil {
		return nil, fmt.Errorf("coverage summary failed: %w", err)
	}
	defer rows.Close()

	var summaries []models.CoverageSummary
	for rows.Next() {
		var sum models.CoverageSummary
		if err := rows.Scan(&sum.Continent, &sum.Location, &sum.Population, &sum.TotalVaccinated); err != nil {
			return nil, err
		}
		pct, err := analytics.PercentVaccinated(models.JoinedRecord{
			Population:        sum.Population,
			RollingVaccinated: sum.TotalVaccinated,
		})
		if err == nil {
			p := pct
			sum.PercentVaccinated = &p
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// HighestInfection returns the per-location maxima of total cases and
// infection percentage, ordered by percentage descending. The two maxima are
// independent aggregates.
func (s *CovidStore) HighestInfection(ctx context.Context) ([]models.InfectionPeak, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := s.db.QueryContext(ctx, `
		SELECT location, population,
		       MAX(total_cases) AS max_cases,
		       MAX(ROUND(total_cases * 100.0 / NULLIF(population, 0), 4)) AS max_pct
		FROM cases
		WHERE continent IS NOT NULL AND continent <> ''
		GROUP BY location, population
		ORDER BY max_pct DESC NULLS LAST, location
	`)
	if err != nil {
		return nil, fmt.Errorf("highest infection query failed: %w", err)
	}
	defer rows.Close()

	var peaks []models.InfectionPeak
	for rows.Next() {
		var peak models.InfectionPeak
		var pct sql.NullFloat64
		if err := rows.Scan(&peak.Location, &peak.Population, &peak.MaxTotalCases, &pct); err != nil {
			return nil, err
		}
		if pct.Valid {
			p := pct.Float64
			peak.MaxInfectionPct = &p
		}
		peaks = append(peaks, peak)
	}
	return peaks, rows.Err()
}

// DeathsByLocation returns the peak total-death count per location,
// descending.
func (s *CovidStore) DeathsByLocation(ctx context.Context) ([]models.DeathCount, error) {
	return s.deathCounts(ctx, "location")
}

// DeathsByContinent returns the peak total-death count per continent,
// descending.
func (s *CovidStore) DeathsByContinent(ctx context.Context) ([]models.DeathCount, error) {
	return s.deathCounts(ctx, "continent")
}

func (s *CovidStore) deathCounts(ctx context.Context, groupCol string) ([]models.DeathCount, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	query := fmt.Sprintf(`
		SELECT %s, COALESCE(MAX(total_deaths), 0) AS max_deaths
		FROM cases
		WHERE continent IS NOT NULL AND continent <> ''
		GROUP BY %s
		ORDER BY max_deaths DESC, %s
	`, groupCol, groupCol, groupCol)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("death count query failed: %w", err)
	}
	defer rows.Close()

	var counts []models.DeathCount
	for rows.Next() {
		var count models.DeathCount
		if err := rows.Scan(&count.Group, &count.TotalDeaths); err != nil {
			return nil, err
		}
		counts = append(counts, count)
	}
	return counts, rows.Err()
}

// GlobalDaily groups new cases and deaths by date across all locations.
// The death percentage carries an explicit zero-guard: 0 when a date has no
// new cases, matching the guarded aggregate in the source analysis.
func (s *CovidStore) GlobalDaily(ctx context.Context) ([]models.GlobalDaily, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := s.db.QueryContext(ctx, `
		SELECT date,
		       SUM(new_cases) AS total_cases,
		       SUM(new_deaths) AS total_deaths,
		       CASE WHEN SUM(new_cases) = 0 THEN 0
		            ELSE ROUND(SUM(new_deaths) * 100.0 / SUM(new_cases), 2)
		       END AS death_pct
		FROM cases
		WHERE continent IS NOT NULL AND continent <> ''
		GROUP BY date
		ORDER BY date
	`)
	if err != nil {
		return nil, fmt.Errorf("global daily query failed: %w", err)
	}
	defer rows.Close()

	var days []models.GlobalDaily
	for rows.Next() {
		var day models.GlobalDaily
		var date time.Time
		if err := rows.Scan(&date, &day.TotalCases, &day.TotalDeaths, &day.DeathPct); err != nil {
			return nil, err
		}
		day.Date = date.UTC()
		days = append(days, day)
	}
	return days, rows.Err()
}

// Locations returns all distinct country-level locations in the case dataset.
func (s *CovidStore) Locations(ctx context.Context) ([]string, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT location FROM cases
		WHERE continent IS NOT NULL AND continent <> ''
		ORDER BY location
	`)
	if err != nil {
		return nil, fmt.Errorf("locations query failed: %w", err)
	}
	defer rows.Close()

	var locations []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

func scanCoverageRows(rows *sql.Rows, capacity int) ([]models.JoinedRecord, error) {
	records := make([]models.JoinedRecord, 0, capacity)
	for rows.Next() {
		rec, err := scanCoverageRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanCoverageRow(rows *sql.Rows) (models.JoinedRecord, error) {
	var rec models.JoinedRecord
	var continent sql.NullString
	var date time.Time
	var newVaccinations sql.NullInt64

	err := rows.Scan(&continent, &rec.Location, &date, &rec.Population, &newVaccinations, &rec.RollingVaccinated)
	if err != nil {
		return models.JoinedRecord{}, err
	}

	rec.Continent = continent.String
	rec.Date = date.UTC()
	if newVaccinations.Valid {
		v := newVaccinations.Int64
		rec.NewVaccinations = &v
	}
	if pct, err := analytics.PercentVaccinated(rec); err == nil {
		p := pct
		rec.PercentVaccinated = &p
	}
	return rec, nil
}
