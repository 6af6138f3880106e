// Package analytics implements the in-memory aggregation core: the
// case/vaccination inner join, the per-location rolling vaccination sum, and
// the derived ratio reports. All functions are pure over fully materialized
// record slices; the DuckDB-backed store in internal/store expresses the same
// semantics in SQL for datasets that do not fit in memory.
package analytics

import (
	"sort"
	"time"

	"github.com/covid-insights/backend/internal/models"
)

const dateKeyLayout = "2006-01-02"

func joinKey(location string, date time.Time) string {
	return location + "::" + date.Format(dateKeyLayout)
}

// Join inner-joins case records with vaccination records on (location, date).
// Rows without a match on the other side are dropped silently, and case
// records with an empty continent (continent/world aggregate rows) are
// filtered out. Output preserves the case-record input order.
func Join(cases []models.CaseRecord, vaccinations []models.VaccinationRecord) []models.JoinedRecord {
	vaccByKey := make(map[string]*models.VaccinationRecord, len(vaccinations))
	for i := range vaccinations {
		v := &vaccinations[i]
		vaccByKey[joinKey(v.Location, v.Date)] = v
	}

	joined := make([]models.JoinedRecord, 0, len(cases))
	for _, c := range cases {
		if c.Continent == "" {
			continue
		}
		v, ok := vaccByKey[joinKey(c.Location, c.Date)]
		if !ok {
			continue
		}
		joined = append(joined, models.JoinedRecord{
			Continent:       c.Continent,
			Location:        c.Location,
			Date:            c.Date,
			Population:      c.Population,
			NewVaccinations: v.NewVaccinations,
		})
	}
	return joined
}

// CumulativeVaccinations computes, for each joined record, the running total
// of new vaccinations (null treated as 0) over all records at or before its
// date within the same location. The input is not modified; the result is
// ordered by location, then date. Records sharing a date keep their relative
// input order, which makes the running total deterministic on ties.
func CumulativeVaccinations(joined []models.JoinedRecord) []models.JoinedRecord {
	out := make([]models.JoinedRecord, len(joined))
	copy(out, joined)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		return out[i].Date.Before(out[j].Date)
	})

	var location string
	var rolling int64
	for i := range out {
		if out[i].Location != location {
			location = out[i].Location
			rolling = 0
		}
		if out[i].NewVaccinations != nil {
			rolling += *out[i].NewVaccinations
		}
		out[i].RollingVaccinated = rolling
	}
	return out
}

// VaccinationCoverage is the join + cumulative-sum composition: the reusable
// "percent population vaccinated" result set. PercentVaccinated is left nil
// for zero-population rows.
func VaccinationCoverage(cases []models.CaseRecord, vaccinations []models.VaccinationRecord) []models.JoinedRecord {
	out := CumulativeVaccinations(Join(cases, vaccinations))
	for i := range out {
		if pct, err := PercentVaccinated(out[i]); err == nil {
			p := pct
			out[i].PercentVaccinated = &p
		}
	}
	return out
}
