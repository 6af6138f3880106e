// Package models contains domain types for the COVID Insights backend.
package models

import "time"

// CaseRecord is one row of the case/death dataset. Continent is empty for
// continent- or world-level aggregate rows, which are filtered out of every
// country-level analysis. (Location, Date) is unique within a dataset.
type CaseRecord struct {
	Continent   string    `json:"continent"`
	Location    string    `json:"location"`
	Date        time.Time `json:"date"`
	Population  int64     `json:"population"`
	TotalCases  int64     `json:"totalCases"`
	NewCases    int64     `json:"newCases"`
	TotalDeaths *int64    `json:"totalDeaths"`
	NewDeaths   int64     `json:"newDeaths"`
}

// VaccinationRecord is one row of the vaccination dataset.
// (Location, Date) is unique within a dataset.
type VaccinationRecord struct {
	Location        string    `json:"location"`
	Date            time.Time `json:"date"`
	NewVaccinations *int64    `json:"newVaccinations"`
}

// JoinedRecord is the result of inner-joining a CaseRecord with a
// VaccinationRecord on (location, date). RollingVaccinated is the running total
// of new vaccinations within the location up to and including this date.
// PercentVaccinated is nil when the population is zero.
type JoinedRecord struct {
	Continent         string    `json:"continent"`
	Location          string    `json:"location"`
	Date              time.Time `json:"date"`
	Population        int64     `json:"population"`
	NewVaccinations   *int64    `json:"newVaccinations"`
	RollingVaccinated int64     `json:"rollingVaccinated"`
	PercentVaccinated *float64  `json:"percentVaccinated"`
}

// CoverageSummary is the per-location endpoint of the rolling vaccination sum:
// the total vaccinations over the location's full history.
type CoverageSummary struct {
	Continent         string   `json:"continent"`
	Location          string   `json:"location"`
	Population        int64    `json:"population"`
	TotalVaccinated   int64    `json:"totalVaccinated"`
	PercentVaccinated *float64 `json:"percentVaccinated"`
}

// InfectionPeak holds the per-location maxima of total cases and infection
// percentage. The two maxima are computed independently and need not come from
// the same row.
type InfectionPeak struct {
	Location        string   `json:"location"`
	Population      int64    `json:"population"`
	MaxTotalCases   int64    `json:"maxTotalCases"`
	MaxInfectionPct *float64 `json:"maxInfectionPct"`
}

// DeathCount is the peak total-death count for a group (location or continent).
type DeathCount struct {
	Group       string `json:"group"`
	TotalDeaths int64  `json:"totalDeaths"`
}

// GlobalDaily aggregates new cases and deaths across all locations for one
// date. DeathPct is 0 when TotalCases is 0 for the date.
type GlobalDaily struct {
	Date        time.Time `json:"date"`
	TotalCases  int64     `json:"totalCases"`
	TotalDeaths int64     `json:"totalDeaths"`
	DeathPct    float64   `json:"deathPct"`
}
