package analytics

import (
	"sort"
	"time"

	"github.com/covid-insights/backend/internal/models"
)

// HighestInfectionByLocation returns, for each location, the maximum total
// case count and the maximum infection percentage. The two maxima are
// independent aggregates and need not come from the same row. Continent
// aggregate rows are excluded. Results are ordered by infection percentage
// descending, locations without a defined percentage last.
func HighestInfectionByLocation(cases []models.CaseRecord) []models.InfectionPeak {
	byLocation := make(map[string]*models.InfectionPeak)
	var order []string

	for _, c := range cases {
		if c.Continent == "" {
			continue
		}
		peak, ok := byLocation[c.Location]
		if !ok {
			peak = &models.InfectionPeak{Location: c.Location, Population: c.Population}
			byLocation[c.Location] = peak
			order = append(order, c.Location)
		}
		if c.TotalCases > peak.MaxTotalCases {
			peak.MaxTotalCases = c.TotalCases
		}
		if pct, err := InfectionPercentage(c.TotalCases, c.Population); err == nil {
			if peak.MaxInfectionPct == nil || pct > *peak.MaxInfectionPct {
				p := pct
				peak.MaxInfectionPct = &p
			}
		}
	}

	peaks := make([]models.InfectionPeak, 0, len(order))
	for _, loc := range order {
		peaks = append(peaks, *byLocation[loc])
	}
	sort.SliceStable(peaks, func(i, j int) bool {
		pi, pj := peaks[i].MaxInfectionPct, peaks[j].MaxInfectionPct
		switch {
		case pi == nil:
			return false
		case pj == nil:
			return true
		default:
			return *pi > *pj
		}
	})
	return peaks
}

// DeathCountByLocation returns the peak total-death count per location,
// descending. Continent aggregate rows are excluded; null total_deaths are
// ignored when taking the maximum.
func DeathCountByLocation(cases []models.CaseRecord) []models.DeathCount {
	return deathCounts(cases, func(c models.CaseRecord) string { return c.Location })
}

// DeathCountByContinent returns the peak total-death count per continent,
// descending.
func DeathCountByContinent(cases []models.CaseRecord) []models.DeathCount {
	return deathCounts(cases, func(c models.CaseRecord) string { return c.Continent })
}

func deathCounts(cases []models.CaseRecord, groupBy func(models.CaseRecord) string) []models.DeathCount {
	totals := make(map[string]int64)
	var order []string

	for _, c := range cases {
		if c.Continent == "" {
			continue
		}
		group := groupBy(c)
		if _, ok := totals[group]; !ok {
			totals[group] = 0
			order = append(order, group)
		}
		if c.TotalDeaths != nil && *c.TotalDeaths > totals[group] {
			totals[group] = *c.TotalDeaths
		}
	}

	counts := make([]models.DeathCount, 0, len(order))
	for _, group := range order {
		counts = append(counts, models.DeathCount{Group: group, TotalDeaths: totals[group]})
	}
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].TotalDeaths != counts[j].TotalDeaths {
			return counts[i].TotalDeaths > counts[j].TotalDeaths
		}
		return counts[i].Group < counts[j].Group
	})
	return counts
}

// GlobalDailyTotals groups case records by date across all locations
// (continent aggregate rows excluded), summing new cases and new deaths.
// DeathPct carries an explicit zero-guard: 0 when the date's total cases are
// 0, mirroring the guarded behavior of the source aggregate (in contrast to
// the unguarded per-record DeathPercentage). Results are ordered by date.
func GlobalDailyTotals(cases []models.CaseRecord) []models.GlobalDaily {
	byDate := make(map[time.Time]*models.GlobalDaily)

	for _, c := range cases {
		if c.Continent == "" {
			continue
		}
		day, ok := byDate[c.Date]
		if !ok {
			day = &models.GlobalDaily{Date: c.Date}
			byDate[c.Date] = day
		}
		day.TotalCases += c.NewCases
		day.TotalDeaths += c.NewDeaths
	}

	days := make([]models.GlobalDaily, 0, len(byDate))
	for _, day := range byDate {
		if day.TotalCases != 0 {
			day.DeathPct = round2(float64(day.TotalDeaths) / float64(day.TotalCases) * 100)
		}
		days = append(days, *day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days
}

// CoverageSummaries reduces a coverage result set to its per-location
// endpoints: the rolling total at each location's last date.
func CoverageSummaries(coverage []models.JoinedRecord) []models.CoverageSummary {
	var summaries []models.CoverageSummary
	for i := range coverage {
		last := i == len(coverage)-1 || coverage[i+1].Location != coverage[i].Location
		if !last {
			continue
		}
		r := coverage[i]
		summaries = append(summaries, models.CoverageSummary{
			Continent:         r.Continent,
			Location:          r.Location,
			Population:        r.Population,
			TotalVaccinated:   r.RollingVaccinated,
			PercentVaccinated: r.PercentVaccinated,
		})
	}
	return summaries
}
