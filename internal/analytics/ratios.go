package analytics

import (
	"errors"
	"math"

	"github.com/covid-insights/backend/internal/models"
)

// ErrDivisionUndefined is returned by ratio computations when the denominator
// is zero. Callers decide whether to surface the row as null or skip it.
var ErrDivisionUndefined = errors.New("division undefined: zero denominator")

func round2(x float64) float64 { return math.Round(x*100) / 100 }

func round4(x float64) float64 { return math.Round(x*10000) / 10000 }

// PercentVaccinated returns rollingVaccinated / population * 100 rounded to 2
// decimal places. Fails with ErrDivisionUndefined when population is 0.
func PercentVaccinated(r models.JoinedRecord) (float64, error) {
	if r.Population == 0 {
		return 0, ErrDivisionUndefined
	}
	return round2(float64(r.RollingVaccinated) / float64(r.Population) * 100), nil
}

// DeathPercentage returns totalDeaths / totalCases * 100 rounded to 2 decimal
// places. Fails with ErrDivisionUndefined when totalCases is 0; unlike
// GlobalDailyTotals this is deliberately unguarded at the aggregate level.
func DeathPercentage(totalDeaths, totalCases int64) (float64, error) {
	if totalCases == 0 {
		return 0, ErrDivisionUndefined
	}
	return round2(float64(totalDeaths) / float64(totalCases) * 100), nil
}

// InfectionPercentage returns totalCases / population * 100 rounded to 4
// decimal places. Fails with ErrDivisionUndefined when population is 0.
func InfectionPercentage(totalCases, population int64) (float64, error) {
	if population == 0 {
		return 0, ErrDivisionUndefined
	}
	return round4(float64(totalCases) / float64(population) * 100), nil
}
