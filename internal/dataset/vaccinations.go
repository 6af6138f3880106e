package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/covid-insights/backend/internal/models"
)

// StreamVaccinations reads vaccination records from r, invoking fn for each
// record in input order. Same abort semantics as StreamCases.
func StreamVaccinations(r io.Reader, totalBytes int64, progress ProgressCallback, fn func(models.VaccinationRecord) error) (int, error) {
	counter := &countingReader{r: r}
	cr := csv.NewReader(counter)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("reading header: %w", err)
	}
	idx := indexHeader(header)
	if !idx.has("location", "date", "new_vaccinations") {
		return 0, fmt.Errorf("not a vaccination dataset: header lacks location/date/new_vaccinations columns")
	}

	line := 1
	count := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		date, err := parseDate(idx.get(row, "date"), line, "date")
		if err != nil {
			return count, err
		}
		newVaccinations, err := parseNullableInt(idx.get(row, "new_vaccinations"), line, "new_vaccinations")
		if err != nil {
			return count, err
		}

		rec := models.VaccinationRecord{
			Location:        idx.get(row, "location"),
			Date:            date,
			NewVaccinations: newVaccinations,
		}
		if err := fn(rec); err != nil {
			return count, err
		}
		count++

		if progress != nil && count%50000 == 0 {
			progress(count, counter.n, totalBytes)
		}
	}

	if progress != nil {
		progress(count, counter.n, totalBytes)
	}
	return count, nil
}

// ReadVaccinations materializes all vaccination records from r.
func ReadVaccinations(r io.Reader) ([]models.VaccinationRecord, error) {
	var records []models.VaccinationRecord
	_, err := StreamVaccinations(r, 0, nil, func(rec models.VaccinationRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// LoadVaccinationsFile streams vaccination records from a file on disk.
func LoadVaccinationsFile(path string, progress ProgressCallback, fn func(models.VaccinationRecord) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return StreamVaccinations(f, size, progress, fn)
}
