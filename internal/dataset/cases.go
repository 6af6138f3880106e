package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/covid-insights/backend/internal/models"
)

func readHeader(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	return header, nil
}

// StreamCases reads case/death records from r, invoking fn for each record in
// input order. It returns the number of records read. The read aborts on the
// first malformed cell or on the first error returned by fn.
func StreamCases(r io.Reader, totalBytes int64, progress ProgressCallback, fn func(models.CaseRecord) error) (int, error) {
	counter := &countingReader{r: r}
	cr := csv.NewReader(counter)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("reading header: %w", err)
	}
	idx := indexHeader(header)
	if !idx.has("location", "date", "total_cases") {
		return 0, fmt.Errorf("not a case dataset: header lacks location/date/total_cases columns")
	}

	line := 1 // header consumed
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

		rec, err := parseCaseRow(idx, row, line)
		if err != nil {
			return count, err
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

func parseCaseRow(idx columnIndex, row []string, line int) (models.CaseRecord, error) {
	date, err := parseDate(idx.get(row, "date"), line, "date")
	if err != nil {
		return models.CaseRecord{}, err
	}
	population, err := parseInt(idx.get(row, "population"), line, "population")
	if err != nil {
		return models.CaseRecord{}, err
	}
	totalCases, err := parseInt(idx.get(row, "total_cases"), line, "total_cases")
	if err != nil {
		return models.CaseRecord{}, err
	}
	newCases, err := parseInt(idx.get(row, "new_cases"), line, "new_cases")
	if err != nil {
		return models.CaseRecord{}, err
	}
	totalDeaths, err := parseNullableInt(idx.get(row, "total_deaths"), line, "total_deaths")
	if err != nil {
		return models.CaseRecord{}, err
	}
	newDeaths, err := parseInt(idx.get(row, "new_deaths"), line, "new_deaths")
	if err != nil {
		return models.CaseRecord{}, err
	}

	return models.CaseRecord{
		Continent:   idx.get(row, "continent"),
		Location:    idx.get(row, "location"),
		Date:        date,
		Population:  population,
		TotalCases:  totalCases,
		NewCases:    newCases,
		TotalDeaths: totalDeaths,
		NewDeaths:   newDeaths,
	}, nil
}

// ReadCases materializes all case records from r.
func ReadCases(r io.Reader) ([]models.CaseRecord, error) {
	var records []models.CaseRecord
	_, err := StreamCases(r, 0, nil, func(rec models.CaseRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// LoadCasesFile streams case records from a file on disk.
func LoadCasesFile(path string, progress ProgressCallback, fn func(models.CaseRecord) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return StreamCases(f, size, progress, fn)
}
