// Package store persists case and vaccination records in a session-scoped
// DuckDB file and runs the analytical queries (join + window cumulative sums,
// grouped aggregates) as SQL. It mirrors the semantics of internal/analytics
// for datasets larger than available RAM.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/marcboeker/go-duckdb"

	"github.com/covid-insights/backend/internal/models"
)

// CovidStore stores the two record sets in a temporary DuckDB file.
// Rows carry an insert-order id used as the deterministic tie-break for
// same-date rows in window queries.
type CovidStore struct {
	db        *sql.DB
	dbPath    string
	batchSize int

	caseCount int
	caseBatch []models.CaseRecord

	vaccinationCount int
	vaccinationBatch []models.VaccinationRecord

	locations map[string]struct{}
	lastError error

	// Cache for COUNT results by filter to avoid repeated count queries
	countCache   map[string]int
	countCacheMu sync.RWMutex

	// Semaphore limiting concurrent queries (prevents memory spikes)
	querySem chan struct{}

	viewsMu sync.RWMutex
	views   map[string]ViewDefinition
}

// NewCovidStore creates a new DuckDB-backed store in the given temp directory.
func NewCovidStore(tempDir string, sessionID string) (*CovidStore, error) {
	dbPath := filepath.Join(tempDir, fmt.Sprintf("analysis_%s.duckdb", sessionID))
	fmt.Printf("[Store] Creating database at: %s\n", dbPath)

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='1GB'",
			"PRAGMA threads=4",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	_, err = db.Exec(`
		CREATE TABLE cases (
			id           BIGINT NOT NULL,
			continent    VARCHAR,
			location     VARCHAR NOT NULL,
			date         DATE NOT NULL,
			population   BIGINT NOT NULL,
			total_cases  BIGINT NOT NULL,
			new_cases    BIGINT NOT NULL,
			total_deaths BIGINT,
			new_deaths   BIGINT NOT NULL
		)
	`)
	if err == nil {
		_, err = db.Exec(`
			CREATE TABLE vaccinations (
				id               BIGINT NOT NULL,
				location         VARCHAR NOT NULL,
				date             DATE NOT NULL,
				new_vaccinations BIGINT
			)
		`)
	}
	if err != nil {
		db.Close()
		os.Remove(dbPath)
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	s := newCovidStoreWithDB(db)
	s.dbPath = dbPath
	return s, nil
}

// newCovidStoreWithDB wires a store around an existing database handle.
// Tests use it to substitute a mock connection.
func newCovidStoreWithDB(db *sql.DB) *CovidStore {
	const batchSize = 25000
	return &CovidStore{
		db:               db,
		batchSize:        batchSize,
		caseBatch:        make([]models.CaseRecord, 0, batchSize),
		vaccinationBatch: make([]models.VaccinationRecord, 0, batchSize),
		locations:        make(map[string]struct{}, 256),
		countCache:       make(map[string]int),
		querySem:         make(chan struct{}, 3),
		views:            make(map[string]ViewDefinition),
	}
}

// AddCase adds a case record to the store. Records are batched and written
// with the DuckDB Appender.
func (s *CovidStore) AddCase(rec models.CaseRecord) {
	s.caseBatch = append(s.caseBatch, rec)
	s.caseCount++
	if rec.Continent != "" {
		s.locations[rec.Location] = struct{}{}
	}
	if len(s.caseBatch) >= s.batchSize {
		if err := s.flushCases(); err != nil {
			s.lastError = err
			fmt.Printf("[Store] case flush error: %v\n", err)
		}
	}
}

// AddVaccination adds a vaccination record to the store.
func (s *CovidStore) AddVaccination(rec models.VaccinationRecord) {
	s.vaccinationBatch = append(s.vaccinationBatch, rec)
	s.vaccinationCount++
	if len(s.vaccinationBatch) >= s.batchSize {
		if err := s.flushVaccinations(); err != nil {
			s.lastError = err
			fmt.Printf("[Store] vaccination flush error: %v\n", err)
		}
	}
}

// LastError returns the last error that occurred during a batch flush.
func (s *CovidStore) LastError() error {
	return s.lastError
}

func (s *CovidStore) flushCases() error {
	if len(s.caseBatch) == 0 {
		return nil
	}
	baseID := s.caseCount - len(s.caseBatch)
	err := s.appendRows("cases", func(appender *duckdb.Appender) error {
		for i, rec := range s.caseBatch {
			var continent any
			if rec.Continent != "" {
				continent = rec.Continent
			}
			var totalDeaths any
			if rec.TotalDeaths != nil {
				totalDeaths = *rec.TotalDeaths
			}
			err := appender.AppendRow(
				int64(baseID+i),
				continent,
				rec.Location,
				rec.Date,
				rec.Population,
				rec.TotalCases,
				rec.NewCases,
				totalDeaths,
				rec.NewDeaths,
			)
			if err != nil {
				return fmt.Errorf("failed to append case row %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.caseBatch = s.caseBatch[:0]
	return nil
}

func (s *CovidStore) flushVaccinations() error {
	if len(s.vaccinationBatch) == 0 {
		return nil
	}
	baseID := s.vaccinationCount - len(s.vaccinationBatch)
	err := s.appendRows("vaccinations", func(appender *duckdb.Appender) error {
		for i, rec := range s.vaccinationBatch {
			var newVaccinations any
			if rec.NewVaccinations != nil {
				newVaccinations = *rec.NewVaccinations
			}
			err := appender.AppendRow(
				int64(baseID+i),
				rec.Location,
				rec.Date,
				newVaccinations,
			)
			if err != nil {
				return fmt.Errorf("failed to append vaccination row %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.vaccinationBatch = s.vaccinationBatch[:0]
	return nil
}

// appendRows runs fn against a DuckDB Appender for the given table on a raw
// driver connection.
func (s *CovidStore) appendRows(table string, fn func(*duckdb.Appender) error) error {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}
		appender, err := duckdb.NewAppenderFromConn(dConn, "", table)
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		if err := fn(appender); err != nil {
			return err
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}
	return nil
}

// Finalize flushes any remaining batched records and creates indexes.
// Indexes are created after the bulk load; building them during inserts slows
// the loading phase considerably.
func (s *CovidStore) Finalize() error {
	if err := s.flushCases(); err != nil {
		return err
	}
	if err := s.flushVaccinations(); err != nil {
		return err
	}

	fmt.Printf("[Store] Finalizing: %d case rows, %d vaccination rows\n", s.caseCount, s.vaccinationCount)

	indexes := []string{
		"CREATE INDEX idx_cases_loc_date ON cases(location, date)",
		"CREATE INDEX idx_cases_date ON cases(date)",
		"CREATE INDEX idx_vacc_loc_date ON vaccinations(location, date)",
	}
	for _, stmt := range indexes {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("index creation failed: %w", err)
		}
	}
	return nil
}

// CaseCount returns the number of loaded case records.
func (s *CovidStore) CaseCount() int {
	return s.caseCount
}

// VaccinationCount returns the number of loaded vaccination records.
func (s *CovidStore) VaccinationCount() int {
	return s.vaccinationCount
}

// LocationCount returns the number of distinct country-level locations seen
// in the case dataset.
func (s *CovidStore) LocationCount() int {
	return len(s.locations)
}

// ClearCountCache clears the cached COUNT results (call when data changes).
func (s *CovidStore) ClearCountCache() {
	s.countCacheMu.Lock()
	s.countCache = make(map[string]int)
	s.countCacheMu.Unlock()
}

// Close closes the database and removes the temp file.
func (s *CovidStore) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	if s.dbPath != "" {
		os.Remove(s.dbPath)
	}
	return nil
}

// acquire claims a slot on the query semaphore, honoring ctx cancellation.
func (s *CovidStore) acquire(ctx context.Context) (release func(), err error) {
	select {
	case s.querySem <- struct{}{}:
		return func() { <-s.querySem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
