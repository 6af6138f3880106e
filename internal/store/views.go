package store

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/covid-insights/backend/internal/models"
)

// ViewDefinition declares a named, re-runnable coverage query: the join +
// cumulative-sum composition, optionally narrowed to one location. Views live
// and die with their session's store; there is no cross-session lifecycle.
type ViewDefinition struct {
	Name     string `yaml:"name" json:"name"`
	Location string `yaml:"location,omitempty" json:"location,omitempty"`
}

type viewsFile struct {
	Views []ViewDefinition `yaml:"views"`
}

// View names end up in DDL, so they are restricted to identifier characters.
var viewNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// LoadViewDefinitions reads predefined view declarations from a YAML file.
// A missing file is not an error; it just means no predefined views.
func LoadViewDefinitions(path string) ([]ViewDefinition, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading views file: %w", err)
	}

	var file viewsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing views file: %w", err)
	}

	for _, def := range file.Views {
		if !viewNameRe.MatchString(def.Name) {
			return nil, fmt.Errorf("invalid view name %q in %s", def.Name, path)
		}
	}
	return file.Views, nil
}

// CreateView materializes a view definition as a DuckDB view over the
// coverage query.
func (s *CovidStore) CreateView(def ViewDefinition) error {
	if !viewNameRe.MatchString(def.Name) {
		return fmt.Errorf("invalid view name %q", def.Name)
	}

	query := fmt.Sprintf("WITH coverage AS (%s)\nSELECT * FROM coverage", coverageSelect)
	if def.Location != "" {
		// Literal filter: CREATE VIEW cannot be parameterized.
		query += fmt.Sprintf(" WHERE location = '%s'", strings.ReplaceAll(def.Location, "'", "''"))
	}
	query += " ORDER BY location, date"

	ddl := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s", def.Name, query)
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("creating view %s: %w", def.Name, err)
	}

	s.viewsMu.Lock()
	s.views[def.Name] = def
	s.viewsMu.Unlock()
	return nil
}

// ListViews returns the definitions of all views in this store, sorted by
// name.
func (s *CovidStore) ListViews() []ViewDefinition {
	s.viewsMu.RLock()
	defer s.viewsMu.RUnlock()

	defs := make([]ViewDefinition, 0, len(s.views))
	for _, def := range s.views {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// QueryView re-runs a named view and returns its rows.
func (s *CovidStore) QueryView(ctx context.Context, name string) ([]models.JoinedRecord, error) {
	s.viewsMu.RLock()
	_, ok := s.views[name]
	s.viewsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("view not found: %s", name)
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", name))
	if err != nil {
		return nil, fmt.Errorf("querying view %s: %w", name, err)
	}
	defer rows.Close()

	return scanCoverageRows(rows, 1024)
}
