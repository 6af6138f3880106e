// Package session tracks analysis sessions: each one pairs a case dataset
// with a vaccination dataset, loads both into a DuckDB-backed store in the
// background, and serves queries until it is cleaned up.
package session

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/covid-insights/backend/internal/dataset"
	"github.com/covid-insights/backend/internal/models"
	"github.com/covid-insights/backend/internal/store"
)

// MaxSessions limits concurrent sessions to prevent disk exhaustion
const MaxSessions = 10

// SessionMaxAge is how long to keep finished sessions before cleanup
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// Manager handles active analysis sessions.
type Manager struct {
	sessions map[string]*SessionState
	mu       sync.RWMutex
	tempDir  string
	views    []store.ViewDefinition
}

// SessionState holds the session metadata and the DuckDB-backed store.
type SessionState struct {
	Session      *models.AnalysisSession
	Store        *store.CovidStore
	LastAccessed time.Time
}

// NewManager creates a new session manager.
// Uses environment variable DUCKDB_TEMP_DIR for temp directory, defaults to ./data/temp
func NewManager() *Manager {
	tempDir := os.Getenv("DUCKDB_TEMP_DIR")
	if tempDir == "" {
		tempDir = "./data/temp"
	}
	os.MkdirAll(tempDir, 0755)
	return NewManagerWithTempDir(tempDir)
}

// NewManagerWithTempDir creates a session manager with a specific temp directory.
func NewManagerWithTempDir(tempDir string) *Manager {
	return &Manager{
		sessions: make(map[string]*SessionState),
		tempDir:  tempDir,
	}
}

// SetPredefinedViews registers view definitions created in every new session
// once its data is loaded.
func (m *Manager) SetPredefinedViews(views []store.ViewDefinition) {
	m.views = views
}

// StartSession begins loading a case/vaccination dataset pair.
func (m *Manager) StartSession(caseFileID, casePath, vaccinationFileID, vaccinationPath string) (*models.AnalysisSession, error) {
	// Clean up old sessions if at limit
	m.cleanupOldSessionsIfNeeded()

	sessionID := uuid.New().String()

	session := models.NewAnalysisSession(sessionID, caseFileID, vaccinationFileID)
	session.Status = models.SessionStatusLoading

	state := &SessionState{
		Session:      session,
		LastAccessed: time.Now(),
	}

	m.mu.Lock()
	m.sessions[sessionID] = state
	m.mu.Unlock()

	// Load in a background goroutine
	go m.runLoad(sessionID, casePath, vaccinationPath)

	return session, nil
}

func (m *Manager) runLoad(sessionID, casePath, vaccinationPath string) {
	// Recover from panics to prevent backend crash
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Load %s] PANIC recovered: %v\n", sessionID[:8], r)
			m.updateSessionError(sessionID, fmt.Sprintf("load panicked: %v", r))
		}
	}()

	start := time.Now()
	fmt.Printf("[Load %s] Starting load of %s + %s\n", sessionID[:8], casePath, vaccinationPath)

	covidStore, err := store.NewCovidStore(m.tempDir, sessionID)
	if err != nil {
		fmt.Printf("[Load %s] ERROR: failed to create store: %v\n", sessionID[:8], err)
		m.updateSessionError(sessionID, fmt.Sprintf("failed to create storage: %v", err))
		return
	}

	m.setProgress(sessionID, 5)

	// Progress within each file maps onto a fixed slice of the session bar:
	// cases 5-50%, vaccinations 50-90%, finalization 90-100%.
	caseProgress := func(lines int, bytesRead, totalBytes int64) {
		m.setProgress(sessionID, scaleProgress(5, 50, bytesRead, totalBytes))
	}
	vaccinationProgress := func(lines int, bytesRead, totalBytes int64) {
		m.setProgress(sessionID, scaleProgress(50, 90, bytesRead, totalBytes))
	}

	caseRows, err := dataset.LoadCasesFile(casePath, caseProgress, func(rec models.CaseRecord) error {
		covidStore.AddCase(rec)
		return covidStore.LastError()
	})
	if err != nil {
		covidStore.Close()
		fmt.Printf("[Load %s] ERROR: loading cases: %v\n", sessionID[:8], err)
		m.updateSessionError(sessionID, fmt.Sprintf("loading cases: %v", err))
		return
	}

	m.setProgress(sessionID, 50)

	vaccinationRows, err := dataset.LoadVaccinationsFile(vaccinationPath, vaccinationProgress, func(rec models.VaccinationRecord) error {
		covidStore.AddVaccination(rec)
		return covidStore.LastError()
	})
	if err != nil {
		covidStore.Close()
		fmt.Printf("[Load %s] ERROR: loading vaccinations: %v\n", sessionID[:8], err)
		m.updateSessionError(sessionID, fmt.Sprintf("loading vaccinations: %v", err))
		return
	}

	m.setProgress(sessionID, 90)

	if err := covidStore.Finalize(); err != nil {
		covidStore.Close()
		fmt.Printf("[Load %s] ERROR: finalizing store: %v\n", sessionID[:8], err)
		m.updateSessionError(sessionID, fmt.Sprintf("finalizing store: %v", err))
		return
	}
	if err := covidStore.LastError(); err != nil {
		covidStore.Close()
		m.updateSessionError(sessionID, fmt.Sprintf("loading data: %v", err))
		return
	}

	for _, def := range m.views {
		if err := covidStore.CreateView(def); err != nil {
			fmt.Printf("[Load %s] WARNING: creating view %s: %v\n", sessionID[:8], def.Name, err)
		}
	}

	elapsed := time.Since(start).Milliseconds()
	fmt.Printf("[Load %s] Load complete: %d case rows, %d vaccination rows in %dms\n",
		sessionID[:8], caseRows, vaccinationRows, elapsed)

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		covidStore.Close()
		return
	}

	state.Store = covidStore
	state.Session.Status = models.SessionStatusReady
	state.Session.Progress = 100
	state.Session.CaseRows = caseRows
	state.Session.VaccinationRows = vaccinationRows
	state.Session.LocationCount = covidStore.LocationCount()
	state.Session.ProcessingTimeMs = elapsed
}

// scaleProgress maps bytesRead/totalBytes into the [lo, hi) progress slice,
// clamped just below hi so the next stage owns its boundary.
func scaleProgress(lo, hi float64, bytesRead, totalBytes int64) float64 {
	if totalBytes <= 0 {
		return lo
	}
	p := lo + float64(bytesRead)*(hi-lo)/float64(totalBytes)
	if p > hi-0.1 {
		p = hi - 0.1
	}
	return p
}

func (m *Manager) setProgress(sessionID string, progress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.sessions[sessionID]; ok {
		state.Session.Progress = progress
	}
}

func (m *Manager) updateSessionError(sessionID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}

	state.Session.Status = models.SessionStatusError
	state.Session.Error = reason
}

// Get returns a snapshot of the session metadata.
func (m *Manager) Get(sessionID string) (*models.AnalysisSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}

	snapshot := *state.Session
	return &snapshot, true
}

// GetStore returns the DuckDB store for a ready session.
func (m *Manager) GetStore(sessionID string) (*store.CovidStore, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[sessionID]
	if !ok || state.Store == nil || state.Session.Status != models.SessionStatusReady {
		return nil, false
	}
	return state.Store, true
}

// Touch marks a session as recently used, extending its keep-alive window.
func (m *Manager) Touch(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// Delete removes a session and releases its store.
func (m *Manager) Delete(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	if state.Store != nil {
		state.Store.Close()
	}
	delete(m.sessions, sessionID)
	return true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// cleanupOldSessionsIfNeeded removes finished sessions if at capacity.
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < MaxSessions {
		return
	}

	var toDelete []string
	for id, state := range m.sessions {
		if state.Session.Status == models.SessionStatusReady ||
			state.Session.Status == models.SessionStatusError {
			toDelete = append(toDelete, id)
		}
	}

	toFree := len(m.sessions) - MaxSessions + 1
	deleted := 0
	for _, id := range toDelete {
		if deleted >= toFree {
			break
		}
		if state, ok := m.sessions[id]; ok {
			if state.Store != nil {
				state.Store.Close()
			}
			delete(m.sessions, id)
			deleted++
			fmt.Printf("[Manager] Cleaned up old session %s to free disk\n", id[:8])
		}
	}
}

// CleanupOldSessions removes sessions older than maxAge,
// but keeps sessions that have been accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-SessionKeepAliveWindow)

	for id, state := range m.sessions {
		// Loading sessions are never reaped.
		if state.Session.Status != models.SessionStatusReady &&
			state.Session.Status != models.SessionStatusError {
			continue
		}

		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}

		if state.LastAccessed.Before(cutoff) {
			if state.Store != nil {
				state.Store.Close()
			}
			delete(m.sessions, id)
			fmt.Printf("[Manager] Session %s expired after %v\n", id[:8], maxAge)
		}
	}
}
