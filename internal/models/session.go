package models

// SessionStatus represents the status of an analysis session.
type SessionStatus string

const (
	SessionStatusPending SessionStatus = "pending"
	SessionStatusLoading SessionStatus = "loading"
	SessionStatusReady   SessionStatus = "ready"
	SessionStatusError   SessionStatus = "error"
)

// AnalysisSession represents one loaded case/vaccination dataset pair and the
// queries that can be run against it.
type AnalysisSession struct {
	ID                string        `json:"id"`
	CaseFileID        string        `json:"caseFileId"`
	VaccinationFileID string        `json:"vaccinationFileId"`
	Status            SessionStatus `json:"status"`
	Progress          float64       `json:"progress"` // 0-100
	CaseRows          int           `json:"caseRows,omitempty"`
	VaccinationRows   int           `json:"vaccinationRows,omitempty"`
	LocationCount     int           `json:"locationCount,omitempty"`
	ProcessingTimeMs  int64         `json:"processingTimeMs,omitempty"`
	Error             string        `json:"error,omitempty"`
}

// NewAnalysisSession creates a new AnalysisSession in pending status.
func NewAnalysisSession(id, caseFileID, vaccinationFileID string) *AnalysisSession {
	return &AnalysisSession{
		ID:                id,
		CaseFileID:        caseFileID,
		VaccinationFileID: vaccinationFileID,
		Status:            SessionStatusPending,
		Progress:          0,
	}
}
