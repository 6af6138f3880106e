package models

import "time"

// DatasetKind identifies which of the two input schemas a file holds.
type DatasetKind string

const (
	DatasetKindCases        DatasetKind = "cases"
	DatasetKindVaccinations DatasetKind = "vaccinations"
	DatasetKindUnknown      DatasetKind = "unknown"
)

// DatasetInfo represents metadata about an uploaded dataset file.
type DatasetInfo struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Kind       DatasetKind `json:"kind"`
	Size       int64       `json:"size"`
	UploadedAt time.Time   `json:"uploadedAt"`
	Status     string      `json:"status"` // "uploaded", "loading", "loaded", "error"
}
