package database

import (
	"time"

	"github.com/google/uuid"
)

// IngestRun records one import of evidence into the database
type IngestRun struct {
	ID        string    `json:"id" db:"id"`
	Source    string    `json:"source" db:"source"`
	Records   int       `json:"records" db:"records"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewIngestRun creates a run with a generated ID
func NewIngestRun(source string, records int) *IngestRun {
	return &IngestRun{
		ID:        uuid.New().String(),
		Source:    source,
		Records:   records,
		CreatedAt: time.Now().UTC(),
	}
}
