package models

import (
	"time"

	"github.com/lib/pq"
)

// MaxEvidenceArtifacts caps the number of photos owned by one evidence record.
const MaxEvidenceArtifacts = 10

// Evidence is a photographic evidence record owning 1..10 co-located
// artifacts uploaded atomically. Deleting the record deletes all of them.
type Evidence struct {
	ID           string         `db:"id" json:"id"`
	SchoolID     string         `db:"school_id" json:"school_id"`
	Title        string         `db:"title" json:"title"`
	Description  *string        `db:"description" json:"description,omitempty"`
	Locators     pq.StringArray `db:"artifact_locators" json:"artifact_locators"`
	ContentTypes pq.StringArray `db:"content_types" json:"content_types"`
	UploadedBy   string         `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}
