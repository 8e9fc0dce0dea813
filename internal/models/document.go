package models

import (
	"time"

	"github.com/lib/pq"
)

// RepositoryDocument is a shared document with allow-list visibility. An empty
// allow-list means every school can see it; the filter is evaluated at read
// time, not at write time.
type RepositoryDocument struct {
	ID               string         `db:"id" json:"id"`
	Title            string         `db:"title" json:"title"`
	Description      *string        `db:"description" json:"description,omitempty"`
	ArtifactLocator  string         `db:"artifact_locator" json:"artifact_locator"`
	ArtifactName     string         `db:"artifact_name" json:"artifact_name"`
	ContentType      string         `db:"content_type" json:"content_type"`
	SizeBytes        int64          `db:"size_bytes" json:"size_bytes"`
	UploadedBy       string         `db:"uploaded_by" json:"uploaded_by"`
	AllowedSchoolIDs pq.StringArray `db:"allowed_school_ids" json:"allowed_school_ids"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

// VisibleTo reports whether a school may see the document.
func (d *RepositoryDocument) VisibleTo(schoolID string) bool {
	if len(d.AllowedSchoolIDs) == 0 {
		return true
	}
	for _, allowed := range d.AllowedSchoolIDs {
		if allowed == schoolID {
			return true
		}
	}
	return false
}
