package dto

// CreateDocumentRequest carries the metadata of a repository document upload.
// AllowedSchoolIDs is a comma-separated list; empty means visible to all.
type CreateDocumentRequest struct {
	Title            string  `form:"title" validate:"required"`
	Description      *string `form:"description"`
	AllowedSchoolIDs string  `form:"allowed_school_ids"`
}

// DocumentResponse decorates a document with its signed download URL.
type DocumentResponse struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      *string  `json:"description,omitempty"`
	ArtifactName     string   `json:"artifact_name"`
	ContentType      string   `json:"content_type"`
	SizeBytes        int64    `json:"size_bytes"`
	AllowedSchoolIDs []string `json:"allowed_school_ids"`
	CreatedAt        string   `json:"created_at"`
	DownloadURL      string   `json:"download_url,omitempty"`
}
