package dto

// CreateEvidenceRequest carries the metadata fields of an evidence upload.
// SchoolID is honored for admin callers only; school accounts always upload
// into their own tenant.
type CreateEvidenceRequest struct {
	Title       string  `form:"title" validate:"required"`
	Description *string `form:"description"`
	SchoolID    string  `form:"school_id"`
}
