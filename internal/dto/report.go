package dto

// UploadReportRequest carries the period fields of a multipart periodic report
// submission. Which fields are required depends on the family.
type UploadReportRequest struct {
	Date    string `form:"date"`
	Month   int    `form:"month"`
	Year    int    `form:"year"`
	Quarter int    `form:"quarter"`
}

// ConsolidateRequest selects the periodic records to consolidate across all
// schools and the recipients of the aggregate workbook.
type ConsolidateRequest struct {
	Date       string   `json:"date,omitempty"`
	Month      int      `json:"month,omitempty"`
	Year       int      `json:"year,omitempty"`
	Quarter    int      `json:"quarter,omitempty"`
	Recipients []string `json:"recipients" validate:"required,min=1,dive,email"`
}

// ConsolidateDocumentsRequest selects repository documents by explicit id list.
type ConsolidateDocumentsRequest struct {
	DocumentIDs []string `json:"document_ids" validate:"required,min=1"`
	Recipients  []string `json:"recipients" validate:"required,min=1,dive,email"`
}

// DispatchResult reports a completed consolidation run.
type DispatchResult struct {
	Recipients int    `json:"recipients"`
	Records    int    `json:"records"`
	Sheets     int    `json:"sheets"`
	Subject    string `json:"subject"`
}
