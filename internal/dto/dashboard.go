package dto

// SchoolSubmissionSummary aggregates one school's submissions for a month.
type SchoolSubmissionSummary struct {
	SchoolID        string `json:"school_id"`
	SchoolName      string `json:"school_name"`
	AttendanceCount int    `json:"attendance_count"`
	MinutesCount    int    `json:"minutes_count"`
	QuarterlyCount  int    `json:"quarterly_count"`
	EvidenceCount   int    `json:"evidence_count"`
}

// DashboardResponse is the cached submission overview.
type DashboardResponse struct {
	Month          int                       `json:"month"`
	Year           int                       `json:"year"`
	Schools        []SchoolSubmissionSummary `json:"schools"`
	UpcomingEvents int                       `json:"upcoming_events"`
}
