package models

import (
	"fmt"
	"time"
)

// ReportFamily identifies one of the periodic report families. Each family has
// its own period-key granularity.
type ReportFamily string

const (
	FamilyAttendance      ReportFamily = "attendance"
	FamilyCouncilMinutes  ReportFamily = "council_minutes"
	FamilyQuarterlyReport ReportFamily = "quarterly_report"
)

// ParseReportFamily maps a URL segment onto a family.
func ParseReportFamily(raw string) (ReportFamily, bool) {
	switch raw {
	case "attendance":
		return FamilyAttendance, true
	case "council-minutes":
		return FamilyCouncilMinutes, true
	case "quarterly":
		return FamilyQuarterlyReport, true
	default:
		return "", false
	}
}

// PeriodicReport is the natural-key-indexed artifact record shared by the
// three periodic families. At most one row exists per
// (family, school_id, period_key); an upsert replaces the artifact reference
// and refreshes UploadedAt.
type PeriodicReport struct {
	ID              string       `db:"id" json:"id"`
	Family          ReportFamily `db:"family" json:"family"`
	SchoolID        string       `db:"school_id" json:"school_id"`
	PeriodKey       string       `db:"period_key" json:"period_key"`
	ArtifactLocator string       `db:"artifact_locator" json:"artifact_locator"`
	ArtifactName    string       `db:"artifact_name" json:"artifact_name"`
	MimeType        string       `db:"mime_type" json:"mime_type"`
	SizeBytes       int64        `db:"size_bytes" json:"size_bytes"`
	UploadedBy      string       `db:"uploaded_by" json:"uploaded_by"`
	UploadedAt      time.Time    `db:"uploaded_at" json:"uploaded_at"`
}

// AttendancePeriodKey normalizes a calendar date to day granularity.
func AttendancePeriodKey(date time.Time) string {
	return date.Format("2006-01-02")
}

// MonthPeriodKey normalizes a (month, year) pair.
func MonthPeriodKey(month, year int) (string, error) {
	if month < 1 || month > 12 {
		return "", fmt.Errorf("month out of range: %d", month)
	}
	if year < 1 {
		return "", fmt.Errorf("year out of range: %d", year)
	}
	return fmt.Sprintf("%04d-%02d", year, month), nil
}

// QuarterPeriodKey normalizes a (quarter, year) pair.
func QuarterPeriodKey(quarter, year int) (string, error) {
	if quarter < 1 || quarter > 4 {
		return "", fmt.Errorf("quarter out of range: %d", quarter)
	}
	if year < 1 {
		return "", fmt.Errorf("year out of range: %d", year)
	}
	return fmt.Sprintf("%04d-Q%d", year, quarter), nil
}
