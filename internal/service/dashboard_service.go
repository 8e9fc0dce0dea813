package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/supervision-portal-api/internal/dto"
	"github.com/noah-isme/supervision-portal-api/internal/models"
	appErrors "github.com/noah-isme/supervision-portal-api/pkg/errors"
)

type dashboardReportCounter interface {
	CountByPeriodPrefix(ctx context.Context, family models.ReportFamily, schoolID, prefix string) (int, error)
}

type dashboardEvidenceCounter interface {
	CountBySchoolSince(ctx context.Context, schoolID string, since time.Time) (int, error)
}

type dashboardEventCounter interface {
	CountUpcoming(ctx context.Context, from time.Time) (int, error)
}

type dashboardSchoolLister interface {
	List(ctx context.Context) ([]models.School, error)
}

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// DashboardService aggregates per-school submission counts for one month.
// The result is cache-aside in redis; upload paths invalidate by key prefix
// rotation (keys embed the month, stale entries simply expire).
type DashboardService struct {
	reports  dashboardReportCounter
	evidence dashboardEvidenceCounter
	events   dashboardEventCounter
	schools  dashboardSchoolLister
	cache    dashboardCache
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewDashboardService constructs the service.
func NewDashboardService(
	reports dashboardReportCounter,
	evidence dashboardEvidenceCounter,
	events dashboardEventCounter,
	schools dashboardSchoolLister,
	cache dashboardCache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{
		reports:  reports,
		evidence: evidence,
		events:   events,
		schools:  schools,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// Overview returns submission counts per school for the given month. Zero
// month/year defaults to the current month. Admin only.
func (s *DashboardService) Overview(ctx context.Context, month, year int, actor *models.JWTClaims) (*dto.DashboardResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	now := s.now().UTC()
	if month < 1 || month > 12 || year < 1 {
		month = int(now.Month())
		year = now.Year()
	}

	cacheKey := fmt.Sprintf("dashboard:%04d-%02d", year, month)
	if s.cache != nil {
		var cached dto.DashboardResponse
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	schools, err := s.schools.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schools")
	}

	monthPrefix := fmt.Sprintf("%04d-%02d", year, month)
	quarterPrefix := fmt.Sprintf("%04d-Q%d", year, (month-1)/3+1)
	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)

	summaries := make([]dto.SchoolSubmissionSummary, 0, len(schools))
	for _, school := range schools {
		summary := dto.SchoolSubmissionSummary{SchoolID: school.ID, SchoolName: school.Name}
		if summary.AttendanceCount, err = s.reports.CountByPeriodPrefix(ctx, models.FamilyAttendance, school.ID, monthPrefix); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendance submissions")
		}
		if summary.MinutesCount, err = s.reports.CountByPeriodPrefix(ctx, models.FamilyCouncilMinutes, school.ID, monthPrefix); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count minutes submissions")
		}
		if summary.QuarterlyCount, err = s.reports.CountByPeriodPrefix(ctx, models.FamilyQuarterlyReport, school.ID, quarterPrefix); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count quarterly submissions")
		}
		if summary.EvidenceCount, err = s.evidence.CountBySchoolSince(ctx, school.ID, monthStart); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count evidence records")
		}
		summaries = append(summaries, summary)
	}

	upcoming, err := s.events.CountUpcoming(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count upcoming events")
	}

	response := &dto.DashboardResponse{
		Month:          month,
		Year:           year,
		Schools:        summaries,
		UpcomingEvents: upcoming,
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, response, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache dashboard", zap.Error(err), zap.String("key", cacheKey))
		}
	}
	return response, nil
}
