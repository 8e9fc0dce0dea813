package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supervision-portal-api/internal/dto"
	"github.com/noah-isme/supervision-portal-api/internal/models"
	appErrors "github.com/noah-isme/supervision-portal-api/pkg/errors"
)

type dashReportsStub struct {
	counts map[string]int
	calls  int
}

func (s *dashReportsStub) CountByPeriodPrefix(ctx context.Context, family models.ReportFamily, schoolID, prefix string) (int, error) {
	s.calls++
	return s.counts[string(family)+"|"+schoolID], nil
}

type dashEvidenceStub struct{ count int }

func (s dashEvidenceStub) CountBySchoolSince(ctx context.Context, schoolID string, since time.Time) (int, error) {
	return s.count, nil
}

type dashEventsStub struct{ upcoming int }

func (s dashEventsStub) CountUpcoming(ctx context.Context, from time.Time) (int, error) {
	return s.upcoming, nil
}

type dashCacheStub struct {
	entries map[string]*dto.DashboardResponse
	sets    int
}

func newDashCacheStub() *dashCacheStub {
	return &dashCacheStub{entries: make(map[string]*dto.DashboardResponse)}
}

func (c *dashCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	cached, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*dest.(*dto.DashboardResponse) = *cached
	return nil
}

func (c *dashCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.sets++
	resp := value.(*dto.DashboardResponse)
	copy := *resp
	c.entries[key] = &copy
	return nil
}

func TestDashboardServiceAggregatesPerSchool(t *testing.T) {
	reports := &dashReportsStub{counts: map[string]int{
		string(models.FamilyAttendance) + "|sch-a":      20,
		string(models.FamilyCouncilMinutes) + "|sch-a":  1,
		string(models.FamilyQuarterlyReport) + "|sch-b": 1,
	}}
	cache := newDashCacheStub()
	svc := NewDashboardService(reports, dashEvidenceStub{count: 2}, dashEventsStub{upcoming: 3},
		consolSchoolsStub{}, cache, time.Minute, nil)

	resp, err := svc.Overview(context.Background(), 3, 2024, adminClaims())
	require.NoError(t, err)
	require.Equal(t, 3, resp.Month)
	require.Len(t, resp.Schools, 3)
	require.Equal(t, 3, resp.UpcomingEvents)
	require.Equal(t, 20, resp.Schools[0].AttendanceCount)
	require.Equal(t, 1, resp.Schools[0].MinutesCount)
	require.Equal(t, 1, resp.Schools[1].QuarterlyCount)
	require.Equal(t, 2, resp.Schools[0].EvidenceCount)
	require.Equal(t, 1, cache.sets)
}

func TestDashboardServiceServesSecondCallFromCache(t *testing.T) {
	reports := &dashReportsStub{counts: map[string]int{}}
	cache := newDashCacheStub()
	svc := NewDashboardService(reports, dashEvidenceStub{}, dashEventsStub{},
		consolSchoolsStub{}, cache, time.Minute, nil)

	_, err := svc.Overview(context.Background(), 3, 2024, adminClaims())
	require.NoError(t, err)
	firstCalls := reports.calls

	_, err = svc.Overview(context.Background(), 3, 2024, adminClaims())
	require.NoError(t, err)
	require.Equal(t, firstCalls, reports.calls)
}

func TestDashboardServiceAdminOnly(t *testing.T) {
	svc := NewDashboardService(&dashReportsStub{}, dashEvidenceStub{}, dashEventsStub{},
		consolSchoolsStub{}, newDashCacheStub(), time.Minute, nil)

	_, err := svc.Overview(context.Background(), 3, 2024, schoolClaims("sch-a"))
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}
