package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type mockStatsRepo struct {
	summaries map[string]models.AttendanceSummary
	lookups   int
}

func (m *mockStatsRepo) FindByStudent(ctx context.Context, studentID string) (*models.AttendanceSummary, error) {
	m.lookups++
	if s, ok := m.summaries[studentID]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStatsRepo) List(ctx context.Context) ([]models.AttendanceSummary, error) {
	var list []models.AttendanceSummary
	for _, s := range m.summaries {
		list = append(list, s)
	}
	return list, nil
}

func (m *mockStatsRepo) MarkPermission(ctx context.Context, attendanceID string) (bool, error) {
	if attendanceID == "ghost" {
		return false, appErrors.Clone(appErrors.ErrNotFound, "attendance event not found")
	}
	s, ok := m.summaries["s1"]
	if !ok {
		return false, appErrors.Clone(appErrors.ErrNotFound, "attendance summary not found")
	}
	if s.AbsentCount == 0 {
		return true, nil
	}
	s.AbsentCount--
	s.AbsentWithPermission++
	m.summaries["s1"] = s
	return true, nil
}

func (m *mockStatsRepo) Consolidate(ctx context.Context, attendanceID string, punctuality models.Punctuality) error {
	if attendanceID == "ghost" {
		return appErrors.Clone(appErrors.ErrNotFound, "attendance event not found")
	}
	s, ok := m.summaries["s1"]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "attendance summary not found")
	}
	switch punctuality {
	case models.PunctualityOntime:
		s.PresentCount++
	case models.PunctualityLate:
		s.LateCount++
	default:
		s.AbsentCount++
	}
	m.summaries["s1"] = s
	return nil
}

type memoryCache struct {
	data map[string][]byte
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c.data == nil {
		c.data = make(map[string][]byte)
	}
	c.data[key] = raw
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.data = make(map[string][]byte)
	return nil
}

func TestStatsServiceGetByStudentCaches(t *testing.T) {
	repo := &mockStatsRepo{summaries: map[string]models.AttendanceSummary{
		"s1": {ID: "sum1", StudentID: "s1", AbsentCount: 2, PresentCount: 10, LateCount: 3},
	}}
	cache := NewCacheService(&memoryCache{}, nil, time.Minute, nil, true)
	svc := NewStatsService(repo, cache, nil)

	first, err := svc.GetByStudent(context.Background(), "s1")
	require.NoError(t, err)
	second, err := svc.GetByStudent(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, first.Total(), second.Total())
	assert.Equal(t, 1, repo.lookups)
}

func TestStatsServiceGetByStudentNotFound(t *testing.T) {
	repo := &mockStatsRepo{summaries: map[string]models.AttendanceSummary{}}
	svc := NewStatsService(repo, nil, nil)

	_, err := svc.GetByStudent(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStatsServiceMarkPermission(t *testing.T) {
	repo := &mockStatsRepo{summaries: map[string]models.AttendanceSummary{
		"s1": {ID: "sum1", StudentID: "s1", AbsentCount: 1},
	}}
	svc := NewStatsService(repo, nil, nil)

	applied, err := svc.MarkPermission(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 0, repo.summaries["s1"].AbsentCount)
	assert.Equal(t, 1, repo.summaries["s1"].AbsentWithPermission)

	// second call finds no unexcused absence left and is a no-op
	applied, err = svc.MarkPermission(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 0, repo.summaries["s1"].AbsentCount)
	assert.Equal(t, 1, repo.summaries["s1"].AbsentWithPermission)
}

func TestStatsServiceMarkPermissionUnknownEvent(t *testing.T) {
	repo := &mockStatsRepo{summaries: map[string]models.AttendanceSummary{}}
	svc := NewStatsService(repo, nil, nil)

	_, err := svc.MarkPermission(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStatsServiceMarkPermissionInvalidatesCache(t *testing.T) {
	repo := &mockStatsRepo{summaries: map[string]models.AttendanceSummary{
		"s1": {ID: "sum1", StudentID: "s1", AbsentCount: 2},
	}}
	cache := NewCacheService(&memoryCache{}, nil, time.Minute, nil, true)
	svc := NewStatsService(repo, cache, nil)

	_, err := svc.GetByStudent(context.Background(), "s1")
	require.NoError(t, err)

	applied, err := svc.MarkPermission(context.Background(), "a1")
	require.NoError(t, err)
	require.True(t, applied)

	summary, err := svc.GetByStudent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.AbsentCount)
	assert.Equal(t, 2, repo.lookups)
}

func TestStatsServiceConsolidate(t *testing.T) {
	repo := &mockStatsRepo{summaries: map[string]models.AttendanceSummary{
		"s1": {ID: "sum1", StudentID: "s1"},
	}}
	svc := NewStatsService(repo, nil, nil)

	require.NoError(t, svc.Consolidate(context.Background(), "a1", models.PunctualityLate))
	assert.Equal(t, 1, repo.summaries["s1"].LateCount)

	// omitted punctuality settles the event as an absence
	require.NoError(t, svc.Consolidate(context.Background(), "a1", ""))
	assert.Equal(t, 1, repo.summaries["s1"].AbsentCount)
}

func TestStatsServiceConsolidateUnknownPunctuality(t *testing.T) {
	repo := &mockStatsRepo{summaries: map[string]models.AttendanceSummary{
		"s1": {ID: "sum1", StudentID: "s1"},
	}}
	svc := NewStatsService(repo, nil, nil)

	err := svc.Consolidate(context.Background(), "a1", models.Punctuality("sometimes"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Zero(t, repo.summaries["s1"].AbsentCount)
}

func TestStatsServiceConsolidateUnknownEvent(t *testing.T) {
	repo := &mockStatsRepo{summaries: map[string]models.AttendanceSummary{}}
	svc := NewStatsService(repo, nil, nil)

	err := svc.Consolidate(context.Background(), "ghost", models.PunctualityOntime)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
