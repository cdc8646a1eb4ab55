package kpi

import (
	"context"
	"testing"
	"time"

	"careplan/internal/cache"
	"careplan/internal/config"
	"careplan/internal/dto"
	"careplan/internal/logger"
	"careplan/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var kpiConfig = config.KPIConfig{ActiveWindow: 30 * 24 * time.Hour, CacheTTL: 5 * time.Minute}

func TestManager_Overview(t *testing.T) {
	db, sqlMock := testutil.NewMockDatabase(t)
	m := NewManager(logger.Discard(), db, cache.Disabled(), kpiConfig)
	m.now = func() time.Time { return testutil.Now }
	careSetting := uuid.New()

	sqlMock.ExpectQuery(`SELECT COUNT\(\*\) FROM tbl_user WHERE status <> 'REVOKED' AND organization = \$1$`).
		WithArgs("Fraser Health").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	sqlMock.ExpectQuery(`SELECT COUNT\(\*\) FROM tbl_user WHERE status <> 'REVOKED' AND organization = \$1 AND last_login_at >= \$2`).
		WithArgs("Fraser Health", testutil.Now.Add(-30*24*time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	sqlMock.ExpectQuery(`SELECT COUNT\(\*\) FROM tbl_planning_session ps JOIN tbl_user u ON u.id = ps.user_id WHERE 1=1 AND u.organization = \$1 AND ps.care_location_id = \$2`).
		WithArgs("Fraser Health", careSetting).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))
	sqlMock.ExpectQuery(`GROUP BY un.id, un.display_name ORDER BY un.display_name`).
		WithArgs("Fraser Health", careSetting).
		WillReturnRows(sqlmock.NewRows([]string{"id", "display_name", "count"}).AddRow(careSetting.String(), "Acute Care", 9))

	overview, err := m.Overview(context.Background(), dto.KPIQuery{Organization: "Fraser Health", CareSetting: careSetting.String()})
	require.NoError(t, err)
	assert.Equal(t, 12, overview.General.TotalUsers)
	assert.Equal(t, 5, overview.General.ActiveUsers)
	assert.Equal(t, 9, overview.General.TotalPlans)
	require.Len(t, overview.CarePlans, 1)
	assert.Equal(t, "Acute Care", overview.CarePlans[0].CareSettingName)
}

type redisStub struct {
	mock.Mock
}

func (r *redisStub) Get(ctx context.Context, key string) *redis.StringCmd {
	args := r.Called(key)
	return redis.NewStringResult(args.String(0), args.Error(1))
}

func (r *redisStub) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	return redis.NewStatusResult("OK", r.Called(key, expiration).Error(0))
}

func (r *redisStub) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (r *redisStub) Incr(ctx context.Context, key string) *redis.IntCmd {
	return redis.NewIntResult(1, nil)
}

func (r *redisStub) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func TestManager_Overview_Cached(t *testing.T) {
	db, _ := testutil.NewMockDatabase(t)
	client := &redisStub{}
	client.On("Get", "careplan:kpi:gen").Return("2", nil)
	client.On("Get", "careplan:kpi:2:overview::").
		Return(`{"general":{"totalUsers":3,"activeUsers":1,"totalPlans":4},"carePlans":[]}`, nil)

	m := NewManager(logger.Discard(), db, cache.New(logger.Discard(), client, "careplan"), kpiConfig)

	overview, err := m.Overview(context.Background(), dto.KPIQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, overview.General.TotalUsers)
	assert.Equal(t, 4, overview.General.TotalPlans)
	client.AssertExpectations(t)
}

func TestManager_Overview_StoresOnMiss(t *testing.T) {
	db, sqlMock := testutil.NewMockDatabase(t)
	client := &redisStub{}
	client.On("Get", "careplan:kpi:gen").Return("", redis.Nil)
	client.On("Get", "careplan:kpi:0:overview::").Return("", redis.Nil)
	client.On("Set", "careplan:kpi:0:overview::", 5*time.Minute).Return(nil)

	sqlMock.ExpectQuery(`FROM tbl_user WHERE status <> 'REVOKED'$`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	sqlMock.ExpectQuery(`FROM tbl_user WHERE status <> 'REVOKED' AND last_login_at >= \$1`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	sqlMock.ExpectQuery(`FROM tbl_planning_session ps JOIN tbl_user u ON u.id = ps.user_id WHERE 1=1$`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	sqlMock.ExpectQuery(`GROUP BY`).WillReturnRows(sqlmock.NewRows([]string{"id", "display_name", "count"}))

	m := NewManager(logger.Discard(), db, cache.New(logger.Discard(), client, "careplan"), kpiConfig)
	overview, err := m.Overview(context.Background(), dto.KPIQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, overview.General.TotalUsers)
	assert.Empty(t, overview.CarePlans)
	client.AssertExpectations(t)
}

func TestManager_Organizations(t *testing.T) {
	db, sqlMock := testutil.NewMockDatabase(t)
	m := NewManager(logger.Discard(), db, cache.Disabled(), kpiConfig)
	sqlMock.ExpectQuery(`SELECT DISTINCT organization FROM tbl_user`).
		WillReturnRows(sqlmock.NewRows([]string{"organization"}).AddRow("Fraser Health").AddRow("Island Health"))

	organizations, err := m.Organizations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Fraser Health", "Island Health"}, organizations)
}
