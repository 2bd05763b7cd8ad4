package container

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedpoll/internal/config"
	"schedpoll/internal/service"
	"schedpoll/internal/service/ott"
	"schedpoll/pkg/database"
	"schedpoll/pkg/logger"
)

func testConfig(redisURL string) *config.Config {
	return &config.Config{
		Environment:       "test",
		AppSecret:         "test-secret",
		DatabaseDriver:    config.DriverSQLite,
		SQLitePath:        database.MemoryDSN,
		RedisURL:          redisURL,
		OTTTTL:            time.Hour,
		OTTSweepInterval:  time.Hour,
		PollRetention:     time.Hour,
		PollSweepInterval: time.Hour,
		Port:              "8080",
	}
}

func TestNew(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	tests := []struct {
		name        string
		redisURL    string
		expectRedis bool
	}{
		{name: "Container with Redis configured", redisURL: "redis://" + mr.Addr(), expectRedis: true},
		{name: "Container without Redis configured", redisURL: ""},
		{name: "Container with invalid Redis URL", redisURL: "invalid://redis-url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(tt.redisURL)
			testLogger := logger.NewNop()

			container, err := New(context.Background(), cfg, testLogger)
			require.NoError(t, err)
			require.NotNil(t, container)
			defer container.Close()

			assert.Equal(t, cfg, container.GetConfig())
			assert.Equal(t, testLogger, container.GetLogger())
			assert.NotNil(t, container.SQLite)
			assert.Nil(t, container.Postgres)
			assert.Equal(t, tt.expectRedis, container.HasRedis())

			if tt.expectRedis {
				assert.IsType(t, &ott.RedisStore{}, container.Tokens)
			} else {
				assert.Nil(t, container.GetRedisClient())
				assert.IsType(t, &ott.MemoryStore{}, container.Tokens)
			}

			assert.Implements(t, (*service.PollService)(nil), container.GetPollService())
			assert.Implements(t, (*service.Authorizer)(nil), container.GetAuthorizer())
			assert.NotNil(t, container.Services.Expiry)
		})
	}
}

func TestNew_WiresAWorkingPollService(t *testing.T) {
	container, err := New(context.Background(), testConfig(""), logger.NewNop())
	require.NoError(t, err)
	defer container.Close()

	ctx := context.Background()
	res, err := container.GetPollService().CreatePoll(ctx, service.CreatePollInput{
		Name:      "Gm",
		Pass:      "pw",
		Title:     "Wiring",
		DateStart: "2024-01-01",
		DateEnd:   "2024-01-01",
	})
	require.NoError(t, err)

	view, err := container.GetPollService().PollView(ctx, res.Token, res.OTT)
	require.NoError(t, err)
	assert.True(t, view.FirstSetup)
	require.NoError(t, container.Repository.Health(ctx))
}

func TestNew_UnsupportedDriver(t *testing.T) {
	cfg := testConfig("")
	cfg.DatabaseDriver = "mysql"

	container, err := New(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
	assert.Nil(t, container)
}
