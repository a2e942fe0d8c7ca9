// internal/store/redis_test.go
package store

import (
	"context"
	"errors"
	"testing"

	"loan-manager/internal/models"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Key Layout Tests
// ==========================

func TestRedisStore_KeyLayout(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	s := NewRedisStore(redisClient, WithKeyPrefix("lms:"))

	redisMock.ExpectSetNX("lms:active:234774784", "locked", 0).SetVal(true)
	redisMock.ExpectDel("lms:active:234774784").SetVal(1)

	ok, err := s.TryLock(context.Background(), "234774784")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, s.Unlock(context.Background(), "234774784"))

	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestRedisStore_TryLockHeld(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	s := NewRedisStore(redisClient)

	redisMock.ExpectSetNX("lms:active:c1", "locked", 0).SetVal(false)

	ok, err := s.TryLock(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

// ==========================
// Error Handling Tests
// ==========================

func TestRedisStore_Errors(t *testing.T) {
	redisErr := errors.New("connection refused")

	tests := []struct {
		name   string
		expect func(m redismock.ClientMock)
		call   func(s *RedisStore) error
		errMsg string
	}{
		{
			name:   "find",
			expect: func(m redismock.ClientMock) { m.ExpectGet("lms:app:c1").SetErr(redisErr) },
			call: func(s *RedisStore) error {
				_, err := s.Find(context.Background(), "c1")
				return err
			},
			errMsg: "redis get application",
		},
		{
			name:   "try lock",
			expect: func(m redismock.ClientMock) { m.ExpectSetNX("lms:active:c1", "locked", 0).SetErr(redisErr) },
			call: func(s *RedisStore) error {
				_, err := s.TryLock(context.Background(), "c1")
				return err
			},
			errMsg: "redis lock",
		},
		{
			name:   "unlock",
			expect: func(m redismock.ClientMock) { m.ExpectDel("lms:active:c1").SetErr(redisErr) },
			call: func(s *RedisStore) error {
				return s.Unlock(context.Background(), "c1")
			},
			errMsg: "redis unlock",
		},
		{
			name:   "has active process",
			expect: func(m redismock.ClientMock) { m.ExpectExists("lms:active:c1").SetErr(redisErr) },
			call: func(s *RedisStore) error {
				_, err := s.HasActiveProcess(context.Background(), "c1")
				return err
			},
			errMsg: "redis exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			redisClient, redisMock := redismock.NewClientMock()
			s := NewRedisStore(redisClient)
			tt.expect(redisMock)

			err := tt.call(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.ErrorIs(t, err, redisErr)
			assert.NoError(t, redisMock.ExpectationsWereMet())
		})
	}
}

func TestRedisStore_FindCorruptRecord(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	s := NewRedisStore(redisClient)

	redisMock.ExpectGet("lms:app:c1").SetVal("{not json")

	app, err := s.Find(context.Background(), "c1")
	assert.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), "decode application c1")
}

func TestRedisStore_HasActiveProcessFallsBackToStatus(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	s := NewRedisStore(redisClient)

	redisMock.ExpectExists("lms:active:c1").SetVal(0)
	redisMock.ExpectGet("lms:app:c1").SetVal(`{"customerNumber":"c1","status":"SCORING_IN_PROGRESS"}`)

	active, err := s.HasActiveProcess(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, active)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestRedisStore_SaveWritesMarkerWithRecord(t *testing.T) {
	s := newRedisTestStore(t)
	ctx := context.Background()

	app := newApplication("c1", models.StatusPendingScore)
	require.NoError(t, s.Save(ctx, app))

	holder, err := s.rdb.Get(ctx, "test:active:c1").Result()
	require.NoError(t, err)
	assert.Equal(t, app.ID, holder)

	app.Status = models.StatusApproved
	require.NoError(t, s.Save(ctx, app))

	n, err := s.rdb.Exists(ctx, "test:active:c1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
