// internal/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"loan-manager/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps records as JSON strings and the marker as a separate key,
// so TryLock is a single SETNX.
//
// Keys: <prefix>:app:<customer> and <prefix>:active:<customer>.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
	now    func() time.Time
}

func NewRedisStore(rdb redis.Cmdable, opts ...Option) *RedisStore {
	o := buildOptions(opts)
	return &RedisStore{rdb: rdb, prefix: o.keyPrefix, now: o.now}
}

func (s *RedisStore) recordKey(customerNumber string) string {
	return s.prefix + ":app:" + customerNumber
}

func (s *RedisStore) markerKey(customerNumber string) string {
	return s.prefix + ":active:" + customerNumber
}

func (s *RedisStore) Find(ctx context.Context, customerNumber string) (*models.LoanApplication, error) {
	raw, err := s.rdb.Get(ctx, s.recordKey(customerNumber)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get application: %w", err)
	}

	var app models.LoanApplication
	if err := json.Unmarshal([]byte(raw), &app); err != nil {
		return nil, fmt.Errorf("decode application %s: %w", customerNumber, err)
	}
	return &app, nil
}

func (s *RedisStore) Save(ctx context.Context, app *models.LoanApplication) error {
	if app == nil || app.CustomerNumber == "" {
		return ErrInvalidApplication
	}
	app.UpdatedAt = s.now()

	data, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("encode application %s: %w", app.CustomerNumber, err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(app.CustomerNumber), string(data), 0)
		if app.Status.IsBlocking() {
			pipe.Set(ctx, s.markerKey(app.CustomerNumber), app.ID, 0)
		} else {
			pipe.Del(ctx, s.markerKey(app.CustomerNumber))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save application: %w", err)
	}
	return nil
}

func (s *RedisStore) TryLock(ctx context.Context, customerNumber string) (bool, error) {
	acquired, err := s.rdb.SetNX(ctx, s.markerKey(customerNumber), "locked", 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock: %w", err)
	}
	return acquired, nil
}

func (s *RedisStore) Unlock(ctx context.Context, customerNumber string) error {
	if err := s.rdb.Del(ctx, s.markerKey(customerNumber)).Err(); err != nil {
		return fmt.Errorf("redis unlock: %w", err)
	}
	return nil
}

func (s *RedisStore) HasActiveProcess(ctx context.Context, customerNumber string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.markerKey(customerNumber)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	app, err := s.Find(ctx, customerNumber)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return app.Status.IsBlocking(), nil
}
