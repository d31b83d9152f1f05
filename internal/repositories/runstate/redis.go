package runstate

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
	redisclient "github.com/KirkDiggler/rpg-dungeon/internal/redis"
)

const (
	// Key pattern: dungeon_run:{run_id}
	runKeyPrefix = "dungeon_run:"
	defaultTTL   = 7 * 24 * time.Hour
)

func errRequired(what string) error {
	return errors.InvalidArgumentf("%s is required", what)
}

// RedisConfig holds the configuration for the Redis repository
type RedisConfig struct {
	Client redisclient.Client
	// TTL expires saves that are never resumed. 0 uses a week.
	TTL time.Duration
}

// Validate ensures all required dependencies are provided
func (c *RedisConfig) Validate() error {
	if c == nil {
		return errors.InvalidArgument("config is required")
	}
	vb := errors.NewValidationBuilder()
	if c.Client == nil {
		vb.RequiredField("Client")
	}
	if c.TTL < 0 {
		vb.Field("TTL", "must not be negative")
	}
	return vb.Build()
}

type redisRepository struct {
	client redisclient.Client
	ttl    time.Duration
}

// NewRedis creates a run-state repository backed by Redis
func NewRedis(cfg *RedisConfig) (Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultTTL
	}
	return &redisRepository{client: cfg.Client, ttl: ttl}, nil
}

var _ Repository = (*redisRepository)(nil)

// Save implements Repository
func (r *redisRepository) Save(ctx context.Context, input *SaveInput) (*SaveOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if err := validateState(input.State); err != nil {
		return nil, err
	}

	data, err := json.Marshal(input.State)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal run state")
	}

	if err := r.client.Set(ctx, buildKey(input.State.RunID), data, r.ttl).Err(); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "failed to store run state in Redis").
			WithMeta("run_id", input.State.RunID)
	}

	return &SaveOutput{RunID: input.State.RunID}, nil
}

// Get implements Repository
func (r *redisRepository) Get(ctx context.Context, input *GetInput) (*GetOutput, error) {
	if input == nil || input.RunID == "" {
		return nil, errRequired("run ID")
	}

	data, err := r.client.Get(ctx, buildKey(input.RunID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("run %s not found", input.RunID)
		}
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "failed to get run state from Redis")
	}

	var state entities.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal run %s", input.RunID)
	}

	return &GetOutput{State: &state}, nil
}

// Delete implements Repository
func (r *redisRepository) Delete(ctx context.Context, input *DeleteInput) (*DeleteOutput, error) {
	if input == nil || input.RunID == "" {
		return nil, errRequired("run ID")
	}

	n, err := r.client.Del(ctx, buildKey(input.RunID)).Result()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "failed to delete run state from Redis")
	}

	return &DeleteOutput{Deleted: n > 0}, nil
}

func buildKey(runID string) string {
	return runKeyPrefix + runID
}
