package redis

import (
	"github.com/redis/go-redis/v9"
)

// Client is the Redis surface the run-state store depends on. It wraps
// redis.UniversalClient so tests can swap in miniredis or a mock.
type Client interface {
	redis.UniversalClient
}
