/*
Package identity resolves login tokens to verified Discord identities.

The login flow (outside this server) stores each session in Redis under
"session:<token>" as a JSON document. A Resolver turns a token presented on the
WebSocket upgrade into the Discord id recorded there, so a join can be checked
against it.
*/
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTimeout = 5 * time.Second

	// KeyPrefix is the Redis key prefix of stored login sessions.
	KeyPrefix = "session:"
)

var (
	// ErrUnknownToken is returned when no login session is stored for the token.
	ErrUnknownToken = errors.New("identity: unknown or expired token")

	// ErrMalformedSession is returned when the stored session carries no Discord id.
	ErrMalformedSession = errors.New("identity: session record has no discord id")
)

// Resolver maps a login token to a verified identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// Config captures the settings for establishing a Redis connection.
type Config struct {
	Addr    string
	DB      int
	Timeout time.Duration
}

// Connect initialises a Redis client and validates connectivity with a ping.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// RedisResolver reads login sessions written by the auth flow.
type RedisResolver struct {
	client redis.Cmdable
}

// NewRedisResolver wraps a Redis client.
func NewRedisResolver(client redis.Cmdable) *RedisResolver {
	return &RedisResolver{client: client}
}

// Resolve returns the Discord id stored for token.
func (r *RedisResolver) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnknownToken
	}

	raw, err := r.client.Get(ctx, KeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", ErrUnknownToken
	}
	if err != nil {
		return "", fmt.Errorf("identity: redis get: %w", err)
	}

	return identityFromRecord(raw)
}

// sessionRecord is the stored login session. Older records only carry the
// nested Discord user object.
type sessionRecord struct {
	DiscordID   string `json:"discordId"`
	DiscordUser *struct {
		ID string `json:"id"`
	} `json:"discordUser"`
}

func identityFromRecord(raw []byte) (string, error) {
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", fmt.Errorf("identity: decode session: %w", err)
	}

	if rec.DiscordID != "" {
		return rec.DiscordID, nil
	}
	if rec.DiscordUser != nil && rec.DiscordUser.ID != "" {
		return rec.DiscordUser.ID, nil
	}

	return "", ErrMalformedSession
}
