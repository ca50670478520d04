package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/leonardotrapani/factstream/internal/model"
)

const (
	DefaultChannel   = "factstream:results"
	DefaultKeyPrefix = "factstream:session:"
)

// RedisClient is the subset of *redis.Client the result sink uses
type RedisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
}

// OpenRedis connects to addr and pings it
func OpenRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis PING %s: %w", addr, err)
	}
	return client, nil
}

// Redis publishes every verdict on a channel and keeps the latest verdict per
// claim in a hash keyed by session
type Redis struct {
	client  RedisClient
	channel string
	prefix  string
}

func NewRedis(client RedisClient, channel, prefix string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{client: client, channel: channel, prefix: prefix}
}

// Record is the payload published for each verdict
type Record struct {
	SessionID string                `json:"session_id"`
	Result    model.FactCheckResult `json:"result"`
}

// SessionOf returns the session a claim was detected in, "" for claims
// verified outside a streaming session
func SessionOf(c model.Claim) string {
	id, _ := c.Metadata["session_id"].(string)
	return id
}

// Key returns the hash holding a session's verdicts
func (r *Redis) Key(sessionID string) string {
	if sessionID == "" {
		sessionID = "adhoc"
	}
	return r.prefix + sessionID
}

func (r *Redis) Notify(ctx context.Context, res model.FactCheckResult) error {
	rec := Record{SessionID: SessionOf(res.Claim), Result: res}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	key := r.Key(rec.SessionID)
	if err := r.client.HSet(ctx, key, res.Claim.Text, payload).Err(); err != nil {
		return fmt.Errorf("redis HSET %s: %w", key, err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH %s: %w", r.channel, err)
	}
	log.Printf("sink: published %s verdict for session %q", res.Verdict, rec.SessionID)
	return nil
}
