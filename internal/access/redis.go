package access

import (
	"context"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultRedisKey = "access_codes"

// RedisCodes checks codes against a Redis set so they can be issued and
// revoked without a restart. Redis errors deny access.
type RedisCodes struct {
	client *redis.Client
	key    string
	log    *zap.Logger
}

func NewRedisCodes(client *redis.Client, key string, log *zap.Logger) *RedisCodes {
	if key == "" {
		key = DefaultRedisKey
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisCodes{client: client, key: key, log: log}
}

func (r *RedisCodes) IsValidAccessCode(ctx context.Context, code string) bool {
	code = strings.TrimSpace(code)
	if code == "" || r.client == nil {
		return false
	}
	ok, err := r.client.SIsMember(ctx, r.key, code).Result()
	if err != nil {
		r.log.Warn("access code lookup failed", zap.String("key", r.key), zap.Error(err))
		return false
	}
	return ok
}

// Add issues codes.
func (r *RedisCodes) Add(ctx context.Context, codes ...string) error {
	if len(codes) == 0 {
		return nil
	}
	members := make([]interface{}, 0, len(codes))
	for _, c := range codes {
		members = append(members, c)
	}
	return r.client.SAdd(ctx, r.key, members...).Err()
}

// Revoke removes codes. Already-authorized sessions are unaffected.
func (r *RedisCodes) Revoke(ctx context.Context, codes ...string) error {
	if len(codes) == 0 {
		return nil
	}
	members := make([]interface{}, 0, len(codes))
	for _, c := range codes {
		members = append(members, c)
	}
	return r.client.SRem(ctx, r.key, members...).Err()
}

// List returns the issued codes in sorted order.
func (r *RedisCodes) List(ctx context.Context) ([]string, error) {
	codes, err := r.client.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(codes)
	return codes, nil
}
