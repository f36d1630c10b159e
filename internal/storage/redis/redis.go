package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mwx2006/blessing-skin-server/internal/storage"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisRepo struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisRepo{
		client: client,
	}, nil
}

// NewWithClient wraps an existing client (for testing).
func NewWithClient(client *redis.Client) *RedisRepo {
	return &RedisRepo{client: client}
}

// RecordLoginFailure atomically increments the failed-login counter for
// the address key and renews its expiry. Returns the new count.
func (r *RedisRepo) RecordLoginFailure(ctx context.Context, addressKey string, ttl time.Duration) (int64, error) {
	const op = "storage.redis.RecordLoginFailure"

	key := loginFailsKey(addressKey)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return incr.Val(), nil
}

// LoginFailures reads the counter without mutating it. A missing key
// reads as zero.
func (r *RedisRepo) LoginFailures(ctx context.Context, addressKey string) (int64, error) {
	const op = "storage.redis.LoginFailures"

	val, err := r.client.Get(ctx, loginFailsKey(addressKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

// ClearLoginFailures removes the counter entirely.
func (r *RedisRepo) ClearLoginFailures(ctx context.Context, addressKey string) error {
	const op = "storage.redis.ClearLoginFailures"

	if err := r.client.Del(ctx, loginFailsKey(addressKey)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ReserveMailCooldown atomically claims the per-address mail cooldown
// slot via SETNX. Returns false when the window is still active.
func (r *RedisRepo) ReserveMailCooldown(ctx context.Context, addressKey string, window time.Duration) (bool, error) {
	const op = "storage.redis.ReserveMailCooldown"

	reserved, err := r.client.SetNX(ctx, lastMailKey(addressKey), time.Now().Unix(), window).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return reserved, nil
}

// ReleaseMailCooldown frees a previously reserved slot, used when the
// mail was never dispatched.
func (r *RedisRepo) ReleaseMailCooldown(ctx context.Context, addressKey string) error {
	const op = "storage.redis.ReleaseMailCooldown"

	if err := r.client.Del(ctx, lastMailKey(addressKey)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// NewSession establishes an authenticated session for the account and
// returns its opaque token.
func (r *RedisRepo) NewSession(ctx context.Context, uid int64, ttl time.Duration) (string, error) {
	const op = "storage.redis.NewSession"

	token := uuid.NewString()

	if err := r.client.Set(ctx, sessionKey(token), uid, ttl).Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

func (r *RedisRepo) SessionUser(ctx context.Context, token string) (int64, error) {
	const op = "storage.redis.SessionUser"

	uid, err := r.client.Get(ctx, sessionKey(token)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, storage.ErrSessionNotFound
		}

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return uid, nil
}

func (r *RedisRepo) DeleteSession(ctx context.Context, token string) error {
	const op = "storage.redis.DeleteSession"

	if err := r.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// PutCaptcha binds a challenge phrase to the caller's session.
func (r *RedisRepo) PutCaptcha(ctx context.Context, sessionID, phrase string, ttl time.Duration) error {
	const op = "storage.redis.PutCaptcha"

	if err := r.client.Set(ctx, captchaKey(sessionID), phrase, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// TakeCaptcha returns the stored phrase and removes it, so a phrase is
// consumed on its first verification attempt regardless of outcome.
func (r *RedisRepo) TakeCaptcha(ctx context.Context, sessionID string) (string, error) {
	const op = "storage.redis.TakeCaptcha"

	phrase, err := r.client.GetDel(ctx, captchaKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", storage.ErrCaptchaNotFound
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return phrase, nil
}

// RevokeToken blacklists a bearer token id until its natural expiry.
func (r *RedisRepo) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	const op = "storage.redis.RevokeToken"

	if err := r.client.Set(ctx, revokedKey(jti), "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RedisRepo) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	const op = "storage.redis.IsTokenRevoked"

	n, err := r.client.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

func (r *RedisRepo) Close() {
	r.client.Close()
}

func loginFailsKey(addressKey string) string {
	return "login_fails:" + addressKey
}

func lastMailKey(addressKey string) string {
	return "last_mail:" + addressKey
}

func sessionKey(token string) string {
	return "session:" + token
}

func captchaKey(sessionID string) string {
	return "captcha:" + sessionID
}

func revokedKey(jti string) string {
	return "revoked:" + jti
}
