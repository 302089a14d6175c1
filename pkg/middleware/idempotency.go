package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/nickruden/diplom-server/pkg/response"
)

const (
	// IdempotencyKeyHeader carries the client-chosen key of a purchase or refund attempt
	IdempotencyKeyHeader = "X-Idempotency-Key"
	// DefaultIdempotencyTTL keeps finished replies long enough for client retries
	DefaultIdempotencyTTL = 24 * time.Hour
	// DefaultProcessingTTL bounds how long a crashed request blocks its key
	DefaultProcessingTTL = 60 * time.Second

	idempotencyKeyPrefix = "idempotency:"
)

// RedisClient is the subset of go-redis the middleware needs
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyConfig configures replay protection
type IdempotencyConfig struct {
	Redis RedisClient
	// TTL of a finished reply
	TTL time.Duration
	// ProcessingTTL of the marker held while the first request runs
	ProcessingTTL time.Duration
	// Optional lets requests without the header through unprotected
	Optional bool
}

// DefaultIdempotencyConfig returns a config that requires the header
func DefaultIdempotencyConfig(redis RedisClient) *IdempotencyConfig {
	return &IdempotencyConfig{
		Redis:         redis,
		TTL:           DefaultIdempotencyTTL,
		ProcessingTTL: DefaultProcessingTTL,
	}
}

// replyRecord is what is stored under a key. Done is false while the first request runs.
type replyRecord struct {
	Fingerprint string `json:"fingerprint"`
	Done        bool   `json:"done"`
	Status      int    `json:"status,omitempty"`
	Body        string `json:"body,omitempty"`
}

// IdempotencyMiddleware makes a mutating request safe to retry: the first request with a key
// runs, later requests with the same key and payload get its reply replayed. Keys are scoped
// to the authenticated user. Redis failures let the request through.
func IdempotencyMiddleware(config *IdempotencyConfig) gin.HandlerFunc {
	if config.TTL <= 0 {
		config.TTL = DefaultIdempotencyTTL
	}
	if config.ProcessingTTL <= 0 {
		config.ProcessingTTL = DefaultProcessingTTL
	}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			if config.Optional {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, response.Error("MISSING_IDEMPOTENCY_KEY", IdempotencyKeyHeader+" header is required"))
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		ctx := c.Request.Context()
		redisKey := scopedKey(c, key)
		pending := &replyRecord{Fingerprint: fingerprint(c.Request, body)}

		acquired, err := storeRecord(ctx, config.Redis, redisKey, pending, config.ProcessingTTL, true)
		if err != nil {
			c.Next()
			return
		}
		if !acquired {
			existing, err := loadRecord(ctx, config.Redis, redisKey)
			if err != nil {
				// marker expired in between or redis is flaky
				c.Next()
				return
			}
			replay(c, existing, pending.Fingerprint)
			return
		}

		rw := &replyRecorder{ResponseWriter: c.Writer, status: http.StatusOK}
		c.Writer = rw

		c.Next()

		// server errors release the key so the client may retry
		if rw.status >= http.StatusInternalServerError {
			_ = config.Redis.Del(ctx, redisKey).Err()
			return
		}

		pending.Done = true
		pending.Status = rw.status
		pending.Body = rw.body.String()
		_, _ = storeRecord(ctx, config.Redis, redisKey, pending, config.TTL, false)
	}
}

func replay(c *gin.Context, existing *replyRecord, fp string) {
	switch {
	case existing.Fingerprint != fp:
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, response.Error("IDEMPOTENCY_KEY_REUSED", "Idempotency key already used with a different request"))
	case !existing.Done:
		c.AbortWithStatusJSON(http.StatusConflict, response.Error("REQUEST_IN_PROGRESS", "A request with this idempotency key is already being processed"))
	default:
		c.Data(existing.Status, "application/json; charset=utf-8", []byte(existing.Body))
		c.Abort()
	}
}

func scopedKey(c *gin.Context, key string) string {
	owner := "anonymous"
	if userID, ok := GetUserID(c); ok {
		owner = strconv.FormatInt(userID, 10)
	}
	return idempotencyKeyPrefix + owner + ":" + key
}

func fingerprint(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{0})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func storeRecord(ctx context.Context, rc RedisClient, key string, rec *replyRecord, ttl time.Duration, onlyNew bool) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}
	if onlyNew {
		return rc.SetNX(ctx, key, string(data), ttl).Result()
	}
	return true, rc.Set(ctx, key, string(data), ttl).Err()
}

func loadRecord(ctx context.Context, rc RedisClient, key string) (*replyRecord, error) {
	raw, err := rc.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	var rec replyRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// replyRecorder tees the reply so it can be stored
type replyRecorder struct {
	gin.ResponseWriter
	body   bytes.Buffer
	status int
}

func (w *replyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *replyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func (w *replyRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
