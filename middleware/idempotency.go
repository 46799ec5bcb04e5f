package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
)

// ReplayStore persists responses keyed by Idempotency-Key so a retried
// initiation replays the original answer instead of minting a second
// transaction id.
type ReplayStore interface {
	// Fetch returns the stored reply and whether one exists.
	Fetch(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

type redisReplayStore struct {
	client *redis.Client
}

func (s *redisReplayStore) Fetch(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *redisReplayStore) Save(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, data, ttl).Err()
}

// storedReply is the serialized form of a replayable response.
type storedReply struct {
	StatusCode  int             `json:"status_code"`
	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body"`
}

// bodyCapturingWriter tees the response body so it can be saved after the
// handler runs.
type bodyCapturingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCapturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key on POST requests, backed by Redis.
func IdempotencyMiddleware(redisClient *redis.Client) gin.HandlerFunc {
	return idempotencyWithStore(&redisReplayStore{client: redisClient})
}

func idempotencyWithStore(store ReplayStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		// Scoped per route so the same key on a different endpoint cannot
		// replay a foreign response.
		storeKey := "idempotency:" + c.Request.Method + ":" + c.FullPath() + ":" + key

		data, found, err := store.Fetch(ctx, storeKey)
		if err != nil {
			// Store unavailable: serve the request without replay protection
			// rather than failing checkout.
			c.Next()
			return
		}
		if found {
			var reply storedReply
			if jsonErr := json.Unmarshal(data, &reply); jsonErr == nil {
				c.Data(reply.StatusCode, reply.ContentType, reply.Body)
				c.Abort()
				return
			}
		}

		w := &bodyCapturingWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		// 5xx answers are not replayed; the client should get a fresh attempt.
		status := c.Writer.Status()
		if status >= 200 && status < 500 {
			reply := storedReply{
				StatusCode:  status,
				ContentType: c.Writer.Header().Get("Content-Type"),
				Body:        w.body.Bytes(),
			}
			if data, err := json.Marshal(reply); err == nil {
				_ = store.Save(ctx, storeKey, data, idempotencyTTL)
			}
		}
	}
}
