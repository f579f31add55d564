package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "fountainhead:cursors:"
	// redisHashTTL bounds how long an abandoned document's cursor hash
	// lingers. Staleness filtering happens at the reader.
	redisHashTTL = 24 * time.Hour
)

// RedisService stores cursor records in one hash per document.
type RedisService struct {
	client *redis.Client
}

// NewRedisService constructs a RedisService.
func NewRedisService(client *redis.Client) (*RedisService, error) {
	if client == nil {
		return nil, errors.New("presence: redis client required")
	}
	return &RedisService{client: client}, nil
}

// Publish implements Service.
func (s *RedisService) Publish(ctx context.Context, documentID string, record CursorRecord) error {
	if documentID == "" || record.UserID == "" {
		return ErrInvalidRecord
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("presence: encode record: %w", err)
	}
	key := redisKeyPrefix + documentID
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, record.UserID, payload)
	pipe.Expire(ctx, key, redisHashTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence: publish: %w", err)
	}
	return nil
}

// Clear implements Service.
func (s *RedisService) Clear(ctx context.Context, documentID, userID string) error {
	if err := s.client.HDel(ctx, redisKeyPrefix+documentID, userID).Err(); err != nil {
		return fmt.Errorf("presence: clear: %w", err)
	}
	return nil
}

// List implements Service.
func (s *RedisService) List(ctx context.Context, documentID string) ([]CursorRecord, error) {
	raw, err := s.client.HGetAll(ctx, redisKeyPrefix+documentID).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: list: %w", err)
	}
	records := make([]CursorRecord, 0, len(raw))
	for _, payload := range raw {
		var record CursorRecord
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].UserID < records[j].UserID })
	return records, nil
}
