package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/aradaody/defi-technique/internal/config"
)

// RedisStreamNotifier appends events to a Redis stream with XADD.
type RedisStreamNotifier struct {
	client *redis.Client
	stream string
}

func NewRedisStreamNotifier(cfg *config.NotifyConfig) *RedisStreamNotifier {
	return NewRedisStreamNotifierWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}), cfg.RedisStream)
}

func NewRedisStreamNotifierWithClient(client *redis.Client, stream string) *RedisStreamNotifier {
	return &RedisStreamNotifier{client: client, stream: stream}
}

func (n *RedisStreamNotifier) Name() string { return "redis_stream" }

func (n *RedisStreamNotifier) Notify(ctx context.Context, event *BatchCompleted) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = PublishToStream(ctx, n.client, n.stream, map[string]interface{}{
		"job":       event.Job,
		"run_id":    event.RunID,
		"upload_id": event.UploadID,
		"status":    event.Status,
		"data":      data,
		"timestamp": time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("xadd %s: %w", n.stream, err)
	}
	return nil
}

func (n *RedisStreamNotifier) Close() error {
	return n.client.Close()
}

// PublishToStream XADDs values, rendering every value as a string.
func PublishToStream(ctx context.Context, client *redis.Client, stream string, values map[string]interface{}) (string, error) {
	streamValues := make(map[string]interface{}, len(values))
	for k, v := range values {
		switch val := v.(type) {
		case string:
			streamValues[k] = val
		case []byte:
			streamValues[k] = string(val)
		case int, int32, int64:
			streamValues[k] = fmt.Sprintf("%d", val)
		case bool:
			streamValues[k] = fmt.Sprintf("%t", val)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			streamValues[k] = string(b)
		}
	}

	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: streamValues,
	}).Result()
}
