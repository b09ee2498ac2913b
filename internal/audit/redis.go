package audit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/onnwee/calcapi/internal/tracing"
	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream operation logs are appended to.
const DefaultStream = "operation_logs"

// RedisRepository implements Repository on a Redis stream. Each record is one
// XADD entry whose fields mirror the SQL column names; NULL columns are omitted.
type RedisRepository struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisRepository creates a stream-backed repository. maxLen > 0 enables
// approximate trimming of the stream.
func NewRedisRepository(client *redis.Client, stream string, maxLen int64) (*RedisRepository, error) {
	if client == nil {
		return nil, ErrNilRepository
	}
	if stream == "" {
		stream = DefaultStream
	}
	if maxLen < 0 {
		return nil, errors.New("stream max length cannot be negative")
	}
	return &RedisRepository{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}, nil
}

// Insert appends the entry to the stream. The stream entry id becomes the record id.
func (r *RedisRepository) Insert(ctx context.Context, entry Entry) (rec *Record, err error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	ctx, end := tracing.StartStoreSpan(ctx, "redis", "XADD", r.stream)
	defer func() { end(err) }()

	rec = newRecord(entry)
	rec.CreatedAt = time.Now().UTC()

	values := map[string]interface{}{
		"operation_type": entry.OperationType,
		"status":         entry.Status,
		"created_at":     rec.CreatedAt.Format(time.RFC3339Nano),
	}
	setFloatField(values, "operand1", entry.Operand1)
	setFloatField(values, "operand2", entry.Operand2)
	setFloatField(values, "result", entry.Result)
	if entry.ErrorMessage != nil {
		values["error_message"] = *entry.ErrorMessage
	}
	if entry.RequestID != "" {
		values["request_id"] = entry.RequestID
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: values,
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	id, err := r.client.XAdd(ctx, args).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to append audit record: %w", err)
	}
	rec.ID = id
	return rec, nil
}

func setFloatField(values map[string]interface{}, key string, v *float64) {
	if v == nil {
		return
	}
	values[key] = strconv.FormatFloat(*v, 'g', -1, 64)
}
