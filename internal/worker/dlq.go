package worker

// Dead letter lists, one per source queue: dlq:<queue>.
// Jobs are not retried automatically; an operator inspects the list and
// requeues with `ordenesctl replay-dlq`.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// DeadJob is a failed job plus the reason it failed.
type DeadJob struct {
	Queue    string          `json:"queue"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Error    string          `json:"error"`
	FailedAt time.Time       `json:"failed_at"`
}

func dlqKey(queue string) string { return DLQPrefix + queue }

// SendToDLQ records job as dead. The push outlives ctx cancellation so a job
// failing during shutdown is not lost.
func SendToDLQ(ctx context.Context, rdb *redis.Client, queue string, job Job, cause error) error {
	data, err := json.Marshal(DeadJob{
		Queue:    queue,
		Type:     job.Type,
		Payload:  job.Payload,
		Error:    cause.Error(),
		FailedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("dlq: marshal: %w", err)
	}
	if err := rdb.LPush(context.WithoutCancel(ctx), dlqKey(queue), data).Err(); err != nil {
		return fmt.Errorf("dlq: push %s: %w", dlqKey(queue), err)
	}
	log.Warn().Str("queue", queue).Str("type", job.Type).Str("reason", cause.Error()).
		Msg("dlq: job moved to dead letter queue")
	return nil
}

// DLQLength returns the number of dead jobs of queue.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, dlqKey(queue)).Result()
}

// PeekDLQ returns up to n dead jobs of queue, oldest first, without removing them.
func PeekDLQ(ctx context.Context, rdb *redis.Client, queue string, n int) ([]DeadJob, error) {
	if n <= 0 {
		return nil, nil
	}
	raws, err := rdb.LRange(ctx, dlqKey(queue), -int64(n), -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DeadJob, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		var d DeadJob
		if err := json.Unmarshal([]byte(raws[i]), &d); err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// ReplayDLQ moves up to max dead jobs of queue back onto queue, oldest first.
// Unreadable entries are dropped. Returns how many jobs were requeued.
func ReplayDLQ(ctx context.Context, rdb *redis.Client, queue string, max int) (int, error) {
	n := 0
	for n < max {
		raw, err := rdb.RPop(ctx, dlqKey(queue)).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return n, err
		}
		var d DeadJob
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			log.Error().Err(err).Str("queue", queue).Msg("dlq: entrada ilegible descartada")
			continue
		}
		job, err := json.Marshal(Job{Type: d.Type, Payload: d.Payload})
		if err != nil {
			return n, err
		}
		if err := rdb.LPush(ctx, queue, job).Err(); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
