package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/deimercs/gestorfacturas/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueEmail    = "jobs:email"
	QueueLimpieza = "jobs:limpieza"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// JobHandler processes the payload of one job. A returned error sends the
// job to the dead letter queue; there are no automatic retries.
type JobHandler interface {
	Process(ctx context.Context, payload json.RawMessage) error
}

// WorkerHandlers binds each queue to its processor. Nil handlers are skipped.
type WorkerHandlers struct {
	Email    JobHandler
	Limpieza JobHandler
}

func (h WorkerHandlers) forQueue(queue string) JobHandler {
	switch queue {
	case QueueEmail:
		return h.Email
	case QueueLimpieza:
		return h.Limpieza
	}
	return nil
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueEmail pushes an order email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, "email", payload)
}

// Limpiar enqueues the removal of orphaned uploads. Enqueue failures are
// logged; the files stay on disk until ordenesctl purge-orphans runs.
func (d *Dispatcher) Limpiar(ctx context.Context, rutas []string) {
	if len(rutas) == 0 {
		return
	}
	if err := d.enqueue(ctx, QueueLimpieza, "limpieza", LimpiezaJobPayload{Rutas: rutas}); err != nil {
		log.Error().Err(err).Strs("rutas", rutas).Msg("dispatcher: no se pudo encolar limpieza")
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming every queue.
// Each goroutine blocks on BRPOP, so idle workers cost no CPU. The returned
// WaitGroup is done once all workers observed ctx cancellation.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int, handlers WorkerHandlers, m *metrics.Metrics) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runWorker(ctx, rdb, id, handlers, m)
		}(i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
	return &wg
}

func runWorker(ctx context.Context, rdb *redis.Client, id int, handlers WorkerHandlers, m *metrics.Metrics) {
	queues := []string{QueueEmail, QueueLimpieza}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop, waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					log.Warn().Err(err).Int("worker", id).Msg("worker: BRPOP failed")
					time.Sleep(time.Second)
				}
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, handlers, m, result[0], result[1])
		}
	}
}

func processJob(ctx context.Context, rdb *redis.Client, handlers WorkerHandlers, m *metrics.Metrics, queue, raw string) {
	job, err := dispatch(ctx, handlers, queue, raw)
	if err == nil {
		m.JobProcesado(queue, true)
		return
	}
	log.Error().Err(err).Str("queue", queue).Str("type", job.Type).Msg("worker: job failed")
	m.JobProcesado(queue, false)

	if job.Payload == nil {
		// Undecodable envelope: keep the raw text as a JSON string.
		job.Payload, _ = json.Marshal(raw)
	}
	if dlqErr := SendToDLQ(ctx, rdb, queue, job, err); dlqErr != nil {
		log.Error().Err(dlqErr).Str("queue", queue).Str("raw", raw).Msg("worker: job lost")
	}
}

// dispatch decodes raw and runs the handler bound to queue.
func dispatch(ctx context.Context, handlers WorkerHandlers, queue, raw string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return job, fmt.Errorf("unmarshal job: %w", err)
	}
	h := handlers.forQueue(queue)
	if h == nil {
		return job, fmt.Errorf("no handler for queue %s", queue)
	}
	log.Debug().Str("type", job.Type).Str("queue", queue).Msg("processing job")
	return job, h.Process(ctx, job.Payload)
}
