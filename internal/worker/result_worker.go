package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/config"
	"github.com/stemsi/exquiz-backend/internal/metrics"
	"github.com/stemsi/exquiz-backend/internal/model"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// ResultWriter is the persistence side of the worker.
type ResultWriter interface {
	InsertBatch(ctx context.Context, results []*model.QuizResult) (int64, error)
	Insert(ctx context.Context, r *model.QuizResult) error
}

// ResultWorker drains the persist queue into quiz_results in batches.
type ResultWorker struct {
	store   ResultWriter
	rdb     *redis.Client
	requeue func(ctx context.Context, items []*model.QuizResult) error
	backoff time.Duration
	log     zerolog.Logger
}

func NewResultWorker(store ResultWriter, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	w := &ResultWorker{
		store:   store,
		rdb:     rdb,
		backoff: 2 * time.Second,
		log:     log.With().Str("component", "result_worker").Logger(),
	}
	w.requeue = w.pushBack
	return w
}

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	buffer := make([]*model.QuizResult, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {
			w.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// BLPop returns immediately if data exists.
		item, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistResultsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}
		if len(item) < 2 {
			continue
		}

		var r model.QuizResult
		if err := json.Unmarshal([]byte(item[1]), &r); err != nil {
			// Malformed payloads can never succeed.
			w.log.Error().Err(err).Str("data", item[1]).Msg("Discarding malformed result payload")
			continue
		}
		buffer = append(buffer, &r)
	}
}

// flushSafe tries a bulk copy, then row-by-row inserts, then requeues what
// still failed.
func (w *ResultWorker) flushSafe(ctx context.Context, batch []*model.QuizResult) {
	if len(batch) == 0 {
		return
	}

	n, err := w.store.InsertBatch(ctx, batch)
	if err == nil {
		metrics.ResultsPersisted.WithLabelValues("worker").Add(float64(n))
		w.log.Debug().Int64("count", n).Msg("Result batch persisted")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")

	failed := make([]*model.QuizResult, 0)
	for _, r := range batch {
		if err := w.store.Insert(ctx, r); err != nil {
			w.log.Error().Err(err).Str("quiz_id", r.QuizID).Str("email", r.ParticipantEmail).Msg("Insert failed, requeueing")
			failed = append(failed, r)
			continue
		}
		metrics.ResultsPersisted.WithLabelValues("worker").Inc()
	}

	if len(failed) == 0 {
		return
	}
	if err := w.requeue(ctx, failed); err != nil {
		w.log.Error().Err(err).Int("count", len(failed)).Msg("CRITICAL: Failed to requeue results. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(failed)).Msg("Requeued failed results")
	// Avoid thrashing while the database is down.
	time.Sleep(w.backoff)
}

func (w *ResultWorker) pushBack(ctx context.Context, items []*model.QuizResult) error {
	pipe := w.rdb.Pipeline()
	for _, r := range items {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		pipe.RPush(ctx, config.WorkerKey.PersistResultsQueue, data)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (w *ResultWorker) shutdown(buffer []*model.QuizResult) {
	w.log.Info().Int("pending", len(buffer)).Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.flushSafe(shutdownCtx, buffer)
}
