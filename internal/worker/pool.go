package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"product-relay/internal/models"
)

const (
	InsertQueue = "queue:catalog-insert"
	maxAttempts = 3
)

// Job is the queued form of one catalog entry.
type Job struct {
	Entry      models.CatalogEntry `json:"entry"`
	Attempt    int                 `json:"attempt"`
	EnqueuedAt time.Time           `json:"enqueued_at"`
}

// Queue defers catalog writes to the worker pool.
type Queue struct {
	redis *redis.Client
}

func NewQueue(redisClient *redis.Client) *Queue {
	return &Queue{redis: redisClient}
}

func (q *Queue) SaveEntry(ctx context.Context, entry *models.CatalogEntry) error {
	jobBytes, err := json.Marshal(Job{Entry: *entry, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode catalog job: %w", err)
	}
	if err := q.redis.RPush(ctx, InsertQueue, jobBytes).Err(); err != nil {
		return fmt.Errorf("failed to enqueue catalog job: %w", err)
	}
	return nil
}

type entryStore interface {
	SaveEntry(ctx context.Context, entry *models.CatalogEntry) error
}

type Pool struct {
	redis       *redis.Client
	store       entryStore
	logger      *zap.Logger
	workerCount int

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	popTimeout time.Duration
	requeue    func(job Job, delay time.Duration)

	mu        sync.Mutex
	nextRetry int
	pending   map[int]pendingRetry
}

type pendingRetry struct {
	timer   *time.Timer
	payload []byte
}

func NewPool(redisClient *redis.Client, store entryStore, logger *zap.Logger, workerCount int) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		redis:       redisClient,
		store:       store,
		logger:      logger,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		popTimeout:  5 * time.Second,
		pending:     make(map[int]pendingRetry),
	}
	p.requeue = p.requeueLater
	return p
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("catalog workers started", zap.Int("workers", p.workerCount))
}

// Stop interrupts blocked pops, waits for in-flight jobs to finish and pushes
// retries still waiting out their backoff back onto the queue, so they
// survive a restart. The Redis client must stay open until Stop returns.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.flushPending()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		if p.ctx.Err() != nil {
			p.logger.Debug("catalog worker shutting down", zap.Int("worker", id))
			return
		}

		result, err := p.redis.BLPop(p.ctx, p.popTimeout, InsertQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && p.ctx.Err() == nil {
				p.logger.Warn("catalog queue pop failed", zap.Int("worker", id), zap.Error(err))
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		// Jobs already popped are finished even during shutdown.
		p.process(context.Background(), id, result[1])
	}
}

func (p *Pool) process(ctx context.Context, workerID int, payload string) {
	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		p.logger.Error("dropping malformed catalog job", zap.Int("worker", workerID), zap.Error(err))
		return
	}

	err := p.store.SaveEntry(ctx, &job.Entry)
	if err == nil {
		p.logger.Info("catalog entry stored",
			zap.Int("worker", workerID),
			zap.String("product_url", job.Entry.Product.ProductURL),
			zap.Int("match_count", len(job.Entry.Matches)),
		)
		return
	}

	job.Attempt++
	if job.Attempt < maxAttempts {
		backoff := time.Duration(1<<uint(job.Attempt)) * time.Second
		p.logger.Warn("catalog entry failed, retrying",
			zap.String("product_url", job.Entry.Product.ProductURL),
			zap.Int("attempt", job.Attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		p.requeue(job, backoff)
		return
	}

	p.logger.Error("catalog entry failed permanently",
		zap.String("product_url", job.Entry.Product.ProductURL),
		zap.Int("attempt", job.Attempt),
		zap.Error(err),
	)
}

func (p *Pool) requeueLater(job Job, delay time.Duration) {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		p.logger.Error("failed to encode catalog job for retry", zap.Error(err))
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextRetry
	p.nextRetry++
	timer := time.AfterFunc(delay, func() {
		if payload, ok := p.takePending(id); ok {
			p.push(payload)
		}
	})
	p.pending[id] = pendingRetry{timer: timer, payload: jobBytes}
}

func (p *Pool) takePending(id int) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	retry, ok := p.pending[id]
	if !ok {
		return nil, false
	}
	delete(p.pending, id)
	return retry.payload, true
}

func (p *Pool) flushPending() {
	p.mu.Lock()
	retries := p.pending
	p.pending = make(map[int]pendingRetry)
	p.mu.Unlock()

	for _, retry := range retries {
		retry.timer.Stop()
		p.push(retry.payload)
	}
	if len(retries) > 0 {
		p.logger.Info("requeued pending catalog retries", zap.Int("count", len(retries)))
	}
}

func (p *Pool) push(payload []byte) {
	if err := p.redis.RPush(context.Background(), InsertQueue, payload).Err(); err != nil {
		p.logger.Error("failed to requeue catalog job", zap.Error(err))
	}
}
