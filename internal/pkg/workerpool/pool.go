package workerpool

import (
	"context"
	"sync"
	"time"

	"github.com/paulexconde/questflow/internal/pkg/logger"
)

type Job func(ctx context.Context)

type WorkerPool struct {
	queue chan Job
	log   *logger.Logger
	wg    sync.WaitGroup
}

func NewWorkerPool(ctx context.Context, log *logger.Logger, workerCount int, queueSize int) *WorkerPool {
	pool := &WorkerPool{
		queue: make(chan Job, queueSize),
		log:   log.With("component", "workerpool"),
	}

	for i := 0; i < workerCount; i++ {
		go pool.worker(ctx)
	}

	return pool
}

func (p *WorkerPool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.log.Info("worker received shutdown signal")
			return
		case job, ok := <-p.queue:
			if !ok {
				// queue closed
				return
			}
			p.wg.Add(1)
			job(ctx)
			p.wg.Done()
		}
	}
}

func (p *WorkerPool) Submit(job Job) {
	select {
	case p.queue <- job:
		// job submitted successfully
	default:
		p.log.Warn("worker pool queue full, job dropped")
	}
}

func (p *WorkerPool) Shutdown(ctx context.Context) {
	close(p.queue)

	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		p.log.Warn("worker pool shutdown timed out")
	case <-done:
		p.log.Info("worker pool shutdown complete")
	}
}

func WithRetry(log *logger.Logger, retries int, delay time.Duration, job func() error) Job {
	return func(ctx context.Context) {
		for i := 0; i < retries; i++ {
			if ctx.Err() != nil {
				log.Info("job canceled before execution")
				return
			}

			err := job()

			if err == nil {
				return // success
			}
			log.Warn("job failed", "attempt", i+1, "retries", retries, "error", err)
			time.Sleep(delay)
		}
		log.Error("job failed after max retries")
	}
}
