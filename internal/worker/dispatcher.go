// Package worker runs conversation turns on a fixed pool of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/chative-sales/server/internal/metrics"
	logx "github.com/chative-sales/server/pkg/logger"
)

var (
	ErrQueueFull = errors.New("dispatcher queue is full")
	ErrClosed    = errors.New("dispatcher is closed")
)

// Task is one unit of work. It receives the dispatcher's context, which is
// cancelled when Close gives up waiting.
type Task func(ctx context.Context) error

type Config struct {
	Workers   int
	QueueSize int
	// RetryIf selects errors worth retrying. Retries are off when it is nil
	// or RetryMaxElapsed is zero.
	RetryIf              func(error) bool
	RetryMaxElapsed      time.Duration
	RetryInitialInterval time.Duration
}

type job struct {
	key string
	run Task
}

// Dispatcher routes tasks with the same key to the same worker, so they run
// in submission order. Submit never blocks.
type Dispatcher struct {
	cfg    Config
	shards []chan job
	g      *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

func New(cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	perShard := cfg.QueueSize / cfg.Workers
	if perShard < 1 {
		perShard = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:    cfg,
		shards: make([]chan job, cfg.Workers),
		g:      &errgroup.Group{},
		ctx:    ctx,
		cancel: cancel,
	}
	for i := range d.shards {
		ch := make(chan job, perShard)
		d.shards[i] = ch
		d.g.Go(func() error {
			for j := range ch {
				metrics.QueueDepth.Dec()
				d.execute(j)
			}
			return nil
		})
	}
	logx.Info().Int("workers", cfg.Workers).Int("queue_per_worker", perShard).Msg("dispatcher started")
	return d
}

// Submit enqueues t under key. It returns ErrQueueFull when the key's worker
// has no room and ErrClosed after Close.
func (d *Dispatcher) Submit(key string, t Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.shards[d.shard(key)] <- job{key: key, run: t}:
		metrics.QueueDepth.Inc()
		return nil
	default:
		metrics.QueueRejectedTotal.Inc()
		return ErrQueueFull
	}
}

// Close stops accepting work and waits for queued tasks to finish. If ctx
// ends first, running tasks are cancelled and Close still waits for them.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- d.g.Wait() }()

	select {
	case err := <-done:
		d.cancel()
		return err
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) shard(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.shards)))
}

func (d *Dispatcher) execute(j job) {
	attempts := 0
	retry := d.cfg.RetryIf != nil && d.cfg.RetryMaxElapsed > 0
	op := func() error {
		attempts++
		err := d.safeRun(j)
		if err != nil && (!retry || !d.cfg.RetryIf(err)) {
			return backoff.Permanent(err)
		}
		if err != nil {
			logx.Warn().Err(err).Str("key", j.key).Int("attempt", attempts).Msg("task failed; retrying")
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = d.cfg.RetryMaxElapsed
	if d.cfg.RetryInitialInterval > 0 {
		b.InitialInterval = d.cfg.RetryInitialInterval
	}

	if err := backoff.Retry(op, backoff.WithContext(b, d.ctx)); err != nil {
		logx.Error().Err(err).Str("key", j.key).Int("attempts", attempts).Msg("task failed")
	}
}

func (d *Dispatcher) safeRun(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("key", j.key).Str("stack", string(debug.Stack())).Msgf("panic recovered: %v", r)
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return j.run(d.ctx)
}
