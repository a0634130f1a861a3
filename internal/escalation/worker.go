package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/pkg/clock"
	"github.com/bissquit/oncall-garden/internal/pkg/ctxlog"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// WorkerConfig contains escalation worker configuration.
type WorkerConfig struct {
	PollInterval time.Duration
	TickTimeout  time.Duration
	BatchSize    int
	Concurrency  int
	LeaseTTL     time.Duration
}

// DefaultWorkerConfig returns default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval: 30 * time.Second,
		TickTimeout:  25 * time.Second,
		BatchSize:    100,
		Concurrency:  10,
		LeaseTTL:     time.Minute,
	}
}

// Lease claims an incident for one tick across processes.
type Lease interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// State is the worker loop state.
type State int32

// Worker states.
const (
	StateIdle State = iota
	StateScanning
	StateDispatching
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateDispatching:
		return "dispatching"
	default:
		return "idle"
	}
}

// TickResult summarizes one pass over the open incidents.
type TickResult struct {
	Scanned   int
	Advanced  int
	Completed int
	Conflicts int
	Claimed   int // claimed by another process
	Failed    int
}

// Worker periodically evaluates open incidents against their policies.
type Worker struct {
	config  WorkerConfig
	store   Store
	service *Service
	lease   Lease
	clock   clock.Clock

	state    atomic.Int32
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates a new escalation worker. A nil lease processes every
// incident without claiming it.
func NewWorker(config WorkerConfig, store Store, service *Service, lease Lease, c clock.Clock) *Worker {
	defaults := DefaultWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.TickTimeout <= 0 {
		config.TickTimeout = defaults.TickTimeout
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.LeaseTTL <= 0 {
		config.LeaseTTL = defaults.LeaseTTL
	}
	if c == nil {
		c = clock.System()
	}
	return &Worker{
		config:  config,
		store:   store,
		service: service,
		lease:   lease,
		clock:   c,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the polling loop.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("starting escalation worker",
		"poll_interval", w.config.PollInterval,
		"batch_size", w.config.BatchSize,
		"concurrency", w.config.Concurrency,
	)

	w.wg.Add(1)
	go w.run(ctx)
}

// Stop stops taking new ticks and waits for the in-flight one. It is safe
// to call more than once, and before Start.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		slog.Info("escalation worker stopped")
	})
}

// State returns the current loop state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
	workerState.Set(float64(s))
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs a single evaluation pass. All incidents of the pass are judged
// against the same instant.
func (w *Worker) Tick(ctx context.Context) TickResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, w.config.TickTimeout)
	defer cancel()

	ctx, logger := ctxlog.With(ctx, "tick_id", uuid.New().String())
	now := w.clock.Now()

	w.setState(StateScanning)
	defer w.setState(StateIdle)

	var result TickResult
	incidents, err := w.store.GetOpenIncidents(ctx, OpenIncidentFilter{Limit: w.config.BatchSize})
	if err != nil {
		logger.Error("failed to fetch open incidents", "error", err)
		recordTick(time.Since(start), "error")
		return result
	}
	result.Scanned = len(incidents)
	if len(incidents) == 0 {
		recordTick(time.Since(start), "empty")
		return result
	}

	w.setState(StateDispatching)
	logger.Debug("evaluating incidents", "count", len(incidents))

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(w.config.Concurrency)
	for _, inc := range incidents {
		g.Go(func() error {
			outcome := w.processOne(ctx, inc, now)
			recordProcessed(outcome)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeAdvanced:
				result.Advanced++
			case outcomeCompleted:
				result.Completed++
			case outcomeConflict:
				result.Conflicts++
			case outcomeClaimed:
				result.Claimed++
			case outcomeFailed:
				result.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	recordTick(time.Since(start), "ok")
	if result.Advanced > 0 || result.Completed > 0 || result.Failed > 0 {
		logger.Info("escalation tick finished",
			"scanned", result.Scanned,
			"advanced", result.Advanced,
			"completed", result.Completed,
			"conflicts", result.Conflicts,
			"failed", result.Failed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return result
}

type outcome string

const (
	outcomeNone      outcome = "none"
	outcomeAdvanced  outcome = "advanced"
	outcomeCompleted outcome = "completed"
	outcomeConflict  outcome = "conflict"
	outcomeClaimed   outcome = "claimed"
	outcomeFailed    outcome = "failed"
)

// processOne handles a single incident. Failures stay local to it.
func (w *Worker) processOne(ctx context.Context, inc *domain.Incident, now time.Time) (out outcome) {
	ctx, logger := ctxlog.With(ctx, "incident_id", inc.ID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing incident", "panic", fmt.Sprint(r))
			out = outcomeFailed
		}
	}()

	if w.lease != nil {
		key := "incident:" + inc.ID
		ok, err := w.lease.Acquire(ctx, key, w.config.LeaseTTL)
		if err != nil {
			logger.Error("failed to acquire incident lease", "error", err)
			return outcomeFailed
		}
		if !ok {
			logger.Debug("incident claimed by another worker")
			return outcomeClaimed
		}
		defer func() {
			if err := w.lease.Release(context.WithoutCancel(ctx), key); err != nil {
				logger.Warn("failed to release incident lease", "error", err)
			}
		}()
	}

	res, err := w.service.ProcessIncident(ctx, inc, now)
	if err != nil {
		logger.Error("failed to process incident", "error", err)
		return outcomeFailed
	}

	switch res {
	case ResultAdvanced:
		return outcomeAdvanced
	case ResultCompleted:
		return outcomeCompleted
	case ResultConflict:
		return outcomeConflict
	default:
		return outcomeNone
	}
}
