// Package queue runs queued VQE jobs on a bounded worker pool.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/qvarlab/qvar/internal/ansatz"
	"github.com/qvarlab/qvar/internal/archive"
	"github.com/qvarlab/qvar/internal/backend"
	"github.com/qvarlab/qvar/internal/events"
	"github.com/qvarlab/qvar/internal/optimizer"
	"github.com/qvarlab/qvar/internal/pauli"
	"github.com/qvarlab/qvar/internal/runs"
	"github.com/qvarlab/qvar/internal/vqe"
)

const defaultBuffer = 64

// evaluations are flushed to the database in batches so a long
// optimization does not issue one INSERT per energy evaluation.
const flushEvery = 25

// Config wires the pool's collaborators.
type Config struct {
	Repository *runs.Repository
	Archive    *archive.Store // optional
	Bus        *events.Bus
	Ansatzes   *ansatz.Registry
	Backends   *backend.Registry
	Workers    int
	Buffer     int
	MaxEvals   int // optimizer evaluation budget per run, 0 for optimizer default
}

// Pool executes queued runs with a fixed number of workers.
type Pool struct {
	cfg  Config
	jobs chan string
	log  zerolog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	active  int
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewPool validates the config and creates an idle pool.
func NewPool(cfg Config, log zerolog.Logger) (*Pool, error) {
	if cfg.Repository == nil {
		return nil, fmt.Errorf("queue: repository is required")
	}
	if cfg.Bus == nil {
		return nil, fmt.Errorf("queue: event bus is required")
	}
	if cfg.Ansatzes == nil || cfg.Backends == nil {
		return nil, fmt.Errorf("queue: ansatz and backend registries are required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	return &Pool{
		cfg:  cfg,
		jobs: make(chan string, cfg.Buffer),
		log:  log.With().Str("component", "queue").Logger(),
	}, nil
}

// Start launches the workers. Calling Start twice is an error.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("queue: already started")
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.log.Info().Int("workers", p.cfg.Workers).Msg("Queue started")
	return nil
}

// Stop closes the queue and waits for in-flight runs to finish. Queued
// runs that were not picked up stay in the database as queued.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	if p.cancel != nil {
		p.cancel()
	}
	p.log.Info().Msg("Queue stopped")
}

// Enqueue submits a run UUID for execution. The lock is held across the
// send so Stop cannot close the channel mid-submit.
func (p *Pool) Enqueue(runUUID string) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return fmt.Errorf("queue: stopped")
	}
	select {
	case p.jobs <- runUUID:
		p.mu.Unlock()
		p.cfg.Bus.Publish(events.Event{
			Type:      events.RunQueued,
			RunID:     runUUID,
			Timestamp: time.Now(),
		})
		return nil
	default:
		p.mu.Unlock()
		return fmt.Errorf("queue: full")
	}
}

// Depth returns queued plus in-flight run counts.
func (p *Pool) Depth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs) + p.active
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", id).Logger()

	for runUUID := range p.jobs {
		if ctx.Err() != nil {
			return
		}
		p.mu.Lock()
		p.active++
		p.mu.Unlock()

		if err := p.execute(ctx, runUUID); err != nil {
			log.Error().Str("run", runUUID).Err(err).Msg("Run failed")
			p.fail(runUUID, err)
		}

		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}
}

func (p *Pool) execute(ctx context.Context, runUUID string) error {
	run, err := p.cfg.Repository.Get(runUUID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}

	op, err := pauli.Parse(run.Hamiltonian)
	if err != nil {
		return fmt.Errorf("parse hamiltonian: %w", err)
	}
	a, ok := p.cfg.Ansatzes.Get(run.Ansatz)
	if !ok {
		return fmt.Errorf("unknown ansatz %q", run.Ansatz)
	}
	b, err := p.cfg.Backends.Get(run.Backend)
	if err != nil {
		return err
	}
	opt, err := optimizer.Create(run.Optimizer, optimizer.Options{MaxEvals: p.cfg.MaxEvals})
	if err != nil {
		return err
	}

	if err := p.cfg.Repository.MarkRunning(runUUID); err != nil {
		return err
	}
	p.cfg.Bus.Publish(events.Event{
		Type:      events.RunStarted,
		RunID:     runUUID,
		Timestamp: time.Now(),
	})

	var pending []runs.Evaluation
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := p.cfg.Repository.AppendEvaluations(runUUID, pending); err != nil {
			p.log.Warn().Str("run", runUUID).Err(err).Msg("Failed to persist evaluations")
		}
		pending = pending[:0]
	}

	solver, err := vqe.New(a, op,
		vqe.WithBackend(b),
		vqe.WithShots(run.Shots),
		vqe.WithOptimizer(opt),
		vqe.WithProgress(func(it vqe.Iteration) {
			pending = append(pending, runs.Evaluation{
				Seq:    it.Seq,
				Energy: it.Energy,
				StdErr: it.StdErr,
				Params: it.Params,
			})
			if len(pending) >= flushEvery {
				flush()
			}
			p.cfg.Bus.Publish(events.Event{
				Type:      events.RunIteration,
				RunID:     runUUID,
				Timestamp: time.Now(),
				Payload:   it,
			})
		}),
	)
	if err != nil {
		return err
	}

	res, err := solver.Execute(ctx, run.InitialParams)
	flush()
	if err != nil {
		return err
	}

	if err := p.cfg.Repository.MarkCompleted(runUUID, res.Energy, res.Params, res.Evaluations); err != nil {
		return err
	}
	p.archiveRun(runUUID)
	p.cfg.Bus.Publish(events.Event{
		Type:      events.RunCompleted,
		RunID:     runUUID,
		Timestamp: time.Now(),
		Payload:   res,
	})
	p.log.Info().
		Str("run", runUUID).
		Float64("energy", res.Energy).
		Int("evaluations", res.Evaluations).
		Msg("Run completed")
	return nil
}

// fail records a failure; the run may be queued or running at this point.
func (p *Pool) fail(runUUID string, cause error) {
	if err := p.cfg.Repository.MarkFailed(runUUID, cause); err != nil {
		p.log.Warn().Str("run", runUUID).Err(err).Msg("Failed to mark run failed")
	}
	p.cfg.Bus.Publish(events.Event{
		Type:      events.RunFailed,
		RunID:     runUUID,
		Timestamp: time.Now(),
		Payload:   cause.Error(),
	})
}

func (p *Pool) archiveRun(runUUID string) {
	if p.cfg.Archive == nil {
		return
	}
	run, err := p.cfg.Repository.Get(runUUID)
	if err != nil {
		p.log.Warn().Str("run", runUUID).Err(err).Msg("Archive skipped: run not found")
		return
	}
	trace, err := p.cfg.Repository.GetEvaluations(runUUID)
	if err != nil {
		p.log.Warn().Str("run", runUUID).Err(err).Msg("Archive skipped: trace unavailable")
		return
	}
	if err := p.cfg.Archive.Save(archive.Snapshot{Run: *run, Trace: trace}); err != nil {
		p.log.Warn().Str("run", runUUID).Err(err).Msg("Archive write failed")
	}
}
