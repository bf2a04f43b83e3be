package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tradeloader/internal/domain"
	"github.com/alanyoungcy/tradeloader/internal/metrics"
)

// Job binds a Runner to the writer and recorder it runs against.
type Job struct {
	Runner   Runner
	Writer   domain.TradeWriter
	Recorder domain.ProgressRecorder
}

// Alerter receives operator notifications. notify.Notifier satisfies it.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// RunLog records finished runs. postgres.RunStore satisfies it.
type RunLog interface {
	RecordRun(ctx context.Context, source, outcome, errMsg string) error
}

// Status is a point-in-time view of one supervised source.
type Status struct {
	Source     string    `json:"source"`
	State      string    `json:"state"`
	Runs       int       `json:"runs"`
	LastError  string    `json:"last_error,omitempty"`
	LastKind   string    `json:"last_kind,omitempty"`
	LastRunEnd time.Time `json:"last_run_end,omitempty"`
}

// Source states reported by Status.
const (
	StateRunning = "running"
	StateWaiting = "waiting"
	StateLocked  = "locked"
	StateDone    = "done"
	StateStopped = "stopped"
)

// SupervisorConfig tunes retry and locking.
type SupervisorConfig struct {
	RetryInterval time.Duration
	// LockTTL bounds how long one process owns a source's progress slot.
	// Zero or a nil LockManager disables locking.
	LockTTL time.Duration
	// StopAtEnd ends a source's goroutine once a run reaches its end cursor
	// instead of polling for more data.
	StopAtEnd bool
}

// Supervisor keeps every job running: after any failure it waits
// RetryInterval and starts a fresh run, except after a terminal failure,
// which stops that source and raises an alert.
type Supervisor struct {
	jobs   []Job
	cfg    SupervisorConfig
	locks  domain.LockManager
	alerts Alerter
	runs   RunLog
	logger *slog.Logger

	mu     sync.RWMutex
	status map[string]*Status
}

// NewSupervisor creates a Supervisor. locks and alerts may be nil.
func NewSupervisor(jobs []Job, cfg SupervisorConfig, locks domain.LockManager, alerts Alerter, logger *slog.Logger) *Supervisor {
	status := make(map[string]*Status, len(jobs))
	for _, j := range jobs {
		status[j.Runner.Name()] = &Status{Source: j.Runner.Name(), State: StateWaiting}
	}
	return &Supervisor{
		jobs:   jobs,
		cfg:    cfg,
		locks:  locks,
		alerts: alerts,
		logger: logger.With(slog.String("component", "supervisor")),
		status: status,
	}
}

// RecordRunsTo sends every finished run to l. Call before Run.
func (s *Supervisor) RecordRunsTo(l RunLog) {
	s.runs = l
}

// Run starts one goroutine per job and blocks until ctx is cancelled or all
// sources have stopped.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("supervisor starting",
		slog.Int("sources", len(s.jobs)),
		slog.Duration("retry_interval", s.cfg.RetryInterval),
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, j := range s.jobs {
		g.Go(func() error {
			s.supervise(ctx, j)
			return nil
		})
	}

	err := g.Wait()
	s.logger.Info("supervisor stopped")
	return err
}

func (s *Supervisor) supervise(ctx context.Context, j Job) {
	name := j.Runner.Name()
	logger := s.logger.With(slog.String("source", name))

	for {
		err := s.runOnce(ctx, j)
		if ctx.Err() != nil {
			s.setState(name, StateStopped, nil)
			return
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			s.record(ctx, name, err)
		}

		switch {
		case err == nil:
			logger.Info("source reached end")
			if s.cfg.StopAtEnd {
				s.setState(name, StateDone, nil)
				return
			}
			s.setState(name, StateWaiting, nil)
		case errors.Is(err, domain.ErrLockHeld):
			logger.Info("progress slot owned by another process")
			s.setState(name, StateLocked, nil)
		case domain.IsIdle(err):
			logger.Info("source idle", slog.String("reason", err.Error()))
			s.setState(name, StateWaiting, err)
		case domain.IsTerminal(err):
			logger.Error("source stopped", slog.String("error", err.Error()))
			s.setState(name, StateStopped, err)
			s.alert(ctx, name, err)
			return
		default:
			logger.Warn("run failed, will retry",
				slog.String("kind", ErrorKind(err)),
				slog.String("error", err.Error()),
			)
			s.setState(name, StateWaiting, err)
		}

		if sleep(ctx, s.cfg.RetryInterval) != nil {
			s.setState(name, StateStopped, nil)
			return
		}
	}
}

// runOnce runs the job once, holding the source lock when locking is on.
func (s *Supervisor) runOnce(ctx context.Context, j Job) error {
	name := j.Runner.Name()
	if s.locks != nil && s.cfg.LockTTL > 0 {
		lease, err := s.locks.Acquire(ctx, "ingest:"+name, s.cfg.LockTTL)
		if err != nil {
			return fmt.Errorf("ingest: %s: lock: %w", name, err)
		}
		defer lease.Release()

		runCtx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)
		go s.keepLease(runCtx, cancel, name, lease)

		err = s.run(runCtx, j)
		if cause := context.Cause(runCtx); errors.Is(cause, domain.ErrLockLost) && ctx.Err() == nil {
			return fmt.Errorf("ingest: %s: %w", name, cause)
		}
		return err
	}
	return s.run(ctx, j)
}

func (s *Supervisor) run(ctx context.Context, j Job) error {
	name := j.Runner.Name()
	s.setState(name, StateRunning, nil)
	metrics.SourceUp.WithLabelValues(name).Set(1)
	defer metrics.SourceUp.WithLabelValues(name).Set(0)

	return j.Runner.Run(ctx, j.Writer, j.Recorder)
}

// keepLease extends the lease every third of its TTL until ctx ends. A
// failed extend cancels the run, since another process may now own the slot.
func (s *Supervisor) keepLease(ctx context.Context, cancel context.CancelCauseFunc, name string, lease domain.Lease) {
	ticker := time.NewTicker(max(s.cfg.LockTTL/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lease.Extend(ctx, s.cfg.LockTTL); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("lock extend failed, stopping run",
					slog.String("source", name),
					slog.String("error", err.Error()),
				)
				if !errors.Is(err, domain.ErrLockLost) {
					err = fmt.Errorf("%w: %w", domain.ErrLockLost, err)
				}
				cancel(err)
				return
			}
		}
	}
}

func (s *Supervisor) record(ctx context.Context, name string, err error) {
	if s.runs == nil {
		return
	}
	outcome, msg := "ok", ""
	if err != nil {
		outcome, msg = ErrorKind(err), err.Error()
	}
	if rerr := s.runs.RecordRun(ctx, name, outcome, msg); rerr != nil {
		s.logger.Warn("run history write failed",
			slog.String("source", name),
			slog.String("error", rerr.Error()),
		)
	}
}

func (s *Supervisor) alert(ctx context.Context, name string, err error) {
	if s.alerts == nil {
		return
	}
	title := fmt.Sprintf("ingestion stopped: %s", name)
	if nerr := s.alerts.Notify(ctx, "source_stopped", title, err.Error()); nerr != nil {
		s.logger.Warn("alert failed",
			slog.String("source", name),
			slog.String("error", nerr.Error()),
		)
	}
}

func (s *Supervisor) setState(name, state string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status[name]
	if st == nil {
		st = &Status{Source: name}
		s.status[name] = st
	}
	if state == StateRunning {
		st.Runs++
	} else if st.State == StateRunning {
		st.LastRunEnd = time.Now().UTC()
	}
	st.State = state
	if err != nil {
		st.LastError = err.Error()
		st.LastKind = ErrorKind(err)
	} else if state == StateDone || state == StateWaiting {
		st.LastError, st.LastKind = "", ""
	}
}

// Snapshot returns the status of every source ordered by name.
func (s *Supervisor) Snapshot() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Status, 0, len(s.status))
	for _, st := range s.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// RunAll runs every job once, concurrently, without retry. Failures are
// joined; idle sources are not failures.
func RunAll(ctx context.Context, jobs []Job, logger *slog.Logger) error {
	errs := make([]error, len(jobs))

	var g errgroup.Group
	for i, j := range jobs {
		g.Go(func() error {
			err := j.Runner.Run(ctx, j.Writer, j.Recorder)
			switch {
			case err == nil:
				logger.Info("source run complete", slog.String("source", j.Runner.Name()))
			case domain.IsIdle(err):
				logger.Info("source idle",
					slog.String("source", j.Runner.Name()),
					slog.String("reason", err.Error()),
				)
			default:
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
