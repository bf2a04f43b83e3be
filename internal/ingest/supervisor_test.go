package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradeloader/internal/domain"
)

// scriptedRunner returns the scripted errors in order, then nil forever.
type scriptedRunner struct {
	name string

	mu     sync.Mutex
	script []error
	runs   int
}

func (r *scriptedRunner) Name() string { return r.name }

func (r *scriptedRunner) Run(ctx context.Context, _ domain.TradeWriter, _ domain.ProgressRecorder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	if len(r.script) == 0 {
		return nil
	}
	err := r.script[0]
	r.script = r.script[1:]
	return err
}

func (r *scriptedRunner) Runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

type blockingRunner struct{}

func (blockingRunner) Name() string { return "blocking" }

func (blockingRunner) Run(ctx context.Context, _ domain.TradeWriter, _ domain.ProgressRecorder) error {
	<-ctx.Done()
	return ctx.Err()
}

type fakeAlerter struct {
	mu     sync.Mutex
	titles []string
}

func (a *fakeAlerter) Notify(_ context.Context, _, title, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.titles = append(a.titles, title)
	return nil
}

type fakeLocks struct {
	mu       sync.Mutex
	busy     int
	acquired []string
	// extends is how many extends succeed before the lease is lost; a
	// negative value never loses it.
	extends  int
	extended int
	released int
}

func (l *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (domain.Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy > 0 {
		l.busy--
		return nil, domain.ErrLockHeld
	}
	l.acquired = append(l.acquired, key)
	return &fakeLease{locks: l}, nil
}

func (l *fakeLocks) counts() (extended, released int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.extended, l.released
}

type fakeLease struct {
	locks *fakeLocks
}

func (f *fakeLease) Extend(context.Context, time.Duration) error {
	l := f.locks
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.extends >= 0 && l.extended >= l.extends {
		return domain.ErrLockLost
	}
	l.extended++
	return nil
}

func (f *fakeLease) Release() {
	f.locks.mu.Lock()
	defer f.locks.mu.Unlock()
	f.locks.released++
}

type fakeRunLog struct {
	mu       sync.Mutex
	outcomes []string
}

func (l *fakeRunLog) RecordRun(_ context.Context, source, outcome, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, source+":"+outcome)
	return nil
}

func job(r Runner) Job {
	return Job{Runner: r, Writer: &fakeWriter{}, Recorder: &fakeRecorder{}}
}

func TestSupervisorRetriesUntilEnd(t *testing.T) {
	r := &scriptedRunner{name: "liquid", script: []error{
		fmt.Errorf("fetch: %w", domain.ErrTransport),
		fmt.Errorf("fetch: %w", domain.ErrEmptyPage),
	}}
	sup := NewSupervisor([]Job{job(r)}, SupervisorConfig{RetryInterval: time.Millisecond, StopAtEnd: true}, nil, nil, quietLogger())
	runs := &fakeRunLog{}
	sup.RecordRunsTo(runs)

	require.NoError(t, sup.Run(context.Background()))
	assert.Equal(t, 3, r.Runs())
	assert.Equal(t, []string{"liquid:transport", "liquid:empty_page", "liquid:ok"}, runs.outcomes)

	snap := sup.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, StateDone, snap[0].State)
	assert.Equal(t, 3, snap[0].Runs)
	assert.Empty(t, snap[0].LastError)
}

func TestSupervisorStopsTerminalSourceAndAlerts(t *testing.T) {
	bad := &scriptedRunner{name: "bitmex", script: []error{
		fmt.Errorf("page: %w", domain.ErrBoundaryOverflow),
	}}
	good := &scriptedRunner{name: "bitflyer"}
	alerts := &fakeAlerter{}
	sup := NewSupervisor([]Job{job(bad), job(good)}, SupervisorConfig{RetryInterval: time.Millisecond, StopAtEnd: true}, nil, alerts, quietLogger())

	require.NoError(t, sup.Run(context.Background()))
	assert.Equal(t, 1, bad.Runs())
	assert.Equal(t, []string{"ingestion stopped: bitmex"}, alerts.titles)

	snap := sup.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "bitflyer", snap[0].Source)
	assert.Equal(t, StateDone, snap[0].State)
	assert.Equal(t, StateStopped, snap[1].State)
	assert.Equal(t, "overflow", snap[1].LastKind)
}

func TestSupervisorWaitsForLock(t *testing.T) {
	r := &scriptedRunner{name: "bitflyer"}
	locks := &fakeLocks{busy: 2, extends: -1}
	sup := NewSupervisor([]Job{job(r)}, SupervisorConfig{RetryInterval: time.Millisecond, LockTTL: time.Minute, StopAtEnd: true}, locks, nil, quietLogger())

	require.NoError(t, sup.Run(context.Background()))
	assert.Equal(t, 1, r.Runs())
	assert.Equal(t, []string{"ingest:bitflyer"}, locks.acquired)
}

// waitThenFinish blocks its first run until the context ends and finishes
// every later run at once.
type waitThenFinish struct {
	mu   sync.Mutex
	runs int
}

func (r *waitThenFinish) Name() string { return "bitmex" }

func (r *waitThenFinish) Run(ctx context.Context, _ domain.TradeWriter, _ domain.ProgressRecorder) error {
	r.mu.Lock()
	r.runs++
	first := r.runs == 1
	r.mu.Unlock()
	if !first {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestSupervisorExtendsLeaseDuringLongRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	locks := &fakeLocks{extends: -1}
	sup := NewSupervisor([]Job{job(blockingRunner{})}, SupervisorConfig{RetryInterval: time.Hour, LockTTL: 30 * time.Millisecond}, locks, nil, quietLogger())

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	require.Eventually(t, func() bool {
		extended, _ := locks.counts()
		return extended >= 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateRunning, sup.Snapshot()[0].State)
	cancel()
	require.NoError(t, <-done)

	_, released := locks.counts()
	assert.Equal(t, 1, released)
}

func TestSupervisorStopsRunWhenLeaseIsLost(t *testing.T) {
	r := &waitThenFinish{}
	locks := &fakeLocks{extends: 1}
	runs := &fakeRunLog{}
	sup := NewSupervisor([]Job{job(r)}, SupervisorConfig{RetryInterval: time.Millisecond, LockTTL: 30 * time.Millisecond, StopAtEnd: true}, locks, nil, quietLogger())
	sup.RecordRunsTo(runs)

	done := make(chan error, 1)
	go func() { done <- sup.Run(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run was not stopped after losing the lease")
	}

	assert.Equal(t, []string{"bitmex:lock_lost", "bitmex:ok"}, runs.outcomes)
	assert.Equal(t, []string{"ingest:bitmex", "ingest:bitmex"}, locks.acquired)
	_, released := locks.counts()
	assert.Equal(t, 2, released)
}

func TestSupervisorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sup := NewSupervisor([]Job{job(blockingRunner{})}, SupervisorConfig{RetryInterval: time.Hour}, nil, nil, quietLogger())

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	require.Eventually(t, func() bool {
		return sup.Snapshot()[0].State == StateRunning
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop")
	}
	assert.Equal(t, StateStopped, sup.Snapshot()[0].State)
}

func TestRunAllJoinsFailures(t *testing.T) {
	failing := &scriptedRunner{name: "a", script: []error{errors.New("boom")}}
	idle := &scriptedRunner{name: "b", script: []error{domain.ErrCaughtUp}}
	ok := &scriptedRunner{name: "c"}

	err := RunAll(context.Background(), []Job{job(failing), job(idle), job(ok)}, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.NotErrorIs(t, err, domain.ErrCaughtUp)

	require.NoError(t, RunAll(context.Background(), []Job{job(idle), job(ok)}, quietLogger()))
}
