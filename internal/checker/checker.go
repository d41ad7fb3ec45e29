// Package checker implements the proof-obligation scheduler. It defers,
// orders, and executes recursive proof verification, decoupling it from
// interactive execution latency: checked construction submits obligations
// and moves on while a single background worker verifies them, resolving
// nested obligations depth-first before their siblings.
package checker

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/scape1989/geo-logic/internal/composite"
	"github.com/scape1989/geo-logic/internal/geom"
)

const (
	// The worker briefly sleeps after this many loop iterations so an
	// interactive foreground stays responsive.
	yieldEvery = 5
	yieldPause = 10 * time.Millisecond

	// Witness lists in journal records are truncated past this count.
	maxRecordedArgs = 16
)

type task struct {
	obligation composite.Obligation
	numArgs    []geom.Witness
}

// message travels through the submission queue; reset messages are
// delivered in-band so submissions queued before a reset are discarded
// with it.
type message struct {
	task  *task
	reset bool
}

// Record is one completed verification attempt, handed to the Recorder.
type Record struct {
	Tool       string
	Args       string
	OK         bool
	Err        string
	Duration   time.Duration
	CheckedNum int64
}

// Recorder persists verification outcomes for diagnostics.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// ProgressFunc receives (completed, total) weights, where each obligation
// weighs its precomputed nested-obligation count. The total is fixed per
// batch; completed is the structural weight of finished work, an
// approximation rather than consumed time.
type ProgressFunc func(completed, total int)

// Checker is the proof-obligation scheduler. It is instance-based: tests
// and embedders construct their own rather than sharing process state.
//
// Lifecycle: before Start, submissions verify synchronously on the calling
// goroutine. After Start, cross-goroutine submissions flow through the
// queue to the worker, and submissions made from the worker itself (nested
// obligations discovered mid-verification) go straight onto the worker's
// LIFO stack. Disable discards submissions entirely.
type Checker struct {
	logger     *slog.Logger
	pending    *queue
	disabled   atomic.Bool
	started    atomic.Bool
	idle       atomic.Bool
	checkedNum atomic.Int64
	progress   ProgressFunc
	recorder   Recorder
	registry   registerer
	metrics    *metrics

	// Worker-only state, touched exclusively by the worker goroutine.
	stack      []task
	tasks      []task
	taskIndex  int
	batchStart time.Time
}

var _ composite.ProofChecker = (*Checker)(nil)

// Option configures a Checker.
type Option func(*Checker)

// WithProgress installs the periodic progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Checker) { c.progress = fn }
}

// WithRecorder installs a verification journal.
func WithRecorder(r Recorder) Option {
	return func(c *Checker) { c.recorder = r }
}

// WithRegistry registers the checker's metric collectors.
func WithRegistry(reg registerer) Option {
	return func(c *Checker) { c.registry = reg }
}

// New creates a checker. A nil logger falls back to slog.Default().
// The worker does not run until Start.
func New(logger *slog.Logger, opts ...Option) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Checker{
		logger:  logger,
		pending: newQueue(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics = newMetrics(c.registry, c.pending.len)
	return c
}

// Start launches the background worker. Idempotent; the worker runs for
// the remainder of the process.
func (c *Checker) Start() {
	if c.started.CompareAndSwap(false, true) {
		go c.run()
	}
}

// Running reports whether the background worker has been started.
func (c *Checker) Running() bool { return c.started.Load() }

// Enable re-enables verification after Disable.
func (c *Checker) Enable() { c.disabled.Store(false) }

// Disable makes Submit discard obligations without verifying. Used to
// skip checking entirely during bulk, non-interactive operations.
func (c *Checker) Disable() { c.disabled.Store(true) }

// CheckedNum returns the number of obligations the worker has attempted
// in the current accounting period (zeroed by Reset).
func (c *Checker) CheckedNum() int64 { return c.checkedNum.Load() }

// Submit hands an obligation to the scheduler.
//
// Disabled: the obligation is discarded. Worker not started: verification
// runs synchronously and its failure propagates to the caller. Worker
// running: a call from the worker's own verification pushes the nested
// obligation onto the depth-first stack; any other caller enqueues without
// blocking and never observes the outcome.
func (c *Checker) Submit(ctx context.Context, o composite.Obligation, numArgs []geom.Witness) error {
	if c.disabled.Load() {
		return nil
	}
	if !c.started.Load() {
		return o.ProofCheck(ctx, numArgs)
	}

	t := task{obligation: o, numArgs: numArgs}
	if c.fromWorker(ctx) {
		c.stack = append(c.stack, t)
		return nil
	}
	c.idle.Store(false)
	c.pending.push(message{task: &t})
	return nil
}

// Reset abandons all queued, staged, and stacked work and zeroes the
// progress counters. The worker keeps running. An obligation already being
// verified completes, but is not counted afterwards.
func (c *Checker) Reset() {
	c.pending.push(message{reset: true})
}

// Idle reports whether the worker has drained all submitted work.
func (c *Checker) Idle() bool {
	return c.started.Load() && c.idle.Load() && c.pending.len() == 0
}

// Wait blocks until the worker is idle or the context is done. Intended
// for batch drivers and tests; interactive callers never need it.
func (c *Checker) Wait(ctx context.Context) error {
	for {
		if c.Idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

type workerKey struct{}

func (c *Checker) fromWorker(ctx context.Context) bool {
	v, _ := ctx.Value(workerKey{}).(*Checker)
	return v == c
}

func (c *Checker) run() {
	ctx := context.WithValue(context.Background(), workerKey{}, c)
	sleepiness := 0
	for {
		for {
			m, ok := c.pending.pop(false)
			if !ok {
				break
			}
			c.consume(m)
		}

		for len(c.stack) == 0 && c.taskIndex >= len(c.tasks) {
			c.taskIndex = 0
			c.tasks = nil
			c.reportProgress()
			c.idle.Store(true)
			m, _ := c.pending.pop(true)
			c.idle.Store(false)
			c.consume(m)
		}

		if len(c.stack) == 0 && c.taskIndex < len(c.tasks) {
			c.stack = append(c.stack, c.tasks[c.taskIndex])
			c.taskIndex++
		}

		if sleepiness >= yieldEvery {
			sleepiness = 0
			c.reportProgress()
			time.Sleep(yieldPause)
		} else {
			sleepiness++
		}

		t := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		c.verify(ctx, t)

		if len(c.stack) == 0 && c.taskIndex == len(c.tasks) {
			c.logger.Debug("checker: batch complete",
				"checked", c.checkedNum.Load(),
				"weight", c.batchWeight(),
				"elapsed", time.Since(c.batchStart),
			)
		}
	}
}

func (c *Checker) consume(m message) {
	if m.reset {
		c.stack = nil
		c.tasks = nil
		c.taskIndex = 0
		c.checkedNum.Store(0)
		c.batchStart = time.Time{}
		return
	}
	if len(c.tasks) == 0 && len(c.stack) == 0 {
		c.batchStart = time.Now()
	}
	c.tasks = append(c.tasks, *m.task)
}

func (c *Checker) verify(ctx context.Context, t task) {
	n := c.checkedNum.Add(1)
	start := time.Now()
	err := t.obligation.ProofCheck(ctx, t.numArgs)
	dur := time.Since(start)

	c.metrics.checked.Inc()
	if err != nil {
		c.metrics.failed.Inc()
		c.logger.Warn("checker: proof check failed",
			"tool", t.obligation.Name(),
			"error", err,
		)
	}

	if c.recorder != nil {
		rec := Record{
			Tool:       t.obligation.Name(),
			Args:       formatArgs(t.numArgs),
			OK:         err == nil,
			Duration:   dur,
			CheckedNum: n,
		}
		if err != nil {
			rec.Err = err.Error()
		}
		if rerr := c.recorder.Record(ctx, rec); rerr != nil {
			c.logger.Warn("checker: journal write failed", "error", rerr)
		}
	}
}

func (c *Checker) batchWeight() int {
	size := 0
	for _, t := range c.tasks {
		size += t.obligation.DeepLenProof()
	}
	return size
}

func (c *Checker) reportProgress() {
	size := c.batchWeight()
	remains := 0
	for _, t := range c.stack {
		remains += t.obligation.DeepLenProof()
	}
	for _, t := range c.tasks[c.taskIndex:] {
		remains += t.obligation.DeepLenProof()
	}

	c.metrics.stackDepth.Set(float64(len(c.stack)))
	c.metrics.batchRemaining.Set(float64(remains))
	if c.progress != nil {
		c.progress(size-remains, size)
	}
}

func formatArgs(ws []geom.Witness) string {
	n := len(ws)
	truncated := false
	if n > maxRecordedArgs {
		n = maxRecordedArgs
		truncated = true
	}
	parts := make([]string, 0, n+1)
	for _, w := range ws[:n] {
		parts = append(parts, w.String())
	}
	if truncated {
		parts = append(parts, "...")
	}
	return strings.Join(parts, " ")
}
