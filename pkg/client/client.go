// Package client implements SourceClient: it owns every FunctionWorker
// for a run, the shutdown broadcaster, and the optional
// InvocationLogger, and drives the run from construction through join.
package client

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/faastrace/loadgen/pkg/backend"
	"github.com/faastrace/loadgen/pkg/csvsource"
	"github.com/faastrace/loadgen/pkg/iat"
	"github.com/faastrace/loadgen/pkg/invocationlog"
	"github.com/faastrace/loadgen/pkg/runsync"
	"github.com/faastrace/loadgen/pkg/worker"
	"github.com/faastrace/loadgen/pkg/workload"
)

// seedSentinel is the fixed seed used when the caller asks for
// FixedSeed(0): a reproducible run without naming an arbitrary constant
// inline at every call site.
const seedSentinel = 0x0f0f0f0f0f0f0f0f

// Seed selects how the master PRNG is seeded: FixedSeed(0) uses a
// constant sentinel, FixedSeed(s) for any other s uses s directly, and
// RandomSeed uses system entropy. This mirrors the "Some(0) → fixed
// sentinel, Some(s) → s, None → system entropy" construction rule
// verbatim.
type Seed struct {
	set   bool
	value uint64
}

// FixedSeed returns a Seed pinned to value. Passing 0 selects the fixed
// sentinel rather than an all-zero PRNG state.
func FixedSeed(value uint64) Seed { return Seed{set: true, value: value} }

// RandomSeed selects system-entropy seeding.
func RandomSeed() Seed { return Seed{} }

func (s Seed) resolve() uint64 {
	if !s.set {
		return uint64(time.Now().UnixNano())
	}
	if s.value == 0 {
		return seedSentinel
	}
	return s.value
}

// Config configures one run's SourceClient.
type Config struct {
	CSVPath      string
	MinuteRange  workload.MinuteRange
	IATKind      iat.Kind
	Seed         Seed
	InvocIDStart uint64
	MinioAddress string
	BucketName   string
	Backend      backend.Backend // template; cloned once per Worker
	InvocLogPath string          // empty disables invocation logging
	Log          *zap.SugaredLogger
}

type workerResult struct {
	bench string
	n     uint64
}

// Client is SourceClient: it owns every Worker, the shutdown broadcast,
// and the optional InvocationLogger.
type Client struct {
	cfg     Config
	log     *zap.SugaredLogger
	workers []*worker.Worker
	results chan workerResult

	kick     chan struct{}
	shutdown chan struct{}
	once     sync.Once

	invLogger  *invocationlog.Logger
	invLogDone chan error
}

// New loads the CSV, computes the shared barrier horizon, builds
// WorkerSync, constructs one Worker per row (the first construction
// error is fatal and aborts the whole run), and spawns every Worker.
// Workers block on their start gate until Run's kick.
func New(cfg Config) (*Client, error) {
	rows, err := csvsource.Load(cfg.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("client: %s defines no function rows", cfg.CSVPath)
	}

	horizon := sharedHorizon(rows, cfg.MinuteRange)
	workerSync := runsync.NewWorkerSync(len(rows), cfg.InvocIDStart)
	masterRng := rand.New(rand.NewSource(int64(cfg.Seed.resolve())))

	c := &Client{
		cfg:      cfg,
		log:      cfg.Log,
		results:  make(chan workerResult, len(rows)),
		kick:     make(chan struct{}),
		shutdown: make(chan struct{}),
	}

	if cfg.InvocLogPath != "" {
		l, err := invocationlog.New(cfg.InvocLogPath)
		if err != nil {
			return nil, fmt.Errorf("client: %w", err)
		}
		c.invLogger = l
	}

	for i, row := range rows {
		var sender *invocationlog.Sender
		if c.invLogger != nil {
			sender = c.invLogger.NewSender()
		}

		w, err := worker.New(worker.Config{
			Row:           row,
			MinuteRange:   cfg.MinuteRange,
			SharedHorizon: horizon,
			IATKind:       cfg.IATKind,
			Seed:          masterRng.Uint64(),
			Sync:          workerSync,
			Backend:       cfg.Backend.Clone(),
			LogSender:     sender,
			MinioAddress:  cfg.MinioAddress,
			BucketName:    cfg.BucketName,
			Kick:          c.kick,
			Shutdown:      c.shutdown,
			Log:           cfg.Log,
		})
		if err != nil {
			return nil, fmt.Errorf("client: construct worker %d: %w", i, err)
		}
		c.workers = append(c.workers, w)
	}

	if c.invLogger != nil {
		c.invLogDone = make(chan error, 1)
		go func() { c.invLogDone <- c.invLogger.Run() }()
	}

	for _, w := range c.workers {
		w := w
		go func() { c.results <- workerResult{bench: w.Bench(), n: w.Run()} }()
	}

	return c, nil
}

// sharedHorizon is the run-wide max(len(rpm_f)) clipped to range: the
// minute every active Worker's barrier loop runs up to, regardless of
// its own row's schedule length. A Worker whose own schedule is shorter
// still arrives at every barrier up to the horizon, or the fixed-arity
// barrier would strand its longer-scheduled siblings.
func sharedHorizon(rows []workload.FunctionRow, r workload.MinuteRange) uint16 {
	var max int
	for _, row := range rows {
		if len(row.RPM) > max {
			max = len(row.RPM)
		}
	}
	if max > int(r.Last) {
		max = int(r.Last)
	}
	return uint16(max)
}

// Run kicks off every Worker, then concurrently awaits the external
// shutdown signal and each Worker's join, accumulating num_requests.
// external may be nil for a run that only ever stops once its schedule
// is exhausted. It returns the sum of every Worker's issued-request
// count.
func (c *Client) Run(external <-chan struct{}) (uint64, error) {
	close(c.kick)

	var total uint64
	for remaining := len(c.workers); remaining > 0; {
		select {
		case <-external:
			// A Worker may have already dropped its receiver (it
			// returned and its goroutine exited) by the time a second
			// external signal arrives; triggerShutdown is idempotent,
			// so that's a no-op here, and the still-running Workers
			// are the only ones left to force through their own
			// shutdown-select branch.
			c.triggerShutdown()
			external = nil // already broadcast; don't re-fire on a closed channel
		case r := <-c.results:
			total += r.n
			remaining--
			if c.log != nil {
				c.log.Infow("worker joined", "bench", r.bench, "num_requests", r.n)
			}
		}
	}

	if c.invLogger != nil {
		if err := <-c.invLogDone; err != nil && c.log != nil {
			c.log.Warnw("invocation logger exited with error", "error", err)
		}
	}

	if err := c.cfg.Backend.Close(); err != nil {
		if c.log != nil {
			c.log.Warnw("backend close failed", "error", err)
		}
		return total, fmt.Errorf("client: backend close: %w", err)
	}

	return total, nil
}

// triggerShutdown closes the shutdown broadcast exactly once, however
// many times Run observes the external signal.
func (c *Client) triggerShutdown() {
	c.once.Do(func() {
		close(c.shutdown)
		if c.log != nil {
			c.log.Infow("shutdown broadcast")
		}
	})
}
