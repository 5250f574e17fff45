// Package worker implements FunctionWorker: the per-function task that
// generates inter-arrival times, rendezvouses with its siblings at the
// start of every scheduled minute, and issues requests through a
// backend.Backend while racing a shutdown signal.
package worker

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/faastrace/loadgen/pkg/backend"
	"github.com/faastrace/loadgen/pkg/iat"
	"github.com/faastrace/loadgen/pkg/invocationlog"
	"github.com/faastrace/loadgen/pkg/metrics"
	"github.com/faastrace/loadgen/pkg/payload"
	"github.com/faastrace/loadgen/pkg/runsync"
	"github.com/faastrace/loadgen/pkg/workload"
)

// Config is everything needed to construct one Worker from its CSV row.
type Config struct {
	Row           workload.FunctionRow
	MinuteRange   workload.MinuteRange
	SharedHorizon uint16 // run-wide max(len(rpm)) clipped to MinuteRange; every Worker's barrier loop runs to it
	IATKind       iat.Kind
	Seed          uint64
	Sync          *runsync.WorkerSync
	Backend       backend.Backend
	LogSender     *invocationlog.Sender // nil if invocation logging is disabled
	MinioAddress  string
	BucketName    string
	Kick          <-chan struct{} // closed once to release every Worker's start gate
	Shutdown      <-chan struct{} // closed once to broadcast shutdown
	Log           *zap.SugaredLogger
}

// Worker is one FunctionWorker: it owns its PRNG, its IAT generator, its
// fixed WorkloadRequest, its RPM schedule and a handle to the shared
// WorkerSync.
type Worker struct {
	bench       string
	wreq        *workload.WorkloadRequest
	rpm         []uint32
	minuteRange workload.MinuteRange
	horizon     uint16

	iatGen    iat.Generator
	rng       *rand.Rand
	minuteLen time.Duration

	sync      *runsync.WorkerSync
	backend   backend.Backend
	logSender *invocationlog.Sender
	kick      <-chan struct{}
	shutdown  <-chan struct{}
	log       *zap.SugaredLogger

	numRequests uint64
	genFailed   bool
}

// New parses the row's WorkloadRequest, fixes its payload exactly once,
// and seeds a per-Worker PRNG from the given seed. Any JSON parse or
// payload-fix error here is fatal and surfaces as a Client construction
// error.
func New(cfg Config) (*Worker, error) {
	var wreq workload.WorkloadRequest
	if err := wreq.UnmarshalJSON([]byte(cfg.Row.MappedWreq)); err != nil {
		return nil, fmt.Errorf("worker: parse mapped_wreq: %w", err)
	}

	fixed, err := payload.Fix(wreq.Payload, cfg.MinioAddress, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("worker: fix payload for %q: %w", wreq.Bench, err)
	}
	wreq.Payload = fixed

	return &Worker{
		bench:       wreq.Bench,
		wreq:        &wreq,
		rpm:         cfg.Row.RPM,
		minuteRange: cfg.MinuteRange,
		horizon:     cfg.SharedHorizon,
		iatGen:      iat.New(cfg.IATKind),
		rng:         rand.New(rand.NewSource(int64(cfg.Seed))),
		minuteLen:   time.Minute,
		sync:        cfg.Sync,
		backend:     cfg.Backend,
		logSender:   cfg.LogSender,
		kick:        cfg.Kick,
		shutdown:    cfg.Shutdown,
		log:         cfg.Log,
	}, nil
}

// rpmForMinute returns the target RPM for 1-based minute m, treating
// any minute past this Worker's own schedule as rpm=0. The Worker still
// arrives at the barrier for every minute of the run-wide horizon, so a
// sibling with a longer schedule is never left waiting on a barrier
// party that exited early; it just has nothing to send once its own
// schedule runs out.
func (w *Worker) rpmForMinute(m uint16) uint32 {
	if int(m) > len(w.rpm) {
		return 0
	}
	return w.rpm[m-1]
}

// Run blocks on the start gate, a single receive that resolves either
// because the Client kicked the run off or because shutdown fired
// before the kick ever arrived (in which case the Worker terminates
// without running a single minute), then for every scheduled minute
// rendezvouses at the barrier and issues requests per its sampled IAT
// sequence, racing shutdown and the minute-elapsed timer with shutdown
// given strict priority. It returns the number of requests issued.
func (w *Worker) Run() uint64 {
	if w.logSender != nil {
		defer w.logSender.Close()
	}

	select {
	case <-w.shutdown:
		return 0
	case <-w.kick:
	}

	for m := w.minuteRange.First; m <= w.horizon; m++ {
		// Sample the minute's IATs before the rendezvous, so generation
		// cost never eats into the minute itself. A Worker whose
		// generator has failed stops issuing but keeps arriving:
		// dropping out of the fixed-arity barrier would wedge every
		// sibling at the next minute.
		var seq iat.Sequence
		rpm := w.rpmForMinute(m)
		if !w.genFailed && rpm > 0 && m <= w.minuteRange.Last {
			s, err := w.iatGen.Gen(rpm, w.rng)
			if err != nil {
				if w.log != nil {
					w.log.Errorw("iat generation failed, worker stops issuing", "bench", w.bench, "minute", m, "error", err)
				}
				w.genFailed = true
			} else {
				seq = s
			}
		}

		if !w.sync.ArriveAtMinuteBarrier(w.shutdown) {
			return w.numRequests
		}
		if seq == nil {
			continue
		}

		deadline := time.Now().Add(w.minuteLen)
		if !w.runMinute(m, seq, deadline) {
			return w.numRequests
		}
	}
	return w.numRequests
}

// runMinute drives the biased select for one minute: shutdown beats the
// minute-elapsed timer, which beats the next IAT sleep. Returning false
// means shutdown fired and the Worker must stop entirely, not just move
// to the next minute.
func (w *Worker) runMinute(m uint16, seq iat.Sequence, deadline time.Time) bool {
	minuteTimer := time.NewTimer(time.Until(deadline))
	defer minuteTimer.Stop()

	for {
		// Priority check, evaluated non-blocking before the real
		// select: shutdown beats everything, and a minute that has
		// already elapsed must never issue one more request.
		select {
		case <-w.shutdown:
			return false
		default:
		}
		select {
		case <-minuteTimer.C:
			w.shedRemaining(seq)
			return true
		default:
		}

		us, ok := seq.Next()
		var iatCh <-chan time.Time
		if ok {
			iatCh = time.After(time.Duration(us) * time.Microsecond)
		}

		select {
		case <-w.shutdown:
			return false
		case <-minuteTimer.C:
			if ok {
				metrics.RecordShed(w.bench)
			}
			w.shedRemaining(seq)
			return true
		case <-iatCh:
			w.issue(m, deadline)
		}
	}
}

// shedRemaining counts every IAT the generator would still have
// produced this minute as shed: the minute elapsed first, so none of
// them are issued. This is the load-shedding the priority-biased
// select exists to produce.
func (w *Worker) shedRemaining(seq iat.Sequence) {
	for {
		if _, ok := seq.Next(); !ok {
			return
		}
		metrics.RecordShed(w.bench)
	}
}

func (w *Worker) issue(minute uint16, deadline time.Time) {
	invocationID := w.sync.NextInvocationID()
	budget := time.Until(deadline)
	if budget < 0 {
		budget = 0
	}

	stop := metrics.Timer(w.bench)
	err := w.backend.Issue(context.Background(), invocationID, w.wreq, minute, budget)
	stop()
	if err != nil {
		metrics.RecordFailed(w.bench)
		if w.log != nil {
			w.log.Warnw("issue failed", "bench", w.bench, "invocation_id", invocationID, "minute", minute, "error", err)
		}
		return
	}
	w.numRequests++
	metrics.RecordIssued(w.bench)

	if w.logSender != nil {
		if !w.logSender.Send(w.bench, invocationID, invocationlog.SendTimeout) {
			if w.log != nil {
				w.log.Warnw("invocation log send dropped", "bench", w.bench, "invocation_id", invocationID)
			}
		}
	}
}

// NumRequests returns the count of successfully issued requests so far.
func (w *Worker) NumRequests() uint64 { return w.numRequests }

// Bench returns the function id this Worker issues requests for.
func (w *Worker) Bench() string { return w.bench }
