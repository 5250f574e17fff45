// Package invocationlog is the single background writer that persists
// (function_id, invocation_id) pairs for a run, independent of whatever
// backend.Backend the Workers are issuing requests through.
package invocationlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// ChannelCapacity is the bounded ingress channel's capacity. 2^15
// pairs absorbs several seconds of full-rate bursts before senders
// start timing out.
const ChannelCapacity = 32768

// SendTimeout is how long a Worker blocks trying to hand off a pair
// before giving up and dropping it.
const SendTimeout = 50 * time.Millisecond

const writerBufferBytes = 64 * 1024

type pair struct {
	functionID   string
	invocationID string
}

// Logger receives (function_id, invocation_id) pairs and serialises
// each as one line of JSON, `{"<invocation_id>":"<function_id>"}`,
// through a buffered writer.
//
// The channel has an obvious cyclic-looking ownership problem: the
// Client constructs the Logger (and so is the first holder of a
// sender-side reference) before it has created any Worker to hand a
// Sender to. If closing were driven naively by "reference count hit
// zero", the Logger could see zero outstanding senders and close
// before a single Worker had subscribed. The fix is the self-held
// reference tracked by selfDone below: it holds one extra count in the
// WaitGroup from construction until Run starts, at which point Run
// drops it explicitly through releaseSelf; after that, termination is a pure function of
// every Sender handed to a Worker having been closed.
type Logger struct {
	f        *os.File
	w        *bufio.Writer
	ch       chan pair
	wg       sync.WaitGroup
	selfDone int32 // 0 = not yet released by Run
	dropped  uint64
}

// New opens path for exclusive creation (it must not already exist),
// wraps it in a 64 KiB buffered writer, and returns a Logger ready to
// hand out Senders.
func New(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("invocationlog: open %s: %w", path, err)
	}

	l := &Logger{
		f:  f,
		w:  bufio.NewWriterSize(f, writerBufferBytes),
		ch: make(chan pair, ChannelCapacity),
	}
	l.wg.Add(1) // the self-held reference
	return l, nil
}

// Sender is the per-Worker handle used to forward one pair at a time.
// Workers never touch the Logger's channel directly.
type Sender struct {
	logger *Logger
	closed int32
}

// NewSender returns a handle a Worker uses to forward pairs. Every
// Sender a Client intends to hand to a Worker must be obtained before
// calling Run.
func (l *Logger) NewSender() *Sender {
	l.wg.Add(1)
	return &Sender{logger: l}
}

// Send attempts to forward (functionID, invocationID) within timeout.
// It reports false if the send timed out. The pair is then dropped:
// load generation wins over complete logging.
func (s *Sender) Send(functionID, invocationID string, timeout time.Duration) bool {
	select {
	case s.logger.ch <- pair{functionID: functionID, invocationID: invocationID}:
		return true
	case <-time.After(timeout):
		atomic.AddUint64(&s.logger.dropped, 1)
		return false
	}
}

// Close releases this Sender's reference. Once every Sender obtained
// from a Logger, plus the Logger's own self-held reference, has been
// released, Run's drain loop terminates. Close is safe to call more
// than once; only the first call counts.
func (s *Sender) Close() {
	if atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		s.logger.wg.Done()
	}
}

// Dropped returns the number of pairs dropped so far due to a timed-out
// send.
func (l *Logger) Dropped() uint64 {
	return atomic.LoadUint64(&l.dropped)
}

// releaseSelf drops the Logger's own self-held WaitGroup reference,
// exactly once.
func (l *Logger) releaseSelf() {
	if atomic.CompareAndSwapInt32(&l.selfDone, 0, 1) {
		l.wg.Done()
	}
}

// Run drains pairs until every Sender (and the Logger's own self-held
// reference) has been released, serialising each as one JSON line
// through the buffered writer, then flushes and returns. Call it
// exactly once, from its own goroutine.
func (l *Logger) Run() error {
	l.releaseSelf()
	go func() {
		l.wg.Wait()
		close(l.ch)
	}()

	enc := json.NewEncoder(l.w)
	var writeErr error
	for p := range l.ch {
		line := map[string]string{p.invocationID: p.functionID}
		if err := enc.Encode(line); err != nil && writeErr == nil {
			writeErr = fmt.Errorf("invocationlog: write line: %w", err)
		}
	}

	if err := l.w.Flush(); err != nil && writeErr == nil {
		writeErr = fmt.Errorf("invocationlog: flush: %w", err)
	}
	if err := l.f.Close(); err != nil && writeErr == nil {
		writeErr = fmt.Errorf("invocationlog: close: %w", err)
	}
	return writeErr
}
