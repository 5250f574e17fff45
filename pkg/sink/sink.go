// Package sink collects response records from a pluggable sink backend
// and appends them to a run's output file, one JSON-encoded record per
// line. The source side of a run issues requests; the sink side is
// where a platform's responses are gathered and persisted for the
// experiment's analysis. The core knows only the Backend contract: what
// a response record looks like, and how it is produced, is entirely the
// backend's business.
package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// channelCapacity bounds the appender's ingress channel.
const channelCapacity = 32768

const writerBufferBytes = 64 * 1024

// Backend produces the response records a Client persists.
//
// Run sends records into out until the run is over and MUST close out
// before returning, so the appender can drain and exit. shutdown is the
// run-wide broadcast; a backend with nothing to produce may wait on it
// to keep the sink alive for the run's duration. Run returns the number
// of records it produced.
type Backend interface {
	Run(out chan<- any, shutdown <-chan struct{}) (uint64, error)
}

// NoOp produces no responses. In waiting mode it closes the appender's
// channel immediately (letting the appender exit early) but holds the
// sink open until shutdown fires, so a record-only run keeps a live
// sink task for its whole duration; otherwise it returns at once.
type NoOp struct {
	Waiting bool
}

func (n NoOp) Run(out chan<- any, shutdown <-chan struct{}) (uint64, error) {
	close(out)
	if n.Waiting {
		<-shutdown
	}
	return 0, nil
}

// Client owns the sink's output file and the appender that serialises
// response records into it.
type Client struct {
	f       *os.File
	w       *bufio.Writer
	backend Backend
	log     *zap.SugaredLogger
}

// NewClient opens path for exclusive creation (it must not already
// exist) and wraps it in a 64 KiB buffered writer. log may be nil.
func NewClient(path string, backend Backend, log *zap.SugaredLogger) (*Client, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open output file %s: %w", path, err)
	}
	return &Client{
		f:       f,
		w:       bufio.NewWriterSize(f, writerBufferBytes),
		backend: backend,
		log:     log,
	}, nil
}

// Run drives the backend and the file appender until the backend closes
// its channel and the appender has drained it, then flushes and closes
// the output file. It returns the number of responses appended. Call it
// exactly once.
func (c *Client) Run(shutdown <-chan struct{}) (uint64, error) {
	ch := make(chan any, channelCapacity)

	type appended struct {
		n   uint64
		err error
	}
	done := make(chan appended, 1)
	go func() {
		var n uint64
		enc := json.NewEncoder(c.w)
		for resp := range ch {
			n++
			if err := enc.Encode(resp); err != nil && c.log != nil {
				c.log.Errorw("failed to append response record", "error", err)
			}
		}
		err := c.w.Flush()
		if cerr := c.f.Close(); err == nil {
			err = cerr
		}
		done <- appended{n: n, err: err}
	}()

	produced, err := c.backend.Run(ch, shutdown)
	if err != nil && c.log != nil {
		c.log.Errorw("sink backend failed", "error", err)
	}

	res := <-done
	if c.log != nil {
		c.log.Infow("sink drained", "produced", produced, "appended", res.n)
	}
	if res.err != nil {
		return res.n, fmt.Errorf("sink: %w", res.err)
	}
	return res.n, nil
}
