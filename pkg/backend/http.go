package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/faastrace/loadgen/pkg/workload"
)

// HTTP issues each invocation as a POST to a single configured FaaS
// endpoint, with the remaining minute budget as the request deadline.
type HTTP struct {
	url    string
	client *http.Client
	pool   *bufferPool
}

// request is the body sent to the endpoint: the invocation id and
// minute travel alongside the WorkloadRequest so the receiving function
// can correlate its own logs.
type request struct {
	InvocationID string                    `json:"invocation_id"`
	Minute       uint16                    `json:"minute"`
	Wreq         *workload.WorkloadRequest `json:"wreq"`
}

// NewHTTP builds an HTTP backend posting to url. bufSize bounds the
// scratch-buffer pool used to marshal request bodies.
func NewHTTP(url string, bufSize int) *HTTP {
	if bufSize <= 0 {
		bufSize = 4096
	}
	return &HTTP{
		url:    url,
		client: &http.Client{},
		pool:   newBufferPool(bufSize),
	}
}

func (h *HTTP) Issue(ctx context.Context, invocationID string, wreq *workload.WorkloadRequest, minute uint16, budget time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	buf, err := h.pool.Get()
	if err != nil {
		return err
	}
	defer h.pool.Put(buf)

	body := bytes.NewBuffer(buf)
	if err := json.NewEncoder(body).Encode(request{InvocationID: invocationID, Minute: minute, Wreq: wreq}); err != nil {
		return fmt.Errorf("backend: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, body)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ErrBudgetExceeded
		}
		return fmt.Errorf("backend: %s: %w", invocationID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend: %s: endpoint %s returned %s", invocationID, h.url, resp.Status)
	}
	return nil
}

// Clone returns this backend itself: the *http.Client is safe for
// concurrent use and the scratch pool serialises its own free list, so
// one handle serves every Worker and Close unmaps every slab exactly
// once.
func (h *HTTP) Clone() Backend { return h }

func (h *HTTP) Close() error {
	return h.pool.Close()
}
