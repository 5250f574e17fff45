// Package agent is the distributed-replay counterpart to a local run:
// an HTTP daemon exposing POST /run (accepts a run descriptor plus this
// node's slice of the trace, runs a client.Client locally, and returns
// the aggregate request count) and GET /health. A fresh Client is
// constructed per /run call; the daemon itself holds no run state.
package agent

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/faastrace/loadgen/pkg/backend"
	"github.com/faastrace/loadgen/pkg/client"
	"github.com/faastrace/loadgen/pkg/config"
)

// RunRequest is the body POSTed to /run: the run descriptor (its
// CSVPath is ignored; CSVContent carries this node's slice of rows
// instead, since the caller and the agent do not share a filesystem)
// plus that CSV content.
type RunRequest struct {
	Config     config.Config `json:"config"`
	CSVContent string        `json:"csv_content"`
}

// RunResponse is the JSON returned by /run.
type RunResponse struct {
	TotalRequests uint64 `json:"total_requests"`
}

// Server runs Client instances on demand, one per /run call.
type Server struct {
	log *zap.SugaredLogger
}

// NewServer builds a Server. log may be nil.
func NewServer(log *zap.SugaredLogger) *Server {
	return &Server{log: log}
}

// ListenAndServe blocks serving /run and /health on port.
func (s *Server) ListenAndServe(port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/run", s.handleRun)
	mux.HandleFunc("/health", s.handleHealth)

	addr := fmt.Sprintf(":%d", port)
	if s.log != nil {
		s.log.Infow("agent listening", "addr", addr)
	}
	return http.ListenAndServe(addr, mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
		return
	}

	tmp, err := os.CreateTemp("", "loadgen-agent-*.csv")
	if err != nil {
		http.Error(w, fmt.Sprintf("create scratch csv: %v", err), http.StatusInternalServerError)
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(req.CSVContent); err != nil {
		tmp.Close()
		http.Error(w, fmt.Sprintf("write scratch csv: %v", err), http.StatusInternalServerError)
		return
	}
	tmp.Close()

	cfg := req.Config
	cfg.CSVPath = tmp.Name()

	minuteRange, err := cfg.ResolveMinuteRange()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	iatKind, err := cfg.ResolveIATKind()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b, err := buildBackend(&cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	seed := client.FixedSeed(cfg.Seed)
	if cfg.RandomSeed {
		seed = client.RandomSeed()
	}
	c, err := client.New(client.Config{
		CSVPath:      cfg.CSVPath,
		MinuteRange:  minuteRange,
		IATKind:      iatKind,
		Seed:         seed,
		InvocIDStart: cfg.InvocIDStart,
		MinioAddress: cfg.MinioAddress,
		BucketName:   cfg.BucketName,
		Backend:      b,
		InvocLogPath: cfg.InvocationLogPath,
		Log:          s.log,
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("construct client: %v", err), http.StatusInternalServerError)
		return
	}

	total, err := c.Run(nil)
	if err != nil {
		http.Error(w, fmt.Sprintf("run failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(RunResponse{TotalRequests: total}); err != nil && s.log != nil {
		s.log.Warnw("failed to encode /run response", "error", err)
	}
}

// buildBackend selects the sink for one /run call from its descriptor.
// Output paths are node-local: a request log lands on the agent's own
// filesystem, and re-using a path across runs fails the second run's
// exclusive create.
func buildBackend(cfg *config.Config) (backend.Backend, error) {
	switch cfg.BackendKind {
	case "", "noop":
		return backend.NoOp{}, nil
	case "http":
		if cfg.BackendURL == "" {
			return nil, fmt.Errorf("agent: backend_url is required for the http backend")
		}
		return backend.NewHTTP(cfg.BackendURL, 4096), nil
	case "log":
		if cfg.RequestLogPath == "" {
			return nil, fmt.Errorf("agent: requests_out is required for the log backend")
		}
		return backend.NewLog(cfg.RequestLogPath)
	default:
		return nil, fmt.Errorf("agent: unknown backend kind %q", cfg.BackendKind)
	}
}
