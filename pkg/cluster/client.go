// Package cluster fans a single trace out across a list of agent
// nodes, splitting the CSV's function rows roughly evenly and summing
// per-node totals. A function row is the unit of horizontal
// partitioning: each function's minute barrier then only synchronises
// with the other functions on its own node.
package cluster

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/faastrace/loadgen/pkg/agent"
	"github.com/faastrace/loadgen/pkg/config"
	"github.com/faastrace/loadgen/pkg/workload"
)

// Cluster dispatches one run across a fixed list of agent nodes.
type Cluster struct {
	nodes []string
}

// New returns a Cluster targeting the given "host:port" nodes.
func New(nodes []string) *Cluster {
	return &Cluster{nodes: nodes}
}

// Run splits rows evenly across c.nodes, posts each slice to its node's
// /run, and returns the sum of every node's total_requests. A node that
// would receive zero rows (more nodes than rows) is skipped entirely.
func (c *Cluster) Run(cfg config.Config, rows []workload.FunctionRow) (uint64, error) {
	if len(c.nodes) == 0 {
		return 0, fmt.Errorf("cluster: no nodes configured")
	}

	shares := splitRows(rows, len(c.nodes))

	var wg sync.WaitGroup
	totals := make([]uint64, len(c.nodes))
	errs := make([]error, len(c.nodes))

	for i, node := range c.nodes {
		if len(shares[i]) == 0 {
			continue
		}
		wg.Add(1)
		go func(idx int, host string, share []workload.FunctionRow) {
			defer wg.Done()
			n, err := runRemote(host, cfg, share)
			totals[idx] = n
			errs[idx] = err
		}(i, node, shares[i])
	}
	wg.Wait()

	var total uint64
	for i, err := range errs {
		if err != nil {
			return 0, fmt.Errorf("cluster: node %s: %w", c.nodes[i], err)
		}
		total += totals[i]
	}
	return total, nil
}

// splitRows divides rows into n roughly-even, contiguous shares.
func splitRows(rows []workload.FunctionRow, n int) [][]workload.FunctionRow {
	shares := make([][]workload.FunctionRow, n)
	base := len(rows) / n
	rem := len(rows) % n
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		shares[i] = rows[start : start+size]
		start += size
	}
	return shares
}

func runRemote(host string, cfg config.Config, rows []workload.FunctionRow) (uint64, error) {
	content, err := encodeCSV(rows)
	if err != nil {
		return 0, err
	}

	body, err := json.Marshal(agent.RunRequest{Config: cfg, CSVContent: content})
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("http://%s/run", host)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	c := &http.Client{Timeout: 10 * time.Minute}
	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("agent %s returned %s: %s", host, resp.Status, bytes.TrimSpace(b))
	}

	var res agent.RunResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return 0, err
	}
	return res.TotalRequests, nil
}

// encodeCSV renders rows back into the "avg,mapped_wreq,rpm" format
// csvsource.Load expects.
func encodeCSV(rows []workload.FunctionRow) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"avg", "mapped_wreq", "rpm"}); err != nil {
		return "", err
	}
	for _, row := range rows {
		rpmJSON, err := json.Marshal(row.RPM)
		if err != nil {
			return "", err
		}
		if err := w.Write([]string{
			strconv.FormatFloat(row.Pavg, 'g', -1, 64),
			row.MappedWreq,
			string(rpmJSON),
		}); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
