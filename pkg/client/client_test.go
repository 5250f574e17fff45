package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/faastrace/loadgen/pkg/backend"
	"github.com/faastrace/loadgen/pkg/iat"
	"github.com/faastrace/loadgen/pkg/workload"
)

// recordingBackend records every Issue call; it never fails.
type recordingBackend struct {
	mu  sync.Mutex
	ids []string
}

func (b *recordingBackend) Issue(ctx context.Context, invocationID string, wreq *workload.WorkloadRequest, minute uint16, budget time.Duration) error {
	b.mu.Lock()
	b.ids = append(b.ids, invocationID)
	b.mu.Unlock()
	return nil
}
func (b *recordingBackend) Clone() backend.Backend { return b }
func (b *recordingBackend) Close() error           { return nil }
func (b *recordingBackend) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.ids...)
}

func writeCSV(t *testing.T, dir string, rows [][3]string) string {
	t.Helper()
	path := filepath.Join(dir, "trace.csv")
	data := "avg,mapped_wreq,rpm\n"
	for _, r := range rows {
		data += r[0] + "," + r[1] + "," + r[2] + "\n"
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// High-RPM rows make the inter-arrival gaps small enough that a short
// run issues plenty of requests before the external shutdown fires;
// waiting out a full wall-clock minute is a job for the end-to-end
// harness, not for go test.
func TestClientAggregatesWorkerCountsAndKeepsIDsContiguous(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, [][3]string{
		{"0", `"{""bench"":""f"",""payload"":""{}""}"`, `"[60000]"`},
		{"0", `"{""bench"":""g"",""payload"":""{}""}"`, `"[60000]"`},
	})

	be := &recordingBackend{}
	c, err := New(Config{
		CSVPath:     path,
		MinuteRange: workload.DefaultMinuteRange(),
		IATKind:     iat.Equidistant,
		Seed:        FixedSeed(1),
		Backend:     be,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	external := make(chan struct{})
	time.AfterFunc(300*time.Millisecond, func() { close(external) })

	resultCh := make(chan uint64, 1)
	go func() {
		n, err := c.Run(external)
		if err != nil {
			t.Errorf("Run: %v", err)
		}
		resultCh <- n
	}()

	var total uint64
	select {
	case total = <-resultCh:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not complete after external shutdown")
	}

	ids := be.snapshot()
	if total == 0 {
		t.Fatal("expected some requests before shutdown")
	}
	if uint64(len(ids)) != total {
		t.Fatalf("backend saw %d calls, Run reported %d", len(ids), total)
	}

	sort.Strings(ids)
	for i, id := range ids {
		if len(id) != 24 {
			t.Fatalf("ids[%d] = %q, want 24 chars", i, id)
		}
		if i > 0 && ids[i-1] == id {
			t.Fatalf("duplicate invocation id %q", id)
		}
	}
	// With a start of 0 and no failed issues, the sorted ids must be
	// exactly {0 .. total-1}: monotonic allocation with no gaps.
	if ids[0] != "000000000000000000000000" {
		t.Errorf("lowest id = %q, want zero", ids[0])
	}
	if want := fmt.Sprintf("%024d", total-1); ids[len(ids)-1] != want {
		t.Errorf("highest id = %q, want %q", ids[len(ids)-1], want)
	}
}

func TestClientHonoursExternalShutdown(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, [][3]string{
		{"0", `"{""bench"":""f"",""payload"":""{}""}"`, `"[100000]"`},
	})

	be := &recordingBackend{}
	c, err := New(Config{
		CSVPath:     path,
		MinuteRange: workload.DefaultMinuteRange(),
		IATKind:     iat.Poisson,
		Seed:        FixedSeed(1),
		Backend:     be,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	external := make(chan struct{})
	time.AfterFunc(50*time.Millisecond, func() { close(external) })

	resultCh := make(chan uint64, 1)
	go func() {
		n, err := c.Run(external)
		if err != nil {
			t.Errorf("Run: %v", err)
		}
		resultCh <- n
	}()

	select {
	case <-resultCh:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not honor external shutdown within a bounded delay")
	}
}

func TestClientWritesInvocationLog(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, [][3]string{
		{"0", `"{""bench"":""f"",""payload"":""{}""}"`, `"[60000]"`},
	})
	logPath := filepath.Join(dir, "invocations.jsonl")

	be := &recordingBackend{}
	c, err := New(Config{
		CSVPath:      path,
		MinuteRange:  workload.DefaultMinuteRange(),
		IATKind:      iat.Equidistant,
		Seed:         FixedSeed(1),
		Backend:      be,
		InvocLogPath: logPath,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	external := make(chan struct{})
	time.AfterFunc(200*time.Millisecond, func() { close(external) })
	if _, err := c.Run(external); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("invocation log not written: %v", err)
	}
	if len(data) == 0 {
		t.Error("invocation log is empty")
	}
}

func TestClientRejectsEmptyCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(path, []byte("avg,mapped_wreq,rpm\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := New(Config{CSVPath: path, MinuteRange: workload.DefaultMinuteRange(), Backend: &recordingBackend{}})
	if err == nil {
		t.Fatal("expected error for CSV with no function rows")
	}
}

func TestClientPropagatesWorkerConstructionError(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, [][3]string{
		{"0", `"not json"`, `"[6]"`},
	})
	_, err := New(Config{
		CSVPath:     path,
		MinuteRange: workload.DefaultMinuteRange(),
		IATKind:     iat.Equidistant,
		Seed:        FixedSeed(1),
		Backend:     &recordingBackend{},
	})
	if err == nil {
		t.Fatal("expected worker construction error to surface from New")
	}
}

func TestSharedHorizonClipsToRange(t *testing.T) {
	rows := []workload.FunctionRow{
		{RPM: []uint32{1, 1, 1, 1, 1}},
		{RPM: []uint32{1, 1}},
	}
	r, err := workload.NewMinuteRange(1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got := sharedHorizon(rows, r); got != 3 {
		t.Errorf("sharedHorizon = %d, want 3", got)
	}
	if got := sharedHorizon(rows, workload.DefaultMinuteRange()); got != 5 {
		t.Errorf("sharedHorizon = %d, want 5", got)
	}
}

func TestSeedResolution(t *testing.T) {
	if FixedSeed(0).resolve() != seedSentinel {
		t.Error("FixedSeed(0) should resolve to the sentinel")
	}
	if FixedSeed(7).resolve() != 7 {
		t.Error("FixedSeed(7) should resolve to 7")
	}
}
