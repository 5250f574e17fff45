package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/faastrace/loadgen/pkg/workload"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	if err := os.WriteFile(path, []byte("csv: trace.csv\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MinioAddress != defaultMinioAddress {
		t.Errorf("MinioAddress = %q, want default", cfg.MinioAddress)
	}
	if cfg.BucketName != defaultBucketName {
		t.Errorf("BucketName = %q, want default", cfg.BucketName)
	}
	if cfg.BackendKind != "noop" {
		t.Errorf("BackendKind = %q, want noop", cfg.BackendKind)
	}
}

func TestApplyDefaultsOnFlagBuiltConfig(t *testing.T) {
	cfg := &Config{CSVPath: "trace.csv"}
	cfg.ApplyDefaults()
	if cfg.MinioAddress != defaultMinioAddress {
		t.Errorf("MinioAddress = %q, want default", cfg.MinioAddress)
	}
	if cfg.BucketName != defaultBucketName {
		t.Errorf("BucketName = %q, want default", cfg.BucketName)
	}
	if cfg.BackendKind != "noop" {
		t.Errorf("BackendKind = %q, want noop", cfg.BackendKind)
	}
}

func TestResolveMinuteRangeDefault(t *testing.T) {
	cfg := &Config{}
	r, err := cfg.ResolveMinuteRange()
	if err != nil {
		t.Fatalf("ResolveMinuteRange: %v", err)
	}
	if r != workload.DefaultMinuteRange() {
		t.Errorf("got %+v, want default", r)
	}
}

func TestResolveMinuteRangeParsed(t *testing.T) {
	cfg := &Config{MinuteRange: "2:3"}
	r, err := cfg.ResolveMinuteRange()
	if err != nil {
		t.Fatalf("ResolveMinuteRange: %v", err)
	}
	if r.First != 2 || r.Last != 3 {
		t.Errorf("got %+v", r)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")
	cfg := &Config{CSVPath: "trace.csv", Seed: 42}
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.CSVPath != "trace.csv" || loaded.Seed != 42 {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}
