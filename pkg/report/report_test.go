package report

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAchievedRateConstantIntervalGivesExpectedRPM(t *testing.T) {
	// 10 requests per second, one second apart from each other would be
	// 60 RPM; here every 100ms, so 600 RPM.
	var samples []Sample
	for i := 0; i < 20; i++ {
		samples = append(samples, Sample{EpochUs: int64(i) * 100_000, Bench: "f"})
	}

	points := AchievedRate(samples)
	if len(points) == 0 {
		t.Fatal("expected at least one point")
	}
	for _, p := range points {
		if p.RPM < 500 || p.RPM > 700 {
			t.Errorf("point %+v: RPM far from the expected ~600", p)
		}
	}
}

func TestAchievedRateEmptyInput(t *testing.T) {
	if points := AchievedRate(nil); points != nil {
		t.Errorf("AchievedRate(nil) = %v, want nil", points)
	}
}

func TestAchievedRateCombinesMultipleFunctions(t *testing.T) {
	var samples []Sample
	for i := 0; i < 10; i++ {
		samples = append(samples, Sample{EpochUs: int64(i) * 1_000_000, Bench: "f"})
		samples = append(samples, Sample{EpochUs: int64(i) * 1_000_000, Bench: "g"})
	}
	points := AchievedRate(samples)
	if len(points) == 0 {
		t.Fatal("expected at least one point")
	}
	// Each function alone contributes 60 RPM; combined should be ~120.
	for _, p := range points {
		if p.RPM < 90 || p.RPM > 150 {
			t.Errorf("point %+v: combined RPM far from the expected ~120", p)
		}
	}
}

func TestReadSamplesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "requests.jsonl")
	data := `{"epoch_us":1000,"invocation_id":"000000000000000000000001","wreq":{"bench":"f","payload":"{}"}}
{"epoch_us":2000,"invocation_id":"000000000000000000000002","wreq":{"bench":"f","payload":"{}"}}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	samples, err := ReadSamples(path)
	if err != nil {
		t.Fatalf("ReadSamples: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	if samples[0].EpochUs != 1000 || samples[0].Bench != "f" {
		t.Errorf("samples[0] = %+v", samples[0])
	}
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	points := []Point{{Seconds: 0, RPM: 10}, {Seconds: 1, RPM: 20}}
	if err := WriteCSV(path, points); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty CSV output")
	}
}
