package csvsource

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.csv")
	data := "avg,mapped_wreq,rpm\n" +
		`0,"{""bench"":""f"",""payload"":""{}""}","[6]"` + "\n" +
		`1.5,"{""bench"":""g"",""payload"":""{}""}","[10,20]"` + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	rows, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Pavg != 0 || len(rows[0].RPM) != 1 || rows[0].RPM[0] != 6 {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].Pavg != 1.5 || len(rows[1].RPM) != 2 || rows[1].RPM[1] != 20 {
		t.Errorf("row 1 = %+v", rows[1])
	}
}

func TestLoadRejectsBadRPM(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.csv")
	data := "avg,mapped_wreq,rpm\n0,{},notjson\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed rpm column")
	}
}
