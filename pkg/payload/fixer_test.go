package payload

import (
	"encoding/json"
	"testing"
)

func TestFixRewritesManagedKeys(t *testing.T) {
	in := `{"minio_address":"old","bucket_name":"b","extra":1}`
	out, err := Fix(in, "new", "b")
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if got["minio_address"] != "new" {
		t.Errorf("minio_address = %v, want new", got["minio_address"])
	}
	if got["bucket_name"] != "b" {
		t.Errorf("bucket_name = %v, want b (unchanged)", got["bucket_name"])
	}
	if got["extra"] != float64(1) {
		t.Errorf("extra = %v, want 1", got["extra"])
	}
}

func TestFixIdempotent(t *testing.T) {
	in := `{"minio_address":"old","bucket_name":"b","extra":1}`
	once, err := Fix(in, "new", "b2")
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	twice, err := Fix(once, "new", "b2")
	if err != nil {
		t.Fatalf("Fix (second pass): %v", err)
	}
	if once != twice {
		t.Errorf("Fix not idempotent:\n once=%s\n twice=%s", once, twice)
	}
}

func TestFixDoesNotInjectMissingKeys(t *testing.T) {
	in := `{"x":1}`
	out, err := Fix(in, "new", "bucket")
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if _, ok := got["minio_address"]; ok {
		t.Error("minio_address should not be injected")
	}
	if _, ok := got["bucket_name"]; ok {
		t.Error("bucket_name should not be injected")
	}
	if got["x"] != float64(1) {
		t.Errorf("x = %v, want 1", got["x"])
	}
}

func TestFixNoopWhenNoManagedKeys(t *testing.T) {
	in := `{"x":1}`
	out, err := Fix(in, "new", "bucket")
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	var a, b interface{}
	json.Unmarshal([]byte(in), &a)
	json.Unmarshal([]byte(out), &b)
	ai, _ := json.Marshal(a)
	bi, _ := json.Marshal(b)
	if string(ai) != string(bi) {
		t.Errorf("expected value-equal round trip, in=%s out=%s", in, out)
	}
}

func TestFixPreservesKeyOrder(t *testing.T) {
	in := `{"z":1,"minio_address":"old","a":2,"bucket_name":"b","m":3}`
	out, err := Fix(in, "new", "newbucket")
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	want := `{"z":1,"minio_address":"new","a":2,"bucket_name":"newbucket","m":3}`
	if out != want {
		t.Errorf("order not preserved:\n got  =%s\n want =%s", out, want)
	}
}

func TestFixRejectsNonObject(t *testing.T) {
	if _, err := Fix(`[1,2,3]`, "a", "b"); err == nil {
		t.Fatal("expected error for non-object payload")
	}
	if _, err := Fix(`"just a string"`, "a", "b"); err == nil {
		t.Fatal("expected error for non-object payload")
	}
}

func TestFixSkipsAlreadyCorrectValue(t *testing.T) {
	in := `{"minio_address":"same"}`
	out, err := Fix(in, "same", "irrelevant")
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if out != in {
		t.Errorf("expected byte-identical output when already correct, got %s", out)
	}
}
