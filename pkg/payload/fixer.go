// Package payload rewrites the two storage-endpoint keys inside a
// function's JSON payload before any requests for that function are
// issued. The transform must be byte-stable for every key it doesn't
// touch, including their relative order: encoding/json's map
// marshalling re-sorts keys alphabetically, so the object is walked as
// a token stream instead and re-emitted key by key, values kept as
// unparsed json.RawMessage.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	keyMinioAddress = "minio_address"
	keyBucketName   = "bucket_name"
)

// member is one key/raw-value pair of a JSON object, kept in source order.
type member struct {
	key string
	raw json.RawMessage
}

// Fix parses payload as a JSON object, overwrites the values of
// "minio_address" and "bucket_name" when present (leaving them untouched
// if already byte-identical to the target), and re-serialises the object
// with every other key, and their relative order, preserved exactly.
// Absent keys are never inserted. Fix is pure and idempotent.
func Fix(payload string, minioAddress, bucketName string) (string, error) {
	members, err := decodeObject(payload)
	if err != nil {
		return "", fmt.Errorf("payload: %w", err)
	}

	targetAddr, err := json.Marshal(minioAddress)
	if err != nil {
		return "", fmt.Errorf("payload: marshal minio_address: %w", err)
	}
	targetBucket, err := json.Marshal(bucketName)
	if err != nil {
		return "", fmt.Errorf("payload: marshal bucket_name: %w", err)
	}

	for i, m := range members {
		switch m.key {
		case keyMinioAddress:
			if !bytes.Equal(m.raw, targetAddr) {
				members[i].raw = targetAddr
			}
		case keyBucketName:
			if !bytes.Equal(m.raw, targetBucket) {
				members[i].raw = targetBucket
			}
		}
	}

	return encodeObject(members), nil
}

// decodeObject token-walks a JSON object literal, returning its members
// in source order with values kept as raw, unparsed JSON.
func decodeObject(payload string) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	var members []member
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode value for %q: %w", key, err)
		}
		members = append(members, member{key: key, raw: raw})
	}

	// Consume the closing '}'.
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return members, nil
}

// encodeObject re-serialises members as a single-line JSON object,
// preserving their order verbatim.
func encodeObject(members []member) string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(m.key)
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(m.raw)
	}
	buf.WriteByte('}')
	return buf.String()
}
