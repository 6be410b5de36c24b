package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

type testDoc struct {
	Versioned
	Count int `json:"count"`
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")

	doc := testDoc{Count: 42}
	data, _ := json.Marshal(doc)
	if err := WriteLocked(path, data, time.Second); err != nil {
		t.Fatalf("write: %v", err)
	}

	raw, err := ReadLocked(path, time.Second)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got testDoc
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Count != 42 {
		t.Fatalf("expected Count=42, got %d", got.Count)
	}
}

func TestReadMissingFileReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	raw, err := ReadLocked(path, time.Second)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(raw) != 0 {
		t.Fatalf("expected empty content for a freshly created file, got %q", raw)
	}
}

func TestWithCASIncrementsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cas.json")

	newDoc := func() testDoc { return testDoc{} }
	getVersion := func(d testDoc) int { return d.Version }
	setVersion := func(d testDoc, v int) testDoc { d.Version = v; return d }

	mutate := func(d testDoc) (testDoc, bool, error) {
		d.Count++
		return d, true, nil
	}

	result, err := WithCAS(path, time.Second, newDoc, getVersion, setVersion, mutate)
	if err != nil {
		t.Fatalf("first CAS: %v", err)
	}
	if result.Count != 1 || result.Version != 1 {
		t.Fatalf("expected Count=1 Version=1, got %+v", result)
	}

	result, err = WithCAS(path, time.Second, newDoc, getVersion, setVersion, mutate)
	if err != nil {
		t.Fatalf("second CAS: %v", err)
	}
	if result.Count != 2 || result.Version != 2 {
		t.Fatalf("expected Count=2 Version=2, got %+v", result)
	}
}

func TestWithCASNoChangeSkipsWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cas2.json")

	newDoc := func() testDoc { return testDoc{} }
	getVersion := func(d testDoc) int { return d.Version }
	setVersion := func(d testDoc, v int) testDoc { d.Version = v; return d }

	noop := func(d testDoc) (testDoc, bool, error) {
		return d, false, nil
	}

	result, err := WithCAS(path, time.Second, newDoc, getVersion, setVersion, noop)
	if err != nil {
		t.Fatalf("CAS: %v", err)
	}
	if result.Version != 0 {
		t.Fatalf("expected untouched version 0, got %d", result.Version)
	}
}
