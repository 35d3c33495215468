package cache

import (
	"encoding/json"
	"testing"
)

func TestStore_MissThenHit(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	k := Key{CandidateHash: "abc", Level: "L1", DatasetHash: "xyz"}
	if _, ok, err := s.Get(k); err != nil || ok {
		t.Fatalf("expected a miss, got ok=%v err=%v", ok, err)
	}

	payload, _ := json.Marshal(map[string]float64{"sharpe": 1.23})
	want := Entry{Manifest: Manifest{CandidateHash: "abc", Level: "L1", DatasetHash: "xyz"}, Result: payload}
	if err := s.Put(k, want); err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.Get(k)
	if err != nil || !ok {
		t.Fatalf("expected a hit, got ok=%v err=%v", ok, err)
	}
	if got.Manifest.CandidateHash != "abc" || string(got.Result) != string(payload) {
		t.Fatalf("unexpected entry: %+v", got)
	}
}

func TestStore_DistinctKeysDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(dir)

	k1 := Key{CandidateHash: "a", Level: "L1", DatasetHash: "d"}
	k2 := Key{CandidateHash: "b", Level: "L1", DatasetHash: "d"}

	_ = s.Put(k1, Entry{Manifest: Manifest{CandidateHash: "a"}})
	if _, ok, _ := s.Get(k2); ok {
		t.Fatal("expected k2 to still miss after writing k1")
	}
}
