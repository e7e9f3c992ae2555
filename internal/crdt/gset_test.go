package crdt

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestInsertIdempotent(t *testing.T) {
	s := New()
	s.Insert("hello")
	s.Insert("hello")
	if got := s.Len(); got != 1 {
		t.Fatalf("expected 1 element after duplicate insert, got %d", got)
	}
}

func TestMergeIsUnion(t *testing.T) {
	a := New()
	a.Insert("hello")
	b := New()
	b.Insert("world")

	a.Merge(b)

	want := []string{"hello", "world"}
	if got := a.Sorted(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMergeIdempotent(t *testing.T) {
	a := New()
	a.Insert("x")
	b := New()
	b.Insert("y")

	a.Merge(b)
	first := a.Sorted()
	a.Merge(b)
	second := a.Sorted()

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("merge is not idempotent: %v != %v", first, second)
	}
}

func TestMergeConvergence(t *testing.T) {
	// Two replicas insert disjoint values, then exchange payloads in
	// opposite order. Both must converge to the same set.
	a := New()
	a.Insert("hello")
	b := New()
	b.Insert("world")

	aFinal := a.Clone()
	aFinal.Merge(b)

	bFinal := b.Clone()
	bFinal.Merge(a)

	if !reflect.DeepEqual(aFinal.Sorted(), bFinal.Sorted()) {
		t.Fatalf("replicas diverged: %v != %v", aFinal.Sorted(), bFinal.Sorted())
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := New()
	s.Insert("a")
	s.Insert("b")
	s.Insert("c")

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	loaded := New()
	if err := json.Unmarshal(data, loaded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !reflect.DeepEqual(s.Sorted(), loaded.Sorted()) {
		t.Fatalf("round-trip mismatch: %v != %v", s.Sorted(), loaded.Sorted())
	}
}

func TestReadNeverShrinks(t *testing.T) {
	s := New()
	s.Insert("a")
	before := s.Len()
	s.Merge(New())
	if s.Len() < before {
		t.Fatalf("set shrank after merge with empty set")
	}
}
