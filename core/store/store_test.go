package store

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/corpusworks/annot/core/errors"
	"github.com/corpusworks/annot/core/span"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return st
}

// TestWriteRead tests the basic annotation round trip.
func TestWriteRead(t *testing.T) {
	st := newTestStore(t)

	values := []string{"Det", "här", "är", "en", "mening", "."}
	if err := st.Write("doc1", "token:word", values); err != nil {
		t.Fatalf("failed to write annotation: %v", err)
	}

	got, err := st.Read("doc1", "token:word")
	if err != nil {
		t.Fatalf("failed to read annotation: %v", err)
	}
	if !reflect.DeepEqual(got, values) {
		t.Errorf("read = %v, want %v", got, values)
	}
}

// TestReadMissing verifies a NotFound error for unwritten annotations.
func TestReadMissing(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Read("doc1", "token:pos")
	if err == nil {
		t.Fatal("expected error for missing annotation")
	}
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestWriteAwkwardValues tests values containing newlines and
// backslashes.
func TestWriteAwkwardValues(t *testing.T) {
	st := newTestStore(t)

	values := []string{"line\nbreak", "back\\slash", "", "both\\\n"}
	if err := st.Write("doc1", "token:word", values); err != nil {
		t.Fatalf("failed to write annotation: %v", err)
	}
	got, err := st.Read("doc1", "token:word")
	if err != nil {
		t.Fatalf("failed to read annotation: %v", err)
	}
	if !reflect.DeepEqual(got, values) {
		t.Errorf("read = %q, want %q", got, values)
	}
}

// TestWriteReplacesAtomically verifies a rewrite replaces the previous
// content and leaves no temp files behind.
func TestWriteReplacesAtomically(t *testing.T) {
	st := newTestStore(t)

	if err := st.Write("doc1", "token:pos", []string{"NN", "VB"}); err != nil {
		t.Fatalf("failed to write annotation: %v", err)
	}
	if err := st.Write("doc1", "token:pos", []string{"JJ"}); err != nil {
		t.Fatalf("failed to rewrite annotation: %v", err)
	}

	got, err := st.Read("doc1", "token:pos")
	if err != nil {
		t.Fatalf("failed to read annotation: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"JJ"}) {
		t.Errorf("read = %v, want [JJ]", got)
	}

	entries, err := os.ReadDir(filepath.Join(st.WorkDir(), "doc1", "token"))
	if err != nil {
		t.Fatalf("failed to list annotation dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".ann-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

// TestCreateEmpty verifies sizing and the empty-set fill.
func TestCreateEmpty(t *testing.T) {
	st := newTestStore(t)

	if err := st.Write("doc1", "token:word", []string{"a", "b", "c"}); err != nil {
		t.Fatalf("failed to write annotation: %v", err)
	}

	values, err := st.CreateEmpty("doc1", "token:word")
	if err != nil {
		t.Fatalf("failed to create empty annotation: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("expected 3 values, got %d", len(values))
	}
	for i, v := range values {
		if v != "||" {
			t.Errorf("value %d = %q, want empty-set marker", i, v)
		}
	}
}

// TestSpans tests the span layer round trip and the sort check.
func TestSpans(t *testing.T) {
	st := newTestStore(t)

	spans := []span.Span{{Start: 0, End: 5}, {Start: 6, End: 9}, {Start: 10, End: 11}}
	if err := st.WriteSpans("doc1", "token", spans); err != nil {
		t.Fatalf("failed to write spans: %v", err)
	}
	got, err := st.ReadSpans("doc1", "token")
	if err != nil {
		t.Fatalf("failed to read spans: %v", err)
	}
	if !reflect.DeepEqual(got, spans) {
		t.Errorf("spans = %v, want %v", got, spans)
	}

	unsorted := []span.Span{{Start: 6, End: 9}, {Start: 0, End: 5}}
	if err := st.WriteSpans("doc1", "token", unsorted); err == nil {
		t.Error("expected error for unsorted spans")
	}

	if err := st.WriteSpans("doc1", "token:pos", spans); err == nil {
		t.Error("expected error for span layer named with attribute")
	}
}

// TestCreateEmptyFromSpans verifies sizing against a span layer.
func TestCreateEmptyFromSpans(t *testing.T) {
	st := newTestStore(t)

	spans := []span.Span{{Start: 0, End: 5}, {Start: 6, End: 9}}
	if err := st.WriteSpans("doc1", "sentence", spans); err != nil {
		t.Fatalf("failed to write spans: %v", err)
	}
	values, err := st.CreateEmpty("doc1", "sentence")
	if err != nil {
		t.Fatalf("failed to create empty annotation: %v", err)
	}
	if len(values) != 2 {
		t.Errorf("expected 2 values, got %d", len(values))
	}
}

// TestExistsRemove tests existence checks and removal.
func TestExistsRemove(t *testing.T) {
	st := newTestStore(t)

	if st.Exists("doc1", "token:word") {
		t.Error("annotation should not exist yet")
	}
	if err := st.Write("doc1", "token:word", []string{"a"}); err != nil {
		t.Fatalf("failed to write annotation: %v", err)
	}
	if !st.Exists("doc1", "token:word") {
		t.Error("annotation should exist")
	}
	if err := st.Remove("doc1", "token:word"); err != nil {
		t.Fatalf("failed to remove annotation: %v", err)
	}
	if st.Exists("doc1", "token:word") {
		t.Error("annotation should be gone")
	}
	// Removing again is not an error.
	if err := st.Remove("doc1", "token:word"); err != nil {
		t.Errorf("removing a missing annotation should succeed, got %v", err)
	}
}

// TestDocID verifies id stability and distinctness.
func TestDocID(t *testing.T) {
	a := DocID([]byte("some text"))
	b := DocID([]byte("some text"))
	c := DocID([]byte("other text"))
	if a != b {
		t.Error("ids for identical text should match")
	}
	if a == c {
		t.Error("ids for different text should differ")
	}
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a))
	}
}

// TestEmptyAnnotation tests a zero-length value sequence.
func TestEmptyAnnotation(t *testing.T) {
	st := newTestStore(t)

	if err := st.Write("doc1", "token:word", nil); err != nil {
		t.Fatalf("failed to write empty annotation: %v", err)
	}
	got, err := st.Read("doc1", "token:word")
	if err != nil {
		t.Fatalf("failed to read empty annotation: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no values, got %v", got)
	}
}
