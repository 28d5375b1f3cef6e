package annotate

import (
	"reflect"
	"testing"

	"github.com/corpusworks/annot/core/span"
	"github.com/corpusworks/annot/core/store"
)

// TestRefNumbers tests sentence-relative numbering, restarting at 1
// for each sentence and for the trailing orphan group.
func TestRefNumbers(t *testing.T) {
	st, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := st.WriteSpans("doc1", "sentence", []span.Span{{Start: 0, End: 10}, {Start: 11, End: 20}}); err != nil {
		t.Fatalf("failed to write sentence spans: %v", err)
	}
	if err := st.WriteSpans("doc1", "token", []span.Span{
		{Start: 0, End: 4}, {Start: 5, End: 9},
		{Start: 11, End: 14}, {Start: 15, End: 17}, {Start: 18, End: 20},
		{Start: 21, End: 25}, {Start: 26, End: 30},
	}); err != nil {
		t.Fatalf("failed to write token spans: %v", err)
	}

	if err := RefNumbers(st, RefConfig{Doc: "doc1"}); err != nil {
		t.Fatalf("numbering failed: %v", err)
	}

	got, err := st.Read("doc1", "token:ref")
	if err != nil {
		t.Fatalf("failed to read refs: %v", err)
	}
	want := []string{"1", "2", "1", "2", "3", "1", "2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("refs = %v, want %v", got, want)
	}
}

// TestRefNumbersMissingSpans verifies missing span layers are an error.
func TestRefNumbersMissingSpans(t *testing.T) {
	st, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := RefNumbers(st, RefConfig{Doc: "doc1"}); err == nil {
		t.Error("expected error for missing span layers")
	}
}
