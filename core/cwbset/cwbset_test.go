package cwbset

import (
	"reflect"
	"testing"

	"github.com/corpusworks/annot/core/errors"
)

// TestEncode tests canonical set encoding.
func TestEncode(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"empty", nil, "||"},
		{"empty slice", []string{}, "||"},
		{"single", []string{"kasta..1"}, "|kasta..1|"},
		{"multiple", []string{"kasta..1", "kasta..2"}, "|kasta..1|kasta..2|"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.values, Delimiter, Affix)
			if got != tt.want {
				t.Errorf("Encode(%v) = %q, want %q", tt.values, got, tt.want)
			}
		})
	}
}

// TestDecode tests decoding of set cells.
func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty marker", "||", nil},
		{"bare affix", "|", nil},
		{"empty string", "", nil},
		{"single", "|a|", []string{"a"}},
		{"multiple", "|a|b|c|", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.raw, Delimiter, Affix)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

// TestRoundTrip verifies decode(encode(s)) == s for delimiter-free
// values, including with non-default separator characters.
func TestRoundTrip(t *testing.T) {
	inputs := [][]string{
		{"a"},
		{"a", "b"},
		{"Fear", "Hope", "Safety"},
		{"kasta..1:0.5", "kasta..2:0.3"},
	}
	for _, values := range inputs {
		got := Decode(Encode(values, Delimiter, Affix), Delimiter, Affix)
		if !reflect.DeepEqual(got, values) {
			t.Errorf("round trip of %v = %v", values, got)
		}
	}

	// Alternative separators.
	values := []string{"x|y", "z"}
	got := Decode(Encode(values, ";", "#"), ";", "#")
	if !reflect.DeepEqual(got, values) {
		t.Errorf("round trip with alternative separators of %v = %v", values, got)
	}
}

// TestIsEmpty tests the empty-set check.
func TestIsEmpty(t *testing.T) {
	if !IsEmpty("||", Affix) {
		t.Error("expected || to be empty")
	}
	if !IsEmpty("|", Affix) {
		t.Error("expected | to be empty")
	}
	if IsEmpty("|a|", Affix) {
		t.Error("expected |a| to be non-empty")
	}
}

// TestSplitScored tests splitting of scored values.
func TestSplitScored(t *testing.T) {
	id, score, err := SplitScored("kasta..1:0.534", ScoreSep)
	if err != nil {
		t.Fatalf("SplitScored failed: %v", err)
	}
	if id != "kasta..1" {
		t.Errorf("expected id 'kasta..1', got %q", id)
	}
	if score != "0.534" {
		t.Errorf("expected score '0.534', got %q", score)
	}
}

// TestSplitScoredRightmost verifies the split is anchored at the
// rightmost separator, so ids containing the separator survive.
func TestSplitScoredRightmost(t *testing.T) {
	id, score, err := SplitScored("Fear:kasta..1:0.5", ScoreSep)
	if err != nil {
		t.Fatalf("SplitScored failed: %v", err)
	}
	if id != "Fear:kasta..1" {
		t.Errorf("expected id 'Fear:kasta..1', got %q", id)
	}
	if score != "0.5" {
		t.Errorf("expected score '0.5', got %q", score)
	}
}

// TestSplitScoredMissing verifies a FormatError on unscored input.
func TestSplitScoredMissing(t *testing.T) {
	_, _, err := SplitScored("kasta..1", ScoreSep)
	if err == nil {
		t.Fatal("expected error for missing separator")
	}
	var formatErr *errors.FormatError
	if !errors.As(err, &formatErr) {
		t.Errorf("expected FormatError, got %T", err)
	}
}

// TestJoinScored verifies JoinScored inverts SplitScored.
func TestJoinScored(t *testing.T) {
	joined := JoinScored("Fear", "2.5", ScoreSep)
	if joined != "Fear:2.5" {
		t.Errorf("JoinScored = %q, want 'Fear:2.5'", joined)
	}
}
