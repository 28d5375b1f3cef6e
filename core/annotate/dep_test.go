package annotate

import (
	"io"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/corpusworks/annot/core/engine"
	"github.com/corpusworks/annot/core/span"
	"github.com/corpusworks/annot/core/store"
)

// fakeParser stands in for the external parser process. It answers
// every request token with head i and relation ROOT/DT, where i is the
// token's 0-based position in its sentence. failFlush, when non-zero,
// corrupts that flush (1-based) so the chat exchange fails.
type fakeParser struct {
	buf       strings.Builder
	queue     []string
	flushes   int
	failFlush int
	alive     bool
	closed    bool
}

func (f *fakeParser) WriteString(s string) error {
	if f.closed {
		return io.ErrClosedPipe
	}
	f.buf.WriteString(s)
	return nil
}

func (f *fakeParser) Flush() error {
	if f.closed {
		return io.ErrClosedPipe
	}
	f.flushes++
	payload := strings.TrimRight(f.buf.String(), "\n")
	f.buf.Reset()
	if f.flushes == f.failFlush || payload == "" {
		return nil
	}
	for _, sent := range strings.Split(payload, engine.SentSep) {
		for i, line := range strings.Split(sent, engine.TokSep) {
			deprel := "DT"
			if i == 0 {
				deprel = "ROOT"
			}
			f.queue = append(f.queue, line+engine.TagSep+strconv.Itoa(i)+engine.TagSep+deprel)
		}
		f.queue = append(f.queue, "")
	}
	return nil
}

func (f *fakeParser) ReadLine() (string, error) {
	if len(f.queue) == 0 {
		return "", io.ErrUnexpectedEOF
	}
	line := f.queue[0]
	f.queue = f.queue[1:]
	return line, nil
}

func (f *fakeParser) Exchange(payload string) (string, error) {
	f.alive = false
	f.buf.Reset()
	f.flushes++
	if f.flushes == f.failFlush {
		return "", io.ErrUnexpectedEOF
	}
	fresh := &fakeParser{alive: true}
	fresh.buf.WriteString(payload)
	if err := fresh.Flush(); err != nil {
		return "", err
	}
	return strings.Join(fresh.queue, "\n") + "\n", nil
}

func (f *fakeParser) Healthy() bool { return f.alive && !f.closed }

func (f *fakeParser) Close() error {
	f.closed = true
	f.alive = false
	return nil
}

// fakeEngine returns an engine config that dispenses the given fakes
// in order and counts spawns.
func fakeEngine(fakes ...*fakeParser) (engine.Config, *int) {
	spawns := new(int)
	cfg := engine.Config{
		JarPath: "maltparser.jar",
		Model:   "swemalt.mco",
		Spawn: func(engine.Config) (engine.Transport, error) {
			f := fakes[*spawns]
			*spawns++
			f.alive = true
			return f, nil
		},
	}
	return cfg, spawns
}

// seedParseDoc writes a two-sentence document plus one orphan token.
func seedParseDoc(t *testing.T, st *store.Store, doc string) {
	t.Helper()
	writeSpans := func(layer string, spans []span.Span) {
		if err := st.WriteSpans(doc, layer, spans); err != nil {
			t.Fatalf("failed to write %s spans: %v", layer, err)
		}
	}
	write := func(name string, values []string) {
		if err := st.Write(doc, name, values); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	writeSpans("sentence", []span.Span{{Start: 0, End: 15}, {Start: 16, End: 18}})
	writeSpans("token", []span.Span{
		{Start: 0, End: 5}, {Start: 6, End: 13}, {Start: 14, End: 15},
		{Start: 16, End: 18}, {Start: 19, End: 22},
	})
	write("token:word", []string{"Huset", "brinner", ".", "Ja", "hej"})
	write("token:pos", []string{"NN", "VB", "MAD", "IN", "IN"})
	write("token:msd", []string{"NEU SIN DEF NOM", "PRS AKT", "MAD", "IN", "IN"})
	write("token:ref", []string{"1", "2", "3", "1", "1"})
}

// TestDepParse tests a full parsing run: sentence grouping, the orphan
// pseudo-sentence, head resolution and the three output annotations.
func TestDepParse(t *testing.T) {
	st, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	seedParseDoc(t, st, "doc1")

	fake := &fakeParser{}
	engCfg, spawns := fakeEngine(fake)

	sess, err := DepParse(st, DepParseConfig{Doc: "doc1", Engine: engCfg}, nil)
	if err != nil {
		t.Fatalf("parsing failed: %v", err)
	}
	defer sess.Close()
	if *spawns != 1 {
		t.Errorf("expected 1 spawn, got %d", *spawns)
	}
	if sess == nil || sess.State() != engine.Persistent {
		t.Error("expected a reusable session back")
	}

	read := func(name string) []string {
		values, err := st.Read("doc1", name)
		if err != nil {
			t.Fatalf("failed to read %s: %v", name, err)
		}
		return values
	}
	if got, want := read("token:dephead"), []string{"-", "0", "1", "-", "-"}; !reflect.DeepEqual(got, want) {
		t.Errorf("dephead = %v, want %v", got, want)
	}
	if got, want := read("token:dephead_ref"), []string{"", "1", "2", "", ""}; !reflect.DeepEqual(got, want) {
		t.Errorf("dephead_ref = %v, want %v", got, want)
	}
	if got, want := read("token:deprel"), []string{"ROOT", "DT", "DT", "ROOT", "ROOT"}; !reflect.DeepEqual(got, want) {
		t.Errorf("deprel = %v, want %v", got, want)
	}
}

// TestDepParseRetry verifies a mid-batch engine failure is retried once
// on a fresh session.
func TestDepParseRetry(t *testing.T) {
	st, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	seedParseDoc(t, st, "doc1")

	// Flush 1 is the warm-up; flush 2, the first batch, is corrupted.
	broken := &fakeParser{failFlush: 2}
	good := &fakeParser{}
	engCfg, spawns := fakeEngine(broken, good)

	sess, err := DepParse(st, DepParseConfig{Doc: "doc1", Engine: engCfg}, nil)
	if err != nil {
		t.Fatalf("parsing failed despite retry: %v", err)
	}
	defer sess.Close()
	if *spawns != 2 {
		t.Errorf("expected 2 spawns, got %d", *spawns)
	}
	if !broken.closed {
		t.Error("expected the broken session's process to be closed")
	}

	values, err := st.Read("doc1", "token:deprel")
	if err != nil {
		t.Fatalf("failed to read deprel: %v", err)
	}
	if values[0] != "ROOT" {
		t.Errorf("deprel[0] = %q, want ROOT", values[0])
	}
}

// TestDepParseRetryExhausted verifies a second failure surfaces as a
// document-level error.
func TestDepParseRetryExhausted(t *testing.T) {
	st, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	seedParseDoc(t, st, "doc1")

	first := &fakeParser{failFlush: 2}
	second := &fakeParser{failFlush: 2}
	engCfg, _ := fakeEngine(first, second)

	sess, err := DepParse(st, DepParseConfig{Doc: "doc1", Engine: engCfg}, nil)
	if err == nil {
		t.Fatal("expected error after exhausted retry")
	}
	if sess != nil {
		t.Error("expected no session back on failure")
	}
	if !strings.Contains(err.Error(), "doc1") {
		t.Errorf("error should name the document: %v", err)
	}
	if st.Exists("doc1", "token:deprel") {
		t.Error("no output should be written on failure")
	}
}

// TestDepParseMissingInput verifies missing input annotations fail
// before any process is spawned.
func TestDepParseMissingInput(t *testing.T) {
	st, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	engCfg, spawns := fakeEngine(&fakeParser{})

	if _, err := DepParse(st, DepParseConfig{Doc: "doc1", Engine: engCfg}, nil); err == nil {
		t.Fatal("expected error for missing inputs")
	}
	if *spawns != 0 {
		t.Errorf("expected no spawns, got %d", *spawns)
	}
}
