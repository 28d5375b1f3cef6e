// Package store reads and writes positional annotations for documents.
//
// An annotation is a named, ordered sequence of string values aligned
// 1:1 to the spans of some layer: one value per token, per sentence,
// per paragraph. Annotations live under a working directory, one file
// per document and annotation name, xz-compressed. Writes go through a
// temp file and an atomic rename, so a crash mid-write never leaves a
// partially written annotation visible.
//
// An annotation name is "element" or "element:attribute". The bare
// element form names the span layer itself; the attribute form names a
// value sequence aligned to that layer.
package store

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/corpusworks/annot/core/cwbset"
	"github.com/corpusworks/annot/core/errors"
	"github.com/corpusworks/annot/core/span"
	"github.com/corpusworks/annot/internal/logging"
)

// spanFile is the file name used for the span layer of an element,
// keeping it apart from any attribute named by the user.
const spanFile = "@span"

// Store provides access to the annotations of a working directory.
type Store struct {
	workDir string
}

// NewStore opens (creating if needed) a working directory for
// annotation storage.
func NewStore(workDir string) (*Store, error) {
	if workDir == "" {
		return nil, errors.NewConfig("workdir", "working directory must not be empty")
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	return &Store{workDir: workDir}, nil
}

// WorkDir returns the root of the working directory.
func (s *Store) WorkDir() string {
	return s.workDir
}

// DocID derives a stable document identifier from the document's
// source text.
func DocID(text []byte) string {
	sum := blake3.Sum256(text)
	return hex.EncodeToString(sum[:16])
}

// splitName splits an annotation name into element and attribute.
func splitName(name string) (elem, attr string) {
	elem, attr, _ = strings.Cut(name, ":")
	return elem, attr
}

// path returns the file path for an annotation of a document.
func (s *Store) path(doc, name string) string {
	elem, attr := splitName(name)
	if attr == "" {
		attr = spanFile
	}
	return filepath.Join(s.workDir, doc, elem, attr)
}

// Exists reports whether the annotation has been written.
func (s *Store) Exists(doc, name string) bool {
	_, err := os.Stat(s.path(doc, name))
	return err == nil
}

// Remove deletes an annotation. Removing a missing annotation is not
// an error.
func (s *Store) Remove(doc, name string) error {
	err := os.Remove(s.path(doc, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove annotation %s/%s: %w", doc, name, err)
	}
	return nil
}

// Read returns the value sequence of an annotation. The annotation
// must have been written before.
func (s *Store) Read(doc, name string) ([]string, error) {
	values, err := s.readLines(doc, name)
	if err != nil {
		return nil, err
	}
	result := make([]string, len(values))
	for i, v := range values {
		result[i] = unescapeValue(v)
	}
	logging.Debug("read annotation", "doc", doc, "annotation", name, "items", len(result))
	return result, nil
}

// Write stores the value sequence of an annotation, replacing any
// previous content atomically.
func (s *Store) Write(doc, name string, values []string) error {
	lines := make([]string, len(values))
	for i, v := range values {
		lines[i] = escapeValue(v)
	}
	if err := s.writeLines(doc, name, lines); err != nil {
		return err
	}
	logging.Info("wrote annotation", "doc", doc, "annotation", name, "items", len(values))
	return nil
}

// CreateEmpty allocates a value sequence sized to the cardinality of
// the given alignment annotation, filled with the canonical empty-set
// marker. The caller fills it in place and passes it to Write.
func (s *Store) CreateEmpty(doc, alignWith string) ([]string, error) {
	n, err := s.Size(doc, alignWith)
	if err != nil {
		return nil, err
	}
	values := make([]string, n)
	empty := cwbset.Encode(nil, cwbset.Delimiter, cwbset.Affix)
	for i := range values {
		values[i] = empty
	}
	return values, nil
}

// Size returns the number of values (or spans) of an annotation.
func (s *Store) Size(doc, name string) (int, error) {
	lines, err := s.readLines(doc, name)
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}

// ReadSpans returns the span layer of an element.
func (s *Store) ReadSpans(doc, element string) ([]span.Span, error) {
	elem, attr := splitName(element)
	if attr != "" {
		return nil, errors.NewConfig("element", "span layers are named without an attribute: "+element)
	}
	lines, err := s.readLines(doc, elem)
	if err != nil {
		return nil, err
	}
	spans := make([]span.Span, len(lines))
	for i, line := range lines {
		startStr, endStr, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, &errors.FormatError{Value: line, Message: "span rows are tab-separated start/end offsets"}
		}
		start, err := strconv.Atoi(startStr)
		if err != nil {
			return nil, &errors.FormatError{Value: line, Message: "malformed start offset", Err: err}
		}
		end, err := strconv.Atoi(endStr)
		if err != nil {
			return nil, &errors.FormatError{Value: line, Message: "malformed end offset", Err: err}
		}
		spans[i] = span.Span{Start: start, End: end}
	}
	return spans, nil
}

// WriteSpans stores the span layer of an element. Spans must be sorted
// by start offset.
func (s *Store) WriteSpans(doc, element string, spans []span.Span) error {
	elem, attr := splitName(element)
	if attr != "" {
		return errors.NewConfig("element", "span layers are named without an attribute: "+element)
	}
	lines := make([]string, len(spans))
	for i, sp := range spans {
		if i > 0 && sp.Start < spans[i-1].Start {
			return &errors.FormatError{
				Value:   fmt.Sprintf("%d-%d", sp.Start, sp.End),
				Message: fmt.Sprintf("spans must be sorted by start offset (index %d)", i),
			}
		}
		lines[i] = strconv.Itoa(sp.Start) + "\t" + strconv.Itoa(sp.End)
	}
	if err := s.writeLines(doc, elem, lines); err != nil {
		return err
	}
	logging.Info("wrote spans", "doc", doc, "element", elem, "items", len(spans))
	return nil
}

// readLines reads the raw lines of an annotation file.
func (s *Store) readLines(doc, name string) ([]string, error) {
	path := s.path(doc, name)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("annotation", doc+"/"+name)
		}
		return nil, fmt.Errorf("failed to open annotation %s/%s: %w", doc, name, err)
	}
	defer f.Close()

	r, err := xz.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to read annotation %s/%s: %w", doc, name, err)
	}

	lines := []string{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read annotation %s/%s: %w", doc, name, err)
	}
	return lines, nil
}

// writeLines writes raw lines to an annotation file through a temp
// file and an atomic rename.
func (s *Store) writeLines(doc, name string, lines []string) error {
	path := s.path(doc, name)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create annotation directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, ".ann-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	w, err := xz.NewWriter(tempFile)
	if err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write annotation %s/%s: %w", doc, name, err)
	}
	for _, line := range lines {
		if _, err := w.Write([]byte(line + "\n")); err != nil {
			w.Close()
			tempFile.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to write annotation %s/%s: %w", doc, name, err)
		}
	}
	if err := w.Close(); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to finish annotation %s/%s: %w", doc, name, err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Rename to final path (atomic on POSIX)
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace annotation %s/%s: %w", doc, name, err)
	}
	return nil
}

// escapeValue makes a value safe for line-based storage.
func escapeValue(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\n", "\\n")
	return v
}

// unescapeValue reverses escapeValue.
func unescapeValue(v string) string {
	if !strings.Contains(v, "\\") {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		if v[i] == '\\' && i+1 < len(v) {
			switch v[i+1] {
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case '\\':
				b.WriteByte('\\')
				i++
				continue
			}
		}
		b.WriteByte(v[i])
	}
	return b.String()
}
