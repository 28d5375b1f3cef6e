package lexicon

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/corpusworks/annot/core/cwbset"
	"github.com/corpusworks/annot/core/errors"
	"github.com/corpusworks/annot/core/sqlite"
	"github.com/corpusworks/annot/core/store"
	"github.com/corpusworks/annot/internal/logging"
)

// Entry is one compiled lexicon row.
type Entry struct {
	Sense    string
	ClassSet string
	Label    string
}

// Class sets produced by ParseClassTSV.
const (
	SetBring           = "bring"
	SetRogetHead       = "roget_head"
	SetRogetSubsection = "roget_subsection"
	SetRogetSection    = "roget_section"
	SetRogetClass      = "roget_class"
)

// hierarchyEntry places a headword in the three-level class hierarchy.
type hierarchyEntry struct {
	subsection string
	section    string
	class      string
}

// parseHierarchyXML reads a class-hierarchy map: class elements
// containing sections, subsections and headwords, each carrying a name
// attribute.
func parseHierarchyXML(path string) (map[string]hierarchyEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open class hierarchy %s", path)
	}
	defer f.Close()

	doc, err := xmlquery.Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse class hierarchy %s", path)
	}

	hierarchy := map[string]hierarchyEntry{}
	for _, class := range xmlquery.Find(doc, "//class") {
		l1 := class.SelectAttr("name")
		for _, section := range xmlquery.Find(class, "section") {
			l2 := section.SelectAttr("name")
			for _, subsection := range xmlquery.Find(section, "subsection") {
				l3 := subsection.SelectAttr("name")
				for _, head := range xmlquery.Find(subsection, "headword") {
					hierarchy[head.SelectAttr("name")] = hierarchyEntry{
						subsection: l3,
						section:    l2,
						class:      l1,
					}
				}
			}
		}
	}
	if len(hierarchy) == 0 {
		return nil, errors.NewNotFound("class hierarchy headwords", path)
	}
	return hierarchy, nil
}

// ParseClassTSV reads a tab-separated class lexicon together with its
// XML class-hierarchy map and expands each sense into the five class
// sets. TSV columns: source id ("<x>/B" rows define the plain class
// mapping), class URL (id after the last slash), class name, and a
// colon-separated list of sense ids.
func ParseClassTSV(tsvPath, hierarchyPath string) ([]Entry, error) {
	hierarchy, err := parseHierarchyXML(hierarchyPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(tsvPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open lexicon source %s", tsvPath)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	senseHeads := map[string]map[string]bool{}
	classMapping := map[string]string{}

	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read lexicon source %s", tsvPath)
	}
	for _, record := range records {
		if len(record) < 4 || strings.HasPrefix(record[0], "#") {
			continue
		}
		headID := record[1]
		if i := strings.LastIndex(headID, "/"); i >= 0 {
			headID = headID[i+1:]
		}
		for _, sense := range strings.Split(record[3], ":") {
			if sense == "" {
				continue
			}
			if senseHeads[sense] == nil {
				senseHeads[sense] = map[string]bool{}
			}
			senseHeads[sense][headID] = true
		}
		if parts := strings.Split(record[0], "/"); len(parts) > 1 && parts[1] == "B" {
			classMapping[headID] = record[2]
		}
	}
	if len(senseHeads) == 0 {
		return nil, errors.NewNotFound("lexicon senses", tsvPath)
	}

	entries := []Entry{}
	add := func(sense, classSet string, labels map[string]bool) {
		for _, label := range setToSorted(labels) {
			entries = append(entries, Entry{Sense: sense, ClassSet: classSet, Label: label})
		}
	}
	for sense, heads := range senseHeads {
		subsections := map[string]bool{}
		sections := map[string]bool{}
		classes := map[string]bool{}
		bring := map[string]bool{}
		for head := range heads {
			if h, ok := hierarchy[head]; ok {
				if h.subsection != "" {
					subsections[h.subsection] = true
				}
				if h.section != "" {
					sections[h.section] = true
				}
				if h.class != "" {
					classes[h.class] = true
				}
			}
			if b, ok := classMapping[head]; ok {
				bring[b] = true
			}
		}
		add(sense, SetRogetHead, heads)
		add(sense, SetRogetSubsection, subsections)
		add(sense, SetRogetSection, sections)
		add(sense, SetRogetClass, classes)
		add(sense, SetBring, bring)
	}
	return entries, nil
}

// ParseFrameNetXML reads a framenet-style XML lexicon: LexicalEntry
// elements with a Sense id and feat[@att='LU'] members naming the
// sense ids that evoke the frame. Produces a single class set.
func ParseFrameNetXML(xmlPath, classSet string) ([]Entry, error) {
	f, err := os.Open(xmlPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open lexicon source %s", xmlPath)
	}
	defer f.Close()

	doc, err := xmlquery.Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse lexicon source %s", xmlPath)
	}

	entries := []Entry{}
	for _, sense := range xmlquery.Find(doc, "//LexicalEntry/Sense") {
		frame := strings.TrimPrefix(sense.SelectAttr("id"), classSet+"--")
		if frame == "" {
			continue
		}
		for _, feat := range xmlquery.Find(sense, "feat[@att='LU']") {
			lu := feat.SelectAttr("val")
			if lu == "" {
				continue
			}
			entries = append(entries, Entry{Sense: lu, ClassSet: classSet, Label: frame})
		}
	}
	if len(entries) == 0 {
		return nil, errors.NewNotFound("lexical entries", xmlPath)
	}
	return entries, nil
}

// WriteLexicon compiles entries into a lexicon database, replacing any
// previous content. progress, if non-nil, is called after every row.
func WriteLexicon(dbPath string, entries []Entry, progress func(done, total int)) error {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create lexicon %s", dbPath)
	}
	defer db.Close()

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS classes (
			sense     TEXT NOT NULL,
			class_set TEXT NOT NULL,
			label     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS classes_sense ON classes(sense, class_set);
		DELETE FROM classes;
	`); err != nil {
		return errors.Wrapf(err, "failed to prepare lexicon %s", dbPath)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrapf(err, "failed to write lexicon %s", dbPath)
	}
	stmt, err := tx.Prepare(`INSERT INTO classes (sense, class_set, label) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "failed to write lexicon %s", dbPath)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.Exec(e.Sense, e.ClassSet, e.Label); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "failed to write lexicon %s", dbPath)
		}
		if progress != nil {
			progress(i+1, len(entries))
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "failed to write lexicon %s", dbPath)
	}
	logging.Info("compiled lexicon", "path", dbPath, "rows", len(entries))
	return nil
}

// freqSmoothing is the additive smoothing constant for reference
// frequencies, keeping unseen classes off zero.
const freqSmoothing = 0.1

// BuildFreqModel computes reference relative frequencies for every
// label of a lexicon from already-annotated documents. Scored class
// values weight their occurrence by the score; entries with scores at
// or below zero are skipped.
func BuildFreqModel(st *store.Store, docs []string, classAnnotation string, lex *Lexicon, opts AggregateOptions) (map[string]float64, error) {
	counts := map[string]float64{}
	corpusSize := 0

	for _, doc := range docs {
		values, err := st.Read(doc, classAnnotation)
		if err != nil {
			return nil, err
		}
		corpusSize += len(values)
		for _, cell := range values {
			for _, member := range cwbset.Decode(cell, opts.delimiter(), opts.affix()) {
				label := member
				weight := 1.0
				if strings.Contains(member, opts.scoreSep()) {
					id, scoreStr, err := cwbset.SplitScored(member, opts.scoreSep())
					if err == nil {
						score, perr := strconv.ParseFloat(scoreStr, 64)
						if perr != nil || score <= 0 {
							continue
						}
						label = id
						weight = score
					}
				}
				counts[strings.ReplaceAll(label, "_", " ")] += weight
			}
		}
	}

	labels := lex.Labels()
	denom := float64(corpusSize) + freqSmoothing*float64(len(labels))
	rel := make(map[string]float64, len(labels))
	for _, label := range labels {
		label = strings.ReplaceAll(label, "_", " ")
		rel[label] = (counts[label] + freqSmoothing) / denom
	}
	return rel, nil
}

// WriteFreqModel stores a frequency model database, replacing any
// previous content.
func WriteFreqModel(dbPath string, rel map[string]float64) error {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create frequency model %s", dbPath)
	}
	defer db.Close()

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS freq (
			label TEXT PRIMARY KEY,
			rel   REAL NOT NULL
		);
		DELETE FROM freq;
	`); err != nil {
		return errors.Wrapf(err, "failed to prepare frequency model %s", dbPath)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrapf(err, "failed to write frequency model %s", dbPath)
	}
	stmt, err := tx.Prepare(`INSERT INTO freq (label, rel) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "failed to write frequency model %s", dbPath)
	}
	defer stmt.Close()

	for _, label := range sortedKeys(rel) {
		if _, err := stmt.Exec(label, rel[label]); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "failed to write frequency model %s", dbPath)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "failed to write frequency model %s", dbPath)
	}
	logging.Info("compiled frequency model", "path", dbPath, "labels", len(rel))
	return nil
}

func setToSorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
