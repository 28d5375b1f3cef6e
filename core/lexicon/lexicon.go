// Package lexicon provides lexical-class lookup and aggregation.
//
// A lexicon maps a sense id to one or more class labels. It is loaded
// in full from a compiled SQLite database before the first lookup and
// never mutated afterwards, so one lexicon can be shared by any number
// of concurrent document workers without synchronization.
package lexicon

import (
	"sort"
	"strings"
	"time"

	"github.com/corpusworks/annot/core/cwbset"
	"github.com/corpusworks/annot/core/errors"
	"github.com/corpusworks/annot/core/sqlite"
	"github.com/corpusworks/annot/internal/logging"
)

// Lexicon is an immutable sense-id to class-label mapping.
type Lexicon struct {
	entries map[string][]string
}

// New builds a lexicon from an in-memory mapping. Label lists are
// sorted and deduplicated. Mostly useful for tests; production code
// loads compiled databases with Open.
func New(entries map[string][]string) *Lexicon {
	m := make(map[string][]string, len(entries))
	for sense, labels := range entries {
		m[sense] = sortedUnique(labels)
	}
	return &Lexicon{entries: m}
}

// Open loads a compiled lexicon database in its entirety. classSet
// selects one of the label sets the lexicon was compiled with; an
// empty classSet loads every row.
func Open(path, classSet string) (*Lexicon, error) {
	start := time.Now()
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open lexicon %s", path)
	}
	defer db.Close()

	query := `SELECT sense, label FROM classes`
	args := []interface{}{}
	if classSet != "" {
		query += ` WHERE class_set = ?`
		args = append(args, classSet)
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read lexicon %s", path)
	}
	defer rows.Close()

	entries := make(map[string][]string)
	for rows.Next() {
		var sense, label string
		if err := rows.Scan(&sense, &label); err != nil {
			return nil, errors.Wrapf(err, "failed to read lexicon %s", path)
		}
		entries[sense] = append(entries[sense], label)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read lexicon %s", path)
	}
	if len(entries) == 0 {
		return nil, errors.NewNotFound("lexicon class set", classSet+" in "+path)
	}
	for sense, labels := range entries {
		entries[sense] = sortedUnique(labels)
	}

	logging.LexiconLoaded(path, len(entries), time.Since(start), "class_set", classSet)
	return &Lexicon{entries: entries}, nil
}

// Lookup returns the class labels of a sense id, nil when the lexicon
// does not know the sense. A missing sense is not an error; the token
// simply contributes no classes. The returned slice must not be
// modified.
func (l *Lexicon) Lookup(sense string) []string {
	return l.entries[sense]
}

// Len returns the number of sense ids in the lexicon.
func (l *Lexicon) Len() int {
	return len(l.entries)
}

// Labels returns the sorted set of all class labels in the lexicon.
func (l *Lexicon) Labels() []string {
	set := map[string]bool{}
	for _, labels := range l.entries {
		for _, label := range labels {
			set[label] = true
		}
	}
	all := make([]string, 0, len(set))
	for label := range set {
		all = append(all, label)
	}
	sort.Strings(all)
	return all
}

// LookupOptions controls LookupToken.
type LookupOptions struct {
	// Disambiguate keeps only the top-ranked sense ids: the leading
	// run whose score ties with the maximum. Requires scored input to
	// have any effect.
	Disambiguate bool

	// ConnectIDs tags every class hit with the sense id it came from,
	// as "label<scoresep>sense".
	ConnectIDs bool

	// POSAllowList limits lookup to tokens with one of these parts of
	// speech. Empty means all tokens are looked up.
	POSAllowList []string

	// Separator characters; cwbset defaults apply when empty.
	Delimiter string
	Affix     string
	ScoreSep  string
}

func (o LookupOptions) delimiter() string {
	if o.Delimiter == "" {
		return cwbset.Delimiter
	}
	return o.Delimiter
}

func (o LookupOptions) affix() string {
	if o.Affix == "" {
		return cwbset.Affix
	}
	return o.Affix
}

func (o LookupOptions) scoreSep() string {
	if o.ScoreSep == "" {
		return cwbset.ScoreSep
	}
	return o.ScoreSep
}

// LookupToken resolves the class labels for one token given its
// encoded sense field and part of speech. The result is sorted and
// deduplicated, ready for canonical encoding; nil means the token got
// no classes (wrong POS, no senses, or nothing in the lexicon).
func (l *Lexicon) LookupToken(senseField, pos string, opts LookupOptions) []string {
	if len(opts.POSAllowList) > 0 && !contains(opts.POSAllowList, pos) {
		return nil
	}

	raw := cwbset.Decode(senseField, opts.delimiter(), opts.affix())
	if len(raw) == 0 {
		return nil
	}

	senseIDs := raw
	if strings.Contains(senseField, opts.scoreSep()) {
		senseIDs = rankedIDs(raw, opts.scoreSep(), opts.Disambiguate)
	}

	set := map[string]bool{}
	for _, sid := range senseIDs {
		for _, hit := range l.Lookup(sid) {
			if opts.ConnectIDs {
				hit = cwbset.JoinScored(hit, sid, opts.scoreSep())
			}
			set[hit] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	result := make([]string, 0, len(set))
	for hit := range set {
		result = append(result, hit)
	}
	sort.Strings(result)
	return result
}

// rankedIDs strips scores from a ranked sense list. With disambiguate
// set, only the leading run of ids tied with the maximum score
// survives; the input is ranked best-first, so the first score is the
// maximum and every exact tie with it is included.
func rankedIDs(scored []string, scoresep string, disambiguate bool) []string {
	ids := make([]string, 0, len(scored))
	scores := make([]string, 0, len(scored))
	for _, s := range scored {
		id, score, err := cwbset.SplitScored(s, scoresep)
		if err != nil {
			// A malformed member degrades to an unscored id rather
			// than discarding the whole token.
			id, score = s, ""
		}
		ids = append(ids, id)
		scores = append(scores, score)
	}

	if !disambiguate {
		return ids
	}
	top := scores[0]
	keep := []string{ids[0]}
	for i := 1; i < len(ids); i++ {
		if scores[i] != top {
			break
		}
		keep = append(keep, ids[i])
	}
	return keep
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedUnique(values []string) []string {
	set := map[string]bool{}
	for _, v := range values {
		set[v] = true
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
