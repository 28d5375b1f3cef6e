package lexicon

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/corpusworks/annot/core/cwbset"
	"github.com/corpusworks/annot/core/errors"
	"github.com/corpusworks/annot/core/sqlite"
	"github.com/corpusworks/annot/internal/logging"
)

// FreqModel holds reference relative frequencies for class labels,
// used to rank classes by dominance over a background corpus.
type FreqModel struct {
	rel map[string]float64
}

// NewFreqModel builds a model from an in-memory mapping.
func NewFreqModel(rel map[string]float64) *FreqModel {
	return &FreqModel{rel: rel}
}

// OpenFreqModel loads a compiled frequency model database in full.
func OpenFreqModel(path string) (*FreqModel, error) {
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open frequency model %s", path)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT label, rel FROM freq`)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read frequency model %s", path)
	}
	defer rows.Close()

	rel := make(map[string]float64)
	for rows.Next() {
		var label string
		var r float64
		if err := rows.Scan(&label, &r); err != nil {
			return nil, errors.Wrapf(err, "failed to read frequency model %s", path)
		}
		rel[label] = r
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read frequency model %s", path)
	}
	return &FreqModel{rel: rel}, nil
}

// Lookup returns the reference relative frequency of a label, 0 when
// the model does not know it. Labels are stored with spaces where
// annotations use underscores.
func (m *FreqModel) Lookup(label string) float64 {
	return m.rel[strings.ReplaceAll(label, "_", " ")]
}

// Len returns the number of labels in the model.
func (m *FreqModel) Len() int {
	return len(m.rel)
}

// AggregateOptions controls AggregateGroup.
type AggregateOptions struct {
	// Cutoff limits the result to the classes holding the top Cutoff
	// scores. Exact ties with the last retained score are kept, so the
	// result may exceed Cutoff entries.
	Cutoff int

	// Decimals is the rounding precision for emitted scores.
	Decimals int

	// TypesOnly counts each distinct sense signature once per group
	// instead of once per token. Requires senses to be supplied.
	TypesOnly bool

	// Separator characters; cwbset defaults apply when empty.
	Delimiter string
	Affix     string
	ScoreSep  string
}

func (o AggregateOptions) delimiter() string {
	if o.Delimiter == "" {
		return cwbset.Delimiter
	}
	return o.Delimiter
}

func (o AggregateOptions) affix() string {
	if o.Affix == "" {
		return cwbset.Affix
	}
	return o.Affix
}

func (o AggregateOptions) scoreSep() string {
	if o.ScoreSep == "" {
		return cwbset.ScoreSep
	}
	return o.ScoreSep
}

// AggregateGroup ranks the class labels of one span group (for example
// all tokens of a text). members are token indices into the per-token
// classes annotation; senses is only consulted with TypesOnly. With a
// frequency model the score is dominance (member-relative frequency
// over reference frequency, entries below 1 dropped); without one it
// is the raw count with single occurrences dropped.
//
// The result holds "label<scoresep>score" values sorted by descending
// score, ready for canonical encoding.
func AggregateGroup(members []int, classes, senses []string, model *FreqModel, opts AggregateOptions) []string {
	freqs := map[string]float64{}
	seenTypes := map[string]bool{}

	for _, idx := range members {
		if opts.TypesOnly {
			sig := senseSignature(senses[idx], opts)
			if seenTypes[sig] {
				continue
			}
			seenTypes[sig] = true
		}
		for _, label := range cwbset.Decode(classes[idx], opts.delimiter(), opts.affix()) {
			freqs[label]++
		}
	}

	type scored struct {
		label string
		score float64
	}
	ranked := make([]scored, 0, len(freqs))

	if model != nil {
		for label, count := range freqs {
			ref := model.Lookup(label)
			if ref == 0 {
				logging.Warn("class missing from reference model", "class", label)
				continue
			}
			dominance := (count / float64(len(members))) / ref
			if dominance < 1 {
				continue
			}
			ranked = append(ranked, scored{label, dominance})
		}
	} else {
		for label, count := range freqs {
			// Hapax filter: a class seen once says nothing about the
			// group.
			if count <= 1 {
				continue
			}
			ranked = append(ranked, scored{label, count})
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].label < ranked[j].label
	})

	if opts.Cutoff > 0 && len(ranked) > opts.Cutoff {
		threshold := ranked[opts.Cutoff-1].score
		n := opts.Cutoff
		for n < len(ranked) && ranked[n].score >= threshold {
			n++
		}
		ranked = ranked[:n]
	}

	if len(ranked) == 0 {
		return nil
	}
	result := make([]string, len(ranked))
	for i, r := range ranked {
		result[i] = cwbset.JoinScored(r.label, formatScore(r.score, opts.Decimals), opts.scoreSep())
	}
	return result
}

// senseSignature normalizes a token's sense field into a key that
// identifies its sense type regardless of ranking scores.
func senseSignature(senseField string, opts AggregateOptions) string {
	raw := cwbset.Decode(senseField, opts.delimiter(), opts.affix())
	ids := make([]string, len(raw))
	for i, s := range raw {
		if id, _, err := cwbset.SplitScored(s, opts.scoreSep()); err == nil {
			ids[i] = id
		} else {
			ids[i] = s
		}
	}
	sort.Strings(ids)
	return strings.Join(ids, opts.delimiter())
}

// formatScore rounds to the requested number of decimals and renders
// without trailing zeros, so plain counts stay integral.
func formatScore(score float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	pow := math.Pow(10, float64(decimals))
	rounded := math.Round(score*pow) / pow
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
