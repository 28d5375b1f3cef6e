// Package cwbset encodes and decodes multi-valued annotation cells.
//
// Ambiguous annotation values (several word senses, several lexical
// classes) are stored in a single cell using the CWB feature-set
// convention: the alternatives joined by a delimiter and wrapped in an
// affix character, e.g. "|kasta..1|kasta..2|". An empty set is the bare
// affix pair.
package cwbset

import (
	"strings"

	"github.com/corpusworks/annot/core/errors"
)

// Default separator characters. Callers may override them per
// annotation through configuration.
const (
	Delimiter = "|"
	Affix     = "|"
	ScoreSep  = ":"
)

// Encode joins values into a canonical set cell. An empty or nil input
// encodes to the bare affix pair marking an empty set.
func Encode(values []string, delimiter, affix string) string {
	if len(values) == 0 {
		return affix + affix
	}
	return affix + strings.Join(values, delimiter) + affix
}

// Decode splits a set cell back into its values. One affix is stripped
// from each end; an empty body decodes to an empty sequence.
//
// Decode(Encode(s)) == s for any s whose elements contain neither the
// delimiter nor the affix.
func Decode(raw, delimiter, affix string) []string {
	body := strings.TrimPrefix(raw, affix)
	body = strings.TrimSuffix(body, affix)
	if body == "" {
		return nil
	}
	return strings.Split(body, delimiter)
}

// IsEmpty reports whether raw encodes an empty set.
func IsEmpty(raw, affix string) bool {
	body := strings.TrimPrefix(raw, affix)
	return strings.TrimSuffix(body, affix) == ""
}

// SplitScored splits a scored value "id<scoresep>score" on the
// rightmost occurrence of scoresep. The id itself may contain the
// separator, so the split must be right-anchored. Returns a FormatError
// if the separator is absent.
func SplitScored(token, scoresep string) (id, score string, err error) {
	i := strings.LastIndex(token, scoresep)
	if i < 0 {
		return "", "", &errors.FormatError{
			Value:   token,
			Message: "missing score separator " + scoresep,
		}
	}
	return token[:i], token[i+len(scoresep):], nil
}

// JoinScored is the inverse of SplitScored.
func JoinScored(id, score, scoresep string) string {
	return id + scoresep + score
}
