package engine

import (
	"strconv"
	"strings"

	"github.com/corpusworks/annot/core/errors"
)

// Wire framing for the analyzer protocol. One line per token with
// tab-separated columns, tokens of a sentence separated by newlines,
// sentences separated by a blank line.
const (
	SentSep = "\n\n"
	TokSep  = "\n"
	TagSep  = "\t"

	// Undef is the engine's placeholder for a null column value.
	Undef = "_"

	// Response column layout.
	HeadColumn   = 6
	DeprelColumn = 7
)

// Unit is one sentence serialized for the wire: one request line per
// token.
type Unit []string

// Row is one parsed response line for a token.
type Row struct {
	// Head is the 1-based index of the head token within the same
	// sentence. 0 marks the sentence root.
	Head int

	// Deprel is the dependency relation to the head, empty when the
	// engine returned the null placeholder.
	Deprel string
}

// featCleaner rewrites morphological feature strings into the form the
// engine's models were trained on.
var featCleaner = strings.NewReplacer(" ", "|", ",", "|", ".", "|", "+", "/")

// FormatToken builds one request line: index, word form, lemma
// placeholder, coarse tag, fine tag, feature string.
func FormatToken(nr int, form, tag, feats string) string {
	cols := []string{
		strconv.Itoa(nr),
		form,
		Undef,
		tag,
		tag,
		featCleaner.Replace(feats),
	}
	return strings.Join(cols, TagSep)
}

// serialize joins units into one request payload.
func serialize(units []Unit) string {
	sents := make([]string, len(units))
	for i, unit := range units {
		sents[i] = strings.Join(unit, TokSep)
	}
	return strings.Join(sents, SentSep)
}

// splitSentences splits a block-mode response into sentence blocks.
func splitSentences(out string) []string {
	return strings.Split(out, SentSep)
}

// splitLines splits one sentence block into its token lines.
func splitLines(sent string) []string {
	return strings.Split(sent, TokSep)
}

// parseRow parses one response line into a Row.
func parseRow(unit int, line string) (Row, error) {
	cols := strings.Split(line, TagSep)
	if len(cols) <= DeprelColumn {
		return Row{}, errors.NewProtocol(unit,
			"expected at least "+strconv.Itoa(DeprelColumn+1)+" columns, got "+strconv.Itoa(len(cols)))
	}
	head := cols[HeadColumn]
	if head == Undef {
		return Row{}, errors.NewProtocol(unit, "missing head column")
	}
	h, err := strconv.Atoi(head)
	if err != nil {
		return Row{}, &errors.ProtocolError{Unit: unit, Message: "malformed head column " + head, Err: err}
	}
	deprel := cols[DeprelColumn]
	if deprel == Undef {
		deprel = ""
	}
	return Row{Head: h, Deprel: deprel}, nil
}
