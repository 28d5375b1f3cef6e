// Package annotate implements the annotator operations an external
// scheduler invokes once per document: dependency parsing through an
// external engine session, sentence-relative token numbering, and
// lexical-class annotation on token and document level.
//
// Each operation reads its source annotations from a store, computes
// the full result in memory and writes the outputs last, so a failed
// operation never persists partial annotations.
package annotate

// Default annotation names. Callers with differently named layers
// override them in the operation configs.
const (
	DefaultToken    = "token"
	DefaultSentence = "sentence"
	DefaultText     = "text"
	DefaultWord     = "token:word"
	DefaultPOS      = "token:pos"
	DefaultMSD      = "token:msd"
	DefaultRef      = "token:ref"
	DefaultSense    = "token:sense"
)

// defaultStr returns v, or def when v is empty.
func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
