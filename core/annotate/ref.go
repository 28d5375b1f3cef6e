package annotate

import (
	"strconv"

	"github.com/corpusworks/annot/core/span"
	"github.com/corpusworks/annot/core/store"
)

// RefConfig configures sentence-relative token numbering.
type RefConfig struct {
	Doc      string
	Sentence string // span layer of sentences
	Token    string // span layer of tokens
	Out      string // output annotation, default "token:ref"
}

func (c *RefConfig) applyDefaults() {
	c.Sentence = defaultStr(c.Sentence, DefaultSentence)
	c.Token = defaultStr(c.Token, DefaultToken)
	c.Out = defaultStr(c.Out, DefaultRef)
}

// RefNumbers numbers each token within its sentence, starting at 1.
// Tokens outside any sentence are numbered as one trailing group, the
// same way DepParse parses them.
func RefNumbers(st *store.Store, cfg RefConfig) error {
	cfg.applyDefaults()

	sentSpans, err := st.ReadSpans(cfg.Doc, cfg.Sentence)
	if err != nil {
		return err
	}
	tokSpans, err := st.ReadSpans(cfg.Doc, cfg.Token)
	if err != nil {
		return err
	}

	groups, orphans := span.GroupChildren(sentSpans, tokSpans)
	if len(orphans) > 0 {
		groups = append(groups, orphans)
	}

	out := make([]string, len(tokSpans))
	for _, group := range groups {
		for n, ti := range group {
			out[ti] = strconv.Itoa(n + 1)
		}
	}
	return st.Write(cfg.Doc, cfg.Out, out)
}
