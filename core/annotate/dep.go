package annotate

import (
	"strconv"

	"github.com/corpusworks/annot/core/engine"
	"github.com/corpusworks/annot/core/errors"
	"github.com/corpusworks/annot/core/span"
	"github.com/corpusworks/annot/core/store"
	"github.com/corpusworks/annot/internal/logging"
)

// NoHead marks a sentence root in the absolute dependency-head output.
const NoHead = "-"

// DepParseConfig configures one dependency-parsing run.
type DepParseConfig struct {
	// Doc is the document to annotate.
	Doc string

	// Engine describes the external parser process.
	Engine engine.Config

	// Input annotations.
	Sentence string // span layer of sentences
	Token    string // span layer of tokens
	Word     string // word forms
	POS      string // parts of speech
	MSD      string // morphological feature strings
	Ref      string // sentence-relative token numbers (see RefNumbers)

	// Output annotations.
	OutDepHead    string // absolute span index of the head token, NoHead for roots
	OutDepHeadRef string // the head token's ref number, empty for roots
	OutDepRel     string // dependency relation label
}

func (c *DepParseConfig) applyDefaults() {
	c.Sentence = defaultStr(c.Sentence, DefaultSentence)
	c.Token = defaultStr(c.Token, DefaultToken)
	c.Word = defaultStr(c.Word, DefaultWord)
	c.POS = defaultStr(c.POS, DefaultPOS)
	c.MSD = defaultStr(c.MSD, DefaultMSD)
	c.Ref = defaultStr(c.Ref, DefaultRef)
	c.OutDepHead = defaultStr(c.OutDepHead, "token:dephead")
	c.OutDepHeadRef = defaultStr(c.OutDepHeadRef, "token:dephead_ref")
	c.OutDepRel = defaultStr(c.OutDepRel, "token:deprel")
}

// DepParse annotates a document with dependency heads and relations by
// submitting its sentences to an external parser session.
//
// A healthy prior session is reused; the returned session, if non-nil,
// may be passed to the next call by the same worker. A mid-batch
// engine failure is retried once with a fresh session before being
// surfaced as a document-level failure.
func DepParse(st *store.Store, cfg DepParseConfig, prior *engine.Session) (*engine.Session, error) {
	cfg.applyDefaults()
	doc := cfg.Doc

	sentSpans, err := st.ReadSpans(doc, cfg.Sentence)
	if err != nil {
		return prior, err
	}
	tokSpans, err := st.ReadSpans(doc, cfg.Token)
	if err != nil {
		return prior, err
	}
	words, err := st.Read(doc, cfg.Word)
	if err != nil {
		return prior, err
	}
	pos, err := st.Read(doc, cfg.POS)
	if err != nil {
		return prior, err
	}
	msd, err := st.Read(doc, cfg.MSD)
	if err != nil {
		return prior, err
	}
	refs, err := st.Read(doc, cfg.Ref)
	if err != nil {
		return prior, err
	}

	// Tokens outside any sentence still get parsed, as one trailing
	// pseudo-sentence.
	sentences, orphans := span.GroupChildren(sentSpans, tokSpans)
	if len(orphans) > 0 {
		sentences = append(sentences, orphans)
	}

	units := make([]engine.Unit, len(sentences))
	for si, sent := range sentences {
		unit := make(engine.Unit, len(sent))
		for n, ti := range sent {
			unit[n] = engine.FormatToken(n+1, words[ti], pos[ti], msd[ti])
		}
		units[si] = unit
	}

	sess, err := engine.Acquire(cfg.Engine, prior)
	if err != nil {
		return nil, err
	}

	results, shouldReplace, err := sess.SubmitBatch(units)
	if err != nil {
		// The session died mid-exchange. One fresh session, one retry.
		logging.EngineError(sess.ID, "submit", err, "doc", doc, "retrying", true)
		sess, err = engine.Acquire(cfg.Engine, sess)
		if err != nil {
			return nil, errors.Wrapf(err, "dependency parsing failed for document %s", doc)
		}
		results, shouldReplace, err = sess.SubmitBatch(units)
		if err != nil {
			sess.Close()
			return nil, errors.Wrapf(err, "dependency parsing failed for document %s", doc)
		}
	}
	if shouldReplace {
		sess.Close()
		sess = nil
	}

	depHead, err := st.CreateEmpty(doc, cfg.Word)
	if err != nil {
		return sess, err
	}
	depHeadRef, err := st.CreateEmpty(doc, cfg.Word)
	if err != nil {
		return sess, err
	}
	depRel, err := st.CreateEmpty(doc, cfg.Word)
	if err != nil {
		return sess, err
	}

	for si, sent := range sentences {
		for n, ti := range sent {
			row := results[si][n]
			depRel[ti] = row.Deprel
			if row.Head == 0 {
				depHead[ti] = NoHead
				depHeadRef[ti] = ""
				continue
			}
			if row.Head < 1 || row.Head > len(sent) {
				return sess, errors.Wrapf(
					errors.NewProtocol(si, "head index "+strconv.Itoa(row.Head)+" outside sentence of "+strconv.Itoa(len(sent))+" tokens"),
					"dependency parsing failed for document %s", doc)
			}
			headTok := sent[row.Head-1]
			depHead[ti] = strconv.Itoa(headTok)
			depHeadRef[ti] = refs[headTok]
		}
	}

	if err := st.Write(doc, cfg.OutDepHead, depHead); err != nil {
		return sess, err
	}
	if err := st.Write(doc, cfg.OutDepHeadRef, depHeadRef); err != nil {
		return sess, err
	}
	if err := st.Write(doc, cfg.OutDepRel, depRel); err != nil {
		return sess, err
	}
	return sess, nil
}
