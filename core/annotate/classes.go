package annotate

import (
	"github.com/corpusworks/annot/core/cwbset"
	"github.com/corpusworks/annot/core/errors"
	"github.com/corpusworks/annot/core/lexicon"
	"github.com/corpusworks/annot/core/span"
	"github.com/corpusworks/annot/core/store"
)

// DefaultPOSAllowList limits lexical-class lookup to content words:
// nouns, verbs, adjectives and adverbs.
var DefaultPOSAllowList = []string{"NN", "VB", "JJ", "AB"}

// WordClassConfig configures token-level lexical-class annotation.
type WordClassConfig struct {
	Doc string

	// Lexicon is a preloaded lexicon shared across workers. When nil,
	// LexiconPath/ClassSet name the database to load.
	Lexicon     *lexicon.Lexicon
	LexiconPath string
	ClassSet    string

	// Input annotations.
	Sense string // ranked sense ids per token
	POS   string // parts of speech

	// Out is the output annotation.
	Out string

	// POSAllowList limits lookup to these parts of speech. Nil means
	// the content-word default; an explicit empty, non-nil list admits
	// every token.
	POSAllowList []string

	Disambiguate bool
	ConnectIDs   bool

	Delimiter string
	Affix     string
	ScoreSep  string
}

// WordClasses annotates each token with the lexical classes of its
// (disambiguated) senses.
func WordClasses(st *store.Store, cfg WordClassConfig) error {
	cfg.Sense = defaultStr(cfg.Sense, DefaultSense)
	cfg.POS = defaultStr(cfg.POS, DefaultPOS)
	if cfg.Out == "" {
		return errors.NewConfig("out", "output annotation name is required")
	}

	lex := cfg.Lexicon
	if lex == nil {
		if cfg.LexiconPath == "" {
			return errors.NewConfig("lexicon", "a lexicon or a lexicon path is required")
		}
		var err error
		lex, err = lexicon.Open(cfg.LexiconPath, cfg.ClassSet)
		if err != nil {
			return err
		}
	}

	allowList := cfg.POSAllowList
	if allowList == nil {
		allowList = DefaultPOSAllowList
	}

	senses, err := st.Read(cfg.Doc, cfg.Sense)
	if err != nil {
		return err
	}
	pos, err := st.Read(cfg.Doc, cfg.POS)
	if err != nil {
		return err
	}

	opts := lexicon.LookupOptions{
		Disambiguate: cfg.Disambiguate,
		ConnectIDs:   cfg.ConnectIDs,
		POSAllowList: allowList,
		Delimiter:    cfg.Delimiter,
		Affix:        cfg.Affix,
		ScoreSep:     cfg.ScoreSep,
	}

	out, err := st.CreateEmpty(cfg.Doc, cfg.POS)
	if err != nil {
		return err
	}
	delimiter := defaultStr(cfg.Delimiter, cwbset.Delimiter)
	affix := defaultStr(cfg.Affix, cwbset.Affix)
	for i, senseField := range senses {
		classes := lex.LookupToken(senseField, pos[i], opts)
		out[i] = cwbset.Encode(classes, delimiter, affix)
	}
	return st.Write(cfg.Doc, cfg.Out, out)
}

// DocClassConfig configures document-level class aggregation.
type DocClassConfig struct {
	Doc string

	// Input annotations.
	Text      string // span layer of texts (aggregation groups)
	Token     string // span layer of tokens
	InClasses string // token-level class annotation to aggregate
	Sense     string // ranked sense ids, consulted with TypesOnly

	// Out is the output annotation on the text layer.
	Out string

	// FreqModel is a preloaded reference model; FreqModelPath names a
	// database to load instead. Without either, raw counts are used.
	FreqModel     *lexicon.FreqModel
	FreqModelPath string

	// Cutoff and Decimals default to 3 when zero.
	Cutoff   int
	Decimals int

	TypesOnly bool

	Delimiter string
	Affix     string
	ScoreSep  string
}

// DocClasses annotates each text with its dominant lexical classes,
// aggregated over the text's tokens.
func DocClasses(st *store.Store, cfg DocClassConfig) error {
	cfg.Text = defaultStr(cfg.Text, DefaultText)
	cfg.Token = defaultStr(cfg.Token, DefaultToken)
	cfg.Sense = defaultStr(cfg.Sense, DefaultSense)
	if cfg.InClasses == "" {
		return errors.NewConfig("in", "token-level class annotation name is required")
	}
	if cfg.Out == "" {
		return errors.NewConfig("out", "output annotation name is required")
	}
	if cfg.Cutoff == 0 {
		cfg.Cutoff = 3
	}
	if cfg.Decimals == 0 {
		cfg.Decimals = 3
	}

	model := cfg.FreqModel
	if model == nil && cfg.FreqModelPath != "" {
		var err error
		model, err = lexicon.OpenFreqModel(cfg.FreqModelPath)
		if err != nil {
			return err
		}
	}

	textSpans, err := st.ReadSpans(cfg.Doc, cfg.Text)
	if err != nil {
		return err
	}
	tokSpans, err := st.ReadSpans(cfg.Doc, cfg.Token)
	if err != nil {
		return err
	}
	classes, err := st.Read(cfg.Doc, cfg.InClasses)
	if err != nil {
		return err
	}
	var senses []string
	if cfg.TypesOnly {
		senses, err = st.Read(cfg.Doc, cfg.Sense)
		if err != nil {
			return err
		}
	}

	groups, _ := span.GroupChildren(textSpans, tokSpans)

	opts := lexicon.AggregateOptions{
		Cutoff:    cfg.Cutoff,
		Decimals:  cfg.Decimals,
		TypesOnly: cfg.TypesOnly,
		Delimiter: cfg.Delimiter,
		Affix:     cfg.Affix,
		ScoreSep:  cfg.ScoreSep,
	}
	delimiter := defaultStr(cfg.Delimiter, cwbset.Delimiter)
	affix := defaultStr(cfg.Affix, cwbset.Affix)

	out, err := st.CreateEmpty(cfg.Doc, cfg.Text)
	if err != nil {
		return err
	}
	for i, members := range groups {
		ranked := lexicon.AggregateGroup(members, classes, senses, model, opts)
		out[i] = cwbset.Encode(ranked, delimiter, affix)
	}
	return st.Write(cfg.Doc, cfg.Out, out)
}
