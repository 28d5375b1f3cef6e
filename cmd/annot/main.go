// Command annot drives the corpus annotation pipeline core. It exposes
// one subcommand per annotator operation plus the lexicon model
// builders; an external scheduler is expected to invoke the operations
// in dependency order, one document at a time.
package main

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/gosuri/uiprogress"

	"github.com/corpusworks/annot/core/annotate"
	"github.com/corpusworks/annot/core/engine"
	"github.com/corpusworks/annot/core/lexicon"
	"github.com/corpusworks/annot/core/sqlite"
	"github.com/corpusworks/annot/core/store"
	"github.com/corpusworks/annot/internal/logging"
)

const version = "0.2.0"

// CLI defines the command-line interface for annot.
var CLI struct {
	// Global flags
	WorkDir  string `name:"work-dir" short:"w" default:"annotations" help:"Annotation working directory" type:"path"`
	LogLevel string `name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Log level"`
	LogJSON  bool   `name:"log-json" help:"Emit JSON logs"`

	Annotate AnnotateGroup `cmd:"" help:"Annotator operations (ref, deps, word-classes, doc-classes)"`
	Lexicon  LexiconGroup  `cmd:"" help:"Lexicon model building"`
	Version  VersionCmd    `cmd:"" help:"Print version information"`
}

// AnnotateGroup contains the per-document annotator operations.
type AnnotateGroup struct {
	Ref         RefCmd         `cmd:"" help:"Number tokens relative to their sentence"`
	Deps        DepsCmd        `cmd:"" help:"Dependency parsing via an external engine"`
	WordClasses WordClassesCmd `cmd:"" help:"Token-level lexical classes from a compiled lexicon"`
	DocClasses  DocClassesCmd  `cmd:"" help:"Document-level lexical classes by aggregation"`
}

// LexiconGroup contains lexicon compilation operations.
type LexiconGroup struct {
	CompileTSV      CompileTSVCmd      `cmd:"" name:"compile-tsv" help:"Compile a TSV class lexicon with an XML hierarchy map"`
	CompileFramenet CompileFramenetCmd `cmd:"" name:"compile-framenet" help:"Compile a framenet-style XML lexicon"`
	Freq            FreqCmd            `cmd:"" help:"Build a reference frequency model from annotated documents"`
}

func openStore() (*store.Store, error) {
	return store.NewStore(CLI.WorkDir)
}

// RefCmd numbers tokens within their sentences.
type RefCmd struct {
	Doc      string `arg:"" help:"Document id"`
	Sentence string `default:"sentence" help:"Sentence span layer"`
	Token    string `default:"token" help:"Token span layer"`
	Out      string `default:"token:ref" help:"Output annotation"`
}

func (c *RefCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	return annotate.RefNumbers(st, annotate.RefConfig{
		Doc:      c.Doc,
		Sentence: c.Sentence,
		Token:    c.Token,
		Out:      c.Out,
	})
}

// DepsCmd runs the external dependency parser over one document.
type DepsCmd struct {
	Doc     string `arg:"" help:"Document id"`
	Jar     string `required:"" help:"Parser jar path" type:"existingfile"`
	Model   string `required:"" help:"Parsing model path or URL"`
	JavaBin string `name:"java" default:"java" help:"JVM binary"`

	Word string `default:"token:word" help:"Word form annotation"`
	POS  string `default:"token:pos" help:"Part-of-speech annotation"`
	MSD  string `default:"token:msd" help:"Morphological feature annotation"`
	Ref  string `default:"token:ref" help:"Sentence-relative number annotation"`
}

func (c *DepsCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	sess, err := annotate.DepParse(st, annotate.DepParseConfig{
		Doc: c.Doc,
		Engine: engine.Config{
			JavaBin: c.JavaBin,
			JarPath: c.Jar,
			Model:   c.Model,
		},
		Word: c.Word,
		POS:  c.POS,
		MSD:  c.MSD,
		Ref:  c.Ref,
	}, nil)
	sess.Close()
	return err
}

// WordClassesCmd annotates tokens with lexical classes.
type WordClassesCmd struct {
	Doc      string `arg:"" help:"Document id"`
	Lexicon  string `required:"" help:"Compiled lexicon database" type:"existingfile"`
	ClassSet string `name:"class-set" default:"" help:"Class set to load (empty = all)"`
	Out      string `required:"" help:"Output annotation"`

	Sense        string `default:"token:sense" help:"Sense annotation"`
	POS          string `default:"token:pos" help:"Part-of-speech annotation"`
	POSLimit     string `name:"pos-limit" default:"NN VB JJ AB" help:"POS allow-list, space-separated ('none' = all)"`
	Disambiguate bool   `default:"true" negatable:"" help:"Keep only top-ranked senses"`
	ConnectIDs   bool   `name:"connect-ids" help:"Tag class hits with their source sense id"`
}

func (c *WordClassesCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	allowList := annotate.DefaultPOSAllowList
	if strings.EqualFold(c.POSLimit, "none") {
		allowList = []string{}
	} else if c.POSLimit != "" {
		allowList = strings.Fields(c.POSLimit)
	}
	return annotate.WordClasses(st, annotate.WordClassConfig{
		Doc:          c.Doc,
		LexiconPath:  c.Lexicon,
		ClassSet:     c.ClassSet,
		Sense:        c.Sense,
		POS:          c.POS,
		Out:          c.Out,
		POSAllowList: allowList,
		Disambiguate: c.Disambiguate,
		ConnectIDs:   c.ConnectIDs,
	})
}

// DocClassesCmd aggregates token classes per text.
type DocClassesCmd struct {
	Doc string `arg:"" help:"Document id"`
	In  string `required:"" help:"Token-level class annotation"`
	Out string `required:"" help:"Output annotation on the text layer"`

	Text      string `default:"text" help:"Text span layer"`
	Token     string `default:"token" help:"Token span layer"`
	Sense     string `default:"token:sense" help:"Sense annotation (with --types-only)"`
	FreqModel string `name:"freq-model" help:"Reference frequency model database" type:"existingfile"`
	Cutoff    int    `default:"3" help:"Rank cutoff (ties with the last rank are kept)"`
	Decimals  int    `default:"3" help:"Score rounding precision"`
	TypesOnly bool   `name:"types-only" help:"Count each sense type once per text"`
}

func (c *DocClassesCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	return annotate.DocClasses(st, annotate.DocClassConfig{
		Doc:           c.Doc,
		Text:          c.Text,
		Token:         c.Token,
		InClasses:     c.In,
		Sense:         c.Sense,
		Out:           c.Out,
		FreqModelPath: c.FreqModel,
		Cutoff:        c.Cutoff,
		Decimals:      c.Decimals,
		TypesOnly:     c.TypesOnly,
	})
}

// CompileTSVCmd compiles a TSV class lexicon into a database.
type CompileTSVCmd struct {
	TSV       string `arg:"" help:"TSV lexicon source" type:"existingfile"`
	Hierarchy string `arg:"" help:"XML class-hierarchy map" type:"existingfile"`
	Out       string `required:"" help:"Output database path" type:"path"`
}

func (c *CompileTSVCmd) Run() error {
	entries, err := lexicon.ParseClassTSV(c.TSV, c.Hierarchy)
	if err != nil {
		return err
	}
	if err := writeWithProgress(c.Out, entries); err != nil {
		return err
	}
	fmt.Printf("Compiled %d rows into %s\n", len(entries), c.Out)
	return nil
}

// CompileFramenetCmd compiles a framenet-style XML lexicon.
type CompileFramenetCmd struct {
	XML      string `arg:"" help:"XML lexicon source" type:"existingfile"`
	Out      string `required:"" help:"Output database path" type:"path"`
	ClassSet string `name:"class-set" default:"swefn" help:"Class set name for the compiled rows"`
}

func (c *CompileFramenetCmd) Run() error {
	entries, err := lexicon.ParseFrameNetXML(c.XML, c.ClassSet)
	if err != nil {
		return err
	}
	if err := writeWithProgress(c.Out, entries); err != nil {
		return err
	}
	fmt.Printf("Compiled %d rows into %s\n", len(entries), c.Out)
	return nil
}

// writeWithProgress compiles entries with a progress bar.
func writeWithProgress(out string, entries []lexicon.Entry) error {
	uiprogress.Start()
	bar := uiprogress.AddBar(len(entries))
	bar.AppendCompleted()
	err := lexicon.WriteLexicon(out, entries, func(done, total int) {
		bar.Set(done)
	})
	uiprogress.Stop()
	return err
}

// FreqCmd builds a reference frequency model.
type FreqCmd struct {
	Docs     []string `arg:"" help:"Annotated document ids"`
	In       string   `required:"" help:"Token-level class annotation to count"`
	Lexicon  string   `required:"" help:"Compiled lexicon database (defines the label set)" type:"existingfile"`
	ClassSet string   `name:"class-set" default:"" help:"Class set to load (empty = all)"`
	Out      string   `required:"" help:"Output database path" type:"path"`
}

func (c *FreqCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	lex, err := lexicon.Open(c.Lexicon, c.ClassSet)
	if err != nil {
		return err
	}
	rel, err := lexicon.BuildFreqModel(st, c.Docs, c.In, lex, lexicon.AggregateOptions{})
	if err != nil {
		return err
	}
	if err := lexicon.WriteFreqModel(c.Out, rel); err != nil {
		return err
	}
	fmt.Printf("Wrote %d reference frequencies to %s\n", len(rel), c.Out)
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("annot %s (sqlite driver: %s)\n", version, sqlite.DriverType())
	return nil
}

func initLogging() {
	level := logging.LevelInfo
	switch CLI.LogLevel {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	format := logging.FormatText
	if CLI.LogJSON {
		format = logging.FormatJSON
	}
	logging.InitLogger(level, format)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("annot"),
		kong.Description("Corpus annotation pipeline core"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	initLogging()
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
