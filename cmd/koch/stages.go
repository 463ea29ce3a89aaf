package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/cognicore/koch/pkg/koch/bayes"
	"github.com/cognicore/koch/pkg/koch/codec"
	"github.com/cognicore/koch/pkg/koch/doc"
	"github.com/cognicore/koch/pkg/koch/eval"
	"github.com/cognicore/koch/pkg/koch/extract"
	"github.com/cognicore/koch/pkg/koch/fetch"
	"github.com/cognicore/koch/pkg/koch/internalerr"
	"github.com/cognicore/koch/pkg/koch/mutualinfo"
	"github.com/cognicore/koch/pkg/koch/parse"
	"github.com/cognicore/koch/pkg/koch/pipeline"
	"github.com/cognicore/koch/pkg/koch/sample"
	"github.com/cognicore/koch/pkg/koch/store/backends"
	"github.com/cognicore/koch/pkg/koch/textrank"
	"github.com/cognicore/koch/pkg/koch/tfidf"
)

// openTable binds a codec to the store at path. Output stores are created
// and must not exist yet; with -debug they live in memory instead.
func openTable[V any](a *app, path string, output bool, c codec.Codec[V]) (*pipeline.Table[V], error) {
	opts := a.cfg.Read(path)
	if output {
		opts = a.cfg.Write(path)
		if a.debug {
			opts.Backend = backends.Memory
		}
	}
	h, err := backends.NewHandle(opts)
	if err != nil {
		return nil, err
	}
	return pipeline.NewTable(h, c), nil
}

func docTables(a *app, in, out string) (*pipeline.Table[doc.Document], *pipeline.Table[doc.Document], error) {
	src, err := openTable(a, in, false, codec.Msgpack[doc.Document]())
	if err != nil {
		return nil, nil, err
	}
	dst, err := openTable(a, out, true, codec.Msgpack[doc.Document]())
	if err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

// show prints an output table when running with -debug
func show[V any](ctx context.Context, a *app, out *pipeline.Table[V], format func(V) string) error {
	if !a.debug {
		return nil
	}
	w := pipeline.NewDebugWriter[V](a.stdout)
	w.Format = format
	return pipeline.New[V, V](out.Reader(), w, pipeline.Identity[V], pipeline.WithName("show"), pipeline.WithLogger(a.logger)).Run(ctx)
}

func summarize(d doc.Document) string {
	parts := []string{fmt.Sprintf("%d bytes html", len(d.RawHTML))}
	if d.Elements != nil {
		parts = append(parts, fmt.Sprintf("region %.3f", d.Elements.Score))
	}
	if len(d.Blobs) > 0 {
		parts = append(parts, fmt.Sprintf("%d blobs", len(d.Blobs)))
	}
	if n := len(d.Keywords); n > 0 {
		words := d.DistinctKeywords()
		if len(words) > 5 {
			words = words[:5]
		}
		parts = append(parts, fmt.Sprintf("%d keywords (%s)", n, strings.Join(words, " ")))
	}
	if len(d.Classification) > 0 {
		classes := make([]string, 0, len(d.Classification))
		for c, v := range d.Classification {
			classes = append(classes, fmt.Sprintf("%s=%.2f", c, v))
		}
		sort.Strings(classes)
		parts = append(parts, strings.Join(classes, " "))
	}
	return strings.Join(parts, ", ")
}

func summarizeKeyword(k doc.Keyword) string {
	b, err := json.Marshal(k)
	if err != nil {
		return err.Error()
	}
	return string(b)
}

func fetchFlags(fs *flag.FlagSet, o *overrides) {
	fs.Var(&o.urls, "url", "Fetch this URL instead of the URL table (repeatable)")
	fs.StringVar(&o.pattern, "pattern", "", "Only fetch URLs matching this pattern")
	fs.IntVar(&o.sample, "sample", 0, "Fetch a random sample of this many URLs")
	fs.Int64Var(&o.seed, "seed", 0, "Sampling seed")
}

func runFetch(ctx context.Context, a *app, o *overrides) error {
	cfg := a.cfg.Fetch
	if o.pattern != "" {
		cfg.URLPattern = o.pattern
	}

	var rows pipeline.Reader[pipeline.Row] = fetch.Rows(pick(o.in, a.cfg.Paths.URLs), cfg)
	if len(o.urls) > 0 {
		rows = pipeline.FixedKeys(o.urls...)
	}
	if o.sample > 0 {
		rows = sample.New(rows, o.sample, o.seed)
	}

	out, err := openTable(a, pick(o.out, a.cfg.Paths.Fetch), true, codec.Msgpack[doc.Document]())
	if err != nil {
		return err
	}
	p, err := fetch.NewPipeline(rows, out.Writer(), fetch.NewFetcher(cfg, nil, a.logger))
	if err != nil {
		return err
	}
	if err := p.Run(ctx); err != nil {
		return err
	}
	return show(ctx, a, out, summarize)
}

func sampleFlags(fs *flag.FlagSet, o *overrides) {
	fs.IntVar(&o.sample, "n", 0, "Sample size (overrides config)")
	fs.Int64Var(&o.seed, "seed", 0, "Sampling seed (overrides config)")
}

func runSample(ctx context.Context, a *app, o *overrides) error {
	size, seed := a.cfg.Sample.Size, a.cfg.Sample.Seed
	if o.sample > 0 {
		size = o.sample
	}
	if o.seed != 0 {
		seed = o.seed
	}

	in, err := openTable(a, pick(o.in, a.cfg.Paths.Fetch), false, codec.Raw())
	if err != nil {
		return err
	}
	out, err := openTable(a, pick(o.out, a.cfg.Paths.Sample), true, codec.Raw())
	if err != nil {
		return err
	}
	if err := sample.NewPipeline[[]byte](in.Reader(), out.Writer(), size, seed, a.logger).Run(ctx); err != nil {
		return err
	}
	return show(ctx, a, out, func(b []byte) string { return fmt.Sprintf("%d bytes", len(b)) })
}

func runExtract(ctx context.Context, a *app, o *overrides) error {
	in, out, err := docTables(a, pick(o.in, a.cfg.Paths.Fetch), pick(o.out, a.cfg.Paths.Extract))
	if err != nil {
		return err
	}
	if err := extract.NewPipeline(in.Reader(), out.Writer(), a.logger).Run(ctx); err != nil {
		return err
	}
	return show(ctx, a, out, summarize)
}

func runParse(ctx context.Context, a *app, o *overrides) error {
	stopwords, err := a.cfg.Stopwords()
	if err != nil {
		return err
	}
	in, out, err := docTables(a, pick(o.in, a.cfg.Paths.Extract), pick(o.out, a.cfg.Paths.Parse))
	if err != nil {
		return err
	}
	if err := parse.NewPipeline(in.Reader(), out.Writer(), parse.NewTokenizer(stopwords), a.logger).Run(ctx); err != nil {
		return err
	}
	return show(ctx, a, out, summarize)
}

func runTextRank(ctx context.Context, a *app, o *overrides) error {
	in, out, err := docTables(a, pick(o.in, a.cfg.Paths.Parse), pick(o.out, a.cfg.Paths.TextRank))
	if err != nil {
		return err
	}
	if err := textrank.NewPipeline(in.Reader(), out.Writer(), a.cfg.TextRank, a.logger).Run(ctx); err != nil {
		return err
	}
	return show(ctx, a, out, summarize)
}

func runTfIdf(ctx context.Context, a *app, o *overrides) error {
	in, out, err := docTables(a, pick(o.in, a.cfg.Paths.Parse), pick(o.out, a.cfg.Paths.TfIdf))
	if err != nil {
		return err
	}
	idf, err := openTable(a, a.cfg.Paths.IDF, true, codec.Msgpack[doc.Keyword]())
	if err != nil {
		return err
	}
	if err := tfidf.Run(ctx, in.Reader(), idf, out, a.logger); err != nil {
		return err
	}
	return show(ctx, a, out, summarize)
}

func runBayes(ctx context.Context, a *app, o *overrides) error {
	in, out, err := docTables(a, pick(o.in, a.cfg.Paths.TfIdf), pick(o.out, a.cfg.Paths.Bayes))
	if err != nil {
		return err
	}
	priors, err := openTable(a, a.cfg.Paths.BayesPrior, true, codec.Msgpack[doc.Keyword]())
	if err != nil {
		return err
	}
	if err := bayes.Run(ctx, in.Reader(), a.cfg.Bayes, priors, out, a.logger); err != nil {
		return err
	}
	return show(ctx, a, out, summarize)
}

func runMutualInfo(ctx context.Context, a *app, o *overrides) error {
	in, err := openTable(a, pick(o.in, a.cfg.Paths.Parse), false, codec.Msgpack[doc.Document]())
	if err != nil {
		return err
	}
	priors, err := openTable(a, a.cfg.Paths.MIPrior, true, codec.Msgpack[doc.Keyword]())
	if err != nil {
		return err
	}
	out, err := openTable(a, pick(o.out, a.cfg.Paths.MutualInfo), true, codec.Msgpack[doc.Keyword]())
	if err != nil {
		return err
	}
	if err := mutualinfo.Run(ctx, in.Reader(), a.cfg.Bayes, priors, out.Writer(), a.logger); err != nil {
		return err
	}
	return show(ctx, a, out, summarizeKeyword)
}

func runEval(ctx context.Context, a *app, o *overrides) error {
	cfg := a.cfg.Eval
	labels := pick(o.in, cfg.Labels)
	if labels == "" {
		return fmt.Errorf("%w: eval needs a labels file", internalerr.ErrInvalidConfig)
	}
	docs, err := openTable(a, a.cfg.Paths.Parse, false, codec.Msgpack[doc.Document]())
	if err != nil {
		return err
	}

	columns := []string{eval.ColumnPrecision, eval.ColumnRecall, eval.ColumnFound}
	var w pipeline.Writer[pipeline.Row] = pipeline.NewDebugWriter[pipeline.Row](a.stdout)
	if output := pick(o.out, cfg.Output); output != "" && !a.debug {
		w = pipeline.NewCSVWriter(output, cfg.KeyColumn, columns...)
	}

	p, err := eval.NewPipeline(pipeline.NewCSVReader(labels, cfg.KeyColumn, cfg.ValueColumn), docs.Reader(), cfg.ValueColumn, w, a.logger)
	if err != nil {
		return err
	}
	return p.Run(ctx)
}

func dumpFlags(fs *flag.FlagSet, o *overrides) {
	fs.IntVar(&o.limit, "limit", 0, "Print at most this many records")
	fs.IntVar(&o.width, "width", 0, "Truncate printed values to this many characters (0 prints them whole)")
}

func runDump(ctx context.Context, a *app, o *overrides) error {
	if o.in == "" {
		return fmt.Errorf("%w: dump needs -in", internalerr.ErrInvalidConfig)
	}
	in, err := openTable(a, o.in, false, codec.Msgpack[any]())
	if err != nil {
		return err
	}

	n := 0
	limit := func(ctx context.Context, key string, v any, emit pipeline.Emit[any]) error {
		if o.limit > 0 && n >= o.limit {
			return internalerr.ErrStop
		}
		n++
		return emit(key, v)
	}
	w := pipeline.NewDebugWriter[any](a.stdout)
	w.MaxWidth = o.width
	w.Format = func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
	return pipeline.New[any, any](in.Reader(), w, limit, pipeline.WithName("dump"), pipeline.WithLogger(a.logger)).Run(ctx)
}
