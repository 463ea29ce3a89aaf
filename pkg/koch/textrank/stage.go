package textrank

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cognicore/koch/pkg/koch/doc"
	"github.com/cognicore/koch/pkg/koch/pipeline"
)

// NewPipeline annotates each document with its TextRank keywords. A
// document whose ranking does not converge keeps the scores of the last
// iteration and a warning is logged.
func NewPipeline(r pipeline.Reader[doc.Document], w pipeline.Writer[doc.Document], cfg Config, logger *slog.Logger) *pipeline.Pipeline[doc.Document, doc.Document] {
	if logger == nil {
		logger = slog.Default()
	}
	return pipeline.New(r, w, Annotate(cfg, logger), pipeline.WithName("textrank"), pipeline.WithLogger(logger))
}

// Annotate returns the per-document transform of NewPipeline.
func Annotate(cfg Config, logger *slog.Logger) pipeline.PipeFunc[doc.Document, doc.Document] {
	return func(ctx context.Context, key string, d doc.Document, emit pipeline.Emit[doc.Document]) error {
		keywords, err := Score(&d, cfg)
		var warn *ConvergenceWarning
		switch {
		case errors.As(err, &warn):
			logger.Warn("textrank did not converge", "url", key, "iterations", warn.Iterations, "delta", warn.Delta)
		case err != nil:
			return err
		}
		d.Keywords = keywords
		return emit(key, d)
	}
}
