package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cognicore/koch/internal/runid"
	"github.com/cognicore/koch/pkg/koch/internalerr"
)

// Pipeline applies a PipeFunc to every record of a Reader and forwards the
// results to a Writer. A Pipeline is itself a Reader of its outputs, so
// pipelines compose without intermediate stores.
type Pipeline[In, Out any] struct {
	reader Reader[In]
	writer Writer[Out]
	pipe   PipeFunc[In, Out]
	opts   options
}

// New creates a pipeline from reader to writer.
func New[In, Out any](r Reader[In], w Writer[Out], pipe PipeFunc[In, Out], opts ...Option) *Pipeline[In, Out] {
	return &Pipeline[In, Out]{
		reader: r,
		writer: w,
		pipe:   pipe,
		opts:   buildOptions("pipeline", opts),
	}
}

// Compose creates a writer-less pipeline, used as a Reader.
func Compose[In, Out any](r Reader[In], pipe PipeFunc[In, Out], opts ...Option) *Pipeline[In, Out] {
	return New[In, Out](r, nil, pipe, opts...)
}

// Identity forwards every record unchanged.
func Identity[V any](ctx context.Context, key string, value V, emit Emit[V]) error {
	return emit(key, value)
}

// Each reads the source and yields every transformed record.
func (p *Pipeline[In, Out]) Each(ctx context.Context, fn func(key string, value Out) error) error {
	return stopped(p.reader.Each(ctx, func(key string, value In) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return p.pipe(ctx, key, value, fn)
	}))
}

// Run drains the pipeline into its writer. The writer is closed on every
// path, and a close failure is reported alongside any run error.
func (p *Pipeline[In, Out]) Run(ctx context.Context) (err error) {
	if p.writer == nil {
		return fmt.Errorf("%w: pipeline %s has no writer", internalerr.ErrInvalidConfig, p.opts.name)
	}

	log := p.opts.logger.With("stage", p.opts.name, "run", runid.New())
	start := time.Now()
	var in, out int64

	if err := p.writer.Open(ctx); err != nil {
		return fmt.Errorf("%s: open writer: %w", p.opts.name, err)
	}
	defer func() {
		if cerr := p.writer.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("%s: close writer: %w", p.opts.name, cerr))
		}
		if err != nil {
			log.Error("pipeline failed", "in", in, "out", out, "err", err)
			return
		}
		log.Info("pipeline finished", "in", in, "out", out, "elapsed", time.Since(start))
	}()

	err = stopped(p.reader.Each(ctx, func(key string, value In) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		in++
		return p.pipe(ctx, key, value, func(k string, v Out) error {
			out++
			return p.writer.Write(ctx, k, v)
		})
	}))
	if err != nil {
		return fmt.Errorf("%s: %w", p.opts.name, err)
	}
	return nil
}
