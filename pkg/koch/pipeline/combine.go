package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cognicore/koch/internal/runid"
	"github.com/cognicore/koch/pkg/koch/internalerr"
)

// CombineFunc merges a new value into the accumulator stored under the same
// key. found is false the first time a key is seen, when old is the zero
// value; that is where defaults and smoothing belong.
//
// A CombineFunc must be associative and commutative over repeated calls:
// records reach it in reader order, which carries no guarantee for records
// that share a key.
type CombineFunc[V any] func(value, old V, found bool) (V, error)

// CombiningPipeline reduces by key without holding values in memory. Every
// emitted (key, value) is merged with the value already stored under key in
// a table, and once the input is exhausted the table's ordered contents are
// the pipeline's output.
type CombiningPipeline[In, Acc any] struct {
	reader  Reader[In]
	lookup  *TableReader[Acc]
	sink    *TableWriter[Acc]
	pipe    PipeFunc[In, Acc]
	combine CombineFunc[Acc]
	opts    options
}

// NewCombining creates a combining pipeline. lookup and sink must be views
// of the same table.
func NewCombining[In, Acc any](
	r Reader[In],
	lookup *TableReader[Acc],
	sink *TableWriter[Acc],
	pipe PipeFunc[In, Acc],
	combine CombineFunc[Acc],
	opts ...Option,
) (*CombiningPipeline[In, Acc], error) {
	o := buildOptions("combine", opts)
	if !sameTable(lookup, sink) {
		return nil, fmt.Errorf("%w: %s: lookup and sink must view the same store", internalerr.ErrInvalidConfig, o.name)
	}
	if combine == nil {
		return nil, fmt.Errorf("%w: %s: combine is not implemented", internalerr.ErrUnsupported, o.name)
	}
	return &CombiningPipeline[In, Acc]{
		reader:  r,
		lookup:  lookup,
		sink:    sink,
		pipe:    pipe,
		combine: combine,
		opts:    o,
	}, nil
}

// OnTable is NewCombining over both views of t.
func OnTable[In, Acc any](r Reader[In], t *Table[Acc], pipe PipeFunc[In, Acc], combine CombineFunc[Acc], opts ...Option) (*CombiningPipeline[In, Acc], error) {
	return NewCombining(r, t.Reader(), t.Writer(), pipe, combine, opts...)
}

// Run performs the accumulation pass and flushes it.
func (c *CombiningPipeline[In, Acc]) Run(ctx context.Context) (err error) {
	log := c.opts.logger.With("stage", c.opts.name, "run", runid.New())
	start := time.Now()
	var in, merged int64

	if err := c.sink.Open(ctx); err != nil {
		return fmt.Errorf("%s: open store: %w", c.opts.name, err)
	}
	defer func() {
		if cerr := c.sink.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("%s: close store: %w", c.opts.name, cerr))
		}
		if err != nil {
			log.Error("combine failed", "in", in, "merged", merged, "err", err)
			return
		}
		log.Info("combine finished", "in", in, "merged", merged, "elapsed", time.Since(start))
	}()

	merge := func(key string, value Acc) error {
		old, found, err := c.sink.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("lookup %q: %w", key, err)
		}
		next, err := c.combine(value, old, found)
		if err != nil {
			return fmt.Errorf("combine %q: %w", key, err)
		}
		merged++
		return c.sink.Write(ctx, key, next)
	}

	err = stopped(c.reader.Each(ctx, func(key string, value In) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		in++
		return c.pipe(ctx, key, value, merge)
	}))
	if err != nil {
		return fmt.Errorf("%s: %w", c.opts.name, err)
	}
	if err := c.sink.Flush(ctx); err != nil {
		return fmt.Errorf("%s: flush: %w", c.opts.name, err)
	}
	return nil
}

// Each runs the accumulation pass to completion, then yields every
// (key, accumulator) in key order, one record per distinct key.
func (c *CombiningPipeline[In, Acc]) Each(ctx context.Context, fn func(key string, value Acc) error) (err error) {
	if err := c.lookup.Acquire(ctx); err != nil {
		return fmt.Errorf("%s: open store: %w", c.opts.name, err)
	}
	defer func() {
		err = errors.Join(err, c.lookup.Release())
	}()

	if err := c.Run(ctx); err != nil {
		return err
	}
	return c.lookup.Each(ctx, fn)
}
