// Package sample draws a uniform random sample of a record stream.
package sample

import (
	"context"
	"log/slog"
	"math/rand"

	"github.com/cognicore/koch/pkg/koch/pipeline"
)

// Reservoir yields a uniform sample of at most Size records of its source,
// chosen with reservoir sampling. The same Seed always draws the same
// sample from the same stream.
type Reservoir[V any] struct {
	source pipeline.Reader[V]
	Size   int
	Seed   int64
}

// New samples size records of r.
func New[V any](r pipeline.Reader[V], size int, seed int64) *Reservoir[V] {
	return &Reservoir[V]{source: r, Size: size, Seed: seed}
}

// Draw reads the whole source and returns the sample in reservoir order.
func (s *Reservoir[V]) Draw(ctx context.Context) ([]pipeline.Record[V], error) {
	if s.Size <= 0 {
		return nil, nil
	}
	rng := rand.New(rand.NewSource(s.Seed))
	out := make([]pipeline.Record[V], 0, s.Size)
	var seen int64
	err := s.source.Each(ctx, func(key string, value V) error {
		rec := pipeline.Record[V]{Key: key, Value: value}
		if len(out) < s.Size {
			out = append(out, rec)
		} else if j := rng.Int63n(seen + 1); j < int64(s.Size) {
			out[j] = rec
		}
		seen++
		return nil
	})
	return out, err
}

// Each yields the sample. Every call draws afresh with the same seed.
func (s *Reservoir[V]) Each(ctx context.Context, fn func(key string, value V) error) error {
	records, err := s.Draw(ctx)
	if err != nil {
		return err
	}
	return pipeline.Fixed(records...).Each(ctx, fn)
}

// NewPipeline copies a sample of r into w.
func NewPipeline[V any](r pipeline.Reader[V], w pipeline.Writer[V], size int, seed int64, logger *slog.Logger) *pipeline.Pipeline[V, V] {
	return pipeline.New[V, V](New(r, size, seed), w, pipeline.Identity[V], pipeline.WithName("sample"), pipeline.WithLogger(logger))
}
