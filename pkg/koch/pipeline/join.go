package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Joined pairs a primary value with the secondary value under the same key.
// Found is false when the secondary has no such key.
type Joined[L, R any] struct {
	Left  L
	Right R
	Found bool
}

// JoiningReader is a left outer join: every primary record is yielded with
// the secondary's value for the same key, when there is one. Secondary keys
// absent from the primary never appear.
type JoiningReader[L, R any] struct {
	primary   Reader[L]
	secondary Lookup[R]
}

// NewJoining joins primary against secondary, which must support point
// lookups (ErrUnsupported otherwise).
func NewJoining[L, R any](primary Reader[L], secondary Reader[R]) (*JoiningReader[L, R], error) {
	l, err := AsLookup(secondary)
	if err != nil {
		return nil, fmt.Errorf("join secondary: %w", err)
	}
	return &JoiningReader[L, R]{primary: primary, secondary: l}, nil
}

// Each holds the secondary open for the whole primary scan.
func (j *JoiningReader[L, R]) Each(ctx context.Context, fn func(key string, value Joined[L, R]) error) (err error) {
	if err := j.secondary.Acquire(ctx); err != nil {
		return fmt.Errorf("join secondary: %w", err)
	}
	defer func() {
		err = errors.Join(err, j.secondary.Release())
	}()

	return stopped(j.primary.Each(ctx, func(key string, value L) error {
		right, found, err := j.secondary.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("join lookup %q: %w", key, err)
		}
		return fn(key, Joined[L, R]{Left: value, Right: right, Found: found})
	}))
}
