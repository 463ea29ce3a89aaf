package pipeline

import "context"

// FixedReader yields a literal list of records. Useful for debugging a
// stage on a handful of inputs without touching a store.
type FixedReader[V any] struct {
	records []Record[V]
}

// Fixed creates a reader over records, yielded in the given order.
func Fixed[V any](records ...Record[V]) *FixedReader[V] {
	return &FixedReader[V]{records: records}
}

// FixedKeys yields each key with an empty row, like a URL list.
func FixedKeys(keys ...string) *FixedReader[Row] {
	records := make([]Record[Row], len(keys))
	for i, k := range keys {
		records[i] = Record[Row]{Key: k, Value: Row{}}
	}
	return Fixed(records...)
}

func (r *FixedReader[V]) Each(ctx context.Context, fn func(key string, value V) error) error {
	for _, rec := range r.records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec.Key, rec.Value); err != nil {
			return stopped(err)
		}
	}
	return nil
}
