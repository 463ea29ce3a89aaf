package pipeline

import "log/slog"

// Option configures a pipeline
type Option func(*options)

type options struct {
	name   string
	logger *slog.Logger
}

// WithName labels the pipeline in log records.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(defaultName string, opts []Option) options {
	o := options{name: defaultName}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
