package xlsxkit

import (
	"io"
	"runtime"

	"github.com/sirupsen/logrus"
)

// Options configures loading and saving.
type Options struct {
	// Logger receives load and save milestones at debug level. The
	// default discards everything.
	Logger logrus.FieldLogger
	// Concurrency bounds the number of worksheets parsed at once.
	// Values below 1 mean one per CPU.
	Concurrency int
	// Recalculate evaluates every formula after loading, replacing the
	// cached results stored in the file.
	Recalculate bool
}

// Option modifies Options.
type Option func(*Options)

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Logger:      discardLogger(),
		Concurrency: runtime.GOMAXPROCS(0),
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithConcurrency sets how many worksheets are parsed in parallel.
func WithConcurrency(n int) Option {
	return func(o *Options) { o.Concurrency = n }
}

// WithRecalculate makes Load evaluate every formula.
func WithRecalculate(on bool) Option {
	return func(o *Options) { o.Recalculate = on }
}

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Concurrency < 1 {
		o.Concurrency = runtime.GOMAXPROCS(0)
	}
	return o
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
