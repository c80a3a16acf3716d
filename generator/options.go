package generator

import (
	"log/slog"
	"runtime"

	"github.com/royalcat/geograph/quadtree"
)

type options struct {
	threads   int
	seed      uint64
	capacity  int
	splitMode quadtree.SplitMode
	progress  bool
	logger    *slog.Logger
}

type Option interface {
	apply(*options)
}

type threadsOption int

func (t threadsOption) apply(o *options) { o.threads = int(t) }

// Default: GOMAXPROCS
func WithThreads(threads int) Option { return threadsOption(threads) }

type seedOption uint64

func (s seedOption) apply(o *options) { o.seed = uint64(s) }

// WithSeed fixes the generation seed; per-source generators are derived
// from it, so results are reproducible regardless of thread count.
func WithSeed(seed uint64) Option { return seedOption(seed) }

type capacityOption int

func (c capacityOption) apply(o *options) { o.capacity = int(c) }

// WithCapacity sets the quadtree leaf capacity. Default: 1000.
func WithCapacity(capacity int) Option { return capacityOption(capacity) }

type splitModeOption quadtree.SplitMode

func (m splitModeOption) apply(o *options) { o.splitMode = quadtree.SplitMode(m) }

func WithSplitMode(mode quadtree.SplitMode) Option { return splitModeOption(mode) }

type progressOption bool

func (p progressOption) apply(o *options) { o.progress = bool(p) }

// WithProgress enables a terminal progress bar during edge sampling.
func WithProgress(enabled bool) Option { return progressOption(enabled) }

type loggerOption struct{ logger *slog.Logger }

func (l loggerOption) apply(o *options) { o.logger = l.logger }

func WithLogger(logger *slog.Logger) Option { return loggerOption{logger} }

func loadOptions(opts ...Option) options {
	o := options{
		threads:  runtime.GOMAXPROCS(0),
		seed:     1,
		capacity: 1000,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}
