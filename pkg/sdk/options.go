package recherche

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver    string // "redis" or "bleve"
	addrs     []string
	password  string
	keyPrefix string
	dir       string

	index        string
	workers      int
	queue        int
	genWorkers   int
	seed         uint64
	maxDropRatio float64

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis configures the client to connect to a Redis instance with the search module.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix sets the key prefix of documents stored in Redis.
// Default: "recherche:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithBleve keeps the index in an embedded bleve store under dir.
// An empty dir keeps everything in memory.
func WithBleve(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "bleve"
		c.dir = dir
	})
}

// WithIndex sets the index name. Default: "personne".
func WithIndex(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.index = name
	})
}

// WithDispatch sizes the pool of backend workers and its queue.
// Defaults: 16 workers, 1024 queued calls.
func WithDispatch(workers, queue int) Option {
	return optionFunc(func(c *clientConfig) {
		c.workers = workers
		c.queue = queue
	})
}

// WithGenerator sets the number of generator workers and a seed.
// A zero seed draws a random one.
func WithGenerator(workers int, seed uint64) Option {
	return optionFunc(func(c *clientConfig) {
		c.genWorkers = workers
		c.seed = seed
	})
}

// WithMaxDropRatio fails a search when more than ratio of its hits cannot be decoded.
// Zero keeps the lenient default: bad hits are dropped and counted.
func WithMaxDropRatio(ratio float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxDropRatio = ratio
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
