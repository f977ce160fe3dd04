package behapy

import "github.com/himanishpuri/behapy/internal/fp"

type Config struct {
	Root          string
	IsoChannel    string
	SmoothCutoff  float64
	DBPath        string // defaults to the ledger inside the dataset
	DisableLedger bool
	Logger        Logger
	Ledger        Ledger
}

type Option func(*Config)

func WithRoot(root string) Option {
	return func(c *Config) {
		c.Root = root
	}
}

func WithIsoChannel(name string) Option {
	return func(c *Config) {
		c.IsoChannel = name
	}
}

// WithSmoothCutoff sets the low-pass cutoff in Hz.
func WithSmoothCutoff(hz float64) Option {
	return func(c *Config) {
		c.SmoothCutoff = hz
	}
}

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithLedger(ledger Ledger) Option {
	return func(c *Config) {
		c.Ledger = ledger
	}
}

// WithoutLedger runs without recording runs anywhere.
func WithoutLedger() Option {
	return func(c *Config) {
		c.DisableLedger = true
	}
}

func defaultConfig() *Config {
	return &Config{
		Root:         ".",
		IsoChannel:   fp.DefaultIsoChannel,
		SmoothCutoff: fp.DefaultSmoothCutoff,
	}
}
