package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ghodss/yaml"

	"extract/expression"
	"extract/progress"
)

const DefaultStepDelay = 500 * time.Millisecond

type ConfigRoot struct {
	Delay       string   `json:"delay"`
	StepDelay   string   `json:"step_delay"`
	Timeout     string   `json:"timeout"`
	Workers     int      `json:"workers"`
	QueueSize   int      `json:"queue_size"`
	MaxDepth    int      `json:"max_depth"`
	Series      string   `json:"series"`
	Filter      string   `json:"filter"`
	FilterFn    string   `json:"filter_function"`
	Expressions []string `json:"expressions"`
	// RemoteWriteQueue bounds the samples waiting for the remote write endpoint.
	RemoteWriteQueue int `json:"remote_write_queue"`
}

// Config is ConfigRoot with defaults applied and durations parsed.
type Config struct {
	ConfigRoot
	delay     time.Duration
	stepDelay time.Duration
	timeout   time.Duration
}

func loadConfig(file string) (*Config, error) {
	root := ConfigRoot{}
	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &root); err != nil {
			return nil, fmt.Errorf("parse config %v: %w", file, err)
		}
	}
	return newConfig(root)
}

func newConfig(root ConfigRoot) (*Config, error) {
	cfg := &Config{ConfigRoot: root, stepDelay: DefaultStepDelay}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"delay", root.Delay, &cfg.delay},
		{"step_delay", root.StepDelay, &cfg.stepDelay},
		{"timeout", root.Timeout, &cfg.timeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", d.name, err)
		}
		if parsed < 0 {
			return nil, fmt.Errorf("%v: negative duration %v", d.name, d.value)
		}
		*d.dst = parsed
	}

	if cfg.Workers < 0 || cfg.QueueSize < 0 || cfg.MaxDepth < 0 || cfg.RemoteWriteQueue < 0 {
		return nil, errors.New("workers, queue_size, max_depth and remote_write_queue must not be negative")
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 100
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = expression.DefaultMaxDepth
	}
	if cfg.Series == "" {
		cfg.Series = progress.DefaultSeries
	}
	if cfg.RemoteWriteQueue == 0 {
		cfg.RemoteWriteQueue = progress.DefaultRemoteWriteQueue
	}

	return cfg, nil
}

// queueSizeFor returns a queue size that holds n expressions submitted at
// once, so none of them is rejected as queue full.
func (c *Config) queueSizeFor(n int) int {
	if n > c.QueueSize {
		return n
	}
	return c.QueueSize
}
