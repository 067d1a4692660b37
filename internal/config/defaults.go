package config

import (
	"runtime"
	"time"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// CompositeDefaultApplier runs domain appliers in a fixed order.
type CompositeDefaultApplier struct {
	appliers []DefaultApplier
}

// NewDefaultApplier returns the applier chain for every configuration domain.
func NewDefaultApplier() *CompositeDefaultApplier {
	return &CompositeDefaultApplier{appliers: []DefaultApplier{
		&pathsDefaultApplier{},
		&buildDefaultApplier{},
		&normalizeDefaultApplier{},
		&typesetDefaultApplier{},
		&watchDefaultApplier{},
		&notifyDefaultApplier{},
		&loggingDefaultApplier{},
	}}
}

// ApplyDefaults runs every domain applier.
func (c *CompositeDefaultApplier) ApplyDefaults(cfg *Config) error {
	for _, a := range c.appliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

type pathsDefaultApplier struct{}

func (pathsDefaultApplier) Domain() string { return "paths" }

func (pathsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.TemplateRoot == "" {
		cfg.TemplateRoot = "."
	}
	if cfg.Output == "" {
		cfg.Output = "_build"
	}
	return nil
}

type buildDefaultApplier struct{}

func (buildDefaultApplier) Domain() string { return "build" }

func (buildDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Build.Concurrency <= 0 {
		cfg.Build.Concurrency = max(runtime.GOMAXPROCS(0), 1)
	}
	if cfg.Build.ArtifactsDir == "" {
		cfg.Build.ArtifactsDir = "_corpus"
	}
	return nil
}

type normalizeDefaultApplier struct{}

func (normalizeDefaultApplier) Domain() string { return "normalize" }

func (normalizeDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Normalize.SVGPrecision == 0 {
		cfg.Normalize.SVGPrecision = 3
	}
	return nil
}

type typesetDefaultApplier struct{}

func (typesetDefaultApplier) Domain() string { return "typeset" }

func (typesetDefaultApplier) ApplyDefaults(cfg *Config) error {
	if len(cfg.Typeset.Compiler) == 0 {
		cfg.Typeset.Compiler = []string{"latex", "-interaction=nonstopmode", "-halt-on-error"}
	}
	if len(cfg.Typeset.Converter) == 0 {
		cfg.Typeset.Converter = []string{"dvisvgm", "--no-fonts"}
	}
	if cfg.Typeset.Timeout <= 0 {
		cfg.Typeset.Timeout = 60 * time.Second
	}
	return nil
}

type watchDefaultApplier struct{}

func (watchDefaultApplier) Domain() string { return "watch" }

func (watchDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Watch.QuietWindow <= 0 {
		cfg.Watch.QuietWindow = 300 * time.Millisecond
	}
	if cfg.Watch.MaxDelay <= 0 {
		cfg.Watch.MaxDelay = 3 * time.Second
	}
	return nil
}

type notifyDefaultApplier struct{}

func (notifyDefaultApplier) Domain() string { return "notify" }

func (notifyDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "corpusbuild.builds"
	}
	return nil
}

type loggingDefaultApplier struct{}

func (loggingDefaultApplier) Domain() string { return "logging" }

func (loggingDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
	return nil
}
