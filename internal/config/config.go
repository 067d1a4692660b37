// Package config loads the per-project corpusbuild settings document.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/corpusbuild/internal/foundation/errors"
)

// FileName is the settings document looked up in the project root.
const FileName = "corpusbuild.yaml"

// Config is the immutable per-session build configuration.
type Config struct {
	Ignore           []string          `yaml:"ignore"`
	TemplateRoot     string            `yaml:"template_root"`
	Schemas          map[string]string `yaml:"schemas"`
	Output           string            `yaml:"output"`
	RespectGitignore bool              `yaml:"respect_gitignore"`

	Build     BuildConfig     `yaml:"build"`
	Normalize NormalizerSettings `yaml:"normalize"`
	Typeset   TypesetConfig   `yaml:"typeset"`
	Watch     WatchConfig     `yaml:"watch"`
	Notify    NotifyConfig    `yaml:"notify"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Resolved absolute paths, populated by Load and Default.
	Paths Paths `yaml:"-"`
}

// BuildConfig controls per-cycle orchestration.
type BuildConfig struct {
	Concurrency  int    `yaml:"concurrency"`
	ArtifactsDir string `yaml:"artifacts_dir"`
	SweepStale   bool   `yaml:"sweep_stale"`
}

// NormalizerSettings toggles the post-compile normalizers.
type NormalizerSettings struct {
	Markup       bool `yaml:"markup"`
	SVG          bool `yaml:"svg"`
	SVGPrecision int  `yaml:"svg_precision"`
}

// TypesetConfig names the two external toolchain commands.
type TypesetConfig struct {
	Compiler  []string      `yaml:"compiler"`
	Converter []string      `yaml:"converter"`
	Timeout   time.Duration `yaml:"timeout"`
}

// WatchConfig controls change coalescing in watch mode.
type WatchConfig struct {
	QuietWindow      time.Duration `yaml:"quiet_window"`
	MaxDelay         time.Duration `yaml:"max_delay"`
	FullRebuildEvery time.Duration `yaml:"full_rebuild_every"`
}

// NotifyConfig configures the NATS relay of build events. An empty URL disables it.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
	// Retries bounds publish attempts after a failure. 0 keeps the default
	// of 3; a negative value disables retrying.
	Retries int `yaml:"retries"`
}

// LoggingConfig controls log level, format and an optional JSON log file.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
	File   string    `yaml:"file"`
}

// SchemaBinding pairs a path glob with a schema file.
type SchemaBinding struct {
	Glob   string
	Schema string // absolute path
}

// SchemaBindings returns the configured bindings sorted by glob.
func (c *Config) SchemaBindings() []SchemaBinding {
	out := make([]SchemaBinding, 0, len(c.Schemas))
	for glob, ref := range c.Schemas {
		schema := ref
		if !filepath.IsAbs(schema) {
			schema = filepath.Join(c.Paths.ProjectRoot, filepath.FromSlash(ref))
		}
		out = append(out, SchemaBinding{Glob: glob, Schema: schema})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Glob < out[j].Glob })
	return out
}

// Default returns the built-in configuration for projectRoot.
func Default(projectRoot string) (*Config, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve project root").Fatal().Build()
	}
	cfg := newBase()
	if err := finish(cfg, root); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newBase() *Config {
	// Booleans defaulting to true are seeded before decoding.
	return &Config{Normalize: NormalizerSettings{Markup: true, SVG: true}}
}

// Load reads the settings document for projectRoot. An empty path selects
// FileName in the project root; a missing default file yields Default.
func Load(projectRoot, path string) (*Config, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve project root").Fatal().Build()
	}
	loadEnvFiles(root)

	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, FileName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(root)
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read settings").
			WithContext("path", path).Fatal().Build()
	}

	cfg := newBase()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "malformed settings").
			WithContext("path", path).Fatal().Build()
	}
	if err := finish(cfg, root); err != nil {
		return nil, err
	}
	cfg.Paths.SettingsFile = path
	return cfg, nil
}

func finish(cfg *Config, root string) error {
	res := NormalizeConfig(cfg)
	for _, w := range res.Warnings {
		slog.Warn("config normalization", "warning", w)
	}
	if err := NewDefaultApplier().ApplyDefaults(cfg); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "apply defaults").Fatal().Build()
	}
	cfg.Paths = resolvePaths(cfg, root)
	return ValidateConfig(cfg)
}

const exampleConfig = `# corpusbuild settings
ignore:
  - "drafts/**"
  - "*.bak"
template_root: templates
output: _build
schemas:
  "data/**/*.toml": schemas/data.json
build:
  concurrency: 4
normalize:
  markup: true
  svg: true
  svg_precision: 3
typeset:
  compiler: [latex, -interaction=nonstopmode, -halt-on-error]
  converter: [dvisvgm, --no-fonts]
  timeout: 60s
watch:
  quiet_window: 300ms
  max_delay: 3s
notify:
  nats_url: ""
  subject: corpusbuild.builds
logging:
  level: info
  format: text
`

// Init writes an example settings document.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ValidationError(fmt.Sprintf("settings file already exists: %s (use --force to overwrite)", path)).
			WithContext("path", path).Build()
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write settings").WithContext("path", path).Build()
	}
	return nil
}

// String renders a short summary used in verbose logs.
func (c *Config) String() string {
	return fmt.Sprintf("output=%s template_root=%s ignore=[%s] schemas=%d concurrency=%d",
		c.Paths.OutputRoot, c.Paths.TemplateRoot, strings.Join(c.Ignore, ","), len(c.Schemas), c.Build.Concurrency)
}
