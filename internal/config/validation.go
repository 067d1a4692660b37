package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/corpusbuild/internal/foundation/errors"
)

// ValidateConfig validates the configuration after defaults are applied.
func ValidateConfig(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	for _, check := range []func() error{
		v.validatePaths,
		v.validateSchemas,
		v.validateTypeset,
		v.validateWatch,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

type configurationValidator struct {
	config *Config
}

func (v *configurationValidator) fail(field, msg string) error {
	return ferrors.ConfigError(fmt.Sprintf("%s: %s", field, msg)).WithContext("field", field).Build()
}

func (v *configurationValidator) validatePaths() error {
	p := v.config.Paths
	if filepath.Clean(p.OutputRoot) == filepath.Clean(p.SourceRoot) {
		return v.fail("output", "output root must differ from the source root")
	}
	if _, ok := within(p.OutputRoot, p.SourceRoot); ok {
		return v.fail("output", "source root must not lie inside the output root")
	}
	if info, err := os.Stat(p.TemplateRoot); err == nil && !info.IsDir() {
		return v.fail("template_root", "not a directory: "+p.TemplateRoot)
	}
	artifacts := v.config.Build.ArtifactsDir
	if filepath.IsAbs(artifacts) || strings.HasPrefix(filepath.Clean(artifacts), "..") {
		return v.fail("build.artifacts_dir", "must be relative to the output root")
	}
	for i, g := range v.config.Ignore {
		if g == "" {
			return v.fail(fmt.Sprintf("ignore[%d]", i), "empty pattern")
		}
	}
	return nil
}

func (v *configurationValidator) validateSchemas() error {
	for glob, ref := range v.config.Schemas {
		if strings.TrimSpace(glob) == "" {
			return v.fail("schemas", "empty glob")
		}
		if strings.TrimSpace(ref) == "" {
			return v.fail("schemas."+glob, "empty schema reference")
		}
	}
	return nil
}

func (v *configurationValidator) validateTypeset() error {
	t := v.config.Typeset
	if strings.TrimSpace(t.Compiler[0]) == "" {
		return v.fail("typeset.compiler", "empty command")
	}
	if strings.TrimSpace(t.Converter[0]) == "" {
		return v.fail("typeset.converter", "empty command")
	}
	return nil
}

func (v *configurationValidator) validateWatch() error {
	w := v.config.Watch
	if w.MaxDelay < w.QuietWindow {
		return v.fail("watch.max_delay", fmt.Sprintf("%s is shorter than quiet_window %s", w.MaxDelay, w.QuietWindow))
	}
	if w.FullRebuildEvery < 0 {
		return v.fail("watch.full_rebuild_every", "must not be negative")
	}
	return nil
}
