package config

import (
	"fmt"
	"path"
	"strings"
)

// NormalizationResult captures adjustments & warnings from the normalization pass.
type NormalizationResult struct{ Warnings []string }

// NormalizeConfig canonicalizes enumerated and path-like fields before defaults are applied.
func NormalizeConfig(c *Config) *NormalizationResult {
	res := &NormalizationResult{}
	normalizeLogging(&c.Logging, res)

	for i, g := range c.Ignore {
		if t := strings.TrimSpace(g); t != g {
			res.Warnings = append(res.Warnings, warnChanged(fmt.Sprintf("ignore[%d]", i), g, t))
			c.Ignore[i] = t
		}
	}
	if c.TemplateRoot != "" {
		if cleaned := path.Clean(strings.ReplaceAll(c.TemplateRoot, "\\", "/")); cleaned != c.TemplateRoot {
			res.Warnings = append(res.Warnings, warnChanged("template_root", c.TemplateRoot, cleaned))
			c.TemplateRoot = cleaned
		}
	}
	if c.Build.Concurrency < 0 {
		res.Warnings = append(res.Warnings, warnChanged("build.concurrency", c.Build.Concurrency, 0))
		c.Build.Concurrency = 0
	}
	if c.Normalize.SVGPrecision < 0 {
		res.Warnings = append(res.Warnings, warnChanged("normalize.svg_precision", c.Normalize.SVGPrecision, 0))
		c.Normalize.SVGPrecision = 0
	}
	return res
}

func normalizeLogging(l *LoggingConfig, res *NormalizationResult) {
	if raw := string(l.Level); raw != "" {
		if lvl, ok := logLevelNormalizer.Lookup(raw); ok {
			if l.Level != lvl {
				res.Warnings = append(res.Warnings, warnChanged("logging.level", l.Level, lvl))
			}
			l.Level = lvl
		} else {
			res.Warnings = append(res.Warnings, warnUnknown("logging.level", raw, string(LogLevelInfo)))
			l.Level = LogLevelInfo
		}
	}
	if raw := string(l.Format); raw != "" {
		if f, ok := logFormatNormalizer.Lookup(raw); ok {
			if l.Format != f {
				res.Warnings = append(res.Warnings, warnChanged("logging.format", l.Format, f))
			}
			l.Format = f
		} else {
			res.Warnings = append(res.Warnings, warnUnknown("logging.format", raw, string(LogFormatText)))
			l.Format = LogFormatText
		}
	}
}

func warnChanged(field string, from, to any) string {
	return fmt.Sprintf("normalized %s from '%v' to '%v'", field, from, to)
}

func warnUnknown(field, value, def string) string {
	return fmt.Sprintf("unknown %s '%s', defaulting to %s", field, value, def)
}
