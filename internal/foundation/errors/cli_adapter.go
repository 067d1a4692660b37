package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// CLIErrorAdapter handles error presentation and exit code determination for the command line.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	classified, ok := AsClassified(err)
	if !ok {
		return 1
	}
	switch classified.Category() {
	case CategoryValidation:
		return 2
	case CategoryConfig:
		return 7
	case CategoryToolchain, CategoryNotify:
		return 8 // External system
	case CategoryBuild, CategoryFileSystem, CategorySchema, CategoryManifest:
		return 11
	case CategoryWatch:
		return 12
	case CategoryInternal:
		return 10
	default:
		return 1
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	classified, ok := AsClassified(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose {
		return classified.Error()
	}
	if classified.Category() == CategoryInternal {
		return "Internal error occurred (use -v for details)"
	}
	msg := fmt.Sprintf("%s error: %s", classified.Category(), classified.Message())
	if path, ok := classified.Context().GetString("path"); ok {
		msg += " (" + path + ")"
	}
	return msg
}

// Report logs err and writes the user-facing message to w, returning the exit code.
func (a *CLIErrorAdapter) Report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	if a.shouldLog(err) {
		a.logError(err)
	}
	_, _ = fmt.Fprintln(w, a.FormatError(err))
	return a.ExitCodeFor(err)
}

func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	if classified, ok := AsClassified(err); ok {
		return classified.IsFatal()
	}
	return true
}

func (a *CLIErrorAdapter) logError(err error) {
	classified, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}
	attrs := []slog.Attr{slog.String("category", string(classified.Category()))}
	for k, v := range classified.Context() {
		attrs = append(attrs, slog.Any(k, v))
	}
	if cause := classified.Cause(); cause != nil {
		attrs = append(attrs, slog.String("error", cause.Error()))
	}
	a.logger.LogAttrs(context.Background(), slogLevel(classified.Severity()), classified.Message(), attrs...)
}

func slogLevel(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
