package typeset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/corpusbuild/internal/foundation/errors"
)

// Toolchain is the external typesetting capability. Compile turns a source
// into an intermediate artifact inside workDir; Convert turns that into a
// vector graphic. Both return the absolute path of what they produced.
type Toolchain interface {
	Compile(ctx context.Context, workDir, source string) (string, error)
	Convert(ctx context.Context, workDir, intermediate string) (string, error)
}

// CommandToolchain shells out to two commands. Only exit status and stderr are consumed.
type CommandToolchain struct {
	Compiler  []string
	Converter []string
	Timeout   time.Duration
	// IntermediateExt is the extension the compiler produces (default ".dvi").
	IntermediateExt string
}

// Compile runs the compiler with source appended to its argv.
func (c CommandToolchain) Compile(ctx context.Context, workDir, source string) (string, error) {
	ext := c.IntermediateExt
	if ext == "" {
		ext = ".dvi"
	}
	if err := c.run(ctx, workDir, c.Compiler, source); err != nil {
		return "", err
	}
	return expect(workDir, stem(source)+ext, c.Compiler[0])
}

// Convert runs the converter with intermediate appended to its argv.
func (c CommandToolchain) Convert(ctx context.Context, workDir, intermediate string) (string, error) {
	if err := c.run(ctx, workDir, c.Converter, intermediate); err != nil {
		return "", err
	}
	return expect(workDir, stem(intermediate)+".svg", c.Converter[0])
}

func (c CommandToolchain) run(ctx context.Context, workDir string, argv []string, input string) error {
	if len(argv) == 0 {
		return ferrors.ToolchainError("no command configured").Build()
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	args := append(append([]string{}, argv[1:]...), input)
	cmd := exec.CommandContext(ctx, argv[0], args...)
	cmd.Dir = workDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := fmt.Sprintf("%s failed", argv[0])
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg = fmt.Sprintf("%s exited with status %d", argv[0], exitErr.ExitCode())
		}
		if tail := tailLines(stderr.String(), 5); tail != "" {
			msg += ": " + tail
		}
		return ferrors.WrapError(err, ferrors.CategoryToolchain, msg).
			WithContext("command", argv[0]).
			WithContext("work_dir", workDir).
			Build()
	}
	return nil
}

func expect(workDir, name, command string) (string, error) {
	p := filepath.Join(workDir, name)
	if _, err := os.Stat(p); err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryToolchain, fmt.Sprintf("%s produced no %s", command, name)).
			WithContext("command", command).Build()
	}
	return p, nil
}

func stem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}
