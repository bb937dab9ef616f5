// internal/app/system/executor/executor.go
// Package executor runs submitted source code in a child process.
//
// Each run gets a fresh temporary directory that is removed afterwards.
// Compiled languages build and run inside the same deadline. Output is the
// interleaved stdout and stderr of every step, capped at MaxOutput bytes.
//
// The runner provides no sandbox beyond the deadline and the output cap;
// deploy it only where running untrusted code as the server user is
// acceptable, or leave exec_enabled off.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/coderoom/internal/app/system/metrics"
	"github.com/dalemusser/coderoom/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// DefaultMaxOutput caps captured output.
const DefaultMaxOutput = 64 << 10

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrEmptyProgram        = errors.New("program is empty")
	ErrTimeout             = errors.New("execution timed out")
	// ErrToolchainMissing means the interpreter or compiler is not installed.
	ErrToolchainMissing = errors.New("toolchain not installed")
)

// toolchain describes how one language is built and run. Paths handed to
// the step functions are absolute.
type toolchain struct {
	file  string
	build func(src, bin string) []string
	run   func(src, bin string) []string
}

var toolchains = map[string]toolchain{
	"javascript": {
		file: "main.js",
		run:  func(src, _ string) []string { return []string{"node", src} },
	},
	"python": {
		file: "main.py",
		run:  func(src, _ string) []string { return []string{"python3", src} },
	},
	"c": {
		file:  "main.c",
		build: func(src, bin string) []string { return []string{"gcc", src, "-o", bin} },
		run:   func(_, bin string) []string { return []string{bin} },
	},
	"cpp": {
		file:  "main.cpp",
		build: func(src, bin string) []string { return []string{"g++", src, "-o", bin} },
		run:   func(_, bin string) []string { return []string{bin} },
	},
	"go": {
		file: "main.go",
		run:  func(src, _ string) []string { return []string{"go", "run", src} },
	},
}

// Languages returns the supported language names, sorted.
func Languages() []string {
	out := make([]string, 0, len(toolchains))
	for name := range toolchains {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Supported reports whether language can be run.
func Supported(language string) bool {
	_, ok := toolchains[normalize(language)]
	return ok
}

// Result is the outcome of a run that started. A non-zero ExitCode is not
// an error: compile failures and crashing programs return their output.
type Result struct {
	Output    string        `json:"output"`
	ExitCode  int           `json:"exitCode"`
	Truncated bool          `json:"truncated,omitempty"`
	Duration  time.Duration `json:"-"`
}

// Runner executes programs. The zero value is usable.
type Runner struct {
	// Timeout bounds one run including compilation. Zero uses timeouts.Exec().
	Timeout time.Duration
	// MaxOutput caps captured bytes. Zero uses DefaultMaxOutput.
	MaxOutput int
	// TempDir is the parent of the per-run directories. Empty uses os.TempDir().
	TempDir string

	Log     *zap.Logger
	Metrics *metrics.Metrics
}

// Run writes content to a temporary file and executes it as language.
func (r *Runner) Run(ctx context.Context, language, content string) (Result, error) {
	lang := normalize(language)
	tc, ok := toolchains[lang]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
	if strings.TrimSpace(content) == "" {
		return Result{}, ErrEmptyProgram
	}

	start := time.Now()
	res, err := r.run(ctx, tc, content)
	res.Duration = time.Since(start)

	outcome := "ok"
	switch {
	case errors.Is(err, ErrTimeout):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	case res.ExitCode != 0:
		outcome = "exit_nonzero"
	}
	r.Metrics.CodeRun(lang, outcome, res.Duration.Seconds())
	r.logger().Info("code run",
		zap.String("language", lang),
		zap.String("outcome", outcome),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration))
	return res, err
}

func (r *Runner) run(ctx context.Context, tc toolchain, content string) (Result, error) {
	dir, err := os.MkdirTemp(r.TempDir, "coderoom-run-")
	if err != nil {
		return Result{}, fmt.Errorf("create run dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			r.logger().Warn("remove run dir", zap.String("dir", dir), zap.Error(err))
		}
	}()

	src := filepath.Join(dir, tc.file)
	bin := filepath.Join(dir, "main")
	if err := os.WriteFile(src, []byte(content), 0o600); err != nil {
		return Result{}, fmt.Errorf("write source: %w", err)
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = timeouts.Exec()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := &cappedBuffer{max: r.MaxOutput}
	if out.max <= 0 {
		out.max = DefaultMaxOutput
	}

	steps := [][]string{tc.run(src, bin)}
	if tc.build != nil {
		steps = [][]string{tc.build(src, bin), tc.run(src, bin)}
	}
	for _, argv := range steps {
		code, err := step(ctx, dir, argv, out)
		if err != nil {
			return Result{Output: out.String(), Truncated: out.truncated}, err
		}
		if code != 0 {
			return Result{Output: out.String(), ExitCode: code, Truncated: out.truncated}, nil
		}
	}
	return Result{Output: out.String(), Truncated: out.truncated}, nil
}

// step runs one command and returns its exit code. Only failures to start
// or a deadline are errors.
func step(ctx context.Context, dir string, argv []string, out *cappedBuffer) (int, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return -1, ErrTimeout
	}
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return -1, fmt.Errorf("%w: %s", ErrToolchainMissing, argv[0])
	}
	return -1, fmt.Errorf("start %s: %w", argv[0], err)
}

func (r *Runner) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func normalize(language string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	switch lang {
	case "js", "node":
		return "javascript"
	case "py", "python3":
		return "python"
	case "c++":
		return "cpp"
	case "golang":
		return "go"
	}
	return lang
}

// cappedBuffer keeps the first max bytes written and reports every write as
// complete so the child never blocks on a full pipe.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.max - b.buf.Len()
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string { return b.buf.String() }
