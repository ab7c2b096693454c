package tiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// GenerationResult is what the generator process reported.
type GenerationResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Generator produces the tile config file for a year. A nil error means the
// generation step exited successfully; the file may appear slightly later.
type Generator interface {
	Generate(ctx context.Context, year int) (GenerationResult, error)
}

// GenerationError carries the diagnostics of a failed generation.
type GenerationError struct {
	Year   int
	Output string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("tile generation failed for year %d: %v", e.Year, e.Err)
	}
	return fmt.Sprintf("tile generation failed for year %d: %v: %s", e.Year, e.Err, e.Output)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGenerationFailed }

// ScriptGeneratorConfig configures a ScriptGenerator.
type ScriptGeneratorConfig struct {
	// Command is the interpreter or binary to run (default: "python").
	Command string

	// Script is passed as the first argument, followed by --year {year}.
	Script string

	// Dir is the working directory of the child process (optional).
	Dir string

	// Timeout bounds a single run (default: 10 minutes).
	Timeout time.Duration

	Logger zerolog.Logger
}

// ScriptGenerator runs the external tile generation script as a child process.
type ScriptGenerator struct {
	command string
	script  string
	dir     string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewScriptGenerator creates a new ScriptGenerator.
func NewScriptGenerator(cfg ScriptGeneratorConfig) *ScriptGenerator {
	command := cfg.Command
	if command == "" {
		command = "python"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &ScriptGenerator{
		command: command,
		script:  cfg.Script,
		dir:     cfg.Dir,
		timeout: timeout,
		logger:  cfg.Logger,
	}
}

// Generate runs `{command} [script] --year {year}` and waits for it to exit.
func (g *ScriptGenerator) Generate(ctx context.Context, year int) (GenerationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var args []string
	if g.script != "" {
		args = append(args, g.script)
	}
	args = append(args, "--year", strconv.Itoa(year))

	cmd := exec.CommandContext(ctx, g.command, args...)
	cmd.Dir = g.dir
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	g.logger.Info().
		Str("command", g.command).
		Strs("args", args).
		Msg("running tile generator")

	start := time.Now()
	err := cmd.Run()
	res := GenerationResult{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if err != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("generator did not finish: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return res, fmt.Errorf("generator exited with status %d", exitErr.ExitCode())
		}
		return res, fmt.Errorf("starting generator: %w", err)
	}

	g.logger.Info().
		Int("year", year).
		Dur("duration", time.Since(start)).
		Msg("tile generator finished")
	return res, nil
}
