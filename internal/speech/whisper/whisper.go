// Package whisper transcribes media by invoking a local whisper.cpp CLI
// binary. The media blob is written to a temporary file, the binary writes a
// plain-text transcript next to it and the file contents become the result.
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/vidscribe/vidscribe/internal/config"
	"github.com/vidscribe/vidscribe/internal/speech"
)

const providerName = "whisper"

// Register adds the whisper backend to the registry.
func Register(r *speech.Registry) {
	r.Register(providerName, func(cfg *config.Config) (speech.Recognizer, error) {
		return New(cfg.Providers.WhisperBinary, cfg.Providers.WhisperModel), nil
	})
}

// CommandResult captures one external invocation.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner abstracts process execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// Recognizer shells out to whisper.cpp.
type Recognizer struct {
	binary string
	model  string

	runner    CommandRunner
	mkdirTemp func(dir, pattern string) (string, error)
	removeAll func(path string) error
	writeFile func(name string, data []byte, perm os.FileMode) error
	readFile  func(name string) ([]byte, error)
}

// New creates a recognizer using the given binary and model name.
func New(binary, model string) *Recognizer {
	if binary == "" {
		binary = "whisper-cli"
	}
	if model == "" {
		model = "base"
	}
	return &Recognizer{
		binary:    binary,
		model:     model,
		runner:    execRunner{},
		mkdirTemp: os.MkdirTemp,
		removeAll: os.RemoveAll,
		writeFile: os.WriteFile,
		readFile:  os.ReadFile,
	}
}

func (r *Recognizer) ProviderName() string { return providerName }

// Transcribe writes the media to a temp workspace and runs the binary.
func (r *Recognizer) Transcribe(ctx context.Context, media []byte, language string) (string, error) {
	if len(media) == 0 {
		return "", errors.New("vidscribe: empty media blob")
	}

	workDir, err := r.mkdirTemp("", "vidscribe-whisper-*")
	if err != nil {
		return "", fmt.Errorf("create whisper workspace: %w", err)
	}
	defer func() { _ = r.removeAll(workDir) }()

	inputPath := filepath.Join(workDir, "input.media")
	if err := r.writeFile(inputPath, media, 0o600); err != nil {
		return "", fmt.Errorf("write whisper input: %w", err)
	}

	outputBase := filepath.Join(workDir, "transcript")
	args := []string{
		"--model", r.model,
		"--file", inputPath,
		"--output-txt",
		"--output-file", outputBase,
		"--no-prints",
	}
	if language != "" {
		args = append(args, "--language", language)
	}

	result, runErr := r.runner.Run(ctx, r.binary, args...)
	if runErr != nil {
		detail := strings.TrimSpace(result.Stderr)
		if detail == "" {
			detail = runErr.Error()
		}
		return "", fmt.Errorf("whisper exited with code %d: %s", result.ExitCode, detail)
	}

	transcript, err := r.readFile(outputBase + ".txt")
	if err != nil {
		// Some builds print to stdout instead of writing the txt file.
		if text := strings.TrimSpace(result.Stdout); text != "" {
			return text, nil
		}
		return "", fmt.Errorf("read whisper transcript: %w", err)
	}
	return strings.TrimSpace(string(transcript)), nil
}
