package tts

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/book-expert/logger"
	"github.com/book-expert/seta-tts/internal/core"
	"github.com/book-expert/seta-tts/internal/tts/ttsutils"
)

// ErrMalformedTask indicates a synthesis task with a missing field.
var ErrMalformedTask = errors.New("malformed synthesis task")

const (
	flagText   = "-t"
	flagVoice  = "-n"
	flagOutput = "-w"
	flagList   = "-l"

	labelSynthesis = "synthesis"

	errFmtMissingField  = "%w: %s is required"
	errFmtSynthesize    = "synthesis of %s failed: %w"
	logFmtSynthesisDone = "Synthesized %s with voice %q (exit code %d)"
)

// Task is one synthesis request: speak Text with Voice into
// OutputDir/OutputName.Format.
type Task struct {
	Voice      string `json:"voice"`
	Format     string `json:"format"`
	Text       string `json:"text"`
	OutputName string `json:"outputName"`
	OutputDir  string `json:"outputDir"`
}

// Validate ensures all fields are present.
func (t Task) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"voice", t.Voice},
		{"format", t.Format},
		{"text", t.Text},
		{"output name", t.OutputName},
		{"output directory", t.OutputDir},
	}

	for _, field := range fields {
		if field.value == "" {
			return fmt.Errorf(errFmtMissingField, ErrMalformedTask, field.name)
		}
	}

	return nil
}

// Destination returns the full path the synthesizer writes to.
func (t Task) Destination() string {
	name := ttsutils.WithFormat(ttsutils.SanitizeFilename(t.OutputName), t.Format)

	return filepath.Join(t.OutputDir, name)
}

// Synthesizer invokes the synthesizer binary for one task at a time.
type Synthesizer struct {
	binaryPath string
	runner     core.Runner
	log        *logger.Logger
}

// NewSynthesizer creates a Synthesizer for the binary at binaryPath.
func NewSynthesizer(binaryPath string, runner core.Runner, log *logger.Logger) *Synthesizer {
	return &Synthesizer{
		binaryPath: binaryPath,
		runner:     runner,
		log:        log,
	}
}

// Synthesize runs the synthesizer for task and returns the destination path.
// The binary's exit code does not fail the task; only a spawn failure does.
func (s *Synthesizer) Synthesize(ctx context.Context, task Task) (string, error) {
	err := task.Validate()
	if err != nil {
		return "", err
	}

	destination := task.Destination()

	result, err := s.runner.Run(ctx, core.Command{
		Path:  s.binaryPath,
		Args:  []string{flagText, task.Text, flagVoice, task.Voice, flagOutput, destination},
		Label: labelSynthesis,
	})
	if err != nil {
		return "", fmt.Errorf(errFmtSynthesize, destination, err)
	}

	s.log.Info(logFmtSynthesisDone, destination, task.Voice, result.ExitCode)

	return destination, nil
}
