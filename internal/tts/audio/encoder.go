package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/book-expert/logger"
	"github.com/book-expert/seta-tts/internal/core"
	"github.com/book-expert/seta-tts/internal/tts/ttsutils"
)

const (
	labelEncoding = "encoding"

	errFmtDiscardExisting = "failed to discard existing output %s: %w"
	errFmtStatOutput      = "failed to stat output %s: %w"
	errFmtEncode          = "encoding of %s failed: %w"
	logFmtDiscardExisting = "Output already exists, replacing: %s"
	logFmtEncodeDone      = "Encoded %s -> %s (exit code %d)"
)

// Verifier checks a file the transcoder produced.
type Verifier interface {
	Verify(ctx context.Context, path string) error
}

// BuildArgs returns the transcoder argument vector for one conversion.
// The codec flag is only emitted for uncompressed containers.
func BuildArgs(options EncodeOptions, inputPath, outputPath string) []string {
	args := []string{
		"-hide_banner",
		"-nostats",
		"-loglevel", "warning",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ar", strconv.Itoa(options.SampleRate),
		"-filter:a", "volume=" + strconv.FormatFloat(options.Volume, 'f', -1, 64),
		"-ac", strconv.Itoa(options.Channels),
		"-b:a", options.Bitrate,
	}

	if ttsutils.IsUncompressedAudio(outputPath) {
		args = append(args, "-c:a", options.SampleFormat)
	}

	return append(args, outputPath)
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithDiscardHook is called with the destination path before an existing
// output is discarded.
func WithDiscardHook(hook func(path string)) EncoderOption {
	return func(e *Encoder) {
		e.onDiscard = hook
	}
}

// WithVerifier checks every produced file with verifier.
func WithVerifier(verifier Verifier) EncoderOption {
	return func(e *Encoder) {
		e.verifier = verifier
	}
}

// Encoder runs the transcoder for one task at a time.
type Encoder struct {
	ffmpegPath string
	runner     core.Runner
	discarder  core.Discarder
	log        *logger.Logger
	onDiscard  func(path string)
	verifier   Verifier
}

// NewEncoder creates an Encoder for the transcoder at ffmpegPath.
func NewEncoder(
	ffmpegPath string,
	runner core.Runner,
	discarder core.Discarder,
	log *logger.Logger,
	opts ...EncoderOption,
) *Encoder {
	encoder := &Encoder{
		ffmpegPath: ffmpegPath,
		runner:     runner,
		discarder:  discarder,
		log:        log,
	}

	for _, opt := range opts {
		opt(encoder)
	}

	return encoder
}

// Encode converts task.InputPath into task.OutputPath, replacing any file
// already at the destination, and returns the destination path.
func (e *Encoder) Encode(ctx context.Context, task Task) (string, error) {
	err := task.Validate()
	if err != nil {
		return "", err
	}

	destination := ttsutils.NormalizeDestination(task.OutputPath)

	err = e.discardExisting(destination)
	if err != nil {
		return "", err
	}

	result, err := e.runner.Run(ctx, core.Command{
		Path:  e.ffmpegPath,
		Args:  BuildArgs(task.Options, task.InputPath, destination),
		Label: labelEncoding,
	})
	if err != nil {
		return "", fmt.Errorf(errFmtEncode, task.InputPath, err)
	}

	e.log.Info(logFmtEncodeDone, task.InputPath, destination, result.ExitCode)

	if e.verifier != nil {
		err = e.verifier.Verify(ctx, destination)
		if err != nil {
			return "", err
		}
	}

	return destination, nil
}

func (e *Encoder) discardExisting(destination string) error {
	_, statErr := os.Stat(destination)
	if errors.Is(statErr, os.ErrNotExist) {
		return nil
	}

	if statErr != nil {
		return fmt.Errorf(errFmtStatOutput, destination, statErr)
	}

	e.log.Info(logFmtDiscardExisting, destination)

	if e.onDiscard != nil {
		e.onDiscard(destination)
	}

	discardErr := e.discarder.Discard(destination)
	if discardErr != nil {
		return fmt.Errorf(errFmtDiscardExisting, destination, discardErr)
	}

	return nil
}
