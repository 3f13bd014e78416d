package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/book-expert/logger"
	"github.com/book-expert/seta-tts/internal/tts/ttsutils"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"github.com/valyala/fastjson"
)

// ErrOutputInvalid indicates an encoded file that is missing or has no audio.
var ErrOutputInvalid = errors.New("encoded output is invalid")

const (
	// DefaultProber is the probe binary looked up on PATH.
	DefaultProber = "ffprobe"

	errFmtProbe         = "%w: probe of %s failed: %v"
	errFmtProbeJSON     = "%w: unreadable probe output for %s: %v"
	errFmtNoDuration    = "%w: %s has no duration"
	errFmtProbeRun      = "[%s] %w"
	logFmtProbeDuration = "Verified %s (%s)"
)

// ProbeFunc runs a media probe on path and returns its JSON report.
type ProbeFunc func(ctx context.Context, path string) (string, error)

// ProberFor returns the ffprobe installed next to transcoder. A bare command
// name resolves to DefaultProber on PATH.
func ProberFor(transcoder string) string {
	if transcoder == "" || filepath.Base(transcoder) == transcoder {
		return DefaultProber
	}

	return filepath.Join(filepath.Dir(transcoder), DefaultProber+filepath.Ext(transcoder))
}

// ExecProbe returns a ProbeFunc running prober with a JSON format and stream report.
func ExecProbe(prober string) ProbeFunc {
	args := ffmpeg.ConvertKwargsToCmdLineArgs(ffmpeg.KwArgs{
		"show_format":  "",
		"show_streams": "",
		"of":           "json",
	})

	return func(ctx context.Context, path string) (string, error) {
		var stdout, stderr bytes.Buffer

		// #nosec G204 -- the prober path comes from configuration
		cmd := exec.CommandContext(ctx, prober, append(append([]string(nil), args...), path)...)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		runErr := cmd.Run()
		if runErr != nil {
			return "", fmt.Errorf(errFmtProbeRun, bytes.TrimSpace(stderr.Bytes()), runErr)
		}

		return stdout.String(), nil
	}
}

// ProbeVerifier checks encoded output with ffprobe.
type ProbeVerifier struct {
	probe ProbeFunc
	log   *logger.Logger
}

// NewProbeVerifier creates a verifier using probe, or DefaultProber from PATH
// when probe is nil.
func NewProbeVerifier(log *logger.Logger, probe ProbeFunc) *ProbeVerifier {
	if probe == nil {
		probe = ExecProbe(DefaultProber)
	}

	return &ProbeVerifier{probe: probe, log: log}
}

// Verify fails with ErrOutputInvalid unless path reports a positive duration.
func (v *ProbeVerifier) Verify(ctx context.Context, path string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	report, err := v.probe(ctx, path)
	if err != nil {
		return fmt.Errorf(errFmtProbe, ErrOutputInvalid, path, err)
	}

	var parser fastjson.Parser

	value, err := parser.Parse(report)
	if err != nil {
		return fmt.Errorf(errFmtProbeJSON, ErrOutputInvalid, path, err)
	}

	duration, err := strconv.ParseFloat(string(value.GetStringBytes("format", "duration")), 64)
	if err != nil || duration <= 0 {
		return fmt.Errorf(errFmtNoDuration, ErrOutputInvalid, path)
	}

	v.log.Info(logFmtProbeDuration, path, ttsutils.FormatDuration(duration))

	return nil
}
