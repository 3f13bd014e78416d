// Package tts drives the external speech synthesizer: it runs the binary,
// builds synthesis invocations and reads the installed voice catalog.
package tts

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/seta-tts/internal/core"
)

const (
	streamStdout = "stdout"
	streamStderr = "stderr"

	// waitDelay bounds how long Wait keeps copying output after the process
	// exits or is killed, for children that leave the streams open.
	waitDelay = 2 * time.Second

	errFmtSpawn        = "%w: %s: %v"
	errFmtWait         = "failed waiting for %q: %w"
	errFmtInterrupted  = "%q interrupted: %w"
	logFmtStreamLine   = "%s of %q: %s"
	logFmtStreamError  = "Stopped reading %s of %q: %v"
	logFmtProcessStart = "Starting %q: %s %v"
	logFmtProcessExit  = "Process %q exited with code %d"
)

// ExecRunner implements core.Runner with os/exec.
type ExecRunner struct {
	log *logger.Logger
}

// NewExecRunner creates a runner that logs every output line to log.
func NewExecRunner(log *logger.Logger) *ExecRunner {
	return &ExecRunner{log: log}
}

// Run starts cmd, forwards its output line by line to the log and waits for it
// to exit. A non-zero exit code is reported in the result, not as an error.
// When ctx ends first the process is killed and the context error is returned.
func (r *ExecRunner) Run(ctx context.Context, cmd core.Command) (core.RunResult, error) {
	label := cmd.Label
	if label == "" {
		label = cmd.Path
	}

	// #nosec G204 -- the binary path comes from configuration, arguments are passed as a vector
	process := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	process.WaitDelay = waitDelay

	stdoutReader, stdoutWriter := io.Pipe()
	stderrReader, stderrWriter := io.Pipe()
	process.Stdout = stdoutWriter
	process.Stderr = stderrWriter

	r.log.Info(logFmtProcessStart, label, cmd.Path, cmd.Args)

	startErr := process.Start()
	if startErr != nil {
		_ = stdoutWriter.Close()
		_ = stderrWriter.Close()

		return core.RunResult{}, fmt.Errorf(errFmtSpawn, core.ErrSpawn, cmd.Path, startErr)
	}

	var (
		result core.RunResult
		wg     sync.WaitGroup
	)

	wg.Add(2)

	go func() {
		defer wg.Done()

		result.Stdout = r.collect(stdoutReader, streamStdout, label)
	}()

	go func() {
		defer wg.Done()

		result.Stderr = r.collect(stderrReader, streamStderr, label)
	}()

	waitErr := process.Wait()

	// Wait has finished copying, so closing the writers ends the collectors.
	_ = stdoutWriter.Close()
	_ = stderrWriter.Close()

	wg.Wait()

	ctxErr := ctx.Err()
	if ctxErr != nil {
		return result, fmt.Errorf(errFmtInterrupted, label, ctxErr)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return result, fmt.Errorf(errFmtWait, label, waitErr)
		}
	}

	result.ExitCode = process.ProcessState.ExitCode()
	r.log.Info(logFmtProcessExit, label, result.ExitCode)

	return result, nil
}

func (r *ExecRunner) collect(stream io.Reader, name, label string) []string {
	var lines []string

	scanner := bufio.NewScanner(stream)
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		r.log.Info(logFmtStreamLine, name, label, line)
	}

	scanErr := scanner.Err()
	if scanErr != nil {
		r.log.Warn(logFmtStreamError, name, label, scanErr)

		// The child blocks on a full pipe unless the rest is consumed.
		_, _ = io.Copy(io.Discard, stream)
	}

	return lines
}
