// Package batch orchestrates a run: rows are templated into synthesis tasks,
// the staging directory is encoded into the output directory, and progress is
// reported along the way.
package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/book-expert/logger"
	"github.com/book-expert/seta-tts/internal/core"
	"github.com/book-expert/seta-tts/internal/staging"
	"github.com/book-expert/seta-tts/internal/tts"
	"github.com/book-expert/seta-tts/internal/tts/audio"
	"github.com/book-expert/seta-tts/internal/tts/ttsutils"
	"github.com/book-expert/seta-tts/internal/worker"
	"github.com/google/uuid"
)

// ErrFatal marks an error that stopped the run.
var ErrFatal = errors.New("batch stopped")

const (
	errFmtFatal    = "%w: %s stage: %w"
	errFmtPrepare  = "failed to prepare directories: %w"
	errFmtClear    = "failed to clear staging directory: %w"
	errFmtList     = "failed to list %s: %w"
	msgFmtTask     = "%s %d/%d: %s"
	msgFmtDone     = "%s finished: %d succeeded, %d failed"
	msgFmtEmpty    = "%s has nothing to do"
	msgFmtDiscard  = "discarding %s"
	msgFmtFailed   = "%s failed: %v"
	msgFmtFinished = "run finished: %d files encoded"
	msgFmtAborted  = "run aborted: %v"
	logFmtStage    = "Starting %s stage with %d tasks (%s)"
)

// Formatter turns a template and a row into text.
type Formatter interface {
	FormatString(template string, row core.Row) string
}

// Stager owns the run directories.
type Stager interface {
	Dirs() staging.Dirs
	PrepareDirectories() (staging.Dirs, error)
	ClearStagingDirectory(path string, onEntry func(name string)) error
	ListInputs(path string) ([]string, error)
}

// Templates are the per-row utterance and file name templates.
type Templates struct {
	Text string
	Name string
}

// Request is one full run.
type Request struct {
	// RunID identifies the run in events; a new one is generated when empty.
	RunID     string
	Rows      []core.Row
	Templates Templates
}

// StageResult summarizes one stage.
type StageResult struct {
	Stage     string
	Total     int
	Succeeded int
	Failed    int
	// Skipped counts tasks never attempted because the stage was stopped.
	Skipped int
	// Empty is true when the stage had no input at all.
	Empty   bool
	Outputs []string
	Errors  []error
}

// Summary is the outcome of Run.
type Summary struct {
	RunID     string
	Synthesis StageResult
	Encoding  StageResult
	// Outputs are the encoded files.
	Outputs []string
}

// Pipeline runs the synthesis and encoding stages.
type Pipeline struct {
	formatter Formatter
	stage     Stager
	pool      *worker.Pool
	reporter  core.Reporter
	log       *logger.Logger
	opts      Options
}

// New creates a Pipeline. A nil reporter discards events.
func New(
	formatter Formatter,
	synth worker.Synthesizer,
	enc worker.Encoder,
	stage Stager,
	reporter core.Reporter,
	log *logger.Logger,
	opts Options,
) (*Pipeline, error) {
	err := opts.Validate()
	if err != nil {
		return nil, err
	}

	if reporter == nil {
		reporter = core.ReporterFunc(func(core.Event) {})
	}

	return &Pipeline{
		formatter: formatter,
		stage:     stage,
		pool:      worker.NewPool(opts.PoolSize, synth, enc, log),
		reporter:  reporter,
		log:       log,
		opts:      opts,
	}, nil
}

// Run prepares the directories, clears staging, synthesizes every row, encodes
// the staging directory and reports a final finished event. On a fatal error
// the finished event names the error and staging is left as is.
func (p *Pipeline) Run(ctx context.Context, request Request) (Summary, error) {
	summary := Summary{RunID: request.RunID}
	if summary.RunID == "" {
		summary.RunID = uuid.NewString()
	}

	err := p.run(ctx, request, &summary)

	message := fmt.Sprintf(msgFmtFinished, len(summary.Outputs))
	if err != nil {
		message = fmt.Sprintf(msgFmtAborted, err)
	}

	p.reporter.Report(core.Event{
		RunID:    summary.RunID,
		Stage:    core.StageRun,
		Kind:     core.EventRunFinished,
		Message:  message,
		Finished: true,
	})

	return summary, err
}

func (p *Pipeline) run(ctx context.Context, request Request, summary *Summary) error {
	dirs, err := p.stage.PrepareDirectories()
	if err != nil {
		return fmt.Errorf(errFmtPrepare, err)
	}

	err = p.ClearStaging(summary.RunID)
	if err != nil {
		return err
	}

	summary.Synthesis, err = p.Synthesize(ctx, summary.RunID, request.Rows, request.Templates)
	if err != nil {
		return err
	}

	summary.Encoding, err = p.Encode(ctx, summary.RunID, dirs.Input, dirs.Output)
	if err != nil {
		return err
	}

	summary.Outputs = summary.Encoding.Outputs

	if p.opts.CleanupAfter {
		return p.ClearStaging(summary.RunID)
	}

	return nil
}

// ClearStaging discards every entry of the staging directory, reporting each one.
func (p *Pipeline) ClearStaging(runID string) error {
	err := p.stage.ClearStagingDirectory(p.stage.Dirs().Input, func(name string) {
		p.reporter.Report(core.Event{
			RunID:   runID,
			Stage:   core.StageStaging,
			Kind:    core.EventDiscard,
			Message: fmt.Sprintf(msgFmtDiscard, name),
		})
	})
	if err != nil {
		return fmt.Errorf(errFmtClear, err)
	}

	return nil
}

// Synthesize renders one synthesis task per row into the staging directory.
func (p *Pipeline) Synthesize(
	ctx context.Context,
	runID string,
	rows []core.Row,
	templates Templates,
) (StageResult, error) {
	outputDir := p.stage.Dirs().Input
	jobs := make([]worker.Job, 0, len(rows))

	for i, row := range rows {
		task := tts.Task{
			Voice:      p.opts.Voice,
			Format:     p.opts.Format,
			Text:       p.formatter.FormatString(templates.Text, row),
			OutputName: p.formatter.FormatString(templates.Name, row),
			OutputDir:  outputDir,
		}

		jobs = append(jobs, worker.Job{Index: i + 1, Label: task.OutputName, Synthesis: &task})
	}

	return p.runStage(ctx, runID, core.StageSynthesis, p.opts.SynthesisMode, jobs)
}

// Encode encodes every regular file found in inputDir at stage start into
// outputDir. Empty arguments select the staging and output directories.
func (p *Pipeline) Encode(ctx context.Context, runID, inputDir, outputDir string) (StageResult, error) {
	dirs := p.stage.Dirs()
	if inputDir == "" {
		inputDir = dirs.Input
	}

	if outputDir == "" {
		outputDir = dirs.Output
	}

	names, err := p.stage.ListInputs(inputDir)
	if err != nil {
		return StageResult{Stage: core.StageEncoding}, fmt.Errorf(errFmtList, inputDir, err)
	}

	jobs := make([]worker.Job, 0, len(names))

	for i, name := range names {
		task := audio.Task{
			Options:    p.opts.EncodeOptions,
			InputPath:  filepath.Join(inputDir, name),
			OutputPath: ttsutils.ReplaceExtension(filepath.Join(outputDir, name), p.opts.OutputFormat),
		}

		jobs = append(jobs, worker.Job{Index: i + 1, Label: name, Encoding: &task})
	}

	return p.runStage(ctx, runID, core.StageEncoding, p.opts.EncodingMode, jobs)
}

func (p *Pipeline) runStage(
	ctx context.Context,
	runID, stage string,
	mode Mode,
	jobs []worker.Job,
) (StageResult, error) {
	result := StageResult{Stage: stage, Total: len(jobs)}

	if len(jobs) == 0 {
		result.Empty = true
		p.reporter.Report(core.Event{
			RunID:   runID,
			Stage:   stage,
			Kind:    core.EventStageEmpty,
			Message: fmt.Sprintf(msgFmtEmpty, stage),
		})

		return result, nil
	}

	p.log.Info(logFmtStage, stage, len(jobs), mode)

	var err error
	if mode == ModePooled {
		err = p.runPooled(ctx, runID, stage, jobs, &result)
	} else {
		err = p.runSequential(ctx, runID, stage, jobs, &result)
	}

	if err != nil {
		return result, err
	}

	p.reporter.Report(core.Event{
		RunID:   runID,
		Stage:   stage,
		Kind:    core.EventStageDone,
		Message: fmt.Sprintf(msgFmtDone, stage, result.Succeeded, result.Failed),
		Total:   result.Total,
	})

	return result, nil
}

func (p *Pipeline) runSequential(
	ctx context.Context,
	runID, stage string,
	jobs []worker.Job,
	result *StageResult,
) error {
	for i, job := range jobs {
		p.reporter.Report(core.Event{
			RunID:   runID,
			Stage:   stage,
			Kind:    core.EventTaskStart,
			Message: fmt.Sprintf(msgFmtTask, stage, job.Index, len(jobs), job.Label),
			Index:   job.Index,
			Total:   len(jobs),
		})

		fatal := p.record(result, p.pool.Execute(ctx, job))
		if fatal != nil {
			result.Skipped += len(jobs) - i - 1

			return fmt.Errorf(errFmtFatal, ErrFatal, stage, fatal)
		}
	}

	return nil
}

func (p *Pipeline) runPooled(
	ctx context.Context,
	runID, stage string,
	jobs []worker.Job,
	result *StageResult,
) error {
	stageCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var fatal error

	p.pool.Run(stageCtx, jobs, func(outcome worker.Result) {
		if interrupted(outcome.Err) {
			result.Skipped++

			if fatal == nil {
				fatal = outcome.Err
			}

			return
		}

		kind := core.EventTaskDone
		message := fmt.Sprintf(msgFmtTask, stage, outcome.Index, len(jobs), outcome.Label)

		if outcome.Err != nil {
			kind = core.EventTaskFailed
			message = fmt.Sprintf(msgFmtFailed, outcome.Label, outcome.Err)
		}

		p.reporter.Report(core.Event{
			RunID:   runID,
			Stage:   stage,
			Kind:    kind,
			Message: message,
			Index:   outcome.Index,
			Total:   len(jobs),
		})

		taskFatal := p.record(result, outcome)
		if taskFatal != nil && fatal == nil {
			fatal = taskFatal

			cancel()
		}
	})

	if fatal == nil {
		fatal = ctx.Err()
	}

	if fatal != nil {
		return fmt.Errorf(errFmtFatal, ErrFatal, stage, fatal)
	}

	return nil
}

// record folds one outcome into result and returns the error when it must
// stop the stage.
func (p *Pipeline) record(result *StageResult, outcome worker.Result) error {
	if outcome.Err == nil {
		result.Succeeded++
		result.Outputs = append(result.Outputs, outcome.Output)

		return nil
	}

	if interrupted(outcome.Err) {
		result.Skipped++

		return outcome.Err
	}

	if errors.Is(outcome.Err, core.ErrSpawn) && p.opts.OnSpawnFailure == SpawnFatal {
		return outcome.Err
	}

	result.Failed++
	result.Errors = append(result.Errors, outcome.Err)

	return nil
}

// interrupted reports whether err comes from a cancelled or expired context.
// Such a task was not attempted to completion, so it stops the stage.
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
