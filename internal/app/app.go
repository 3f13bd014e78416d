// Package app wires the configured components of seta-tts into runnable
// pipelines for the CLI and the NATS service.
package app

import (
	"context"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/book-expert/seta-tts/internal/batch"
	"github.com/book-expert/seta-tts/internal/config"
	"github.com/book-expert/seta-tts/internal/core"
	"github.com/book-expert/seta-tts/internal/staging"
	"github.com/book-expert/seta-tts/internal/tts"
	"github.com/book-expert/seta-tts/internal/tts/audio"
	"github.com/book-expert/seta-tts/internal/tts/text"
	"github.com/book-expert/seta-tts/internal/worker"
)

const (
	errFmtDiscarder    = "failed to create discarder: %w"
	logFmtTableLoaded  = "Loaded %d pronunciation entries from %s"
	logFmtTableMissing = "Pronunciation table %s unavailable, substitutions disabled: %v"
	msgFmtReplacing    = "replacing %s"
	embeddedTableName  = "embedded table"
)

// Settings override the configured synthesis settings for one run. Empty
// fields keep the configured values.
type Settings struct {
	Voice  string
	Format string
	// Pooled forces both stages into the worker pool when true.
	Pooled bool
}

// Option configures an App.
type Option func(*App)

// WithRunner replaces the subprocess runner, mainly for tests.
func WithRunner(runner core.Runner) Option {
	return func(a *App) {
		a.runner = runner
	}
}

// WithVerifier checks every encoded file with verifier, regardless of
// the encoding.verify setting.
func WithVerifier(verifier audio.Verifier) Option {
	return func(a *App) {
		a.verifier = verifier
	}
}

// App holds the long-lived components built from one configuration.
type App struct {
	cfg      *config.Config
	log      *logger.Logger
	reporter core.Reporter
	runner   core.Runner
	verifier audio.Verifier
	engine   *text.Engine
	synth    *tts.Synthesizer
	encoder  *audio.Encoder
	stage    *staging.Manager
	voices   *tts.Voices
}

// New builds the components described by cfg. Progress events go to reporter.
func New(cfg *config.Config, reporter core.Reporter, log *logger.Logger, opts ...Option) (*App, error) {
	if reporter == nil {
		reporter = core.ReporterFunc(func(core.Event) {})
	}

	application := &App{cfg: cfg, log: log, reporter: reporter}

	for _, opt := range opts {
		opt(application)
	}

	if application.runner == nil {
		application.runner = tts.NewExecRunner(log)
	}

	if application.verifier == nil && cfg.Encoding.Verify {
		application.verifier = audio.NewProbeVerifier(log, audio.ExecProbe(cfg.ProberPath()))
	}

	discarder, err := staging.NewDiscarder(cfg.Paths.Discard, cfg.Paths.WorkDir)
	if err != nil {
		return nil, fmt.Errorf(errFmtDiscarder, err)
	}

	application.engine = text.NewEngine(
		loadPronunciationTable(cfg.Paths.PronunciationTable, log),
		text.WithMatchMode(text.MatchMode(cfg.Substitution.MatchMode)),
		text.WithLogger(log),
	)
	application.synth = tts.NewSynthesizer(cfg.Binaries.Synthesizer, application.runner, log)
	application.voices = tts.NewVoices(cfg.Binaries.Synthesizer, application.runner, log)
	application.stage = staging.New(
		cfg.Paths.WorkDir, cfg.Paths.StagingDirName, cfg.Paths.OutputDirName, discarder, log,
	)

	encoderOpts := []audio.EncoderOption{audio.WithDiscardHook(application.reportReplacement)}
	if application.verifier != nil {
		encoderOpts = append(encoderOpts, audio.WithVerifier(application.verifier))
	}

	application.encoder = audio.NewEncoder(
		cfg.Binaries.Transcoder, application.runner, discarder, log, encoderOpts...,
	)

	return application, nil
}

// loadPronunciationTable returns the configured table, the embedded one when
// no path is set, or an empty table when neither can be read.
func loadPronunciationTable(path string, log *logger.Logger) text.Table {
	source := path

	var (
		table text.Table
		err   error
	)

	if path == "" {
		source = embeddedTableName
		table, err = text.DefaultTable()
	} else {
		table, err = text.LoadTable(path)
	}

	if err != nil {
		log.Warn(logFmtTableMissing, source, err)

		return nil
	}

	log.Info(logFmtTableLoaded, table.Len(), source)

	return table
}

func (a *App) reportReplacement(path string) {
	a.reporter.Report(core.Event{
		Stage:   core.StageEncoding,
		Kind:    core.EventDiscard,
		Message: fmt.Sprintf(msgFmtReplacing, path),
	})
}

// Engine returns the substitution engine.
func (a *App) Engine() *text.Engine {
	return a.engine
}

// Staging returns the run directory manager.
func (a *App) Staging() *staging.Manager {
	return a.stage
}

// Voices returns the voice catalog query.
func (a *App) Voices() *tts.Voices {
	return a.voices
}

// Options returns the batch options for settings on top of the configuration.
func (a *App) Options(settings Settings) batch.Options {
	options := batch.Options{
		SynthesisMode:  batch.ModeFor(a.cfg.Synthesis.Pooled || settings.Pooled),
		EncodingMode:   batch.ModeFor(a.cfg.Encoding.Pooled || settings.Pooled),
		PoolSize:       a.cfg.Pool.Size,
		OnSpawnFailure: batch.SpawnPolicy(a.cfg.Pool.OnSpawnFailure),
		Voice:          a.cfg.Synthesis.Voice,
		Format:         a.cfg.Synthesis.Format,
		EncodeOptions:  a.cfg.EncodeOptions(),
		OutputFormat:   a.cfg.Encoding.OutputFormat,
		CleanupAfter:   a.cfg.Run.CleanupAfter,
	}

	if settings.Voice != "" {
		options.Voice = settings.Voice
	}

	if settings.Format != "" {
		options.Format = settings.Format
	}

	return options
}

// Pipeline builds a pipeline for settings.
func (a *App) Pipeline(settings Settings) (*batch.Pipeline, error) {
	return a.PipelineWithOptions(a.Options(settings))
}

// PipelineWithOptions builds a pipeline for explicit options.
func (a *App) PipelineWithOptions(options batch.Options) (*batch.Pipeline, error) {
	return batch.New(a.engine, a.synth, a.encoder, a.stage, a.reporter, a.log, options)
}

// RunBatch runs one batch job end to end.
func (a *App) RunBatch(ctx context.Context, job worker.BatchJob) (worker.BatchOutcome, error) {
	pipeline, err := a.Pipeline(Settings{Voice: job.Voice, Format: job.Format, Pooled: job.Pooled})
	if err != nil {
		return worker.BatchOutcome{}, err
	}

	summary, err := pipeline.Run(ctx, batch.Request{
		RunID:     job.RunID,
		Rows:      job.Rows,
		Templates: batch.Templates{Text: job.TextTemplate, Name: job.NameTemplate},
	})

	return worker.BatchOutcome{
		Outputs:   summary.Outputs,
		Succeeded: summary.Encoding.Succeeded,
		Failed:    summary.Synthesis.Failed + summary.Encoding.Failed,
	}, err
}
