package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/seta-tts/internal/app"
	"github.com/book-expert/seta-tts/internal/batch"
	"github.com/book-expert/seta-tts/internal/config"
	"github.com/book-expert/seta-tts/internal/progress"
	"github.com/book-expert/seta-tts/internal/table"
	"github.com/book-expert/seta-tts/internal/tts/ttsutils"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const logFileName = "seta-tts.log"

// ErrNoExpectedVoices indicates that none of the expected voices is installed.
var ErrNoExpectedVoices = errors.New("no expected voices are installed")

const (
	lineFmtStage    = "%s: %d succeeded, %d failed, %d skipped\n"
	lineFmtOutput   = "  %s (%s)\n"
	lineFmtCategory = "%s:\n"
	lineFmtVoice    = "  %s\n"
	lineFmtStatus   = "%s\n"
	lineFmtMissing  = "missing: %s\n"
	lineFmtElapsed  = "elapsed: %s\n"
	errFmtConfig    = "failed to load configuration: %w"
	errFmtLogger    = "failed to create logger: %w"
	errFmtTable     = "failed to load table: %w"
	errFmtOutputDir = "failed to create output directory: %w"
)

type cli struct {
	out        io.Writer
	configPath string
	appOpts    []app.Option
}

type runFlags struct {
	text        string
	name        string
	voice       string
	format      string
	delimiter   string
	pooled      bool
	poolSize    int
	keepStaging bool
}

type encodeFlags struct {
	input  string
	output string
	pooled bool
}

// session is one command's configuration, logger and components.
type session struct {
	cfg *config.Config
	log *logger.Logger
	app *app.App
}

func (s *session) close() {
	_ = s.log.Close()
}

func newRootCmd(out io.Writer, appOpts ...app.Option) *cobra.Command {
	c := &cli{out: out, appOpts: appOpts}

	root := &cobra.Command{
		Use:           "seta-tts",
		Short:         "Synthesize one audio file per row of a CSV table",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to a TOML configuration file")

	root.AddCommand(c.newRunCmd(), c.newEncodeCmd(), c.newVoicesCmd(), c.newCleanCmd())

	return root
}

func (c *cli) open() (*session, error) {
	cfg, err := config.LoadFile(c.configPath)
	if err != nil {
		return nil, fmt.Errorf(errFmtConfig, err)
	}

	log, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return nil, fmt.Errorf(errFmtLogger, err)
	}

	reporter := progress.Multi{progress.NewWriterReporter(c.out), progress.NewLogReporter(log)}

	application, err := app.New(cfg, reporter, log, c.appOpts...)
	if err != nil {
		_ = log.Close()

		return nil, err
	}

	return &session{cfg: cfg, log: log, app: application}, nil
}

func (c *cli) newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <table.csv>",
		Short: "Synthesize and encode every row of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBatch(cmd.Context(), args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.text, "text", "", "utterance template, e.g. \"Fermata {city}\"")
	cmd.Flags().StringVar(&flags.name, "name", "", "file name template, e.g. \"{id}\"")
	cmd.Flags().StringVar(&flags.voice, "voice", "", "synthesizer voice (default from configuration)")
	cmd.Flags().StringVar(&flags.format, "format", "", "synthesis format (default from configuration)")
	cmd.Flags().StringVar(&flags.delimiter, "delimiter", "", "table cell delimiter (default from configuration)")
	cmd.Flags().BoolVar(&flags.pooled, "pooled", false, "run both stages through the worker pool")
	cmd.Flags().IntVar(&flags.poolSize, "pool-size", 0, "maximum concurrent tasks in pooled mode")
	cmd.Flags().BoolVar(&flags.keepStaging, "keep-staging", false, "keep synthesized files after encoding")
	_ = cmd.MarkFlagRequired("text")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func (c *cli) runBatch(ctx context.Context, path string, flags runFlags) error {
	s, err := c.open()
	if err != nil {
		return err
	}
	defer s.close()

	delimiterValue := flags.delimiter
	if delimiterValue == "" {
		delimiterValue = s.cfg.Table.Delimiter
	}

	delimiter, err := table.ParseDelimiter(delimiterValue)
	if err != nil {
		return err
	}

	source, err := table.Load(path, delimiter)
	if err != nil {
		return fmt.Errorf(errFmtTable, err)
	}

	options := s.app.Options(app.Settings{Voice: flags.voice, Format: flags.format, Pooled: flags.pooled})
	if flags.poolSize > 0 {
		options.PoolSize = flags.poolSize
	}

	if flags.keepStaging {
		options.CleanupAfter = false
	}

	pipeline, err := s.app.PipelineWithOptions(options)
	if err != nil {
		return err
	}

	started := time.Now()

	summary, runErr := pipeline.Run(ctx, batch.Request{
		Rows:      source.Rows,
		Templates: batch.Templates{Text: flags.text, Name: flags.name},
	})

	c.printStage(summary.Synthesis)
	c.printStage(summary.Encoding)
	c.printOutputs(summary.Outputs)
	_, _ = fmt.Fprintf(c.out, lineFmtElapsed, ttsutils.FormatDuration(time.Since(started).Seconds()))

	return runErr
}

func (c *cli) newEncodeCmd() *cobra.Command {
	var flags encodeFlags

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode every file of a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.encode(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.input, "input", "", "directory to encode (default: staging directory)")
	cmd.Flags().StringVar(&flags.output, "output", "", "directory to write to (default: output directory)")
	cmd.Flags().BoolVar(&flags.pooled, "pooled", false, "encode through the worker pool")

	return cmd
}

func (c *cli) encode(ctx context.Context, flags encodeFlags) error {
	s, err := c.open()
	if err != nil {
		return err
	}
	defer s.close()

	if flags.output != "" {
		err = ttsutils.EnsureDir(flags.output)
	} else {
		_, err = s.app.Staging().PrepareDirectories()
	}

	if err != nil {
		return fmt.Errorf(errFmtOutputDir, err)
	}

	pipeline, err := s.app.Pipeline(app.Settings{Pooled: flags.pooled})
	if err != nil {
		return err
	}

	result, err := pipeline.Encode(ctx, uuid.NewString(), flags.input, flags.output)
	c.printStage(result)
	c.printOutputs(result.Outputs)

	return err
}

func (c *cli) newVoicesCmd() *cobra.Command {
	var expected []string

	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List installed voices and check the expected ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.voices(cmd.Context(), expected)
		},
	}

	cmd.Flags().StringArrayVar(&expected, "expect", nil, "voice that must be installed (repeatable)")

	return cmd
}

func (c *cli) voices(ctx context.Context, expected []string) error {
	s, err := c.open()
	if err != nil {
		return err
	}
	defer s.close()

	if len(expected) == 0 {
		expected = s.cfg.Synthesis.ExpectedVoices
	}

	catalog, err := s.app.Voices().List(ctx)
	if err != nil {
		return err
	}

	for _, category := range catalog.Order {
		_, _ = fmt.Fprintf(c.out, lineFmtCategory, category)

		for _, voice := range catalog.Categories[category] {
			_, _ = fmt.Fprintf(c.out, lineFmtVoice, voice)
		}
	}

	status := catalog.Check(expected)
	_, _ = fmt.Fprintf(c.out, lineFmtStatus, status.Message)

	if len(status.Missing) > 0 {
		_, _ = fmt.Fprintf(c.out, lineFmtMissing, strings.Join(status.Missing, ", "))
	}

	if !status.HasVoices && len(expected) > 0 {
		return ErrNoExpectedVoices
	}

	return nil
}

func (c *cli) newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Discard everything in the staging directory",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			s, err := c.open()
			if err != nil {
				return err
			}
			defer s.close()

			pipeline, err := s.app.Pipeline(app.Settings{})
			if err != nil {
				return err
			}

			return pipeline.ClearStaging(uuid.NewString())
		},
	}
}

func (c *cli) printStage(result batch.StageResult) {
	if result.Stage == "" {
		return
	}

	_, _ = fmt.Fprintf(c.out, lineFmtStage, result.Stage, result.Succeeded, result.Failed, result.Skipped)
}

func (c *cli) printOutputs(outputs []string) {
	for _, output := range outputs {
		size := "missing"

		info, err := os.Stat(output)
		if err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}

		_, _ = fmt.Fprintf(c.out, lineFmtOutput, output, size)
	}
}
