// Package config provides the configuration structure for seta-tts.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/book-expert/seta-tts/internal/tts"
	"github.com/book-expert/seta-tts/internal/tts/audio"
	"github.com/book-expert/seta-tts/internal/tts/ttsutils"
	"github.com/pelletier/go-toml/v2"
)

// Environment variables that override the file configuration.
const (
	EnvSynthesizer = "SETA_TTS_SYNTHESIZER"
	EnvTranscoder  = "SETA_TTS_TRANSCODER"
	EnvProber      = "SETA_TTS_PROBER"
	EnvWorkDir     = "SETA_TTS_WORK_DIR"
	EnvNatsURL     = "SETA_TTS_NATS_URL"
)

// ErrInvalidConfig indicates a configuration value outside its allowed set.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	errFmtLoad           = "failed to load configuration from configurator: %w"
	errFmtReadFile       = "failed to read configuration file %s: %w"
	errFmtDecodeFile     = "failed to decode configuration file %s: %w"
	errFmtEmptyField     = "%w: %s cannot be empty"
	errFmtUnknownValue   = "%w: %s must be one of %v, got %q"
	errFmtInvalidFormat  = "%w: %s is not an audio format: %q"
	errFmtEncodeDefaults = "%w: encoding: %w"
)

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir        string `toml:"base_logs_dir"`
	WorkDir            string `toml:"work_dir"`
	StagingDirName     string `toml:"staging_dir_name"`
	OutputDirName      string `toml:"output_dir_name"`
	PronunciationTable string `toml:"pronunciation_table"`
	Discard            string `toml:"discard"`
}

// BinariesConfig names the external executables.
type BinariesConfig struct {
	Synthesizer string `toml:"synthesizer"`
	Transcoder  string `toml:"transcoder"`
	// Prober verifies encoded files. Empty selects the ffprobe next to Transcoder.
	Prober string `toml:"prober"`
}

// SynthesisConfig holds the synthesis stage settings.
type SynthesisConfig struct {
	Voice          string   `toml:"voice"`
	Format         string   `toml:"format"`
	ExpectedVoices []string `toml:"expected_voices"`
	Pooled         bool     `toml:"pooled"`
}

// EncodingConfig holds the encoding stage settings. Unset quality keys keep
// their defaults.
type EncodingConfig struct {
	Bitrate      *string  `toml:"bitrate"`
	SampleRate   *int     `toml:"sample_rate"`
	Channels     *int     `toml:"channels"`
	Volume       *float64 `toml:"volume"`
	SampleFormat *string  `toml:"sample_format"`
	OutputFormat string   `toml:"output_format"`
	Pooled       bool     `toml:"pooled"`
	Verify       bool     `toml:"verify"`
}

// PoolConfig holds the worker pool settings.
type PoolConfig struct {
	Size           int    `toml:"size"`
	OnSpawnFailure string `toml:"on_spawn_failure"`
}

// SubstitutionConfig holds the pronunciation engine settings.
type SubstitutionConfig struct {
	MatchMode string `toml:"match_mode"`
}

// TableConfig holds the source table settings.
type TableConfig struct {
	Delimiter string `toml:"delimiter"`
}

// RunConfig holds per-run behavior.
type RunConfig struct {
	CleanupAfter bool `toml:"cleanup_after"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                 string `toml:"url"`
	BatchRequestSubject string `toml:"batch_request_subject"`
	ProgressSubject     string `toml:"progress_subject"`
	AudioCreatedSubject string `toml:"audio_created_subject"`
	ObjectStoreBucket   string `toml:"object_store_bucket"`
}

// Config is the root configuration structure.
type Config struct {
	Paths        PathsConfig        `toml:"paths"`
	Binaries     BinariesConfig     `toml:"binaries"`
	Synthesis    SynthesisConfig    `toml:"synthesis"`
	Encoding     EncodingConfig     `toml:"encoding"`
	Pool         PoolConfig         `toml:"pool"`
	Substitution SubstitutionConfig `toml:"substitution"`
	Table        TableConfig        `toml:"table"`
	Run          RunConfig          `toml:"run"`
	NATS         NATSConfig         `toml:"nats"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Paths: PathsConfig{
			BaseLogsDir:    filepath.Join(os.TempDir(), "seta-tts", "logs"),
			WorkDir:        filepath.Join(os.TempDir(), "seta-tts"),
			StagingDirName: "output.tmp",
			OutputDirName:  "output",
			Discard:        "remove",
		},
		Binaries: BinariesConfig{
			Synthesizer: "balcon",
			Transcoder:  "ffmpeg",
		},
		Synthesis: SynthesisConfig{
			Voice:          tts.DefaultExpectedVoices()[0],
			Format:         "wav",
			ExpectedVoices: tts.DefaultExpectedVoices(),
		},
		Encoding: EncodingConfig{
			OutputFormat: "mp3",
		},
		Pool: PoolConfig{
			OnSpawnFailure: "fatal",
		},
		Substitution: SubstitutionConfig{
			MatchMode: "substring",
		},
		Table: TableConfig{
			Delimiter: ";",
		},
		Run: RunConfig{
			CleanupAfter: true,
		},
		NATS: NATSConfig{
			URL:                 "nats://127.0.0.1:4222",
			BatchRequestSubject: "tts.batch.request",
			ProgressSubject:     "tts.batch.progress",
			AudioCreatedSubject: "audio.chunk.created",
			ObjectStoreBucket:   "TTS_FILES",
		},
	}
}

// Load loads the service configuration through the central configurator,
// on top of the defaults.
func Load(log *logger.Logger) (*Config, error) {
	cfg := Default()

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf(errFmtLoad, err)
	}

	return finish(&cfg)
}

// LoadFile decodes a local TOML file on top of the defaults. An empty path
// returns the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf(errFmtReadFile, path, err)
		}

		err = toml.Unmarshal(data, &cfg)
		if err != nil {
			return nil, fmt.Errorf(errFmtDecodeFile, path, err)
		}
	}

	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnv()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides binaries, the work directory and the NATS URL from the
// environment.
func (c *Config) ApplyEnv() {
	overrides := []struct {
		name   string
		target *string
	}{
		{EnvSynthesizer, &c.Binaries.Synthesizer},
		{EnvTranscoder, &c.Binaries.Transcoder},
		{EnvProber, &c.Binaries.Prober},
		{EnvWorkDir, &c.Paths.WorkDir},
		{EnvNatsURL, &c.NATS.URL},
	}

	for _, override := range overrides {
		if value, ok := os.LookupEnv(override.name); ok && value != "" {
			*override.target = value
		}
	}
}

// ProberPath returns the configured prober or the one derived from the transcoder.
func (c *Config) ProberPath() string {
	if c.Binaries.Prober != "" {
		return c.Binaries.Prober
	}

	return audio.ProberFor(c.Binaries.Transcoder)
}

// EncodeOptions merges the configured overrides onto the default options.
func (c *Config) EncodeOptions() audio.EncodeOptions {
	return audio.Merge(audio.DefaultEncodeOptions(), audio.Overrides{
		Bitrate:      c.Encoding.Bitrate,
		SampleRate:   c.Encoding.SampleRate,
		Channels:     c.Encoding.Channels,
		Volume:       c.Encoding.Volume,
		SampleFormat: c.Encoding.SampleFormat,
	})
}

// Validate checks required fields and enumerated values.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"binaries.synthesizer", c.Binaries.Synthesizer},
		{"binaries.transcoder", c.Binaries.Transcoder},
		{"synthesis.voice", c.Synthesis.Voice},
		{"synthesis.format", c.Synthesis.Format},
	}

	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf(errFmtEmptyField, ErrInvalidConfig, field.name)
		}
	}

	enums := []struct {
		name    string
		value   string
		allowed []string
	}{
		{"paths.discard", c.Paths.Discard, []string{"", "remove", "trash"}},
		{"pool.on_spawn_failure", c.Pool.OnSpawnFailure, []string{"", "fatal", "task"}},
		{"substitution.match_mode", c.Substitution.MatchMode, []string{"", "substring", "token"}},
	}

	for _, enum := range enums {
		if !slices.Contains(enum.allowed, enum.value) {
			return fmt.Errorf(errFmtUnknownValue, ErrInvalidConfig, enum.name, enum.allowed[1:], enum.value)
		}
	}

	if !ttsutils.IsValidAudioFile("x." + c.Synthesis.Format) {
		return fmt.Errorf(errFmtInvalidFormat, ErrInvalidConfig, "synthesis.format", c.Synthesis.Format)
	}

	if c.Encoding.OutputFormat != "" && !ttsutils.IsValidAudioFile("x."+c.Encoding.OutputFormat) {
		return fmt.Errorf(errFmtInvalidFormat, ErrInvalidConfig, "encoding.output_format", c.Encoding.OutputFormat)
	}

	err := c.EncodeOptions().Validate()
	if err != nil {
		return fmt.Errorf(errFmtEncodeDefaults, ErrInvalidConfig, err)
	}

	return nil
}
