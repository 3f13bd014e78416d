// Package config_test tests the configuration loading for seta-tts.
package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/seta-tts/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[paths]
work_dir = "/srv/seta"
pronunciation_table = "/etc/seta/pronunciation.json"
discard = "trash"

[binaries]
synthesizer = "/opt/balcon/balcon"

[synthesis]
voice = "Loquendo Paola"
format = "wav"
expected_voices = ["Loquendo Paola"]
pooled = true

[encoding]
sample_rate = 22050
sample_format = "pcm_s16le"
output_format = "ogg"

[pool]
size = 4
on_spawn_failure = "task"

[substitution]
match_mode = "token"

[nats]
url = "nats://nats:4222"
batch_request_subject = "tts.requests"
`

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	err := toml.Unmarshal([]byte(sampleConfig), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "/srv/seta", cfg.Paths.WorkDir)
	assert.Equal(t, "output.tmp", cfg.Paths.StagingDirName, "unset keys keep their defaults")
	assert.Equal(t, "trash", cfg.Paths.Discard)
	assert.Equal(t, "/opt/balcon/balcon", cfg.Binaries.Synthesizer)
	assert.Equal(t, "ffmpeg", cfg.Binaries.Transcoder)
	assert.Equal(t, "Loquendo Paola", cfg.Synthesis.Voice)
	assert.True(t, cfg.Synthesis.Pooled)
	assert.Equal(t, 4, cfg.Pool.Size)
	assert.Equal(t, "task", cfg.Pool.OnSpawnFailure)
	assert.Equal(t, "token", cfg.Substitution.MatchMode)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
	assert.Equal(t, "tts.requests", cfg.NATS.BatchRequestSubject)
	assert.Equal(t, "audio.chunk.created", cfg.NATS.AudioCreatedSubject)
	require.NoError(t, cfg.Validate())
}

func TestEncodeOptions_MergesOverrides(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	require.NoError(t, toml.Unmarshal([]byte(sampleConfig), &cfg))

	options := cfg.EncodeOptions()

	assert.Equal(t, 22050, options.SampleRate)
	assert.Equal(t, "pcm_s16le", options.SampleFormat)
	assert.Equal(t, "24k", options.Bitrate)
	assert.Equal(t, 1, options.Channels)
	assert.InEpsilon(t, 1.5, options.Volume, 0.001)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seta-tts.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ogg", cfg.Encoding.OutputFormat)
}

func TestLoadFile_EmptyPathReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFile("")
	require.NoError(t, err)

	defaults := config.Default()
	assert.Equal(t, defaults.Binaries, cfg.Binaries)
	assert.Equal(t, defaults.Paths.StagingDirName, cfg.Paths.StagingDirName)
}

func TestLoadFile_Errors(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("[paths\nwork_dir = "), 0o600))

	_, err = config.LoadFile(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{name: "missing synthesizer", mutate: func(cfg *config.Config) { cfg.Binaries.Synthesizer = "" }},
		{name: "missing voice", mutate: func(cfg *config.Config) { cfg.Synthesis.Voice = "" }},
		{name: "unknown discard", mutate: func(cfg *config.Config) { cfg.Paths.Discard = "shred" }},
		{name: "unknown spawn policy", mutate: func(cfg *config.Config) { cfg.Pool.OnSpawnFailure = "retry" }},
		{name: "unknown match mode", mutate: func(cfg *config.Config) { cfg.Substitution.MatchMode = "regex" }},
		{name: "bad synthesis format", mutate: func(cfg *config.Config) { cfg.Synthesis.Format = "txt" }},
		{name: "bad output format", mutate: func(cfg *config.Config) { cfg.Encoding.OutputFormat = "png" }},
		{name: "bad channels", mutate: func(cfg *config.Config) {
			channels := 0
			cfg.Encoding.Channels = &channels
		}},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			testCase.mutate(&cfg)

			require.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(config.EnvSynthesizer, "/usr/local/bin/balcon")
	t.Setenv(config.EnvWorkDir, "/var/lib/seta")
	t.Setenv(config.EnvTranscoder, "")

	cfg := config.Default()
	cfg.ApplyEnv()

	assert.Equal(t, "/usr/local/bin/balcon", cfg.Binaries.Synthesizer)
	assert.Equal(t, "/var/lib/seta", cfg.Paths.WorkDir)
	assert.Equal(t, "ffmpeg", cfg.Binaries.Transcoder, "empty variables are ignored")
}

func TestProberPath(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	assert.Equal(t, "ffprobe", cfg.ProberPath())

	cfg.Binaries.Transcoder = "/opt/ffmpeg/bin/ffmpeg"
	assert.Equal(t, "/opt/ffmpeg/bin/ffprobe", cfg.ProberPath())

	cfg.Binaries.Prober = "/usr/local/bin/ffprobe"
	assert.Equal(t, "/usr/local/bin/ffprobe", cfg.ProberPath())
}

func TestApplyEnv_Prober(t *testing.T) {
	t.Setenv(config.EnvProber, "/srv/ffprobe")

	cfg := config.Default()
	cfg.ApplyEnv()

	assert.Equal(t, "/srv/ffprobe", cfg.ProberPath())
}
