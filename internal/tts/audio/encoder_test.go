package audio_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/seta-tts/internal/core"
	"github.com/book-expert/seta-tts/internal/tts/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}

	t.Cleanup(func() {
		_ = log.Close()
	})

	return log
}

// writingRunner records commands and writes a file at the last argument,
// standing in for a transcoder that produced output.
type writingRunner struct {
	mu       sync.Mutex
	commands []core.Command
	err      error
}

func (r *writingRunner) Run(_ context.Context, cmd core.Command) (core.RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands = append(r.commands, cmd)
	if r.err != nil {
		return core.RunResult{}, r.err
	}

	output := cmd.Args[len(cmd.Args)-1]

	writeErr := os.WriteFile(output, []byte("encoded"), 0o600)
	if writeErr != nil {
		return core.RunResult{}, writeErr
	}

	return core.RunResult{ExitCode: 0}, nil
}

// removeDiscarder deletes discarded paths and remembers them.
type removeDiscarder struct {
	mu        sync.Mutex
	discarded []string
}

func (d *removeDiscarder) Discard(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.discarded = append(d.discarded, path)

	return os.RemoveAll(path)
}

type stubVerifier struct {
	err     error
	checked []string
}

func (v *stubVerifier) Verify(_ context.Context, path string) error {
	v.checked = append(v.checked, path)

	return v.err
}

func TestBuildArgs_Compressed(t *testing.T) {
	t.Parallel()

	args := audio.BuildArgs(audio.DefaultEncodeOptions(), "/in/a.wav", "/out/b.mp3")

	assert.Equal(t, []string{
		"-hide_banner", "-nostats", "-loglevel", "warning", "-y",
		"-i", "/in/a.wav", "-vn",
		"-ar", "11025",
		"-filter:a", "volume=1.5",
		"-ac", "1",
		"-b:a", "24k",
		"/out/b.mp3",
	}, args)
	assert.NotContains(t, args, "-c:a")
}

func TestBuildArgs_Uncompressed(t *testing.T) {
	t.Parallel()

	options := audio.DefaultEncodeOptions()
	options.SampleFormat = "pcm_s16le"
	options.Volume = 2

	args := audio.BuildArgs(options, "/in/a.wav", "/out/b.wav")

	assert.Equal(t, []string{"-c:a", "pcm_s16le", "/out/b.wav"}, args[len(args)-3:])
	assert.Contains(t, args, "volume=2")
}

func TestEncoder_Encode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner := &writingRunner{}
	discarder := &removeDiscarder{}
	encoder := audio.NewEncoder("/usr/bin/ffmpeg", runner, discarder, createTestLogger(t))

	task := audio.Task{
		Options:    audio.DefaultEncodeOptions(),
		InputPath:  filepath.Join(dir, "a.wav"),
		OutputPath: filepath.Join(dir, "b.mp3"),
	}

	destination, err := encoder.Encode(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, task.OutputPath, destination)
	require.Len(t, runner.commands, 1)
	assert.Equal(t, "/usr/bin/ffmpeg", runner.commands[0].Path)
	assert.Empty(t, discarder.discarded)
	assert.FileExists(t, destination)
}

func TestEncoder_ReplacesExistingOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	destination := filepath.Join(dir, "b.mp3")
	require.NoError(t, os.WriteFile(destination, []byte("stale"), 0o600))

	var hooked []string

	discarder := &removeDiscarder{}
	encoder := audio.NewEncoder(
		"ffmpeg", &writingRunner{}, discarder, createTestLogger(t),
		audio.WithDiscardHook(func(path string) { hooked = append(hooked, path) }),
	)

	_, err := encoder.Encode(context.Background(), audio.Task{
		Options:    audio.DefaultEncodeOptions(),
		InputPath:  filepath.Join(dir, "a.wav"),
		OutputPath: destination,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{destination}, discarder.discarded)
	assert.Equal(t, []string{destination}, hooked)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(destination)
	require.NoError(t, err)
	assert.Equal(t, "encoded", string(data))
}

func TestEncoder_RejectsMalformedTask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		task     audio.Task
		expected error
	}{
		{
			name:     "missing input",
			task:     audio.Task{Options: audio.DefaultEncodeOptions(), OutputPath: "/out/b.mp3"},
			expected: audio.ErrMalformedTask,
		},
		{
			name:     "missing output",
			task:     audio.Task{Options: audio.DefaultEncodeOptions(), InputPath: "/in/a.wav"},
			expected: audio.ErrMalformedTask,
		},
		{
			name: "wav without sample format",
			task: audio.Task{
				Options:    audio.DefaultEncodeOptions(),
				InputPath:  "/in/a.wav",
				OutputPath: "/out/b.wav",
			},
			expected: audio.ErrSampleFormatRequired,
		},
		{
			name: "invalid options",
			task: audio.Task{
				Options:    audio.EncodeOptions{Bitrate: "24k"},
				InputPath:  "/in/a.wav",
				OutputPath: "/out/b.mp3",
			},
			expected: audio.ErrInvalidOptions,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			runner := &writingRunner{}
			encoder := audio.NewEncoder("ffmpeg", runner, &removeDiscarder{}, createTestLogger(t))

			_, err := encoder.Encode(context.Background(), testCase.task)
			require.ErrorIs(t, err, testCase.expected)
			assert.Empty(t, runner.commands)
		})
	}
}

func TestEncoder_SpawnFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner := &writingRunner{err: fmt.Errorf("%w: ffmpeg", core.ErrSpawn)}
	encoder := audio.NewEncoder("ffmpeg", runner, &removeDiscarder{}, createTestLogger(t))

	_, err := encoder.Encode(context.Background(), audio.Task{
		Options:    audio.DefaultEncodeOptions(),
		InputPath:  filepath.Join(dir, "a.wav"),
		OutputPath: filepath.Join(dir, "b.mp3"),
	})
	require.ErrorIs(t, err, core.ErrSpawn)
}

func TestEncoder_Verifier(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	verifier := &stubVerifier{err: audio.ErrOutputInvalid}
	encoder := audio.NewEncoder(
		"ffmpeg", &writingRunner{}, &removeDiscarder{}, createTestLogger(t),
		audio.WithVerifier(verifier),
	)

	destination := filepath.Join(dir, "b.mp3")

	_, err := encoder.Encode(context.Background(), audio.Task{
		Options:    audio.DefaultEncodeOptions(),
		InputPath:  filepath.Join(dir, "a.wav"),
		OutputPath: destination,
	})
	require.ErrorIs(t, err, audio.ErrOutputInvalid)
	assert.Equal(t, []string{destination}, verifier.checked)
}
