package tts_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/book-expert/seta-tts/internal/core"
	"github.com/book-expert/seta-tts/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunner records every command and returns a canned result.
type mockRunner struct {
	mu       sync.Mutex
	commands []core.Command
	result   core.RunResult
	err      error
}

func (m *mockRunner) Run(_ context.Context, cmd core.Command) (core.RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.commands = append(m.commands, cmd)

	return m.result, m.err
}

func validTask(dir string) tts.Task {
	return tts.Task{
		Voice:      "Loquendo Roberto",
		Format:     "wav",
		Text:       "Next halt",
		OutputName: "halt1",
		OutputDir:  dir,
	}
}

func TestSynthesizer_Synthesize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner := &mockRunner{}
	synth := tts.NewSynthesizer("/opt/balcon", runner, createTestLogger(t))

	destination, err := synth.Synthesize(context.Background(), validTask(dir))
	require.NoError(t, err)

	expected := filepath.Join(dir, "halt1.wav")
	assert.Equal(t, expected, destination)

	require.Len(t, runner.commands, 1)
	assert.Equal(t, "/opt/balcon", runner.commands[0].Path)
	assert.Equal(t,
		[]string{"-t", "Next halt", "-n", "Loquendo Roberto", "-w", expected},
		runner.commands[0].Args,
	)
}

func TestSynthesizer_KeepsExistingExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	task := validTask(dir)
	task.OutputName = "halt1.wav"

	synth := tts.NewSynthesizer("balcon", &mockRunner{}, createTestLogger(t))

	destination, err := synth.Synthesize(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "halt1.wav"), destination)
}

func TestSynthesizer_SanitizesName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	task := validTask(dir)
	task.OutputName = "a/b:c"

	destination := task.Destination()
	assert.Equal(t, filepath.Join(dir, "a_b_c.wav"), destination)
}

func TestSynthesizer_NonZeroExitIsFinished(t *testing.T) {
	t.Parallel()

	runner := &mockRunner{result: core.RunResult{ExitCode: 1}}
	synth := tts.NewSynthesizer("balcon", runner, createTestLogger(t))

	_, err := synth.Synthesize(context.Background(), validTask(t.TempDir()))
	require.NoError(t, err)
}

func TestSynthesizer_SpawnFailure(t *testing.T) {
	t.Parallel()

	runner := &mockRunner{err: fmt.Errorf("%w: balcon", core.ErrSpawn)}
	synth := tts.NewSynthesizer("balcon", runner, createTestLogger(t))

	_, err := synth.Synthesize(context.Background(), validTask(t.TempDir()))
	require.ErrorIs(t, err, core.ErrSpawn)
}

func TestTask_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(task *tts.Task)
	}{
		{name: "missing voice", mutate: func(task *tts.Task) { task.Voice = "" }},
		{name: "missing format", mutate: func(task *tts.Task) { task.Format = "" }},
		{name: "missing text", mutate: func(task *tts.Task) { task.Text = "" }},
		{name: "missing name", mutate: func(task *tts.Task) { task.OutputName = "" }},
		{name: "missing directory", mutate: func(task *tts.Task) { task.OutputDir = "" }},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			runner := &mockRunner{}
			synth := tts.NewSynthesizer("balcon", runner, createTestLogger(t))

			task := validTask(t.TempDir())
			testCase.mutate(&task)

			_, err := synth.Synthesize(context.Background(), task)
			require.ErrorIs(t, err, tts.ErrMalformedTask)
			assert.Empty(t, runner.commands, "no process may start for a malformed task")
		})
	}
}

func TestTask_ValidateAcceptsCompleteTask(t *testing.T) {
	t.Parallel()

	err := validTask("/out").Validate()
	assert.False(t, errors.Is(err, tts.ErrMalformedTask))
	assert.NoError(t, err)
}
