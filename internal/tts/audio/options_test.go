package audio_test

import (
	"context"
	"errors"
	"testing"

	"github.com/book-expert/seta-tts/internal/tts/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEncodeOptions(t *testing.T) {
	t.Parallel()

	options := audio.DefaultEncodeOptions()

	assert.Equal(t, "24k", options.Bitrate)
	assert.Equal(t, 11025, options.SampleRate)
	assert.Equal(t, 1, options.Channels)
	assert.InDelta(t, 1.5, options.Volume, 0.0001)
	assert.Empty(t, options.SampleFormat)
	require.NoError(t, options.Validate())
}

func TestMerge_IsPerKey(t *testing.T) {
	t.Parallel()

	rate := 22050
	format := "pcm_s16le"

	merged := audio.Merge(audio.DefaultEncodeOptions(), audio.Overrides{
		SampleRate:   &rate,
		SampleFormat: &format,
	})

	assert.Equal(t, 22050, merged.SampleRate)
	assert.Equal(t, "pcm_s16le", merged.SampleFormat)
	assert.Equal(t, "24k", merged.Bitrate)
	assert.Equal(t, 1, merged.Channels)
	assert.InDelta(t, 1.5, merged.Volume, 0.0001)
}

func TestMerge_EmptyOverridesKeepDefaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, audio.DefaultEncodeOptions(), audio.Merge(audio.DefaultEncodeOptions(), audio.Overrides{}))
}

func TestEncodeOptions_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(options *audio.EncodeOptions)
		isValid bool
	}{
		{name: "defaults", mutate: func(*audio.EncodeOptions) {}, isValid: true},
		{name: "zero volume", mutate: func(o *audio.EncodeOptions) { o.Volume = 0 }, isValid: true},
		{name: "zero sample rate", mutate: func(o *audio.EncodeOptions) { o.SampleRate = 0 }},
		{name: "sample rate too high", mutate: func(o *audio.EncodeOptions) { o.SampleRate = 500000 }},
		{name: "no channels", mutate: func(o *audio.EncodeOptions) { o.Channels = 0 }},
		{name: "negative volume", mutate: func(o *audio.EncodeOptions) { o.Volume = -1 }},
		{name: "empty bitrate", mutate: func(o *audio.EncodeOptions) { o.Bitrate = "" }},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			options := audio.DefaultEncodeOptions()
			testCase.mutate(&options)

			err := options.Validate()
			if testCase.isValid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, audio.ErrInvalidOptions)
			}
		})
	}
}

func TestTask_ValidateUncompressedWithSampleFormat(t *testing.T) {
	t.Parallel()

	options := audio.DefaultEncodeOptions()
	options.SampleFormat = "pcm_s16le"

	task := audio.Task{Options: options, InputPath: "/in/a.wav", OutputPath: "/out/b.AIFF"}
	require.NoError(t, task.Validate())
}

func TestProbeVerifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		report  string
		err     error
		isValid bool
	}{
		{name: "positive duration", report: `{"format": {"duration": "1.250000"}}`, isValid: true},
		{name: "zero duration", report: `{"format": {"duration": "0.000000"}}`},
		{name: "missing duration", report: `{"format": {}}`},
		{name: "not json", report: `not json`},
		{name: "probe failure", err: errors.New("ffprobe: no such file")},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			verifier := audio.NewProbeVerifier(createTestLogger(t), func(context.Context, string) (string, error) {
				return testCase.report, testCase.err
			})

			err := verifier.Verify(context.Background(), "/out/b.mp3")
			if testCase.isValid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, audio.ErrOutputInvalid)
			}
		})
	}
}
