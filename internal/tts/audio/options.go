// Package audio re-encodes synthesized speech with the external transcoder.
//
// EncodeOptions carries the quality settings handed to the transcoder; Task
// binds them to one input and one output file; Encoder runs it.
package audio

import (
	"errors"
	"fmt"

	"github.com/book-expert/seta-tts/internal/tts/ttsutils"
)

// Default encode settings: telephone-grade mono speech, slightly amplified.
const (
	DefaultBitrate    = "24k"
	DefaultSampleRate = 11025
	DefaultChannels   = 1
	DefaultVolume     = 1.5
)

// Quality validation limits.
const (
	MaxSampleRate = 192000
	MaxChannels   = 8
	MaxVolume     = 10.0
)

const (
	errFmtSampleRateRange = "%w: sample rate must be between 1 and %d Hz"
	errFmtChannelsRange   = "%w: channels must be between 1 and %d"
	errFmtVolumeRange     = "%w: volume must be between 0.0 and %.1f"
	errFmtBitrateEmpty    = "%w: bitrate cannot be empty"
	errFmtMissingField    = "%w: %s is required"
	errFmtSampleFormat    = "%w: %s"
)

var (
	// ErrInvalidOptions indicates encode options outside their valid range.
	ErrInvalidOptions = errors.New("invalid encode options")
	// ErrMalformedTask indicates an encoding task with a missing field.
	ErrMalformedTask = errors.New("malformed encoding task")
	// ErrSampleFormatRequired indicates an uncompressed destination without a
	// sample format codec.
	ErrSampleFormatRequired = errors.New("sample format is required for uncompressed output")
)

// EncodeOptions are the transcoder settings applied to every encoded file.
type EncodeOptions struct {
	Bitrate    string  `json:"bitrate"`
	SampleRate int     `json:"sampleRate"`
	Channels   int     `json:"channels"`
	Volume     float64 `json:"volume"`
	// SampleFormat is the codec for uncompressed containers, e.g. "pcm_s16le".
	SampleFormat string `json:"sampleFormat,omitempty"`
}

// DefaultEncodeOptions returns the default settings.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		Bitrate:    DefaultBitrate,
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		Volume:     DefaultVolume,
	}
}

// Overrides holds caller-supplied settings; nil fields keep the default.
type Overrides struct {
	Bitrate      *string
	SampleRate   *int
	Channels     *int
	Volume       *float64
	SampleFormat *string
}

// Merge applies overrides on top of defaults, key by key.
func Merge(defaults EncodeOptions, overrides Overrides) EncodeOptions {
	merged := defaults

	if overrides.Bitrate != nil {
		merged.Bitrate = *overrides.Bitrate
	}

	if overrides.SampleRate != nil {
		merged.SampleRate = *overrides.SampleRate
	}

	if overrides.Channels != nil {
		merged.Channels = *overrides.Channels
	}

	if overrides.Volume != nil {
		merged.Volume = *overrides.Volume
	}

	if overrides.SampleFormat != nil {
		merged.SampleFormat = *overrides.SampleFormat
	}

	return merged
}

// Validate checks that the settings are within reasonable bounds.
func (o EncodeOptions) Validate() error {
	if o.SampleRate <= 0 || o.SampleRate > MaxSampleRate {
		return fmt.Errorf(errFmtSampleRateRange, ErrInvalidOptions, MaxSampleRate)
	}

	if o.Channels <= 0 || o.Channels > MaxChannels {
		return fmt.Errorf(errFmtChannelsRange, ErrInvalidOptions, MaxChannels)
	}

	if o.Volume < 0.0 || o.Volume > MaxVolume {
		return fmt.Errorf(errFmtVolumeRange, ErrInvalidOptions, MaxVolume)
	}

	if o.Bitrate == "" {
		return fmt.Errorf(errFmtBitrateEmpty, ErrInvalidOptions)
	}

	return nil
}

// Task is one encoding request.
type Task struct {
	Options    EncodeOptions `json:"options"`
	InputPath  string        `json:"inputPath"`
	OutputPath string        `json:"outputPath"`
}

// Validate ensures both paths are present and the options fit the container.
func (t Task) Validate() error {
	if t.InputPath == "" {
		return fmt.Errorf(errFmtMissingField, ErrMalformedTask, "input path")
	}

	if t.OutputPath == "" {
		return fmt.Errorf(errFmtMissingField, ErrMalformedTask, "output path")
	}

	if ttsutils.IsUncompressedAudio(t.OutputPath) && t.Options.SampleFormat == "" {
		return fmt.Errorf(errFmtSampleFormat, ErrSampleFormatRequired, t.OutputPath)
	}

	return t.Options.Validate()
}
