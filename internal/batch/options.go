package batch

import (
	"errors"
	"fmt"

	"github.com/book-expert/seta-tts/internal/tts/audio"
)

// Mode selects how a stage runs its tasks.
type Mode string

const (
	// ModeSequential runs one task at a time in source order.
	ModeSequential Mode = "sequential"
	// ModePooled submits every task to the worker pool at once.
	ModePooled Mode = "pooled"
)

// SpawnPolicy decides what a spawn failure does to the stage.
type SpawnPolicy string

const (
	// SpawnFatal stops the stage and the run.
	SpawnFatal SpawnPolicy = "fatal"
	// SpawnTaskFailure counts the spawn failure as one failed task.
	SpawnTaskFailure SpawnPolicy = "task"
)

// ErrInvalidOptions indicates an unknown mode or policy.
var ErrInvalidOptions = errors.New("invalid batch options")

const (
	errFmtMode        = "%w: mode %q"
	errFmtSpawnPolicy = "%w: spawn policy %q"
)

// ModeFor returns ModePooled when pooled is true.
func ModeFor(pooled bool) Mode {
	if pooled {
		return ModePooled
	}

	return ModeSequential
}

// Options configures a Pipeline.
type Options struct {
	SynthesisMode  Mode
	EncodingMode   Mode
	PoolSize       int
	OnSpawnFailure SpawnPolicy
	Voice          string
	Format         string
	// EncodeOptions apply to every encoded file; the zero value selects
	// audio.DefaultEncodeOptions.
	EncodeOptions audio.EncodeOptions
	// OutputFormat replaces the extension of encoded files when set.
	OutputFormat string
	CleanupAfter bool
}

// Validate fills empty modes and policy with their defaults and rejects
// unknown values.
func (o *Options) Validate() error {
	if o.SynthesisMode == "" {
		o.SynthesisMode = ModeSequential
	}

	if o.EncodingMode == "" {
		o.EncodingMode = ModeSequential
	}

	if o.OnSpawnFailure == "" {
		o.OnSpawnFailure = SpawnFatal
	}

	if o.EncodeOptions == (audio.EncodeOptions{}) {
		o.EncodeOptions = audio.DefaultEncodeOptions()
	}

	for _, mode := range []Mode{o.SynthesisMode, o.EncodingMode} {
		if mode != ModeSequential && mode != ModePooled {
			return fmt.Errorf(errFmtMode, ErrInvalidOptions, mode)
		}
	}

	if o.OnSpawnFailure != SpawnFatal && o.OnSpawnFailure != SpawnTaskFailure {
		return fmt.Errorf(errFmtSpawnPolicy, ErrInvalidOptions, o.OnSpawnFailure)
	}

	return nil
}
