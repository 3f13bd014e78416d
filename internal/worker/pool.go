package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/seta-tts/internal/tts"
	"github.com/book-expert/seta-tts/internal/tts/audio"
)

// ErrMalformedJob indicates a job that carries no payload or both payloads.
var ErrMalformedJob = errors.New("job must carry exactly one synthesis or encoding task")

const (
	errFmtMalformedJob = "%w: job %d (%s)"
	logFmtPoolStart    = "Dispatching %d jobs to %d workers"
	logFmtJobFailed    = "Job %d (%s) failed: %v"
)

// Synthesizer runs one synthesis task.
type Synthesizer interface {
	Synthesize(ctx context.Context, task tts.Task) (string, error)
}

// Encoder runs one encoding task.
type Encoder interface {
	Encode(ctx context.Context, task audio.Task) (string, error)
}

// Job is one unit of pool work. Exactly one of Synthesis and Encoding is set.
type Job struct {
	Index     int
	Label     string
	Synthesis *tts.Task
	Encoding  *audio.Task
}

// Result is the outcome of one job.
type Result struct {
	Index  int
	Label  string
	Output string
	Err    error
}

// Pool runs jobs on a bounded set of goroutines.
type Pool struct {
	size  int
	synth Synthesizer
	enc   Encoder
	log   *logger.Logger
}

// NewPool creates a pool of size workers. A size of zero or less uses one
// worker per CPU.
func NewPool(size int, synth Synthesizer, enc Encoder, log *logger.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}

	return &Pool{size: size, synth: synth, enc: enc, log: log}
}

// Size returns the maximum number of jobs in flight.
func (p *Pool) Size() int {
	return p.size
}

// Run executes jobs and returns their results in completion order. onResult,
// when set, is called for each result as it arrives, always from the calling
// goroutine. Jobs still queued once ctx is done resolve with ctx.Err().
func (p *Pool) Run(ctx context.Context, jobs []Job, onResult func(Result)) []Result {
	if len(jobs) == 0 {
		return nil
	}

	workers := min(p.size, len(jobs))
	p.log.Info(logFmtPoolStart, len(jobs), workers)

	queue := make(chan Job, len(jobs))
	for _, job := range jobs {
		queue <- job
	}

	close(queue)

	results := make(chan Result, len(jobs))

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for job := range queue {
				results <- p.execute(ctx, job)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]Result, 0, len(jobs))

	for result := range results {
		if result.Err != nil {
			p.log.Error(logFmtJobFailed, result.Index, result.Label, result.Err)
		}

		if onResult != nil {
			onResult(result)
		}

		collected = append(collected, result)
	}

	return collected
}

// Execute runs a single job on the calling goroutine.
func (p *Pool) Execute(ctx context.Context, job Job) Result {
	return p.execute(ctx, job)
}

func (p *Pool) execute(ctx context.Context, job Job) Result {
	result := Result{Index: job.Index, Label: job.Label}

	ctxErr := ctx.Err()
	if ctxErr != nil {
		result.Err = ctxErr

		return result
	}

	switch {
	case job.Synthesis != nil && job.Encoding == nil && p.synth != nil:
		result.Output, result.Err = p.synth.Synthesize(ctx, *job.Synthesis)
	case job.Encoding != nil && job.Synthesis == nil && p.enc != nil:
		result.Output, result.Err = p.enc.Encode(ctx, *job.Encoding)
	default:
		result.Err = fmt.Errorf(errFmtMalformedJob, ErrMalformedJob, job.Index, job.Label)
	}

	return result
}
