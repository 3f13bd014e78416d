// Package core defines the shared records and ports of the batch speech pipeline.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSpawn indicates that an external process could not be started at all.
	ErrSpawn = errors.New("failed to spawn external process")
	// ErrEmptyColumn indicates a row column whose trimmed name is empty.
	ErrEmptyColumn = errors.New("column name cannot be empty")
)

// Row maps a trimmed column name to its cell value.
type Row map[string]string

// NewRow copies values into a Row, trimming every column name.
func NewRow(values map[string]string) (Row, error) {
	row := make(Row, len(values))

	for key, value := range values {
		name := strings.TrimSpace(key)
		if name == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptyColumn, key)
		}

		row[name] = value
	}

	return row, nil
}

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// Command describes one external process invocation.
type Command struct {
	Path string
	Args []string
	// Label names the invocation in diagnostic output.
	Label string
}

// RunResult holds what a finished process produced. Output lines are kept raw.
type RunResult struct {
	Stdout   []string
	Stderr   []string
	ExitCode int
}

// Runner starts an external process and waits for it to exit.
// Any exit code is a finished attempt; only a failure to start returns ErrSpawn.
type Runner interface {
	Run(ctx context.Context, cmd Command) (RunResult, error)
}

// Discarder removes a previously produced file or directory entry.
type Discarder interface {
	Discard(path string) error
}
