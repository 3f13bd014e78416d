// Package staging manages the working directories of a batch run: the staging
// directory synthesized files land in and the output directory encoded files
// are written to.
package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/book-expert/logger"
	"github.com/book-expert/seta-tts/internal/core"
	"github.com/book-expert/seta-tts/internal/tts/ttsutils"
)

// Default directory names.
const (
	DefaultBaseName    = "seta-tts"
	DefaultStagingName = "output.tmp"
	DefaultOutputName  = "output"
)

const (
	errFmtPrepare         = "failed to prepare %s directory: %w"
	errFmtReadDir         = "failed to read directory %s: %w"
	errFmtDiscardEntry    = "failed to discard %s: %w"
	logFmtMissingStaging  = "Staging directory %s does not exist, nothing to clear"
	logFmtDiscardedEntry  = "Discarded %s"
	logFmtPreparedFolders = "Prepared staging %s and output %s"
)

// Dirs holds the resolved staging (input of the encoding stage) and output paths.
type Dirs struct {
	Input  string
	Output string
}

// Manager resolves and maintains the run directories.
type Manager struct {
	dirs      Dirs
	base      string
	discarder core.Discarder
	log       *logger.Logger
}

// New creates a Manager rooted at baseDir. Empty arguments fall back to the
// defaults under the system temporary directory.
func New(baseDir, stagingName, outputName string, discarder core.Discarder, log *logger.Logger) *Manager {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), DefaultBaseName)
	}

	if stagingName == "" {
		stagingName = DefaultStagingName
	}

	if outputName == "" {
		outputName = DefaultOutputName
	}

	return &Manager{
		dirs: Dirs{
			Input:  filepath.Join(baseDir, stagingName),
			Output: filepath.Join(baseDir, outputName),
		},
		base:      baseDir,
		discarder: discarder,
		log:       log,
	}
}

// Dirs returns the resolved directories without touching the filesystem.
func (m *Manager) Dirs() Dirs {
	return m.dirs
}

// Base returns the base working directory.
func (m *Manager) Base() string {
	return m.base
}

// PrepareDirectories creates both directories if needed. It is idempotent.
func (m *Manager) PrepareDirectories() (Dirs, error) {
	err := ttsutils.EnsureDir(m.dirs.Input)
	if err != nil {
		return Dirs{}, fmt.Errorf(errFmtPrepare, "staging", err)
	}

	err = ttsutils.EnsureDir(m.dirs.Output)
	if err != nil {
		return Dirs{}, fmt.Errorf(errFmtPrepare, "output", err)
	}

	m.log.Info(logFmtPreparedFolders, m.dirs.Input, m.dirs.Output)

	return m.dirs, nil
}

// ClearStagingDirectory discards every direct entry of path, calling onEntry
// with each entry name first. A missing directory is not an error.
func (m *Manager) ClearStagingDirectory(path string, onEntry func(name string)) error {
	entries, err := os.ReadDir(path)
	if errors.Is(err, os.ErrNotExist) {
		m.log.Info(logFmtMissingStaging, path)

		return nil
	}

	if err != nil {
		return fmt.Errorf(errFmtReadDir, path, err)
	}

	for _, entry := range entries {
		if onEntry != nil {
			onEntry(entry.Name())
		}

		entryPath := filepath.Join(path, entry.Name())

		discardErr := m.discarder.Discard(entryPath)
		if discardErr != nil {
			return fmt.Errorf(errFmtDiscardEntry, entryPath, discardErr)
		}

		m.log.Info(logFmtDiscardedEntry, entryPath)
	}

	return nil
}

// ListInputs returns the names of the regular files directly inside path,
// sorted by name.
func (m *Manager) ListInputs(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf(errFmtReadDir, path, err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}
