package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/seta-tts/internal/core"
	"github.com/book-expert/seta-tts/internal/tts/ttsutils"
)

// Discard modes accepted by NewDiscarder.
const (
	DiscardRemove = "remove"
	DiscardTrash  = "trash"
)

const (
	trashDirName    = ".trash"
	trashTimeLayout = "20060102T150405.000000000"

	errFmtRemove      = "failed to remove %s: %w"
	errFmtTrash       = "failed to move %s to trash: %w"
	errFmtDiscardMode = "%w: %q"
)

// ErrUnknownDiscardMode indicates a discard mode other than remove or trash.
var ErrUnknownDiscardMode = errors.New("unknown discard mode")

// RemoveDiscarder deletes entries permanently.
type RemoveDiscarder struct{}

// Discard removes path and anything below it.
func (RemoveDiscarder) Discard(path string) error {
	err := os.RemoveAll(path)
	if err != nil {
		return fmt.Errorf(errFmtRemove, path, err)
	}

	return nil
}

// TrashDiscarder moves entries into a trash directory so they can be recovered.
type TrashDiscarder struct {
	dir string
	now func() time.Time
}

// NewTrashDiscarder creates a discarder that moves entries into dir.
func NewTrashDiscarder(dir string) *TrashDiscarder {
	return &TrashDiscarder{dir: dir, now: time.Now}
}

// Dir returns the trash directory.
func (d *TrashDiscarder) Dir() string {
	return d.dir
}

// Discard moves path to <dir>/<timestamp>-<name>.
func (d *TrashDiscarder) Discard(path string) error {
	err := ttsutils.EnsureDir(d.dir)
	if err != nil {
		return fmt.Errorf(errFmtTrash, path, err)
	}

	target := filepath.Join(d.dir, d.now().Format(trashTimeLayout)+"-"+filepath.Base(path))

	err = os.Rename(path, target)
	if err != nil {
		return fmt.Errorf(errFmtTrash, path, err)
	}

	return nil
}

// NewDiscarder returns the discarder for mode. Trash entries go under
// <baseDir>/.trash.
func NewDiscarder(mode, baseDir string) (core.Discarder, error) {
	switch mode {
	case "", DiscardRemove:
		return RemoveDiscarder{}, nil
	case DiscardTrash:
		return NewTrashDiscarder(filepath.Join(baseDir, trashDirName)), nil
	default:
		return nil, fmt.Errorf(errFmtDiscardMode, ErrUnknownDiscardMode, mode)
	}
}
