// Package ttsutils provides file and path utility functions for the batch pipeline.
//
// This package focuses on platform-agnostic ways to handle output names,
// extensions and directories, adhering to Go's best practices for clarity,
// error handling, and maintainability.
package ttsutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Common path constants.
const (
	defaultDirPermissions  = 0o750
	dot                    = "."
	invalidCharReplacement = "_"
)

// Time formatting constants.
const (
	secondsInMinute = 60
	secondsInHour   = 3600
	formatSeconds   = "%.1fs"
	formatMinutes   = "%dm %.1fs"
	formatHours     = "%dh %dm"
)

// File extension constants.
const (
	extAAC  = ".aac"
	extAIF  = ".aif"
	extAIFF = ".aiff"
	extFLAC = ".flac"
	extM4A  = ".m4a"
	extMP3  = ".mp3"
	extOGG  = ".ogg"
	extOPUS = ".opus"
	extWAV  = ".wav"
)

// Error message and format string constants.
const (
	errFmtFailedToCreateDir = "failed to create directory %s: %w"
	errFmtFailedToStatDir   = "failed to stat directory %s: %w"
)

// EnsureDir ensures a directory exists at the given path, creating it if it doesn't.
func EnsureDir(path string) error {
	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		// MkdirAll is used to create parent directories as needed.
		mkdirErr := os.MkdirAll(path, defaultDirPermissions)
		if mkdirErr != nil {
			return fmt.Errorf(errFmtFailedToCreateDir, path, mkdirErr)
		}

		return nil
	}

	if statErr != nil {
		return fmt.Errorf(errFmtFailedToStatDir, path, statErr)
	}

	return nil
}

// WithFormat appends ".<format>" to name unless name already ends with it.
func WithFormat(name, format string) string {
	format = strings.TrimPrefix(format, dot)
	if format == "" || strings.HasSuffix(name, dot+format) {
		return name
	}

	return name + dot + format
}

// NormalizeDestination strips the extension of path and re-applies it, so the
// container format is always the one the caller put on the output path.
func NormalizeDestination(path string) string {
	ext := filepath.Ext(path)

	return strings.TrimSuffix(path, ext) + ext
}

// ReplaceExtension swaps the extension of path for format. An empty format
// leaves path unchanged.
func ReplaceExtension(path, format string) string {
	format = strings.TrimPrefix(format, dot)
	if format == "" {
		return path
	}

	return strings.TrimSuffix(path, filepath.Ext(path)) + dot + format
}

// IsUncompressedAudio reports whether path names an uncompressed (wav-class)
// container, which needs an explicit sample-format codec.
func IsUncompressedAudio(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case extWAV, extAIF, extAIFF:
		return true
	default:
		return false
	}
}

// FormatDuration formats a duration in a human-readable string (e.g., "1h 15m", "5m
// 30.5s", "45.2s").
func FormatDuration(seconds float64) string {
	if seconds < secondsInMinute {
		return fmt.Sprintf(formatSeconds, seconds)
	}

	if seconds < secondsInHour {
		minutes := int(seconds / secondsInMinute)
		remainingSeconds := seconds - float64(minutes*secondsInMinute)

		return fmt.Sprintf(formatMinutes, minutes, remainingSeconds)
	}

	hours := int(seconds / secondsInHour)
	remainingSeconds := seconds - float64(hours*secondsInHour)
	remainingMinutes := int(remainingSeconds / secondsInMinute)

	return fmt.Sprintf(formatHours, hours, remainingMinutes)
}

// IsValidAudioFile checks if a filename has a common audio file extension.
func IsValidAudioFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case extWAV, extMP3, extFLAC, extOGG, extM4A, extAAC, extOPUS, extAIF, extAIFF:
		return true
	default:
		return false
	}
}

// SanitizeFilename removes or replaces characters that are invalid in most filesystems.
func SanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"<", invalidCharReplacement,
		">", invalidCharReplacement,
		":", invalidCharReplacement,
		"\"", invalidCharReplacement,
		"/", invalidCharReplacement,
		"\\", invalidCharReplacement,
		"|", invalidCharReplacement,
		"?", invalidCharReplacement,
		"*", invalidCharReplacement,
	)

	return replacer.Replace(filename)
}
