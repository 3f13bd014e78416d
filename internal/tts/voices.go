package tts

import (
	"context"
	"fmt"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/seta-tts/internal/core"
)

// Voice check messages.
const (
	MsgAllVoicesInstalled  = "all expected voices are installed"
	MsgSomeVoicesInstalled = "some expected voices are not installed"
	MsgNoVoicesInstalled   = "no expected voices are installed"
)

const (
	labelVoices        = "voices"
	categorySuffix     = ":"
	errFmtListVoices   = "failed to list voices: %w"
	logFmtVoicesListed = "Found %d voices in %d categories"
)

// DefaultExpectedVoices returns the voices a standard installation provides.
func DefaultExpectedVoices() []string {
	return []string{"Loquendo Roberto", "Loquendo Paola"}
}

// Catalog is the installed voices grouped by engine category.
type Catalog struct {
	Categories map[string][]string
	// Order lists categories as the synthesizer printed them.
	Order []string
}

// VoiceStatus is the outcome of comparing the catalog to the expected voices.
type VoiceStatus struct {
	Expected  []string
	Installed []string
	Missing   []string
	HasVoices bool
	Complete  bool
	Message   string
}

// ParseVoiceList reads the synthesizer's two-level listing. A line without
// leading whitespace opens a category; indented lines are voices in it.
func ParseVoiceList(lines []string) Catalog {
	catalog := Catalog{Categories: make(map[string][]string)}
	current := ""

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			current = strings.TrimSpace(strings.TrimSuffix(trimmed, categorySuffix))
			if _, seen := catalog.Categories[current]; !seen {
				catalog.Categories[current] = nil
				catalog.Order = append(catalog.Order, current)
			}

			continue
		}

		if current == "" {
			continue
		}

		catalog.Categories[current] = append(catalog.Categories[current], trimmed)
	}

	return catalog
}

// All returns every voice, in category order.
func (c Catalog) All() []string {
	var voices []string

	for _, category := range c.Order {
		voices = append(voices, c.Categories[category]...)
	}

	return voices
}

// Check reports which of expected are installed.
func (c Catalog) Check(expected []string) VoiceStatus {
	installed := make(map[string]struct{})
	for _, voice := range c.All() {
		installed[voice] = struct{}{}
	}

	status := VoiceStatus{Expected: expected}

	for _, voice := range expected {
		if _, ok := installed[voice]; ok {
			status.Installed = append(status.Installed, voice)
		} else {
			status.Missing = append(status.Missing, voice)
		}
	}

	status.HasVoices = len(status.Installed) > 0
	status.Complete = len(status.Missing) == 0

	switch {
	case status.Complete:
		status.Message = MsgAllVoicesInstalled
	case status.HasVoices:
		status.Message = MsgSomeVoicesInstalled
	default:
		status.Message = MsgNoVoicesInstalled
	}

	return status
}

// Voices queries the synthesizer for its installed voices.
type Voices struct {
	binaryPath string
	runner     core.Runner
	log        *logger.Logger
}

// NewVoices creates a Voices for the binary at binaryPath.
func NewVoices(binaryPath string, runner core.Runner, log *logger.Logger) *Voices {
	return &Voices{binaryPath: binaryPath, runner: runner, log: log}
}

// List runs the synthesizer's listing command and parses its output.
func (v *Voices) List(ctx context.Context) (Catalog, error) {
	result, err := v.runner.Run(ctx, core.Command{
		Path:  v.binaryPath,
		Args:  []string{flagList},
		Label: labelVoices,
	})
	if err != nil {
		return Catalog{}, fmt.Errorf(errFmtListVoices, err)
	}

	catalog := ParseVoiceList(result.Stdout)
	v.log.Info(logFmtVoicesListed, len(catalog.All()), len(catalog.Order))

	return catalog, nil
}
