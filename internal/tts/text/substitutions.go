// Package text provides the pronunciation substitution engine used to build
// per-row utterances and file names.
//
// The engine binds `{column}` placeholders against a row and then rewrites
// abbreviations from an ordered pronunciation table into their spoken form.
package text

import (
	"regexp"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/seta-tts/internal/core"
)

// MaxExpansionPasses bounds abbreviation expansion so that an expansion which
// re-introduces an abbreviation cannot loop forever.
const MaxExpansionPasses = 20

const (
	placeholderRegexPattern = `\{(.*?)\}`
	tokenSeparator          = " "
	logFmtFormatString      = "formatString %q -> %q"
)

// MatchMode selects how a table abbreviation is matched against a token.
type MatchMode string

const (
	// MatchSubstring matches an abbreviation anywhere inside a token ("a" matches "cat").
	MatchSubstring MatchMode = "substring"
	// MatchToken matches an abbreviation only when it equals the whole token.
	MatchToken MatchMode = "token"
)

// Engine applies templates and pronunciation fixes. It is immutable and safe
// for concurrent use.
type Engine struct {
	placeholderPattern *regexp.Regexp
	log                *logger.Logger
	mode               MatchMode
	table              Table
}

// Option configures an Engine.
type Option func(*Engine)

// WithMatchMode selects substring or whole-token matching.
func WithMatchMode(mode MatchMode) Option {
	return func(e *Engine) {
		if mode == MatchToken {
			e.mode = MatchToken
		} else {
			e.mode = MatchSubstring
		}
	}
}

// WithLogger logs every formatted string.
func WithLogger(log *logger.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// NewEngine creates an engine over table. A nil or empty table makes
// ExpandAbbreviations the identity.
func NewEngine(table Table, opts ...Option) *Engine {
	engine := &Engine{
		placeholderPattern: regexp.MustCompile(placeholderRegexPattern),
		mode:               MatchSubstring,
		table:              append(Table(nil), table...),
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// Mode returns the match mode in use.
func (e *Engine) Mode() MatchMode {
	return e.mode
}

// FormatString binds template against row and expands abbreviations over the
// whole result. It is the single entry point for utterances and file names.
func (e *Engine) FormatString(template string, row core.Row) string {
	result := e.ExpandAbbreviations(e.BindTemplate(template, row))

	if e.log != nil {
		e.log.Info(logFmtFormatString, template, result)
	}

	return result
}

// BindTemplate replaces every `{column}` placeholder whose trimmed name exists
// in row with the row value. Other placeholders are left verbatim.
func (e *Engine) BindTemplate(template string, row core.Row) string {
	if len(row) == 0 {
		return template
	}

	return e.placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.TrimSpace(match[1 : len(match)-1])

		value, found := row[name]
		if !found {
			return match
		}

		return value
	})
}

// ExpandAbbreviations rewrites abbreviations found inside space-separated
// tokens. Each pass applies only the first table entry that matches any token,
// replacing its first occurrence in every matching token. Passes repeat until
// nothing matches or MaxExpansionPasses is reached. Text with no match is
// returned unchanged.
func (e *Engine) ExpandAbbreviations(text string) string {
	for range MaxExpansionPasses {
		tokens := strings.Split(strings.TrimSpace(text), tokenSeparator)

		entry, found := e.firstMatch(tokens)
		if !found {
			break
		}

		for i, token := range tokens {
			trimmed := strings.TrimSpace(token)
			if e.matches(trimmed, entry.Abbreviation) {
				tokens[i] = strings.Replace(trimmed, entry.Abbreviation, entry.Expansion, 1)
			}
		}

		text = strings.Join(tokens, tokenSeparator)
	}

	return text
}

func (e *Engine) firstMatch(tokens []string) (Entry, bool) {
	for _, entry := range e.table {
		for _, token := range tokens {
			if e.matches(strings.TrimSpace(token), entry.Abbreviation) {
				return entry, true
			}
		}
	}

	return Entry{}, false
}

func (e *Engine) matches(token, abbreviation string) bool {
	if abbreviation == "" {
		return false
	}

	if e.mode == MatchToken {
		return token == abbreviation
	}

	return strings.Contains(token, abbreviation)
}
