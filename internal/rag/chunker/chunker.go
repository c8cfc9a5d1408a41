// Package chunker splits compositions into embedding-sized pieces
// for the RAG (Retrieval-Augmented Generation) index.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/folio-writing/folio/pkg/models"
)

// paragraphSeparator joins packed paragraphs; its length counts against the budget.
const paragraphSeparator = "\n\n"

// PoetryGenre is never split: line structure carries meaning.
const PoetryGenre = "poetry"

var blankLines = regexp.MustCompile(`\n\s*\n+`)

// Config contains the packing thresholds, in characters.
type Config struct {
	// TargetChars is the soft budget. A chunk that reaches it is closed.
	// Default: 3500
	TargetChars int `yaml:"target_chars"`

	// MaxChars is the hard budget. Appending past it starts a new chunk.
	// Default: 4500
	MaxChars int `yaml:"max_chars"`
}

// DefaultConfig returns the general-purpose thresholds.
func DefaultConfig() Config {
	return Config{
		TargetChars: 3500,
		MaxChars:    4500,
	}
}

// IndexingConfig returns the thresholds used when building the search index.
// Dialogue-heavy prose has short paragraphs; the wider window keeps chunks from getting tiny.
func IndexingConfig() Config {
	return Config{
		TargetChars: 3200,
		MaxChars:    4800,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TargetChars <= 0 {
		c.TargetChars = def.TargetChars
	}
	if c.MaxChars <= 0 {
		c.MaxChars = def.MaxChars
	}
	return c
}

// Chunker turns compositions into chunk texts.
type Chunker struct {
	config Config
}

// New creates a chunker. Zero thresholds fall back to DefaultConfig.
func New(cfg Config) *Chunker {
	return &Chunker{config: cfg.withDefaults()}
}

// Config returns the effective thresholds.
func (c *Chunker) Config() Config {
	return c.config
}

// Chunk splits a composition. The result is empty only when the content is blank.
func (c *Chunker) Chunk(comp models.Composition) []string {
	content := normalize(comp.Content)
	if content == "" {
		return nil
	}
	if IsPoetry(comp.Genre) {
		return []string{content}
	}

	paragraphs := SplitParagraphs(content)
	if len(paragraphs) <= 1 {
		return []string{content}
	}
	return PackParagraphs(paragraphs, c.config)
}

// IsPoetry reports whether genre names the poetry category.
func IsPoetry(genre string) bool {
	return strings.EqualFold(strings.TrimSpace(genre), PoetryGenre)
}

// SplitParagraphs splits text on one or more blank lines.
// Paragraphs are trimmed and empty ones dropped.
func SplitParagraphs(text string) []string {
	normalized := normalize(text)
	if normalized == "" {
		return nil
	}
	parts := blankLines.Split(normalized, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// PackParagraphs greedily groups paragraphs into chunks.
//
// A paragraph is appended while the chunk stays within TargetChars. If it only fits
// under MaxChars it is appended and the chunk is closed. Otherwise the pending chunk
// is flushed and the paragraph starts a new one. A paragraph longer than MaxChars on
// its own is split on line boundaries; a single line longer than MaxChars is kept whole.
func PackParagraphs(paragraphs []string, cfg Config) []string {
	cfg = cfg.withDefaults()

	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		if text := strings.TrimSpace(strings.Join(current, paragraphSeparator)); text != "" {
			chunks = append(chunks, text)
		}
		current = current[:0]
		currentLen = 0
	}

	for _, para := range paragraphs {
		p := strings.TrimSpace(para)
		if p == "" {
			continue
		}
		pLen := charLen(p)

		if pLen > cfg.MaxChars {
			flush()
			chunks = append(chunks, splitLines(p, cfg.MaxChars)...)
			continue
		}

		sep := 0
		if len(current) > 0 {
			sep = charLen(paragraphSeparator)
		}
		nextLen := currentLen + sep + pLen

		if nextLen <= cfg.TargetChars {
			current = append(current, p)
			currentLen = nextLen
			continue
		}

		if nextLen <= cfg.MaxChars {
			current = append(current, p)
			currentLen = nextLen
			flush()
			continue
		}

		flush()
		current = append(current, p)
		currentLen = pLen
	}

	flush()
	return chunks
}

// splitLines packs the non-empty lines of an oversized paragraph into sub-chunks.
func splitLines(paragraph string, maxChars int) []string {
	var out []string
	var buf string
	for _, line := range strings.Split(paragraph, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		next := line
		if buf != "" {
			next = buf + "\n" + line
		}
		if charLen(next) > maxChars {
			if buf != "" {
				out = append(out, buf)
			}
			buf = line
			continue
		}
		buf = next
	}
	if buf != "" {
		out = append(out, buf)
	}
	return out
}

func normalize(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
}

func charLen(s string) int {
	return utf8.RuneCountInString(s)
}
