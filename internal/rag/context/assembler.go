// Package context assembles the retrieval context and system instruction for
// chat turns from the chunk index.
package context

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/folio-writing/folio/internal/embeddings"
	"github.com/folio-writing/folio/internal/observability"
	"github.com/folio-writing/folio/internal/rag/store"
	"github.com/folio-writing/folio/internal/rag/vector"
	"github.com/folio-writing/folio/pkg/models"
)

const (
	// GlobalTopK is the number of diversified chunks kept from the global search.
	GlobalTopK = 10

	// GlobalCandidateK is the number of nearest chunks fetched before diversifying.
	GlobalCandidateK = 30

	// MaxChunksPerOtherDocument caps how many global chunks one composition may contribute.
	MaxChunksPerOtherDocument = 3
)

// ContextDelimiter separates the instructions from the retrieved context.
const ContextDelimiter = "--- CONTEXT ---"

// NoContextSentinel replaces the context section when nothing was retrieved.
const NoContextSentinel = "(No relevant excerpts were found for this question. Answer from general knowledge of the site and say so if unsure.)"

// ListAllReply answers catalogue requests without retrieval or completion.
const ListAllReply = "Ah, the full catalogue! Boss Kevin's compositions are all laid out in the navigation bar, sorted by genre. Pick one and ask me anything about it!"

// DefaultPersona is the assistant role used when none is configured.
const DefaultPersona = `Role: You are Terrence Pincher XIV, a giant space crab and assistant to Boss Kevin.
- Always call Kevin "Boss Kevin."
- Keep every response between 1 and 3 sentences.
- Speak warmly and sincerely about Boss Kevin's writing.
- You are a whimsical, easily distracted apprentice; wander off on a short tangent now and then, then apologize and answer the question.
- Only give positive or neutral opinions about Boss Kevin's work.
- Your main goal is to make the user smile. Being helpful comes second, but always give a simple answer.`

const contextPreamble = `Below are excerpts from Boss Kevin's compositions retrieved for this question. Each block is [genre] "title" (id, chunk) followed by the excerpt text. Use them to answer questions.`

// Retriever is the chunk and composition lookup the assembler needs.
type Retriever interface {
	store.ChunkReader

	// GetComposition names the current composition when it has no chunks yet.
	GetComposition(ctx context.Context, id string) (*models.Composition, error)
}

// Config configures the Assembler.
type Config struct {
	// Persona is the role prompt placed first in every system instruction.
	// Default: DefaultPersona
	Persona string `yaml:"persona"`

	// GlobalTopK, GlobalCandidateK and MaxPerOtherDocument override the package constants.
	GlobalTopK          int `yaml:"global_top_k"`
	GlobalCandidateK    int `yaml:"global_candidate_k"`
	MaxPerOtherDocument int `yaml:"max_per_other_document"`

	// Dimension is the requested query embedding size. Default: 768.
	Dimension int `yaml:"dimension"`

	Logger  *slog.Logger           `yaml:"-"`
	Metrics *observability.Metrics `yaml:"-"`
	Tracer  *observability.Tracer  `yaml:"-"`
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Persona) == "" {
		c.Persona = DefaultPersona
	}
	if c.GlobalTopK <= 0 {
		c.GlobalTopK = GlobalTopK
	}
	if c.GlobalCandidateK <= 0 {
		c.GlobalCandidateK = GlobalCandidateK
	}
	if c.MaxPerOtherDocument <= 0 {
		c.MaxPerOtherDocument = MaxChunksPerOtherDocument
	}
	if c.Dimension <= 0 {
		c.Dimension = models.EmbeddingDimension
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Assembler builds the system instruction for a chat turn.
type Assembler struct {
	retriever Retriever
	embedder  embeddings.Provider
	config    Config
	logger    *slog.Logger
}

// NewAssembler creates an assembler. A nil embedder disables global retrieval;
// a nil retriever disables retrieval entirely.
func NewAssembler(retriever Retriever, embedder embeddings.Provider, cfg Config) *Assembler {
	cfg = cfg.withDefaults()
	return &Assembler{
		retriever: retriever,
		embedder:  embedder,
		config:    cfg,
		logger:    cfg.Logger.With("component", "rag_context"),
	}
}

// BuildRequest is the input of Build.
type BuildRequest struct {
	Message              string
	CurrentCompositionID string
	CurrentGenre         string
}

// Result is the assembled context for one chat turn.
type Result struct {
	// ShortCircuit is set when Reply should be returned without a completion call.
	ShortCircuit bool
	Reply        string

	// SystemInstruction is the full prompt for the completion call.
	SystemInstruction string

	// Chunks are the retrieved chunks in prompt order.
	Chunks []models.CompositionChunk
}

// Build assembles the context for req. It never fails: retrieval problems are
// logged and the instruction is built from whatever was retrieved.
func (a *Assembler) Build(ctx context.Context, req BuildRequest) Result {
	if IsListAllRequest(req.Message) {
		return Result{ShortCircuit: true, Reply: ListAllReply}
	}

	ctx, span := a.config.Tracer.Start(ctx, "rag.build_context")
	defer span.End()

	queryVec := a.embedQuery(ctx, req.Message)

	var (
		current       []models.CompositionChunk
		currentLoaded bool
	)
	if req.CurrentCompositionID != "" && a.retriever != nil {
		chunks, err := a.retriever.ChunksByComposition(ctx, req.CurrentCompositionID)
		if err != nil {
			a.degrade(ctx, "current_chunks", err, "composition_id", req.CurrentCompositionID)
		} else {
			current = chunks
			currentLoaded = true
		}
	}

	var global []models.CompositionChunk
	if queryVec != "" && a.retriever != nil {
		candidates, err := a.retriever.NearestChunks(ctx, queryVec, a.config.GlobalCandidateK, req.CurrentCompositionID)
		if err != nil {
			a.degrade(ctx, "global_chunks", err)
		} else {
			global = Diversify(candidates, a.config.GlobalTopK, a.config.MaxPerOtherDocument)
		}
	}

	a.config.Metrics.RecordRetrieval("current", len(current))
	a.config.Metrics.RecordRetrieval("global", len(global))
	a.config.Tracer.SetAttributes(span, "current_chunks", len(current), "global_chunks", len(global))

	chunks := Dedupe(append(append([]models.CompositionChunk{}, current...), global...))

	currentTitle := ""
	if len(current) > 0 {
		currentTitle = current[0].Title
	} else if currentLoaded {
		currentTitle = a.compositionTitle(ctx, req.CurrentCompositionID)
	}

	return Result{
		SystemInstruction: a.instruction(PageNote(req.CurrentGenre, currentTitle), FormatContext(chunks)),
		Chunks:            chunks,
	}
}

// embedQuery returns the normalized query vector literal, or "" when unavailable.
func (a *Assembler) embedQuery(ctx context.Context, message string) string {
	if a.embedder == nil || strings.TrimSpace(message) == "" {
		return ""
	}
	v, err := embeddings.EmbedOne(ctx, a.embedder, message, embeddings.Options{
		Intent:         embeddings.IntentQuery,
		Dimensionality: a.config.Dimension,
	})
	if err == nil {
		err = embeddings.CheckDimension(v, a.config.Dimension)
	}
	if err != nil {
		a.degrade(ctx, "query_embedding", err)
		return ""
	}
	return vector.Encode(vector.Normalize(vector.Float64s(v)))
}

// compositionTitle looks up the title of an unindexed composition. Unknown ids yield "".
func (a *Assembler) compositionTitle(ctx context.Context, id string) string {
	comp, err := a.retriever.GetComposition(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.degrade(ctx, "current_composition", err, "composition_id", id)
		}
		return ""
	}
	return comp.Title
}

func (a *Assembler) degrade(ctx context.Context, source string, err error, attrs ...any) {
	if errors.Is(err, context.Canceled) {
		return
	}
	a.config.Metrics.RecordError("retrieval", source)
	a.logger.WarnContext(ctx, "retrieval degraded", append([]any{"source", source, "error", err}, attrs...)...)
}

func (a *Assembler) instruction(pageNote, contextBlock string) string {
	var sb strings.Builder
	sb.WriteString(a.config.Persona)
	sb.WriteString("\n\n")
	sb.WriteString(contextPreamble)
	if pageNote != "" {
		sb.WriteString("\n\nCurrent context: ")
		sb.WriteString(pageNote)
	}
	sb.WriteString("\n\n")
	sb.WriteString(ContextDelimiter)
	sb.WriteString("\n\n")
	sb.WriteString(contextBlock)
	return sb.String()
}

// PageNote describes where the user is on the site. Empty when nothing is known.
func PageNote(genre, compositionTitle string) string {
	var parts []string
	if g := strings.TrimSpace(genre); g != "" {
		parts = append(parts, fmt.Sprintf("The user is currently on the %s page.", g))
	}
	if t := strings.TrimSpace(compositionTitle); t != "" {
		parts = append(parts, fmt.Sprintf("They are viewing the composition %q.", t))
	}
	return strings.Join(parts, " ")
}

// Diversify walks candidates in order and admits a chunk only while its
// composition has contributed fewer than perDoc chunks, stopping at topK.
func Diversify(candidates []models.CompositionChunk, topK, perDoc int) []models.CompositionChunk {
	out := make([]models.CompositionChunk, 0, min(topK, len(candidates)))
	perComposition := make(map[string]int)
	for _, c := range candidates {
		if len(out) >= topK {
			break
		}
		if perComposition[c.CompositionID] >= perDoc {
			continue
		}
		perComposition[c.CompositionID]++
		out = append(out, c)
	}
	return out
}

// Dedupe drops repeated (composition, index) pairs, keeping the first.
func Dedupe(chunks []models.CompositionChunk) []models.CompositionChunk {
	seen := make(map[models.ChunkKey]struct{}, len(chunks))
	out := make([]models.CompositionChunk, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.Key()]; ok {
			continue
		}
		seen[c.Key()] = struct{}{}
		out = append(out, c)
	}
	return out
}

// FormatContext renders chunks as prompt records, or NoContextSentinel when empty.
func FormatContext(chunks []models.CompositionChunk) string {
	if len(chunks) == 0 {
		return NoContextSentinel
	}
	records := make([]string, len(chunks))
	for i, c := range chunks {
		records[i] = fmt.Sprintf("[%s] %q (id: %s, chunk %d)\n%s\n---", c.Genre, c.Title, c.CompositionID, c.ChunkIndex, c.Content)
	}
	return strings.Join(records, "\n\n")
}
