// Package models defines the data types shared across folio packages.
package models

// EmbeddingDimension is the fixed dimensionality of every stored and queried embedding.
const EmbeddingDimension = 768

// Composition is a literary work owned by the site database.
// folio only reads compositions; they are authored elsewhere.
type Composition struct {
	// ID is the stable composition identifier.
	ID string `json:"id"`

	// Title is the display title.
	Title string `json:"title"`

	// Genre is a free-text category compared case-insensitively.
	Genre string `json:"genre"`

	// Content is the full text.
	Content string `json:"content"`
}

// CompositionChunk is an embedding-sized slice of a Composition.
// For one composition, ChunkIndex values are contiguous from 0 and define reading order.
type CompositionChunk struct {
	// CompositionID links the chunk back to its composition.
	CompositionID string `json:"composition_id"`

	// ChunkIndex is the 0-based position within the composition.
	ChunkIndex int `json:"chunk_index"`

	// Title and Genre are copies of the composition fields at indexing time.
	Title string `json:"title"`
	Genre string `json:"genre"`

	// Content is the chunk text.
	Content string `json:"content"`

	// Embedding is the unit-normalized vector. Only populated on write.
	Embedding []float64 `json:"embedding,omitempty"`

	// Distance is the cosine distance to the query vector for nearest-neighbor reads.
	Distance float64 `json:"distance,omitempty"`
}

// Key identifies a chunk by composition and index.
func (c CompositionChunk) Key() ChunkKey {
	return ChunkKey{CompositionID: c.CompositionID, ChunkIndex: c.ChunkIndex}
}

// ChunkKey is the (composition, index) identity of a chunk.
type ChunkKey struct {
	CompositionID string
	ChunkIndex    int
}

// ChatRole is the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of the chat history sent by the browser.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message              string        `json:"message"`
	CurrentCompositionID string        `json:"currentCompositionId,omitempty"`
	CurrentGenre         string        `json:"currentGenre,omitempty"`
	History              []ChatMessage `json:"history,omitempty"`
}

// ChatResponse is the success body of POST /api/chat.
type ChatResponse struct {
	Text string `json:"text"`
}

// RateRequest is the body of POST /api/rate.
type RateRequest struct {
	Description string `json:"description"`
}

// RateResponse is the success body of POST /api/rate.
type RateResponse struct {
	Rating float64 `json:"rating"`
	Label  string  `json:"label"`
}

// TitlesResponse is the body of GET /api/compositions/titles.
type TitlesResponse struct {
	Titles []string `json:"titles"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}
