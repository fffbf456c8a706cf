// Package knowledge implements the support knowledge base: a sqlite-backed
// corpus of resolved ticket conversations with vector embeddings, searched by
// cosine similarity with a keyword re-ranking boost.
package knowledge

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"google.golang.org/genai"
)

// Engine generates vector embeddings for corpus documents and queries.
type Engine interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// CosineSimilarity calculates the cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d != %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// =============================================================================
// GOOGLE GENAI ENGINE
// =============================================================================

// GenAIEngine generates embeddings using Google's Gemini API.
type GenAIEngine struct {
	client *genai.Client
	model  string
}

// NewGenAIEngine creates a GenAI embedding engine.
func NewGenAIEngine(ctx context.Context, apiKey, model string) (*GenAIEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIEngine{client: client, model: model}, nil
}

// Embed generates an embedding for a single text.
func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one call.
func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents,
		&genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"})
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	vecs := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		vecs[i] = emb.Values
	}
	return vecs, nil
}

// Name identifies the engine in logs.
func (e *GenAIEngine) Name() string { return "genai:" + e.model }

// =============================================================================
// HASHING ENGINE (NO-CREDENTIAL FALLBACK)
// =============================================================================

// hashingDimensions is the fixed vector size of the fallback engine.
const hashingDimensions = 256

// HashingEngine is the deterministic no-credential fallback: a bag-of-words
// vector with terms hashed into a fixed number of buckets. Similarity quality
// is well below a real embedding model but the ranking contract is identical,
// so the knowledge base works offline.
type HashingEngine struct{}

// NewHashingEngine returns the offline engine.
func NewHashingEngine() *HashingEngine { return &HashingEngine{} }

// Embed hashes lowercased terms into a normalized term-frequency vector.
func (e *HashingEngine) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, hashingDimensions)
	for _, term := range strings.Fields(strings.ToLower(text)) {
		term = strings.Trim(term, ".,;:!?\"'()[]|")
		if term == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(term))
		vec[h.Sum32()%hashingDimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// EmbedBatch embeds each text independently.
func (e *HashingEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// Name identifies the engine in logs.
func (e *HashingEngine) Name() string { return "hashing" }
