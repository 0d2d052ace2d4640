// Package embeddings provides the optional semantic layer (§4.9): a
// pluggable embedder backed by a local Ollama instance or the OpenAI API,
// cosine similarity, batch embedding, and a linear-scan semantic search
// used by CIL's rescue step and by direct callers.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/mehmetkoksal-w/memoryindex/internal/store"
)

// Dim is the 384-wide vector dimension of a mean-pooled, L2-normalized
// 32-bit float embedding (§4.9). The Ollama and OpenAI backends return
// whatever width and scaling their model produces: nothing in this package
// checks vector width against Dim or normalizes the vectors.
const Dim = 384

// Embedder is the pluggable model boundary.
type Embedder interface {
	IsAvailable() bool
	Embed(text string) ([]float32, error)
	Warmup() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string `json:"backend"` // "ollama", "openai", or "disabled"
	Model   string `json:"model"`
	URL     string `json:"url"`
	APIKey  string `json:"apiKey"`
}

// DefaultConfig disables embedding until a workspace opts in.
func DefaultConfig() Config {
	return Config{Backend: "disabled"}
}

// New builds an Embedder from cfg. "disabled" (or an empty backend)
// returns NullEmbedder, never an error — embedding absence must never
// break recall or CIL.
func New(cfg Config) (Embedder, error) {
	switch cfg.Backend {
	case "ollama":
		url := cfg.URL
		if url == "" {
			url = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		return &ollamaEmbedder{url: url, model: model}, nil
	case "openai":
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("openai backend requires apiKey or OPENAI_API_KEY")
		}
		model := cfg.Model
		if model == "" {
			model = "text-embedding-3-small"
		}
		return &openAIEmbedder{apiKey: apiKey, model: model}, nil
	case "disabled", "":
		return NullEmbedder{}, nil
	default:
		return nil, fmt.Errorf("unknown embedding backend: %s", cfg.Backend)
	}
}

// NullEmbedder reports unavailable and never produces vectors.
type NullEmbedder struct{}

func (NullEmbedder) IsAvailable() bool               { return false }
func (NullEmbedder) Embed(string) ([]float32, error) { return nil, nil }
func (NullEmbedder) Warmup() error                   { return nil }

type ollamaEmbedder struct {
	url    string
	model  string
	client *http.Client
}

func (e *ollamaEmbedder) IsAvailable() bool { return true }

func (e *ollamaEmbedder) Warmup() error {
	_, err := e.Embed("warmup")
	return err
}

func (e *ollamaEmbedder) Embed(text string) ([]float32, error) {
	if e.client == nil {
		e.client = &http.Client{Timeout: 30 * time.Second}
	}

	body, err := json.Marshal(map[string]string{"model": e.model, "prompt": text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), "POST", e.url+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	return result.Embedding, nil
}

type openAIEmbedder struct {
	apiKey string
	model  string
	client *http.Client
}

func (e *openAIEmbedder) IsAvailable() bool { return true }

func (e *openAIEmbedder) Warmup() error {
	_, err := e.Embed("warmup")
	return err
}

func (e *openAIEmbedder) Embed(text string) ([]float32, error) {
	if e.client == nil {
		e.client = &http.Client{Timeout: 30 * time.Second}
	}

	body, err := json.Marshal(map[string]any{"model": e.model, "input": text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), "POST", "https://api.openai.com/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return result.Data[0].Embedding, nil
}

// CosineSimilarity returns 0 for null or mismatched-length inputs (§4.9),
// otherwise the standard cosine similarity in [-1, 1].
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float64(dot) / (math.Sqrt(float64(normA)) * math.Sqrt(float64(normB)))
}

// Progress reports batch embedding progress to an optional caller
// callback (embed_all's onProgress, §4.9).
type Progress struct {
	Done  int
	Total int
}

// EmbedAll processes every chunk with embedding IS NULL AND stale=0 in
// batches of 50, writing the raw vector bytes back to the chunk row. If
// e is unavailable, EmbedAll is a no-op returning 0 processed.
func EmbedAll(s *store.Store, e Embedder, onProgress func(Progress)) (int, error) {
	if e == nil || !e.IsAvailable() {
		return 0, nil
	}

	const batchSize = 50
	total := 0
	for {
		batch, err := s.ChunksNeedingEmbedding(batchSize)
		if err != nil {
			return total, fmt.Errorf("load batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		for _, c := range batch {
			vec, err := e.Embed(c.Content)
			if err != nil {
				return total, fmt.Errorf("embed chunk %d: %w", c.ID, err)
			}
			if vec == nil {
				continue
			}
			if err := s.SetEmbedding(c.ID, vec); err != nil {
				return total, fmt.Errorf("store embedding for chunk %d: %w", c.ID, err)
			}
			total++
			if onProgress != nil {
				onProgress(Progress{Done: total})
			}
		}
		if len(batch) < batchSize {
			break
		}
	}
	return total, nil
}

// SemanticResult pairs a chunk with its cosine similarity to a query
// vector.
type SemanticResult struct {
	store.Chunk
	Similarity float64
}

// SemanticSearch embeds query, then linearly scans every embedded
// non-stale chunk for cosine similarity, returning the top limit results
// sorted descending.
func SemanticSearch(s *store.Store, e Embedder, query string, limit int) ([]SemanticResult, error) {
	if e == nil || !e.IsAvailable() {
		return nil, nil
	}
	qv, err := e.Embed(query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if qv == nil {
		return nil, nil
	}

	chunks, err := s.AllEmbeddedChunks()
	if err != nil {
		return nil, fmt.Errorf("load embedded chunks: %w", err)
	}

	results := make([]SemanticResult, 0, len(chunks))
	for _, c := range chunks {
		sim := CosineSimilarity(qv, c.Embedding)
		if sim <= 0 {
			continue
		}
		results = append(results, SemanticResult{Chunk: c, Similarity: sim})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// EmbeddingStatus reports embedded vs unembedded non-stale chunk counts.
func EmbeddingStatus(s *store.Store) (store.EmbeddingStatus, error) {
	return s.EmbeddingStatus()
}
