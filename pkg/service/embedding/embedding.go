package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/dgraph-io/ristretto"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/pennybridge/mnemon/pkg/domain/model"
)

// Service generates embedding vectors for summaries and queries. Results are
// cached by content hash so repeated normalization of the same text within a
// session does not call the model again.
type Service struct {
	llm   gollem.LLMClient
	cache *ristretto.Cache
}

func New(llm gollem.LLMClient) (*Service, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     64 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding cache")
	}

	return &Service{
		llm:   llm,
		cache: cache,
	}, nil
}

// Wait blocks until buffered cache writes are applied. Cache admission is
// asynchronous; only callers that need read-your-write visibility, such as
// tests, should call this.
func (s *Service) Wait() {
	s.cache.Wait()
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embed returns the embedding vector for one text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, goerr.New("cannot embed empty text")
	}

	key := cacheKey(text)
	if v, ok := s.cache.Get(key); ok {
		if emb, ok := v.([]float32); ok {
			return emb, nil
		}
	}

	embeddings, err := s.llm.GenerateEmbedding(ctx, model.EmbeddingDimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(embeddings) == 0 {
		return nil, goerr.New("no embedding returned")
	}

	result := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		result[i] = float32(v)
	}

	s.cache.Set(key, result, int64(len(result)*4))

	return result, nil
}

// EmbedBatch embeds several texts in one model call. Cached entries are
// served locally; only the misses go to the model.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))

	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if text == "" {
			return nil, goerr.New("cannot embed empty text", goerr.V("index", i))
		}
		if v, ok := s.cache.Get(cacheKey(text)); ok {
			if emb, ok := v.([]float32); ok {
				results[i] = emb
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		embeddings, err := s.llm.GenerateEmbedding(ctx, model.EmbeddingDimension, missing)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to generate embeddings", goerr.V("count", len(missing)))
		}
		if len(embeddings) != len(missing) {
			return nil, goerr.New("embedding count mismatch",
				goerr.V("want", len(missing)), goerr.V("got", len(embeddings)))
		}

		for j, emb := range embeddings {
			vec := make([]float32, len(emb))
			for i, v := range emb {
				vec[i] = float32(v)
			}
			results[missingIdx[j]] = vec
			s.cache.Set(cacheKey(missing[j]), vec, int64(len(vec)*4))
		}
	}

	return results, nil
}
