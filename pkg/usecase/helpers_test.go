package usecase_test

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"math"
	"math/rand"
	"strings"

	"github.com/m-mizutani/gollem"
	"github.com/pennybridge/mnemon/pkg/domain/model"
)

// stubLLM routes gate, same-fact, and summarize calls by prompt shape and
// serves deterministic embeddings. Unregistered texts embed to a
// hash-seeded pseudo-random unit vector, so distinct texts are nearly
// orthogonal while identical texts always collide.
type stubLLM struct {
	gateReply        gateReply
	gateErr          error
	gateErrTimes     int // 0 means gateErr fails every call
	sameFactFn       func(prompt string) bool
	sameFactErr      error
	sameFactErrTimes int // 0 means sameFactErr fails every call
	mergeReplyFn     func(prompt string) string
	summaryReply     string
	summaryErr       error
	embeddings       map[string][]float64
	embedErr         error
	gateCalls        int
	sameFactCalls    int
}

type gateReply struct {
	Proceed          bool    `json:"proceed"`
	Category         string  `json:"category"`
	Summary          string  `json:"summary"`
	Importance       float64 `json:"importance"`
	DeterministicKey string  `json:"deterministic_key"`
	Reason           string  `json:"reason"`
}

type stubSession struct {
	llm *stubLLM
}

func (s *stubSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	var prompt string
	if len(input) > 0 {
		if text, ok := input[0].(gollem.Text); ok {
			prompt = string(text)
		}
	}

	switch {
	case strings.Contains(prompt, "## Recent turns"):
		s.llm.gateCalls++
		if s.llm.gateErr != nil {
			if s.llm.gateErrTimes == 0 || s.llm.gateCalls <= s.llm.gateErrTimes {
				return nil, s.llm.gateErr
			}
		}
		data, err := json.Marshal(s.llm.gateReply)
		if err != nil {
			return nil, err
		}
		return &gollem.Response{Texts: []string{string(data)}}, nil

	case strings.HasPrefix(prompt, "Category:"):
		s.llm.sameFactCalls++
		if s.llm.sameFactErr != nil {
			if s.llm.sameFactErrTimes == 0 || s.llm.sameFactCalls <= s.llm.sameFactErrTimes {
				return nil, s.llm.sameFactErr
			}
		}
		same := false
		if s.llm.sameFactFn != nil {
			same = s.llm.sameFactFn(prompt)
		}
		data, _ := json.Marshal(map[string]bool{"same_fact": same})
		return &gollem.Response{Texts: []string{string(data)}}, nil

	case strings.Contains(prompt, "Existing memory:"):
		merged := "merged summary"
		if s.llm.mergeReplyFn != nil {
			merged = s.llm.mergeReplyFn(prompt)
		}
		data, _ := json.Marshal(map[string]string{"summary": merged})
		return &gollem.Response{Texts: []string{string(data)}}, nil

	default:
		if s.llm.summaryErr != nil {
			return nil, s.llm.summaryErr
		}
		summary := s.llm.summaryReply
		if summary == "" {
			summary = "Discussed plans and reached a decision."
		}
		data, _ := json.Marshal(map[string]string{"summary": summary})
		return &gollem.Response{Texts: []string{string(data)}}, nil
	}
}

func (s *stubSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *stubSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.GenerateContent(ctx, input...)
}

func (s *stubSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *stubSession) History() (*gollem.History, error) { return nil, nil }

func (s *stubSession) AppendHistory(*gollem.History) error { return nil }

func (s *stubSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

func (c *stubLLM) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return &stubSession{llm: c}, nil
}

func (c *stubLLM) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	if c.embedErr != nil {
		return nil, c.embedErr
	}

	out := make([][]float64, len(input))
	for i, text := range input {
		if vec, ok := c.embeddings[text]; ok {
			out[i] = vec
			continue
		}
		out[i] = hashEmbedding(text, dimension)
	}
	return out, nil
}

// setEmbedding registers an exact vector for one text.
func (c *stubLLM) setEmbedding(text string, vec []float64) {
	if c.embeddings == nil {
		c.embeddings = make(map[string][]float64)
	}
	c.embeddings[text] = vec
}

func hashEmbedding(text string, dimension int) []float64 {
	sum := sha256.Sum256([]byte(text))
	seed := int64(binary.BigEndian.Uint64(sum[:8]))
	rng := rand.New(rand.NewSource(seed))

	vec := make([]float64, dimension)
	var norm float64
	for i := range vec {
		vec[i] = rng.NormFloat64()
		norm += vec[i] * vec[i]
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// unitVec builds a unit vector with the given weights on the leading axes.
func unitVec(weights ...float64) []float64 {
	vec := make([]float64, model.EmbeddingDimension)
	var norm float64
	for i, w := range weights {
		vec[i] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range weights {
		vec[i] /= norm
	}
	return vec
}

// vecWithSimilarity builds a unit vector whose cosine similarity to the unit
// vector on axis zero is exactly sim, using axis one for the remainder.
func vecWithSimilarity(sim float64) []float64 {
	return unitVec(sim, math.Sqrt(1-sim*sim))
}
