package samefact

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/pennybridge/mnemon/pkg/domain/types"
)

// Service is the pairwise same-fact classifier: given a candidate summary and
// an existing record summary from the same category, decide whether both
// describe the same underlying fact. A plausible attribute change on the same
// tracked entity, such as an age incrementing, counts as the same fact.
type Service struct {
	llm gollem.LLMClient
}

func New(llm gollem.LLMClient) (*Service, error) {
	if llm == nil {
		return nil, goerr.New("LLM client is required")
	}
	return &Service{llm: llm}, nil
}

type sameFactResponse struct {
	SameFact bool `json:"same_fact"`
}

// IsSameFact compares one candidate/neighbor pair. Errors are classifier
// failures; the caller decides how to degrade.
func (s *Service) IsSameFact(ctx context.Context, category types.Category, candidateText, neighborText string) (bool, error) {
	session, err := s.llm.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(buildResponseSchema()),
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		return false, goerr.Wrap(err, "failed to create same-fact session")
	}

	prompt := fmt.Sprintf("Category: %s\n\nExisting memory:\n%s\n\nNew statement:\n%s\n",
		category, neighborText, candidateText)

	resp, err := session.GenerateContent(ctx, gollem.Text(prompt))
	if err != nil {
		return false, goerr.Wrap(err, "same-fact classification failed")
	}
	if len(resp.Texts) == 0 {
		return false, goerr.New("empty same-fact response")
	}

	var parsed sameFactResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		return false, goerr.Wrap(err, "failed to parse same-fact response",
			goerr.V("response", resp.Texts[0]))
	}

	return parsed.SameFact, nil
}

const systemPrompt = `You compare an existing memory with a new statement and decide whether they describe the same underlying fact about the user.

Rules:
1. Answer same_fact=true when both texts track the same attribute of the same entity, even if the value changed. "Luna is 3 years old" and "Luna just turned 4" are the same fact with an updated value.
2. Answer same_fact=false when the texts describe different entities or unrelated attributes, however similar the wording.
3. Judge the underlying fact, not the phrasing.`

func buildResponseSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "SameFactResponse",
		Description: "Whether two texts describe the same underlying fact",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"same_fact": {
				Type:        gollem.TypeBoolean,
				Description: "True when both texts track the same fact",
				Required:    true,
			},
		},
	}
}
