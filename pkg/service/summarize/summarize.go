package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
	"github.com/pennybridge/mnemon/pkg/utils/logging"
)

// Service produces the two summaries the write paths need: the enriched
// summary of a recreate merge, and the 1-2 sentence episodic summary of a
// turn window. Both have deterministic fallbacks so a summarization outage
// degrades the wording, never the write.
type Service struct {
	llm gollem.LLMClient
}

func New(llm gollem.LLMClient) (*Service, error) {
	if llm == nil {
		return nil, goerr.New("LLM client is required")
	}
	return &Service{llm: llm}, nil
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

func (s *Service) generate(ctx context.Context, system, prompt string) (string, error) {
	session, err := s.llm.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(buildResponseSchema()),
		gollem.WithSessionSystemPrompt(system),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create summarize session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(prompt))
	if err != nil {
		return "", goerr.Wrap(err, "summarization failed")
	}
	if len(resp.Texts) == 0 {
		return "", goerr.New("empty summarize response")
	}

	var parsed summaryResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		return "", goerr.Wrap(err, "failed to parse summarize response",
			goerr.V("response", resp.Texts[0]))
	}
	if strings.TrimSpace(parsed.Summary) == "" {
		return "", goerr.New("summarizer returned empty summary")
	}

	return strings.TrimSpace(parsed.Summary), nil
}

// MergeSummaries composes one enriched summary from an existing record and
// the newer statement. Newer values win on conflict. On failure the
// concatenation fallback keeps both texts, newer first.
func (s *Service) MergeSummaries(ctx context.Context, oldSummary, newSummary string) string {
	prompt := fmt.Sprintf("Existing memory:\n%s\n\nNewer statement:\n%s\n", oldSummary, newSummary)

	merged, err := s.generate(ctx, mergeSystemPrompt, prompt)
	if err != nil {
		logging.From(ctx).Warn("merge summarization failed, using concatenation fallback",
			"error", err)
		return newSummary + " (previously: " + oldSummary + ")"
	}

	return merged
}

// SummarizeTurns condenses a turn window into a 1-2 sentence episodic
// summary. Injected context and tool traces are excluded before the call.
// The fallback joins the conversational texts directly.
func (s *Service) SummarizeTurns(ctx context.Context, turns []model.Turn) (string, error) {
	var sb strings.Builder
	var fallback []string
	for _, turn := range turns {
		if !turn.Source.IsConversational() {
			continue
		}
		fmt.Fprintf(&sb, "[%s] %s\n", turn.Source, turn.Text)
		if turn.Source == types.TurnSourceUser {
			fallback = append(fallback, turn.Text)
		}
	}
	if sb.Len() == 0 {
		return "", goerr.New("no conversational turns to summarize")
	}

	summary, err := s.generate(ctx, episodicSystemPrompt, sb.String())
	if err != nil {
		logging.From(ctx).Warn("episodic summarization failed, using concatenation fallback",
			"error", err)
		return strings.Join(fallback, " / "), nil
	}

	return summary, nil
}

const mergeSystemPrompt = `You merge two statements about the same fact into one concise third-person summary.

Rules:
1. When the statements conflict, the newer statement wins.
2. Keep details from the existing memory that the newer statement does not contradict.
3. Output one summary sentence, no commentary.`

const episodicSystemPrompt = `You condense a short conversation window into a 1-2 sentence summary of what happened and the outcome.

Rules:
1. Third person, past tense, concrete.
2. Mention decisions or outcomes, not pleasantries.
3. At most two sentences.`

func buildResponseSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "SummaryResponse",
		Description: "A single condensed summary",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"summary": {
				Type:        gollem.TypeString,
				Description: "The condensed summary text",
				Required:    true,
			},
		},
	}
}
