package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
)

// Result is the gate's verdict on the recent turns. When Proceed is false the
// remaining fields are undefined and nothing reaches storage.
type Result struct {
	Proceed          bool
	Category         types.Category
	Summary          string
	Importance       float64
	DeterministicKey string
	Reason           string
}

// Service decides create-vs-skip for a memory candidate. A deterministic
// negative-rule pass runs before the classification call; content matching a
// negative rule never reaches the model. This is the only component allowed
// to reject a candidate before storage I/O.
type Service struct {
	llm gollem.LLMClient
}

func New(llm gollem.LLMClient) (*Service, error) {
	if llm == nil {
		return nil, goerr.New("LLM client is required")
	}
	return &Service{llm: llm}, nil
}

type negativeRule struct {
	name string
	re   *regexp.Regexp
}

// content that must never become a durable fact: questions about the
// assistant itself and one-off scheduling chatter
var negativeRules = []negativeRule{
	{"assistant_meta", regexp.MustCompile(`(?i)\b(what can you do|who are you|are you (an ai|a bot|real)|how do you work|what model are you)\b`)},
	{"one_off_event", regexp.MustCompile(`(?i)\b(right now|at the moment|this (morning|afternoon|evening)|in an hour|later today)\b`)},
}

func matchNegativeRule(turns []model.Turn) (string, bool) {
	for _, turn := range turns {
		if turn.Source != types.TurnSourceUser {
			continue
		}
		for _, rule := range negativeRules {
			if rule.re.MatchString(turn.Text) {
				return rule.name, true
			}
		}
	}
	return "", false
}

type gateResponse struct {
	Proceed          bool    `json:"proceed"`
	Category         string  `json:"category"`
	Summary          string  `json:"summary"`
	Importance       float64 `json:"importance"`
	DeterministicKey string  `json:"deterministic_key"`
	Reason           string  `json:"reason"`
}

// Evaluate classifies the recent user turns into a memory verdict. On any
// classification failure the result is a safe skip: Proceed=false with the
// error attached so the caller can log and degrade.
func (s *Service) Evaluate(ctx context.Context, turns []model.Turn) (*Result, error) {
	if name, matched := matchNegativeRule(turns); matched {
		return &Result{Proceed: false, Reason: "negative rule: " + name}, nil
	}

	session, err := s.llm.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(buildResponseSchema()),
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		return &Result{Proceed: false}, goerr.Wrap(err, "failed to create gate session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(buildUserPrompt(turns)))
	if err != nil {
		return &Result{Proceed: false}, goerr.Wrap(err, "gate classification failed")
	}
	if len(resp.Texts) == 0 {
		return &Result{Proceed: false}, goerr.New("empty gate response")
	}

	var parsed gateResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		return &Result{Proceed: false}, goerr.Wrap(err, "failed to parse gate response",
			goerr.V("response", resp.Texts[0]))
	}

	if !parsed.Proceed {
		return &Result{Proceed: false, Reason: parsed.Reason}, nil
	}

	category, err := types.ParseCategory(parsed.Category)
	if err != nil {
		return &Result{Proceed: false}, goerr.Wrap(err, "gate returned invalid category",
			goerr.V("category", parsed.Category))
	}
	if parsed.Summary == "" {
		return &Result{Proceed: false}, goerr.New("gate proposed empty summary")
	}
	if parsed.Importance < 0 || parsed.Importance > 1 {
		return &Result{Proceed: false}, goerr.New("gate importance out of range",
			goerr.V("importance", parsed.Importance))
	}

	return &Result{
		Proceed:          true,
		Category:         category,
		Summary:          parsed.Summary,
		Importance:       parsed.Importance,
		DeterministicKey: parsed.DeterministicKey,
		Reason:           parsed.Reason,
	}, nil
}

const systemPrompt = `You decide whether recent conversation turns contain a durable fact or preference about the user that is worth remembering long-term.

Rules:
1. Only durable facts and preferences qualify: stable personal details, named entities in the user's life, financial habits, long-term goals.
2. Never propose time-bound one-off events, scheduling chatter, or questions about the assistant itself.
3. If a durable fact is present, set proceed=true and produce a single concise factual summary in third person.
4. Set category to PERSONAL, GOALS, FINANCE, or OTHER.
5. Set importance in [0,1]: how much future conversations would benefit from this fact.
6. If the fact is a well-known attribute of a named entity (for example a pet's age), set deterministic_key to "<entity>:<attribute>" in lowercase. Otherwise leave it empty.
7. When nothing qualifies, set proceed=false and explain briefly in reason.`

func buildUserPrompt(turns []model.Turn) string {
	var sb strings.Builder
	sb.WriteString("## Recent turns\n\n")
	for _, turn := range turns {
		fmt.Fprintf(&sb, "[%s] %s\n", turn.Source, turn.Text)
	}
	return sb.String()
}

func buildResponseSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "MemoryGateResponse",
		Description: "Verdict on whether the turns contain a durable memory candidate",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"proceed": {
				Type:        gollem.TypeBoolean,
				Description: "Whether a durable fact should be proposed for storage",
				Required:    true,
			},
			"category": {
				Type:        gollem.TypeString,
				Description: "One of PERSONAL, GOALS, FINANCE, OTHER",
				Required:    true,
			},
			"summary": {
				Type:        gollem.TypeString,
				Description: "Concise third-person summary of the fact",
				Required:    true,
			},
			"importance": {
				Type:        gollem.TypeNumber,
				Description: "Importance estimate in [0,1]",
				Required:    true,
			},
			"deterministic_key": {
				Type:        gollem.TypeString,
				Description: "Stable entity:attribute key, or empty",
			},
			"reason": {
				Type:        gollem.TypeString,
				Description: "Short explanation of the verdict",
			},
		},
	}
}
