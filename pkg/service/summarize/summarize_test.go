package summarize_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
	"github.com/pennybridge/mnemon/pkg/service/summarize"
)

type mockSession struct {
	generateContentFunc func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (m *mockSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	return m.generateContentFunc(ctx, input...)
}

func (m *mockSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (m *mockSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return m.generateContentFunc(ctx, input...)
}

func (m *mockSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (m *mockSession) History() (*gollem.History, error) { return nil, nil }

func (m *mockSession) AppendHistory(*gollem.History) error { return nil }

func (m *mockSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

type mockLLM struct {
	session *mockSession
}

func (m *mockLLM) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return m.session, nil
}

func (m *mockLLM) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

func replyWith(summary string) func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	return func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
		data, _ := json.Marshal(map[string]string{"summary": summary})
		return &gollem.Response{Texts: []string{string(data)}}, nil
	}
}

func failWith(err error) func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	return func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
		return nil, err
	}
}

func TestMergeSummaries(t *testing.T) {
	t.Run("uses the model's enriched summary", func(t *testing.T) {
		llm := &mockLLM{session: &mockSession{
			generateContentFunc: replyWith("User's dog Luna is 4 years old"),
		}}
		svc, err := summarize.New(llm)
		gt.NoError(t, err).Required()

		merged := svc.MergeSummaries(context.Background(),
			"User's dog Luna is 3 years old", "Luna just turned 4")
		gt.Value(t, merged).Equal("User's dog Luna is 4 years old")
	})

	t.Run("falls back to concatenation, newer first", func(t *testing.T) {
		llm := &mockLLM{session: &mockSession{
			generateContentFunc: failWith(context.DeadlineExceeded),
		}}
		svc, err := summarize.New(llm)
		gt.NoError(t, err).Required()

		merged := svc.MergeSummaries(context.Background(),
			"User's dog Luna is 3 years old", "Luna just turned 4")
		gt.Value(t, merged).Equal("Luna just turned 4 (previously: User's dog Luna is 3 years old)")
	})
}

func TestSummarizeTurns(t *testing.T) {
	turns := []model.Turn{
		{Source: types.TurnSourceContext, Text: "retrieved bullets"},
		{Source: types.TurnSourceUser, Text: "let's refinance with bank B"},
		{Source: types.TurnSourceAssistant, Text: "their rate beats your current one"},
		{Source: types.TurnSourceTool, Text: "rate lookup trace"},
	}

	t.Run("summarizes the conversational turns", func(t *testing.T) {
		llm := &mockLLM{session: &mockSession{
			generateContentFunc: replyWith("Decided to refinance with bank B."),
		}}
		svc, err := summarize.New(llm)
		gt.NoError(t, err).Required()

		summary, err := svc.SummarizeTurns(context.Background(), turns)
		gt.NoError(t, err).Required()
		gt.Value(t, summary).Equal("Decided to refinance with bank B.")
	})

	t.Run("outage falls back to the user texts", func(t *testing.T) {
		llm := &mockLLM{session: &mockSession{
			generateContentFunc: failWith(context.DeadlineExceeded),
		}}
		svc, err := summarize.New(llm)
		gt.NoError(t, err).Required()

		summary, err := svc.SummarizeTurns(context.Background(), turns)
		gt.NoError(t, err).Required()
		gt.Value(t, summary).Equal("let's refinance with bank B")
	})

	t.Run("errors when nothing is conversational", func(t *testing.T) {
		llm := &mockLLM{session: &mockSession{}}
		svc, err := summarize.New(llm)
		gt.NoError(t, err).Required()

		_, err = svc.SummarizeTurns(context.Background(), []model.Turn{
			{Source: types.TurnSourceTool, Text: "trace"},
		})
		gt.Error(t, err)
	})
}
