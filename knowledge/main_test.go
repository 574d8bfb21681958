package knowledge_test

import (
	"context"
	"errors"
	"testing"

	"coachmastery/knowledge"
	"coachmastery/localization"
	"coachmastery/logger"
	"coachmastery/markers"
	"coachmastery/modelapi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	responses []string
	errs      []error
	prompts   []string
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, model string, prompt string) (*modelapi.Result, error) {
	f.prompts = append(f.prompts, prompt)
	i := len(f.prompts) - 1
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return &modelapi.Result{Text: f.responses[i]}, nil
	}
	return &modelapi.Result{Text: `{}`}, nil
}

func testEngine(t *testing.T, llm *fakeLLM) *knowledge.Engine {
	t.Helper()
	catalog, err := markers.Load("../markers.json")
	require.NoError(t, err)
	return knowledge.Connect(knowledge.EngineConnectProps{
		Logger:  logger.Connect(logger.LoggerConnectProps{Production: false}),
		LLM:     llm,
		Catalog: catalog,
	})
}

func TestAsk(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{"answer": "Marker 5.2 is about curiosity toward the client."}`}}
	engine := testEngine(t, llm)

	answer, err := engine.Ask(context.Background(), "user-1", "What is marker 5.2?", localization.English)
	require.NoError(t, err)

	assert.Contains(t, answer, "5.2")

	// The prompt carries both knowledge pillars and the question.
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "GROW")
	assert.Contains(t, llm.prompts[0], "What is marker 5.2?")
}

func TestAskRetriesMalformedOutput(t *testing.T) {
	llm := &fakeLLM{responses: []string{"not json", `{"answer": "The GROW model has four stages."}`}}
	engine := testEngine(t, llm)

	answer, err := engine.Ask(context.Background(), "user-1", "Explain GROW", localization.English)
	require.NoError(t, err)

	assert.Len(t, llm.prompts, 2)
	assert.Contains(t, answer, "GROW")
}

func TestAskSurfacesTransportError(t *testing.T) {
	boom := errors.New("upstream down")
	llm := &fakeLLM{errs: []error{boom, boom, boom}}
	engine := testEngine(t, llm)

	_, err := engine.Ask(context.Background(), "user-1", "Explain GROW", localization.Arabic)
	assert.Error(t, err)
	assert.Len(t, llm.prompts, 3)
}
