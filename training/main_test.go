package training_test

import (
	"context"
	"errors"
	"testing"

	"coachmastery/localization"
	"coachmastery/logger"
	"coachmastery/markers"
	"coachmastery/modelapi"
	"coachmastery/training"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type canned struct {
	text string
	err  error
}

type fakeLLM struct {
	queue []canned
	calls int
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, model string, prompt string) (*modelapi.Result, error) {
	f.calls++
	if len(f.queue) == 0 {
		return &modelapi.Result{Text: `{}`}, nil
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	if next.err != nil {
		return nil, next.err
	}
	return &modelapi.Result{Text: next.text}, nil
}

func testEngine(t *testing.T, llm *fakeLLM) *training.Engine {
	t.Helper()
	catalog, err := markers.Load("../markers.json")
	require.NoError(t, err)
	return training.Connect(training.EngineConnectProps{
		Logger:  logger.Connect(logger.LoggerConnectProps{Production: false}),
		LLM:     llm,
		Catalog: catalog,
	})
}

const goodQuiz = `{"question": "Which behavior shows active listening?", "options": ["Summarizing the client's words", "Offering advice", "Changing topic", "Interrupting"], "correct_answer": "Summarizing the client's words", "explanation": "Reflecting back is the marker behavior."}`

func TestGenerateQuizFirstAttempt(t *testing.T) {
	llm := &fakeLLM{queue: []canned{{text: goodQuiz}}}
	engine := testEngine(t, llm)

	quiz := engine.GenerateQuiz(context.Background(), "user-1", localization.English)

	assert.Equal(t, 1, llm.calls)
	assert.NotEmpty(t, quiz.MarkerID)
	assert.Equal(t, "Summarizing the client's words", quiz.CorrectAnswer)
	assert.Len(t, quiz.Options, 4)
}

func TestGenerateQuizRetriesThenSucceeds(t *testing.T) {
	llm := &fakeLLM{queue: []canned{
		{text: "not json"},
		{text: `{"question": "Q?", "options": ["A"], "correct_answer": "missing"}`},
		{text: goodQuiz},
	}}
	engine := testEngine(t, llm)

	quiz := engine.GenerateQuiz(context.Background(), "user-1", localization.English)

	assert.Equal(t, 3, llm.calls)
	assert.Equal(t, "Which behavior shows active listening?", quiz.Question)
}

func TestGenerateQuizFallsBackAfterBudget(t *testing.T) {
	llm := &fakeLLM{queue: []canned{
		{text: "garbage"},
		{text: "garbage"},
		{text: "garbage"},
	}}
	engine := testEngine(t, llm)

	quiz := engine.GenerateQuiz(context.Background(), "user-1", localization.Arabic)

	assert.Equal(t, 3, llm.calls)
	assert.Equal(t, "حدث خطأ في توليد السؤال", quiz.Question)
	assert.Equal(t, "A", quiz.CorrectAnswer)
	assert.NotEmpty(t, quiz.Explanation)
}

func TestGenerateQuizAcceptsFencedJSON(t *testing.T) {
	llm := &fakeLLM{queue: []canned{{text: "```json\n" + goodQuiz + "\n```"}}}
	engine := testEngine(t, llm)

	quiz := engine.GenerateQuiz(context.Background(), "user-1", localization.English)

	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, "Summarizing the client's words", quiz.CorrectAnswer)
}

func TestGenerateScenarioFallback(t *testing.T) {
	llm := &fakeLLM{queue: []canned{
		{err: errors.New("upstream down")},
		{err: errors.New("upstream down")},
		{err: errors.New("upstream down")},
	}}
	engine := testEngine(t, llm)

	scenario := engine.GenerateScenario(context.Background(), "user-1", localization.English)

	assert.Equal(t, "Error generating scenario.", scenario.ScenarioText)
}

func TestGradeResponse(t *testing.T) {
	llm := &fakeLLM{queue: []canned{
		{text: `{"rating": "Strong", "marker_demonstrated": "7.1", "feedback": "Direct, open question."}`},
	}}
	engine := testEngine(t, llm)

	grade, err := engine.GradeResponse(context.Background(), "user-1",
		"Client feels stuck in their role.", "What would growth look like for you here?", localization.English)
	require.NoError(t, err)

	assert.Equal(t, "Strong", grade.Rating)
	assert.Equal(t, "7.1", grade.MarkerDemonstrated)
}

func TestRephraseGymRoundTrip(t *testing.T) {
	llm := &fakeLLM{queue: []canned{
		{text: `{"bad_question": "Don't you think you should quit?", "marker_violated": "7.1", "what_makes_it_bad": "Leading and closed."}`},
		{text: `{"score": 8, "feedback": "Open and client-led.", "master_version": "What options feel alive for you right now?"}`},
	}}
	engine := testEngine(t, llm)

	bad, err := engine.GenerateBadQuestion(context.Background(), "user-1", "7.1", localization.English)
	require.NoError(t, err)
	assert.Equal(t, "7.1", bad.MarkerViolated)

	grade, err := engine.EvaluateRephrase(context.Background(), "user-1",
		bad.BadQuestion, "What matters most to you about this decision?", bad.MarkerViolated, localization.English)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, grade.Score, 0.001)
	assert.NotEmpty(t, grade.MasterVersion)
}
