package webserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"coachmastery/analysis"
	"coachmastery/auth"
	"coachmastery/database/memorydb"
	"coachmastery/knowledge"
	"coachmastery/logger"
	"coachmastery/markers"
	"coachmastery/modelapi"
	"coachmastery/recommend"
	"coachmastery/simulation"
	"coachmastery/training"
	"coachmastery/usage"
	"coachmastery/webserver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	mu    sync.Mutex
	queue []string
	calls int
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, model string, prompt string) (*modelapi.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if len(f.queue) == 0 {
		return &modelapi.Result{Text: `{}`}, nil
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return &modelapi.Result{Text: next, Usage: modelapi.Usage{Model: model, TotalTokens: 100}}, nil
}

func (f *fakeLLM) GenerateJSONFromMedia(ctx context.Context, model string, prompt string, media *modelapi.MediaHandle) (*modelapi.Result, error) {
	return f.GenerateJSON(ctx, model, prompt)
}

type fixture struct {
	handler http.Handler
	store   *memorydb.Store
	llm     *fakeLLM
}

func newFixture(t *testing.T, responses ...string) *fixture {
	t.Helper()

	log := logger.Connect(logger.LoggerConnectProps{Production: false})
	store := memorydb.Connect()
	catalog, err := markers.Load("../markers.json")
	require.NoError(t, err)

	llm := &fakeLLM{queue: responses}
	tracker := usage.Connect(usage.TrackerConnectProps{
		Logger:  log,
		Store:   store,
		Pricing: usage.Pricing{FlashPer1K: 0.0025, ProPer1K: 0.042},
	})

	server := webserver.Connect(webserver.ServerConnectProps{
		Logger: log,
		Auth: auth.Connect(auth.ServiceConnectProps{
			Logger: log,
			Store:  store,
			Secret: "test-secret",
		}),
		Store: store,
		Analysis: analysis.Connect(analysis.EngineConnectProps{
			Logger:  log,
			LLM:     llm,
			Catalog: catalog,
			Usage:   tracker,
		}),
		Simulation: simulation.Connect(simulation.EngineConnectProps{
			Logger: log,
			LLM:    llm,
			Usage:  tracker,
		}),
		Training: training.Connect(training.EngineConnectProps{
			Logger:  log,
			LLM:     llm,
			Catalog: catalog,
			Usage:   tracker,
		}),
		Knowledge: knowledge.Connect(knowledge.EngineConnectProps{
			Logger:  log,
			LLM:     llm,
			Catalog: catalog,
			Usage:   tracker,
		}),
		Recommend: recommend.Connect(recommend.EngineConnectProps{
			Logger:  log,
			Store:   store,
			Catalog: catalog,
		}),
		Usage: tracker,
	})

	return &fixture{handler: server.Handler(), store: store, llm: llm}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) register(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "coach@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/history", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "coach@example.com",
		"password": "hunter22",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "coach@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

const markerResponse = `{"competencies": {"C6": {"name": "Listens Actively", "markers": [
	{"id": "6.1", "status": "Observed"},
	{"id": "6.2", "status": "Observed"},
	{"id": "6.3", "status": "Not Observed"}
]}}}`

func TestAnalyzeTranscriptFlow(t *testing.T) {
	f := newFixture(t,
		`{"status": "PASS", "reason": "No violations found."}`,
		markerResponse,
	)
	token := f.register(t)

	rec := f.do(t, http.MethodPost, "/api/analysis/transcript", token, map[string]string{
		"transcript": "Coach: What matters most to you?\nClient: Finding balance.",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var audit analysis.SessionAudit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))
	assert.Equal(t, analysis.EthicsPass, audit.Ethics.Status)
	require.NotNil(t, audit.Analysis)
	assert.Equal(t, 2, audit.Analysis.MarkersObserved)
	assert.Equal(t, 37, audit.Analysis.TotalMarkers)

	// Completed audits land in history.
	histRec := f.do(t, http.MethodGet, "/api/history", token, nil)
	require.Equal(t, http.StatusOK, histRec.Code)
	var hist struct {
		Sessions []json.RawMessage `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(histRec.Body.Bytes(), &hist))
	assert.Len(t, hist.Sessions, 1)
}

func TestAnalyzeTranscriptRequiresBody(t *testing.T) {
	f := newFixture(t)
	token := f.register(t)

	rec := f.do(t, http.MethodPost, "/api/analysis/transcript", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulationSessionFlow(t *testing.T) {
	f := newFixture(t,
		`{"client_response": "I feel stuck in my current role."}`,
		`{"score": 8, "rating": "Strong", "markers_demonstrated": ["7.1"], "feedback": "Open question", "what_could_be_better": "", "recommendation": ""}`,
		`{"client_response": "Maybe it is about recognition."}`,
		`{"overall_score": 7.5, "session_flow": {"opening": "Strong", "exploration": "Strong", "deepening": "Acceptable", "closing": "Acceptable"}, "strengths": ["Curiosity"], "areas_for_improvement": [], "key_moments": [], "talk_ratio_assessment": "Balanced", "recommendations": []}`,
	)
	token := f.register(t)

	rec := f.do(t, http.MethodPost, "/api/sessions", token, map[string]string{
		"persona": "resistant",
		"topic":   "career_transition",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var session simulation.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.ID)
	require.Len(t, session.Messages, 1)

	rec = f.do(t, http.MethodPost, "/api/sessions/"+session.ID+"/turns", token, map[string]string{
		"message": "What feels stuck about it?",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var outcome simulation.TurnOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	require.NotNil(t, outcome.ClientTurn)

	rec = f.do(t, http.MethodPost, "/api/sessions/"+session.ID+"/end", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ended struct {
		Report simulation.FinalReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ended))
	assert.Equal(t, 1, ended.Report.TotalExchanges)
	assert.InDelta(t, 7.5, ended.Report.OverallScore, 0.001)

	// Session is gone once ended.
	rec = f.do(t, http.MethodGet, "/api/sessions/"+session.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The report was persisted.
	histRec := f.do(t, http.MethodGet, "/api/history", token, nil)
	var hist struct {
		Sessions []struct {
			Kind string `json:"kind"`
		} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(histRec.Body.Bytes(), &hist))
	require.Len(t, hist.Sessions, 1)
	assert.Equal(t, "simulation", hist.Sessions[0].Kind)
}

func TestGetSessionOmitsTurnEvaluations(t *testing.T) {
	f := newFixture(t,
		`{"client_response": "I keep postponing the decision."}`,
		`{"score": 7, "rating": "Good", "markers_demonstrated": ["7.1"], "feedback": "Clear question", "what_could_be_better": "", "recommendation": ""}`,
		`{"client_response": "Mostly fear of regret."}`,
	)
	token := f.register(t)

	rec := f.do(t, http.MethodPost, "/api/sessions", token, map[string]string{
		"persona": "anxious",
		"topic":   "career_transition",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var session simulation.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))

	rec = f.do(t, http.MethodPost, "/api/sessions/"+session.ID+"/turns", token, map[string]string{
		"message": "What would deciding give you?",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// The live session never exposes the per-turn evaluations.
	rec = f.do(t, http.MethodGet, "/api/sessions/"+session.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "hidden_analyses")
	assert.Contains(t, raw, "messages")

	// They only surface once the session ends.
	rec = f.do(t, http.MethodPost, "/api/sessions/"+session.ID+"/end", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ended struct {
		HiddenAnalyses []simulation.TurnEvaluation `json:"hidden_analyses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ended))
	require.Len(t, ended.HiddenAnalyses, 1)
	assert.Equal(t, "What would deciding give you?", ended.HiddenAnalyses[0].CoachMessage)
}

// allPurposeReply satisfies the evaluator, the client simulator, and
// the opener decode alike, so call ordering does not matter.
const allPurposeReply = `{"score": 7, "rating": "Good", "markers_demonstrated": [], "feedback": "ok", "what_could_be_better": "", "recommendation": "", "client_response": "Go on."}`

func TestConcurrentCoachTurns(t *testing.T) {
	responses := make([]string, 9)
	for i := range responses {
		responses[i] = allPurposeReply
	}
	f := newFixture(t, responses...)
	token := f.register(t)

	rec := f.do(t, http.MethodPost, "/api/sessions", token, map[string]string{
		"persona": "resistant",
		"topic":   "work_life_balance",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var session simulation.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))

	const turns = 4
	codes := make(chan int, turns)
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := f.do(t, http.MethodPost, "/api/sessions/"+session.ID+"/turns", token, map[string]string{
				"message": "Tell me more about that.",
			})
			codes <- rec.Code
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}

	// Opener plus one coach and one client turn per request.
	rec = f.do(t, http.MethodGet, "/api/sessions/"+session.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got simulation.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Messages, 1+2*turns)

	rec = f.do(t, http.MethodPost, "/api/sessions/"+session.ID+"/end", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ended struct {
		HiddenAnalyses []simulation.TurnEvaluation `json:"hidden_analyses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ended))
	assert.Len(t, ended.HiddenAnalyses, turns)
}

func TestQuizEndpoint(t *testing.T) {
	f := newFixture(t,
		`{"question": "Which behavior shows partnering?", "options": ["Asking permission", "Giving advice", "Interrupting", "Deciding for the client"], "correct_answer": "Asking permission", "explanation": "Partnering means co-creating."}`,
	)
	token := f.register(t)

	rec := f.do(t, http.MethodGet, "/api/training/quiz", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var quiz training.Quiz
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quiz))
	assert.Equal(t, "Asking permission", quiz.CorrectAnswer)
	assert.NotEmpty(t, quiz.MarkerID)
}

func TestPlanEndpointDefaultsWithoutHistory(t *testing.T) {
	f := newFixture(t)
	token := f.register(t)

	rec := f.do(t, http.MethodGet, "/api/plan", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var plan recommend.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	assert.Equal(t, "C7", plan.FocusCompetency)
}

func TestUsageEndpointCountsCalls(t *testing.T) {
	f := newFixture(t,
		`{"status": "PASS", "reason": "Clean."}`,
		markerResponse,
	)
	token := f.register(t)

	rec := f.do(t, http.MethodPost, "/api/analysis/transcript", token, map[string]string{
		"transcript": "Coach: Tell me more.\nClient: Okay.",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/usage", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary struct {
		TotalCalls  int   `json:"total_calls"`
		TotalTokens int64 `json:"total_tokens"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.TotalCalls)
	assert.Equal(t, int64(200), summary.TotalTokens)
}

func TestTutorEndpoint(t *testing.T) {
	f := newFixture(t, `{"answer": "Marker 6.1 is about the client's context."}`)
	token := f.register(t)

	rec := f.do(t, http.MethodPost, "/api/tutor", token, map[string]string{
		"question": "What is marker 6.1?",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["answer"], "6.1")
}
