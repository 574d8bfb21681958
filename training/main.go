package training

import (
	"context"

	"coachmastery/localization"
	"coachmastery/logger"
	"coachmastery/markers"
	"coachmastery/modelapi"
	"coachmastery/modelapi/llmjson"
	"coachmastery/prompts"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Generator is the slice of the LLM gateway the drills need.
type Generator interface {
	GenerateJSON(ctx context.Context, model string, prompt string) (*modelapi.Result, error)
}

// UsageSink records token spend per call. May be nil.
type UsageSink interface {
	LogCall(ctx context.Context, userID, serviceType string, u modelapi.Usage)
}

type EngineConnectProps struct {
	Logger  *logger.LogMiddleware
	LLM     Generator
	Catalog *markers.Catalog
	Usage   UsageSink
}

// Engine serves the self-study drills: marker quizzes, scenario
// responses, and the rephrase gym.
type Engine struct {
	logger  *logger.LogMiddleware
	llm     Generator
	catalog *markers.Catalog
	usage   UsageSink
}

func Connect(args EngineConnectProps) *Engine {
	return &Engine{
		logger:  args.Logger,
		llm:     args.LLM,
		catalog: args.Catalog,
		usage:   args.Usage,
	}
}

func (e *Engine) call(ctx context.Context, userID, serviceType, prompt string) (string, error) {
	result, err := e.llm.GenerateJSON(ctx, modelapi.ModelFlash, prompt)
	if err != nil {
		return "", err
	}
	if e.usage != nil {
		e.usage.LogCall(ctx, userID, serviceType, result.Usage)
	}
	return result.Text, nil
}

// Quiz is one multiple-choice definition check for a single marker.
type Quiz struct {
	MarkerID      string   `json:"marker_id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

type quizPayload struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

func (q quizPayload) complete() bool {
	if q.Question == "" || q.CorrectAnswer == "" || len(q.Options) < 2 {
		return false
	}
	for _, opt := range q.Options {
		if opt == q.CorrectAnswer {
			return true
		}
	}
	return false
}

// fallbackQuiz is the deterministic question handed back when the model
// cannot produce a usable one within the retry budget.
func fallbackQuiz(marker markers.Marker, lang localization.Language) *Quiz {
	return &Quiz{
		MarkerID:      marker.ID,
		Question:      localization.Message(localization.MsgQuizFallback, lang),
		Options:       []string{"A", "B", "C", "D"},
		CorrectAnswer: "A",
		Explanation:   marker.Text,
	}
}

// GenerateQuiz picks a random marker and asks the model for a
// definition-check question about it. Malformed responses are retried
// with backoff; the fallback question is served after the budget runs
// out so the drill never dead-ends.
func (e *Engine) GenerateQuiz(ctx context.Context, userID string, lang localization.Language) *Quiz {
	tracer := otel.Tracer("training/GenerateQuiz")
	ctx, span := tracer.Start(ctx, "GenerateQuiz")
	defer span.End()

	marker := e.catalog.Random()
	span.SetAttributes(attribute.String("quiz.marker_id", marker.ID))

	prompt := prompts.QuizQuestion(marker, lang)
	payload, err := llmjson.Do(ctx, llmjson.DefaultAttempts,
		func(ctx context.Context) (string, error) {
			return e.call(ctx, userID, "quiz", prompt)
		},
		quizPayload.complete,
	)
	if err != nil {
		span.RecordError(err)
		e.logger.Logger(ctx).Warn("[Training] Quiz generation exhausted retries, serving fallback",
			zap.String("marker_id", marker.ID),
			zap.Error(err))
		return fallbackQuiz(marker, lang)
	}

	return &Quiz{
		MarkerID:      marker.ID,
		Question:      payload.Question,
		Options:       payload.Options,
		CorrectAnswer: payload.CorrectAnswer,
		Explanation:   payload.Explanation,
	}
}

// Scenario is a short client situation the trainee responds to.
type Scenario struct {
	ScenarioText string `json:"scenario_text"`
}

// GenerateScenario produces a 2-3 sentence client situation. Uses the
// same retry-then-fallback policy as the quiz.
func (e *Engine) GenerateScenario(ctx context.Context, userID string, lang localization.Language) *Scenario {
	tracer := otel.Tracer("training/GenerateScenario")
	ctx, span := tracer.Start(ctx, "GenerateScenario")
	defer span.End()

	prompt := prompts.Scenario(lang)
	payload, err := llmjson.Do(ctx, llmjson.DefaultAttempts,
		func(ctx context.Context) (string, error) {
			return e.call(ctx, userID, "scenario", prompt)
		},
		func(s Scenario) bool { return s.ScenarioText != "" },
	)
	if err != nil {
		span.RecordError(err)
		e.logger.Logger(ctx).Warn("[Training] Scenario generation exhausted retries, serving fallback", zap.Error(err))
		return &Scenario{ScenarioText: localization.Message(localization.MsgScenarioFallback, lang)}
	}

	return &payload
}

// ResponseGrade is the assessor's verdict on a scenario response.
type ResponseGrade struct {
	Rating             string `json:"rating"`
	MarkerDemonstrated string `json:"marker_demonstrated"`
	Feedback           string `json:"feedback"`
}

// GradeResponse evaluates the trainee's answer to a scenario.
func (e *Engine) GradeResponse(ctx context.Context, userID, scenario, coachResponse string, lang localization.Language) (*ResponseGrade, error) {
	tracer := otel.Tracer("training/GradeResponse")
	ctx, span := tracer.Start(ctx, "GradeResponse")
	defer span.End()

	prompt := prompts.GradeResponse(scenario, coachResponse, lang)
	grade, err := llmjson.Do(ctx, llmjson.DefaultAttempts,
		func(ctx context.Context) (string, error) {
			return e.call(ctx, userID, "grade_response", prompt)
		},
		func(g ResponseGrade) bool { return g.Rating != "" },
	)
	if err != nil {
		span.RecordError(err)
		e.logger.Logger(ctx).Error("[Training] Response grading failed", zap.Error(err))
		return nil, err
	}

	return &grade, nil
}

// BadQuestion is a deliberately flawed coaching question the trainee
// rewrites in the rephrase gym.
type BadQuestion struct {
	BadQuestion    string `json:"bad_question"`
	MarkerViolated string `json:"marker_violated"`
	WhatMakesItBad string `json:"what_makes_it_bad"`
}

// GenerateBadQuestion produces a flawed question, optionally targeting
// a specific marker. markerID may be empty.
func (e *Engine) GenerateBadQuestion(ctx context.Context, userID, markerID string, lang localization.Language) (*BadQuestion, error) {
	tracer := otel.Tracer("training/GenerateBadQuestion")
	ctx, span := tracer.Start(ctx, "GenerateBadQuestion")
	defer span.End()

	var target *markers.Marker
	if markerID != "" {
		target = e.catalog.Find(markerID)
	}

	prompt := prompts.BadQuestion(target, lang)
	bad, err := llmjson.Do(ctx, llmjson.DefaultAttempts,
		func(ctx context.Context) (string, error) {
			return e.call(ctx, userID, "bad_question", prompt)
		},
		func(b BadQuestion) bool { return b.BadQuestion != "" },
	)
	if err != nil {
		span.RecordError(err)
		e.logger.Logger(ctx).Error("[Training] Bad question generation failed", zap.Error(err))
		return nil, err
	}

	return &bad, nil
}

// RephraseGrade is the 0-10 verdict on a rephrase-gym rewrite.
type RephraseGrade struct {
	Score         float64 `json:"score"`
	Feedback      string  `json:"feedback"`
	MasterVersion string  `json:"master_version"`
}

// EvaluateRephrase grades the trainee's rewrite of a bad question.
func (e *Engine) EvaluateRephrase(ctx context.Context, userID, badQuestion, rewrite, markerID string, lang localization.Language) (*RephraseGrade, error) {
	tracer := otel.Tracer("training/EvaluateRephrase")
	ctx, span := tracer.Start(ctx, "EvaluateRephrase")
	defer span.End()

	prompt := prompts.RephraseEval(badQuestion, rewrite, markerID, lang)
	grade, err := llmjson.Do(ctx, llmjson.DefaultAttempts,
		func(ctx context.Context) (string, error) {
			return e.call(ctx, userID, "rephrase_eval", prompt)
		},
		func(g RephraseGrade) bool { return g.Feedback != "" },
	)
	if err != nil {
		span.RecordError(err)
		e.logger.Logger(ctx).Error("[Training] Rephrase evaluation failed", zap.Error(err))
		return nil, err
	}

	return &grade, nil
}
