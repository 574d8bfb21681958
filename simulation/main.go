package simulation

import (
	"context"
	"fmt"
	"time"

	"coachmastery/localization"
	"coachmastery/logger"
	"coachmastery/modelapi"
	"coachmastery/modelapi/llmjson"
	"coachmastery/prompts"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	RoleCoach  = "Coach"
	RoleClient = "Client"
)

// Turn is one utterance in the live roleplay. Timestamps are MM:SS
// offsets from session start.
type Turn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Phase     string `json:"phase,omitempty"`
}

// TurnAnalysis is the assessor's verdict on one coach utterance.
type TurnAnalysis struct {
	Score               float64  `json:"score"`
	Rating              string   `json:"rating"`
	MarkersDemonstrated []string `json:"markers_demonstrated"`
	Feedback            string   `json:"feedback"`
	WhatCouldBeBetter   string   `json:"what_could_be_better"`
	Recommendation      string   `json:"recommendation"`
}

// TurnEvaluation pairs a coach message with its hidden assessment. Not
// shown during the live session so the roleplay is not interrupted.
type TurnEvaluation struct {
	MessageIndex int          `json:"message_index"`
	CoachMessage string       `json:"coach_message"`
	Timestamp    string       `json:"timestamp"`
	Phase        string       `json:"phase"`
	Analysis     TurnAnalysis `json:"analysis"`
}

// Session is one live roleplay. It is owned by a single user
// interaction at a time; all mutation happens through the Engine.
// HiddenAnalyses never serializes with the session: the per-turn
// evaluations reach the user only in the end-of-session payload.
type Session struct {
	ID             string                `json:"id"`
	UserID         string                `json:"user_id"`
	Persona        string                `json:"persona"`
	Topic          string                `json:"topic"`
	Language       localization.Language `json:"language"`
	Phase          Phase                 `json:"phase"`
	Messages       []Turn                `json:"messages"`
	HiddenAnalyses []TurnEvaluation      `json:"-"`
	StartedAt      time.Time             `json:"started_at"`
}

func (s *Session) Ended() bool {
	return s.Phase == PhaseEnded
}

// CoachTurns counts the coach's utterances (the "exchanges" metric).
func (s *Session) CoachTurns() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleCoach {
			n++
		}
	}
	return n
}

func (s *Session) history() []prompts.HistoryEntry {
	entries := make([]prompts.HistoryEntry, 0, len(s.Messages))
	for _, m := range s.Messages {
		entries = append(entries, prompts.HistoryEntry{Role: m.Role, Content: m.Content})
	}
	return entries
}

// Generator is the slice of the LLM gateway the simulator needs.
type Generator interface {
	GenerateJSON(ctx context.Context, model string, prompt string) (*modelapi.Result, error)
}

// UsageSink records token spend per call. May be nil.
type UsageSink interface {
	LogCall(ctx context.Context, userID, serviceType string, u modelapi.Usage)
}

type EngineConnectProps struct {
	Logger *logger.LogMiddleware
	LLM    Generator
	Usage  UsageSink
}

// Engine drives the persona roleplay: one client turn and one hidden
// evaluation per coach turn, with time-boxed phase progression.
type Engine struct {
	logger *logger.LogMiddleware
	llm    Generator
	usage  UsageSink
	now    func() time.Time
}

func Connect(args EngineConnectProps) *Engine {
	return &Engine{
		logger: args.Logger,
		llm:    args.LLM,
		usage:  args.Usage,
		now:    time.Now,
	}
}

type clientReply struct {
	ClientResponse string `json:"client_response"`
}

func (e *Engine) generate(ctx context.Context, userID, serviceType, prompt string) (*modelapi.Result, error) {
	result, err := e.llm.GenerateJSON(ctx, modelapi.ModelFlash, prompt)
	if err != nil {
		return nil, err
	}
	if e.usage != nil {
		e.usage.LogCall(ctx, userID, serviceType, result.Usage)
	}
	return result, nil
}

func (e *Engine) stamp(s *Session) string {
	elapsed := e.now().Sub(s.StartedAt)
	return fmt.Sprintf("%02d:%02d", int(elapsed.Minutes()), int(elapsed.Seconds())%60)
}

// Start creates a fresh session and asks the simulated client for its
// opening statement. A failed opener is not fatal: the session starts
// with an empty transcript and the coach leads.
func (e *Engine) Start(ctx context.Context, userID, persona, topic string, lang localization.Language) *Session {
	tracer := otel.Tracer("simulation/Start")
	ctx, span := tracer.Start(ctx, "Start")
	defer span.End()

	span.SetAttributes(
		attribute.String("session.persona", persona),
		attribute.String("session.topic", topic),
	)

	s := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Persona:   persona,
		Topic:     topic,
		Language:  lang,
		Phase:     PhaseOpening,
		StartedAt: e.now(),
	}

	scenario := prompts.RandomOpener(topic)
	result, err := e.generate(ctx, userID, "full_session", prompts.ClientOpening(persona, scenario, lang))
	if err == nil {
		var reply clientReply
		if decodeErr := llmjson.Decode(result.Text, &reply); decodeErr != nil {
			err = decodeErr
		} else if reply.ClientResponse == "" {
			err = fmt.Errorf("empty client_response from simulator")
		} else {
			s.Messages = append(s.Messages, Turn{
				Role:      RoleClient,
				Content:   reply.ClientResponse,
				Timestamp: "00:00",
				Phase:     string(PhaseOpening),
			})
		}
	}
	if err != nil {
		span.RecordError(err)
		e.logger.Logger(ctx).Warn("[Simulation] Client opener failed, coach leads", zap.Error(err))
	}

	e.logger.Logger(ctx).Info("[Simulation] Session started",
		zap.String("session_id", s.ID),
		zap.String("persona", persona),
		zap.String("topic", topic))

	return s
}

// TurnOutcome reports what one coach turn produced. ClientTurn is nil
// when the simulator call failed; the coach message is kept either way
// and the user may simply send again.
type TurnOutcome struct {
	CoachTurn  Turn  `json:"coach_turn"`
	ClientTurn *Turn `json:"client_turn,omitempty"`
	Phase      Phase `json:"phase"`
}

// CoachTurn runs the per-turn protocol: append coach message, hidden
// evaluation, client simulation, then phase recomputation.
func (e *Engine) CoachTurn(ctx context.Context, s *Session, message string) (*TurnOutcome, error) {
	tracer := otel.Tracer("simulation/CoachTurn")
	ctx, span := tracer.Start(ctx, "CoachTurn")
	defer span.End()

	if s.Ended() {
		return nil, fmt.Errorf("session %s has ended", s.ID)
	}

	elapsed := e.now().Sub(s.StartedAt)
	elapsedMinutes := int(elapsed.Minutes())
	timestamp := e.stamp(s)

	span.SetAttributes(
		attribute.String("session.id", s.ID),
		attribute.Int("session.elapsed_minutes", elapsedMinutes),
		attribute.String("session.phase", string(s.Phase)),
	)

	coachTurn := Turn{
		Role:      RoleCoach,
		Content:   message,
		Timestamp: timestamp,
		Phase:     string(s.Phase),
	}
	s.Messages = append(s.Messages, coachTurn)

	// Hidden assessor pass. A failure here never blocks the roleplay.
	evalPrompt := prompts.TurnEvaluation(s.history(), message, s.Language)
	if result, err := e.generate(ctx, s.UserID, "turn_evaluation", evalPrompt); err != nil {
		span.RecordError(err)
		e.logger.Logger(ctx).Warn("[Simulation] Turn evaluation failed", zap.Error(err))
	} else {
		var turnAnalysis TurnAnalysis
		if err := llmjson.Decode(result.Text, &turnAnalysis); err != nil {
			span.RecordError(err)
			e.logger.Logger(ctx).Warn("[Simulation] Could not parse turn evaluation", zap.Error(err))
		} else {
			s.HiddenAnalyses = append(s.HiddenAnalyses, TurnEvaluation{
				MessageIndex: len(s.Messages) - 1,
				CoachMessage: message,
				Timestamp:    timestamp,
				Phase:        string(s.Phase),
				Analysis:     turnAnalysis,
			})
		}
	}

	outcome := &TurnOutcome{CoachTurn: coachTurn}

	// Client simulator pass. On failure the coach message stands alone.
	turnPrompt := prompts.ClientTurn(s.Persona, string(s.Phase), elapsedMinutes, s.history(), s.Language)
	if result, err := e.generate(ctx, s.UserID, "full_session", turnPrompt); err != nil {
		span.RecordError(err)
		e.logger.Logger(ctx).Warn("[Simulation] Client simulation failed, keeping coach turn", zap.Error(err))
	} else {
		var reply clientReply
		if err := llmjson.Decode(result.Text, &reply); err != nil || reply.ClientResponse == "" {
			span.RecordError(err)
			e.logger.Logger(ctx).Warn("[Simulation] Malformed client reply, keeping coach turn", zap.Error(err))
		} else {
			clientTurn := Turn{
				Role:      RoleClient,
				Content:   reply.ClientResponse,
				Timestamp: e.stamp(s),
			}
			s.Messages = append(s.Messages, clientTurn)
			outcome.ClientTurn = &clientTurn
		}
	}

	s.Phase = PhaseFor(e.now().Sub(s.StartedAt))
	outcome.Phase = s.Phase

	return outcome, nil
}
