package simulation

import (
	"context"
	"fmt"
	"math"
	"strings"

	"coachmastery/modelapi/llmjson"
	"coachmastery/prompts"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SessionFlow rates each phase of the session.
type SessionFlow struct {
	Opening     string `json:"opening"`
	Exploration string `json:"exploration"`
	Deepening   string `json:"deepening"`
	Closing     string `json:"closing"`
}

// KeyMoment points at a significant beat in the transcript.
type KeyMoment struct {
	Timestamp    string `json:"timestamp"`
	WhatHappened string `json:"what_happened"`
	Significance string `json:"significance"`
}

// FinalReport is the end-of-session debrief: narrative sections from
// the assessor plus mechanical fields computed from the transcript.
type FinalReport struct {
	OverallScore           float64     `json:"overall_score"`
	SessionFlow            SessionFlow `json:"session_flow"`
	Strengths              []string    `json:"strengths"`
	AreasForImprovement    []string    `json:"areas_for_improvement"`
	KeyMoments             []KeyMoment `json:"key_moments"`
	TalkRatioAssessment    string      `json:"talk_ratio_assessment"`
	Recommendations        []string    `json:"recommendations"`
	SessionDuration        string      `json:"session_duration"`
	TotalExchanges         int         `json:"total_exchanges"`
	TalkRatio              string      `json:"talk_ratio"`
	IndividualScores       []float64   `json:"individual_scores"`
	AverageIndividualScore float64     `json:"average_individual_score"`
}

// TalkRatio splits word counts across roles as integer percentages
// that sum to 100. An empty transcript yields 0/0.
func TalkRatio(messages []Turn) (coachPct, clientPct int) {
	var coachWords, clientWords int
	for _, m := range messages {
		words := len(strings.Fields(m.Content))
		switch m.Role {
		case RoleCoach:
			coachWords += words
		case RoleClient:
			clientWords += words
		}
	}
	total := coachWords + clientWords
	if total == 0 {
		return 0, 0
	}
	coachPct = int(float64(coachWords) / float64(total) * 100)
	return coachPct, 100 - coachPct
}

func averageScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return math.Round(sum/float64(len(scores))*10) / 10
}

// End freezes the session and produces the final report. The narrative
// sections come from one assessor call over the whole transcript; if
// that call fails the mechanical fields are still filled in.
func (e *Engine) End(ctx context.Context, s *Session) *FinalReport {
	tracer := otel.Tracer("simulation/End")
	ctx, span := tracer.Start(ctx, "End")
	defer span.End()

	s.Phase = PhaseEnded

	duration := e.now().Sub(s.StartedAt)
	durationMinutes := int(duration.Minutes())
	coachPct, clientPct := TalkRatio(s.Messages)

	scores := make([]float64, 0, len(s.HiddenAnalyses))
	for _, h := range s.HiddenAnalyses {
		scores = append(scores, h.Analysis.Score)
	}

	report := &FinalReport{
		SessionDuration:        fmt.Sprintf("%d minutes", durationMinutes),
		TotalExchanges:         s.CoachTurns(),
		TalkRatio:              fmt.Sprintf("Coach: %d%% / Client: %d%%", coachPct, clientPct),
		IndividualScores:       scores,
		AverageIndividualScore: averageScore(scores),
	}

	span.SetAttributes(
		attribute.String("session.id", s.ID),
		attribute.Int("session.exchanges", report.TotalExchanges),
	)

	prompt := prompts.FinalReport(
		prompts.HistoryTranscript(s.history()),
		scores,
		durationMinutes,
		report.TotalExchanges,
		coachPct,
		clientPct,
		s.Language,
	)
	result, err := e.generate(ctx, s.UserID, "full_session", prompt)
	if err != nil {
		span.RecordError(err)
		e.logger.Logger(ctx).Error("[Simulation] Final report generation failed", zap.Error(err))
		return report
	}

	var narrative struct {
		OverallScore        float64     `json:"overall_score"`
		SessionFlow         SessionFlow `json:"session_flow"`
		Strengths           []string    `json:"strengths"`
		AreasForImprovement []string    `json:"areas_for_improvement"`
		KeyMoments          []KeyMoment `json:"key_moments"`
		TalkRatioAssessment string      `json:"talk_ratio_assessment"`
		Recommendations     []string    `json:"recommendations"`
	}
	if err := llmjson.Decode(result.Text, &narrative); err != nil {
		span.RecordError(err)
		e.logger.Logger(ctx).Error("[Simulation] Could not parse final report", zap.Error(err))
		return report
	}

	report.OverallScore = narrative.OverallScore
	report.SessionFlow = narrative.SessionFlow
	report.Strengths = narrative.Strengths
	report.AreasForImprovement = narrative.AreasForImprovement
	report.KeyMoments = narrative.KeyMoments
	report.TalkRatioAssessment = narrative.TalkRatioAssessment
	report.Recommendations = narrative.Recommendations

	e.logger.Logger(ctx).Info("[Simulation] Session ended",
		zap.String("session_id", s.ID),
		zap.Int("exchanges", report.TotalExchanges),
		zap.Float64("average_score", report.AverageIndividualScore))

	return report
}
