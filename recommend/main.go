package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"coachmastery/analysis"
	"coachmastery/database"
	"coachmastery/logger"
	"coachmastery/markers"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// historyWindow bounds how far back the planner looks.
const historyWindow = 10

// defaultFocus is where a fresh trainee starts. Evoking awareness is
// the largest competency and the most common PCC failure point.
const defaultFocus = "C7"

// PlanStep is one item in a personalized training plan.
type PlanStep struct {
	Type        string `json:"type"` // "read", "drill" or "challenge"
	Title       string `json:"title"`
	Description string `json:"description"`
	MarkerID    string `json:"marker_id,omitempty"`
}

// Plan is the weakest-competency study plan derived from past sessions.
type Plan struct {
	FocusCompetency string     `json:"focus_competency"`
	CompetencyName  string     `json:"competency_name"`
	Reason          string     `json:"reason"`
	SessionsScanned int        `json:"sessions_scanned"`
	Steps           []PlanStep `json:"steps"`
}

type EngineConnectProps struct {
	Logger  *logger.LogMiddleware
	Store   database.Store
	Catalog *markers.Catalog
}

// Engine computes training plans from stored session reports. Fully
// deterministic; no model calls.
type Engine struct {
	logger  *logger.LogMiddleware
	store   database.Store
	catalog *markers.Catalog
}

func Connect(args EngineConnectProps) *Engine {
	return &Engine{
		logger:  args.Logger,
		store:   args.Store,
		catalog: args.Catalog,
	}
}

// competencyHitRate is observed markers over possible observations
// across all scanned sessions for one competency.
type competencyHitRate struct {
	id       string
	observed int
	possible int
}

func (r competencyHitRate) rate() float64 {
	if r.possible == 0 {
		return 1
	}
	return float64(r.observed) / float64(r.possible)
}

// BuildPlan scans the user's recent analysis reports, finds the
// competency with the lowest marker hit rate, and builds a
// read-drill-challenge plan around it. Users with no analyzed sessions
// get the default focus.
func (e *Engine) BuildPlan(ctx context.Context, userID string) (*Plan, error) {
	tracer := otel.Tracer("recommend/BuildPlan")
	ctx, span := tracer.Start(ctx, "BuildPlan")
	defer span.End()

	records, err := e.store.GetUserHistory(ctx, userID, historyWindow)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("loading session history: %w", err)
	}

	rates := make(map[string]*competencyHitRate)
	for id := range markers.ExpectedCounts {
		rates[id] = &competencyHitRate{id: id}
	}

	scanned := 0
	for _, record := range records {
		if record.Kind != "analysis" {
			continue
		}
		var result analysis.AnalysisResult
		if err := json.Unmarshal(record.ReportJSON, &result); err != nil {
			e.logger.Logger(ctx).Warn("[Recommend] Skipping unreadable report",
				zap.String("session_id", record.ID),
				zap.Error(err))
			continue
		}
		if result.Error != "" {
			continue
		}
		scanned++
		for id, comp := range result.Competencies {
			rate, ok := rates[id]
			if !ok {
				continue
			}
			for _, m := range comp.Markers {
				rate.possible++
				if m.Status == analysis.MarkerObserved {
					rate.observed++
				}
			}
		}
	}

	focus := defaultFocus
	reason := "No analyzed sessions yet. Evoking awareness is the competency most coaches need to build first."
	if scanned > 0 {
		focus, reason = weakest(rates, scanned)
	}

	span.SetAttributes(
		attribute.String("plan.focus", focus),
		attribute.Int("plan.sessions_scanned", scanned),
	)

	competency := e.catalog.Competency(focus)
	if competency == nil {
		return nil, fmt.Errorf("competency %s missing from catalog", focus)
	}

	return &Plan{
		FocusCompetency: focus,
		CompetencyName:  competency.Name,
		Reason:          reason,
		SessionsScanned: scanned,
		Steps:           e.steps(competency),
	}, nil
}

// weakest picks the competency with the lowest hit rate. Ties break on
// competency ID so the plan is stable between requests.
func weakest(rates map[string]*competencyHitRate, scanned int) (string, string) {
	ids := make([]string, 0, len(rates))
	for id := range rates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	focus := ids[0]
	for _, id := range ids[1:] {
		if rates[id].rate() < rates[focus].rate() {
			focus = id
		}
	}

	r := rates[focus]
	reason := fmt.Sprintf("Across your last %d analyzed sessions, %s markers were observed %d out of %d times, your lowest hit rate.",
		scanned, focus, r.observed, r.possible)
	return focus, reason
}

// steps lays out the fixed read-drill-challenge ladder for a focus
// competency: study the markers, drill them in the gym, then take a
// live roleplay.
func (e *Engine) steps(competency *markers.Competency) []PlanStep {
	steps := []PlanStep{
		{
			Type:        "read",
			Title:       fmt.Sprintf("Study the %s markers", competency.ID),
			Description: fmt.Sprintf("Review all %d observable behaviors under %q before drilling them.", len(competency.Markers), competency.Name),
		},
	}

	for i, marker := range competency.Markers {
		if i >= 2 {
			break
		}
		steps = append(steps, PlanStep{
			Type:        "drill",
			Title:       fmt.Sprintf("Rephrase gym on marker %s", marker.ID),
			Description: marker.Text,
			MarkerID:    marker.ID,
		})
	}

	steps = append(steps, PlanStep{
		Type:        "challenge",
		Title:       "Live practice session",
		Description: fmt.Sprintf("Run a simulated session and aim to demonstrate every %s marker at least once.", competency.ID),
	})

	return steps
}
