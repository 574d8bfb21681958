package recommend_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"coachmastery/analysis"
	"coachmastery/database"
	"coachmastery/database/memorydb"
	"coachmastery/logger"
	"coachmastery/markers"
	"coachmastery/recommend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T, store database.Store) *recommend.Engine {
	t.Helper()
	catalog, err := markers.Load("../markers.json")
	require.NoError(t, err)
	return recommend.Connect(recommend.EngineConnectProps{
		Logger:  logger.Connect(logger.LoggerConnectProps{Production: false}),
		Store:   store,
		Catalog: catalog,
	})
}

// reportWithRates builds an analysis report where every competency has
// its full marker set and the given number of observed markers.
func reportWithRates(t *testing.T, observedPerComp map[string]int) json.RawMessage {
	t.Helper()
	catalog, err := markers.Load("../markers.json")
	require.NoError(t, err)

	result := analysis.AnalysisResult{Competencies: map[string]analysis.CompetencyResult{}}
	for _, comp := range catalog.Competencies {
		if len(comp.Markers) == 0 {
			continue
		}
		assessed := make([]analysis.MarkerAssessment, 0, len(comp.Markers))
		for i, m := range comp.Markers {
			status := analysis.MarkerNotObserved
			if i < observedPerComp[comp.ID] {
				status = analysis.MarkerObserved
			}
			assessed = append(assessed, analysis.MarkerAssessment{ID: m.ID, Status: status})
		}
		result.Competencies[comp.ID] = analysis.CompetencyResult{Name: comp.Name, Markers: assessed}
	}

	data, err := json.Marshal(&result)
	require.NoError(t, err)
	return data
}

func saveAnalysis(t *testing.T, store database.Store, userID string, report json.RawMessage) {
	t.Helper()
	err := store.SaveSession(context.Background(), &database.SessionRecord{
		ID:         userID + "-" + time.Now().String(),
		UserID:     userID,
		Kind:       "analysis",
		Language:   "en",
		ReportJSON: report,
		CreatedAt:  time.Now(),
	})
	require.NoError(t, err)
}

func TestBuildPlanDefaultsWithoutHistory(t *testing.T) {
	store := memorydb.Connect()
	engine := testEngine(t, store)

	plan, err := engine.BuildPlan(context.Background(), "new-user")
	require.NoError(t, err)

	assert.Equal(t, "C7", plan.FocusCompetency)
	assert.Equal(t, 0, plan.SessionsScanned)
	require.NotEmpty(t, plan.Steps)
	assert.Equal(t, "read", plan.Steps[0].Type)
	assert.Equal(t, "challenge", plan.Steps[len(plan.Steps)-1].Type)
}

func TestBuildPlanFindsWeakestCompetency(t *testing.T) {
	store := memorydb.Connect()
	engine := testEngine(t, store)

	// Everything strong except C8, where only 1 of 9 markers showed up.
	report := reportWithRates(t, map[string]int{
		"C3": 4, "C4": 4, "C5": 5, "C6": 6, "C7": 7, "C8": 1,
	})
	saveAnalysis(t, store, "user-1", report)

	plan, err := engine.BuildPlan(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "C8", plan.FocusCompetency)
	assert.Equal(t, 1, plan.SessionsScanned)
	assert.Contains(t, plan.Reason, "C8")

	var drills int
	for _, step := range plan.Steps {
		if step.Type == "drill" {
			drills++
			assert.Contains(t, step.MarkerID, "8.")
		}
	}
	assert.Equal(t, 2, drills)
}

func TestBuildPlanSkipsFailedAndForeignRecords(t *testing.T) {
	store := memorydb.Connect()
	engine := testEngine(t, store)

	failed, err := json.Marshal(&analysis.AnalysisResult{Error: "upstream timeout"})
	require.NoError(t, err)
	saveAnalysis(t, store, "user-1", failed)

	err = store.SaveSession(context.Background(), &database.SessionRecord{
		ID: "sim-1", UserID: "user-1", Kind: "simulation",
		ReportJSON: json.RawMessage(`{"overall_score": 7}`), CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	plan, err := engine.BuildPlan(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 0, plan.SessionsScanned)
	assert.Equal(t, "C7", plan.FocusCompetency)
}

func TestBuildPlanTieBreaksOnCompetencyID(t *testing.T) {
	store := memorydb.Connect()
	engine := testEngine(t, store)

	// All competencies fully missed: lowest ID wins the tie.
	report := reportWithRates(t, map[string]int{})
	saveAnalysis(t, store, "user-1", report)

	plan, err := engine.BuildPlan(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "C3", plan.FocusCompetency)
}
