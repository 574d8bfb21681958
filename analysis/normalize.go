package analysis

import (
	"fmt"
	"sort"
	"strings"

	"coachmastery/markers"
)

const (
	MarkerObserved    = "Observed"
	MarkerNotObserved = "Not Observed"

	ResultPass = "Pass"
	ResultFail = "Fail"

	ValidationComplete   = "COMPLETE"
	ValidationIncomplete = "INCOMPLETE"

	// PassThreshold is the marker-compliance percentage at which a
	// session passes PCC level. Exactly 75.0 passes.
	PassThreshold = 75.0
)

// MarkerAssessment is the verdict for one observable behavior.
type MarkerAssessment struct {
	ID       string `json:"id"`
	Behavior string `json:"behavior,omitempty"`
	Status   string `json:"status"`
	Evidence string `json:"evidence,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

// CompetencyResult covers one competency. C1/C2 carry only a Pass/Fail
// status; C3..C8 enumerate their markers.
type CompetencyResult struct {
	Name          string             `json:"name"`
	Status        string             `json:"status,omitempty"`
	Feedback      string             `json:"feedback,omitempty"`
	MappedMarkers []string           `json:"mapped_markers,omitempty"`
	Markers       []MarkerAssessment `json:"markers,omitempty"`
}

// ValidationWarning surfaces incomplete model output without hiding the
// partial result.
type ValidationWarning struct {
	Status         string   `json:"status"`
	Message        string   `json:"message"`
	MissingMarkers []string `json:"missing_markers,omitempty"`
}

// AnalysisResult is the PCC marker audit for one session.
type AnalysisResult struct {
	TalkRatio            string                      `json:"talk_ratio,omitempty"`
	SilenceCount         int                         `json:"silence_count"`
	MarkersObserved      int                         `json:"markers_observed"`
	TotalMarkers         int                         `json:"total_markers"`
	CompliancePercentage float64                     `json:"compliance_percentage"`
	OverallPCCResult     string                      `json:"overall_pcc_result"`
	OverallScore         float64                     `json:"overall_score"`
	Competencies         map[string]CompetencyResult `json:"competencies"`
	ValidationWarning    *ValidationWarning          `json:"validation_warning,omitempty"`
	EthicsStatus         string                      `json:"ethics_status,omitempty"`
	Error                string                      `json:"error,omitempty"`
}

// CountObserved tallies Observed markers across all competencies.
func (r *AnalysisResult) CountObserved() int {
	count := 0
	for _, comp := range r.Competencies {
		for _, m := range comp.Markers {
			if m.Status == MarkerObserved {
				count++
			}
		}
	}
	return count
}

// Normalize reconciles a freshly parsed result with the completeness
// and score-derivation invariants:
//   - every enumerable competency must return its fixed marker count;
//     deficits become a validation warning, never a discarded result
//   - markers_observed, compliance_percentage and overall_pcc_result
//     are back-filled when the model omitted them
//   - total_markers is always 37 and overall_score is the legacy
//     compliance/10 projection
//
// Normalizing an already-complete result changes nothing.
func Normalize(r *AnalysisResult) {
	if r == nil {
		return
	}

	r.TotalMarkers = markers.TotalMarkers

	var missing []string
	compIDs := make([]string, 0, len(markers.ExpectedCounts))
	for compID := range markers.ExpectedCounts {
		compIDs = append(compIDs, compID)
	}
	sort.Strings(compIDs)

	for _, compID := range compIDs {
		expected := markers.ExpectedCounts[compID]
		actual := len(r.Competencies[compID].Markers)
		if actual < expected {
			missing = append(missing, fmt.Sprintf("%s: %d markers missing", compID, expected-actual))
		}
	}

	if len(missing) > 0 {
		r.ValidationWarning = &ValidationWarning{
			Status:         ValidationIncomplete,
			Message:        "Analysis incomplete: " + strings.Join(missing, ", "),
			MissingMarkers: missing,
		}
	} else {
		r.ValidationWarning = &ValidationWarning{
			Status:  ValidationComplete,
			Message: "All 37 markers evaluated",
		}
	}

	if r.MarkersObserved == 0 {
		r.MarkersObserved = r.CountObserved()
	}
	if r.CompliancePercentage == 0 && r.MarkersObserved > 0 {
		r.CompliancePercentage = float64(r.MarkersObserved) / float64(markers.TotalMarkers) * 100
	}
	if r.OverallPCCResult == "" {
		if r.CompliancePercentage >= PassThreshold {
			r.OverallPCCResult = ResultPass
		} else {
			r.OverallPCCResult = ResultFail
		}
	}

	// Legacy 0-10 projection kept for older dashboards and reports.
	r.OverallScore = r.CompliancePercentage / 10
}
