package analysis

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

type EthicsStatus string

const (
	EthicsPass  EthicsStatus = "PASS"
	EthicsFail  EthicsStatus = "FAIL"
	EthicsError EthicsStatus = "ERROR"
)

// EthicsVerdict gates whether the marker audit runs at all.
type EthicsVerdict struct {
	Status EthicsStatus `json:"status"`
	Reason string       `json:"reason"`
}

// Generator is the slice of the LLM gateway this engine needs.
type Generator interface {
	GenerateJSON(ctx context.Context, model string, prompt string) (*modelapi.Result, error)
	GenerateJSONFromMedia(ctx context.Context, model string, prompt string, media *modelapi.MediaHandle) (*modelapi.Result, error)
}

// UsageSink records token spend per call. May be nil.
type UsageSink interface {
	LogCall(ctx context.Context, userID, serviceType string, u modelapi.Usage)
}

// Content is the session material under audit: either a plain
// transcript or a handle to uploaded audio.
type Content struct {
	Transcript string
	Media      *modelapi.MediaHandle
}

func (c Content) IsAudio() bool {
	return c.Media != nil
}

type EngineConnectProps struct {
	Logger  *logger.LogMiddleware
	LLM     Generator
	Catalog *markers.Catalog
	Usage   UsageSink
}

// Engine runs the two-stage scoring pipeline: ethics gate first, then
// the 37-marker PCC audit.
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

func (e *Engine) generate(ctx context.Context, userID, serviceType, prompt string, content Content) (*modelapi.Result, error) {
	model := modelapi.ModelFor(content.IsAudio())

	var result *modelapi.Result
	var err error
	if content.IsAudio() {
		result, err = e.llm.GenerateJSONFromMedia(ctx, model, prompt, content.Media)
	} else {
		result, err = e.llm.GenerateJSON(ctx, model, prompts.WithTranscript(prompt, content.Transcript))
	}
	if err != nil {
		return nil, err
	}

	if e.usage != nil {
		e.usage.LogCall(ctx, userID, serviceType, result.Usage)
	}
	return result, nil
}

// CheckEthics is stage 1. Errors come back as data (status ERROR), not
// as Go errors, so the UI can always render a verdict.
func (e *Engine) CheckEthics(ctx context.Context, userID string, content Content, lang localization.Language) EthicsVerdict {
	tracer := otel.Tracer("analysis/CheckEthics")
	ctx, span := tracer.Start(ctx, "CheckEthics")
	defer span.End()

	span.SetAttributes(attribute.Bool("content.is_audio", content.IsAudio()))

	result, err := e.generate(ctx, userID, "ethics_check", prompts.EthicsCheck(lang), content)
	if err != nil {
		span.RecordError(err)
		e.logger.Logger(ctx).Error("[Analysis] Ethics check failed", zap.Error(err))
		return EthicsVerdict{Status: EthicsError, Reason: err.Error()}
	}

	var verdict EthicsVerdict
	if err := llmjson.Decode(result.Text, &verdict); err != nil {
		span.RecordError(err)
		e.logger.Logger(ctx).Error("[Analysis] Could not parse ethics verdict", zap.Error(err), zap.String("response", result.Text))
		return EthicsVerdict{Status: EthicsError, Reason: err.Error()}
	}

	e.logger.Logger(ctx).Info("[Analysis] Ethics check complete", zap.String("status", string(verdict.Status)))
	return verdict
}

// AnalyzeMarkers is stage 2: the full 37-marker PCC audit. The returned
// result is never nil; failures surface in its Error field so partial
// state stays renderable.
func (e *Engine) AnalyzeMarkers(ctx context.Context, userID string, content Content, lang localization.Language) *AnalysisResult {
	tracer := otel.Tracer("analysis/AnalyzeMarkers")
	ctx, span := tracer.Start(ctx, "AnalyzeMarkers")
	defer span.End()

	span.SetAttributes(attribute.Bool("content.is_audio", content.IsAudio()))

	result, err := e.generate(ctx, userID, "pcc_analysis", prompts.MarkerAnalysis(e.catalog, lang), content)
	if err != nil {
		span.RecordError(err)
		e.logger.Logger(ctx).Error("[Analysis] Marker analysis call failed", zap.Error(err))
		return &AnalysisResult{Error: err.Error()}
	}

	var analysis AnalysisResult
	if err := llmjson.Decode(result.Text, &analysis); err != nil {
		span.RecordError(err)
		e.logger.Logger(ctx).Error("[Analysis] Could not parse marker analysis", zap.Error(err))
		return &AnalysisResult{Error: err.Error()}
	}

	Normalize(&analysis)

	e.logger.Logger(ctx).Info("[Analysis] Marker analysis complete",
		zap.Int("markers_observed", analysis.MarkersObserved),
		zap.Float64("compliance", analysis.CompliancePercentage),
		zap.String("result", analysis.OverallPCCResult),
		zap.String("validation", analysis.ValidationWarning.Status))

	return &analysis
}

// SessionAudit is the combined outcome of both stages. Analysis stays
// nil when the ethics gate fails.
type SessionAudit struct {
	Ethics   EthicsVerdict   `json:"ethics"`
	Analysis *AnalysisResult `json:"analysis,omitempty"`
}

// AuditSession runs the full pipeline: ethics gate, then markers only
// when the gate did not FAIL.
func (e *Engine) AuditSession(ctx context.Context, userID string, content Content, lang localization.Language) *SessionAudit {
	tracer := otel.Tracer("analysis/AuditSession")
	ctx, span := tracer.Start(ctx, "AuditSession")
	defer span.End()

	audit := &SessionAudit{}
	audit.Ethics = e.CheckEthics(ctx, userID, content, lang)
	span.SetAttributes(attribute.String("ethics.status", string(audit.Ethics.Status)))

	if audit.Ethics.Status == EthicsFail {
		e.logger.Logger(ctx).Warn("[Analysis] Ethics gate failed, skipping marker analysis", zap.String("reason", audit.Ethics.Reason))
		return audit
	}

	audit.Analysis = e.AnalyzeMarkers(ctx, userID, content, lang)
	if audit.Analysis.Error == "" {
		audit.Analysis.EthicsStatus = string(audit.Ethics.Status)
	}
	return audit
}
