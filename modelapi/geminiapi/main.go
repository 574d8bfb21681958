package geminiapi

import (
	"coachmastery/logger"
	"coachmastery/modelapi"
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"google.golang.org/genai"
)

type GeminiConnectProps struct {
	Logger *logger.LogMiddleware
	APIKey string
}

type Gemini struct {
	logger    *logger.LogMiddleware
	client    *genai.Client
	semaphore *semaphore.Weighted
}

const uploadPollInterval = 1 * time.Second

func Connect(ctx context.Context, args GeminiConnectProps) *Gemini {
	tracer := otel.Tracer("geminiapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()
	args.Logger.Logger(ctx).Info("[GeminiAPI] Connecting Gemini API client")

	maxWorkers := 10
	sem := semaphore.NewWeighted(int64(maxWorkers))
	span.SetAttributes(attribute.Int("maxWorkers", maxWorkers))

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  args.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		args.Logger.Logger(ctx).Error("[GeminiAPI] Could not create Gemini client", zap.Error(err))
		os.Exit(21)
	}

	return &Gemini{logger: args.Logger, client: client, semaphore: sem}
}

func (g *Gemini) generationConfig() *genai.GenerateContentConfig {
	thinkingBudget := int32(0)

	safetySettings := []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
	}

	return &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		SafetySettings:   safetySettings,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
	}
}

// GenerateJSON runs one structured-output generation call. There is no
// retry here: callers that want bounded retry wrap this with llmjson.Do.
func (g *Gemini) GenerateJSON(ctx context.Context, model string, prompt string) (*modelapi.Result, error) {
	tracer := otel.Tracer("geminiapi/GenerateJSON")
	ctx, span := tracer.Start(ctx, "GenerateJSON")
	defer span.End()

	span.SetAttributes(
		attribute.String("request.model", model),
		attribute.Int("prompt.length", len(prompt)),
	)

	return g.generate(ctx, model, genai.Text(prompt))
}

// GenerateJSONFromMedia generates against a prompt plus previously
// uploaded media (see UploadAudio).
func (g *Gemini) GenerateJSONFromMedia(ctx context.Context, model string, prompt string, media *modelapi.MediaHandle) (*modelapi.Result, error) {
	tracer := otel.Tracer("geminiapi/GenerateJSONFromMedia")
	ctx, span := tracer.Start(ctx, "GenerateJSONFromMedia")
	defer span.End()

	span.SetAttributes(
		attribute.String("request.model", model),
		attribute.String("media.mime_type", media.MIMEType),
	)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromURI(media.URI, media.MIMEType),
		}, genai.RoleUser),
	}

	return g.generate(ctx, model, contents)
}

func (g *Gemini) generate(ctx context.Context, model string, contents []*genai.Content) (*modelapi.Result, error) {
	if err := g.semaphore.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquiring generation slot: %w", err)
	}
	defer g.semaphore.Release(1)

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, g.generationConfig())
	if err != nil {
		g.logger.Logger(ctx).Error("[GeminiAPI] Error generating content", zap.Error(err), zap.String("model", model))
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		g.logger.Logger(ctx).Warn("[GeminiAPI] Received empty response", zap.String("model", model))
		return nil, fmt.Errorf("gemini returned empty response")
	}

	result := &modelapi.Result{
		Text:  resp.Text(),
		Usage: modelapi.Usage{Model: model},
	}
	if meta := resp.UsageMetadata; meta != nil {
		result.Usage.InputTokens = meta.PromptTokenCount
		result.Usage.OutputTokens = meta.CandidatesTokenCount
		result.Usage.TotalTokens = meta.TotalTokenCount
	}

	g.logger.Logger(ctx).Info("[GeminiAPI] Generation successful",
		zap.String("model", model),
		zap.Int32("tokens.total", result.Usage.TotalTokens))

	return result, nil
}

// UploadAudio pushes an audio file to the provider's file store and
// polls until processing reaches a terminal state. A FAILED state is a
// terminal error aborting the analysis request.
func (g *Gemini) UploadAudio(ctx context.Context, path string, mimeType string) (*modelapi.MediaHandle, error) {
	tracer := otel.Tracer("geminiapi/UploadAudio")
	ctx, span := tracer.Start(ctx, "UploadAudio")
	defer span.End()

	span.SetAttributes(
		attribute.String("file.path", path),
		attribute.String("file.mime_type", mimeType),
	)

	file, err := g.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		g.logger.Logger(ctx).Error("[GeminiAPI] Audio upload failed", zap.Error(err))
		return nil, fmt.Errorf("uploading audio: %w", err)
	}

	for file.State == genai.FileStateProcessing {
		span.AddEvent("Waiting for audio processing")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(uploadPollInterval):
		}

		file, err = g.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, fmt.Errorf("polling uploaded audio: %w", err)
		}
	}

	if file.State == genai.FileStateFailed {
		g.logger.Logger(ctx).Error("[GeminiAPI] Audio processing failed", zap.String("file", file.Name))
		return nil, fmt.Errorf("audio processing failed")
	}

	g.logger.Logger(ctx).Info("[GeminiAPI] Audio uploaded", zap.String("file", file.Name), zap.String("state", string(file.State)))

	return &modelapi.MediaHandle{
		Name:     file.Name,
		URI:      file.URI,
		MIMEType: file.MIMEType,
	}, nil
}

// DeleteMedia removes an uploaded file once analysis is done.
func (g *Gemini) DeleteMedia(ctx context.Context, handle *modelapi.MediaHandle) {
	tracer := otel.Tracer("geminiapi/DeleteMedia")
	ctx, span := tracer.Start(ctx, "DeleteMedia")
	defer span.End()

	if _, err := g.client.Files.Delete(ctx, handle.Name, nil); err != nil {
		g.logger.Logger(ctx).Warn("[GeminiAPI] Could not delete uploaded media", zap.Error(err), zap.String("file", handle.Name))
	}
}
