package knowledge

import (
	"context"

	"coachmastery/localization"
	"coachmastery/logger"
	"coachmastery/markers"
	"coachmastery/modelapi"
	"coachmastery/modelapi/llmjson"
	"coachmastery/prompts"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// growContext is the second pillar of the tutor's knowledge base next
// to the marker catalog. The tutor declines questions outside these
// two sources.
const growContext = `GROW Model (Whitmore):
- Goal: What does the client want? Establish the session outcome and a longer-term aspiration. Goals should be owned by the client, specific, and positively framed.
- Reality: Where is the client now? Explore the current situation, what has been tried, what is actually happening. Raise awareness without judgment.
- Options: What could the client do? Generate the widest possible range of alternatives before evaluating any of them. The coach draws options out rather than supplying them.
- Will (Way Forward): What will the client do? Convert insight into committed action: what, when, with whose support, and how committed (1-10) the client feels.

GROW maps onto the PCC competencies: Goal setting exercises C3 (agreements), Reality exploration leans on C6 (listening) and C7 (evoking awareness), and Will consolidates C8 (facilitating growth).`

type Generator interface {
	GenerateJSON(ctx context.Context, model string, prompt string) (*modelapi.Result, error)
}

type UsageSink interface {
	LogCall(ctx context.Context, userID, serviceType string, u modelapi.Usage)
}

type EngineConnectProps struct {
	Logger  *logger.LogMiddleware
	LLM     Generator
	Catalog *markers.Catalog
	Usage   UsageSink
}

// Engine answers trainee questions from the marker catalog and the GROW
// model, declining anything outside that scope.
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

type tutorAnswer struct {
	Answer string `json:"answer"`
}

// Ask answers one trainee question. The guardrails live in the prompt;
// off-topic questions come back as the model's polite decline, still a
// normal answer from the caller's point of view.
func (e *Engine) Ask(ctx context.Context, userID, question string, lang localization.Language) (string, error) {
	tracer := otel.Tracer("knowledge/Ask")
	ctx, span := tracer.Start(ctx, "Ask")
	defer span.End()

	prompt := prompts.Tutor(e.catalog, growContext, question, lang)
	answer, err := llmjson.Do(ctx, llmjson.DefaultAttempts,
		func(ctx context.Context) (string, error) {
			result, err := e.llm.GenerateJSON(ctx, modelapi.ModelFlash, prompt)
			if err != nil {
				return "", err
			}
			if e.usage != nil {
				e.usage.LogCall(ctx, userID, "tutor", result.Usage)
			}
			return result.Text, nil
		},
		func(a tutorAnswer) bool { return a.Answer != "" },
	)
	if err != nil {
		span.RecordError(err)
		e.logger.Logger(ctx).Error("[Knowledge] Tutor answer failed", zap.Error(err))
		return "", err
	}

	return answer.Answer, nil
}
