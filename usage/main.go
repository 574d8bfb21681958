package usage

import (
	"context"
	"time"

	"coachmastery/database"
	"coachmastery/logger"
	"coachmastery/modelapi"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// Pricing is the per-1K-token price sheet. Values come from config so
// a provider price change is a deploy, not a code change.
type Pricing struct {
	FlashPer1K float64
	ProPer1K   float64
}

// CalculateCost converts a token total into USD for the given model.
// Unknown models are billed at the flash rate.
func CalculateCost(totalTokens int32, model string, pricing Pricing) float64 {
	rate := pricing.FlashPer1K
	if model == modelapi.ModelPro {
		rate = pricing.ProPer1K
	}
	return float64(totalTokens) / 1000 * rate
}

type TrackerConnectProps struct {
	Logger  *logger.LogMiddleware
	Store   database.Store
	Pricing Pricing
}

// Tracker meters every model call: one usage log per call, priced at
// write time. Persistence failures are logged and swallowed so
// accounting never breaks a user-facing flow.
type Tracker struct {
	logger  *logger.LogMiddleware
	store   database.Store
	pricing Pricing
	now     func() time.Time
}

func Connect(args TrackerConnectProps) *Tracker {
	return &Tracker{
		logger:  args.Logger,
		store:   args.Store,
		pricing: args.Pricing,
		now:     time.Now,
	}
}

func (t *Tracker) LogCall(ctx context.Context, userID, serviceType string, u modelapi.Usage) {
	tracer := otel.Tracer("usage/LogCall")
	ctx, span := tracer.Start(ctx, "LogCall")
	defer span.End()

	log := &database.UsageLog{
		ID:          uuid.NewString(),
		UserID:      userID,
		ServiceType: serviceType,
		Model:       u.Model,
		TotalTokens: u.TotalTokens,
		CostUSD:     CalculateCost(u.TotalTokens, u.Model, t.pricing),
		CreatedAt:   t.now(),
	}

	if err := t.store.AddUsageLog(ctx, log); err != nil {
		span.RecordError(err)
		t.logger.Logger(ctx).Error("[Usage] Could not persist usage log",
			zap.Error(err),
			zap.String("service_type", serviceType))
	}
}

// Summary returns the user's lifetime aggregate.
func (t *Tracker) Summary(ctx context.Context, userID string) (*database.UsageSummary, error) {
	return t.store.GetUserUsage(ctx, userID)
}
