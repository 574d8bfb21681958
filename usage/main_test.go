package usage_test

import (
	"context"
	"testing"

	"coachmastery/database/memorydb"
	"coachmastery/logger"
	"coachmastery/modelapi"
	"coachmastery/usage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pricing = usage.Pricing{FlashPer1K: 0.0025, ProPer1K: 0.042}

func TestCalculateCost(t *testing.T) {
	assert.InDelta(t, 0.0025, usage.CalculateCost(1000, modelapi.ModelFlash, pricing), 1e-9)
	assert.InDelta(t, 0.042, usage.CalculateCost(1000, modelapi.ModelPro, pricing), 1e-9)
	assert.InDelta(t, 0.105, usage.CalculateCost(2500, modelapi.ModelPro, pricing), 1e-9)
	assert.Zero(t, usage.CalculateCost(0, modelapi.ModelFlash, pricing))
}

func TestCalculateCostUnknownModelBilledAsFlash(t *testing.T) {
	assert.InDelta(t, 0.0025, usage.CalculateCost(1000, "some-future-model", pricing), 1e-9)
}

func TestTrackerAggregates(t *testing.T) {
	store := memorydb.Connect()
	tracker := usage.Connect(usage.TrackerConnectProps{
		Logger:  logger.Connect(logger.LoggerConnectProps{Production: false}),
		Store:   store,
		Pricing: pricing,
	})

	ctx := context.Background()
	tracker.LogCall(ctx, "user-1", "ethics_check", modelapi.Usage{Model: modelapi.ModelFlash, TotalTokens: 1000})
	tracker.LogCall(ctx, "user-1", "pcc_analysis", modelapi.Usage{Model: modelapi.ModelPro, TotalTokens: 2000})
	tracker.LogCall(ctx, "user-2", "quiz", modelapi.Usage{Model: modelapi.ModelFlash, TotalTokens: 500})

	summary, err := tracker.Summary(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalCalls)
	assert.Equal(t, int64(3000), summary.TotalTokens)
	assert.InDelta(t, 0.0025+0.084, summary.TotalCostUSD, 1e-9)

	other, err := tracker.Summary(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, 1, other.TotalCalls)
}
