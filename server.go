package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"coachmastery/analysis"
	"coachmastery/auth"
	"coachmastery/config"
	"coachmastery/database"
	"coachmastery/database/firestoredb"
	"coachmastery/database/memorydb"
	"coachmastery/database/postgres"
	"coachmastery/knowledge"
	"coachmastery/localization"
	"coachmastery/logger"
	"coachmastery/markers"
	"coachmastery/modelapi/deepgramapi"
	"coachmastery/modelapi/geminiapi"
	"coachmastery/recommend"
	"coachmastery/simulation"
	"coachmastery/telegram"
	"coachmastery/training"
	"coachmastery/usage"
	"coachmastery/webserver"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperdxio/opentelemetry-logs-go/exporters/otlp/otlplogs"
	sdk "github.com/hyperdxio/opentelemetry-logs-go/sdk/logs"
	"github.com/hyperdxio/otel-config-go/otelconfig"
)

func main() {
	godotenv.Load()

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		log.Fatalf("Error setting up OTel SDK - %e", err)
	}
	defer otelShutdown()
	ctx := context.Background()

	logExporter, _ := otlplogs.NewExporter(ctx)
	loggerProvider := sdk.NewLoggerProvider(sdk.WithBatcher(logExporter))
	defer loggerProvider.Shutdown(ctx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration - %e", err)
	}

	LogMiddleware := logger.Connect(logger.LoggerConnectProps{Production: cfg.Production, LoggerProvider: loggerProvider})
	defer LogMiddleware.Sync()
	Logger := LogMiddleware.Logger(ctx)

	catalog, err := markers.Load(cfg.MarkersPath)
	if err != nil {
		Logger.Error(localization.Message(localization.MsgCatalogMissing, localization.English), zap.Error(err))
		os.Exit(1)
	}

	var store database.Store
	switch cfg.StorageBackend {
	case "firestore":
		fs, err := firestoredb.Connect(ctx, firestoredb.StoreConnectProps{Logger: LogMiddleware, ProjectID: cfg.GCPProjectID})
		if err != nil {
			Logger.Error("[Server] Could not connect to Firestore", zap.Error(err))
			os.Exit(1)
		}
		store = fs
	case "memory":
		store = memorydb.Connect()
	default:
		store = postgres.Connect(ctx, postgres.DatabaseConnectProps{Logger: LogMiddleware})
	}

	gemini := geminiapi.Connect(ctx, geminiapi.GeminiConnectProps{Logger: LogMiddleware, APIKey: cfg.GeminiAPIKey})
	deepgram := deepgramapi.Connect(LogMiddleware)

	tracker := usage.Connect(usage.TrackerConnectProps{
		Logger:  LogMiddleware,
		Store:   store,
		Pricing: usage.Pricing{FlashPer1K: cfg.FlashCostPer1K, ProPer1K: cfg.ProCostPer1K},
	})

	analysisEngine := analysis.Connect(analysis.EngineConnectProps{Logger: LogMiddleware, LLM: gemini, Catalog: catalog, Usage: tracker})
	simulationEngine := simulation.Connect(simulation.EngineConnectProps{Logger: LogMiddleware, LLM: gemini, Usage: tracker})
	trainingEngine := training.Connect(training.EngineConnectProps{Logger: LogMiddleware, LLM: gemini, Catalog: catalog, Usage: tracker})
	knowledgeEngine := knowledge.Connect(knowledge.EngineConnectProps{Logger: LogMiddleware, LLM: gemini, Catalog: catalog, Usage: tracker})
	recommendEngine := recommend.Connect(recommend.EngineConnectProps{Logger: LogMiddleware, Store: store, Catalog: catalog})

	authService := auth.Connect(auth.ServiceConnectProps{Logger: LogMiddleware, Store: store, Secret: cfg.JWTSecret})

	server := webserver.Connect(webserver.ServerConnectProps{
		Logger:      LogMiddleware,
		Auth:        authService,
		Store:       store,
		Analysis:    analysisEngine,
		Simulation:  simulationEngine,
		Training:    trainingEngine,
		Knowledge:   knowledgeEngine,
		Recommend:   recommendEngine,
		Usage:       tracker,
		Media:       gemini,
		Transcriber: deepgram,
	})

	if cfg.TelegramBotToken != "" {
		telegramBot := telegram.Connect(ctx, telegram.TelegramConnectProps{
			Logger:    LogMiddleware,
			Knowledge: knowledgeEngine,
			Training:  trainingEngine,
		})
		go telegramBot.Listen(ctx)
	}

	if cfg.Production {
		Logger.Info("[Server] Starting in production mode", zap.String("port", cfg.Port))
	} else {
		Logger.Info("[Server] Starting in development mode", zap.String("port", cfg.Port))
	}

	if err := http.ListenAndServe(":"+cfg.Port, server.Handler()); err != nil {
		Logger.Error("[Server] HTTP server stopped", zap.Error(err))
		os.Exit(1)
	}
}
