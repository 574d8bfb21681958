package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port       string `env:"PORT" envDefault:"8080"`
	Production bool   `env:"PRODUCTION"`

	GeminiAPIKey string `env:"GEMINI_SECRET_KEY"`
	MarkersPath  string `env:"MARKERS_PATH" envDefault:"markers.json"`

	// "postgres", "firestore" or "memory".
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"postgres"`
	GCPProjectID   string `env:"GCP_PROJECT_ID"`

	JWTSecret string `env:"JWT_SECRET_KEY"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`

	// Approximate blended USD cost per 1K tokens per model tier. These
	// are bookkeeping estimates, not a pricing contract.
	FlashCostPer1K float64 `env:"FLASH_COST_PER_1K" envDefault:"0.0025"`
	ProCostPer1K   float64 `env:"PRO_COST_PER_1K" envDefault:"0.042"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
