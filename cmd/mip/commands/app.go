package commands

import (
	"fmt"

	"github.com/joho/godotenv"

	"github.com/jebjergk/MIP-sub000/internal/training"
	"github.com/jebjergk/MIP-sub000/internal/trainingconfig"
	"github.com/jebjergk/MIP-sub000/pkg/config"
	"github.com/jebjergk/MIP-sub000/pkg/database"
	"github.com/jebjergk/MIP-sub000/pkg/logger"
	"github.com/jebjergk/MIP-sub000/pkg/metrics"
	"github.com/jebjergk/MIP-sub000/pkg/redis"
)

// app bundles the shared dependencies of every command
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	metrics  *metrics.Recorder
	training *training.Service
}

// newApp loads configuration and connects to the warehouse and redis.
// Redis failures degrade to a disabled client; warehouse failures are fatal.
func newApp() (*app, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if trainingConfig != "" {
		cfg.Training.ConfigPath = trainingConfig
	}

	log := logger.New(cfg)

	tcfg, _, err := trainingconfig.Load(cfg.Training.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load training config: %w", err)
	}
	hash, err := trainingconfig.Hash(tcfg)
	if err != nil {
		return nil, fmt.Errorf("hash training config: %w", err)
	}
	log.WithFields(map[string]interface{}{
		"config_id": tcfg.Meta.ConfigID,
		"version":   tcfg.Meta.Version,
		"hash":      hash[:12],
	}).Info("Training config loaded")

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to warehouse: %w", err)
	}

	rdb, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, cache and shared rate limit disabled")
		rdb = redis.Disabled()
	}

	var rec *metrics.Recorder
	if cfg.MetricsEnabled {
		rec = metrics.New()
	}

	repo := training.NewRepository(db.Pool, db.QueryTimeout())
	svc := training.NewService(repo, tcfg, log.Zerolog()).
		WithMetrics(rec).
		WithCache(redis.NewCache(rdb, "mip"), cfg.Training.CacheTTL)

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    rdb,
		metrics:  rec,
		training: svc,
	}, nil
}

// Close releases connections
func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
	a.db.Close()
}
