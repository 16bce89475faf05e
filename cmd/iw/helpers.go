package main

import (
	"fmt"
	"log"

	"github.com/zulandar/inkwell/internal/config"
	"github.com/zulandar/inkwell/internal/db"
	"github.com/zulandar/inkwell/internal/notify"
	"github.com/zulandar/inkwell/internal/pipeline"
	"github.com/zulandar/inkwell/internal/ratelimit"
	"github.com/zulandar/inkwell/internal/sources"
	"gorm.io/gorm"
)

// connectFromConfig loads the config file and opens the database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(db.Settings{
		Driver:   cfg.Database.Driver,
		Path:     cfg.Database.Path,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Database: cfg.Database.Database,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// buildExecutor wires a pipeline executor from config. Notification failures
// fall back to log-only delivery rather than blocking startup.
func buildExecutor(cfg *config.Config, gormDB *gorm.DB) *pipeline.Executor {
	notifier, err := notify.FromConfig(cfg.Notify)
	if err != nil {
		log.Printf("iw: %v (falling back to log notifications)", err)
		notifier = &notify.LogNotifier{}
	}

	rates := make(map[string]int, len(cfg.Sources))
	for _, s := range cfg.Sources {
		rates[s.Platform] = s.RatePerMin
	}

	return &pipeline.Executor{
		DB:          gormDB,
		Fetcher:     &sources.CommandFetcher{Sources: cfg.Sources},
		Drafter:     &pipeline.CommandDrafter{Command: cfg.Pipeline.DraftCommand},
		Notifier:    notifier,
		Limiter:     ratelimit.New(),
		SourceRates: rates,
		CallTimeout: cfg.Pipeline.CallTimeout,
		MaxRetries:  *cfg.Pipeline.MaxRetries,
	}
}
