// Package main provides the arena server binary that serves the combat
// resolution API over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/grimholt/skirmish/internal/api"
	"github.com/grimholt/skirmish/internal/config"
	"github.com/grimholt/skirmish/internal/game/boss"
	"github.com/grimholt/skirmish/internal/game/combat"
	"github.com/grimholt/skirmish/internal/game/engine"
	"github.com/grimholt/skirmish/internal/game/settlement"
	"github.com/grimholt/skirmish/internal/narration"
	"github.com/grimholt/skirmish/internal/observability"
	"github.com/grimholt/skirmish/internal/scripting"
	"github.com/grimholt/skirmish/internal/server"
	"github.com/grimholt/skirmish/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting arena server",
		zap.String("http_addr", cfg.HTTP.Addr()),
	)

	// Connect to PostgreSQL for combat persistence
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	store := postgres.NewStore(pool)

	// Load skill definitions
	contentStart := time.Now()
	skills, err := combat.LoadSkills(cfg.Content.SkillsDir)
	if err != nil {
		logger.Fatal("loading skill definitions", zap.Error(err))
	}
	logger.Info("loaded skill definitions",
		zap.Int("count", len(skills.All())),
	)

	// Load boss templates
	bosses, err := boss.LoadTemplates(cfg.Content.BossesDir)
	if err != nil {
		logger.Fatal("loading boss templates", zap.Error(err))
	}
	logger.Info("loaded boss templates",
		zap.Int("count", len(bosses.All())),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	// Initialise boss scripting
	var scriptMgr *scripting.Manager
	if cfg.Content.ScriptsDir != "" {
		if info, statErr := os.Stat(cfg.Content.ScriptsDir); statErr == nil && info.IsDir() {
			scriptStart := time.Now()
			scriptMgr = scripting.NewManager(logger)
			scriptMgr.Announce = func(msg string) {
				logger.Info("boss announcement", zap.String("message", msg))
			}
			if err := scriptMgr.LoadDir(cfg.Content.ScriptsDir, cfg.Content.ScriptInstructionLimit); err != nil {
				logger.Fatal("loading boss scripts",
					zap.String("dir", cfg.Content.ScriptsDir), zap.Error(err))
			}
			defer scriptMgr.Close()
			logger.Info("boss scripts loaded",
				zap.String("dir", cfg.Content.ScriptsDir),
				zap.Duration("elapsed", time.Since(scriptStart)))
		} else {
			logger.Warn("scripts dir not found, scripting disabled",
				zap.String("dir", cfg.Content.ScriptsDir))
		}
	}

	settler := settlement.New(store, logger, settlement.Config{
		BaseXP:           cfg.Combat.BaseXP,
		BossXPMultiplier: cfg.Combat.BossXPMultiplier,
		FactionID:        cfg.Combat.FactionID,
		WinReputation:    cfg.Combat.WinReputation,
		LossReputation:   cfg.Combat.LossReputation,
	})

	var hooks engine.PhaseHooks
	if scriptMgr != nil {
		hooks = scriptMgr
	}
	eng := engine.New(store, skills, bosses, settler, hooks, logger, engine.Config{
		MaxSteps:  cfg.Combat.MaxSteps,
		SpreadPct: cfg.Combat.SpreadPct,
	})

	var narrator api.Narrator
	if cfg.Narration.Enabled {
		completer := narration.NewAnthropicCompleter(cfg.Narration.Model, cfg.Narration.MaxTokens)
		narrator = narration.NewNarrator(store, completer, logger)
		logger.Info("narration enabled", zap.String("model", cfg.Narration.Model))
	}

	handler := api.NewHandler(eng, store,
		api.NewIdempotencyCache(cfg.Combat.IdempotencyTTL), narrator, logger)
	router := api.NewRouter(handler, logger)

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			logger.Info("HTTP server listening",
				zap.String("addr", cfg.HTTP.Addr()),
			)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("serving on %s: %w", cfg.HTTP.Addr(), err)
			}
			return nil
		},
		StopFn: func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownGrace)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
		},
	})

	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			for {
				time.Sleep(30 * time.Second)
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		},
		StopFn: func() {
			pool.Close()
		},
	})

	logger.Info("arena server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("http_addr", cfg.HTTP.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
