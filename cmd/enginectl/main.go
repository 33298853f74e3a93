// Command enginectl drives all-bot rollouts of the game engine for local
// smoke testing, the way hector's CLI drives a config-first agent server:
// a kong command tree, slog logging initialised from flags, one
// subcommand per operation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/deniz-birlikci/deception-RL/pkg/deck"
	"github.com/deniz-birlikci/deception-RL/pkg/engine"
	"github.com/deniz-birlikci/deception-RL/pkg/gameconfig"
	"github.com/deniz-birlikci/deception-RL/pkg/logger"
	"github.com/deniz-birlikci/deception-RL/pkg/model"
	"github.com/deniz-birlikci/deception-RL/pkg/orchestrator"
	"github.com/deniz-birlikci/deception-RL/pkg/telemetry"
)

// CLI defines the command-line interface.
type CLI struct {
	Rollout  RolloutCmd  `cmd:"" help:"Run N all-bot games to completion and report outcomes."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	LogLevel string      `help:"Log level (debug, info, warn, error)." default:"info"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println("enginectl dev")
	return nil
}

// RolloutCmd runs Count independent all-bot games and reports win-rate
// statistics, with no trainable policy seat at the table.
type RolloutCmd struct {
	Config         string  `short:"c" help:"Path to a gameconfig YAML file." type:"path"`
	Count          int     `help:"Number of games to run." default:"10"`
	Seed           int64   `help:"Base RNG seed; game i uses Seed+i." default:"1"`
	SecurityTarget int     `help:"Security track win target." default:"5"`
	SabotageTarget int     `help:"Sabotage track win target." default:"6"`
	Promotion      int     `help:"Promotion threshold." default:"3"`
	Oversample     float64 `help:"Impostor oversample probability (0 = uniform)." default:"0"`
}

func (c *RolloutCmd) Run(cli *CLI) error {
	cfg := gameconfig.Default()
	if c.Config != "" {
		loaded, err := gameconfig.Load(c.Config)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg.SecurityTarget = c.SecurityTarget
		cfg.SabotageTarget = c.SabotageTarget
		cfg.PromotionThreshold = c.Promotion
		cfg.ImpostorOversampleProb = c.Oversample
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	metrics := telemetry.NewMetrics(&telemetry.MetricsConfig{Enabled: true, Namespace: "enginectl"})
	e := engine.New().WithMetrics(metrics)

	metricsSrv := &http.Server{Addr: "127.0.0.1:9090", Handler: e.MetricsHandler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Warn("metrics server stopped", "error", err)
		}
	}()
	defer metricsSrv.Close()

	wins := map[string]int{}
	for i := 0; i < c.Count; i++ {
		seed := c.Seed + int64(i)
		gameID := fmt.Sprintf("rollout-%d", i)

		roleCfg := orchestrator.Config{
			GameID:             gameID,
			Deck:               deck.New(deck.Config{TotalSabotage: cfg.DeckTotalSabotage, TotalSecurity: cfg.DeckTotalSecurity, RNG: rand.New(rand.NewSource(seed))}),
			RoleSlots:          allBotSlots(seed),
			SecurityTarget:     cfg.SecurityTarget,
			SabotageTarget:     cfg.SabotageTarget,
			PromotionThreshold: cfg.PromotionThreshold,
			ImpostorOversampleProb: cfg.ImpostorOversampleProb,
			RNG:                rand.New(rand.NewSource(seed)),
			Metrics:            metrics,
		}

		msg, err := e.Create(ctx, gameID, roleCfg)
		if err != nil {
			return fmt.Errorf("game %d: create: %w", i, err)
		}
		for msg.Terminal == nil {
			msg, err = e.Execute(ctx, gameID, model.ModelOutput{})
			if err != nil {
				return fmt.Errorf("game %d: execute: %w", i, err)
			}
		}

		team := "none"
		if msg.Terminal.WinningTeam != nil {
			team = string(*msg.Terminal.WinningTeam)
		}
		wins[team]++
		slog.Info("game finished", "game_id", gameID, "winning_team", team, "reward", msg.Terminal.Reward)
	}

	for team, count := range wins {
		fmt.Printf("%-10s %d/%d (%.1f%%)\n", team, count, c.Count, 100*float64(count)/float64(c.Count))
	}
	return nil
}

// allBotSlots builds five opponent-only role slots seeded deterministically
// off gameSeed so each bot's randomness is reproducible per game.
func allBotSlots(gameSeed int64) []orchestrator.RoleSlot {
	ids := []string{"a1", "a2", "a3", "a4", "a5"}
	slots := make([]orchestrator.RoleSlot, len(ids))
	for i, id := range ids {
		slots[i] = orchestrator.RoleSlot{
			AgentID:  id,
			Opponent: &randomBot{rng: rand.New(rand.NewSource(gameSeed + int64(i) + 1))},
		}
	}
	return slots
}

func main() {
	_ = gameconfig.LoadEnvFiles()

	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("enginectl"),
		kong.Description("Local rollout driver for the game engine."),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	logger.Init(level, os.Stderr, "simple")

	start := time.Now()
	err = kctx.Run(&cli)
	slog.Debug("command finished", "duration", time.Since(start))
	kctx.FatalIfErrorf(err)
}
