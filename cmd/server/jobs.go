package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jengzang/tracking-ops-backend/internal/config"
	"github.com/jengzang/tracking-ops-backend/internal/database"
	"github.com/jengzang/tracking-ops-backend/internal/logger"
	"github.com/jengzang/tracking-ops-backend/internal/middleware"
)

var (
	tickAt string

	tokenRole    string
	tokenOpsRole string
	tokenTTL     time.Duration
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		defer log.Sync()

		db, err := database.Open(database.Config{Path: cfg.DBPath})
		if err != nil {
			return err
		}
		defer db.Close()
		return database.Migrate(db, log)
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run one incident detection tick",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTick(cmd.Context(), func(ctx context.Context, a *app, at time.Time) (any, error) {
			return a.incidents.RunDetection(ctx, at)
		})
	},
}

var escalateCmd = &cobra.Command{
	Use:   "escalate",
	Short: "Run one escalation tick over open incidents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTick(cmd.Context(), func(ctx context.Context, a *app, at time.Time) (any, error) {
			return a.escalation.Run(ctx, at)
		})
	},
}

var sloSnapshotCmd = &cobra.Command{
	Use:   "slo-snapshot",
	Short: "Write the SLO snapshot for the current hour",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTick(cmd.Context(), func(ctx context.Context, a *app, at time.Time) (any, error) {
			return a.slo.Snapshot(ctx, at)
		})
	},
}

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Generate learning insights from the current aggregates",
	Long: `Generate learning insights from the current aggregates.

Insights are recommendations only. Policies, thresholds and the kill switch
are never changed by this command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTick(cmd.Context(), func(ctx context.Context, a *app, at time.Time) (any, error) {
			return a.learning.Run(ctx, at)
		})
	},
}

var seedOnCallCmd = &cobra.Command{
	Use:   "seed-oncall [file]",
	Short: "Load escalation policies and on-call schedules from YAML",
	Long: `Load escalation policies and on-call schedules from YAML.

Examples:
  tracking-ops seed-oncall ./oncall.yaml
  ONCALL_SEED_FILE=./oncall.yaml tracking-ops seed-oncall`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		path := a.cfg.OnCallSeedFile
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no seed file given and ONCALL_SEED_FILE is unset")
		}
		return seedOnCall(cmd.Context(), a, path)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token [subject]",
	Short: "Issue a signed bearer token for local testing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		tok, err := middleware.IssueToken(cfg.JWTSecret, args[0], tokenRole, middleware.OpsRole(tokenOpsRole), tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{detectCmd, escalateCmd, sloSnapshotCmd, learnCmd} {
		cmd.Flags().StringVar(&tickAt, "at", "", "evaluate as of this RFC3339 time instead of now")
	}

	tokenCmd.Flags().StringVar(&tokenRole, "role", middleware.RoleAdmin, "identity role (rider, customer, admin)")
	tokenCmd.Flags().StringVar(&tokenOpsRole, "ops-role", "", "ops tier for admin identities (OPS_VIEWER, OPS_ADMIN)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "token lifetime")
}

// runTick builds the app, runs fn once and prints its result as JSON
func runTick(ctx context.Context, fn func(ctx context.Context, a *app, at time.Time) (any, error)) error {
	at := time.Now()
	if tickAt != "" {
		parsed, err := time.Parse(time.RFC3339, tickAt)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		at = parsed
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	result, err := fn(ctx, a, at)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func seedOnCall(ctx context.Context, a *app, path string) error {
	seed, err := config.LoadOnCallSeed(path)
	if err != nil {
		return err
	}
	if _, _, err := a.oncall.Seed(ctx, seed); err != nil {
		return fmt.Errorf("failed to seed on-call directory from %s: %w", path, err)
	}
	return nil
}
