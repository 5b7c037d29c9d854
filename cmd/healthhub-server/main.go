package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/healthhub/healthhub/internal/config"
	"github.com/healthhub/healthhub/internal/domain/anomaly"
	"github.com/healthhub/healthhub/internal/domain/healthgraph"
	"github.com/healthhub/healthhub/internal/domain/pharmacist"
	"github.com/healthhub/healthhub/internal/platform/db"
	"github.com/healthhub/healthhub/internal/platform/mcpserver"
)

const version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:          "healthhub-server",
		Short:        "HealthHub API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(graphCmd())
	rootCmd.AddCommand(anomaliesCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(mcpCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger writes JSON, or colourised console output in development.
func newLogger(env string, w io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HealthHub API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending Postgres migrations before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run Postgres migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(fn func(context.Context, *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrations")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, db.NewMigrator(pool, db.Migrations()))
}

func graphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Query the health graph",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "risk-paths <symptom>",
		Short: "Print the risk paths reachable from a symptom",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := healthgraph.NewSeeded().RiskPaths(strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), paths)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "connections <name>",
		Short: "Print the nodes directly connected to a node",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes, err := healthgraph.NewSeeded().ConnectedNodes(strings.Join(args, " "))
			if err != nil {
				return err
			}
			if nodes == nil {
				nodes = []healthgraph.Node{}
			}
			return printJSON(cmd.OutOrStdout(), nodes)
		},
	})

	return cmd
}

func anomaliesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anomalies <value>...",
		Short: "Flag outliers in a series of readings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, _ := cmd.Flags().GetFloat64("threshold")
			series, err := parseSeries(args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), anomaly.NewDetector(threshold).Analyze(series))
		},
	}
	cmd.Flags().Float64("threshold", anomaly.DefaultThreshold, "Z-score threshold")
	return cmd
}

// parseSeries accepts readings as separate arguments or comma-separated.
func parseSeries(args []string) ([]float64, error) {
	var out []float64
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			v, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid reading %q", part)
			}
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no readings given")
	}
	return out, nil
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate sample health data for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			days, _ := cmd.Flags().GetInt("days")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env, os.Stderr)
			ctx := context.Background()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := seedUser(ctx, a, userID, days)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().String("user", "demo-user", "User to seed")
	cmd.Flags().Int("days", 30, "Days of history to generate")
	return cmd
}

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the health graph, anomaly and pharmacist tools over MCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			transport, _ := cmd.Flags().GetString("transport")
			addr, _ := cmd.Flags().GetString("addr")
			threshold, _ := cmd.Flags().GetFloat64("threshold")

			// stdout carries the protocol, so logs go to stderr.
			logger := newLogger("", os.Stderr)
			srv := mcpserver.New(healthgraph.NewSeeded(), anomaly.NewDetector(threshold), pharmacist.NewAgent(), logger)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			switch transport {
			case "stdio":
				logger.Info().Msg("mcp server starting on stdio")
				return srv.Run(ctx, &mcp.StdioTransport{})
			case "http":
				handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
				logger.Info().Str("addr", addr).Msg("mcp server listening")
				return http.ListenAndServe(addr, handler)
			default:
				return fmt.Errorf("unknown transport %q (use stdio or http)", transport)
			}
		},
	}
	cmd.Flags().String("transport", "stdio", "Transport: stdio or http")
	cmd.Flags().String("addr", ":8081", "Listen address for the http transport")
	cmd.Flags().Float64("threshold", anomaly.DefaultThreshold, "Default z-score threshold for detect_anomalies")
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
