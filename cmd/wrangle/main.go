// Command wrangle scrapes understat.com datasets and writes them as tidy
// CSV tables.
//
// Usage:
//
//	wrangle run --season 2020 --league EPL --team Arsenal --match 14620 --player 318
//	wrangle ids regenerate --from 2014 --to 2020
//	wrangle export league-results --season 2020
//	wrangle shapes ../results
//	wrangle serve

// @title understat wrangler API
// @version 1.0.0
// @description Scrapes understat.com datasets on demand and serves them as tidy tables in JSON or CSV, plus the tables stored by pipeline runs.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @contact.name understat-wrangler
// @license.name MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/understat-wrangler/internal/api"
	"github.com/albapepper/understat-wrangler/internal/api/handler"
	"github.com/albapepper/understat-wrangler/internal/cache"
	"github.com/albapepper/understat-wrangler/internal/config"
	"github.com/albapepper/understat-wrangler/internal/db"
	"github.com/albapepper/understat-wrangler/internal/idcache"
	"github.com/albapepper/understat-wrangler/internal/listener"
	"github.com/albapepper/understat-wrangler/internal/maintenance"
	"github.com/albapepper/understat-wrangler/internal/pipeline"
	"github.com/albapepper/understat-wrangler/internal/sink"
	"github.com/albapepper/understat-wrangler/internal/understat"

	_ "github.com/albapepper/understat-wrangler/docs" // swagger docs
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "wrangle",
		Short:        "understat data wrangling CLI",
		SilenceUsage: true,
	}

	root.AddCommand(runCmd())
	root.AddCommand(idsCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(shapesCmd())
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	var (
		inputsFile  string
		in          config.Inputs
		positions   []string
		workers     int
		outRoot     string
		encoding    string
		noTimestamp bool
		toDB        bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch every dataset for the run inputs and write one CSV per table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(func(ctx context.Context, cfg *config.Config) error {
				inputs, err := loadInputs(cmd, inputsFile, cfg.InputsFile, in, positions)
				if err != nil {
					return err
				}
				if err := inputs.Validate(); err != nil {
					return fmt.Errorf("run inputs: %w", err)
				}
				if !cmd.Flags().Changed("workers") {
					workers = cfg.PipelineWorkers
				}
				if !cmd.Flags().Changed("out") {
					outRoot = cfg.OutputRoot
				}
				if !cmd.Flags().Changed("encoding") {
					encoding = cfg.OutputEncoding
				}
				timestamped := cfg.OutputTimestamped && !noTimestamp

				ids, err := idcache.Open(ctx, cfg.IDCacheDir)
				if err != nil {
					return err
				}
				teams, players := ids.Counts()
				logger.Info("ID cache loaded", "dir", cfg.IDCacheDir, "teams", teams, "players", players)

				now := time.Now()
				folder := pipeline.OutputFolder(outRoot, now, timestamped)
				csvSink, err := sink.NewCSV(folder, encoding, logger)
				if err != nil {
					return err
				}
				var out sink.Sink = csvSink

				var pool *db.Pool
				runID := now.UTC().Format("20060102T150405Z")
				if toDB || (cfg.HasDatabase() && !cmd.Flags().Changed("db")) {
					if !cfg.HasDatabase() {
						return fmt.Errorf("--db needs DATABASE_URL")
					}
					pool, err = db.New(ctx, cfg)
					if err != nil {
						return fmt.Errorf("connect to database: %w", err)
					}
					defer pool.Close()
					if err := pool.StartRun(ctx, runID, inputs); err != nil {
						return err
					}
					out = sink.Multi{csvSink, sink.NewPostgres(pool, runID, logger)}
					logger.Info("Writing tables to Postgres too", "run_id", runID)
				}

				svc := pipeline.NewService(newClient(cfg), ids, logger)
				result := svc.Run(ctx, inputs, out, workers)

				for _, e := range result.Errors {
					logger.Error(e)
				}
				if pool != nil {
					if err := pool.FinishRun(ctx, runID, result.TablesWritten, result.Errors); err != nil {
						logger.Error("Failed to record run outcome", "run_id", runID, "error", err)
					}
				}
				logger.Info("Run finished", "folder", folder, "summary", result.Summary())
				if result.Failed() == len(result.Stages) {
					return fmt.Errorf("every stage failed")
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&inputsFile, "inputs", "", "Run inputs file (default $WRANGLE_INPUTS or wrangle.json5)")
	f.IntVar(&in.Season, "season", 0, "Season start year, e.g. 2020 for 2020-21")
	f.StringVar(&in.LeagueName, "league", "", "League name (EPL, La Liga, Bundesliga, Serie A, Ligue 1, RFPL)")
	f.StringVar(&in.TeamName, "team", "", "Team name as understat spells it")
	f.StringVar(&in.MatchID, "match", "", "understat match id")
	f.StringVar(&in.PlayerID, "player", "", "understat player id")
	f.StringSliceVar(&positions, "positions", nil, "Positions kept in player stats; empty = all")
	f.BoolVar(&in.SortByDate, "sort-stats-by-date", false, "Order the league stats time series by date")
	f.IntVar(&workers, "workers", 4, "Concurrent stage count")
	f.StringVar(&outRoot, "out", "..", "Folder the results folder is created in")
	f.StringVar(&encoding, "encoding", sink.EncodingLatin1, "CSV encoding (latin-1, utf-8)")
	f.BoolVar(&noTimestamp, "no-timestamp", false, "Write to <out>/results instead of a timestamped folder")
	f.BoolVar(&toDB, "db", false, "Also store tables in Postgres (default on when DATABASE_URL is set)")
	return cmd
}

// loadInputs reads the inputs file and lets explicitly set flags override it.
// With every required flag set, a missing inputs file is fine.
func loadInputs(cmd *cobra.Command, file, fallback string, flags config.Inputs, positions []string) (config.Inputs, error) {
	if file == "" {
		file = fallback
	}
	in, err := config.ReadInputs(file)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info("No inputs file, using flags only", "file", file)
	case err != nil:
		return in, fmt.Errorf("read inputs: %w", err)
	}

	changed := cmd.Flags().Changed
	if changed("season") {
		in.Season = flags.Season
	}
	if changed("league") {
		in.LeagueName = flags.LeagueName
	}
	if changed("team") {
		in.TeamName = flags.TeamName
	}
	if changed("match") {
		in.MatchID = flags.MatchID
	}
	if changed("player") {
		in.PlayerID = flags.PlayerID
	}
	if changed("positions") {
		in.Positions = positions
	}
	if changed("sort-stats-by-date") {
		in.SortByDate = flags.SortByDate
	}
	return in, nil
}

// --------------------------------------------------------------------------
// ids command
// --------------------------------------------------------------------------

func idsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ids",
		Short: "Manage the team and player id caches",
	}
	cmd.AddCommand(idsRegenerateCmd())
	return cmd
}

func idsRegenerateCmd() *cobra.Command {
	var (
		from, to int
		leagues  []string
		workers  int
	)
	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Rebuild the id caches from every league and season",
		RunE: func(cmd *cobra.Command, args []string) error {
			if from > to {
				return fmt.Errorf("--from %d is after --to %d", from, to)
			}
			return withConfig(func(ctx context.Context, cfg *config.Config) error {
				store, err := idcache.Open(ctx, cfg.IDCacheDir)
				if err != nil {
					return err
				}
				svc := pipeline.NewService(newClient(cfg), store, logger)
				logger.Info("Regenerating IDs", "leagues", leagues, "from", from, "to", to)
				result, err := svc.RegenerateIDs(ctx, store, leagues, from, to, workers)
				for _, e := range result.Errors {
					logger.Error("id fetch error", "error", e)
				}
				return err
			})
		},
	}
	cmd.Flags().IntVar(&from, "from", 2014, "First season")
	cmd.Flags().IntVar(&to, "to", currentSeason(), "Last season")
	cmd.Flags().StringSliceVar(&leagues, "leagues", understat.TopFive, "Leagues to walk")
	cmd.Flags().IntVar(&workers, "workers", 2, "Concurrent league-season count")
	return cmd
}

// --------------------------------------------------------------------------
// export command
// --------------------------------------------------------------------------

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Bulk exports across leagues",
	}
	cmd.AddCommand(exportLeagueResultsCmd())
	return cmd
}

func exportLeagueResultsCmd() *cobra.Command {
	var (
		season   int
		leagues  []string
		outDir   string
		encoding string
	)
	cmd := &cobra.Command{
		Use:   "league-results",
		Short: "Write one results CSV per league with country, league, season and date columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(func(ctx context.Context, cfg *config.Config) error {
				if !cmd.Flags().Changed("encoding") {
					encoding = cfg.OutputEncoding
				}
				out, err := sink.NewCSV(outDir, encoding, logger)
				if err != nil {
					return err
				}
				// Results carry team titles only, so no id cache is needed.
				svc := pipeline.NewService(newClient(cfg), nil, logger)
				result := svc.ExportLeagueResults(ctx, leagues, season, out)
				for _, e := range result.Errors {
					logger.Error("export error", "error", e)
				}
				logger.Info("Export finished", "dir", outDir, "summary", result.Summary())
				if result.Leagues == 0 && len(leagues) > 0 {
					return fmt.Errorf("no league exported")
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&season, "season", currentSeason(), "Season start year")
	cmd.Flags().StringSliceVar(&leagues, "leagues", understat.TopFive, "Leagues to export")
	cmd.Flags().StringVar(&outDir, "out", ".", "Output folder")
	cmd.Flags().StringVar(&encoding, "encoding", sink.EncodingLatin1, "CSV encoding (latin-1, utf-8)")
	return cmd
}

// --------------------------------------------------------------------------
// shapes command
// --------------------------------------------------------------------------

func shapesCmd() *cobra.Command {
	var encoding string
	cmd := &cobra.Command{
		Use:   "shapes [dir]",
		Short: "Print rows x columns of every CSV under a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			root := cfg.OutputRoot
			if len(args) == 1 {
				root = args[0]
			}
			if !cmd.Flags().Changed("encoding") {
				encoding = cfg.OutputEncoding
			}
			shapes, err := sink.Shapes(root, encoding)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, s := range shapes {
				fmt.Fprintln(w, s.String())
			}
			fmt.Fprintf(w, "%d CSV files\n", len(shapes))
			return nil
		},
	}
	cmd.Flags().StringVar(&encoding, "encoding", sink.EncodingLatin1, "CSV encoding (latin-1, utf-8)")
	return cmd
}

// --------------------------------------------------------------------------
// serve command
// --------------------------------------------------------------------------

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve wrangled datasets over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(serve)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	ids, err := idcache.Open(ctx, cfg.IDCacheDir)
	if err != nil {
		return err
	}

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	defer appCache.Close()
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled, "ttl", cfg.CacheTTL)

	// Connect to database when configured
	var runs *db.Pool
	if cfg.HasDatabase() {
		logger.Info("Connecting to database...")
		runs, err = db.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer runs.Close()
		logger.Info("Database connected",
			"min_conns", cfg.DBPoolMinConns,
			"max_conns", cfg.DBPoolMaxConns)

		// Drop cached latest-run responses whenever a run finishes
		go listener.Start(ctx, cfg.DatabaseURL, listener.InvalidateLatest(appCache, logger), logger)

		// Run retention
		go maintenance.Start(ctx, runs, maintenance.Config{
			PruneInterval: cfg.RunPruneInterval,
			KeepRuns:      cfg.RunRetention,
		}, func() { appCache.DeletePrefix(handler.RunsCachePrefix) }, logger)
	}

	svc := pipeline.NewService(newClient(cfg), ids, logger)
	var router http.Handler
	if runs != nil {
		router = api.NewRouter(svc, runs, appCache, cfg, logger)
	} else {
		router = api.NewRouter(svc, nil, appCache, cfg, logger)
	}

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting understat wrangler API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
	return nil
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// withConfig handles config loading and context cancellation.
func withConfig(fn func(ctx context.Context, cfg *config.Config) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Debug {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	slog.SetDefault(logger)

	return fn(ctx, cfg)
}

func newClient(cfg *config.Config) *understat.Client {
	return understat.NewClient(cfg.UnderstatBaseURL, cfg.RequestsPerMinute, cfg.RequestTimeout, logger)
}

// currentSeason is the start year of the season running today.
func currentSeason() int {
	now := time.Now()
	if now.Month() >= time.July {
		return now.Year()
	}
	return now.Year() - 1
}
