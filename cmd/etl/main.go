// Command etl ingests NYC civic open-data feeds into the canonical PostGIS
// store. One invocation runs one ingestion window and exits; scheduling is
// left to cron or the orchestrator.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	httpadapter "github.com/citypulse/civic-etl/internal/adapter/http"
	"github.com/citypulse/civic-etl/internal/adapter/noaa"
	"github.com/citypulse/civic-etl/internal/adapter/postgres"
	"github.com/citypulse/civic-etl/internal/adapter/socrata"
	"github.com/citypulse/civic-etl/internal/config"
	"github.com/citypulse/civic-etl/internal/domain"
	"github.com/citypulse/civic-etl/internal/geometry"
	"github.com/citypulse/civic-etl/internal/observability"
	"github.com/citypulse/civic-etl/internal/pipeline"
	"github.com/citypulse/civic-etl/internal/spatial"
)

var (
	flagSources []string
	flagStart   string
	flagEnd     string
	flagYear    int
	flagMonth   int
	flagLimit   int
	flagDryRun  bool
	flagNoHTTP  bool
)

var rootCmd = &cobra.Command{
	Use:   "etl",
	Short: "NYC civic open-data ingestion pipeline",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion window and exit",
	Long: "Fetches each selected source over the date window, normalizes and " +
		"enriches the records, and loads them into the canonical store. " +
		"Defaults to every source over the trailing seven days.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runIngestion(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&flagSources, "source", nil,
		fmt.Sprintf("sources to ingest (default all): %v", pipeline.SourceNames()))
	runCmd.Flags().StringVar(&flagStart, "start-date", "", "window start, YYYY-MM-DD")
	runCmd.Flags().StringVar(&flagEnd, "end-date", "", "window end, YYYY-MM-DD")
	runCmd.Flags().IntVar(&flagYear, "year", 0, "ingest one calendar month: year (requires --month)")
	runCmd.Flags().IntVar(&flagMonth, "month", 0, "ingest one calendar month: month 1-12 (requires --year)")
	runCmd.Flags().IntVar(&flagLimit, "limit", 0, "cap records per source (0 = config default)")
	runCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "fetch and transform but do not load")
	runCmd.Flags().BoolVar(&flagNoHTTP, "no-http", false, "do not expose health/metrics endpoints during the run")
	rootCmd.AddCommand(runCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runIngestion(ctx context.Context) error {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	window, err := parseWindow(flagStart, flagEnd, flagYear, flagMonth)
	if err != nil {
		return err
	}

	limit := cfg.FetchLimit
	if flagLimit > 0 {
		limit = flagLimit
	}

	store, err := postgres.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	boundaries, err := loadBoundaries(ctx, store, cfg, logger)
	if err != nil {
		return err
	}

	soc := socrata.NewClient(cfg.SocrataAppToken, cfg.FetchTimeout, logger)
	soc.SetPageObserver(metrics)
	weather := noaa.NewClient(cfg.NOAAToken, cfg.FetchTimeout, logger)
	weather.SetPageObserver(metrics)
	fetchers := []pipeline.Fetcher{
		socrata.NewComplaintsFeed(soc, cfg.PageSize, limit),
		socrata.NewRidershipFeed(soc, cfg.PageSize, limit),
		socrata.NewTripsFeed(soc, cfg.PageSize, limit),
		socrata.NewEventsFeed(soc, cfg.PageSize, limit),
		weather,
	}

	var spatialIdx pipeline.SpatialIndex
	if boundaries != nil {
		spatialIdx = boundaries
	}

	p := pipeline.New(fetchers, geometry.NewResolver(logger), spatialIdx, store, logger, metrics)
	p.SetDryRun(flagDryRun)

	var srv *httpadapter.Server
	if !flagNoHTTP {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	summary, runErr := run(ctx, p, window)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}

	if out, err := json.MarshalIndent(summary, "", "  "); err == nil {
		fmt.Println(string(out))
	}
	return runErr
}

// run executes either the full fan-out or the subset named by --source.
func run(ctx context.Context, p *pipeline.Pipeline, w domain.Window) (pipeline.RunSummary, error) {
	if len(flagSources) == 0 {
		return p.RunAll(ctx, w)
	}

	summary := pipeline.RunSummary{Sources: make(map[domain.SourceType]pipeline.SourceSummary)}
	for _, name := range flagSources {
		src := domain.SourceType(name)
		if _, ok := domain.SpecFor(src); !ok {
			return summary, fmt.Errorf("unknown source %q (valid: %v)", name, pipeline.SourceNames())
		}
		s, err := p.RunSource(ctx, src, w)
		if err != nil {
			return summary, err
		}
		summary.Sources[src] = s
	}
	return summary, nil
}

// loadBoundaries prefers the reference polygons already in the store and
// falls back to a local GeoJSON file for first runs against an empty
// database. A pipeline without boundaries still loads records, just without
// neighborhood ids.
func loadBoundaries(ctx context.Context, store *postgres.Store, cfg *config.Config, logger *slog.Logger) (*spatial.Index, error) {
	idx, err := store.Boundaries(ctx)
	if err != nil {
		return nil, err
	}
	if idx.Len() > 0 {
		logger.Info("neighborhood boundaries loaded from store", "count", idx.Len())
		return idx, nil
	}
	if cfg.BoundariesPath == "" {
		logger.Warn("no neighborhood boundaries available, spatial enrichment disabled")
		return nil, nil
	}
	idx, err = spatial.LoadFile(cfg.BoundariesPath)
	if err != nil {
		return nil, fmt.Errorf("load boundaries file: %w", err)
	}
	logger.Info("neighborhood boundaries loaded from file", "path", cfg.BoundariesPath, "count", idx.Len())
	return idx, nil
}

func parseWindow(start, end string, year, month int) (domain.Window, error) {
	if year != 0 || month != 0 {
		if start != "" || end != "" {
			return domain.Window{}, errors.New("--year/--month cannot be combined with --start-date/--end-date")
		}
		if year == 0 || month < 1 || month > 12 {
			return domain.Window{}, errors.New("--year and --month (1-12) must be given together")
		}
		first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		return domain.Window{Start: first, End: first.AddDate(0, 1, 0).Add(-time.Second)}, nil
	}
	if start == "" && end == "" {
		return domain.DefaultWindow(), nil
	}
	w := domain.DefaultWindow()
	if start != "" {
		t, err := time.Parse("2006-01-02", start)
		if err != nil {
			return domain.Window{}, fmt.Errorf("invalid --start-date: %w", err)
		}
		w.Start = t
	}
	if end != "" {
		t, err := time.Parse("2006-01-02", end)
		if err != nil {
			return domain.Window{}, fmt.Errorf("invalid --end-date: %w", err)
		}
		w.End = t
	}
	if w.End.Before(w.Start) {
		return domain.Window{}, fmt.Errorf("window end %s precedes start %s", end, start)
	}
	return w, nil
}
