// Command reconstruct rebuilds an MBP-10 depth snapshot stream from
// an MBO event CSV file: reconstruct <input_mbo.csv> [output_mbp.csv].
//
// With no flags it reproduces the original two-positional-argument
// contract exactly: no HTTP listener, no checkpoint database, no live
// feed. Optional flags add ambient operability without changing that
// default behavior.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aryandadwal2006/mbp-reconstructor/internal/book"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/config"
	icsv "github.com/aryandadwal2006/mbp-reconstructor/internal/csv"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/feed"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/infra/health"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/infra/http/middleware"
	ilog "github.com/aryandadwal2006/mbp-reconstructor/internal/infra/log"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/infra/metrics"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/infra/netutil"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/infra/runner"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/infra/version"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/mbo"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/memstats"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/progress"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/reconstruct"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/store"
)

const defaultOutputFile = "output_mbp.csv"

func main() {
	var (
		metricsAddr  = flag.String("metrics-addr", "", "address to serve /metrics, /healthz, /version on (disabled if empty)")
		checkpointDB = flag.String("checkpoint-db", "", "optional sqlite path to persist emitted row metadata")
		wsURL        = flag.String("ws", "", "optional WebSocket URL to stream MBO events from instead of the input file")
		configPath   = flag.String("config", "", "optional YAML config file (same as MBPRECON_CONFIG)")
	)
	flag.Parse()

	if *configPath != "" {
		os.Setenv("MBPRECON_CONFIG", *configPath)
	}
	cfg := config.Load()
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if *checkpointDB != "" {
		cfg.Checkpoint.DBPath = *checkpointDB
	}
	if *wsURL != "" {
		cfg.Feed.WSURL = *wsURL
	}

	logger := ilog.NewLogger(cfg)

	args := flag.Args()
	if len(args) < 1 && cfg.Feed.WSURL == "" {
		fmt.Fprintln(os.Stderr, "usage: reconstruct <input_mbo.csv> [output_mbp.csv]")
		os.Exit(2)
	}
	inputPath := ""
	outputPath := defaultOutputFile
	if len(args) >= 1 {
		inputPath = args[0]
	}
	if len(args) >= 2 {
		outputPath = args[1]
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := &runner.Group{}

	if cfg.Metrics.Addr != "" {
		startMetricsServer(ctx, g, cfg, logger)
	}

	runErrCh := g.Go(ctx, func(ctx context.Context) error {
		return run(ctx, g, cfg, logger, inputPath, outputPath)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case s := <-sigCh:
		logger.Info().Str("signal", s.String()).Msg("shutdown signal received")
		cancel()
		runErr = <-runErrCh
	case runErr = <-runErrCh:
	}

	cancel()
	g.Wait()

	if runErr != nil {
		logger.Error().Err(runErr).Msg("run failed")
		os.Exit(1)
	}
}

func startMetricsServer(ctx context.Context, g *runner.Group, cfg config.Config, logger ilog.Logger) {
	reg := metrics.Init(logger)
	mux := http.NewServeMux()
	allowed := netutil.MustParseCIDRs(cfg.Metrics.AllowCIDRs)
	mux.Handle("/metrics", middleware.AdminGate(allowed, metrics.Handler(reg)))
	mux.HandleFunc("/healthz", health.Healthz)
	mux.HandleFunc("/readyz", health.Readyz)
	mux.HandleFunc("/version", version.Handler)
	handler := middleware.RequestID(middleware.Logger(logger)(mux))

	server := &http.Server{Addr: cfg.Metrics.Addr, Handler: handler, ReadHeaderTimeout: 2 * time.Second}
	g.Go(ctx, func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	health.SetReady(true)
	logger.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics server started")
}

func run(ctx context.Context, g *runner.Group, cfg config.Config, logger ilog.Logger, inputPath, outputPath string) error {
	memstats.Log(logger, "initial")
	start := time.Now()
	defer func() { metrics.ProcessDurationSeconds.Observe(time.Since(start).Seconds()) }()

	r := reconstruct.NewWithSchema(book.Schema{
		RType:        cfg.Schema.RType,
		PublisherID:  cfg.Schema.PublisherID,
		InstrumentID: cfg.Schema.InstrumentID,
	})

	var checkpointStore *store.CheckpointStore
	var checkpointCh chan book.Snapshot
	var checkpointErrCh <-chan error
	if cfg.Checkpoint.DBPath != "" {
		var err error
		checkpointStore, err = store.Open(cfg.Checkpoint.DBPath, 0)
		if err != nil {
			return fmt.Errorf("open checkpoint store: %w", err)
		}
		defer checkpointStore.Close()

		checkpointCh = make(chan book.Snapshot, 256)
		checkpointErrCh = g.Go(ctx, func(ctx context.Context) error {
			return checkpointStore.Run(ctx, checkpointCh)
		})
	}

	writer, err := icsv.CreateWriter(outputPath, cfg.Writer.FlushEveryNRows)
	if err != nil {
		return fmt.Errorf("create output writer: %w", err)
	}
	defer writer.Close()

	reporter := progress.NewReporter(logger, cfg.Progress.EveryNEvents, 0)

	var snap book.Snapshot
	process := func(ev *mbo.Event) error {
		emitted := r.Process(ev, &snap)
		reporter.Tick(emitted, r.Book())
		if !emitted {
			return nil
		}
		if err := writer.WriteSnapshot(&snap); err != nil {
			return err
		}
		if checkpointCh != nil {
			select {
			case checkpointCh <- snap:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	var runErr error
	if cfg.Feed.WSURL != "" {
		runErr = runLiveFeed(ctx, cfg, logger, process)
	} else {
		runErr = runCSVFile(ctx, inputPath, logger, process)
	}

	memstats.Log(logger, "final")

	if checkpointCh != nil {
		close(checkpointCh)
		if err := <-checkpointErrCh; err != nil && runErr == nil {
			runErr = fmt.Errorf("checkpoint writer: %w", err)
		}
	}

	return runErr
}

func runCSVFile(ctx context.Context, inputPath string, logger ilog.Logger, process func(*mbo.Event) error) error {
	reader, err := icsv.OpenReader(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer reader.Close()

	var ev mbo.Event
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := reader.Read(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("read input: %w", err)
		}
		if err := process(&ev); err != nil {
			return fmt.Errorf("process event: %w", err)
		}
	}
	if reader.Errors > 0 {
		metrics.ParseErrorsTotal.Add(float64(reader.Errors))
		logger.Warn().Int("skipped_rows", reader.Errors).Msg("malformed input rows skipped")
	}
	return nil
}

func runLiveFeed(ctx context.Context, cfg config.Config, logger ilog.Logger, process func(*mbo.Event) error) error {
	client := feed.NewClient(cfg.Feed.WSURL, logger)
	events := make(chan mbo.Event, 256)
	go client.Run(ctx, events)

	for ev := range events {
		evCopy := ev
		if err := process(&evCopy); err != nil {
			return fmt.Errorf("process event: %w", err)
		}
	}
	return ctx.Err()
}
