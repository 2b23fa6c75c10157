package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"extract/expression"
	"extract/filter"
	"extract/job"
	"extract/progress"
	"extract/series"
)

var (
	prometheusUrl *string
	configFile    *string
	metricsAddr   *string
	verbose       *bool
)

func init() {
	prometheusUrl = flag.String("prometheus.url", "", "prometheus http url, progress is remote written when set")
	configFile = flag.String("config.file", "", "config file location")
	metricsAddr = flag.String("metrics.addr", "", "address to serve /metrics on")
	verbose = flag.Bool("v", false, "log progress updates")
}

func newLogger() logr.Logger {
	level := slog.LevelInfo
	if *verbose {
		// logr V(1) maps to slog level -1
		level = slog.LevelDebug
	}
	return logr.FromSlogHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// observers returns the configured observers and the remote writer among
// them, which is nil unless prometheus.url is set.
func observers(cfg *Config, logger logr.Logger, reg prometheus.Registerer) (progress.Multi, *progress.RemoteWriter, error) {
	obs := progress.Multi{progress.NewLogger(logger.WithName("progress"))}

	if reg != nil {
		gauge, err := progress.NewGauge(reg)
		if err != nil {
			return nil, nil, err
		}
		obs = append(obs, gauge)
	}

	if *prometheusUrl == "" {
		return obs, nil, nil
	}

	parsedUrl, err := url.Parse(*prometheusUrl)
	if err != nil {
		return nil, nil, fmt.Errorf("prometheus.url: %w", err)
	}
	ts, err := series.Parse(cfg.Series)
	if err != nil {
		return nil, nil, fmt.Errorf("series: %w", err)
	}
	writer := progress.NewRemoteWriter(parsedUrl, ts, logger.WithName("remote-write"), cfg.RemoteWriteQueue)
	return append(obs, writer), writer, nil
}

func variableFilter(cfg *Config) (filter.Filter, error) {
	if cfg.Filter == "" {
		return filter.None{}, nil
	}
	return filter.LoadLua(cfg.Filter, cfg.FilterFn)
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger logr.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	flag.Parse()
	logger := newLogger()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	expressions := append(cfg.Expressions, flag.Args()...)
	if len(expressions) == 0 {
		fmt.Println("missing value: no expressions in config file or arguments")
		os.Exit(1)
	}

	var reg *prometheus.Registry
	var metrics *job.Metrics
	if *metricsAddr != "" {
		reg = prometheus.NewRegistry()
		if metrics, err = job.NewMetrics(reg); err != nil {
			log.Fatalf("error registering metrics: %v", err)
		}
	}

	var registerer prometheus.Registerer
	if reg != nil {
		registerer = reg
	}
	obs, writer, err := observers(cfg, logger, registerer)
	if err != nil {
		log.Fatalf("error configuring observers: %v", err)
	}

	variables, err := variableFilter(cfg)
	if err != nil {
		log.Fatalf("error loading filter: %v", err)
	}

	runner := job.NewRunner(job.Options{
		Workers:   cfg.Workers,
		QueueSize: cfg.queueSizeFor(len(expressions)),
		Delay:     cfg.delay,
		Timeout:   cfg.timeout,
		Scanner: expression.NewScanner(
			expression.WithStepDelay(cfg.stepDelay),
			expression.WithMaxDepth(cfg.MaxDepth),
		),
		Observer: obs,
		Filter:   variables,
		Logger:   logger.WithName("runner"),
		Metrics:  metrics,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	serveCtx, shutdown := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(serveCtx)
	g.Go(func() error {
		return runner.Start(gctx)
	})
	if writer != nil {
		g.Go(func() error {
			return writer.Run(gctx)
		})
	}
	if reg != nil {
		g.Go(func() error {
			return serveMetrics(gctx, *metricsAddr, reg, logger)
		})
	}

	failed := false
	var handles []*job.Handle
	for _, expr := range expressions {
		h, err := runner.StartExtraction(ctx, expr)
		if err != nil {
			log.Printf("error scheduling %q: %v", expr, err)
			failed = true
			continue
		}
		handles = append(handles, h)
	}

	for _, h := range handles {
		vars, err := h.Wait(ctx)
		if err != nil {
			log.Printf("%v: %v", h.Expression(), err)
			failed = true
			continue
		}
		names := make([]string, 0, len(vars))
		for _, v := range vars {
			names = append(names, v.Text)
		}
		fmt.Printf("%v: %v\n", h.Expression(), strings.Join(names, ", "))
	}

	shutdown()
	if err := g.Wait(); err != nil {
		log.Fatalf("error: %v", err)
	}
	if failed {
		os.Exit(1)
	}
}
