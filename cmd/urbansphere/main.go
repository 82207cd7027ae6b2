package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/urbansphere/internal/core/config"
	"github.com/mohammed-shakir/urbansphere/internal/core/health"
	"github.com/mohammed-shakir/urbansphere/internal/core/httpclient"
	"github.com/mohammed-shakir/urbansphere/internal/core/observability"
	"github.com/mohammed-shakir/urbansphere/internal/core/router"
	"github.com/mohammed-shakir/urbansphere/internal/core/server"
	"github.com/mohammed-shakir/urbansphere/internal/dataset"
	_ "github.com/mohammed-shakir/urbansphere/internal/dataset/geojsonfile"
	_ "github.com/mohammed-shakir/urbansphere/internal/dataset/postgis"
	"github.com/mohammed-shakir/urbansphere/internal/dataset/redistable"
	_ "github.com/mohammed-shakir/urbansphere/internal/dataset/wfs"
	"github.com/mohammed-shakir/urbansphere/internal/datasync/kafkaconsumer"
	"github.com/mohammed-shakir/urbansphere/internal/layer"
	"github.com/mohammed-shakir/urbansphere/internal/logger"
	"github.com/mohammed-shakir/urbansphere/internal/metrics"
	"github.com/mohammed-shakir/urbansphere/internal/pipeline"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	envFile := flag.String("env", ".env", "dotenv file loaded before reading the environment")
	layersFlag := flag.String("layers", "", "layer registry file (overrides LAYERS_FILE)")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		return 1
	}

	cfg := config.FromEnv()
	if *layersFlag != "" {
		cfg.LayersFile = *layersFlag
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.Log.Level,
		Console:   cfg.Log.Console,
		SampleN:   cfg.Log.SampleN,
		Component: "urbansphere",
		Version:   Version,
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)

	reg, err := loadRegistry(cfg.LayersFile)
	if err != nil {
		appLog.Error("layer registry", "err", err)
		return 1
	}
	appLog.Info("starting urbansphere",
		"addr", cfg.Addr,
		"version", Version,
		"layers", reg.Len(),
		"data_dir", cfg.DataDir,
		"schemes", dataset.Schemes())

	mux := dataset.NewMux(dataset.Config{
		DataDir:    cfg.DataDir,
		HTTPClient: httpclient.NewOutbound(cfg.FetchTimeout),
		Logger:     appLog,
	})
	defer func() { _ = mux.Close() }()

	pipe := pipeline.New(reg, dataset.NewLoader(mux, appLog), appLog)
	handlers := router.New(pipe, reg, cfg, appLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	if cfg.Metrics.Enabled {
		mcfg := metrics.Config{
			Enabled: true,
			Addr:    cfg.Metrics.Addr,
			Path:    cfg.Metrics.Path,
			Build: metrics.BuildInfo{
				Version:   Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		}
		p := metrics.Init(mcfg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Serve(ctx, mcfg, appLog); err != nil {
				appLog.Error("metrics server exited", "err", err)
			}
		}()
	}

	checks := []health.Check{health.CheckFunc{N: "registry", F: func() (bool, string) {
		return reg.Len() > 0, fmt.Sprintf("%d layers", reg.Len())
	}}}

	if cfg.Datasync.Enabled {
		sc, err := startDatasync(ctx, &wg, cfg, appLog)
		if err != nil {
			appLog.Error("dataset sync setup failed", "err", err)
			return 1
		}
		defer func() { _ = sc.Close() }()
	}

	h := server.NewHandler(cfg, appLog, handlers, checks...)
	err = server.Run(ctx, cfg, appLog, h)
	stop()
	wg.Wait()
	if err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func loadRegistry(path string) (*layer.Registry, error) {
	if path == "" {
		return layer.Default(), nil
	}
	return layer.LoadFile(path)
}

func startDatasync(ctx context.Context, wg *sync.WaitGroup, cfg config.Config, log *slog.Logger) (*redistable.Client, error) {
	rc, err := redistable.NewClient(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, err
	}
	c, err := kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Datasync), log,
		redistable.NewStore(rc, cfg.Datasync.Namespace))
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.Start(ctx); err != nil {
			log.Error("dataset sync consumer stopped", "err", err)
		}
	}()
	return rc, nil
}
