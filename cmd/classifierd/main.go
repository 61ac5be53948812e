// classifierd - HTTP service that turns a camera frame into a steering
// directive for the rover.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-rover/internal/config"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/audit"
	"github.com/teslashibe/go-rover/pkg/classify"
	"github.com/teslashibe/go-rover/pkg/server"
)

// Options holds the command line configuration.
type Options struct {
	Port        int
	ModelPath   string
	Backend     string
	UploadDir   string
	ConfigPath  string
	StrictAudit bool
	LogLevel    string
	Debug       bool
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	opts := parseFlags()
	log.Init(opts.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		log.Error("classifierd stopped", "error", err)
		os.Exit(1)
	}
}

// parseFlags parses command line flags, falling back to the environment.
func parseFlags() Options {
	var o Options

	flag.IntVar(&o.Port, "port", config.Int("PORT", 9090), "HTTP port (PORT)")
	flag.StringVar(&o.ModelPath, "model", config.String("CLASSIFIER_MODEL", ""), "ONNX model path (CLASSIFIER_MODEL)")
	flag.StringVar(&o.Backend, "backend", config.String("CLASSIFIER_BACKEND", ""), "Inference backend: onnx, gocv (needs -tags gocv)")
	flag.StringVar(&o.UploadDir, "uploads", config.String("CLASSIFIER_UPLOADS", "uploads"), "Directory for uploaded frames (empty disables)")
	flag.StringVar(&o.ConfigPath, "config", config.String("CLASSIFIER_CONFIG", ""), "Classifier config JSON file")
	flag.BoolVar(&o.StrictAudit, "strict-audit", false, "Fail requests whose upload cannot be stored")
	flag.StringVar(&o.LogLevel, "log-level", config.String("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.BoolVar(&o.Debug, "debug", false, "Log every request")

	flag.Parse()
	return o
}

// loadConfig merges the config file with flag overrides.
func loadConfig(o Options) (classify.Config, error) {
	cfg := classify.DefaultConfig()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = classify.LoadConfig(o.ConfigPath); err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	}
	if o.ModelPath != "" {
		cfg.ModelPath = o.ModelPath
	}
	if o.Backend != "" {
		cfg.Backend = o.Backend
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, o Options) error {
	logger := log.L()

	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	classifier, err := classify.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer classifier.Close()

	var store audit.Store
	if o.UploadDir != "" {
		if store, err = audit.NewDirStore(o.UploadDir); err != nil {
			return err
		}
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = fmt.Sprintf(":%d", o.Port)
	srvCfg.UploadDir = o.UploadDir
	srvCfg.StrictAudit = o.StrictAudit
	srvCfg.Backend = cfg.Backend
	srvCfg.Debug = o.Debug
	srvCfg.Logger = logger

	srv, err := server.New(classifier, store, srvCfg)
	if err != nil {
		return err
	}

	log.Info("classifier ready",
		"backend", cfg.Backend,
		"model", cfg.ModelPath,
		"input", fmt.Sprintf("%dx%d", cfg.InputWidth, cfg.InputHeight),
		"uploads", o.UploadDir,
	)

	errc := make(chan error, 1)
	go func() { errc <- srv.Listen() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
