package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/fraud"
	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/pipeline"
	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/util"
)

type enrichmentConfig struct {
	Topic  string `yaml:"topic"`
	Group  string `yaml:"group"`
	Source string `yaml:"source"`
}

type config struct {
	Pipeline pipeline.Config `yaml:"pipeline"`

	EngineConfigFile  string `yaml:"engine_config_file"`
	TransactionsTopic string `yaml:"transactions_topic"`
	ScoringGroup      string `yaml:"scoring_group"`
	ScorerCount       int    `yaml:"scorer_count"`

	Enrichments []enrichmentConfig `yaml:"enrichments"`

	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
}

func (c *config) registerFlags(f *flag.FlagSet) {
	c.Pipeline.RegisterFlags(f)
	f.StringVar(&c.EngineConfigFile, "engine.config-file", "", "Path to the features/rules yaml, empty for the built-in defaults.")
	f.StringVar(&c.TransactionsTopic, "engine.transactions-topic", "transactions", "Topic carrying transactions to score.")
	f.StringVar(&c.ScoringGroup, "engine.scoring-group", "fraud-engine", "Consumer group for transaction scorers.")
	f.IntVar(&c.ScorerCount, "engine.scorer-count", 4, "Number of scoring consumers to run.")
	f.StringVar(&c.LogLevel, "log.level", "info", "Log level: debug, info, warn, error.")
	f.StringVar(&c.MetricsAddr, "metrics.addr", ":9191", "Address to serve /metrics on, empty to disable.")
}

func defaultEnrichments() []enrichmentConfig {
	return []enrichmentConfig{
		{Topic: "account-opening", Group: "account-enrichment", Source: "account-opening"},
		{Topic: "card-issue", Group: "card-enrichment", Source: "card-issue"},
	}
}

func main() {
	var (
		cfg        config
		configFile string
	)
	fs := flag.NewFlagSet("fraudengine", flag.ExitOnError)
	cfg.registerFlags(fs)
	fs.StringVar(&configFile, "config.file", "", "Path to a yaml config file.")
	_ = fs.Parse(os.Args[1:])

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed reading config file: %v\n", err)
			os.Exit(1)
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "failed parsing config file: %v\n", err)
			os.Exit(1)
		}
	}
	if len(cfg.Enrichments) == 0 {
		cfg.Enrichments = defaultEnrichments()
	}

	logger := util.NewLogger(cfg.LogLevel)

	engineCfg := fraud.DefaultConfig()
	if cfg.EngineConfigFile != "" {
		var err error
		engineCfg, err = fraud.LoadConfig(cfg.EngineConfigFile)
		if err != nil {
			level.Error(logger).Log("msg", "error loading engine config", "err", err)
			os.Exit(1)
		}
	}

	engine, err := fraud.NewEngine(engineCfg, logger)
	if err != nil {
		level.Error(logger).Log("msg", "error initialising engine", "err", err)
		os.Exit(1)
	}

	var svcs []services.Service
	for _, e := range cfg.Enrichments {
		consumerID := fmt.Sprintf("%s-%s", e.Group, uuid.NewString()[:8])
		svcs = append(svcs, pipeline.NewEnricher(cfg.Pipeline, e.Topic, e.Group, e.Source, consumerID, engine, logger))
	}
	for i := 0; i < cfg.ScorerCount; i++ {
		consumerID := fmt.Sprintf("fraud-consumer-%d-%s", i, uuid.NewString()[:8])
		svcs = append(svcs, pipeline.NewScorer(cfg.Pipeline, cfg.TransactionsTopic, cfg.ScoringGroup, consumerID, engine, logger))
	}

	manager, err := services.NewManager(svcs...)
	if err != nil {
		level.Error(logger).Log("msg", "error building service manager", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := services.StartManagerAndAwaitHealthy(ctx, manager); err != nil {
		level.Error(logger).Log("msg", "error starting pipelines", "err", err)
		os.Exit(1)
	}
	level.Info(logger).Log("msg", "pipelines running", "consumers", len(svcs))

	g, gctx := errgroup.WithContext(ctx)

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

		g.Go(func() error {
			level.Info(logger).Log("msg", "metrics listening", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		if metricsServer != nil {
			_ = metricsServer.Shutdown(context.Background())
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		level.Error(logger).Log("msg", "error running pipelines", "err", err)
	}

	manager.StopAsync()
	if err := manager.AwaitStopped(context.Background()); err != nil {
		level.Error(logger).Log("msg", "error stopping pipelines", "err", err)
		os.Exit(1)
	}
}
