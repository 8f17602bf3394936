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
	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/broker"
	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/util"
)

type config struct {
	Broker      broker.Config `yaml:"broker"`
	LogLevel    string        `yaml:"log_level"`
	MetricsAddr string        `yaml:"metrics_addr"`
}

func (c *config) registerFlags(f *flag.FlagSet) {
	c.Broker.RegisterFlags(f)
	f.StringVar(&c.LogLevel, "log.level", "info", "Log level: debug, info, warn, error.")
	f.StringVar(&c.MetricsAddr, "metrics.addr", ":9190", "Address to serve /metrics on, empty to disable.")
}

func main() {
	var (
		cfg        config
		configFile string
	)
	fs := flag.NewFlagSet("fraudbroker", flag.ExitOnError)
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

	logger := util.NewLogger(cfg.LogLevel)

	server, err := broker.NewServer(cfg.Broker, logger)
	if err != nil {
		level.Error(logger).Log("msg", "error initialising broker", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := services.StartAndAwaitRunning(ctx, server); err != nil {
		level.Error(logger).Log("msg", "error starting broker", "err", err)
		os.Exit(1)
	}

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
		level.Error(logger).Log("msg", "error running broker", "err", err)
	}

	if err := services.StopAndAwaitTerminated(context.Background(), server); err != nil {
		level.Error(logger).Log("msg", "error stopping broker", "err", err)
		os.Exit(1)
	}
}
