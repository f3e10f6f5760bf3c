package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/p1ctl/internal/api"
	"github.com/danmuck/p1ctl/internal/logging"
	"github.com/danmuck/p1ctl/internal/meter"
	"github.com/danmuck/p1ctl/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to p1ctl config (defaults apply when empty)")
	httpAddr := flag.String("http", "", "override http listen address; \"off\" disables the api")
	flag.Parse()

	logging.ConfigureRuntime()
	if err := run(*configPath, *httpAddr); err != nil {
		fmt.Fprintf(os.Stderr, "p1ctl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, httpAddr string) error {
	cfg := defaultRuntimeConfig()
	if configPath != "" {
		loaded, err := loadRuntimeConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}

	svc, err := meter.NewServiceWithConfig(cfg.Service)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := observability.Component("p1ctl")
	if cfg.HTTPAddr == "" || cfg.HTTPAddr == "off" {
		return svc.RunContext(ctx)
	}

	svcCtx, cancelSvc := context.WithCancel(ctx)
	defer cancelSvc()
	runErr := make(chan error, 1)
	go func() {
		runErr <- svc.RunContext(svcCtx)
	}()

	apiCtx, cancelAPI := context.WithCancel(ctx)
	defer cancelAPI()
	apiErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("p1ctl api listening")
		apiErr <- api.Serve(apiCtx, cfg.HTTPAddr, api.NewRouter(svc, cfg.CorsOrigins))
	}()

	select {
	case err := <-runErr:
		cancelAPI()
		if aerr := <-apiErr; aerr != nil && err == nil {
			return fmt.Errorf("api: %w", aerr)
		}
		return err
	case err := <-apiErr:
		// The API only stops early on failure; take the reader down with it.
		cancelSvc()
		serr := <-runErr
		if err != nil {
			log.Error().Err(err).Str("addr", cfg.HTTPAddr).Msg("p1ctl api failed")
			return fmt.Errorf("api: %w", err)
		}
		return serr
	}
}
