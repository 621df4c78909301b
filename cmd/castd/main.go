package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/drunkod/fcast/internal/api"
	"github.com/drunkod/fcast/internal/clock"
	"github.com/drunkod/fcast/internal/config"
	"github.com/drunkod/fcast/internal/pipeline"
	"github.com/drunkod/fcast/internal/runtime"
	"github.com/drunkod/fcast/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "castd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	var preset string
	flagSet := pflag.NewFlagSet("castd", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.Listen, "listen", cfg.Listen, "HTTP listen address")
	flagSet.StringVar(&cfg.PresetDir, "preset-dir", cfg.PresetDir, "directory holding command presets")
	flagSet.StringVar(&preset, "preset", "", "preset to apply at startup")
	flagSet.StringVar(&cfg.Engine, "engine", cfg.Engine, "pipeline engine: synthetic or null")
	flagSet.DurationVar(&cfg.ControlInterval, "control-interval", cfg.ControlInterval, "control point re-evaluation step while interpolating")
	flagSet.DurationVar(&cfg.PrerollLead, "preroll-lead", cfg.PrerollLead, "how long before its cue a node prerolls")
	flagSet.IntVar(&cfg.ConsumerBuffer, "consumer-buffer", cfg.ConsumerBuffer, "per-link frame queue length")
	flagSet.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := cfg.Logger()
	slog.SetDefault(log)

	presets, err := store.New(cfg.PresetDir)
	if err != nil {
		return err
	}

	clk := clock.Real()
	var engine pipeline.Engine = pipeline.Null{}
	if cfg.Engine == "synthetic" {
		engine = &pipeline.Synthetic{Clock: clk, FrameInterval: cfg.FrameInterval, Log: log}
	}

	rt := runtime.New(runtime.Options{
		Engine:          engine,
		Clock:           clk,
		Logger:          log,
		PrerollLead:     cfg.PrerollLead,
		ControlInterval: cfg.ControlInterval,
		ConsumerBuffer:  cfg.ConsumerBuffer,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Start(ctx); err != nil {
		return err
	}
	defer rt.Shutdown()

	if preset != "" {
		p, err := presets.LoadPreset(preset)
		if err != nil {
			return err
		}
		replies, failed := rt.RunScript(p.Commands)
		log.Info("preset applied", "preset", preset, "commands", len(replies), "failed", failed)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewServer(rt, presets, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("castd listening", "addr", cfg.Listen, "engine", cfg.Engine)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
