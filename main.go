package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	Md "github.com/maroda/metricgen/display"
	Mo "github.com/maroda/metricgen/obvy"
	Mp "github.com/maroda/metricgen/plugin"
	Ms "github.com/maroda/metricgen/server"
)

func main() {
	tui := flag.Bool("tui", false, "run the terminal client against METRICGEN_COLLABORATOR")
	logFile := flag.String("log", "metricgen.log", "log file used while the terminal client runs")
	version := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *version {
		fmt.Println(Md.Version)
		return
	}

	if err := run(*tui, *logFile); err != nil {
		slog.Error("metricgen exited", slog.Any("Error", err))
		os.Exit(1)
	}
}

func run(tui bool, logFile string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := Ms.LoadSettings(ctx)
	if err != nil {
		return err
	}

	// The terminal owns stderr while the TUI runs
	var logOut io.Writer = os.Stderr
	if tui {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("could not open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	slog.SetDefault(settings.Logger(logOut))

	shutdown, err := Mo.InitTracing(settings.OTel)
	if err != nil {
		return err
	}
	defer shutdown()

	if tui {
		slog.Info("Starting terminal client", slog.String("collaborator", settings.Collaborator))
		return Md.StartTUI(settings)
	}

	store, err := Mp.StoreLookup(settings.Store, settings.ConfigPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Could not close store", slog.Any("Error", err))
		}
	}()

	stats := Mo.NewStatsInternal()
	reg := Ms.NewRegistry(store, stats)
	defer reg.Close()

	if err := reg.Restore(); err != nil {
		return fmt.Errorf("could not restore generators from %s: %w", store.Type(), err)
	}

	return Md.StartWeb(ctx, settings, reg, stats)
}
