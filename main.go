package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/angas/spotwindow/app"
	"github.com/angas/spotwindow/calc"
	"github.com/angas/spotwindow/config"
	"github.com/angas/spotwindow/forecast"
	"github.com/angas/spotwindow/hours"
	"github.com/angas/spotwindow/logging"
	"github.com/angas/spotwindow/mqttpub"
	"github.com/angas/spotwindow/task"
	"github.com/angas/spotwindow/www"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	loader := config.NewLoader(*configPath)
	cnfg, err := loader.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := hours.SetMarketTimezone(cnfg.Market.GetTimezone()); err != nil {
		panic(fmt.Sprintf("failed to set market timezone: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consoleLevel := new(slog.LevelVar)
	consoleLevel.Set(cnfg.Logging.GetConsoleLevel())
	consoleHandler := logging.NewConsoleHandler(os.Stdout, consoleLevel)
	slog.SetDefault(slog.New(consoleHandler))
	slog.Default().Debug("spotwindow is starting...", slog.String("version", Version))

	store, err := app.OpenStore(ctx, cnfg)
	if err != nil {
		panic(err.Error())
	}
	defer store.Close()

	logger := slog.Default()
	var logs www.LogReader
	if store.SQLite != nil {
		logger = slog.New(logging.NewMultiHandler(
			consoleHandler,
			logging.NewSQLiteHandler(store.SQLite, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
		slog.SetDefault(logger)

		// Now we can use the logger to log database operations into the database itself
		store.SQLite.SetLogger(logger.With("module", "database"))
		logs = store.SQLite
	}

	loader.Watch(logger.With("module", "config"), func(c *config.AppConfig) {
		consoleLevel.Set(c.Logging.GetConsoleLevel())
	})

	clock := hours.SystemClock{}
	feeds, live := app.Feeds(cnfg, clock)
	prices := app.PriceProvider(logger, clock, store.Prices, live)
	assembler := forecast.NewAssembler(
		logger.With("module", "forecast"),
		clock,
		prices,
		calc.NewTariff(cnfg.Tariff.GetExchangeCents(), cnfg.Tariff.GetMarginCents()))

	responseCache, err := app.NewCache(ctx, logger.With("module", "cache"), cnfg.Cache)
	if err != nil {
		panic(fmt.Sprintf("failed to create cache: %v", err))
	}
	defer responseCache.Close()

	hub := www.NewHub(logger.With("module", "websocket"))
	go hub.Run(ctx)
	sinks := []task.Sink{hub}

	if cnfg.Mqtt.Enabled {
		pub := mqttpub.New(cnfg.Mqtt.Broker, cnfg.Mqtt.Port, cnfg.Mqtt.Username, cnfg.Mqtt.Password, cnfg.Mqtt.GetTopicPrefix())
		if err := pub.Connect(); err != nil {
			logger.Error("mqtt connection error, publishing to websocket clients only", slog.Any("error", err))
		} else {
			defer pub.Disconnect()
			sinks = append(sinks, pub)
		}
	}

	ing := task.NewIngestion(logger.With("module", "ingestion"), clock, store.Prices, feeds...)
	tasks := task.NewTasks(ing, store.Maintainer, prices, assembler, sinks, cnfg)
	if isDevMode() {
		logger.Info("dev mode, skipping task scheduling")
	} else {
		tasks.Run()
		defer tasks.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("main context done")
		case sig := <-sigCh:
			logger.Info("received signal", slog.Any("signal", sig))
			cancel()
		}
	}()

	server := www.NewServer(www.Options{
		Config:    cnfg,
		Clock:     clock,
		Assembler: assembler,
		Cache:     responseCache,
		Refresher: ing,
		Logs:      logs,
		Hub:       hub,
		Version:   Version,
	})
	if err := server.Run(ctx); err != nil {
		exitWithError(logger, err)
	}
}

func isDevMode() bool {
	return strings.EqualFold(os.Getenv("APP_ENV"), "development")
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	if syncer, ok := logger.Handler().(interface{ Sync() error }); ok {
		if syncErr := syncer.Sync(); syncErr != nil {
			logger.Error("failed to flush logger", slog.Any("error", syncErr))
		}
	}

	time.Sleep(2 * time.Second)
	os.Exit(1)
}
