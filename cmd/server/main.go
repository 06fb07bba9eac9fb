// Package main - HTTP-сервер для управления синтезаторами Valon 5007.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/momentics/valonsynth/internal/config"
	"github.com/momentics/valonsynth/internal/device"
	"github.com/momentics/valonsynth/internal/logging"
	"github.com/momentics/valonsynth/internal/metrics"
	"github.com/momentics/valonsynth/pkg/valon"
)

func main() {
	configPath := flag.String("config", "", "путь к файлу конфигурации")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	factory, err := device.NewOpenerFactory(cfg.Synth)
	if err != nil {
		logger.Fatal("ошибка конфигурации транспорта", zap.Error(err))
	}

	reg := metrics.NewRegistry()
	pool := valon.NewSynthPool(factory,
		valon.WithLogger(logger.Named("valon")),
		valon.WithObserver(metrics.NewTransactions(reg)),
	)
	defer pool.CloseAll()

	api := &api{
		pool:           pool,
		defaultTarget:  device.DefaultTarget(cfg.Synth),
		channelSpacing: cfg.Synth.ChannelSpacing,
		logger:         logger,
	}

	mux := http.NewServeMux()
	api.register(mux)
	if cfg.Metrics.Enable {
		mux.Handle(cfg.Metrics.Path, metrics.Handler(reg))
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("сервер запущен", zap.String("addr", cfg.HTTP.Addr), zap.String("transport", cfg.Synth.Transport))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("ошибка HTTP сервера", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("сервер останавливается")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("ошибка при корректном завершении сервера", zap.Error(err))
		return
	}
	logger.Info("сервер остановлен")
}
