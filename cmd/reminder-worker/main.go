package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"hydra/internal/amqp"
	"hydra/internal/cli"
	"hydra/internal/log"
	"hydra/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentReminder)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting reminder-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the reminder worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := worker.NewReminderScheduler(repo, amqpClient, cfg.ReminderRefresh)
	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start reminder scheduler", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())

	scheduler.Stop()
	cancel()
	logger.Info("Reminder worker stopped gracefully")
}
