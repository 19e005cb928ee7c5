package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/seyialao/payguard/internal/app"
	"github.com/seyialao/payguard/internal/seeder"
	"github.com/seyialao/payguard/internal/version"
	"github.com/seyialao/payguard/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := run(logger)
	if err != nil {
		trace := string(debug.Stack())
		logger.Error(err.Error(), "trace", trace)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	showVersion := flag.Bool("version", false, "display version and exit")
	seedData := flag.Bool("seed", false, "seed demo data and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("version: %s\n", version.Get())
		return nil
	}

	application, err := app.NewApplication(logger)
	if err != nil {
		return err
	}
	defer application.DB.Close()
	defer application.Cache.Close()

	if *seedData {
		seeder.New(application.DB, logger).Run()
		return nil
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	notifier := worker.New(&worker.Worker{
		KafkaStream: application.Kafka,
		UserRepo:    application.DB.User(),
		Mailer:      application.Mailer,
		Helper:      application.Helper,
		Logger:      logger,
		Ctx:         workerCtx,
	})
	go notifier.NotificationWorker()

	return application.ServeHTTP()
}
