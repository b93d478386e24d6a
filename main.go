package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"classbook/internal/app"
	"classbook/internal/config"
	"classbook/internal/observability/log"
)

func main() {
	log.Init(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	watermillLogger := log.NewWatermill(logrus.NewEntry(logrus.StandardLogger()))

	a, err := app.NewApp(cfg, watermillLogger)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logrus.WithError(err).Fatal("shutdown with error")
	}
}
