package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"flightbooking/internal/config"
	"flightbooking/internal/db"
	"flightbooking/internal/logger"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [up|down|status|reset]")
	}
	flag.Parse()
	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg := config.Load()
	log := logger.New(cfg.AppEnv)
	defer func() { _ = log.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal("failed to set dialect", zap.Error(err))
	}
	if err := goose.RunContext(context.Background(), command, database.DB, cfg.MigrationsDir, flag.Args()[min(1, flag.NArg()):]...); err != nil {
		log.Fatal("migration failed", zap.String("command", command), zap.String("dir", cfg.MigrationsDir), zap.Error(err))
	}
	log.Info("migration finished", zap.String("command", command))
}
