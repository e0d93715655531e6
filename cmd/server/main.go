package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fightarena/server/internal/app"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or TOML config file")
	envFile := flag.String("env", ".env", "env file loaded before the config")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.Options{ConfigPath: *configPath, EnvFiles: []string{*envFile}}); err != nil {
		log.Fatalf("%v", err)
	}
}
