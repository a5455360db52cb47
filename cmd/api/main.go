package main

import (
	"os"

	"study-backend/internal/bootstrap"
	"study-backend/internal/shared/config"
	"study-backend/internal/shared/server"
	"study-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	app, err := bootstrap.Build(cfg)
	if err != nil {
		telemetry.Error("api.bootstrap_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer app.Close()

	addr := server.Addr(cfg.Port)
	telemetry.Info("api.start", map[string]any{"addr": addr, "env": cfg.Env, "storage": app.Store.Name()})

	if err := app.Router.Run(addr); err != nil {
		telemetry.Error("api.server_error", map[string]any{"error": err.Error()})
		app.Close()
		os.Exit(1)
	}
}
