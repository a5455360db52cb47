package main

// Run database migrations:
//   go run ./cmd/migrate [up|down|reset|status]

import (
	"context"
	"os"

	"study-backend/internal/shared/config"
	"study-backend/internal/shared/storage/db"
	"study-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrationCommand(ctx, sqlDB, command); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"command": command, "error": err.Error()})
		sqlDB.Close()
		os.Exit(1)
	}
	telemetry.Info("migrate.done", map[string]any{"command": command})
}
