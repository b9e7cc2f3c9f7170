package main

import (
	"context"
	"fmt"

	"truckmitr/config"
	"truckmitr/pkg/logger"
	"truckmitr/storage/postgres"
)

// Wipes cached profiles and device storage; every chat has to log in again.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)
	pg, err := postgres.New(context.Background(), cfg, log)
	if err != nil {
		panic(err)
	}
	defer pg.Close()

	_, err = pg.GetPool().Exec(context.Background(), "TRUNCATE TABLE users, kv_entries")
	if err != nil {
		log.Error(fmt.Sprintf("Failed to truncate tables: %v", err))
	} else {
		log.Info("Successfully truncated users and kv_entries tables.")
	}
}
