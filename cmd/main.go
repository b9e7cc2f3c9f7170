package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"truckmitr/config"
	"truckmitr/pkg/backend"
	"truckmitr/pkg/bot"
	"truckmitr/pkg/checkout"
	"truckmitr/pkg/logger"
	"truckmitr/pkg/scheduler"
	"truckmitr/service"
	"truckmitr/storage"
	"truckmitr/storage/postgres"
	"truckmitr/storage/redis"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgStore, err := postgres.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to postgres", logger.Error(err))
		os.Exit(1)
	}
	defer pgStore.Close()

	var stg storage.IStorage = pgStore
	if cfg.KVBackend == config.KVBackendRedis {
		rdb, err := redis.Connect(ctx, cfg, log)
		if err != nil {
			log.Error("Failed to connect to redis", logger.Error(err))
			os.Exit(1)
		}
		defer rdb.Close()
		stg = storage.WithKV(pgStore, redis.NewKVRepo(rdb, log))
	}
	log.Info("storage ready", logger.String("kv_backend", cfg.KVBackend))

	api := backend.New(cfg.BackendBaseURL, cfg.BackendTimeout, cfg.BackendRetries, log)
	services := service.New(stg, api, cfg, log)
	gateway := checkout.NewCallbackGateway(cfg.PublicBaseURL, log)

	driverBot, err := bot.New(bot.BotTypeDriver, &cfg, services, gateway, log)
	if err != nil {
		log.Error("Failed to initialize driver bot", logger.Error(err))
		os.Exit(1)
	}
	transporterBot, err := bot.New(bot.BotTypeTransporter, &cfg, services, gateway, log)
	if err != nil {
		log.Error("Failed to initialize transporter bot", logger.Error(err))
		os.Exit(1)
	}
	driverBot.Peer = transporterBot
	transporterBot.Peer = driverBot

	go driverBot.Start()
	go transporterBot.Start()

	sweeper := scheduler.New(stg.User(), services, driverBot, log)
	if err := sweeper.Start(cfg.PendingSweepSpec); err != nil {
		log.Error("Failed to schedule pending sweep", logger.Error(err))
		os.Exit(1)
	}

	go func() {
		if err := bot.RunServer(ctx, cfg.AppPort, bot.NewRouter(gateway, log), log); err != nil {
			log.Error("HTTP server stopped", logger.Error(err))
			stop()
		}
	}()

	log.Info("🚀 TruckMitr bots are running")
	<-ctx.Done()

	log.Info("Stopping bots and shutting down...")
	sweeper.Stop()
	driverBot.Stop()
	transporterBot.Stop()
}
