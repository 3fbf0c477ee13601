package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Windi-Fikriyansyah/platform_be_care/internal/config"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/db"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/handlers"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/logging"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/models"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/realtime"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/booking"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/caregiver"
	"github.com/Windi-Fikriyansyah/platform_be_care/internal/services/rating"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logging.New(cfg.AppEnv)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	if err := models.AutoMigrate(gdb); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	if err := db.SeedServiceTypes(gdb); err != nil {
		log.Fatal("seed service types", zap.Error(err))
	}
	if err := db.SeedAdmin(gdb, cfg.AdminEmail, cfg.AdminPassword, log); err != nil {
		log.Fatal("seed admin", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub(log)
	go hub.Run(ctx)

	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword, log)
	if rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis ping", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		go realtime.Relay(ctx, rdb, hub, log)
	}
	notifier := realtime.NewNotifier(rdb, hub, log)

	bookings := booking.NewBookingService(gdb, log)
	bookings.StartExpiryWorker(ctx, 15*time.Minute, func(b models.Booking) {
		notifier.Notify(ctx, b.ClientID, realtime.EventBookingStatus, b)
		notifier.Notify(ctx, b.CaregiverUserID, realtime.EventBookingStatus, b)
	})

	app := handlers.NewApp(log)
	app.Use(middleware.RequestID())
	app.Use(middleware.Recovery())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))

	handlers.Register(app, handlers.Deps{
		Cfg:             cfg,
		DB:              gdb,
		Log:             log,
		Hub:             hub,
		Notifier:        notifier,
		Store:           caregiver.NewStore(gdb, log),
		Ratings:         rating.NewRatingService(gdb),
		Bookings:        bookings,
		LoginLimiter:    middleware.LoginRateLimiter(),
		RegisterLimiter: middleware.RegisterRateLimiter(),
	})

	go func() {
		log.Info("listening", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			log.Error("server stopped", zap.Error(err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(shutdownCtx)

	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
