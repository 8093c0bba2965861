package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"projector_reservation/app"
	"projector_reservation/config"
	"projector_reservation/log"
	"projector_reservation/routes"

	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "configs/config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.EnsureLogger("info", "json")
		log.Logger.Fatal("load config", zap.Error(err))
	}
	log.EnsureLogger(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()

	application := app.MustNew(cfg)
	routes.RegisterRoutes(application.Router, application)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	application.BootstrapAdmins(ctx)
	cancel()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Logger.Info("listening", zap.String("addr", srv.Addr), zap.String("mode", cfg.Server.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Logger.Fatal("http server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Logger.Info("shutting down")

	ctx, cancel = context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Logger.Error("http shutdown", zap.Error(err))
	}
	application.Close(ctx)
}
