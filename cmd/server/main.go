package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tone-curve-agent/internal/api"
	"tone-curve-agent/internal/config"
	"tone-curve-agent/internal/service"
	"tone-curve-agent/internal/storage"
	"tone-curve-agent/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := storage.NewStore(cfg.DataPath, cfg.OutputDir)
	if err != nil {
		log.Fatalf("init store: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := ws.NewHub()
	go hub.Run(ctx)
	sessionHub := ws.NewSessionHub()

	curvesSvc, err := service.NewCurvesService(cfg, store, hub, sessionHub)
	if err != nil {
		log.Fatalf("init curves service: %v", err)
	}
	go curvesSvc.RunJanitor(ctx)

	router := api.NewRouter(cfg, store, hub, sessionHub, curvesSvc)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	cancel()
	if err := store.Save(); err != nil {
		log.Printf("flush store: %v", err)
	}
	log.Printf("server stopped")
}
