package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baharkarakas/circulation-backend/internal/api"
	"github.com/baharkarakas/circulation-backend/internal/auth"
	"github.com/baharkarakas/circulation-backend/internal/config"
	"github.com/baharkarakas/circulation-backend/internal/logger"
	"github.com/baharkarakas/circulation-backend/internal/metrics"
	"github.com/baharkarakas/circulation-backend/internal/services"
	"github.com/baharkarakas/circulation-backend/internal/store"
	"github.com/baharkarakas/circulation-backend/internal/worker"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		log.Error("store open", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	wp := worker.NewPool(cfg.Worker.Size)
	defer wp.Stop()

	circ := services.NewCirculationService(st,
		services.WithLogger(log),
		services.WithLoanPeriod(cfg.Circulation.LoanPeriod),
	)
	accounts := services.NewAccountService(st, log)
	catalog := services.NewCatalogService(st, circ, wp, log)
	tm := auth.NewTokenManager(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.Issuer, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	metrics.Init()
	r := api.NewRouter(api.RouterDeps{Cfg: cfg, TM: tm, Accounts: accounts, Catalog: catalog, Circ: circ})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTP.Port, "driver", cfg.Store.Driver, "loan_period", cfg.Circulation.LoanPeriod)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
