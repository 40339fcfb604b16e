package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"comicshelf/internal/admin"
	"comicshelf/internal/auth"
	"comicshelf/internal/catalog"
	"comicshelf/internal/comics"
	"comicshelf/internal/events"
	"comicshelf/internal/fetch"
	"comicshelf/internal/pricing"
	"comicshelf/internal/reconcile"
	"comicshelf/internal/xref"
	"comicshelf/pkg/config"
	"comicshelf/pkg/database"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "api-server").Logger()

	cfg := config.Load()
	cfg.LogWarnings(log)

	db := database.MustOpen(database.Config{URL: cfg.DatabaseURL}, log)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("db migrate failed")
	}

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	hub := events.NewHub()
	router.GET("/ws", events.WSHandler(hub, log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not_ready",
				"db_error":   err.Error(),
				"ws_clients": hub.Count(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":     "ready",
			"db":         "ok",
			"ws_clients": hub.Count(),
		})
	})

	// Catalog (public)
	comicsRepo := comics.NewRepo(db)
	comicsHandler := comics.NewHandler(comicsRepo)
	comicsHandler.RegisterRoutes(router.Group("/catalog"))

	// Pricing (public reads)
	pricingRepo := pricing.NewRepo(db)
	pricingHandler := pricing.NewHandler(pricingRepo)
	pricingHandler.RegisterRoutes(router.Group("/pricing"))

	// Auth
	tokenSvc := auth.TokenService{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Duration: cfg.JWTDuration,
	}
	authHandler := auth.NewHandler(tokenSvc, cfg.AdminUser, cfg.AdminPasswordHash)
	authHandler.RegisterRoutes(router.Group("/auth"))

	// Admin (protected): force a reconcile or a pricing refresh.
	fetcher := fetch.New(log)
	xrefRepo := xref.NewRepo(db)
	cvClient := catalog.NewClient(fetcher, cfg.ComicVineKey, log)
	reconciler := reconcile.NewEngine(db, cvClient, xrefRepo, comicsRepo, log)
	valuation := pricing.NewValuationClient(fetcher, cfg.GoCollectKey, log)
	listings := pricing.NewListingsClient(fetcher, cfg.EbayToken, log)
	pricer := pricing.NewEngine(db, valuation, listings, xrefRepo, comicsRepo, log)

	protected := router.Group("/admin")
	protected.Use(auth.Middleware(tokenSvc))
	admin.NewHandler(reconciler, pricer, comicsRepo).RegisterRoutes(protected)

	httpSrv := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.APIAddr).Msg("HTTP API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}
	log.Info().Msg("server stopped")
}
