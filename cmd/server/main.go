package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/sporelab/reportql/internal/cache"
	"github.com/sporelab/reportql/internal/catalog"
	"github.com/sporelab/reportql/internal/config"
	"github.com/sporelab/reportql/internal/db"
	"github.com/sporelab/reportql/internal/engine"
	"github.com/sporelab/reportql/internal/export"
	"github.com/sporelab/reportql/internal/middleware"
	"github.com/sporelab/reportql/internal/related"
	"github.com/sporelab/reportql/internal/repository"
	"github.com/sporelab/reportql/internal/server"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, conn.Pool, "./migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories and the schema catalog
	reportRepo := repository.NewReportRepository(conn.Pool)
	cat := catalog.New(catalog.WithIntrospector(catalog.NewPGIntrospector(conn.Pool)))

	// Create the report engine with its fallback stages
	eng := engine.New(cat, reportRepo, reportRepo, reportRepo,
		engine.WithTimeout(cfg.Engine.QueryTimeout),
		engine.WithRelatedLoader(related.NewLoader(reportRepo)),
	)

	// Result cache with periodic expiry sweeps
	resultCache := cache.NewResultCache(cache.WithTTL(cfg.Engine.CacheTTL))
	janitor, err := cache.StartJanitor(resultCache, cfg.Engine.JanitorSchedule)
	if err != nil {
		log.Fatalf("Failed to start cache janitor: %v", err)
	}
	defer janitor.Stop()

	// Services and HTTP handler
	reports := server.NewReportService(eng, resultCache)
	exports := export.NewService(cfg.Server.ExportSecret)
	handler := server.NewHandler(reports, exports, cat)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	root := corsHandler.Handler(
		middleware.LoggingMiddleware(
			middleware.ScopeMiddleware(handler.Routes()),
		),
	)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting report engine server on :%d", cfg.Server.Port)
		log.Printf("Report endpoint available at http://localhost:%d/reports/execute", cfg.Server.Port)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
