package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"ragcore/internal/httpapi"
	"ragcore/internal/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the retrieval HTTP API",
	Long:  `The serve command starts an HTTP server answering retrieval queries. /healthz reports 503 until the index is built.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg := currentConfig
	engine, err := newEngine(cfg, nil)
	if err != nil {
		return err
	}
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	r := httpapi.NewRouter(httpapi.NewHandler(engine, log.WithName("http")))

	// Create HTTP server
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	errCh := make(chan error, 2)
	// Start server in a goroutine
	go func() {
		log.Info("listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := engine.Initialize(context.Background()); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case <-quit:
		log.Info("shutting down server")
	case runErr = <-errCh:
		log.Error(runErr, "server stopped")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(ctx); err != nil {
		log.Error(err, "server forced to shutdown")
	}
	_ = engine.Shutdown(ctx)
	log.Info("server exited")
	return runErr
}
