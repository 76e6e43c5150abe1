package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve scan, download and settings requests as a local JSON API",
	Long: `Starts an HTTP server exposing:

  POST /scan                     {"source": "<url or file>"}
  POST /download                 {"attachments": [{"url": "...", "filename": "..."}], "label": "..."}
  GET  /settings/download-root
  PUT  /settings/download-root   {"value": "Classroom"}

Only one server may use a database at a time.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "Address to listen on (overrides config ListenAddr)")
	viper.BindPFlag("serve.listen", serveCmd.Flags().Lookup("listen"))
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := globalConfig.ListenAddr
	if listen := viper.GetString("serve.listen"); listen != "" {
		addr = listen
	}

	lockPath := globalConfig.DatabasePath + ".lock"
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", lockPath, err)
	}
	if !locked {
		return fmt.Errorf("another server is already using %s", globalConfig.DatabasePath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.WithError(err).Warnf("Failed to release lock %s", lockPath)
		}
	}()

	a, err := openApp(true, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.WithError(err).Error("Error closing application state")
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              addr,
		Handler:           a.service.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening on http://%s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
