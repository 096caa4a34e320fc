package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rccm-quiz/sessionguard/internal/config"
	"github.com/rccm-quiz/sessionguard/internal/server"
	"github.com/rccm-quiz/sessionguard/internal/session"
)

var (
	serveHost     string
	servePort     int
	serveStore    string
	serveRedisURL string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &cfg.Server
		flags := cmd.Flags()
		if flags.Changed("host") {
			s.Host = serveHost
		}
		if flags.Changed("port") {
			s.Port = servePort
		}
		if flags.Changed("store") {
			s.Store = serveStore
		}
		if flags.Changed("redis-url") {
			s.RedisURL = serveRedisURL
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err := newLogger(os.Stderr, s.LogLevel)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openSessionStore(ctx, *s)
		if err != nil {
			return err
		}
		defer store.Close()

		srv := server.New(server.Config{
			SessionTTL:       s.SessionTTL,
			WarningThreshold: s.WarningThreshold,
			PushInterval:     s.PushInterval,
			RateLimitRPS:     s.RateLimit.RPS,
			RateLimitBurst:   s.RateLimit.Burst,
			AuthToken:        s.AuthToken,
			AllowedOrigins:   s.AllowedOrigins,
			SecureCookie:     s.SecureCookie,
		}, store, server.WithLogger(logger))

		// No write timeout: /ws connections are long-lived.
		httpServer := &http.Server{
			Addr:              net.JoinHostPort(s.Host, strconv.Itoa(s.Port)),
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		pushDone := make(chan struct{})
		go func() {
			srv.Run(ctx)
			close(pushDone)
		}()

		done := make(chan error, 1)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()
		logger.Info("session backend listening", "addr", httpServer.Addr, "store", s.Store, "session_ttl", s.SessionTTL)

		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			<-pushDone
			return nil
		case err := <-done:
			stop()
			<-pushDone
			return err
		}
	},
}

func openSessionStore(ctx context.Context, s config.ServerConfig) (session.Store, error) {
	if s.Store == "redis" {
		return session.NewRedisStore(ctx, s.RedisURL, s.Retention)
	}
	return session.NewMemoryStore(), nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Interface to listen on")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on")
	serveCmd.Flags().StringVar(&serveStore, "store", "", "Session store: memory or redis")
	serveCmd.Flags().StringVar(&serveRedisURL, "redis-url", "", "Redis URL for the redis store")
}
