package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roomchat/internal/relay"
	"roomchat/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	wsAddr := flag.String("ws", "", "also accept WebSocket clients on this address (e.g. :8081)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <port>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := server.DefaultConfig()
	if *configPath != "" {
		loaded, err := server.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	switch flag.NArg() {
	case 0:
		if *configPath == "" && os.Getenv("CHAT_ADDR") == "" {
			flag.Usage()
			os.Exit(1)
		}
	case 1:
		if err := cfg.SetPort(flag.Arg(0)); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	default:
		flag.Usage()
		os.Exit(1)
	}
	if *wsAddr != "" {
		cfg.WebSocket.Addr = *wsAddr
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)

	var opts []server.Option
	if cfg.NATS.URL != "" {
		r, err := relay.Connect(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			logger.Error("relay unavailable", "error", err)
			os.Exit(1)
		}
		defer r.Close()
		opts = append(opts, server.WithRelay(r))
	}

	srv := server.New(cfg, logger, opts...)

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-quit
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-drained
	logger.Info("server stopped")
}

// setupLogger builds the process logger from the configured level and format.
func setupLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
