package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/yitech/candlechart/adapter"
	"github.com/yitech/candlechart/adapter/binance"
	"github.com/yitech/candlechart/adapter/bybit"
	"github.com/yitech/candlechart/adapter/okx"
	"github.com/yitech/candlechart/adapter/synth"
	"github.com/yitech/candlechart/aggregator"
	"github.com/yitech/candlechart/config"
	"github.com/yitech/candlechart/feed"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(getEnv("CONFIG", "config.yaml"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var out io.Writer = os.Stderr
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	log := config.NewLogger(out, cfg.Log.Level)

	adapters := make([]adapter.Adapter, 0, len(cfg.Feed.Exchanges))
	for _, ex := range cfg.Feed.Exchanges {
		adapters = append(adapters, newAdapter(ex, log))
	}
	defer func() {
		for _, a := range adapters {
			a.Close()
		}
	}()

	agg := aggregator.New(log, cfg.Feed.History, adapters...)
	defer agg.Close()

	lis, err := net.Listen("tcp", cfg.Feed.Addr)
	if err != nil {
		log.Error("failed to listen", "addr", cfg.Feed.Addr, "err", err)
		os.Exit(1)
	}

	s := grpc.NewServer()
	feed.Register(s, feed.NewServer(agg, cfg.Feed.History, log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		s.Stop()
	}()

	log.Info("gRPC server listening", "addr", lis.Addr().String(), "exchanges", cfg.Feed.Exchanges)
	if err := s.Serve(lis); err != nil {
		log.Error("failed to serve", "err", err)
	}
}

func newAdapter(name string, log *slog.Logger) adapter.Adapter {
	switch name {
	case "binance":
		return binance.New(log)
	case "bybit":
		return bybit.New(log)
	case "okx":
		return okx.New(log)
	default:
		return synth.New(log)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
