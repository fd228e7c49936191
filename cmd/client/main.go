package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/yitech/candlechart/config"
	"github.com/yitech/candlechart/feed"
)

// retryDelay is the pause between feed reconnects.
const retryDelay = 3 * time.Second

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

	// The terminal belongs to the TUI, so logs go to a file or the status line.
	status := &statusLine{}
	var out io.Writer = status
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		out = io.MultiWriter(f, status)
	}
	log := config.NewLogger(out, cfg.Log.Level)
	slog.SetDefault(log)

	client, err := feed.Dial(cfg.Feed.Addr)
	if err != nil {
		log.Error("failed to create client", "err", err)
		os.Exit(1)
	}
	defer client.Close()

	m, err := newModel(cfg, log, status)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan feedMsg, 128)
	go streamFeed(ctx, client, cfg.Key(), ch, log)

	m.feed = ch
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
		os.Exit(1)
	}
}

// streamFeed keeps a subscription alive, retrying after every failure.
func streamFeed(ctx context.Context, client *feed.Client, key string, ch chan<- feedMsg, log *slog.Logger) {
	for {
		err := client.Subscribe(ctx, key, func(buf []byte, snapshot bool) {
			select {
			case ch <- feedMsg{buf: buf, snapshot: snapshot}:
			case <-ctx.Done():
			}
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warn("stream error, retrying", "err", err, "in", retryDelay)
		}
		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return
		}
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
