package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"quote_stream/internal/app"
	"quote_stream/internal/event"
	"quote_stream/internal/infra/storage"
	"quote_stream/internal/server"
)

func main() {
	configPath := flag.String("config", "configs/server.yaml", "path to the server config file")
	flag.Parse()

	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := bootstrap.PrepareServer(); err != nil {
		slog.Error("❌ Server preparation failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := bootstrap.Config
	event.Warmup(cfg.Delivery.MailboxSize)

	// 3. Optional session journal
	var opts []server.Option
	if bootstrap.Storage != nil {
		if err := bootstrap.SyncCatalog(ctx); err != nil {
			slog.Warn("Catalog sync failed", slog.Any("error", err))
		}
		opts = append(opts, server.WithJournal(storage.NewJournal(bootstrap.Storage, cfg.Storage.JournalBuffer)))
	}

	// 4. Bind and run
	srv, err := server.New(cfg, bootstrap.Catalog, opts...)
	if err != nil {
		slog.Error("❌ Failed to start quote server", slog.Any("error", err))
		os.Exit(1)
	}

	slog.InfoContext(ctx, "✨ Quote server fully operational. Press Ctrl+C to exit.")
	if err := srv.Run(ctx); err != nil {
		slog.Error("❌ Quote server failed", slog.Any("error", err))
		bootstrap.Close()
		os.Exit(1)
	}

	slog.Info("👋 Shut down gracefully")
}
