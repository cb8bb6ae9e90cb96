package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"quote_stream/internal/app"
	"quote_stream/internal/client"
	"quote_stream/internal/domain"
	"quote_stream/internal/infra"

	"github.com/shopspring/decimal"
)

func main() {
	configPath := flag.String("config", "configs/client.yaml", "path to the client config file")
	flag.Parse()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	tickers, err := infra.ReadTickers(cfg.Client.TickersFile)
	if err != nil {
		slog.Error("❌ Failed to read tickers", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.New(client.ConfigFrom(cfg, tickers))
	if err != nil {
		slog.Error("❌ Failed to bind client socket", slog.Any("error", err))
		os.Exit(1)
	}
	defer c.Close()

	slog.Info("✅ Quote client started",
		slog.String("local", c.LocalAddr().String()),
		slog.String("server", cfg.Client.ServerAddr),
		slog.Any("tickers", tickers))

	places := cfg.Client.PriceDecimals
	err = c.Run(ctx, func(quotes []domain.Quote) {
		for _, q := range quotes {
			slog.Info("Quote",
				slog.String("ticker", q.Ticker),
				slog.String("price", decimal.NewFromFloat(q.Price).StringFixed(places)),
				slog.Uint64("volume", uint64(q.Volume)),
				slog.Uint64("timestamp", q.Timestamp))
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("❌ Quote client stopped", slog.Any("error", err))
		c.Close()
		os.Exit(1)
	}
	slog.Info("👋 Shut down gracefully")
}
