package app

import (
	"context"
	"log/slog"
	"time"

	"quote_stream/internal/domain"
	"quote_stream/internal/infra"
	"quote_stream/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
	Catalog []string
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads the configuration and installs the default logger.
func (b *Bootstrap) Initialize(configPath string) error {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	slog.SetDefault(infra.NewLogger(cfg))
	slog.Info("🚀 Bootstrapping quote stream...",
		slog.String("config", configPath),
		slog.String("version", cfg.App.Version))
	return nil
}

// PrepareServer reads the ticker catalog and opens the session store when
// one is configured.
func (b *Bootstrap) PrepareServer() error {
	catalog, err := infra.ReadTickers(b.Config.Server.TickersFile)
	if err != nil {
		return err
	}
	b.Catalog = catalog
	slog.Info("✅ Ticker catalog loaded",
		slog.String("file", b.Config.Server.TickersFile),
		slog.Int("tickers", len(catalog)))

	if b.Config.Storage.Path == "" {
		return nil
	}
	store, err := storage.NewStorage(b.Config.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized", slog.String("path", b.Config.Storage.Path))
	return nil
}

// SyncCatalog writes the catalog to the store in catalog order. Duplicate
// tickers keep their first position.
func (b *Bootstrap) SyncCatalog(ctx context.Context) error {
	if b.Storage == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	liquid := domain.TickerSet(b.Config.Quotes.HighLiquidity)
	seen := make(map[string]struct{}, len(b.Catalog))
	rows := make([]domain.CatalogTicker, 0, len(b.Catalog))
	now := time.Now()
	for _, t := range b.Catalog {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		_, high := liquid[t]
		rows = append(rows, domain.CatalogTicker{
			Symbol:        t,
			Position:      len(rows),
			HighLiquidity: high,
			UpdatedAt:     now,
		})
	}

	if err := b.Storage.UpsertCatalog(rows); err != nil {
		slog.Error("Failed to sync catalog", slog.Any("error", err))
		return err
	}
	slog.Info("✨ Catalog synchronization completed", slog.Int("tickers", len(rows)))
	return nil
}

// Close releases the session store.
func (b *Bootstrap) Close() {
	if b.Storage == nil {
		return
	}
	if err := b.Storage.Close(); err != nil {
		slog.Warn("Failed to close storage", slog.Any("error", err))
	}
}
