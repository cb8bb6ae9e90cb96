package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"quote_stream/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage is the SQLite-backed session journal and ticker catalog.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the database at path and migrates it.
func NewStorage(path string) (*Storage, error) {
	// Ensure directory exists
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.SubscriberSession{}, &domain.CatalogTicker{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Session Operations
// ======================================================================================

// OpenSession records a new registration.
func (s *Storage) OpenSession(sess *domain.SubscriberSession) error {
	return s.db.Create(sess).Error
}

// EndSession stamps an open session as ended. Ending an already closed or
// unknown session is a no-op.
func (s *Storage) EndSession(id, reason string, at time.Time) error {
	return s.db.Model(&domain.SubscriberSession{}).
		Where("id = ? AND ended_at IS NULL", id).
		Updates(map[string]any{"ended_at": at, "end_reason": reason}).Error
}

// EndAllOpen ends every open session and returns how many were closed.
func (s *Storage) EndAllOpen(reason string, at time.Time) (int64, error) {
	res := s.db.Model(&domain.SubscriberSession{}).
		Where("ended_at IS NULL").
		Updates(map[string]any{"ended_at": at, "end_reason": reason})
	return res.RowsAffected, res.Error
}

// GetSession retrieves a session by id
func (s *Storage) GetSession(id string) (*domain.SubscriberSession, error) {
	var sess domain.SubscriberSession
	err := s.db.First(&sess, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &sess, err
}

// ListOpenSessions returns sessions that have not ended, oldest first.
func (s *Storage) ListOpenSessions() ([]domain.SubscriberSession, error) {
	var sessions []domain.SubscriberSession
	err := s.db.Where("ended_at IS NULL").Order("registered_at").Find(&sessions).Error
	return sessions, err
}

// SessionsByAddr returns every session recorded for addr, oldest first.
func (s *Storage) SessionsByAddr(addr string) ([]domain.SubscriberSession, error) {
	var sessions []domain.SubscriberSession
	err := s.db.Where("addr = ?", addr).Order("registered_at").Find(&sessions).Error
	return sessions, err
}

// ======================================================================================
// Catalog Operations
// ======================================================================================

// UpsertCatalog creates or updates catalog tickers in one transaction.
func (s *Storage) UpsertCatalog(tickers []domain.CatalogTicker) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for i := range tickers {
			if err := tx.Save(&tickers[i]).Error; err != nil {
				return fmt.Errorf("upsert %s: %w", tickers[i].Symbol, err)
			}
		}
		return nil
	})
}

// GetCatalog returns the stored catalog in position order.
func (s *Storage) GetCatalog() ([]domain.CatalogTicker, error) {
	var tickers []domain.CatalogTicker
	err := s.db.Order("position").Find(&tickers).Error
	return tickers, err
}

// Compile-time check
var _ domain.SessionRepository = (*Storage)(nil)
