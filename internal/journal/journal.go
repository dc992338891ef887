// Package journal implements TradeJournal (C7): an append-only record of
// closed trades backed by MySQL via gorm, replacing the crash-safe JSON
// snapshot file approach with a queryable relational log.
package journal

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradestop/pkg/types"
)

// Journal persists ClosedTradeRecord rows and serves the history query
// surface. Writes are durable (synchronous INSERT) before the closing flow
// returns to the caller, per §4.7.
type Journal struct {
	db *gorm.DB
}

// Open connects to MySQL at dsn and migrates the closed_trades schema.
// dsn format: "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
func Open(dsn string) (*Journal, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if err := db.AutoMigrate(&types.ClosedTradeRecord{}); err != nil {
		return nil, fmt.Errorf("migrate journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	return sqlDB.Close()
}

// Append durably records a closed trade.
func (j *Journal) Append(record types.ClosedTradeRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if result := j.db.Create(&record); result.Error != nil {
		return fmt.Errorf("append closed trade: %w", result.Error)
	}
	return nil
}

// Filter narrows a history query by symbol and/or a created_at window.
// A zero Symbol or zero time bound is treated as "no constraint."
type Filter struct {
	Symbol types.Symbol
	Start  time.Time
	End    time.Time
}

// List returns closed trades matching filter, ordered by created_at descending.
func (j *Journal) List(filter Filter) ([]types.ClosedTradeRecord, error) {
	q := j.db.Model(&types.ClosedTradeRecord{})

	if filter.Symbol != "" {
		q = q.Where("symbol = ?", string(filter.Symbol))
	}
	if !filter.Start.IsZero() {
		q = q.Where("created_at >= ?", filter.Start)
	}
	if !filter.End.IsZero() {
		q = q.Where("created_at <= ?", filter.End)
	}

	var records []types.ClosedTradeRecord
	if result := q.Order("created_at DESC").Find(&records); result.Error != nil {
		return nil, fmt.Errorf("list closed trades: %w", result.Error)
	}
	return records, nil
}
