// Package storage implements spec.md §6's durable KV/row persistence
// interface (core.Store) with two adapters, both adapted directly from
// the teacher's storage/sql.go and storage/buntdb.go: SQLStore over
// GORM/sqlite for the position ledger, and BuntStore over
// tidwall/buntdb for a dependency-light embedded alternative. The
// teacher persists core.Order; SQLStore/BuntStore persist
// core.PositionRow, this engine's durable unit.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/raykavin/perpbot/core"
)

// positionModel is the GORM-mapped row shape for core.PositionRow.
type positionModel struct {
	ID         string `gorm:"primaryKey"`
	Symbol     string
	Side       int
	EntryPrice float64
	Size       float64
	Status     string
	CreatedAt  time.Time
	ClosedAt   *time.Time
	ExitPrice  *float64
	Pnl        *float64
}

type logModel struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	Level     string
	Message   string
	Fields    string
	CreatedAt time.Time
}

func toModel(row core.PositionRow) positionModel {
	return positionModel{
		ID:         row.ID,
		Symbol:     row.Symbol,
		Side:       int(row.Side),
		EntryPrice: row.EntryPrice,
		Size:       row.Size,
		Status:     string(row.Status),
		CreatedAt:  row.CreatedAt,
		ClosedAt:   row.ClosedAt,
		ExitPrice:  row.ExitPrice,
		Pnl:        row.Pnl,
	}
}

func fromModel(m positionModel) core.PositionRow {
	return core.PositionRow{
		ID:         m.ID,
		Symbol:     m.Symbol,
		Side:       core.Side(m.Side),
		EntryPrice: m.EntryPrice,
		Size:       m.Size,
		Status:     core.PositionStatus(m.Status),
		CreatedAt:  m.CreatedAt,
		ClosedAt:   m.ClosedAt,
		ExitPrice:  m.ExitPrice,
		Pnl:        m.Pnl,
	}
}

// SQLStore implements core.Store over a GORM connection.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore opens a GORM connection and migrates the position/log
// tables, following FromSQL's connection-pool tuning.
func NewSQLStore(dialect gorm.Dialector, opts ...gorm.Option) (*SQLStore, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&positionModel{}, &logModel{}); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// SavePosition inserts a new position row and returns its ID.
func (s *SQLStore) SavePosition(row core.PositionRow) (string, error) {
	m := toModel(row)
	if m.ID == "" {
		m.ID = fmt.Sprintf("%s-%d", row.Symbol, time.Now().UnixNano())
	}
	if result := s.db.Create(&m); result.Error != nil {
		return "", fmt.Errorf("saving position: %w", result.Error)
	}
	return m.ID, nil
}

// UpdatePosition overwrites the row with the given ID.
func (s *SQLStore) UpdatePosition(id string, row core.PositionRow) error {
	var existing positionModel
	if result := s.db.First(&existing, "id = ?", id); result.Error != nil {
		return fmt.Errorf("position %s not found: %w", id, result.Error)
	}

	m := toModel(row)
	m.ID = id
	if result := s.db.Save(&m); result.Error != nil {
		return fmt.Errorf("updating position %s: %w", id, result.Error)
	}
	return nil
}

// FetchOpenPositions returns every row with status OPEN.
func (s *SQLStore) FetchOpenPositions() ([]core.PositionRow, error) {
	var models []positionModel
	result := s.db.Where("status = ?", string(core.PositionOpen)).Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("fetching open positions: %w", result.Error)
	}

	out := make([]core.PositionRow, 0, len(models))
	for _, m := range models {
		out = append(out, fromModel(m))
	}
	return out, nil
}

// Log persists a structured log line for post-hoc auditing.
func (s *SQLStore) Log(level, message string, fields map[string]any) error {
	encoded, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshalling log fields: %w", err)
	}

	row := logModel{Level: level, Message: message, Fields: string(encoded), CreatedAt: time.Now()}
	if result := s.db.Create(&row); result.Error != nil {
		return fmt.Errorf("persisting log entry: %w", result.Error)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
