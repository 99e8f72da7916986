package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/raykavin/perpbot/core"
)

// BuntStore implements core.Store over an embedded buntdb file,
// adapted directly from the teacher's BuntStorage (same
// Update/View transaction shape, same JSON-blob-per-key encoding).
type BuntStore struct {
	db *buntdb.DB
}

// NewBuntStore opens (or creates) a buntdb database at path. Pass
// ":memory:" for an ephemeral store.
func NewBuntStore(path string) (*BuntStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening buntdb: %w", err)
	}

	if err := db.CreateIndex("status_index", "positions:*", buntdb.IndexJSON("status")); err != nil {
		return nil, fmt.Errorf("creating status index: %w", err)
	}

	return &BuntStore{db: db}, nil
}

func positionKey(id string) string { return "positions:" + id }

// SavePosition inserts a new position row under a fresh key.
func (b *BuntStore) SavePosition(row core.PositionRow) (string, error) {
	if row.ID == "" {
		row.ID = fmt.Sprintf("%s-%d", row.Symbol, time.Now().UnixNano())
	}

	content, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("marshalling position: %w", err)
	}

	err = b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(positionKey(row.ID), string(content), nil)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("saving position: %w", err)
	}
	return row.ID, nil
}

// UpdatePosition overwrites the row at the given ID; it must already exist.
func (b *BuntStore) UpdatePosition(id string, row core.PositionRow) error {
	row.ID = id
	content, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshalling position: %w", err)
	}

	return b.db.Update(func(tx *buntdb.Tx) error {
		key := positionKey(id)
		if _, err := tx.Get(key); err != nil {
			return fmt.Errorf("position %s not found: %w", id, err)
		}
		_, _, err := tx.Set(key, string(content), nil)
		return err
	})
}

// FetchOpenPositions scans every row and returns those with status OPEN.
func (b *BuntStore) FetchOpenPositions() ([]core.PositionRow, error) {
	var out []core.PositionRow

	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("status_index", func(_, value string) bool {
			var row core.PositionRow
			if err := json.Unmarshal([]byte(value), &row); err != nil {
				return true // skip malformed row, keep iterating
			}
			if row.Status == core.PositionOpen {
				out = append(out, row)
			}
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scanning positions: %w", err)
	}
	return out, nil
}

// Log persists a structured log line under a timestamp-ordered key.
func (b *BuntStore) Log(level, message string, fields map[string]any) error {
	entry := struct {
		Level   string         `json:"level"`
		Message string         `json:"message"`
		Fields  map[string]any `json:"fields"`
		At      time.Time      `json:"at"`
	}{Level: level, Message: message, Fields: fields, At: time.Now()}

	content, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshalling log entry: %w", err)
	}

	key := fmt.Sprintf("logs:%d", time.Now().UnixNano())
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(content), nil)
		return err
	})
}

// Close releases the underlying file handle.
func (b *BuntStore) Close() error {
	return b.db.Close()
}
