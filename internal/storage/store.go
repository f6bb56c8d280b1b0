// Package storage persists decoded telemetry records in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trackserv/internal/position"
)

// ErrNoPosition is returned when a device has no stored positions.
var ErrNoPosition = errors.New("no stored position")

// Store writes positions through a single WAL-mode connection, opened
// lazily on first use. Safe for concurrent use; SQLite serializes the
// writes.
type Store struct {
	dbPath string

	dbOnce sync.Once
	db     *sql.DB
	dbErr  error

	closeOnce sync.Once
	closeErr  error
}

func New(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func (s *Store) getDB() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", s.dbPath))
		if err != nil {
			s.dbErr = fmt.Errorf("opening database: %w", err)
			return
		}
		if _, err := db.Exec(initSchemaSQL); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("initializing schema: %w", err)
			return
		}
		s.db = db
	})
	return s.db, s.dbErr
}

// HandlePosition implements the ingest server's sink contract.
func (s *Store) HandlePosition(ctx context.Context, p *position.Position) error {
	return s.SavePosition(ctx, p)
}

func (s *Store) SavePosition(ctx context.Context, p *position.Position) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	var attrs sql.NullString
	if p.Attributes.Len() > 0 {
		b, err := json.Marshal(p.Attributes)
		if err != nil {
			return fmt.Errorf("marshaling attributes: %w", err)
		}
		attrs.Valid = true
		attrs.String = string(b)
	}

	if _, err := db.ExecContext(ctx, insertPositionSQL,
		p.DeviceID, p.Protocol, p.Time.UTC(), p.Valid,
		p.Latitude, p.Longitude, p.Altitude, p.Speed, p.Course, attrs,
	); err != nil {
		return fmt.Errorf("inserting position: %w", err)
	}
	return nil
}

// Stored is a persisted position read back from the database.
type Stored struct {
	DeviceID   int64
	Protocol   string
	Time       time.Time
	Valid      bool
	Latitude   float64
	Longitude  float64
	Altitude   float64
	Speed      float64
	Course     float64
	Attributes map[string]any
}

// LatestPosition returns the most recent position for a device.
func (s *Store) LatestPosition(ctx context.Context, deviceID int64) (*Stored, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var out Stored
	var attrs sql.NullString
	err = db.QueryRowContext(ctx, selectLatestSQL, deviceID).Scan(
		&out.DeviceID, &out.Protocol, &out.Time, &out.Valid,
		&out.Latitude, &out.Longitude, &out.Altitude, &out.Speed, &out.Course, &attrs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoPosition
	}
	if err != nil {
		return nil, fmt.Errorf("scanning position: %w", err)
	}
	if attrs.Valid {
		if err := json.Unmarshal([]byte(attrs.String), &out.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshaling attributes: %w", err)
		}
	}
	return &out, nil
}

// Count reports the number of stored positions.
func (s *Store) Count(ctx context.Context) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.QueryRowContext(ctx, countPositionsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting positions: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.db != nil {
			s.closeErr = s.db.Close()
		}
	})
	return s.closeErr
}
