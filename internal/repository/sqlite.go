package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mini-ttc/etaboard/internal/models"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// SQLiteDB wraps a SQL database connection for SQLite
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *SQLiteDB) GetDB() *sql.DB {
	return s.db
}

// Ping checks connectivity
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SQLiteStationRepository reads imported station metadata
type SQLiteStationRepository struct {
	db *sql.DB
}

// NewSQLiteStationRepository creates a new SQLiteStationRepository
func NewSQLiteStationRepository(db *sql.DB) *SQLiteStationRepository {
	return &SQLiteStationRepository{db: db}
}

const stationColumns = `stop_num, stop_id, name, direction, latitude, longitude, parent_station`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStation(row rowScanner) (models.Station, error) {
	var s models.Station
	var direction, parent sql.NullString
	var lat, lon sql.NullFloat64
	if err := row.Scan(&s.StopNum, &s.StopID, &s.Name, &direction, &lat, &lon, &parent); err != nil {
		return s, err
	}
	if direction.Valid && direction.String != "" {
		s.Direction = &direction.String
	}
	if parent.Valid && parent.String != "" {
		s.ParentStation = &parent.String
	}
	if lat.Valid && lon.Valid && (lat.Float64 != 0 || lon.Float64 != 0) {
		s.Latitude = &lat.Float64
		s.Longitude = &lon.Float64
	}
	return s, nil
}

// GetAllStations returns every imported station
func (r *SQLiteStationRepository) GetAllStations(ctx context.Context) ([]models.Station, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+stationColumns+` FROM ttc_stations ORDER BY stop_num`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	stations := []models.Station{}
	for rows.Next() {
		s, err := scanStation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		stations = append(stations, s)
	}
	return stations, rows.Err()
}

// GetStation returns one station by its stop number
func (r *SQLiteStationRepository) GetStation(ctx context.Context, stopNum int) (*models.Station, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+stationColumns+` FROM ttc_stations WHERE stop_num = ?`, stopNum)
	s, err := scanStation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("station %d: %w", stopNum, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get station: %w", err)
	}
	return &s, nil
}
