package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ardaweather/weather-dashboard/internal/models"
)

// SQLiteRepository stores snapshots in a local SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the snapshot database at path and
// ensures the weather table exists. A single write connection avoids
// SQLITE_BUSY under concurrent handlers.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS weather (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			city TEXT,
			temp REAL,
			humidity INTEGER,
			wind_speed REAL,
			description TEXT,
			time TEXT
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create weather table: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Insert implements Repository.Insert.
func (r *SQLiteRepository) Insert(ctx context.Context, s models.Snapshot) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO weather (city, temp, humidity, wind_speed, description, time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.City, s.Temp, s.Humidity, s.WindSpeed, s.Description, s.Time)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert snapshot id: %w", err)
	}
	return id, nil
}

// ListByCity implements Repository.ListByCity.
func (r *SQLiteRepository) ListByCity(ctx context.Context, city string) ([]models.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, city, temp, humidity, wind_speed, description, time
		 FROM weather WHERE city = ? ORDER BY time DESC`, city)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	out := []models.Snapshot{}
	for rows.Next() {
		var s models.Snapshot
		if err := rows.Scan(&s.ID, &s.City, &s.Temp, &s.Humidity, &s.WindSpeed, &s.Description, &s.Time); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteByCity implements Repository.DeleteByCity.
func (r *SQLiteRepository) DeleteByCity(ctx context.Context, city string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM weather WHERE city = ?`, city)
	if err != nil {
		return 0, fmt.Errorf("delete snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete snapshots count: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
