package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/ardaweather/weather-dashboard/internal/models"
)

// PostgresRepository stores snapshots in PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// OpenPostgres connects, pings, and ensures the weather table exists.
func OpenPostgres(dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS weather (
			id BIGSERIAL PRIMARY KEY,
			city TEXT,
			temp DOUBLE PRECISION,
			humidity INTEGER,
			wind_speed DOUBLE PRECISION,
			description TEXT,
			time TEXT
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create weather table: %w", err)
	}
	return &PostgresRepository{db: db}, nil
}

// Insert implements Repository.Insert.
func (r *PostgresRepository) Insert(ctx context.Context, s models.Snapshot) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO weather (city, temp, humidity, wind_speed, description, time)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		s.City, s.Temp, s.Humidity, s.WindSpeed, s.Description, s.Time).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return id, nil
}

// ListByCity implements Repository.ListByCity.
func (r *PostgresRepository) ListByCity(ctx context.Context, city string) ([]models.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, city, temp, humidity, wind_speed, description, time
		 FROM weather WHERE city = $1 ORDER BY time DESC`, city)
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
func (r *PostgresRepository) DeleteByCity(ctx context.Context, city string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM weather WHERE city = $1`, city)
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
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
