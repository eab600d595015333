package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"van-dispatch-service/internal/domain"

	"github.com/jmoiron/sqlx"
)

// Initialize the database schema. The DDL is valid for both Postgres and SQLite.
func InitSchema(db *sqlx.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createVansQuery := `
	CREATE TABLE IF NOT EXISTS vans (
		van_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		capacity INTEGER NOT NULL CHECK (capacity >= 0),
		status TEXT NOT NULL,
		lat DOUBLE PRECISION,
		lon DOUBLE PRECISION,
		position_updated_at_ms BIGINT,
		operator_id TEXT
	);
	`

	createRidesQuery := `
	CREATE TABLE IF NOT EXISTS rides (
		ride_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		pickup_lat DOUBLE PRECISION NOT NULL,
		pickup_lon DOUBLE PRECISION NOT NULL,
		drop_lat DOUBLE PRECISION NOT NULL,
		drop_lon DOUBLE PRECISION NOT NULL,
		passenger_count INTEGER NOT NULL CHECK (passenger_count >= 1),
		van_id TEXT REFERENCES vans (van_id),
		requested_at_ms BIGINT NOT NULL,
		walk_on BOOLEAN NOT NULL DEFAULT FALSE
	);
	`

	createVanTasksQuery := `
	CREATE TABLE IF NOT EXISTS van_tasks (
		van_id TEXT NOT NULL REFERENCES vans (van_id),
		ride_id TEXT NOT NULL REFERENCES rides (ride_id),
		phase TEXT NOT NULL,
		task_order INTEGER NOT NULL,
		PRIMARY KEY (van_id, task_order),
		UNIQUE (van_id, ride_id, phase)
	);
	`

	createRouteCacheQuery := `
	CREATE TABLE IF NOT EXISTS route_cache (
		route_key TEXT PRIMARY KEY,
		total_seconds DOUBLE PRECISION NOT NULL,
		leg_seconds TEXT NOT NULL,
		cached_at_ms BIGINT NOT NULL
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_rides_van_status
    ON rides (van_id, status);
	`

	statements := []string{
		createVansQuery,
		createRidesQuery,
		createVanTasksQuery,
		createRouteCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type VanSeed struct {
	VanID      string   `json:"van_id"`
	Name       string   `json:"name"`
	Capacity   int      `json:"capacity"`
	Status     string   `json:"status"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	OperatorID *string  `json:"operator_id"`
}

// Populate the vans table from a JSON file. Existing vans keep their live
// position; name, capacity, status and operator are overwritten.
func SeedFromJSON(db *sqlx.DB, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed vans: read %q: %w", jsonPath, err)
	}

	var data []VanSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed vans: parse json: %w", err)
	}

	return SeedVans(db, data)
}

// SeedVans upserts the given vans in one transaction.
func SeedVans(db *sqlx.DB, data []VanSeed) error {
	rows := make([]VanSeed, 0, len(data))
	for i, item := range data {
		id := strings.TrimSpace(item.VanID)
		if id == "" {
			return fmt.Errorf("seed vans: item at index %d: van_id cannot be empty", i+1)
		}
		if item.Capacity < 1 {
			return fmt.Errorf("seed vans: van %s: invalid capacity %d", id, item.Capacity)
		}

		status := domain.VanStatus(strings.ToUpper(strings.TrimSpace(item.Status)))
		switch status {
		case "":
			status = domain.VanActive
		case domain.VanActive, domain.VanMaintenance, domain.VanOffline:
		default:
			return fmt.Errorf("seed vans: van %s: invalid status %q", id, item.Status)
		}

		if (item.Lat == nil) != (item.Lon == nil) {
			return fmt.Errorf("seed vans: van %s: lat and lon must be set together", id)
		}

		item.VanID = id
		item.Status = string(status)
		rows = append(rows, item)
	}

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("seed vans: begin tx: %w", err)
	}
	defer tx.Rollback()

	query := db.Rebind(`
	INSERT INTO vans (
		van_id,
		name,
		capacity,
		status,
		lat,
		lon,
		operator_id
	)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (van_id) DO UPDATE
	SET name = EXCLUDED.name,
		capacity = EXCLUDED.capacity,
		status = EXCLUDED.status,
		operator_id = EXCLUDED.operator_id;
	`)
	stmt, err := tx.Preparex(query)
	if err != nil {
		return fmt.Errorf("seed vans: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, v := range rows {
		if _, err := stmt.Exec(v.VanID, v.Name, v.Capacity, v.Status, v.Lat, v.Lon, v.OperatorID); err != nil {
			return fmt.Errorf("seed vans: insert van_id=%s: %w", v.VanID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed vans: commit tx: %w", err)
	}

	return nil
}
