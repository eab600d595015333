package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"van-dispatch-service/internal/domain"
	"van-dispatch-service/internal/platform/obs"

	"github.com/jmoiron/sqlx"
)

// SQL-backed implementation of the FleetRepository port.
// Queries use '?' placeholders and are rebound for the connected driver, so the
// same repository serves Postgres (pgx) and SQLite.
type SQLFleetRepository struct{ DB *sqlx.DB }

func NewSQLFleetRepository(db *sqlx.DB) *SQLFleetRepository {
	return &SQLFleetRepository{DB: db}
}

type vanRow struct {
	VanID               string          `db:"van_id"`
	Name                string          `db:"name"`
	Capacity            int             `db:"capacity"`
	Status              string          `db:"status"`
	Lat                 sql.NullFloat64 `db:"lat"`
	Lon                 sql.NullFloat64 `db:"lon"`
	PositionUpdatedAtMs sql.NullInt64   `db:"position_updated_at_ms"`
	OperatorID          sql.NullString  `db:"operator_id"`
}

func (r vanRow) toDomain() *domain.Van {
	v := &domain.Van{
		VanID:    r.VanID,
		Name:     r.Name,
		Capacity: r.Capacity,
		Status:   domain.VanStatus(r.Status),
	}
	if r.Lat.Valid && r.Lon.Valid {
		v.Position = &domain.Coordinates{Lat: r.Lat.Float64, Lon: r.Lon.Float64}
	}
	if r.PositionUpdatedAtMs.Valid {
		t := time.UnixMilli(r.PositionUpdatedAtMs.Int64).UTC()
		v.PositionUpdatedAt = &t
	}
	if r.OperatorID.Valid {
		op := r.OperatorID.String
		v.OperatorID = &op
	}
	return v
}

type rideRow struct {
	RideID         string         `db:"ride_id"`
	Status         string         `db:"status"`
	PickupLat      float64        `db:"pickup_lat"`
	PickupLon      float64        `db:"pickup_lon"`
	DropLat        float64        `db:"drop_lat"`
	DropLon        float64        `db:"drop_lon"`
	PassengerCount int            `db:"passenger_count"`
	VanID          sql.NullString `db:"van_id"`
	RequestedAtMs  int64          `db:"requested_at_ms"`
	WalkOn         bool           `db:"walk_on"`
}

func (r rideRow) toDomain() *domain.Ride {
	ride := &domain.Ride{
		RideID:         r.RideID,
		Status:         domain.RideStatus(r.Status),
		Pickup:         domain.Coordinates{Lat: r.PickupLat, Lon: r.PickupLon},
		Drop:           domain.Coordinates{Lat: r.DropLat, Lon: r.DropLon},
		PassengerCount: r.PassengerCount,
		RequestedAt:    time.UnixMilli(r.RequestedAtMs).UTC(),
		WalkOn:         r.WalkOn,
	}
	if r.VanID.Valid {
		id := r.VanID.String
		ride.VanID = &id
	}
	return ride
}

const vanColumns = `
		van_id,
		name,
		capacity,
		status,
		lat,
		lon,
		position_updated_at_ms,
		operator_id`

const rideColumns = `
		ride_id,
		status,
		pickup_lat,
		pickup_lon,
		drop_lat,
		drop_lon,
		passenger_count,
		van_id,
		requested_at_ms,
		walk_on`

func (s *SQLFleetRepository) check() error {
	if s.DB == nil {
		return errors.New("sql fleet repository: DB is nil")
	}
	return nil
}

// Return a single van.
func (s *SQLFleetRepository) GetVan(ctx context.Context, vanID string) (_ *domain.Van, err error) {
	defer obs.Time(ctx, "repo.GetVan")(&err)

	if err := s.check(); err != nil {
		return nil, err
	}

	q := s.DB.Rebind(`SELECT` + vanColumns + `
	FROM vans
	WHERE van_id = ?;
	`)

	var row vanRow
	if err := s.DB.GetContext(ctx, &row, q, vanID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get van %s: %w", vanID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get van %s: %w", vanID, err)
	}

	return row.toDomain(), nil
}

// Return all vans ordered by id.
func (s *SQLFleetRepository) ListVans(ctx context.Context) ([]*domain.Van, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	var rows []vanRow
	q := `SELECT` + vanColumns + `
	FROM vans
	ORDER BY van_id;
	`
	if err := s.DB.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list vans: query vans table: %w", err)
	}

	vans := make([]*domain.Van, 0, len(rows))
	for _, r := range rows {
		vans = append(vans, r.toDomain())
	}

	return vans, nil
}

func (s *SQLFleetRepository) UpdateVanPosition(ctx context.Context, vanID string, pos domain.Coordinates) error {
	if err := s.check(); err != nil {
		return err
	}

	q := s.DB.Rebind(`
	UPDATE vans
	SET lat = ?, lon = ?, position_updated_at_ms = ?
	WHERE van_id = ?;
	`)
	res, err := s.DB.ExecContext(ctx, q, pos.Lat, pos.Lon, time.Now().UnixMilli(), vanID)
	if err != nil {
		return fmt.Errorf("update van position %s: %w", vanID, err)
	}

	return expectOneRow(res, fmt.Sprintf("update van position %s", vanID))
}

func (s *SQLFleetRepository) CreateRide(ctx context.Context, ride *domain.Ride) (err error) {
	defer obs.Time(ctx, "repo.CreateRide")(&err)

	if err := s.check(); err != nil {
		return err
	}

	q := s.DB.Rebind(`
	INSERT INTO rides (` + rideColumns + `
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`)

	var vanID any
	if ride.VanID != nil {
		vanID = *ride.VanID
	}

	_, err = s.DB.ExecContext(ctx, q,
		ride.RideID,
		string(ride.Status),
		ride.Pickup.Lat,
		ride.Pickup.Lon,
		ride.Drop.Lat,
		ride.Drop.Lon,
		ride.PassengerCount,
		vanID,
		ride.RequestedAt.UnixMilli(),
		ride.WalkOn,
	)
	if err != nil {
		return fmt.Errorf("create ride %s: %w", ride.RideID, err)
	}

	return nil
}

func (s *SQLFleetRepository) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	q := s.DB.Rebind(`SELECT` + rideColumns + `
	FROM rides
	WHERE ride_id = ?;
	`)

	var row rideRow
	if err := s.DB.GetContext(ctx, &row, q, rideID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get ride %s: %w", rideID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get ride %s: %w", rideID, err)
	}

	return row.toDomain(), nil
}

// Assign the ride to a van inside one transaction so the previous van id and
// the status check see the same row version.
func (s *SQLFleetRepository) AssignRide(ctx context.Context, rideID, vanID string) (_ *string, err error) {
	defer obs.Time(ctx, "repo.AssignRide")(&err)

	if err := s.check(); err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("assign ride %s: begin tx: %w", rideID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var row rideRow
	q := tx.Rebind(`SELECT` + rideColumns + `
	FROM rides
	WHERE ride_id = ?;
	`)
	if err := tx.GetContext(ctx, &row, q, rideID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("assign ride %s: %w", rideID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("assign ride %s: load ride: %w", rideID, err)
	}

	ride := row.toDomain()
	if !ride.CanTransitionTo(domain.RideAssigned) {
		return nil, fmt.Errorf("assign ride %s: %s -> %s: %w", rideID, ride.Status, domain.RideAssigned, domain.ErrInvalidTransition)
	}

	upd := tx.Rebind(`
	UPDATE rides
	SET van_id = ?, status = ?
	WHERE ride_id = ?;
	`)
	if _, err := tx.ExecContext(ctx, upd, vanID, string(domain.RideAssigned), rideID); err != nil {
		return nil, fmt.Errorf("assign ride %s: update: %w", rideID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("assign ride %s: commit tx: %w", rideID, err)
	}

	return ride.VanID, nil
}

func (s *SQLFleetRepository) UpdateRideStatus(ctx context.Context, rideID string, status domain.RideStatus) error {
	if err := s.check(); err != nil {
		return err
	}

	q := s.DB.Rebind(`
	UPDATE rides
	SET status = ?
	WHERE ride_id = ?;
	`)
	res, err := s.DB.ExecContext(ctx, q, string(status), rideID)
	if err != nil {
		return fmt.Errorf("update ride status %s: %w", rideID, err)
	}

	return expectOneRow(res, fmt.Sprintf("update ride status %s", rideID))
}

// Return the van's rides that still need stops, oldest request first.
func (s *SQLFleetRepository) ListActiveRidesForVan(ctx context.Context, vanID string) (_ []*domain.Ride, err error) {
	defer obs.Time(ctx, "repo.ListActiveRidesForVan")(&err)

	if err := s.check(); err != nil {
		return nil, err
	}

	q := s.DB.Rebind(`SELECT` + rideColumns + `
	FROM rides
	WHERE van_id = ?
		AND status IN (?, ?, ?)
	ORDER BY requested_at_ms, ride_id;
	`)

	var rows []rideRow
	err = s.DB.SelectContext(ctx, &rows, q, vanID,
		string(domain.RideAssigned), string(domain.RideEnRoute), string(domain.RidePickedUp),
	)
	if err != nil {
		return nil, fmt.Errorf("list active rides for van %s: %w", vanID, err)
	}

	rides := make([]*domain.Ride, 0, len(rows))
	for _, r := range rows {
		rides = append(rides, r.toDomain())
	}

	return rides, nil
}

// Delete the van's tasks and insert the new list in a single transaction.
// Readers see either the old plan or the new one, never a mix.
func (s *SQLFleetRepository) ReplaceVanTasks(ctx context.Context, vanID string, tasks []domain.VanTask) (err error) {
	defer obs.Time(ctx, "repo.ReplaceVanTasks")(&err)

	if err := s.check(); err != nil {
		return err
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace van tasks %s: begin tx: %w", vanID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM van_tasks WHERE van_id = ?;`), vanID); err != nil {
		return fmt.Errorf("replace van tasks %s: delete: %w", vanID, err)
	}

	if len(tasks) > 0 {
		stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
		INSERT INTO van_tasks (van_id, ride_id, phase, task_order)
		VALUES (?, ?, ?, ?);
		`))
		if err != nil {
			return fmt.Errorf("replace van tasks %s: prepare insert: %w", vanID, err)
		}
		defer stmt.Close()

		for _, t := range tasks {
			if t.VanID != vanID {
				return fmt.Errorf("replace van tasks %s: task for ride %s belongs to van %s", vanID, t.RideID, t.VanID)
			}
			if _, err := stmt.ExecContext(ctx, vanID, t.RideID, string(t.Phase), t.Order); err != nil {
				return fmt.Errorf("replace van tasks %s: insert ride=%s phase=%s: %w", vanID, t.RideID, t.Phase, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace van tasks %s: commit tx: %w", vanID, err)
	}

	return nil
}

type planStopRow struct {
	RideID         string  `db:"ride_id"`
	Phase          string  `db:"phase"`
	Order          int     `db:"task_order"`
	PickupLat      float64 `db:"pickup_lat"`
	PickupLon      float64 `db:"pickup_lon"`
	DropLat        float64 `db:"drop_lat"`
	DropLon        float64 `db:"drop_lon"`
	PassengerCount int     `db:"passenger_count"`
}

// Return the van's persisted plan in execution order.
func (s *SQLFleetRepository) ListPlanStops(ctx context.Context, vanID string) (_ []domain.PlanStop, err error) {
	defer obs.Time(ctx, "repo.ListPlanStops")(&err)

	if err := s.check(); err != nil {
		return nil, err
	}

	q := s.DB.Rebind(`
	SELECT
		t.ride_id,
		t.phase,
		t.task_order,
		r.pickup_lat,
		r.pickup_lon,
		r.drop_lat,
		r.drop_lon,
		r.passenger_count
	FROM van_tasks t
	JOIN rides r ON r.ride_id = t.ride_id
	WHERE t.van_id = ?
	ORDER BY t.task_order;
	`)

	var rows []planStopRow
	if err := s.DB.SelectContext(ctx, &rows, q, vanID); err != nil {
		return nil, fmt.Errorf("list plan stops %s: %w", vanID, err)
	}

	stops := make([]domain.PlanStop, 0, len(rows))
	for _, r := range rows {
		stop := domain.PlanStop{
			RideID: r.RideID,
			Phase:  domain.Phase(r.Phase),
			Order:  r.Order,
			Pax:    r.PassengerCount,
		}
		if stop.Phase == domain.PhasePickup {
			stop.Location = domain.Coordinates{Lat: r.PickupLat, Lon: r.PickupLon}
		} else {
			stop.Location = domain.Coordinates{Lat: r.DropLat, Lon: r.DropLon}
		}
		stops = append(stops, stop)
	}

	return stops, nil
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}
