package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/phuslu/log"

	"vigia.dev/patroltrack/internal/store"
)

// Store implements store.IdentityStore and store.LocationStore on Postgres.
type Store struct {
	db  *pgxpool.Pool
	log log.Logger
}

func New(db *pgxpool.Pool) *Store {
	s := &Store{db: db}
	s.log = log.DefaultLogger
	s.log.Context = log.NewContext(nil).Str("module", "pgstore").Value()
	return s
}

func (s *Store) PrincipalByEmployeeNumber(ctx context.Context, employeeNumber string) (*store.Principal, error) {
	sqlStmt := `SELECT id,name,employee_number,"password",role,assigned_unit,photo_url,active
	FROM principals WHERE employee_number = $1`
	return s.scanPrincipal(s.db.QueryRow(ctx, sqlStmt, employeeNumber))
}

func (s *Store) PrincipalById(ctx context.Context, id uint64) (*store.Principal, error) {
	sqlStmt := `SELECT id,name,employee_number,"password",role,assigned_unit,photo_url,active
	FROM principals WHERE id = $1`
	return s.scanPrincipal(s.db.QueryRow(ctx, sqlStmt, id))
}

func (s *Store) scanPrincipal(row pgx.Row) (*store.Principal, error) {
	p := &store.Principal{}
	err := row.Scan(&p.Id, &p.Name, &p.EmployeeNumber, &p.Password, &p.Role,
		&p.AssignedUnit, &p.PhotoUrl, &p.Active)
	if err == pgx.ErrNoRows {
		return nil, store.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return p, nil
}

// OpenSession keeps at most one active session per principal: any leftover
// active rows are closed in the same transaction that inserts the new one.
func (s *Store) OpenSession(ctx context.Context, principalId uint64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	_, err = tx.Exec(ctx,
		`UPDATE sessions SET ended_at = now(), active = false WHERE principal_id = $1 AND active`,
		principalId)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO sessions (principal_id, started_at, active) VALUES ($1, now(), true)`,
		principalId)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) CloseSessions(ctx context.Context, principalId uint64) error {
	_, err := s.db.Exec(ctx,
		`UPDATE sessions SET ended_at = now(), active = false WHERE principal_id = $1 AND active`,
		principalId)
	return err
}

func (s *Store) Append(ctx context.Context, principalId uint64, lat, lon, speed float64) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO location_samples (principal_id, latitude, longitude, speed) VALUES ($1,$2,$3,$4)`,
		principalId, lat, lon, speed)
	return err
}

// LatestActive runs as a single statement so the max-sample sub-query and the
// session join see one consistent snapshot.
func (s *Store) LatestActive(ctx context.Context, role string, cutoff time.Time) ([]store.ActiveUnit, error) {
	sqlStmt := `SELECT p.id, p.name, p.employee_number, p.assigned_unit, p.photo_url,
	l.latitude, l.longitude, l.speed, l.captured_at, s.started_at
	FROM principals p
	INNER JOIN sessions s ON s.principal_id = p.id AND s.active
	INNER JOIN location_samples l ON l.principal_id = p.id
	WHERE p.role = $1
	AND l.id IN (SELECT MAX(id) FROM location_samples GROUP BY principal_id)
	AND l.captured_at > $2
	ORDER BY l.captured_at DESC`
	rows, err := s.db.Query(ctx, sqlStmt, role, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	units := make([]store.ActiveUnit, 0)
	for rows.Next() {
		u := store.ActiveUnit{}
		err := rows.Scan(&u.Id, &u.Name, &u.EmployeeNumber, &u.AssignedUnit, &u.PhotoUrl,
			&u.Latitude, &u.Longitude, &u.Speed, &u.CapturedAt, &u.SessionStart)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func (s *Store) Range(ctx context.Context, principalId uint64, from, to time.Time) ([]store.Sample, error) {
	sqlStmt := `SELECT latitude, longitude, speed, captured_at FROM location_samples
	WHERE principal_id = $1 AND captured_at BETWEEN $2 AND $3
	ORDER BY captured_at ASC`
	rows, err := s.db.Query(ctx, sqlStmt, principalId, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	route := make([]store.Sample, 0)
	for rows.Next() {
		p := store.Sample{}
		err := rows.Scan(&p.Latitude, &p.Longitude, &p.Speed, &p.CapturedAt)
		if err != nil {
			return nil, err
		}
		route = append(route, p)
	}
	return route, rows.Err()
}

func (s *Store) Stats(ctx context.Context, principalId uint64, since time.Time) (store.Stats, error) {
	sqlStmt := `SELECT COUNT(*), MIN(captured_at), MAX(captured_at), AVG(speed), MAX(speed)
	FROM location_samples WHERE principal_id = $1 AND captured_at > $2`
	st := store.Stats{}
	err := s.db.QueryRow(ctx, sqlStmt, principalId, since).
		Scan(&st.Count, &st.FirstAt, &st.LastAt, &st.AvgSpeed, &st.MaxSpeed)
	return st, err
}
