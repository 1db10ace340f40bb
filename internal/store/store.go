package store

import (
	"context"
	"errors"
	"time"
)

const (
	RoleSupervisor string = "supervisor"
	RolePatrol     string = "patrol"
)

// ErrNotFound is returned when a principal lookup matches no row.
var ErrNotFound = errors.New("not found")

// Principal rows are provisioned out of band and read-only here.
type Principal struct {
	Id             uint64  `json:"id"`
	Name           string  `json:"name"`
	EmployeeNumber string  `json:"employee_number"`
	Role           string  `json:"role"`
	AssignedUnit   *string `json:"assigned_unit"`
	PhotoUrl       *string `json:"photo_url"`
	Active         bool    `json:"-"`
	Password       string  `json:"-"`
}

type Sample struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Speed      float64   `json:"speed"`
	CapturedAt time.Time `json:"captured_at"`
}

// ActiveUnit is the on-demand projection of a patrol principal with an
// active session and a fresh latest sample. It is never stored.
type ActiveUnit struct {
	Id             uint64    `json:"id"`
	Name           string    `json:"name"`
	EmployeeNumber string    `json:"employee_number"`
	AssignedUnit   *string   `json:"assigned_unit"`
	PhotoUrl       *string   `json:"photo_url"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Speed          float64   `json:"speed"`
	CapturedAt     time.Time `json:"captured_at"`
	SessionStart   time.Time `json:"session_started_at"`
}

// Stats aggregates a reporter's samples over a lookback window. A window
// with no samples yields Count == 0 and nil aggregates, not an error.
type Stats struct {
	Count    int        `json:"count"`
	FirstAt  *time.Time `json:"first_sample_at"`
	LastAt   *time.Time `json:"last_sample_at"`
	AvgSpeed *float64   `json:"avg_speed"`
	MaxSpeed *float64   `json:"max_speed"`
}

type IdentityStore interface {
	PrincipalByEmployeeNumber(ctx context.Context, employeeNumber string) (*Principal, error)
	PrincipalById(ctx context.Context, id uint64) (*Principal, error)
	// OpenSession closes any session still active for the principal and
	// inserts a fresh active one.
	OpenSession(ctx context.Context, principalId uint64) error
	CloseSessions(ctx context.Context, principalId uint64) error
}

type LocationStore interface {
	// Append is a pure insert, never an update.
	Append(ctx context.Context, principalId uint64, lat, lon, speed float64) error
	// LatestActive returns, newest first, the single most recent sample of
	// every principal with the given role and an active session, excluding
	// samples captured at or before cutoff.
	LatestActive(ctx context.Context, role string, cutoff time.Time) ([]ActiveUnit, error)
	// Range returns samples with captured_at in [from, to], ascending.
	Range(ctx context.Context, principalId uint64, from, to time.Time) ([]Sample, error)
	Stats(ctx context.Context, principalId uint64, since time.Time) (Stats, error)
}
