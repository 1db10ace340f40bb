package api

import (
	"context"
	"sort"
	"sync"
	"time"

	"vigia.dev/patroltrack/internal/store"
)

// memStore implements both store interfaces for handler tests, mirroring the
// pgstore semantics: latest sample by max id, inclusive range bounds,
// strict cutoff on the staleness filter.
type memStore struct {
	mu         sync.Mutex
	principals map[uint64]*store.Principal
	sessions   map[uint64]*memSession
	nextSample uint64
	samples    []memSample
}

type memSession struct {
	started time.Time
	active  bool
}

type memSample struct {
	id         uint64
	principal  uint64
	lat        float64
	lon        float64
	speed      float64
	capturedAt time.Time
}

func newMemStore() *memStore {
	return &memStore{
		principals: make(map[uint64]*store.Principal),
		sessions:   make(map[uint64]*memSession),
	}
}

func (m *memStore) addPrincipal(p store.Principal) {
	m.mu.Lock()
	m.principals[p.Id] = &p
	m.mu.Unlock()
}

// put backdates a sample, bypassing the ingest path.
func (m *memStore) put(principal uint64, lat, lon, speed float64, at time.Time) {
	m.mu.Lock()
	m.nextSample++
	m.samples = append(m.samples, memSample{
		id: m.nextSample, principal: principal,
		lat: lat, lon: lon, speed: speed, capturedAt: at,
	})
	m.mu.Unlock()
}

func (m *memStore) PrincipalByEmployeeNumber(ctx context.Context, employeeNumber string) (*store.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.principals {
		if p.EmployeeNumber == employeeNumber {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) PrincipalById(ctx context.Context, id uint64) (*store.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.principals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) OpenSession(ctx context.Context, principalId uint64) error {
	m.mu.Lock()
	m.sessions[principalId] = &memSession{started: time.Now(), active: true}
	m.mu.Unlock()
	return nil
}

func (m *memStore) CloseSessions(ctx context.Context, principalId uint64) error {
	m.mu.Lock()
	if s, ok := m.sessions[principalId]; ok {
		s.active = false
	}
	m.mu.Unlock()
	return nil
}

func (m *memStore) Append(ctx context.Context, principalId uint64, lat, lon, speed float64) error {
	m.put(principalId, lat, lon, speed, time.Now())
	return nil
}

func (m *memStore) LatestActive(ctx context.Context, role string, cutoff time.Time) ([]store.ActiveUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	units := make([]store.ActiveUnit, 0)
	for id, p := range m.principals {
		if p.Role != role {
			continue
		}
		sess, ok := m.sessions[id]
		if !ok || !sess.active {
			continue
		}
		var latest *memSample
		for i := range m.samples {
			s := &m.samples[i]
			if s.principal == id && (latest == nil || s.id > latest.id) {
				latest = s
			}
		}
		if latest == nil || !latest.capturedAt.After(cutoff) {
			continue
		}
		units = append(units, store.ActiveUnit{
			Id: p.Id, Name: p.Name, EmployeeNumber: p.EmployeeNumber,
			AssignedUnit: p.AssignedUnit, PhotoUrl: p.PhotoUrl,
			Latitude: latest.lat, Longitude: latest.lon, Speed: latest.speed,
			CapturedAt: latest.capturedAt, SessionStart: sess.started,
		})
	}
	sort.Slice(units, func(i, j int) bool {
		return units[i].CapturedAt.After(units[j].CapturedAt)
	})
	return units, nil
}

func (m *memStore) Range(ctx context.Context, principalId uint64, from, to time.Time) ([]store.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	route := make([]store.Sample, 0)
	for _, s := range m.samples {
		if s.principal != principalId {
			continue
		}
		if s.capturedAt.Before(from) || s.capturedAt.After(to) {
			continue
		}
		route = append(route, store.Sample{
			Latitude: s.lat, Longitude: s.lon, Speed: s.speed, CapturedAt: s.capturedAt,
		})
	}
	sort.Slice(route, func(i, j int) bool {
		return route[i].CapturedAt.Before(route[j].CapturedAt)
	})
	return route, nil
}

func (m *memStore) Stats(ctx context.Context, principalId uint64, since time.Time) (store.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := store.Stats{}
	var sum float64
	for _, s := range m.samples {
		if s.principal != principalId || !s.capturedAt.After(since) {
			continue
		}
		at := s.capturedAt
		if st.FirstAt == nil || at.Before(*st.FirstAt) {
			t := at
			st.FirstAt = &t
		}
		if st.LastAt == nil || at.After(*st.LastAt) {
			t := at
			st.LastAt = &t
		}
		if st.MaxSpeed == nil || s.speed > *st.MaxSpeed {
			v := s.speed
			st.MaxSpeed = &v
		}
		sum += s.speed
		st.Count++
	}
	if st.Count > 0 {
		avg := sum / float64(st.Count)
		st.AvgSpeed = &avg
	}
	return st, nil
}
