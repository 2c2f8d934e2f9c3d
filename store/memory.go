package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-memory Store for tests and ephemeral deployments.
// All data is lost on Close.
type Memory struct {
	mu       sync.RWMutex
	closed   bool
	manuals  map[int64]*Manual
	sections map[int64][]Section // keyed by manual ID
	images   map[int64][]Image   // keyed by manual ID

	nextManualID  int64
	nextSectionID int64
	nextImageID   int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		manuals:  make(map[int64]*Manual),
		sections: make(map[int64][]Section),
		images:   make(map[int64][]Image),
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) InsertManual(ctx context.Context, man Manual) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}

	m.nextManualID++
	man.ID = m.nextManualID
	m.manuals[man.ID] = &man
	return man.ID, nil
}

func (m *Memory) UpdateManualContent(ctx context.Context, id int64, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	man, ok := m.manuals[id]
	if !ok {
		return ErrNotFound
	}
	man.ContentPath = path
	return nil
}

func (m *Memory) DeactivateManual(ctx context.Context, id int64, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	man, ok := m.manuals[id]
	if !ok || !inScope(man.OwnerID, scope) {
		return ErrNotFound
	}
	man.Active = false
	return nil
}

func (m *Memory) GetManual(ctx context.Context, id int64) (*Manual, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	man, ok := m.manuals[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *man
	return &cp, nil
}

func (m *Memory) ListManuals(ctx context.Context, scope string) ([]Manual, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	var out []Manual
	for _, man := range m.manuals {
		if man.Active && inScope(man.OwnerID, scope) {
			out = append(out, *man)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) InsertSections(ctx context.Context, manualID int64, sections []Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	for _, sec := range sections {
		m.nextSectionID++
		sec.ID = m.nextSectionID
		sec.ManualID = manualID
		m.sections[manualID] = append(m.sections[manualID], sec)
	}
	return nil
}

func (m *Memory) SectionsByManual(ctx context.Context, manualID int64) ([]Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	out := append([]Section(nil), m.sections[manualID]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstPage != out[j].FirstPage {
			return out[i].FirstPage < out[j].FirstPage
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) LookupSections(ctx context.Context, f VehicleFilter, scope string) ([]Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	var ids []int64
	for id, man := range m.manuals {
		if man.Active && matchesFilter(man, f) && inScope(man.OwnerID, scope) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []Section
	for _, id := range ids {
		secs := append([]Section(nil), m.sections[id]...)
		sort.Slice(secs, func(i, j int) bool {
			if secs[i].FirstPage != secs[j].FirstPage {
				return secs[i].FirstPage < secs[j].FirstPage
			}
			return secs[i].ID < secs[j].ID
		})
		out = append(out, secs...)
	}
	return out, nil
}

func (m *Memory) InsertImages(ctx context.Context, manualID int64, images []Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	for _, img := range images {
		m.nextImageID++
		img.ID = m.nextImageID
		img.ManualID = manualID
		m.images[manualID] = append(m.images[manualID], img)
	}
	return nil
}

func (m *Memory) ImageCount(ctx context.Context, manualID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return len(m.images[manualID]), nil
}

func (m *Memory) LookupImages(ctx context.Context, manualID int64, firstPage, lastPage int, scope string) ([]Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	man, ok := m.manuals[manualID]
	if !ok || !inScope(man.OwnerID, scope) {
		return nil, nil
	}

	var out []Image
	for _, img := range m.images[manualID] {
		if img.Page >= firstPage && img.Page <= lastPage {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func matchesFilter(m *Manual, f VehicleFilter) bool {
	if f.Year != nil && m.Year != *f.Year {
		return false
	}
	if f.Make != nil && !strings.EqualFold(m.Make, *f.Make) {
		return false
	}
	if f.Model != nil && !strings.EqualFold(m.Model, *f.Model) {
		return false
	}
	return true
}

func inScope(ownerID, scope string) bool {
	return scope == "" || ownerID == scope || ownerID == ""
}
