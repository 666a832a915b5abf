package web

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/roster/internal/core"
	"github.com/JonMunkholm/roster/internal/store"
)

// memStore is an in-memory core.Store and CollegeStore.
type memStore struct {
	mu       sync.Mutex
	colleges map[uuid.UUID]core.College
	students map[uuid.UUID]map[string]bool
	history  []core.ImportRecord
}

func newMemStore() *memStore {
	return &memStore{
		colleges: make(map[uuid.UUID]core.College),
		students: make(map[uuid.UUID]map[string]bool),
	}
}

func (m *memStore) addCollege(name string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.colleges[id] = core.College{ID: id, Name: name}
	m.students[id] = make(map[string]bool)
	return id
}

func (m *memStore) addStudent(collegeID uuid.UUID, identifier string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[collegeID][identifier] = true
}

func (m *memStore) CreateCollege(_ context.Context, name string) (core.College, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.colleges {
		if c.Name == name {
			return core.College{}, fmt.Errorf("%w: %s", store.ErrCollegeExists, name)
		}
	}
	c := core.College{ID: uuid.New(), Name: name}
	m.colleges[c.ID] = c
	m.students[c.ID] = make(map[string]bool)
	return c, nil
}

func (m *memStore) ListColleges(context.Context) ([]core.College, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.College, 0, len(m.colleges))
	for _, c := range m.colleges {
		out = append(out, c)
	}
	return out, nil
}

func (m *memStore) GetCollege(_ context.Context, id uuid.UUID) (core.College, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.colleges[id]
	if !ok {
		return core.College{}, core.ErrCollegeNotFound
	}
	return c, nil
}

func (m *memStore) ListExistingIdentifiers(_ context.Context, collegeID uuid.UUID) (core.IdentifierSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.students[collegeID]))
	for id := range m.students[collegeID] {
		ids = append(ids, id)
	}
	return core.NewIdentifierSet(ids...), nil
}

func (m *memStore) CreateStudent(_ context.Context, rec core.CandidateRecord) (core.PersistedStudent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.students[rec.CollegeID][rec.Identifier] {
		return core.PersistedStudent{}, core.ErrIdentifierTaken
	}
	m.students[rec.CollegeID][rec.Identifier] = true
	return core.PersistedStudent{
		ID:         uuid.New(),
		CollegeID:  rec.CollegeID,
		FullName:   rec.FullName,
		Identifier: rec.Identifier,
		Email:      rec.Email,
		CreatedAt:  time.Now(),
	}, nil
}

func (m *memStore) RecordImport(_ context.Context, rec core.ImportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.CreatedAt = time.Now()
	m.history = append(m.history, rec)
	return nil
}

func (m *memStore) ListImports(_ context.Context, collegeID uuid.UUID, limit int) ([]core.ImportRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.ImportRecord
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		if m.history[i].CollegeID == collegeID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}
