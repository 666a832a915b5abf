package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store for tests.
type fakeStore struct {
	mu sync.Mutex

	colleges map[uuid.UUID]College
	existing map[uuid.UUID][]string
	students []PersistedStudent
	history  []ImportRecord

	// failFor makes CreateStudent fail for these identifiers.
	failFor map[string]error
	listErr error
	delay   time.Duration

	createCalls int
	inFlight    int
	maxInFlight int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		colleges: make(map[uuid.UUID]College),
		existing: make(map[uuid.UUID][]string),
		failFor:  make(map[string]error),
	}
}

func (f *fakeStore) addCollege(name string) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.colleges[id] = College{ID: id, Name: name}
	return id
}

func (f *fakeStore) GetCollege(_ context.Context, id uuid.UUID) (College, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.colleges[id]
	if !ok {
		return College{}, ErrCollegeNotFound
	}
	return c, nil
}

func (f *fakeStore) ListExistingIdentifiers(_ context.Context, collegeID uuid.UUID) (IdentifierSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return NewIdentifierSet(f.existing[collegeID]...), nil
}

func (f *fakeStore) CreateStudent(ctx context.Context, rec CandidateRecord) (PersistedStudent, error) {
	f.mu.Lock()
	f.createCalls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	delay := f.delay
	failErr := f.failFor[rec.Identifier]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return PersistedStudent{}, ctx.Err()
		}
	}
	if failErr != nil {
		return PersistedStudent{}, failErr
	}

	st := PersistedStudent{
		ID:         uuid.New(),
		CollegeID:  rec.CollegeID,
		FullName:   rec.FullName,
		Identifier: rec.Identifier,
		Email:      rec.Email,
		CreatedAt:  time.Now(),
	}

	f.mu.Lock()
	f.students = append(f.students, st)
	f.existing[rec.CollegeID] = append(f.existing[rec.CollegeID], rec.Identifier)
	f.mu.Unlock()
	return st, nil
}

func (f *fakeStore) RecordImport(_ context.Context, rec ImportRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, rec)
	return nil
}

func (f *fakeStore) ListImports(_ context.Context, collegeID uuid.UUID, limit int) ([]ImportRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ImportRecord
	for i := len(f.history) - 1; i >= 0 && len(out) < limit; i-- {
		if f.history[i].CollegeID == collegeID {
			out = append(out, f.history[i])
		}
	}
	return out, nil
}

func (f *fakeStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls
}

func (f *fakeStore) historyLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.history)
}

// candidates builds n valid records for collegeID, lines starting at 2.
func candidates(collegeID uuid.UUID, n int) []CandidateRecord {
	out := make([]CandidateRecord, n)
	for i := range out {
		out[i] = CandidateRecord{
			Line:       i + 2,
			FullName:   "Student",
			Identifier: identifierFor(i),
			Email:      "s@x.com",
			CollegeID:  collegeID,
		}
	}
	return out
}

func identifierFor(i int) string {
	return fmt.Sprintf("ID%04d", i)
}
