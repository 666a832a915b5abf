package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// College is the organizational unit students are imported into.
type College struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// CandidateRecord is a data row that passed schema validation.
// It is never mutated after the validator creates it.
type CandidateRecord struct {
	Line       int       `json:"line"` // 1-based line among non-empty lines; header is line 1
	FullName   string    `json:"full_name"`
	Identifier string    `json:"identifier"`
	Email      string    `json:"email"`
	CollegeID  uuid.UUID `json:"college_id"`
}

// PersistedStudent is a student confirmed by the store.
type PersistedStudent struct {
	ID         uuid.UUID `json:"id"`
	CollegeID  uuid.UUID `json:"college_id"`
	FullName   string    `json:"full_name"`
	Identifier string    `json:"identifier"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
}

// SubmissionOutcome is the result of submitting one candidate to the store.
type SubmissionOutcome struct {
	Record  CandidateRecord   `json:"record"`
	Success bool              `json:"success"`
	Student *PersistedStudent `json:"student,omitempty"`
	Error   string            `json:"error,omitempty"` // user-facing reason when Success is false
	Err     error             `json:"-"`               // underlying error, for logs
}

// StudentStore is the storage collaborator consumed by the pipeline.
type StudentStore interface {
	// ListExistingIdentifiers returns identifiers already persisted for the
	// college. It is called once per import, before parsing.
	ListExistingIdentifiers(ctx context.Context, collegeID uuid.UUID) (IdentifierSet, error)

	// CreateStudent persists one candidate.
	CreateStudent(ctx context.Context, rec CandidateRecord) (PersistedStudent, error)
}

// Store is everything the import service needs from persistence.
type Store interface {
	StudentStore
	GetCollege(ctx context.Context, id uuid.UUID) (College, error)
	RecordImport(ctx context.Context, rec ImportRecord) error
	ListImports(ctx context.Context, collegeID uuid.UUID, limit int) ([]ImportRecord, error)
}

// SubmitFunc submits a single record. CreateStudent satisfies it.
type SubmitFunc func(ctx context.Context, rec CandidateRecord) (PersistedStudent, error)

// ProgressFunc receives the batch-phase progress percentage (0-100).
type ProgressFunc func(percent int)

// ImportPhase indicates the current stage of an import run.
type ImportPhase string

const (
	PhaseStarting   ImportPhase = "starting"
	PhaseValidating ImportPhase = "validating"
	PhaseSubmitting ImportPhase = "submitting"
	PhaseComplete   ImportPhase = "complete"
	PhaseAborted    ImportPhase = "aborted"
	PhaseFailed     ImportPhase = "failed"
	PhaseCancelled  ImportPhase = "cancelled"
)

// ImportProgress is the state broadcast to progress subscribers.
type ImportProgress struct {
	ImportID  string      `json:"import_id"`
	CollegeID string      `json:"college_id"`
	FileName  string      `json:"file_name"`
	Phase     ImportPhase `json:"phase"`
	Percent   int         `json:"percent"`
	Total     int         `json:"total,omitempty"` // records in the batch phase
	Error     string      `json:"error,omitempty"`
}

// ImportRecord is one row of import history.
type ImportRecord struct {
	ID           uuid.UUID    `json:"id"`
	CollegeID    uuid.UUID    `json:"college_id"`
	FileName     string       `json:"file_name"`
	Status       ImportStatus `json:"status"`
	CreatedCount int          `json:"created_count"`
	FailedCount  int          `json:"failed_count"`
	ErrorCount   int          `json:"error_count"`
	Message      string       `json:"message"`
	DurationMs   int64        `json:"duration_ms"`
	IPAddress    string       `json:"ip_address,omitempty"`
	UserAgent    string       `json:"user_agent,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
