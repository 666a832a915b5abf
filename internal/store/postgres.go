// Package store persists colleges, students and import history in PostgreSQL.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/roster/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// PostgreSQL error codes the store translates.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const studentsIdentifierKey = "students_college_identifier_key"

// ErrCollegeExists is returned when creating a college whose name is taken.
var ErrCollegeExists = errors.New("college already exists")

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Store implements core.Store on PostgreSQL.
type Store struct {
	db DBTX
}

var _ core.Store = (*Store)(nil)

// New returns a Store using db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Migrate applies the embedded schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// CreateCollege inserts a college.
func (s *Store) CreateCollege(ctx context.Context, name string) (core.College, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.College{}, errors.New("college name is required")
	}

	var id pgtype.UUID
	err := s.db.QueryRow(ctx,
		`INSERT INTO colleges (name) VALUES ($1) RETURNING id`, name,
	).Scan(&id)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return core.College{}, fmt.Errorf("%w: %s", ErrCollegeExists, name)
		}
		return core.College{}, fmt.Errorf("insert college: %w", err)
	}
	return core.College{ID: fromPgUUID(id), Name: name}, nil
}

// GetCollege returns core.ErrCollegeNotFound for unknown IDs.
func (s *Store) GetCollege(ctx context.Context, id uuid.UUID) (core.College, error) {
	var name string
	err := s.db.QueryRow(ctx,
		`SELECT name FROM colleges WHERE id = $1`, toPgUUID(id),
	).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.College{}, core.ErrCollegeNotFound
	}
	if err != nil {
		return core.College{}, fmt.Errorf("get college: %w", err)
	}
	return core.College{ID: id, Name: name}, nil
}

// ListColleges returns every college ordered by name.
func (s *Store) ListColleges(ctx context.Context) ([]core.College, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name FROM colleges ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list colleges: %w", err)
	}
	defer rows.Close()

	var out []core.College
	for rows.Next() {
		var (
			id   pgtype.UUID
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out = append(out, core.College{ID: fromPgUUID(id), Name: name})
	}
	return out, rows.Err()
}

// ListExistingIdentifiers returns the identifiers of every student in the college.
func (s *Store) ListExistingIdentifiers(ctx context.Context, collegeID uuid.UUID) (core.IdentifierSet, error) {
	rows, err := s.db.Query(ctx,
		`SELECT identifier FROM students WHERE college_id = $1`, toPgUUID(collegeID))
	if err != nil {
		return nil, fmt.Errorf("query identifiers: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan identifiers: %w", err)
	}
	return core.NewIdentifierSet(ids...), nil
}

// CreateStudent inserts one student. A duplicate identifier in the college
// yields core.ErrIdentifierTaken; an unknown college core.ErrCollegeNotFound.
func (s *Store) CreateStudent(ctx context.Context, rec core.CandidateRecord) (core.PersistedStudent, error) {
	var (
		id        pgtype.UUID
		createdAt pgtype.Timestamptz
	)
	err := s.db.QueryRow(ctx, `
		INSERT INTO students (college_id, full_name, identifier, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		toPgUUID(rec.CollegeID), rec.FullName, rec.Identifier, rec.Email,
	).Scan(&id, &createdAt)
	if err != nil {
		return core.PersistedStudent{}, translateStudentError(err)
	}

	return core.PersistedStudent{
		ID:         fromPgUUID(id),
		CollegeID:  rec.CollegeID,
		FullName:   rec.FullName,
		Identifier: rec.Identifier,
		Email:      rec.Email,
		CreatedAt:  createdAt.Time,
	}, nil
}

func translateStudentError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("insert student: %w", err)
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == "" || pgErr.ConstraintName == studentsIdentifierKey {
			return fmt.Errorf("%w: %s", core.ErrIdentifierTaken, pgErr.Detail)
		}
	case pgForeignKeyViolation:
		return core.ErrCollegeNotFound
	}
	return fmt.Errorf("insert student: %w", err)
}

// RecordImport stores one row of import history.
func (s *Store) RecordImport(ctx context.Context, rec core.ImportRecord) error {
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO student_imports (
			id, college_id, file_name, status,
			created_count, failed_count, error_count,
			message, duration_ms, ip_address, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		toPgUUID(id), toPgUUID(rec.CollegeID), rec.FileName, string(rec.Status),
		rec.CreatedCount, rec.FailedCount, rec.ErrorCount,
		toPgText(rec.Message), rec.DurationMs, toInet(rec.IPAddress), toPgText(rec.UserAgent),
	)
	if err != nil {
		return fmt.Errorf("insert import history: %w", err)
	}
	return nil
}

// ListImports returns the most recent imports of a college, newest first.
func (s *Store) ListImports(ctx context.Context, collegeID uuid.UUID, limit int) ([]core.ImportRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, college_id, file_name, status,
		       created_count, failed_count, error_count,
		       message, duration_ms, ip_address, user_agent, created_at
		FROM student_imports
		WHERE college_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		toPgUUID(collegeID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	var out []core.ImportRecord
	for rows.Next() {
		rec, err := scanImportRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanImportRow(rows pgx.Rows) (core.ImportRecord, error) {
	var (
		id, collegeID pgtype.UUID
		fileName      string
		status        string
		created       int32
		failed        int32
		errCount      int32
		message       pgtype.Text
		durationMs    int64
		ipAddress     *netip.Addr
		userAgent     pgtype.Text
		createdAt     pgtype.Timestamptz
	)

	err := rows.Scan(
		&id, &collegeID, &fileName, &status,
		&created, &failed, &errCount,
		&message, &durationMs, &ipAddress, &userAgent, &createdAt,
	)
	if err != nil {
		return core.ImportRecord{}, fmt.Errorf("scan import: %w", err)
	}

	return core.ImportRecord{
		ID:           fromPgUUID(id),
		CollegeID:    fromPgUUID(collegeID),
		FileName:     fileName,
		Status:       core.ImportStatus(status),
		CreatedCount: int(created),
		FailedCount:  int(failed),
		ErrorCount:   int(errCount),
		Message:      message.String,
		DurationMs:   durationMs,
		IPAddress:    fromInet(ipAddress),
		UserAgent:    userAgent.String,
		CreatedAt:    createdAt.Time,
	}, nil
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
