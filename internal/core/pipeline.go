package core

// pipeline.go wires the import stages together:
//
//	seed fetch -> Tokenize -> ResolveColumns -> ValidateRows
//	           -> FilterDuplicates -> (abort if any row error) -> BatchScheduler -> Aggregate
//
// The dedup seed is fetched once, before parsing. Any row error from the
// validator or the duplicate filter rejects the whole file with an
// AbortedError and nothing is submitted.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JonMunkholm/roster/internal/metrics"
)

// Importer runs the import pipeline against a StudentStore.
type Importer struct {
	store     StudentStore
	scheduler *BatchScheduler
	logger    *slog.Logger
}

// NewImporter creates an importer submitting batchSize records at a time.
func NewImporter(store StudentStore, batchSize int, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		store:     store,
		scheduler: NewBatchScheduler(batchSize),
		logger:    logger,
	}
}

// PreparedImport is a file that passed every check and is ready to submit.
type PreparedImport struct {
	CollegeID  uuid.UUID
	Header     []string
	Candidates []CandidateRecord
	Existing   int // size of the dedup seed
}

// Run imports raw into collegeID. It returns a format error, an
// *AbortedError, or a store error when nothing was submitted; otherwise the
// summary of the batch phase. progress only fires during the batch phase.
func (im *Importer) Run(ctx context.Context, raw string, collegeID uuid.UUID, progress ProgressFunc) (ImportSummary, error) {
	prepared, err := im.Load(ctx, raw, collegeID)
	if err != nil {
		return ImportSummary{}, err
	}
	return im.Submit(ctx, prepared, progress), nil
}

// Load fetches the dedup seed and prepares raw against it.
func (im *Importer) Load(ctx context.Context, raw string, collegeID uuid.UUID) (*PreparedImport, error) {
	existing, err := im.store.ListExistingIdentifiers(ctx, collegeID)
	if err != nil {
		return nil, fmt.Errorf("list existing identifiers: %w", err)
	}

	prepared, err := Prepare(raw, collegeID, existing)
	if err != nil {
		var aborted *AbortedError
		if errors.As(err, &aborted) {
			metrics.AddRowErrors(len(aborted.Errors))
		}
		im.logger.Info("import rejected",
			"college_id", collegeID,
			"error", err,
		)
		return nil, err
	}

	im.logger.Debug("import prepared",
		"college_id", collegeID,
		"candidates", len(prepared.Candidates),
		"existing", prepared.Existing,
	)
	return prepared, nil
}

// Submit runs the batch phase for a prepared import.
func (im *Importer) Submit(ctx context.Context, p *PreparedImport, progress ProgressFunc) ImportSummary {
	outcomes := im.scheduler.Run(ctx, p.Candidates, im.store.CreateStudent, progress)
	summary := Aggregate(outcomes)

	for _, o := range summary.FailedOutcomes {
		im.logger.Warn("student submission failed",
			"college_id", p.CollegeID,
			"line", o.Record.Line,
			"identifier", o.Record.Identifier,
			"error", o.Err,
		)
	}
	return summary
}

// Prepare runs every pre-submission stage on raw. It does no I/O: existing
// is the dedup seed already fetched for collegeID and is not modified.
func Prepare(raw string, collegeID uuid.UUID, existing IdentifierSet) (*PreparedImport, error) {
	lines, err := Tokenize(raw)
	if err != nil {
		return nil, err
	}

	header, rows := lines[0], lines[1:]
	cols, err := ResolveColumns(header)
	if err != nil {
		return nil, err
	}

	candidates, rowErrs := ValidateRows(header, rows, cols, collegeID)
	kept, dupErrs := FilterDuplicates(existing, candidates)

	if errs := mergeErrors(rowErrs, dupErrs); len(errs) > 0 {
		return nil, &AbortedError{Errors: errs}
	}

	return &PreparedImport{
		CollegeID:  collegeID,
		Header:     header,
		Candidates: kept,
		Existing:   existing.Len(),
	}, nil
}
