package core

import "fmt"

// ImportStatus is the final disposition of an import.
type ImportStatus string

const (
	StatusFullSuccess    ImportStatus = "full_success"
	StatusPartialSuccess ImportStatus = "partial_success"
	StatusAllFailed      ImportStatus = "all_failed"
	StatusAborted        ImportStatus = "aborted"   // rejected before submission
	StatusFailed         ImportStatus = "failed"    // could not run: bad file, store down, busy
	StatusCancelled      ImportStatus = "cancelled" // stopped between slices
)

// ImportSummary aggregates the outcomes of one batch run.
type ImportSummary struct {
	CreatedCount   int                 `json:"created_count"`
	Created        []PersistedStudent  `json:"created"`
	FailedOutcomes []SubmissionOutcome `json:"failed_outcomes"`
	TotalAttempted int                 `json:"total_attempted"`
}

// Aggregate partitions outcomes, keeping their order, into created students
// and failures. Every outcome lands in exactly one of the two.
func Aggregate(outcomes []SubmissionOutcome) ImportSummary {
	sum := ImportSummary{
		TotalAttempted: len(outcomes),
		Created:        make([]PersistedStudent, 0, len(outcomes)),
		FailedOutcomes: []SubmissionOutcome{},
	}
	for _, o := range outcomes {
		if o.Success && o.Student != nil {
			sum.Created = append(sum.Created, *o.Student)
			continue
		}
		sum.FailedOutcomes = append(sum.FailedOutcomes, o)
	}
	sum.CreatedCount = len(sum.Created)
	return sum
}

// FailedCount returns the number of failed outcomes.
func (s ImportSummary) FailedCount() int { return len(s.FailedOutcomes) }

// Cancelled reports whether any record was skipped by cancellation.
func (s ImportSummary) Cancelled() bool {
	for _, o := range s.FailedOutcomes {
		if o.Error == MsgCancelled {
			return true
		}
	}
	return false
}

// Status classifies the summary.
func (s ImportSummary) Status() ImportStatus {
	switch {
	case s.FailedCount() == 0:
		return StatusFullSuccess
	case s.CreatedCount > 0:
		return StatusPartialSuccess
	default:
		return StatusAllFailed
	}
}

// Message is the sentence shown to the operator once the batch phase ends.
func (s ImportSummary) Message() string {
	switch s.Status() {
	case StatusFullSuccess:
		return fmt.Sprintf("Importación completada: %d estudiantes registrados correctamente.", s.CreatedCount)
	case StatusPartialSuccess:
		return fmt.Sprintf("Importación parcial: %d estudiantes registrados, %d fallaron.", s.CreatedCount, s.FailedCount())
	default:
		return fmt.Sprintf("La importación falló: no se registró ninguno de los %d estudiantes.", s.TotalAttempted)
	}
}
