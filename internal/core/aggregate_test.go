package core

import (
	"strings"
	"testing"
)

func outcome(line int, ok bool) SubmissionOutcome {
	o := SubmissionOutcome{Record: CandidateRecord{Line: line}, Success: ok}
	if ok {
		o.Student = &PersistedStudent{FullName: "x"}
	} else {
		o.Error = "falló"
	}
	return o
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name        string
		outcomes    []SubmissionOutcome
		wantCreated int
		wantFailed  int
		wantStatus  ImportStatus
		wantMsg     string
	}{
		{
			name:        "all created",
			outcomes:    []SubmissionOutcome{outcome(2, true), outcome(3, true)},
			wantCreated: 2,
			wantStatus:  StatusFullSuccess,
			wantMsg:     "2 estudiantes registrados correctamente",
		},
		{
			name:        "partial",
			outcomes:    []SubmissionOutcome{outcome(2, true), outcome(3, false), outcome(4, true)},
			wantCreated: 2,
			wantFailed:  1,
			wantStatus:  StatusPartialSuccess,
			wantMsg:     "2 estudiantes registrados, 1 fallaron",
		},
		{
			name:       "all failed",
			outcomes:   []SubmissionOutcome{outcome(2, false), outcome(3, false)},
			wantFailed: 2,
			wantStatus: StatusAllFailed,
			wantMsg:    "ninguno de los 2 estudiantes",
		},
		{
			name:       "success without student counts as failed",
			outcomes:   []SubmissionOutcome{{Record: CandidateRecord{Line: 2}, Success: true}},
			wantFailed: 1,
			wantStatus: StatusAllFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := Aggregate(tt.outcomes)

			if sum.CreatedCount != tt.wantCreated || len(sum.Created) != tt.wantCreated {
				t.Errorf("created = %d (%d entities), want %d", sum.CreatedCount, len(sum.Created), tt.wantCreated)
			}
			if sum.FailedCount() != tt.wantFailed {
				t.Errorf("failed = %d, want %d", sum.FailedCount(), tt.wantFailed)
			}
			if sum.TotalAttempted != len(tt.outcomes) {
				t.Errorf("TotalAttempted = %d, want %d", sum.TotalAttempted, len(tt.outcomes))
			}
			if sum.CreatedCount+sum.FailedCount() != sum.TotalAttempted {
				t.Error("a record was lost between created and failed")
			}
			if got := sum.Status(); got != tt.wantStatus {
				t.Errorf("Status() = %s, want %s", got, tt.wantStatus)
			}
			if !strings.Contains(sum.Message(), tt.wantMsg) {
				t.Errorf("Message() = %q, want it to contain %q", sum.Message(), tt.wantMsg)
			}
		})
	}
}

func TestAggregate_KeepsFailureOrder(t *testing.T) {
	sum := Aggregate([]SubmissionOutcome{outcome(2, false), outcome(3, true), outcome(4, false)})

	if sum.FailedOutcomes[0].Record.Line != 2 || sum.FailedOutcomes[1].Record.Line != 4 {
		t.Errorf("failed outcomes out of order: %+v", sum.FailedOutcomes)
	}
}

func TestImportSummary_Cancelled(t *testing.T) {
	sum := Aggregate([]SubmissionOutcome{
		outcome(2, true),
		{Record: CandidateRecord{Line: 3}, Error: MsgCancelled},
	})
	if !sum.Cancelled() {
		t.Error("Cancelled() = false, want true")
	}
	if Aggregate([]SubmissionOutcome{outcome(2, false)}).Cancelled() {
		t.Error("plain failure reported as cancelled")
	}
}
