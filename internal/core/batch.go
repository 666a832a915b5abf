package core

// batch.go submits validated records to the store in bounded slices.
//
// Records are split into consecutive slices of at most Size. Slices run
// strictly in order. Every record of a slice is submitted concurrently and
// the slice settles completely before the next one starts, so at most Size
// submissions are ever in flight. Progress is reported once per settled slice.

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/roster/internal/metrics"
)

// DefaultBatchSize is the number of concurrent submissions per slice.
const DefaultBatchSize = 5

// BatchScheduler drives slice-by-slice submission.
type BatchScheduler struct {
	Size int
}

// NewBatchScheduler returns a scheduler with the given slice size. A
// non-positive size uses DefaultBatchSize.
func NewBatchScheduler(size int) *BatchScheduler {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &BatchScheduler{Size: size}
}

// Run submits every record and returns one outcome per record, in record
// order. A failed submission is recorded and never stops the run.
//
// ctx is checked between slices. A started slice always settles: its
// submissions see ctx and fail on their own if the store honors it. If ctx is
// done before a slice starts, that slice and all later records are reported
// as failed with MsgCancelled without reaching submit.
//
// progress, if non-nil, receives round(done/total*100) after each slice.
// Values never decrease, stay within 1..99 until the last slice and end at
// exactly 100.
func (s *BatchScheduler) Run(ctx context.Context, records []CandidateRecord, submit SubmitFunc, progress ProgressFunc) []SubmissionOutcome {
	size := s.Size
	if size <= 0 {
		size = DefaultBatchSize
	}

	total := len(records)
	outcomes := make([]SubmissionOutcome, total)

	for start := 0; start < total; start += size {
		end := min(start+size, total)

		if err := ctx.Err(); err != nil {
			for i := start; i < total; i++ {
				outcomes[i] = SubmissionOutcome{Record: records[i], Error: MsgCancelled, Err: err}
			}
			emitProgress(progress, total, total)
			return outcomes
		}

		began := time.Now()

		var g errgroup.Group
		g.SetLimit(end - start)
		for i := start; i < end; i++ {
			g.Go(func() error {
				outcomes[i] = submitOne(ctx, records[i], submit)
				return nil
			})
		}
		_ = g.Wait()

		metrics.ObserveBatch(time.Since(began))
		emitProgress(progress, end, total)
	}

	return outcomes
}

// submitOne turns any submit failure, including a panic, into a failed outcome.
func submitOne(ctx context.Context, rec CandidateRecord, submit SubmitFunc) (out SubmissionOutcome) {
	out.Record = rec

	defer func() {
		if r := recover(); r != nil {
			out.Success = false
			out.Student = nil
			out.Err = fmt.Errorf("submit panicked: %v", r)
			out.Error = out.Err.Error()
		}
		metrics.RecordSubmission(out.Success)
	}()

	student, err := submit(ctx, rec)
	if err != nil {
		out.Err = err
		out.Error = submissionMessage(err)
		return out
	}

	out.Success = true
	out.Student = &student
	return out
}

func emitProgress(progress ProgressFunc, done, total int) {
	if progress == nil {
		return
	}
	progress(progressPercent(done, total))
}

// progressPercent is round(done/total*100), held within 1..99 until done
// reaches total.
func progressPercent(done, total int) int {
	if total <= 0 || done >= total {
		return 100
	}
	p := int(math.Round(float64(done) / float64(total) * 100))
	return max(1, min(p, 99))
}
