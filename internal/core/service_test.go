package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/roster/internal/config"
)

func testService(store Store) *Service {
	return NewService(store, config.ImportConfig{
		BatchSize:       5,
		MaxFileSize:     1 << 20,
		MaxConcurrent:   2,
		MaxWaitTime:     50 * time.Millisecond,
		Timeout:         5 * time.Second,
		ErrorPreview:    5,
		ResultRetention: time.Minute,
	}, quietLogger())
}

func waitResult(t *testing.T, svc *Service, id string) *ImportResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := svc.GetImportResult(ctx, id)
	if err != nil {
		t.Fatalf("GetImportResult() error = %v", err)
	}
	return res
}

func TestService_StartImport(t *testing.T) {
	store := newFakeStore()
	college := store.addCollege("C")
	svc := testService(store)

	ctx := WithClientInfo(context.Background(), "10.0.0.7", "curl/8.0")
	id, err := svc.StartImport(ctx, college, "alumnos.csv", []byte(csvFile(
		"Ana,1234,ana@x.com",
		"Beto,5678,beto@x.com",
	)))
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}

	res := waitResult(t, svc, id)
	if res.Status != StatusFullSuccess || res.Summary == nil || res.Summary.CreatedCount != 2 {
		t.Fatalf("result = %+v, want full success with 2 created", res)
	}

	progress, err := svc.GetImportProgress(id)
	if err != nil {
		t.Fatalf("GetImportProgress() error = %v", err)
	}
	if progress.Phase != PhaseComplete || progress.Percent != 100 {
		t.Errorf("progress = %+v, want complete at 100", progress)
	}

	if store.historyLen() != 1 {
		t.Fatalf("history rows = %d, want 1", store.historyLen())
	}
	h := store.history[0]
	if h.CreatedCount != 2 || h.Status != StatusFullSuccess || h.IPAddress != "10.0.0.7" || h.UserAgent != "curl/8.0" {
		t.Errorf("history = %+v", h)
	}
	if h.ID.String() != id {
		t.Errorf("history ID = %s, want %s", h.ID, id)
	}

	peeked, err := svc.PeekImportResult(id)
	if err != nil || peeked != res {
		t.Errorf("PeekImportResult() = %p, %v; want %p", peeked, err, res)
	}
	if active := svc.ActiveImports(); len(active) != 1 || active[0].ImportID != id {
		t.Errorf("ActiveImports() = %+v", active)
	}
}

func TestService_StartImportRejections(t *testing.T) {
	store := newFakeStore()
	college := store.addCollege("C")
	svc := testService(store)

	_, err := svc.StartImport(context.Background(), uuid.New(), "a.csv", []byte(csvFile("Ana,1234,ana@x.com")))
	if !errors.Is(err, ErrCollegeNotFound) {
		t.Errorf("unknown college: error = %v, want ErrCollegeNotFound", err)
	}

	big := make([]byte, (1<<20)+1)
	_, err = svc.StartImport(context.Background(), college, "big.csv", big)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("big file: error = %v, want ErrFileTooLarge", err)
	}
}

func TestService_AbortedImport(t *testing.T) {
	store := newFakeStore()
	college := store.addCollege("C")
	svc := testService(store)

	var rows []string
	for i := 0; i < 8; i++ {
		rows = append(rows, "Alumno,1"+identifierFor(i)+",correo-invalido")
	}

	id, err := svc.StartImport(context.Background(), college, "malo.csv", []byte(csvFile(rows...)))
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}

	res := waitResult(t, svc, id)
	if res.Status != StatusAborted {
		t.Fatalf("Status = %s, want aborted", res.Status)
	}
	if len(res.Errors) != 5 || res.RemainingErrors != 3 || res.TotalErrors != 8 {
		t.Errorf("preview = %d shown, %d remaining, %d total; want 5, 3, 8",
			len(res.Errors), res.RemainingErrors, res.TotalErrors)
	}
	if res.ErrorCode != "VAL001" {
		t.Errorf("ErrorCode = %q, want VAL001", res.ErrorCode)
	}
	if store.calls() != 0 {
		t.Errorf("CreateStudent called %d times, want 0", store.calls())
	}

	progress, _ := svc.GetImportProgress(id)
	if progress.Phase != PhaseAborted || progress.Percent != 0 {
		t.Errorf("progress = %+v, want aborted with no batch progress", progress)
	}
}

func TestService_SubscribeProgress(t *testing.T) {
	store := newFakeStore()
	store.delay = 10 * time.Millisecond
	college := store.addCollege("C")
	svc := testService(store)

	var rows []string
	for i := 0; i < 12; i++ {
		rows = append(rows, "Alumno,"+identifierFor(i)+",a@x.com")
	}

	id, err := svc.StartImport(context.Background(), college, "a.csv", []byte(csvFile(rows...)))
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}

	ch, err := svc.SubscribeProgress(id)
	if err != nil {
		t.Fatalf("SubscribeProgress() error = %v", err)
	}

	var last ImportProgress
	prev := 0
	for p := range ch {
		if p.Percent < prev {
			t.Errorf("progress went backwards: %d after %d", p.Percent, prev)
		}
		prev = p.Percent
		last = p
	}

	if last.Phase != PhaseComplete || last.Percent != 100 {
		t.Errorf("last update = %+v, want complete at 100", last)
	}

	// Subscribing after the end yields the final state and a closed channel.
	ch, err = svc.SubscribeProgress(id)
	if err != nil {
		t.Fatalf("late SubscribeProgress() error = %v", err)
	}
	if p := <-ch; p.Phase != PhaseComplete {
		t.Errorf("late subscriber got %+v", p)
	}
	if _, open := <-ch; open {
		t.Error("late subscriber channel should be closed")
	}
}

func TestService_CancelImport(t *testing.T) {
	store := newFakeStore()
	store.delay = 30 * time.Millisecond
	college := store.addCollege("C")
	svc := testService(store)

	var rows []string
	for i := 0; i < 20; i++ {
		rows = append(rows, "Alumno,"+identifierFor(i)+",a@x.com")
	}

	id, err := svc.StartImport(context.Background(), college, "a.csv", []byte(csvFile(rows...)))
	if err != nil {
		t.Fatalf("StartImport() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := svc.CancelImport(id); err != nil {
		t.Fatalf("CancelImport() error = %v", err)
	}

	res := waitResult(t, svc, id)
	if res.Status != StatusCancelled {
		t.Fatalf("Status = %s, want cancelled", res.Status)
	}
	if res.Summary != nil && res.Summary.TotalAttempted != 20 {
		t.Errorf("TotalAttempted = %d, want every record accounted for", res.Summary.TotalAttempted)
	}
	if store.calls() >= 20 {
		t.Errorf("CreateStudent called %d times, want fewer than 20", store.calls())
	}
}

func TestService_UnknownImport(t *testing.T) {
	svc := testService(newFakeStore())

	if _, err := svc.GetImportProgress("nope"); !errors.Is(err, ErrImportNotFound) {
		t.Errorf("GetImportProgress: error = %v, want ErrImportNotFound", err)
	}
	if _, err := svc.SubscribeProgress("nope"); !errors.Is(err, ErrImportNotFound) {
		t.Errorf("SubscribeProgress: error = %v, want ErrImportNotFound", err)
	}
	if err := svc.CancelImport("nope"); !errors.Is(err, ErrImportNotFound) {
		t.Errorf("CancelImport: error = %v, want ErrImportNotFound", err)
	}
}

func TestService_RunImportSync(t *testing.T) {
	store := newFakeStore()
	college := store.addCollege("C")
	svc := testService(store)

	var (
		mu     sync.Mutex
		phases []ImportPhase
	)
	res, err := svc.RunImport(context.Background(), college, "a.csv", []byte(csvFile("Ana,1234,ana@x.com")), func(p ImportProgress) {
		mu.Lock()
		phases = append(phases, p.Phase)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("RunImport() error = %v", err)
	}
	if res.Status != StatusFullSuccess {
		t.Errorf("Status = %s, want full_success", res.Status)
	}

	want := []ImportPhase{PhaseValidating, PhaseSubmitting, PhaseSubmitting, PhaseComplete}
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("phases = %v, want %v", phases, want)
			break
		}
	}
	if store.historyLen() != 1 {
		t.Errorf("history rows = %d, want 1", store.historyLen())
	}
}

func TestService_PreviewImport(t *testing.T) {
	store := newFakeStore()
	college := store.addCollege("C")
	svc := testService(store)

	p, err := svc.PreviewImport(context.Background(), college, []byte(csvFile("Ana,1234,ana@x.com", "Beto,5678,b@x.com")))
	if err != nil {
		t.Fatalf("PreviewImport() error = %v", err)
	}
	if len(p.Candidates) != 2 {
		t.Errorf("candidates = %d, want 2", len(p.Candidates))
	}
	if store.calls() != 0 || store.historyLen() != 0 {
		t.Error("preview must not submit or record history")
	}
}

func TestService_ConcurrencyLimit(t *testing.T) {
	store := newFakeStore()
	store.delay = 100 * time.Millisecond
	college := store.addCollege("C")
	svc := testService(store)

	data := []byte(csvFile("Ana,1234,ana@x.com"))
	var ids []string
	for i := 0; i < 2; i++ {
		id, err := svc.StartImport(context.Background(), college, "a.csv", data)
		if err != nil {
			t.Fatalf("StartImport #%d error = %v", i, err)
		}
		ids = append(ids, id)
	}

	if _, err := svc.StartImport(context.Background(), college, "a.csv", data); !errors.Is(err, ErrTooManyImports) {
		t.Errorf("third import: error = %v, want ErrTooManyImports", err)
	}
	if st := svc.LimiterStatus(); st.Active != 2 {
		t.Errorf("LimiterStatus().Active = %d, want 2", st.Active)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.WaitForImports(ctx); err != nil {
		t.Fatalf("WaitForImports() error = %v", err)
	}
	for _, id := range ids {
		if res := waitResult(t, svc, id); res.Status != StatusFullSuccess {
			t.Errorf("import %s status = %s", id, res.Status)
		}
	}
}

func TestService_ListImports(t *testing.T) {
	store := newFakeStore()
	college := store.addCollege("C")
	svc := testService(store)

	for i := 0; i < 3; i++ {
		if _, err := svc.RunImport(context.Background(), college, "a.csv", []byte(csvFile("Ana,"+identifierFor(i)+",ana@x.com")), nil); err != nil {
			t.Fatalf("RunImport() error = %v", err)
		}
	}

	recs, err := svc.ListImports(context.Background(), college, 2)
	if err != nil {
		t.Fatalf("ListImports() error = %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("got %d records, want 2", len(recs))
	}
}
