package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/roster/internal/config"
	"github.com/JonMunkholm/roster/internal/logging"
	"github.com/JonMunkholm/roster/internal/metrics"
)

// historyTimeout bounds writing the import history row after a run.
const historyTimeout = 5 * time.Second

// Service runs student imports and tracks them while they are active.
type Service struct {
	store    Store
	importer *Importer
	limiter  *ImportLimiter
	cfg      config.ImportConfig
	logger   *slog.Logger

	mu      sync.RWMutex
	imports map[string]*activeImport
}

// ImportResult is the final report of one import.
type ImportResult struct {
	ImportID  string         `json:"import_id"`
	CollegeID uuid.UUID      `json:"college_id"`
	FileName  string         `json:"file_name"`
	Status    ImportStatus   `json:"status"`
	Message   string         `json:"message"`
	Summary   *ImportSummary `json:"summary,omitempty"`

	// Errors holds the first row errors of an aborted import and
	// RemainingErrors how many more there were.
	Errors          []ValidationError `json:"errors,omitempty"`
	RemainingErrors int               `json:"remaining_errors,omitempty"`
	TotalErrors     int               `json:"total_errors,omitempty"`

	Error     string        `json:"error,omitempty"`
	ErrorCode string        `json:"error_code,omitempty"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

type activeImport struct {
	ID        string
	CollegeID uuid.UUID
	FileName  string
	Client    ClientInfo
	cancel    context.CancelFunc

	// onProgress mirrors progress changes to a synchronous caller.
	onProgress func(ImportProgress)

	mu        sync.Mutex
	progress  ImportProgress
	result    *ImportResult
	listeners []chan ImportProgress
	done      chan struct{}
}

// NewService creates a Service on top of store.
func NewService(store Store, cfg config.ImportConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		importer: NewImporter(store, cfg.BatchSize, logger),
		limiter:  NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		cfg:      cfg,
		logger:   logger,
		imports:  make(map[string]*activeImport),
	}
}

// StartImport validates the request, takes an import slot and runs the
// import in the background. It returns the import ID at once.
//
// Returns ErrFileTooLarge, ErrCollegeNotFound, or ErrTooManyImports when no
// slot frees up within the configured wait time.
func (s *Service) StartImport(ctx context.Context, collegeID uuid.UUID, fileName string, data []byte) (string, error) {
	if err := s.checkSize(len(data)); err != nil {
		return "", err
	}
	if _, err := s.store.GetCollege(ctx, collegeID); err != nil {
		return "", err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	imp := s.newImport(ctx, collegeID, fileName)

	// The run outlives the request but keeps its values (request ID, client).
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout())
	imp.cancel = cancel

	s.mu.Lock()
	s.imports[imp.ID] = imp
	s.mu.Unlock()

	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer s.cleanup(imp.ID, s.retention())

		s.execute(runCtx, imp, data)
	}()

	return imp.ID, nil
}

// RunImport runs an import synchronously. onProgress, if non-nil, receives
// every progress change. The run is recorded in history like an async one.
func (s *Service) RunImport(ctx context.Context, collegeID uuid.UUID, fileName string, data []byte, onProgress func(ImportProgress)) (*ImportResult, error) {
	if err := s.checkSize(len(data)); err != nil {
		return nil, err
	}
	if _, err := s.store.GetCollege(ctx, collegeID); err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	imp := s.newImport(ctx, collegeID, fileName)
	imp.onProgress = onProgress

	runCtx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	imp.cancel = cancel

	return s.execute(runCtx, imp, data), nil
}

// PreviewImport runs every check of an import without submitting anything.
func (s *Service) PreviewImport(ctx context.Context, collegeID uuid.UUID, data []byte) (*PreparedImport, error) {
	if err := s.checkSize(len(data)); err != nil {
		return nil, err
	}
	if _, err := s.store.GetCollege(ctx, collegeID); err != nil {
		return nil, err
	}
	return s.importer.Load(ctx, string(data), collegeID)
}

// SubscribeProgress returns a channel of progress updates for an import.
// The current state is sent first; the channel is closed when the import ends.
func (s *Service) SubscribeProgress(importID string) (<-chan ImportProgress, error) {
	imp, err := s.get(importID)
	if err != nil {
		return nil, err
	}

	ch := make(chan ImportProgress, 16)

	imp.mu.Lock()
	defer imp.mu.Unlock()

	ch <- imp.progress
	if imp.result != nil {
		close(ch)
		return ch, nil
	}
	imp.listeners = append(imp.listeners, ch)
	return ch, nil
}

// GetImportProgress returns the current progress without blocking.
func (s *Service) GetImportProgress(importID string) (ImportProgress, error) {
	imp, err := s.get(importID)
	if err != nil {
		return ImportProgress{}, err
	}

	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.progress, nil
}

// GetImportResult waits for the import to finish and returns its result.
func (s *Service) GetImportResult(ctx context.Context, importID string) (*ImportResult, error) {
	imp, err := s.get(importID)
	if err != nil {
		return nil, err
	}

	select {
	case <-imp.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.result, nil
}

// PeekImportResult returns the result if the import has finished, or nil
// while it is still running.
func (s *Service) PeekImportResult(importID string) (*ImportResult, error) {
	imp, err := s.get(importID)
	if err != nil {
		return nil, err
	}

	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.result, nil
}

// CancelImport asks a running import to stop. Slices already started
// settle; later records are reported as cancelled.
func (s *Service) CancelImport(importID string) error {
	imp, err := s.get(importID)
	if err != nil {
		return err
	}
	imp.cancel()
	return nil
}

// ActiveImports returns the progress of every tracked import.
func (s *Service) ActiveImports() []ImportProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ImportProgress, 0, len(s.imports))
	for _, imp := range s.imports {
		imp.mu.Lock()
		out = append(out, imp.progress)
		imp.mu.Unlock()
	}
	return out
}

// ListImports returns import history for a college, newest first.
func (s *Service) ListImports(ctx context.Context, collegeID uuid.UUID, limit int) ([]ImportRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListImports(ctx, collegeID, limit)
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until no import is running or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Shutdown waits for running imports. If ctx ends first, every import is
// cancelled and Shutdown returns ctx's error.
func (s *Service) Shutdown(ctx context.Context) error {
	err := s.WaitForImports(ctx)
	if err == nil {
		return nil
	}

	s.mu.RLock()
	s.logger.Warn("cancelling running imports", "count", len(s.imports))
	for _, imp := range s.imports {
		imp.cancel()
	}
	s.mu.RUnlock()
	return err
}

// ErrorPreview is how many row errors a result lists.
func (s *Service) ErrorPreview() int {
	if s.cfg.ErrorPreview <= 0 {
		return DefaultErrorPreview
	}
	return s.cfg.ErrorPreview
}

func (s *Service) execute(ctx context.Context, imp *activeImport, data []byte) (result *ImportResult) {
	start := time.Now()
	logger := logging.WithFields(ctx, "import_id", imp.ID, "college_id", imp.CollegeID)

	metrics.ImportStarted()
	defer metrics.ImportFinished()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in import", "panic", r)
			result = s.failure(imp, fmt.Errorf("internal error: %v", r))
		}
		result.Duration = time.Since(start)
		s.finish(ctx, imp, result, logger)
	}()

	logger.Info("import started", "file", imp.FileName, "bytes", len(data))
	imp.update(func(p *ImportProgress) { p.Phase = PhaseValidating })

	prepared, err := s.importer.Load(ctx, string(data), imp.CollegeID)
	if err != nil {
		return s.failure(imp, err)
	}

	imp.update(func(p *ImportProgress) {
		p.Phase = PhaseSubmitting
		p.Total = len(prepared.Candidates)
	})

	summary := s.importer.Submit(ctx, prepared, func(percent int) {
		imp.update(func(p *ImportProgress) { p.Percent = percent })
	})

	res := &ImportResult{
		ImportID:  imp.ID,
		CollegeID: imp.CollegeID,
		FileName:  imp.FileName,
		Status:    summary.Status(),
		Message:   summary.Message(),
		Summary:   &summary,
	}
	if summary.Cancelled() {
		res.Status = StatusCancelled
		res.Message = fmt.Sprintf("Importación cancelada: %d estudiantes registrados, %d no se procesaron.",
			summary.CreatedCount, summary.FailedCount())
	}
	return res
}

// failure builds the result of an import that submitted nothing.
func (s *Service) failure(imp *activeImport, err error) *ImportResult {
	msg := MapError(err)
	res := &ImportResult{
		ImportID:  imp.ID,
		CollegeID: imp.CollegeID,
		FileName:  imp.FileName,
		Status:    StatusFailed,
		Message:   msg.Message,
		Error:     err.Error(),
		ErrorCode: msg.Code,
		Err:       err,
	}

	var aborted *AbortedError
	switch {
	case errors.As(err, &aborted):
		res.Status = StatusAborted
		res.Errors, res.RemainingErrors = aborted.Preview(s.ErrorPreview())
		res.TotalErrors = len(aborted.Errors)
		res.Message = fmt.Sprintf("Importación rechazada: %d errores encontrados. Corrija el archivo y vuelva a subirlo.", len(aborted.Errors))
	case errors.Is(err, context.Canceled):
		res.Status = StatusCancelled
		res.Message = "La importación fue cancelada antes de registrar estudiantes."
	}
	return res
}

func (s *Service) finish(ctx context.Context, imp *activeImport, res *ImportResult, logger *slog.Logger) {
	imp.update(func(p *ImportProgress) {
		p.Phase = phaseFor(res.Status)
		p.Error = res.Error
		if res.Summary != nil {
			p.Percent = 100
		}
	})

	s.recordHistory(ctx, imp, res, logger)
	metrics.RecordImport(string(res.Status), res.Duration)

	attrs := []any{"status", res.Status, "duration", res.Duration}
	if res.Summary != nil {
		attrs = append(attrs, "created", res.Summary.CreatedCount, "failed", res.Summary.FailedCount())
	}
	if res.TotalErrors > 0 {
		attrs = append(attrs, "row_errors", res.TotalErrors)
	}
	if res.Status == StatusFailed {
		logger.Error("import failed", append(attrs, "error", res.Err)...)
	} else {
		logger.Info("import finished", attrs...)
	}

	imp.mu.Lock()
	imp.result = res
	for _, ch := range imp.listeners {
		close(ch)
	}
	imp.listeners = nil
	imp.mu.Unlock()

	close(imp.done)
}

func (s *Service) recordHistory(ctx context.Context, imp *activeImport, res *ImportResult, logger *slog.Logger) {
	rec := ImportRecord{
		CollegeID:  imp.CollegeID,
		FileName:   imp.FileName,
		Status:     res.Status,
		ErrorCount: res.TotalErrors,
		Message:    res.Message,
		DurationMs: res.Duration.Milliseconds(),
		IPAddress:  imp.Client.IPAddress,
		UserAgent:  imp.Client.UserAgent,
	}
	if id, err := uuid.Parse(imp.ID); err == nil {
		rec.ID = id
	}
	if res.Summary != nil {
		rec.CreatedCount = res.Summary.CreatedCount
		rec.FailedCount = res.Summary.FailedCount()
	}

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()

	if err := s.store.RecordImport(hctx, rec); err != nil {
		logger.Warn("failed to record import history", "error", err)
	}
}

func phaseFor(status ImportStatus) ImportPhase {
	switch status {
	case StatusAborted:
		return PhaseAborted
	case StatusFailed:
		return PhaseFailed
	case StatusCancelled:
		return PhaseCancelled
	default:
		return PhaseComplete
	}
}

func (s *Service) newImport(ctx context.Context, collegeID uuid.UUID, fileName string) *activeImport {
	id := uuid.NewString()
	return &activeImport{
		ID:        id,
		CollegeID: collegeID,
		FileName:  fileName,
		Client:    ClientInfoFromContext(ctx),
		cancel:    func() {},
		progress: ImportProgress{
			ImportID:  id,
			CollegeID: collegeID.String(),
			FileName:  fileName,
			Phase:     PhaseStarting,
		},
		done: make(chan struct{}),
	}
}

func (s *Service) get(importID string) (*activeImport, error) {
	s.mu.RLock()
	imp, ok := s.imports[importID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrImportNotFound, importID)
	}
	return imp, nil
}

// cleanup drops the import from tracking after delay.
func (s *Service) cleanup(importID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.imports, importID)
		s.mu.Unlock()
	})
}

func (s *Service) checkSize(n int) error {
	if s.cfg.MaxFileSize > 0 && int64(n) > s.cfg.MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, n, s.cfg.MaxFileSize)
	}
	return nil
}

func (s *Service) timeout() time.Duration {
	if s.cfg.Timeout <= 0 {
		return 10 * time.Minute
	}
	return s.cfg.Timeout
}

func (s *Service) retention() time.Duration {
	if s.cfg.ResultRetention <= 0 {
		return 5 * time.Minute
	}
	return s.cfg.ResultRetention
}

// update applies fn to the progress and fans the new state out. Slow
// listeners miss intermediate updates.
func (imp *activeImport) update(fn func(*ImportProgress)) {
	imp.mu.Lock()
	fn(&imp.progress)
	p := imp.progress
	for _, ch := range imp.listeners {
		select {
		case ch <- p:
		default:
		}
	}
	imp.mu.Unlock()

	if imp.onProgress != nil {
		imp.onProgress(p)
	}
}
