package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/roster/internal/core"
	"github.com/JonMunkholm/roster/internal/web/templates"
)

// multipartOverhead is allowed on top of the file size limit for form
// boundaries and headers.
const multipartOverhead = 1 << 20

// templateCSV is the header row offered as a download.
const templateCSV = "name,identifier,email\n"

// PreviewResponse describes a file that passed every check.
type PreviewResponse struct {
	Status     string                 `json:"status"`
	Candidates int                    `json:"candidates"`
	Existing   int                    `json:"existing"`
	Header     []string               `json:"header"`
	Sample     []core.CandidateRecord `json:"sample"`
}

// RejectedResponse lists the row errors of a file that would be rejected.
type RejectedResponse struct {
	Status          core.ImportStatus      `json:"status"`
	Message         string                 `json:"message"`
	Code            string                 `json:"code"`
	Errors          []core.ValidationError `json:"errors"`
	RemainingErrors int                    `json:"remaining_errors"`
	TotalErrors     int                    `json:"total_errors"`
}

// handleStartImport accepts a CSV upload and starts the import in the
// background. Responds 202 with the import ID.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	collegeID, err := collegeParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	fileName, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	importID, err := s.service.StartImport(ctx, collegeID, fileName, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/imports/"+importID+"/result")
	writeJSON(w, http.StatusAccepted, map[string]string{"import_id": importID})
}

// handlePreviewImport runs every check on an upload without submitting it.
func (s *Server) handlePreviewImport(w http.ResponseWriter, r *http.Request) {
	collegeID, err := collegeParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	_, data, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	prepared, err := s.service.PreviewImport(r.Context(), collegeID, data)
	if err != nil {
		var aborted *core.AbortedError
		if errors.As(err, &aborted) {
			preview, remaining := aborted.Preview(s.service.ErrorPreview())
			writeJSON(w, http.StatusUnprocessableEntity, RejectedResponse{
				Status:          core.StatusAborted,
				Message:         fmt.Sprintf("Importación rechazada: %d errores encontrados.", len(aborted.Errors)),
				Code:            core.MapError(err).Code,
				Errors:          preview,
				RemainingErrors: remaining,
				TotalErrors:     len(aborted.Errors),
			})
			return
		}
		s.respondError(w, r, err)
		return
	}

	sample := prepared.Candidates
	if len(sample) > s.service.ErrorPreview() {
		sample = sample[:s.service.ErrorPreview()]
	}
	writeJSON(w, http.StatusOK, PreviewResponse{
		Status:     "ok",
		Candidates: len(prepared.Candidates),
		Existing:   prepared.Existing,
		Header:     prepared.Header,
		Sample:     sample,
	})
}

// handleImportProgress streams import progress via Server-Sent Events.
// The event ID is the percentage, so a client reconnecting with
// ?lastEventId=N only receives events past N.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if lastEventIDStr == "" {
		lastEventIDStr = r.Header.Get("Last-Event-ID")
	}
	lastEventID := -1
	if lastEventIDStr != "" {
		if n, err := strconv.Atoi(lastEventIDStr); err == nil {
			lastEventID = n
		}
	}

	progressCh, err := s.service.SubscribeProgress(importID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, errors.New("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	var last core.ImportProgress
	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				data, _ := json.Marshal(last)
				_, _ = fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				flusher.Flush()
				return
			}
			last = progress

			// Phase changes before the batch phase share percent 0, so only
			// the batch phase is filtered on resume.
			if progress.Phase == core.PhaseSubmitting && progress.Percent <= lastEventID {
				continue
			}

			data, err := json.Marshal(progress)
			if err != nil {
				slog.Error("marshal progress", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", progress.Percent, data); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleImportResult returns the final result of an import. While the import
// runs it responds 202 with the current progress, unless ?wait=true asks it
// to block until the end.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	var (
		result *core.ImportResult
		err    error
	)
	if r.URL.Query().Get("wait") == "true" {
		result, err = s.service.GetImportResult(r.Context(), importID)
	} else {
		result, err = s.service.PeekImportResult(importID)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if result == nil {
		progress, err := s.service.GetImportProgress(importID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, progress)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.ImportSummary(result).Render(r.Context(), w); err != nil {
			slog.Error("render import summary", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCancelImport asks a running import to stop.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	if err := s.service.CancelImport(importID); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// handleImportHistory returns the recorded imports of a college.
func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	collegeID, err := collegeParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	history, err := s.service.ListImports(r.Context(), collegeID, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if history == nil {
		history = []core.ImportRecord{}
	}
	writeJSON(w, http.StatusOK, history)
}

// handleActiveImports lists the imports still tracked in memory.
func (s *Server) handleActiveImports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ActiveImports())
}

// handleImportStatus reports import slot usage.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LimiterStatus())
}

// handleDownloadTemplate serves an empty CSV with the expected header.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="estudiantes.csv"`)
	if _, err := io.WriteString(w, templateCSV); err != nil {
		slog.Error("write import template", "error", err)
	}
}

// readUpload reads the multipart "file" field. The body is capped so an
// oversized upload fails with core.ErrFileTooLarge before it is buffered.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, fmt.Errorf("%w: %v", core.ErrFileTooLarge, err)
		}
		return "", nil, fmt.Errorf("%w: %v", errNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return header.Filename, data, nil
}

func collegeParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "collegeID"))
	if err != nil {
		return uuid.Nil, errInvalidCollegeID
	}
	return id, nil
}
