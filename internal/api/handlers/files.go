package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/statement-review/internal/api/middleware"
	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/dvloznov/statement-review/internal/jobs"
	"github.com/dvloznov/statement-review/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxUploadBytes bounds multipart uploads.
const MaxUploadBytes = 32 << 20

// fileResponse exposes transactions only for COMPLETED files.
type fileResponse struct {
	*domain.File
	Transactions *[]domain.Transaction `json:"transactions,omitempty"`
}

func newFileResponse(f *domain.File) fileResponse {
	resp := fileResponse{File: f}
	if f.Status == domain.StatusCompleted {
		txs := f.VisibleTransactions()
		if txs == nil {
			txs = []domain.Transaction{}
		}
		resp.Transactions = &txs
	}
	return resp
}

// FilesHandler handles file registration and extraction endpoints.
type FilesHandler struct {
	registry       FileRegistry
	uploader       Uploader
	extractor      jobs.Extractor
	publisher      jobs.Publisher
	extractTimeout time.Duration
	log            zerolog.Logger
}

// NewFilesHandler creates a new files handler. extractTimeout bounds
// synchronous extractions; zero means no bound beyond the request's own.
func NewFilesHandler(registry FileRegistry, uploader Uploader, extractor jobs.Extractor, publisher jobs.Publisher, extractTimeout time.Duration, log zerolog.Logger) *FilesHandler {
	return &FilesHandler{
		registry:       registry,
		uploader:       uploader,
		extractor:      extractor,
		publisher:      publisher,
		extractTimeout: extractTimeout,
		log:            log,
	}
}

// CreateFile handles POST /api/files.
// A multipart body with a "file" part uploads the document; a JSON body
// registers a document already present in the file store.
func (h *FilesHandler) CreateFile(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		f   *domain.File
		err error
	)
	if mediaType == "multipart/form-data" {
		f, err = h.upload(w, r)
	} else {
		f, err = h.register(r)
	}
	if err != nil {
		var reqErr badRequestError
		if errors.As(err, &reqErr) {
			middleware.WriteError(w, http.StatusBadRequest, reqErr.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to create file")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create file")
		return
	}

	h.log.Info().
		Str("file_id", f.ID).
		Str("mime_type", f.MimeType).
		Int64("bytes", f.Size).
		Msg("File registered")

	middleware.WriteJSON(w, http.StatusCreated, newFileResponse(f))
}

type badRequestError string

func (e badRequestError) Error() string { return string(e) }

func (h *FilesHandler) register(r *http.Request) (*domain.File, error) {
	var req struct {
		Filename     string `json:"filename"`
		OriginalName string `json:"original_name"`
		MimeType     string `json:"mime_type"`
		Size         int64  `json:"size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, badRequestError("Invalid request body")
	}
	if req.Filename == "" {
		return nil, badRequestError("filename is required")
	}
	if req.OriginalName == "" {
		req.OriginalName = req.Filename
	}

	f := &domain.File{
		Filename:     req.Filename,
		OriginalName: req.OriginalName,
		MimeType:     normalizeMIME(req.MimeType, req.OriginalName),
		Size:         req.Size,
	}
	if err := h.registry.CreateFile(r.Context(), f); err != nil {
		return nil, err
	}
	return f, nil
}

func (h *FilesHandler) upload(w http.ResponseWriter, r *http.Request) (*domain.File, error) {
	if h.uploader == nil {
		return nil, badRequestError("Uploads are not enabled")
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	part, header, err := r.FormFile("file")
	if err != nil {
		return nil, badRequestError("file is required")
	}
	defer part.Close()

	originalName := filepath.Base(header.Filename)
	mimeType := normalizeMIME(header.Header.Get("Content-Type"), originalName)

	id := uuid.New().String()
	filename := id + strings.ToLower(filepath.Ext(originalName))

	written, err := h.uploader.Write(r.Context(), filename, mimeType, part)
	if err != nil {
		return nil, err
	}

	f := &domain.File{
		ID:           id,
		Filename:     filename,
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         written,
	}
	if err := h.registry.CreateFile(r.Context(), f); err != nil {
		// Unregistered bytes are unreachable; drop them.
		if delErr := h.uploader.Delete(context.WithoutCancel(r.Context()), filename); delErr != nil {
			h.log.Warn().Err(delErr).Str("filename", filename).Msg("Failed to remove orphaned upload")
		}
		return nil, err
	}
	return f, nil
}

// normalizeMIME strips parameters and falls back to the extension when the
// declared type is missing or generic.
func normalizeMIME(declared, name string) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return strings.ToLower(mt)
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	if declared != "" {
		return strings.ToLower(declared)
	}
	return "application/octet-stream"
}

// ListFiles handles GET /api/files
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	var filter domain.FileFilter
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := domain.ParseStatus(strings.ToUpper(s))
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid status")
			return
		}
		filter.Status = &status
	}
	filter.Limit, filter.Offset = paging(r)

	files, err := h.registry.ListFiles(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list files")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list files")
		return
	}

	out := make([]fileResponse, len(files))
	for i, f := range files {
		out[i] = newFileResponse(f)
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"files": out,
		"count": len(out),
	})
}

// GetFile handles GET /api/files/{id}
func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	f, err := h.registry.GetFile(r.Context(), fileID)
	if err != nil {
		h.writeLookupError(w, err, fileID)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newFileResponse(f))
}

// Extract handles POST /api/files/{id}/extract. The extraction runs within
// the request and the written outcome is returned.
func (h *FilesHandler) Extract(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	ctx := r.Context()
	if h.extractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.extractTimeout)
		defer cancel()
	}

	outcome, err := h.extractor.Extract(ctx, fileID)
	switch {
	case err == nil:
		middleware.WriteJSON(w, http.StatusOK, outcome)
	case errors.Is(err, domain.ErrFileNotFound):
		middleware.WriteError(w, http.StatusNotFound, "File not found")
	case errors.Is(err, pipeline.ErrExtractionInProgress), errors.Is(err, domain.ErrStaleAttempt):
		middleware.WriteError(w, http.StatusConflict, "Extraction already in progress")
	case errors.Is(err, pipeline.ErrPersistence):
		h.log.Error().Err(err).Str("file_id", fileID).Msg("Extraction state could not be saved")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save extraction state")
	case outcome != nil && errors.Is(err, pipeline.ErrUnsupportedInput):
		middleware.WriteJSON(w, http.StatusUnprocessableEntity, outcome)
	case outcome != nil:
		// FAILED was recorded; the document model or parse step is at fault.
		middleware.WriteJSON(w, http.StatusBadGateway, outcome)
	default:
		h.log.Error().Err(err).Str("file_id", fileID).Msg("Extraction failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Extraction failed")
	}
}

// EnqueueExtract handles POST /api/files/{id}/extract/async
func (h *FilesHandler) EnqueueExtract(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")
	ctx := r.Context()

	if _, err := h.registry.GetFile(ctx, fileID); err != nil {
		h.writeLookupError(w, err, fileID)
		return
	}

	job := &jobs.ExtractJob{FileID: fileID}
	if err := h.publisher.PublishExtract(ctx, job); err != nil {
		h.log.Error().Err(err).Str("file_id", fileID).Msg("Failed to enqueue extraction job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue extraction job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("file_id", fileID).Msg("Extraction job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"file_id": fileID,
		"status":  string(job.Status),
	})
}

func (h *FilesHandler) writeLookupError(w http.ResponseWriter, err error, fileID string) {
	if errors.Is(err, domain.ErrFileNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "File not found")
		return
	}
	h.log.Error().Err(err).Str("file_id", fileID).Msg("Failed to get file")
	middleware.WriteError(w, http.StatusInternalServerError, "Failed to get file")
}
