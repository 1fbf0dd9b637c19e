package v1

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clubops/querycsv/internal/mapping"
	"github.com/clubops/querycsv/internal/service"
)

// maxUploadMemory bounds the in-memory part of multipart parsing; larger
// files spill to disk.
const maxUploadMemory = 32 << 20

func (h *Handler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	logger := zap.S().Named("upload_handler")

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		replyError(w, r, http.StatusBadRequest, fmt.Errorf("parsing multipart form: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		replyError(w, r, http.StatusBadRequest, fmt.Errorf("file is required"))
		return
	}
	defer file.Close()

	var mappings []mapping.FieldMapping
	if raw := r.FormValue("mappings"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mappings); err != nil {
			replyError(w, r, http.StatusBadRequest, fmt.Errorf("parsing mappings: %w", err))
			return
		}
	}

	form := service.UploadForm{
		Collection:    r.FormValue("collection"),
		Filename:      header.Filename,
		Content:       file,
		NotifyAddress: r.FormValue("notifyEmail"),
		Mappings:      mappings,
		Process:       r.FormValue("process") == "true",
	}
	if form.Collection == "" {
		replyError(w, r, http.StatusBadRequest, fmt.Errorf("collection is required"))
		return
	}

	job, err := h.uploads.CreateUpload(r.Context(), form)
	if err != nil {
		logger.Errorf("creating upload: %v", err)
		replyError(w, r, errStatus(err), err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, jobToApi(job))
}

func (h *Handler) ListUploads(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.uploads.ListJobs(r.Context())
	if err != nil {
		replyError(w, r, http.StatusInternalServerError, err)
		return
	}

	out := make([]UploadJob, 0, len(jobs))
	for i := range jobs {
		out = append(out, jobToApi(&jobs[i]))
	}
	render.JSON(w, r, out)
}

func (h *Handler) GetUpload(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		replyError(w, r, http.StatusBadRequest, err)
		return
	}

	job, err := h.uploads.GetJob(r.Context(), id)
	if err != nil {
		replyError(w, r, errStatus(err), err)
		return
	}
	render.JSON(w, r, jobToApi(job))
}

func (h *Handler) ReviewHeaders(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		replyError(w, r, http.StatusBadRequest, err)
		return
	}

	review, err := h.uploads.ReviewHeaders(r.Context(), id)
	if err != nil {
		replyError(w, r, errStatus(err), err)
		return
	}
	render.JSON(w, r, review)
}

func (h *Handler) AddMappings(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		replyError(w, r, http.StatusBadRequest, err)
		return
	}

	var mappings []mapping.FieldMapping
	if err := json.NewDecoder(r.Body).Decode(&mappings); err != nil {
		replyError(w, r, http.StatusBadRequest, fmt.Errorf("parsing mappings: %w", err))
		return
	}

	job, err := h.uploads.AddMappings(r.Context(), id, mappings)
	if err != nil {
		replyError(w, r, errStatus(err), err)
		return
	}
	render.JSON(w, r, jobToApi(job))
}

func (h *Handler) ProcessUpload(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		replyError(w, r, http.StatusBadRequest, err)
		return
	}

	job, err := h.uploads.Process(r.Context(), id)
	if err != nil {
		replyError(w, r, errStatus(err), err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, jobToApi(job))
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		replyError(w, r, http.StatusBadRequest, err)
		return
	}

	report, name, err := h.uploads.Report(r.Context(), id)
	if err != nil {
		replyError(w, r, errStatus(err), err)
		return
	}
	defer report.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := io.Copy(w, report); err != nil {
		zap.S().Named("upload_handler").Errorf("streaming report %s: %v", id, err)
	}
}

func jobID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid job id: %w", err)
	}
	return id, nil
}
