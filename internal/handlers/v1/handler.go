// Package v1 exposes the HTTP API: upload job lifecycle under /api/v1/uploads
// and collection export/templates under /api/v1/collections.
package v1

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/clubops/querycsv/internal/mapping"
	"github.com/clubops/querycsv/internal/service"
	"github.com/clubops/querycsv/internal/store/model"
	"github.com/clubops/querycsv/pkg/requestid"
)

type Handler struct {
	uploads     *service.UploadService
	collections *service.CollectionService
}

func NewHandler(uploads *service.UploadService, collections *service.CollectionService) *Handler {
	return &Handler{uploads: uploads, collections: collections}
}

func (h *Handler) Routes(router chi.Router) {
	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/uploads", func(r chi.Router) {
			r.Post("/", h.CreateUpload)
			r.Get("/", h.ListUploads)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetUpload)
				r.Get("/headers", h.ReviewHeaders)
				r.Put("/mappings", h.AddMappings)
				r.Post("/process", h.ProcessUpload)
				r.Get("/report", h.GetReport)
			})
		})
		r.Route("/collections", func(r chi.Router) {
			r.Get("/", h.ListCollections)
			r.Get("/{name}/export", h.ExportCollection)
			r.Get("/{name}/template", h.GetTemplate)
		})
	})
}

// Error is the JSON error reply shape.
type Error struct {
	Message   string  `json:"message"`
	RequestId *string `json:"requestId,omitempty"`
}

func replyError(w http.ResponseWriter, r *http.Request, status int, err error) {
	reply := Error{Message: err.Error()}
	if id := requestid.FromContext(r.Context()); id != "" {
		reply.RequestId = &id
	}
	render.Status(r, status)
	render.JSON(w, r, reply)
}

// errStatus maps service error types to HTTP statuses.
func errStatus(err error) int {
	switch err.(type) {
	case *service.ErrResourceNotFound, *service.ErrCollectionNotFound:
		return http.StatusNotFound
	case *service.ErrInvalidUpload:
		return http.StatusBadRequest
	case *service.ErrJobNotPending:
		return http.StatusConflict
	case *service.ErrReportNotReady:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// UploadJob is the API representation of an upload job.
type UploadJob struct {
	Id              uuid.UUID              `json:"id"`
	Collection      string                 `json:"collection"`
	Status          string                 `json:"status"`
	Mappings        []mapping.FieldMapping `json:"mappings,omitempty"`
	NotifyAddress   string                 `json:"notifyAddress,omitempty"`
	Error           *string                `json:"error,omitempty"`
	SuccessCount    int                    `json:"successCount"`
	FailureCount    int                    `json:"failureCount"`
	ReportAvailable bool                   `json:"reportAvailable"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

func jobToApi(job *model.UploadJob) UploadJob {
	return UploadJob{
		Id:              job.ID,
		Collection:      job.SchemaRef,
		Status:          string(job.Status),
		Mappings:        job.Mappings(),
		NotifyAddress:   job.NotifyAddress,
		Error:           job.Error,
		SuccessCount:    job.SuccessCount,
		FailureCount:    job.FailureCount,
		ReportAvailable: job.Report != "",
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
}
