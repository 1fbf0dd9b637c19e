package v1

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/clubops/querycsv/internal/engine"
)

func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.collections.List(r.Context()))
}

func (h *Handler) ExportCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".csv"))
	if err := h.collections.Export(r.Context(), name, w); err != nil {
		zap.S().Named("collection_handler").Errorf("exporting collection %s: %v", name, err)
		// The csv writer buffers, so errors raised before the flush can
		// still produce a proper error reply.
		w.Header().Del("Content-Disposition")
		replyError(w, r, errStatus(err), err)
	}
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	which := engine.TemplateFields(r.URL.Query().Get("fields"))
	switch which {
	case "", engine.TemplateAll:
		which = engine.TemplateAll
	case engine.TemplateRequired, engine.TemplateWritable:
	default:
		replyError(w, r, http.StatusBadRequest, fmt.Errorf("unknown field set %q", which))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"_template.csv"))
	if err := h.collections.Template(r.Context(), name, which, w); err != nil {
		zap.S().Named("collection_handler").Errorf("writing template for %s: %v", name, err)
		w.Header().Del("Content-Disposition")
		replyError(w, r, errStatus(err), err)
	}
}
