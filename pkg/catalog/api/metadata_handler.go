package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/content-catalog/pkg/catalog"
	"github.com/tendant/content-catalog/pkg/catalog/envelope"
)

// MetadataTypeRequest is the request body for creating or renaming a type
type MetadataTypeRequest struct {
	Name string `json:"name"`
}

// MetadataRequest is the request body for creating a tag
type MetadataRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// MetadataHandler handles HTTP requests for metadata types and tags
type MetadataHandler struct {
	service catalog.Service
}

// NewMetadataHandler creates a new metadata handler
func NewMetadataHandler(service catalog.Service) *MetadataHandler {
	return &MetadataHandler{service: service}
}

// TypeRoutes mounts the read routes for metadata types
func (h *MetadataHandler) TypeRoutes(r chi.Router) {
	r.Get("/", h.ListMetadataTypes)
	r.Get("/{id}", h.GetMetadataType)
}

// TypeWriteRoutes mounts the routes for metadata types that need an identity
func (h *MetadataHandler) TypeWriteRoutes(r chi.Router) {
	r.Post("/", h.CreateMetadataType)
	r.Patch("/{id}", h.RenameMetadataType)
	r.Delete("/{id}", h.DeleteMetadataType)
}

// TagRoutes mounts the read routes for tags
func (h *MetadataHandler) TagRoutes(r chi.Router) {
	r.Get("/", h.ListMetadata)
	r.Get("/{id}", h.GetMetadata)
}

// TagWriteRoutes mounts the routes for tags that need an identity
func (h *MetadataHandler) TagWriteRoutes(r chi.Router) {
	r.Post("/", h.CreateMetadata)
	r.Delete("/{id}", h.DeleteMetadata)
}

// ListMetadataTypes lists every metadata type
func (h *MetadataHandler) ListMetadataTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.ListMetadataTypes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if types == nil {
		types = []*catalog.MetadataType{}
	}
	envelope.OK(w, r, http.StatusOK, types)
}

// GetMetadataType returns one metadata type
func (h *MetadataHandler) GetMetadataType(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	mt, err := h.service.GetMetadataType(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	envelope.OK(w, r, http.StatusOK, mt)
}

// CreateMetadataType creates a metadata type
func (h *MetadataHandler) CreateMetadataType(w http.ResponseWriter, r *http.Request) {
	var req MetadataTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	mt, err := h.service.CreateMetadataType(r.Context(), req.Name)
	if err != nil {
		slog.Warn("Failed to create metadata type", "name", req.Name, "err", err)
		writeError(w, r, err)
		return
	}
	envelope.OK(w, r, http.StatusCreated, mt)
}

// RenameMetadataType renames a metadata type
func (h *MetadataHandler) RenameMetadataType(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req MetadataTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	mt, err := h.service.RenameMetadataType(r.Context(), id, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	envelope.OK(w, r, http.StatusOK, mt)
}

// DeleteMetadataType deletes a type together with its tags
func (h *MetadataHandler) DeleteMetadataType(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.service.DeleteMetadataType(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	envelope.OK(w, r, http.StatusOK, nil)
}

// ListMetadata lists tags, optionally restricted to ?type=
func (h *MetadataHandler) ListMetadata(w http.ResponseWriter, r *http.Request) {
	var typeID *uuid.UUID
	if raw := r.URL.Query().Get("type"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, r, badRequest("type", "Must be a valid UUID.", err))
			return
		}
		typeID = &id
	}

	tags, err := h.service.ListMetadata(r.Context(), typeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tags == nil {
		tags = []*catalog.Metadata{}
	}
	envelope.OK(w, r, http.StatusOK, tags)
}

// GetMetadata returns one tag
func (h *MetadataHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.service.GetMetadata(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	envelope.OK(w, r, http.StatusOK, m)
}

// CreateMetadata creates a tag under an existing type
func (h *MetadataHandler) CreateMetadata(w http.ResponseWriter, r *http.Request) {
	var req MetadataRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	typeID, err := uuid.Parse(req.Type)
	if err != nil {
		writeError(w, r, badRequest("type", "Must be a valid UUID.", err))
		return
	}

	m, err := h.service.CreateMetadata(r.Context(), catalog.CreateMetadataRequest{TypeID: typeID, Name: req.Name})
	if err != nil {
		writeError(w, r, err)
		return
	}
	envelope.OK(w, r, http.StatusCreated, m)
}

// DeleteMetadata deletes a tag and unlinks it from content
func (h *MetadataHandler) DeleteMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.service.DeleteMetadata(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	envelope.OK(w, r, http.StatusOK, nil)
}

// decodeJSON decodes a JSON body, keeping size limit errors intact.
func decodeJSON(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return badRequest("non_field_errors", "Malformed JSON body.", err)
	}
	return nil
}
