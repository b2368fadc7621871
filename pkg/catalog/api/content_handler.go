package api

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/content-catalog/pkg/catalog"
	"github.com/tendant/content-catalog/pkg/catalog/envelope"
)

// defaultMultipartMemory is how much of a multipart body is buffered in
// memory before spilling to temp files.
const defaultMultipartMemory = 32 << 20

// ContentResponse is the response body for a content record
type ContentResponse struct {
	*catalog.Content
	CreatedByName string                 `json:"created_by_name"`
	PublishedYear *string                `json:"published_year"`
	MetadataInfo  []catalog.MetadataInfo `json:"metadata_info"`
}

// ContentListResponse is the response body for a content listing
type ContentListResponse struct {
	Count   int64              `json:"count"`
	Results []*ContentResponse `json:"results"`
}

// ContentHandler handles HTTP requests for content
type ContentHandler struct {
	service   catalog.Service
	maxMemory int64
}

// NewContentHandler creates a new content handler
func NewContentHandler(service catalog.Service) *ContentHandler {
	return &ContentHandler{service: service, maxMemory: defaultMultipartMemory}
}

// Routes returns the read routes for content
func (h *ContentHandler) Routes(r chi.Router) {
	r.Get("/", h.ListContent)
	r.Get("/{id}", h.GetContent)
	r.Get("/{id}/file", h.GetContentFile)
}

// WriteRoutes returns the routes for content that need an identity
func (h *ContentHandler) WriteRoutes(r chi.Router) {
	r.Post("/", h.CreateContent)
	r.Patch("/{id}", h.UpdateContent)
	r.Delete("/{id}", h.RetireContent)
}

func (h *ContentHandler) toResponse(r *http.Request, content *catalog.Content) (*ContentResponse, error) {
	info, err := h.service.DescribeMetadata(r.Context(), content)
	if err != nil {
		return nil, err
	}
	if info == nil {
		info = []catalog.MetadataInfo{}
	}
	if content.MetadataIDs == nil {
		content.MetadataIDs = []uuid.UUID{}
	}
	return &ContentResponse{
		Content:       content,
		CreatedByName: content.CreatedByName(),
		PublishedYear: content.PublishedYear(),
		MetadataInfo:  info,
	}, nil
}

// ListContent lists content matching the query filters
func (h *ContentHandler) ListContent(w http.ResponseWriter, r *http.Request) {
	filters, err := parseContentFilters(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	count, err := h.service.CountContent(r.Context(), filters)
	if err != nil {
		slog.Error("Failed to count content", "err", err)
		writeError(w, r, err)
		return
	}

	contents, err := h.service.ListContent(r.Context(), filters)
	if err != nil {
		slog.Error("Failed to list content", "err", err)
		writeError(w, r, err)
		return
	}

	results := make([]*ContentResponse, 0, len(contents))
	for _, content := range contents {
		resp, err := h.toResponse(r, content)
		if err != nil {
			writeError(w, r, err)
			return
		}
		results = append(results, resp)
	}

	envelope.OK(w, r, http.StatusOK, ContentListResponse{Count: count, Results: results})
}

// CreateContent creates content from a multipart form or a JSON body
func (h *ContentHandler) CreateContent(w http.ResponseWriter, r *http.Request) {
	f, err := readFields(r, h.maxMemory)
	if err != nil {
		writeError(w, r, err)
		return
	}

	parsed, err := parseContentFields(f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	upload, closeFile, err := f.file(contentFileField)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer closeFile()

	req := parsed.createRequest()
	req.File = upload
	if user, ok := UserFromContext(r.Context()); ok {
		req.CreatedBy = &user.ID
	}

	content, err := h.service.CreateContent(r.Context(), req)
	if err != nil {
		slog.Warn("Failed to create content", "err", err)
		writeError(w, r, err)
		return
	}

	resp, err := h.toResponse(r, content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	envelope.OK(w, r, http.StatusCreated, resp)
}

// GetContent returns one content record
func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	content, err := h.service.GetContent(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.toResponse(r, content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	envelope.OK(w, r, http.StatusOK, resp)
}

// UpdateContent applies a partial update, optionally replacing the payload
func (h *ContentHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	f, err := readFields(r, h.maxMemory)
	if err != nil {
		writeError(w, r, err)
		return
	}

	parsed, err := parseContentFields(f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	upload, closeFile, err := f.file(contentFileField)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer closeFile()

	req := parsed.req
	req.ID = id
	req.File = upload

	content, err := h.service.UpdateContent(r.Context(), req)
	if err != nil {
		slog.Warn("Failed to update content", "content_id", id, "err", err)
		writeError(w, r, err)
		return
	}

	resp, err := h.toResponse(r, content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	envelope.OK(w, r, http.StatusOK, resp)
}

// RetireContent marks content inactive
func (h *ContentHandler) RetireContent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	content, err := h.service.RetireContent(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.toResponse(r, content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	envelope.OK(w, r, http.StatusOK, resp)
}

// GetContentFile redirects to a signed URL when the backend offers one and
// streams the payload otherwise.
func (h *ContentHandler) GetContentFile(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	url, err := h.service.GetContentFileURL(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if url != "" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	file, err := h.service.OpenContentFile(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Reader.Close()

	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	if file.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	}
	if file.FileName != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.FileName}))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, file.Reader); err != nil {
		slog.Error("Failed to stream content file", "content_id", id, "err", err)
	}
}

func parseID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, envelope.NewHTTPError(http.StatusNotFound, envelope.Detail("Not found."), err)
	}
	return id, nil
}

// parseContentFilters reads list filters from the query string. Repeated
// and comma-separated values are both accepted for status and metadata.
func parseContentFilters(r *http.Request) (catalog.ContentFilters, error) {
	q := r.URL.Query()
	filters := catalog.ContentFilters{Search: strings.TrimSpace(q.Get("search"))}

	for _, raw := range splitQuery(q["status"]) {
		status, err := catalog.ParseWorkflowStatus(raw)
		if err != nil {
			return filters, err
		}
		filters.Statuses = append(filters.Statuses, status)
	}

	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return filters, badRequest("active", "Must be a valid boolean.", err)
		}
		filters.Active = &active
	}

	if raw := q.Get("created_by"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filters, badRequest("created_by", "Must be a valid UUID.", err)
		}
		filters.CreatedBy = &id
	}

	for _, raw := range splitQuery(q["metadata"]) {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filters, badRequest("metadata", fmt.Sprintf("%q is not a valid UUID.", raw), err)
		}
		filters.MetadataIDs = append(filters.MetadataIDs, id)
	}

	for key, dst := range map[string]**int{"published_from": &filters.PublishedFrom, "published_to": &filters.PublishedTo} {
		if raw := q.Get(key); raw != "" {
			year, err := catalog.ParseYear(raw)
			if err != nil {
				return filters, badRequest(key, "Must be a 4-digit year.", err)
			}
			*dst = year
		}
	}

	for key, dst := range map[string]*int{"limit": &filters.Limit, "offset": &filters.Offset} {
		if raw := q.Get(key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return filters, badRequest(key, "Must be a non-negative integer.", err)
			}
			*dst = n
		}
	}

	return filters, nil
}

func splitQuery(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
