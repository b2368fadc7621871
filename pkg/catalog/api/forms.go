package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/content-catalog/pkg/catalog"
)

// fields abstracts multipart forms and JSON objects so create and update
// parse the same way. A key that is present with an empty or null value is
// reported as present.
type fields interface {
	value(key string) (string, bool)
	list(key string) ([]string, bool)
	file(key string) (*catalog.Upload, func(), error)
}

// contentFileField is the multipart part carrying the payload.
const contentFileField = "content_file"

type formFields struct {
	form *multipart.Form
}

func (f formFields) value(key string) (string, bool) {
	vs, ok := f.form.Value[key]
	if !ok || len(vs) == 0 {
		return "", ok
	}
	return vs[0], true
}

// list accepts repeated keys and comma-separated values.
func (f formFields) list(key string) ([]string, bool) {
	vs, ok := f.form.Value[key]
	if !ok {
		return nil, false
	}
	var out []string
	for _, v := range vs {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out, true
}

func (f formFields) file(key string) (*catalog.Upload, func(), error) {
	headers := f.form.File[key]
	if len(headers) == 0 {
		return nil, func() {}, nil
	}
	fh := headers[0]
	file, err := fh.Open()
	if err != nil {
		return nil, func() {}, fmt.Errorf("%w: %v", catalog.ErrUploadFailed, err)
	}
	upload := &catalog.Upload{
		FileName: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Reader:   file,
	}
	return upload, func() { file.Close() }, nil
}

type jsonFields map[string]json.RawMessage

func (f jsonFields) value(key string) (string, bool) {
	raw, ok := f[key]
	if !ok {
		return "", false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw), true
	}
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return strings.TrimSpace(string(raw)), true
	}
}

func (f jsonFields) list(key string) ([]string, bool) {
	raw, ok := f[key]
	if !ok {
		return nil, false
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, true
	}
	if v, _ := f.value(key); v != "" {
		return []string{v}, true
	}
	return nil, true
}

// JSON bodies never carry a payload.
func (f jsonFields) file(key string) (*catalog.Upload, func(), error) {
	return nil, func() {}, nil
}

// readFields parses the body as multipart or JSON depending on Content-Type.
func readFields(r *http.Request, maxMemory int64) (fields, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, err
			}
			return nil, badRequest("non_field_errors", "Malformed multipart body.", err)
		}
		return formFields{form: r.MultipartForm}, nil
	}

	body := jsonFields{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, badRequest("non_field_errors", "Malformed JSON body.", err)
	}
	return body, nil
}

func optString(f fields, key string) *string {
	v, ok := f.value(key)
	if !ok {
		return nil
	}
	return &v
}

func optBool(f fields, key string) (*bool, error) {
	v, ok := f.value(key)
	if !ok || v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, badRequest(key, "Must be a valid boolean.", err)
	}
	return &b, nil
}

// optDate returns (nil, true, nil) for a present but empty value.
func optDate(f fields, key string) (*catalog.Date, bool, error) {
	v, ok := f.value(key)
	if !ok {
		return nil, false, nil
	}
	if v == "" {
		return nil, true, nil
	}
	d, err := catalog.ParseDate(v)
	if err != nil {
		return nil, true, badRequest(key, "Date has wrong format. Use YYYY-MM-DD.", err)
	}
	return &d, true, nil
}

func optUUIDs(f fields, key string) (*[]uuid.UUID, error) {
	items, ok := f.list(key)
	if !ok {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		id, err := uuid.Parse(item)
		if err != nil {
			return nil, badRequest(key, fmt.Sprintf("%q is not a valid UUID.", item), err)
		}
		ids = append(ids, id)
	}
	return &ids, nil
}

// optStatus rejects a present but blank status instead of falling back to
// the default.
func optStatus(f fields) (*catalog.WorkflowStatus, error) {
	v, ok := f.value("status")
	if !ok {
		return nil, nil
	}
	if strings.TrimSpace(v) == "" {
		return nil, badRequest("status", "This field may not be blank.", catalog.ErrInvalidStatus)
	}
	status, err := catalog.ParseWorkflowStatus(v)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// contentFields is the parsed, still optional, form of a create or update.
type contentFields struct {
	req catalog.UpdateContentRequest
}

func parseContentFields(f fields) (*contentFields, error) {
	out := &contentFields{}
	req := &out.req

	req.Title = optString(f, "title")
	req.Description = optString(f, "description")
	req.CopyrightNotes = optString(f, "copyright_notes")
	req.RightsStatement = optString(f, "rights_statement")
	req.AdditionalNotes = optString(f, "additional_notes")
	req.OriginalSource = optString(f, "original_source")
	req.ModifiedBy = optString(f, "modified_by")
	req.ReviewedBy = optString(f, "reviewed_by")
	req.CopyrightBy = optString(f, "copyright_by")
	req.CopyrightSite = optString(f, "copyright_site")

	var err error
	if req.MetadataIDs, err = optUUIDs(f, "metadata"); err != nil {
		return nil, err
	}
	if req.Status, err = optStatus(f); err != nil {
		return nil, err
	}
	if req.CopyrightApproved, err = optBool(f, "copyright_approved"); err != nil {
		return nil, err
	}
	if req.Active, err = optBool(f, "active"); err != nil {
		return nil, err
	}
	if req.ModifiedOn, _, err = optDate(f, "modified_on"); err != nil {
		return nil, err
	}
	if req.ReviewedOn, _, err = optDate(f, "reviewed_on"); err != nil {
		return nil, err
	}
	if req.CopyrightOn, _, err = optDate(f, "copyright_on"); err != nil {
		return nil, err
	}
	var present bool
	if req.PublishedDate, present, err = optDate(f, "published_date"); err != nil {
		return nil, err
	}
	req.ClearPublishedDate = present && req.PublishedDate == nil

	return out, nil
}

// createRequest converts parsed fields into a create call.
func (c *contentFields) createRequest() catalog.CreateContentRequest {
	u := c.req
	req := catalog.CreateContentRequest{
		CopyrightApproved: u.CopyrightApproved,
		Active:            u.Active,
		ModifiedOn:        u.ModifiedOn,
		ReviewedOn:        u.ReviewedOn,
		CopyrightOn:       u.CopyrightOn,
		PublishedDate:     u.PublishedDate,
	}
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	req.Title = deref(u.Title)
	req.Description = deref(u.Description)
	req.CopyrightNotes = deref(u.CopyrightNotes)
	req.RightsStatement = deref(u.RightsStatement)
	req.AdditionalNotes = deref(u.AdditionalNotes)
	req.OriginalSource = deref(u.OriginalSource)
	req.ModifiedBy = deref(u.ModifiedBy)
	req.ReviewedBy = deref(u.ReviewedBy)
	req.CopyrightBy = deref(u.CopyrightBy)
	req.CopyrightSite = deref(u.CopyrightSite)
	if u.MetadataIDs != nil {
		req.MetadataIDs = *u.MetadataIDs
	}
	if u.Status != nil {
		req.Status = *u.Status
	}
	return req
}
