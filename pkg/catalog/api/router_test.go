package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-catalog/pkg/catalog"
	"github.com/tendant/content-catalog/pkg/catalog/api"
	"github.com/tendant/content-catalog/pkg/catalog/repo/memory"
	memorystorage "github.com/tendant/content-catalog/pkg/catalog/storage/memory"
)

type envelopeBody struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

type testServer struct {
	router chi.Router
	svc    catalog.Service
	store  *memorystorage.Backend
	token  string
	user   *catalog.User
}

func setupRouter(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	store := memorystorage.New()
	svc, err := catalog.New(
		catalog.WithRepository(memory.New()),
		catalog.WithBlobStore("memory", store),
	)
	require.NoError(t, err)

	ja := jwtauth.New("HS256", []byte("test-secret"), nil)
	router := api.NewRouter(svc, api.Config{JWTAuth: ja, MaxUploadBytes: maxUpload})

	user, _, err := svc.RegisterUser(t.Context(), catalog.RegisterUserRequest{Username: "curator"})
	require.NoError(t, err)
	token, err := api.IssueToken(ja, user.ID, time.Hour)
	require.NoError(t, err)

	return &testServer{router: router, svc: svc, store: store, token: token, user: user}
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string, auth bool) (*httptest.ResponseRecorder, envelopeBody) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelopeBody
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (s *testServer) doJSON(t *testing.T, method, path string, payload any, auth bool) (*httptest.ResponseRecorder, envelopeBody) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	return s.do(t, method, path, body, "application/json", auth)
}

func multipartBody(t *testing.T, values map[string]string, fileName, fileBody string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		part, err := mw.CreateFormFile("content_file", fileName)
		require.NoError(t, err)
		_, err = part.Write([]byte(fileBody))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestRouter_CreateContentWithFile(t *testing.T) {
	s := setupRouter(t, 0)

	body, ct := multipartBody(t, map[string]string{
		"title":          "Harbor at dusk",
		"published_date": "1999-06-15",
	}, "harbor photo.jpg", "jpeg bytes")
	w, env := s.do(t, http.MethodPost, "/api/v1/contents", body, ct, true)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, "null", string(env.Error))

	var content map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &content))
	assert.Equal(t, "harbor_photo.jpg", content["file_name"])
	assert.Equal(t, float64(len("jpeg bytes")), content["filesize"])
	assert.Equal(t, "curator", content["created_by_name"])
	assert.Equal(t, "1999", content["published_year"])
	assert.Equal(t, "Review", content["status"])
	assert.Equal(t, true, content["active"])
	assert.Len(t, s.store.Keys(), 1)

	id := content["id"].(string)
	w, _ = s.do(t, http.MethodGet, "/api/v1/contents/"+id+"/file", nil, "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg bytes", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "harbor_photo.jpg")
}

func TestRouter_WritesRequireIdentity(t *testing.T) {
	s := setupRouter(t, 0)

	w, env := s.doJSON(t, http.MethodPost, "/api/v1/contents", map[string]string{"title": "anon"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "null", string(env.Data))
	assert.Contains(t, string(env.Error), "detail")

	w, _ = s.doJSON(t, http.MethodPost, "/api/v1/metadata-types", map[string]string{"name": "Subject"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/contents", nil, "", false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ValidationErrors(t *testing.T) {
	s := setupRouter(t, 0)

	t.Run("MissingTitle", func(t *testing.T) {
		w, env := s.doJSON(t, http.MethodPost, "/api/v1/contents", map[string]string{"description": "no title"}, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, env.Success)
		var fields map[string][]string
		require.NoError(t, json.Unmarshal(env.Error, &fields))
		assert.Contains(t, fields, "title")
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		w, env := s.doJSON(t, http.MethodPost, "/api/v1/contents", map[string]string{"title": "x", "status": "Pending"}, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, string(env.Error), "status")
	})

	t.Run("UnknownMetadata", func(t *testing.T) {
		w, env := s.doJSON(t, http.MethodPost, "/api/v1/contents", map[string]any{
			"title":    "x",
			"metadata": []string{uuid.NewString()},
		}, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, string(env.Error), "metadata")
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, "/api/v1/contents", strings.NewReader("{"), "application/json", true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, env.Success)
	})

	t.Run("NotFound", func(t *testing.T) {
		w, env := s.do(t, http.MethodGet, "/api/v1/contents/"+uuid.NewString(), nil, "", false)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"detail":"Not found."}`, string(env.Error))
	})
}

func TestRouter_PayloadTooLarge(t *testing.T) {
	s := setupRouter(t, 512)

	body, ct := multipartBody(t, map[string]string{"title": "big"}, "big.bin", strings.Repeat("x", 4096))
	w, env := s.do(t, http.MethodPost, "/api/v1/contents", body, ct, true)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.False(t, env.Success)
	assert.Empty(t, s.store.Keys())
}

func TestRouter_ConcurrentSameFileName(t *testing.T) {
	s := setupRouter(t, 0)

	const workers = 6
	codes := make([]int, workers)
	bodies := make([]envelopeBody, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, ct := multipartBody(t, map[string]string{"title": fmt.Sprintf("upload %d", i)}, "same.txt", fmt.Sprintf("payload %d", i))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/contents", body)
			req.Header.Set("Content-Type", ct)
			req.Header.Set("Authorization", "Bearer "+s.token)
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			codes[i] = w.Code
			_ = json.Unmarshal(w.Body.Bytes(), &bodies[i])
		}(i)
	}
	wg.Wait()

	created := 0
	for i, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusBadRequest:
			assert.False(t, bodies[i].Success)
			assert.Equal(t, "null", string(bodies[i].Data))
			assert.Contains(t, string(bodies[i].Error), "file_name")
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	assert.Equal(t, 1, created)
	assert.Len(t, s.store.Keys(), 1)
}

func TestRouter_UpdateContent(t *testing.T) {
	s := setupRouter(t, 0)

	body, ct := multipartBody(t, map[string]string{"title": "original", "published_date": "2001-02-03"}, "doc.txt", "first")
	w, env := s.do(t, http.MethodPost, "/api/v1/contents", body, ct, true)
	require.Equal(t, http.StatusCreated, w.Code)
	var created catalog.Content
	require.NoError(t, json.Unmarshal(env.Data, &created))

	path := "/api/v1/contents/" + created.ID.String()

	t.Run("MetadataOnlyKeepsFile", func(t *testing.T) {
		w, env := s.doJSON(t, http.MethodPatch, path, map[string]any{"title": "renamed", "status": "Approved"}, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var updated catalog.Content
		require.NoError(t, json.Unmarshal(env.Data, &updated))
		assert.Equal(t, "renamed", updated.Title)
		assert.Equal(t, catalog.StatusApproved, updated.Status)
		assert.Equal(t, created.Hash, updated.Hash)
		assert.Equal(t, created.FileName, updated.FileName)
		assert.Equal(t, *created.FileSize, *updated.FileSize)
	})

	t.Run("BlankStatusRejected", func(t *testing.T) {
		for _, status := range []any{nil, "", "  "} {
			w, env := s.doJSON(t, http.MethodPatch, path, map[string]any{"status": status, "title": "blanked"}, true)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.False(t, env.Success)
			assert.Equal(t, "null", string(env.Data))
			assert.Contains(t, string(env.Error), "status")
		}

		body, ct := multipartBody(t, map[string]string{"status": ""}, "", "")
		w, _ := s.do(t, http.MethodPatch, path, body, ct, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		current, err := s.svc.GetContent(t.Context(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, catalog.StatusApproved, current.Status)
		assert.Equal(t, "renamed", current.Title)
	})

	t.Run("ClearPublishedDate", func(t *testing.T) {
		w, env := s.doJSON(t, http.MethodPatch, path, map[string]any{"published_date": nil}, true)
		require.Equal(t, http.StatusOK, w.Code)
		var fields map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &fields))
		assert.Nil(t, fields["published_date"])
		assert.Nil(t, fields["published_year"])
	})

	t.Run("ReplaceFile", func(t *testing.T) {
		body, ct := multipartBody(t, nil, "doc-v2.txt", "second")
		w, env := s.do(t, http.MethodPatch, path, body, ct, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var updated catalog.Content
		require.NoError(t, json.Unmarshal(env.Data, &updated))
		assert.Equal(t, "doc-v2.txt", updated.FileName)
		assert.NotEqual(t, created.Hash, updated.Hash)
		assert.Len(t, s.store.Keys(), 1)
	})

	t.Run("Retire", func(t *testing.T) {
		w, env := s.do(t, http.MethodDelete, path, nil, "", true)
		require.Equal(t, http.StatusOK, w.Code)
		var retired catalog.Content
		require.NoError(t, json.Unmarshal(env.Data, &retired))
		assert.False(t, retired.Active)

		w, env = s.do(t, http.MethodGet, "/api/v1/contents?active=false", nil, "", false)
		require.Equal(t, http.StatusOK, w.Code)
		var list api.ContentListResponse
		require.NoError(t, json.Unmarshal(env.Data, &list))
		assert.Equal(t, int64(1), list.Count)
	})
}

func TestRouter_MetadataAndFilters(t *testing.T) {
	s := setupRouter(t, 0)

	w, env := s.doJSON(t, http.MethodPost, "/api/v1/metadata-types", map[string]string{"name": "Location"}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	var mt catalog.MetadataType
	require.NoError(t, json.Unmarshal(env.Data, &mt))

	w, env = s.doJSON(t, http.MethodPost, "/api/v1/metadata-types", map[string]string{"name": "Location"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, string(env.Error), "name")

	w, env = s.doJSON(t, http.MethodPost, "/api/v1/metadata", map[string]string{"name": "Boston", "type": mt.ID.String()}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	var boston catalog.Metadata
	require.NoError(t, json.Unmarshal(env.Data, &boston))
	assert.Equal(t, "Location", boston.TypeName)

	w, _ = s.doJSON(t, http.MethodPost, "/api/v1/contents", map[string]any{"title": "Tagged", "metadata": []string{boston.ID.String()}}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = s.doJSON(t, http.MethodPost, "/api/v1/contents", map[string]any{"title": "Plain"}, true)
	require.Equal(t, http.StatusCreated, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/v1/contents?metadata="+boston.ID.String(), nil, "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var list api.ContentListResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Results, 1)
	assert.Equal(t, "Tagged", list.Results[0].Title)
	require.Len(t, list.Results[0].MetadataInfo, 1)
	assert.Equal(t, "Boston", list.Results[0].MetadataInfo[0].Name)
	assert.Equal(t, "Location", list.Results[0].MetadataInfo[0].TypeName)

	w, env = s.do(t, http.MethodGet, "/api/v1/metadata?type="+mt.ID.String(), nil, "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var tags []catalog.Metadata
	require.NoError(t, json.Unmarshal(env.Data, &tags))
	assert.Len(t, tags, 1)

	w, env = s.do(t, http.MethodGet, "/api/v1/metadata/"+uuid.NewString(), nil, "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "null", string(env.Data))

	w, env = s.doJSON(t, http.MethodPost, "/api/v1/contents", map[string]any{"title": "Bad tag", "metadata": []string{uuid.NewString()}}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, string(env.Error), "metadata")

	w, _ = s.do(t, http.MethodGet, "/api/v1/contents?published_from=abc", nil, "", false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Users(t *testing.T) {
	s := setupRouter(t, 0)

	w, env := s.doJSON(t, http.MethodPost, "/api/v1/users", map[string]string{"username": "registrar"}, false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var registered api.UserResponse
	require.NoError(t, json.Unmarshal(env.Data, &registered))
	require.NotNil(t, registered.Profile)
	assert.Equal(t, int64(0), registered.Profile.ContentCount)

	w, _ = s.doJSON(t, http.MethodPost, "/api/v1/users", map[string]string{"username": "registrar"}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.doJSON(t, http.MethodPost, "/api/v1/contents", map[string]string{"title": "Mine"}, true)
	require.Equal(t, http.StatusCreated, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/v1/users/"+s.user.ID.String()+"/profile", nil, "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var profile catalog.Profile
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, int64(1), profile.ContentCount)
}
