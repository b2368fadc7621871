package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	resp := Build(map[string]int{"x": 1}, http.StatusOK, true, nil)
	assert.Equal(t, http.StatusOK, resp.Status)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":{"x":1},"error":null}`, string(body))
}

func TestBuild_Defaults(t *testing.T) {
	body, err := json.Marshal(Build(nil, http.StatusOK, true, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":null,"error":null}`, string(body))
}

func TestStandardErrorAdapter(t *testing.T) {
	t.Run("recognized error keeps status", func(t *testing.T) {
		fields := map[string][]string{"file_name": {"content with this file name already exists."}}
		err := fmt.Errorf("create: %w", NewHTTPError(http.StatusBadRequest, fields, errors.New("dup")))

		resp, ok := StandardErrorAdapter(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, resp.Status)
		assert.False(t, resp.Success)
		assert.Nil(t, resp.Data)
		assert.Equal(t, fields, resp.Error)
	})

	t.Run("plain errors pass through", func(t *testing.T) {
		_, ok := StandardErrorAdapter(errors.New("disk on fire"))
		assert.False(t, ok)
	})

	t.Run("empty body passes through", func(t *testing.T) {
		_, ok := StandardErrorAdapter(NewHTTPError(http.StatusBadRequest, nil, nil))
		assert.False(t, ok)
	})
}

func TestOKAndFail(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	OK(w, r, http.StatusCreated, map[string]string{"id": "1"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"id":"1"},"error":null}`, w.Body.String())

	w = httptest.NewRecorder()
	Fail(w, r, NewHTTPError(http.StatusNotFound, Detail("Not found."), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"data":null,"error":{"detail":"Not found."}}`, w.Body.String())

	w = httptest.NewRecorder()
	Fail(w, r, errors.New("unexpected"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "unexpected")
}
