package json

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_SuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, http.StatusOK, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true,"data":{"hello":"world"}}`, rec.Body.String())
}

func TestWrite_EmptySliceStaysAnArray(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, http.StatusOK, []int{})

	assert.JSONEq(t, `{"ok":true,"data":[]}`, rec.Body.String())
}

func TestWriteError_FailureEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadGateway, "upstream unreachable")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"ok":false,"data":null,"error":{"message":"upstream unreachable"}}`, rec.Body.String())
}

func TestRead_RejectsUnknownFieldsAndEmptyBodies(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","bogus":1}`))
	require.Error(t, Read(req, &dst))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	err := Read(req, &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be empty")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, Read(req, &dst))
	assert.Equal(t, "a", dst.Name)
}
