package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pathway-overlay/pkg/errors"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWriteAppError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{errors.New(errors.ErrCodeEntityNotFound, "diagram entity not found").WithDetail("anchor=9"), http.StatusNotFound, "OVL_005"},
		{errors.New(errors.ErrCodeNoDiagramContext, "no diagram loaded"), http.StatusConflict, "OVL_003"},
		{errors.Wrap(context.DeadlineExceeded, errors.ErrCodeTimeout, "timed out"), http.StatusGatewayTimeout, "COMMON_009"},
		{errors.New(errors.ErrCodeResourceLoad, "interactor resource request failed"), http.StatusBadGateway, "OVL_001"},
		{fmt.Errorf("raw failure"), http.StatusInternalServerError, "COMMON_001"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeAppError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, tc.code, decodeError(t, rec).Code)
	}

	rec := httptest.NewRecorder()
	writeAppError(rec, errors.New(errors.ErrCodeInternal, "secret detail leaked").WithDetail("dsn=..."))
	resp := decodeError(t, rec)
	assert.Equal(t, "internal server error", resp.Message)
	assert.Empty(t, resp.Detail)
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Pressed *bool `json:"pressed"`
	}
	present, err := decodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &dst)
	require.NoError(t, err)
	assert.False(t, present)
	assert.Nil(t, dst.Pressed)

	present, err = decodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"pressed":false}`)), &dst)
	require.NoError(t, err)
	assert.True(t, present)
	require.NotNil(t, dst.Pressed)
	assert.False(t, *dst.Pressed)

	_, err = decodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"pressed":`)), &dst)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestHealthHandler_Readiness(t *testing.T) {
	healthy := CheckFunc{Label: "loop", Fn: func(context.Context) error { return nil }}
	broken := CheckFunc{Label: "redis", Fn: func(context.Context) error { return fmt.Errorf("connection refused") }}

	rec := httptest.NewRecorder()
	NewHealthHandler("v1", healthy).Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	NewHealthHandler("v1", healthy, broken).Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "healthy", resp.Components["loop"].Status)
	assert.Equal(t, "connection refused", resp.Components["redis"].Error)

	rec = httptest.NewRecorder()
	NewHealthHandler("v1").Liveness(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"v1"`)
}
