package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rankowl/rank-tracker/internal/services"
	"github.com/stretchr/testify/assert"
)

type emptyDepthSource struct{}

func (emptyDepthSource) Depth(ctx context.Context) (int64, error) {
	return 0, nil
}

func newTestServer() *Server {
	tracker := services.NewCycleTracker(emptyDepthSource{}, nil)
	return NewServer(0, nil, nil, nil, nil, nil, tracker)
}

func Test_Api_NonNumericIdIsRejected(t *testing.T) {

	server := newTestServer()

	requests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPatch, "/keywords/abc/active", `{"active": true}`},
		{http.MethodPost, "/keywords/abc/collect", ""},
		{http.MethodPost, "/adslots/abc/collect", ""},
		{http.MethodGet, "/keywords/abc/ranks/current", ""},
		{http.MethodGet, "/keywords/abc/ranks/daily", ""},
	}

	for _, request := range requests {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(request.method, request.path, strings.NewReader(request.body))
		server.srv.Handler.ServeHTTP(recorder, req)

		assert.Equal(t, http.StatusBadRequest, recorder.Code,
			"%s %s", request.method, request.path)
		assert.Contains(t, recorder.Body.String(), "invalid id")
	}
}

func Test_Api_CycleStatusReportsTheRunningCycle(t *testing.T) {

	assert := assert.New(t)
	server := newTestServer()
	server.tracker.Begin(5)

	recorder := httptest.NewRecorder()
	server.srv.Handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/cycle/status", nil))

	assert.Equal(http.StatusOK, recorder.Code)

	var status services.CycleStatus
	assert.NoError(json.Unmarshal(recorder.Body.Bytes(), &status))
	assert.True(status.Running)
	assert.Equal(5, status.Expected)
	assert.Equal(0, status.Done)
}
