// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/linesman/internal/models"
)

type fixedSummaries struct {
	summary *models.PassSummary
}

func (f *fixedSummaries) LastSummary() *models.PassSummary { return f.summary }

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := NewServer("127.0.0.1", 0, &fixedSummaries{}, nil)
	rec := doRequest(t, s, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
}

func TestReadyz_BeforeAndAfterFirstPass(t *testing.T) {
	src := &fixedSummaries{}
	s := NewServer("127.0.0.1", 0, src, nil)

	if rec := doRequest(t, s, http.MethodGet, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before first pass = %d", rec.Code)
	}

	src.summary = models.NewPassSummary("p1", false)
	if rec := doRequest(t, s, http.MethodGet, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("readyz after first pass = %d", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	summary := models.NewPassSummary("p1", false)
	summary.Linked = 3
	s := NewServer("127.0.0.1", 0, &fixedSummaries{summary: summary}, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got models.PassSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.PassID != "p1" || got.Linked != 3 {
		t.Errorf("status payload = %+v", got)
	}
}

func TestStatus_NoPassYet(t *testing.T) {
	s := NewServer("127.0.0.1", 0, &fixedSummaries{}, nil)
	if rec := doRequest(t, s, http.MethodGet, "/api/v1/status"); rec.Code != http.StatusNotFound {
		t.Errorf("status without a pass = %d", rec.Code)
	}
}

func TestRefresh(t *testing.T) {
	requested := false
	s := NewServer("127.0.0.1", 0, &fixedSummaries{}, func() { requested = true })

	rec := doRequest(t, s, http.MethodPost, "/api/v1/refresh")
	if rec.Code != http.StatusAccepted {
		t.Errorf("refresh = %d", rec.Code)
	}
	if !requested {
		t.Error("refresh handler did not signal the run loop")
	}
}

func TestRefresh_Unavailable(t *testing.T) {
	s := NewServer("127.0.0.1", 0, &fixedSummaries{}, nil)
	if rec := doRequest(t, s, http.MethodPost, "/api/v1/refresh"); rec.Code != http.StatusConflict {
		t.Errorf("refresh without requester = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer("127.0.0.1", 0, &fixedSummaries{}, nil)
	rec := doRequest(t, s, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Errorf("metrics = %d", rec.Code)
	}
}
