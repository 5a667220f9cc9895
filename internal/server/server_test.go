package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"petmatch/internal/domain"
)

type fakeRecommender struct {
	similar   map[int64][]int64
	indexed   map[int64]bool
	lastK     int
	failWith  error
	refreshed *domain.UpdateResult
}

func (f *fakeRecommender) Similar(ctx context.Context, id int64, k int) ([]int64, error) {
	f.lastK = k
	if f.failWith != nil {
		return nil, f.failWith
	}
	ids, ok := f.similar[id]
	if !ok {
		return nil, fmt.Errorf("animal %d: %w", id, domain.ErrAnimalNotFound)
	}
	if !f.indexed[id] {
		return nil, fmt.Errorf("animal %d: %w", id, domain.ErrIndexMissing)
	}
	return ids, nil
}

func (f *fakeRecommender) Refresh(ctx context.Context) (*domain.UpdateResult, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.refreshed, nil
}

func newTestServer(rec Recommender) *httptest.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httptest.NewServer(New(rec, NewHealth("test"), logger).Handler())
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

func TestSimilar_OK(t *testing.T) {
	rec := &fakeRecommender{
		similar: map[int64][]int64{1: {1, 3, 2}},
		indexed: map[int64]bool{1: true},
	}
	srv := newTestServer(rec)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/animals/1/similar?k=3")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[domain.SimilarResult](t, resp)
	if body.AnimalID != 1 || !slices.Equal(body.SimilarIDs, []int64{1, 3, 2}) {
		t.Errorf("body = %+v", body)
	}
	if rec.lastK != 3 {
		t.Errorf("k passed = %d, want 3", rec.lastK)
	}
}

func TestSimilar_DefaultK(t *testing.T) {
	rec := &fakeRecommender{
		similar: map[int64][]int64{1: {1}},
		indexed: map[int64]bool{1: true},
	}
	srv := newTestServer(rec)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/animals/1/similar")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if rec.lastK != 0 {
		t.Errorf("k passed = %d, want 0 so the use case applies its default", rec.lastK)
	}
}

func TestSimilar_Errors(t *testing.T) {
	rec := &fakeRecommender{
		similar: map[int64][]int64{3: {3}},
		indexed: map[int64]bool{},
	}
	srv := newTestServer(rec)
	defer srv.Close()

	tests := []struct {
		name   string
		path   string
		status int
		code   string
		detail string
	}{
		{"animal not found", "/api/animals/99/similar", http.StatusNotFound, "animal_not_found", "Animal not found"},
		{"index missing", "/api/animals/3/similar", http.StatusNotFound, "index_missing", "Index not found for the given animal ID"},
		{"bad id", "/api/animals/abc/similar", http.StatusBadRequest, "invalid_id", ""},
		{"bad k", "/api/animals/3/similar?k=x", http.StatusBadRequest, "invalid_k", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			body := decode[ErrorResponse](t, resp)
			if body.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Code, tt.code)
			}
			if tt.detail != "" && body.Detail != tt.detail {
				t.Errorf("detail = %q, want %q", body.Detail, tt.detail)
			}
		})
	}
}

func TestSimilar_InternalError(t *testing.T) {
	srv := newTestServer(&fakeRecommender{failWith: errors.New("qdrant search: unavailable")})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/animals/1/similar")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	if body := decode[ErrorResponse](t, resp); body.Code != "internal" {
		t.Errorf("code = %q, want internal", body.Code)
	}
}

func TestRefresh(t *testing.T) {
	rec := &fakeRecommender{refreshed: &domain.UpdateResult{Added: []int64{4, 5}, Indexed: 5}}
	srv := newTestServer(rec)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/index/refresh", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[RefreshResponse](t, resp)
	if body.Added != 2 || body.Indexed != 5 {
		t.Errorf("body = %+v", body)
	}
}

func TestRefresh_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeRecommender{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/index/refresh")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
