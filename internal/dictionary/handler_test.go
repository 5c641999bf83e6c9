package dictionary

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/heyito/ito-sub003/internal/dto"
	"github.com/labstack/echo/v4"
)

func newTestHandler(t *testing.T) (*echo.Echo, *Store) {
	t.Helper()
	store, _ := newTestStore(t)
	e := echo.New()
	NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterRoutes(e.Group("/dictionary"))
	return e, store
}

func TestHandler_AddAndList(t *testing.T) {
	e, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/dictionary", strings.NewReader(`{"words":["Zod","Kubernetes"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.DictionaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Words) != 2 || resp.Words[0] != "Kubernetes" || resp.Words[1] != "Zod" {
		t.Errorf("expected sorted words, got %v", resp.Words)
	}
}

func TestHandler_AddRejectsInvalidWord(t *testing.T) {
	e, _ := newTestHandler(t)

	for _, body := range []string{`{"words":["ok","<script>"]}`, `{"words":[]}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/dictionary", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestHandler_RemoveAndEmptyList(t *testing.T) {
	e, store := newTestHandler(t)
	if err := store.Add(context.Background(), "Grafana"); err != nil {
		t.Fatalf("add: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/dictionary/Grafana", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/dictionary", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if body := strings.TrimSpace(rec.Body.String()); body != `{"words":[]}` {
		t.Errorf("expected empty list, got %s", body)
	}
}
