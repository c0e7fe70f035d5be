package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/Ichiritzu/MeltingICE/internal/adapter/repository"
	"github.com/Ichiritzu/MeltingICE/internal/core/ports"
)

// fakeAdminRepo is an in-memory ports.AdminRepository.
type fakeAdminRepo struct {
	email    string
	password string
	sessions map[string]*ports.AdminSession
}

func newFakeAdminRepo() *fakeAdminRepo {
	return &fakeAdminRepo{
		email:    "mod@example.org",
		password: "correct-horse",
		sessions: make(map[string]*ports.AdminSession),
	}
}

func (f *fakeAdminRepo) Authenticate(ctx context.Context, email, password string) (*ports.AdminSession, error) {
	if email != f.email || password != f.password {
		return nil, repository.ErrInvalidCredentials
	}
	session := &ports.AdminSession{
		AdminID:   1,
		Email:     email,
		Name:      "Moderator",
		Token:     "tok-123",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	f.sessions[session.Token] = session
	return session, nil
}

func (f *fakeAdminRepo) SessionByToken(ctx context.Context, token string) (*ports.AdminSession, error) {
	s, ok := f.sessions[token]
	if !ok {
		return nil, repository.ErrInvalidCredentials
	}
	return s, nil
}

func (f *fakeAdminRepo) DeleteSession(ctx context.Context, token string) error {
	delete(f.sessions, token)
	return nil
}

func (f *fakeAdminRepo) PurgeExpiredSessions(ctx context.Context) (int64, error) { return 0, nil }

func newAdminRouter(repo *fakeReportRepo, admins *fakeAdminRepo) *mux.Router {
	h := NewAdminHandler(repo, admins)
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/admin/login", h.Login).Methods("POST")

	protected := r.PathPrefix("/api/v1/admin").Subrouter()
	protected.Use(h.RequireAdmin)
	protected.HandleFunc("/logout", h.Logout).Methods("POST")
	protected.HandleFunc("/reports", h.ListReports).Methods("GET")
	protected.HandleFunc("/reports/{id}/flags", h.ReportFlags).Methods("GET")
	protected.HandleFunc("/moderate", h.Moderate).Methods("POST")
	return r
}

func TestAdminLogin(t *testing.T) {
	router := newAdminRouter(newFakeRepo(), newFakeAdminRepo())

	rec := postJSON(t, router, "/api/v1/admin/login", map[string]string{
		"email": "mod@example.org", "password": "correct-horse",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "tok-123") {
		t.Errorf("expected session token in body: %s", rec.Body.String())
	}
}

func TestAdminLoginRejectsBadCredentials(t *testing.T) {
	router := newAdminRouter(newFakeRepo(), newFakeAdminRepo())

	tests := []struct {
		name    string
		payload map[string]string
		want    int
	}{
		{"wrong password", map[string]string{"email": "mod@example.org", "password": "nope"}, http.StatusUnauthorized},
		{"unknown email", map[string]string{"email": "ghost@example.org", "password": "correct-horse"}, http.StatusUnauthorized},
		{"missing fields", map[string]string{"email": "mod@example.org"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, router, "/api/v1/admin/login", tt.payload)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			// The error body must not reveal whether the email exists.
			if tt.want == http.StatusUnauthorized && !strings.Contains(rec.Body.String(), "invalid credentials") {
				t.Errorf("expected generic error, got: %s", rec.Body.String())
			}
		})
	}
}

func TestAdminEndpointsRequireAuth(t *testing.T) {
	router := newAdminRouter(newFakeRepo(), newFakeAdminRepo())

	req := httptest.NewRequest("GET", "/api/v1/admin/reports", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/admin/reports", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bogus token, got %d", rec.Code)
	}
}

func login(t *testing.T, router *mux.Router) string {
	t.Helper()
	rec := postJSON(t, router, "/api/v1/admin/login", map[string]string{
		"email": "mod@example.org", "password": "correct-horse",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	return "tok-123"
}

func adminRequest(t *testing.T, router *mux.Router, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, payload interface{}) io.Reader {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return bytes.NewReader(raw)
}

func TestAdminListIncludesHidden(t *testing.T) {
	repo := newFakeRepo()
	seedReport(repo, "r-1")
	hidden := seedReport(repo, "r-2")
	hidden.IsHidden = true
	router := newAdminRouter(repo, newFakeAdminRepo())
	token := login(t, router)

	rec := adminRequest(t, router, "GET", "/api/v1/admin/reports", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"total":2`) {
		t.Errorf("expected hidden reports included: %s", rec.Body.String())
	}
}

func TestModerate(t *testing.T) {
	tests := []struct {
		name   string
		action string
		check  func(t *testing.T, repo *fakeReportRepo, body string)
	}{
		{
			name:   "hide",
			action: "hide",
			check: func(t *testing.T, repo *fakeReportRepo, body string) {
				if !repo.reports["r-1"].IsHidden {
					t.Error("report should be hidden")
				}
			},
		},
		{
			name:   "verify recomputes confidence",
			action: "verify",
			check: func(t *testing.T, repo *fakeReportRepo, body string) {
				if !repo.reports["r-1"].IsVerified {
					t.Error("report should be verified")
				}
				if !strings.Contains(body, `"confidence"`) {
					t.Errorf("expected confidence in response: %s", body)
				}
			},
		},
		{
			name:   "resolve_flags",
			action: "resolve_flags",
			check: func(t *testing.T, repo *fakeReportRepo, body string) {
				if repo.reports["r-1"].FlagCount != 0 {
					t.Error("flags should be cleared")
				}
			},
		},
		{
			name:   "delete",
			action: "delete",
			check: func(t *testing.T, repo *fakeReportRepo, body string) {
				if _, ok := repo.reports["r-1"]; ok {
					t.Error("report should be deleted")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			r := seedReport(repo, "r-1")
			r.FlagCount = 2
			router := newAdminRouter(repo, newFakeAdminRepo())
			token := login(t, router)

			req := httptest.NewRequest("POST", "/api/v1/admin/moderate", jsonBody(t, map[string]string{"report_id": "r-1", "action": tt.action}))
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			tt.check(t, repo, rec.Body.String())
		})
	}
}

func TestModerateValidation(t *testing.T) {
	repo := newFakeRepo()
	seedReport(repo, "r-1")
	router := newAdminRouter(repo, newFakeAdminRepo())
	token := login(t, router)

	tests := []struct {
		name    string
		payload map[string]string
		want    int
	}{
		{"unknown action", map[string]string{"report_id": "r-1", "action": "obliterate"}, http.StatusBadRequest},
		{"missing report_id", map[string]string{"action": "hide"}, http.StatusBadRequest},
		{"missing report", map[string]string{"report_id": "r-404", "action": "hide"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/admin/moderate", jsonBody(t, tt.payload))
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	repo := newFakeRepo()
	admins := newFakeAdminRepo()
	router := newAdminRouter(repo, admins)
	token := login(t, router)

	req := httptest.NewRequest("POST", "/api/v1/admin/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout failed: %d", rec.Code)
	}

	rec = adminRequest(t, router, "GET", "/api/v1/admin/reports", token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", rec.Code)
	}
}
