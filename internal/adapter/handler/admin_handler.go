package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"github.com/Ichiritzu/MeltingICE/internal/adapter/metrics"
	"github.com/Ichiritzu/MeltingICE/internal/adapter/repository"
	"github.com/Ichiritzu/MeltingICE/internal/core/ports"
)

type contextKey string

const adminContextKey contextKey = "admin"

type AdminHandler struct {
	reports ports.ReportRepository
	admins  ports.AdminRepository
}

func NewAdminHandler(reports ports.ReportRepository, admins ports.AdminRepository) *AdminHandler {
	return &AdminHandler{reports: reports, admins: admins}
}

// Login - POST /api/v1/admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	session, err := h.admins.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Printf("❌ Admin login failed: %v", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	log.Printf("✅ Admin %s logged in", session.Email)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      session.Token,
		"expires_at": session.ExpiresAt.Format(time.RFC3339),
		"name":       session.Name,
		"email":      session.Email,
	})
}

// Logout - POST /api/v1/admin/logout
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.admins.DeleteSession(ctx, token); err != nil {
		log.Printf("⚠️  Failed to delete session: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// ListReports - GET /api/v1/admin/reports - includes hidden reports
func (h *AdminHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	filter := ports.ReportFilter{
		City:          r.URL.Query().Get("city"),
		State:         r.URL.Query().Get("state"),
		IncludeHidden: true,
		Limit:         defaultListLimit,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	reports, total, err := h.reports.List(ctx, filter)
	if err != nil {
		log.Printf("❌ Failed to list reports for moderation: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	items := make([]map[string]interface{}, len(reports))
	for i, rep := range reports {
		items[i] = reportJSON(&rep)
		items[i]["is_hidden"] = rep.IsHidden
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": items,
		"total":   total,
	})
}

// ReportFlags - GET /api/v1/admin/reports/{id}/flags
func (h *AdminHandler) ReportFlags(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	flags, err := h.reports.FlagsForReport(ctx, id)
	if err != nil {
		log.Printf("❌ Failed to load flags for %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to load flags")
		return
	}

	items := make([]map[string]interface{}, len(flags))
	for i, f := range flags {
		items[i] = map[string]interface{}{
			"id":          f.ID,
			"reason":      string(f.Reason),
			"details":     f.Details,
			"is_resolved": f.IsResolved,
			"created_at":  f.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"report_id": id,
		"flags":     items,
	})
}

// Moderate - POST /api/v1/admin/moderate
func (h *AdminHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReportID string `json:"report_id"`
		Action   string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.ReportID == "" {
		writeError(w, http.StatusBadRequest, "report_id is required")
		return
	}

	moderator := adminEmail(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	response := map[string]interface{}{
		"report_id": req.ReportID,
		"action":    req.Action,
	}

	var err error
	switch req.Action {
	case "hide":
		err = h.reports.SetHidden(ctx, req.ReportID, true, moderator)
	case "unhide":
		err = h.reports.SetHidden(ctx, req.ReportID, false, moderator)
	case "verify":
		var confidence int
		confidence, err = h.reports.SetVerified(ctx, req.ReportID, true, moderator)
		response["confidence"] = confidence
	case "unverify":
		var confidence int
		confidence, err = h.reports.SetVerified(ctx, req.ReportID, false, moderator)
		response["confidence"] = confidence
	case "resolve_flags":
		var confidence int
		confidence, err = h.reports.ResolveFlags(ctx, req.ReportID, moderator)
		response["confidence"] = confidence
	case "delete":
		err = h.reports.Delete(ctx, req.ReportID)
	default:
		writeError(w, http.StatusBadRequest, "invalid action (use hide, unhide, verify, unverify, resolve_flags, or delete)")
		return
	}

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		log.Printf("❌ Moderation %s on %s failed: %v", req.Action, req.ReportID, err)
		writeError(w, http.StatusInternalServerError, "moderation action failed")
		return
	}

	metrics.RecordModeration(req.Action)
	if c, ok := response["confidence"].(int); ok {
		metrics.RecordConfidence(c)
	}
	log.Printf("✅ Moderation: %s %s by %s", req.Action, req.ReportID, moderator)

	writeJSON(w, http.StatusOK, response)
}

// RequireAdmin validates the bearer token against the session store and
// attaches the moderator's email to the request context.
func (h *AdminHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		session, err := h.admins.SessionByToken(ctx, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminContextKey, session.Email)))
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func adminEmail(ctx context.Context) string {
	if email, ok := ctx.Value(adminContextKey).(string); ok {
		return email
	}
	return "unknown"
}
