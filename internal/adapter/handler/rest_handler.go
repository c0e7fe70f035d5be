package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"github.com/Ichiritzu/MeltingICE/internal/adapter/exporter"
	"github.com/Ichiritzu/MeltingICE/internal/adapter/identity"
	"github.com/Ichiritzu/MeltingICE/internal/adapter/metrics"
	"github.com/Ichiritzu/MeltingICE/internal/adapter/repository"
	"github.com/Ichiritzu/MeltingICE/internal/adapter/uploads"
	"github.com/Ichiritzu/MeltingICE/internal/core/domain"
	"github.com/Ichiritzu/MeltingICE/internal/core/ports"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

type RestHandler struct {
	repo            ports.ReportRepository
	limiter         ports.RateLimiter
	notifier        ports.Notifier
	fingerprinter   *identity.Fingerprinter
	geojsonExporter *exporter.GeoJSONExporter
	uploadStore     *uploads.Store
}

func NewRestHandler(repo ports.ReportRepository, limiter ports.RateLimiter, notifier ports.Notifier, fingerprinter *identity.Fingerprinter, uploadStore *uploads.Store) *RestHandler {
	return &RestHandler{
		repo:            repo,
		limiter:         limiter,
		notifier:        notifier,
		fingerprinter:   fingerprinter,
		geojsonExporter: exporter.NewGeoJSONExporter(repo),
		uploadStore:     uploadStore,
	}
}

// Health check endpoint
func (h *RestHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "meltingice-api",
	}
	writeJSON(w, http.StatusOK, response)
}

// CreateReportRequest is the sanitized payload a client submits. The
// server never trusts it: every field is pushed back through the same
// validation and redaction before anything is stored.
type CreateReportRequest struct {
	Lat             *float64 `json:"lat"`
	Lng             *float64 `json:"lng"`
	EventTime       string   `json:"event_time"`
	City            string   `json:"city"`
	State           string   `json:"state"`
	Tag             string   `json:"tag"`
	Summary         string   `json:"summary"`
	EvidencePresent bool     `json:"evidence_present"`
	ImageURL        string   `json:"image_url"`
}

// CreateReport - POST /api/v1/reports
func (h *RestHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	fingerprint := h.fingerprinter.FromRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	allowed, err := h.limiter.Allow(ctx, fingerprint)
	if err != nil {
		log.Printf("⚠️  Rate limiter check failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create report")
		return
	}
	if !allowed {
		metrics.RecordRateLimited()
		writeError(w, http.StatusTooManyRequests, "too many reports, try again later")
		return
	}

	var req CreateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	report, reject, err := buildReport(req)
	if reject != "" {
		metrics.RecordRejection(string(reject))
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  rejectionMessage(reject),
			"reason": string(reject),
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.Create(ctx, report); err != nil {
		log.Printf("❌ Failed to store report: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create report")
		return
	}

	metrics.RecordReportCreated(string(report.Tag), report.Confidence)
	log.Printf("✅ Report %s created (tag: %s, confidence: %d)", report.ID, report.Tag, report.Confidence)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         report.ID,
		"confidence": report.Confidence,
		"created_at": report.CreatedAt.Format(time.RFC3339),
	})
}

// buildReport re-runs the privacy checks on a submitted payload and
// assembles the storable record. A non-empty Rejection means a policy
// precondition failed; err means the payload is malformed. Coordinates
// are re-rounded but not re-jittered, so a well-behaved client's
// payload passes through unchanged.
func buildReport(req CreateReportRequest) (*domain.Report, domain.Rejection, error) {
	if req.Lat == nil || req.Lng == nil {
		return nil, domain.RejectMissingLocation, nil
	}
	if *req.Lat < -90 || *req.Lat > 90 || *req.Lng < -180 || *req.Lng > 180 {
		return nil, "", errors.New("coordinates out of range")
	}

	summary := strings.TrimSpace(req.Summary)
	if len(summary) < domain.MinDescriptionLength {
		return nil, domain.RejectDescriptionTooShort, nil
	}
	if domain.ContainsUnsafeContent(summary) {
		return nil, domain.RejectUnsafeContent, nil
	}

	eventTime, err := time.Parse(time.RFC3339, req.EventTime)
	if err != nil {
		return nil, "", errors.New("invalid event_time, expected RFC3339")
	}

	tag := domain.ReportTag(req.Tag)
	if !domain.ValidTag(tag) {
		tag = domain.TagUnknown
	}

	lat, lng := domain.RoundCoordinates(*req.Lat, *req.Lng)

	report := &domain.Report{
		ID:              uuid.New().String(),
		EventTimeBucket: domain.BucketTime(eventTime),
		LatApprox:       lat,
		LngApprox:       lng,
		City:            domain.SanitizeText(req.City, 100),
		State:           domain.SanitizeText(req.State, 50),
		Tag:             tag,
		Summary:         domain.SanitizeText(summary, domain.MaxSummaryLength),
		EvidencePresent: req.EvidencePresent,
		ImageURL:        req.ImageURL,
		CreatedAt:       time.Now().UTC(),
	}
	report.Confidence = domain.CalculateConfidence(report.Counters())
	return report, "", nil
}

func rejectionMessage(r domain.Rejection) string {
	switch r {
	case domain.RejectMissingLocation:
		return "location is required"
	case domain.RejectDescriptionTooShort:
		return "description is too short"
	case domain.RejectUnsafeContent:
		return "description contains content that cannot be published"
	}
	return "report rejected"
}

// ListReports - GET /api/v1/reports
func (h *RestHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	filter := ports.ReportFilter{
		City:   r.URL.Query().Get("city"),
		State:  r.URL.Query().Get("state"),
		Limit:  defaultListLimit,
		Offset: 0,
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid 'limit' parameter")
			return
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid 'offset' parameter")
			return
		}
		filter.Offset = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	reports, total, err := h.repo.List(ctx, filter)
	if err != nil {
		log.Printf("❌ Failed to list reports: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	// Attach the caller's own votes so the UI can highlight them.
	ids := make([]string, len(reports))
	for i, rep := range reports {
		ids[i] = rep.ID
	}
	votes := map[string]domain.VoteType{}
	if len(ids) > 0 {
		votes, err = h.repo.UserVotes(ctx, h.fingerprinter.FromRequest(r), ids)
		if err != nil {
			log.Printf("⚠️  Failed to load user votes: %v", err)
			votes = map[string]domain.VoteType{}
		}
	}

	items := make([]map[string]interface{}, len(reports))
	for i, rep := range reports {
		items[i] = reportJSON(&rep)
		if v, ok := votes[rep.ID]; ok {
			items[i]["user_vote"] = string(v)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": items,
		"pagination": map[string]interface{}{
			"total":    total,
			"limit":    filter.Limit,
			"offset":   filter.Offset,
			"has_more": filter.Offset+len(reports) < total,
		},
	})
}

// GetReport - GET /api/v1/reports/{id}
func (h *RestHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report, err := h.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		log.Printf("❌ Failed to fetch report %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch report")
		return
	}
	if report.IsHidden {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}

	payload := reportJSON(report)
	votes, err := h.repo.UserVotes(ctx, h.fingerprinter.FromRequest(r), []string{id})
	if err == nil {
		if v, ok := votes[id]; ok {
			payload["user_vote"] = string(v)
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

// VoteReport - POST /api/v1/reports/{id}/vote
func (h *RestHandler) VoteReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		VoteType string `json:"vote_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	vote := domain.VoteType(req.VoteType)
	if vote != domain.VoteUp && vote != domain.VoteDown {
		writeError(w, http.StatusBadRequest, "vote_type must be 'up' or 'down'")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	result, err := h.repo.Vote(ctx, id, h.fingerprinter.FromRequest(r), vote)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		log.Printf("❌ Failed to record vote on %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to record vote")
		return
	}

	metrics.RecordVote(string(result.Action), string(result.VoteType))
	metrics.RecordConfidence(result.Confidence)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"action":     string(result.Action),
		"vote_type":  string(result.VoteType),
		"confidence": result.Confidence,
	})
}

// FlagReport - POST /api/v1/reports/{id}/flag
func (h *RestHandler) FlagReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Reason  string `json:"reason"`
		Details string `json:"details"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	reason := domain.FlagReason(req.Reason)
	if !domain.ValidFlagReason(reason) {
		writeError(w, http.StatusBadRequest, "invalid flag reason")
		return
	}
	details := domain.SanitizeText(req.Details, 500)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	result, err := h.repo.Flag(ctx, id, h.fingerprinter.FromRequest(r), reason, details)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			writeError(w, http.StatusNotFound, "report not found")
		case errors.Is(err, repository.ErrAlreadyFlagged):
			writeError(w, http.StatusConflict, "you have already flagged this report")
		default:
			log.Printf("❌ Failed to record flag on %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to record flag")
		}
		return
	}

	metrics.RecordFlag(string(reason))
	metrics.RecordConfidence(result.Confidence)

	if result.AutoHidden {
		metrics.RecordAutoHide()
		log.Printf("⚠️  Report %s auto-hidden after %d flags", id, result.FlagCount)
		h.notifyAutoHide(ctx, id, result)
	} else if h.notifier != nil {
		if err := h.notifier.NotifyFlagged(ports.FlagAlert{
			ReportID:  id,
			Reason:    string(reason),
			Details:   details,
			FlagCount: result.FlagCount,
		}); err != nil {
			log.Printf("⚠️  Failed to send flag notification: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"flag_count":  result.FlagCount,
		"confidence":  result.Confidence,
		"auto_hidden": result.AutoHidden,
	})
}

func (h *RestHandler) notifyAutoHide(ctx context.Context, id string, result *ports.FlagResult) {
	if h.notifier == nil {
		return
	}
	alert := ports.AutoHideAlert{
		ReportID:   id,
		FlagCount:  result.FlagCount,
		Confidence: result.Confidence,
	}
	if report, err := h.repo.FindByID(ctx, id); err == nil {
		alert.Tag = string(report.Tag)
		alert.Summary = report.Summary
	}
	if err := h.notifier.NotifyAutoHidden(alert); err != nil {
		log.Printf("⚠️  Failed to send auto-hide notification: %v", err)
	}
}

// GetReportFeed - GET /api/v1/feed - export recent reports for maps
func (h *RestHandler) GetReportFeed(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	since := r.URL.Query().Get("since") // e.g., "24h", "168h"

	var sinceTime time.Time
	if since != "" {
		duration, err := time.ParseDuration(since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'since' parameter (use format like '24h')")
			return
		}
		sinceTime = time.Now().Add(-duration)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	switch format {
	case "geojson", "":
		data, err := h.geojsonExporter.Export(ctx, sinceTime)
		if err != nil {
			log.Printf("❌ Failed to export GeoJSON feed: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to export feed")
			return
		}
		w.Header().Set("Content-Type", "application/geo+json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(data)); err != nil {
			log.Printf("Error writing GeoJSON feed response: %v", err)
		}

	default:
		writeError(w, http.StatusBadRequest, "unsupported format (use 'geojson')")
	}
}

// UploadImage - POST /api/v1/uploads/image
func (h *RestHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.uploadStore == nil {
		writeError(w, http.StatusNotImplemented, "uploads are not enabled")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	allowed, err := h.limiter.Allow(ctx, h.fingerprinter.FromRequest(r))
	if err != nil {
		log.Printf("⚠️  Rate limiter check failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store image")
		return
	}
	if !allowed {
		metrics.RecordRateLimited()
		writeError(w, http.StatusTooManyRequests, "too many uploads, try again later")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, uploads.MaxUploadBytes)
	if err := r.ParseMultipartForm(uploads.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing 'image' file field")
		return
	}
	defer file.Close()

	url, err := h.uploadStore.Save(file)
	if err != nil {
		if errors.Is(err, uploads.ErrUnsupportedFormat) {
			writeError(w, http.StatusUnsupportedMediaType, "unsupported image format (use JPEG, PNG, or GIF)")
			return
		}
		log.Printf("❌ Failed to store image: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store image")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

// Helper functions

func reportJSON(r *domain.Report) map[string]interface{} {
	return map[string]interface{}{
		"id":               r.ID,
		"event_time":       r.EventTimeBucket.Format(time.RFC3339),
		"lat":              r.LatApprox,
		"lng":              r.LngApprox,
		"city":             r.City,
		"state":            r.State,
		"tag":              string(r.Tag),
		"summary":          r.Summary,
		"evidence_present": r.EvidencePresent,
		"image_url":        r.ImageURL,
		"upvotes":          r.Upvotes,
		"downvotes":        r.Downvotes,
		"flag_count":       r.FlagCount,
		"is_verified":      r.IsVerified,
		"confidence":       r.Confidence,
		"created_at":       r.CreatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
