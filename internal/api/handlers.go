// Package api exposes HTTP handlers for the insight service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/insight/internal/analysis"
	"example.com/insight/internal/auth"
	"example.com/insight/internal/domain"
	"example.com/insight/internal/persistence"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/activities", h.activities)
	mux.HandleFunc("/v1/activities/", h.activityByID)
	mux.HandleFunc("/v1/users/", h.userByID)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createActivity(w, r)
	case http.MethodGet:
		h.listActivities(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/activities/")
	if rest == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}

	id, action, _ := strings.Cut(rest, "/")
	switch {
	case action == "" && r.Method == http.MethodGet:
		h.getActivity(w, r, id)
	case action == "analyze" && r.Method == http.MethodPost:
		h.analyzeActivity(w, r, id)
	case action == "insights" && r.Method == http.MethodGet:
		h.getInsights(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) userByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || action != "profile" {
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
		return
	}

	switch r.Method {
	case http.MethodPut:
		h.putProfile(w, r, id)
	case http.MethodGet:
		h.getProfile(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeActivitiesWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope activities:write required")
		return
	}

	var req CreateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")

	input := domain.CreateActivityInput{
		TenantID:       claims.TenantID,
		UserID:         req.UserID,
		ActivityType:   req.ActivityType,
		Name:           req.Name,
		UserIntent:     req.UserIntent,
		StartedAt:      req.StartedAt,
		DistanceM:      req.DistanceM,
		MovingTimeS:    req.MovingTimeS,
		ElapsedTimeS:   req.ElapsedTimeS,
		ElevGainM:      req.ElevGainM,
		AvgHR:          req.AvgHR,
		MaxHR:          req.MaxHR,
		AvgCadence:     req.AvgCadence,
		AvgSpeedMPS:    req.AvgSpeedMPS,
		Source:         req.Source,
		Streams:        req.Streams,
		IdempotencyKey: idempotencyKey,
	}
	if req.CheckIn != nil {
		input.CheckIn = &domain.CheckIn{
			UserID:       req.UserID,
			RPE:          req.CheckIn.RPE,
			PainScore:    req.CheckIn.PainScore,
			PainLocation: req.CheckIn.PainLocation,
			SleepQuality: req.CheckIn.SleepQuality,
			Illness:      req.CheckIn.Illness,
		}
	}

	activity, replay, err := h.service.CreateActivity(r.Context(), input)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := CreateActivityResponse{
		ActivityID: activity.ID,
		Status:     string(activity.State),
		Replay:     replay,
	}

	status := http.StatusAccepted
	if replay {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeActivitiesRead) && !claims.HasScope(auth.ScopeActivitiesWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope activities:read required")
		return
	}

	activity, err := h.service.GetActivity(r.Context(), claims.TenantID, id)
	if err != nil {
		if errors.Is(err, domain.ErrActivityNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "activity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeActivitiesRead) && !claims.HasScope(auth.ScopeActivitiesWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope activities:read required")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing user_id parameter")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	cursorToken := r.URL.Query().Get("cursor")
	cursor, err := persistence.DecodeCursor(cursorToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	activities, next, err := h.service.ListActivitiesByUser(r.Context(), claims.TenantID, userID, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, activity := range activities {
		items = append(items, toActivityView(activity))
	}

	resp := ListActivitiesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) analyzeActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeInsightsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope insights:write required")
		return
	}

	insight, err := h.service.AnalyzeActivity(r.Context(), claims.TenantID, id)
	if err != nil {
		var verr *analysis.ValidationError
		switch {
		case errors.Is(err, domain.ErrActivityNotFound):
			writeError(w, http.StatusNotFound, "not_found", "activity not found")
		case errors.As(err, &verr):
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", verr.Error())
		default:
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, toInsightView(*insight))
}

func (h *Handler) getInsights(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeInsightsRead) && !claims.HasScope(auth.ScopeInsightsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope insights:read required")
		return
	}

	insight, err := h.service.GetInsight(r.Context(), claims.TenantID, id)
	if err != nil {
		if errors.Is(err, domain.ErrInsightNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "insight not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toInsightView(*insight))
}

func (h *Handler) putProfile(w http.ResponseWriter, r *http.Request, userID string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeActivitiesWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope activities:write required")
		return
	}

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if req.MaxHR != nil && (*req.MaxHR <= 0 || *req.MaxHR > 250) {
		writeError(w, http.StatusBadRequest, "validation_failed", "max_hr out of range")
		return
	}

	profile, err := h.service.SaveProfile(r.Context(), domain.Profile{
		UserID:     userID,
		TenantID:   claims.TenantID,
		MaxHR:      req.MaxHR,
		Experience: req.Experience,
		Goal:       req.Goal,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toProfileView(*profile))
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request, userID string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeActivitiesRead) && !claims.HasScope(auth.ScopeActivitiesWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope activities:read required")
		return
	}

	profile, err := h.service.GetUserProfile(r.Context(), claims.TenantID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toProfileView(*profile))
}

// CheckInPayload is the optional subjective report attached on create.
type CheckInPayload struct {
	RPE          *int   `json:"rpe,omitempty"`
	PainScore    *int   `json:"pain_score,omitempty"`
	PainLocation string `json:"pain_location,omitempty"`
	SleepQuality *int   `json:"sleep_quality,omitempty"`
	Illness      bool   `json:"illness,omitempty"`
}

// CreateActivityRequest is the payload for POST /v1/activities.
type CreateActivityRequest struct {
	UserID       string          `json:"user_id"`
	ActivityType string          `json:"activity_type"`
	Name         string          `json:"name,omitempty"`
	UserIntent   string          `json:"user_intent,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	DistanceM    float64         `json:"distance_m"`
	MovingTimeS  int             `json:"moving_time_s"`
	ElapsedTimeS int             `json:"elapsed_time_s"`
	ElevGainM    float64         `json:"elev_gain_m"`
	AvgHR        *float64        `json:"avg_hr,omitempty"`
	MaxHR        *float64        `json:"max_hr,omitempty"`
	AvgCadence   *float64        `json:"avg_cadence,omitempty"`
	AvgSpeedMPS  *float64        `json:"avg_speed_mps,omitempty"`
	Source       string          `json:"source"`
	Streams      domain.Streams  `json:"streams,omitempty"`
	CheckIn      *CheckInPayload `json:"check_in,omitempty"`
}

// Validate ensures request correctness.
func (r CreateActivityRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(r.ActivityType) == "" {
		return errors.New("activity_type is required")
	}
	if r.StartedAt.IsZero() {
		return errors.New("started_at is required")
	}
	if r.MovingTimeS <= 0 {
		return errors.New("moving_time_s must be > 0")
	}
	if r.DistanceM < 0 {
		return errors.New("distance_m must be >= 0")
	}
	if r.ElapsedTimeS > 0 && r.ElapsedTimeS < r.MovingTimeS {
		return errors.New("elapsed_time_s must be >= moving_time_s")
	}
	if strings.TrimSpace(r.Source) == "" {
		return errors.New("source is required")
	}
	return nil
}

// CreateActivityResponse describes the response body for create.
type CreateActivityResponse struct {
	ActivityID string `json:"activity_id"`
	Status     string `json:"status"`
	Replay     bool   `json:"idempotent_replay"`
}

// ActivityView exposes full details about an activity.
type ActivityView struct {
	ActivityID   string    `json:"activity_id"`
	TenantID     string    `json:"tenant_id"`
	UserID       string    `json:"user_id"`
	ActivityType string    `json:"activity_type"`
	Name         string    `json:"name,omitempty"`
	UserIntent   string    `json:"user_intent,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	DistanceM    float64   `json:"distance_m"`
	MovingTimeS  int       `json:"moving_time_s"`
	ElapsedTimeS int       `json:"elapsed_time_s"`
	ElevGainM    float64   `json:"elev_gain_m"`
	AvgHR        *float64  `json:"avg_hr,omitempty"`
	MaxHR        *float64  `json:"max_hr,omitempty"`
	AvgCadence   *float64  `json:"avg_cadence,omitempty"`
	AvgSpeedMPS  *float64  `json:"avg_speed_mps,omitempty"`
	Source       string    `json:"source"`
	Version      string    `json:"version"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ProfileRequest is the payload for PUT /v1/users/{id}/profile.
type ProfileRequest struct {
	MaxHR      *float64 `json:"max_hr,omitempty"`
	Experience string   `json:"experience,omitempty"`
	Goal       string   `json:"goal,omitempty"`
}

// ProfileView exposes the stored athlete profile.
type ProfileView struct {
	UserID     string    `json:"user_id"`
	MaxHR      *float64  `json:"max_hr,omitempty"`
	Experience string    `json:"experience,omitempty"`
	Goal       string    `json:"goal,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// InsightView wraps the derived metrics document with its provenance.
type InsightView struct {
	ActivityID    string                  `json:"activity_id"`
	UserID        string                  `json:"user_id"`
	EngineVersion string                  `json:"engine_version"`
	Metrics       analysis.DerivedMetrics `json:"metrics"`
	ComputedAt    time.Time               `json:"computed_at"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(activity domain.Activity) ActivityView {
	return ActivityView{
		ActivityID:   activity.ID,
		TenantID:     activity.TenantID,
		UserID:       activity.UserID,
		ActivityType: activity.ActivityType,
		Name:         activity.Name,
		UserIntent:   activity.UserIntent,
		StartedAt:    activity.StartedAt,
		DistanceM:    activity.DistanceM,
		MovingTimeS:  activity.MovingTimeS,
		ElapsedTimeS: activity.ElapsedTimeS,
		ElevGainM:    activity.ElevGainM,
		AvgHR:        activity.AvgHR,
		MaxHR:        activity.MaxHR,
		AvgCadence:   activity.AvgCadence,
		AvgSpeedMPS:  activity.AvgSpeedMPS,
		Source:       activity.Source,
		Version:      activity.Version,
		Status:       string(activity.State),
		CreatedAt:    activity.CreatedAt,
		UpdatedAt:    activity.UpdatedAt,
	}
}

func toProfileView(profile domain.Profile) ProfileView {
	return ProfileView{
		UserID:     profile.UserID,
		MaxHR:      profile.MaxHR,
		Experience: profile.Experience,
		Goal:       profile.Goal,
		UpdatedAt:  profile.UpdatedAt,
	}
}

func toInsightView(insight domain.Insight) InsightView {
	return InsightView{
		ActivityID:    insight.ActivityID,
		UserID:        insight.UserID,
		EngineVersion: insight.EngineVersion,
		Metrics:       insight.Metrics,
		ComputedAt:    insight.ComputedAt,
	}
}
