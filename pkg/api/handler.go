// Package api exposes the analysis, generation, quota, history and billing
// endpoints over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/scriptingcat/scriptingcat/pkg/billing"
	"github.com/scriptingcat/scriptingcat/pkg/content"
	"github.com/scriptingcat/scriptingcat/pkg/entitlement"
)

const (
	maxRequestBody  = 1 << 20 // 1 MiB
	platformManual  = "manual"
	defaultLanguage = "en"
)

// Handler serves the application's HTTP API.
type Handler struct {
	config Config
}

// Routes returns the chi router with all API endpoints mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/analyze", h.Analyze)
	r.Post("/generate", h.Generate)
	r.Get("/usage", h.GetUsage)

	r.Get("/history", h.ListHistory)
	r.Post("/history/{id}/favorite", h.SetFavorite)
	r.Delete("/history/{id}", h.DeleteHistory)

	r.Get("/preferences", h.GetPreferences)
	r.Put("/preferences", h.SetPreferences)

	r.Post("/billing/checkout", h.CreateCheckout)
	r.Post("/billing/cancel", h.CancelSubscription)
	if h.config.Billing != nil {
		r.Handle("/billing/webhook", h.config.Billing.WebhookHandler())
	}

	return r
}

// Analyze gates the request on the session's quota, resolves the submitted
// URL (or takes manual text as-is), polishes and analyzes the transcript and
// commits one unit of usage. Extraction failures surface as errors and do not
// consume quota.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req AnalyzeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.URL == "" && req.ManualText == "" {
		h.writeError(w, http.StatusBadRequest, "URL or manual text is required", "")
		return
	}

	language := req.Language
	if language == "" {
		if prefs, err := h.config.Service.Preferences(ctx, sessionID); err == nil {
			language = prefs.Language
		} else {
			language = defaultLanguage
		}
	}

	record, err := h.config.Service.Check(ctx, sessionID)
	if h.denied(w, r, sessionID, record, err) {
		return
	}

	platform := platformManual
	transcript := req.ManualText
	if req.URL != "" {
		extraction, err := h.config.Resolver.Resolve(ctx, req.URL, language)
		if err != nil {
			h.extractionError(w, req.URL, err)
			return
		}
		platform = extraction.Platform
		transcript = extraction.Content
	}

	polished, err := h.config.AI.Polish(ctx, transcript, language)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to analyze content", err.Error())
		return
	}

	analysis, err := h.config.AI.Analyze(ctx, polished, content.DisplayName(platform), language)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to analyze content", err.Error())
		return
	}

	// The analysis succeeded; the unit is spent even if persistence of the
	// history entry fails below.
	if _, err := h.config.Service.Commit(ctx, sessionID); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to record usage", err.Error())
		return
	}

	resp := AnalyzeResponse{
		Analysis:           *analysis,
		Platform:           content.DisplayName(platform),
		Transcript:         transcript,
		PolishedTranscript: polished,
		EngagementScore:    80 + rand.Intn(20),
		HookStrength:       80 + rand.Intn(20),
		RetentionScore:     75 + rand.Intn(25),
		CTAEffectiveness:   70 + rand.Intn(30),
		EstimatedWatchTime: fmt.Sprintf("%d:%02d avg", 1+rand.Intn(3), rand.Intn(60)),
		TargetAudience:     targetAudience(platform, language),
		ContentType:        contentType(transcript, language),
	}
	if quota, err := h.config.Service.Quota(ctx, sessionID); err == nil {
		resp.Quota = quota
	}

	h.appendHistory(r, sessionID, platform, req, transcript, resp)
	h.writeJSON(w, http.StatusOK, resp)
}

// Generate gates the request and produces script variations from a prior
// analysis plus the user's requirements.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req GenerateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Analysis == nil || req.UserRequirements.Body == "" {
		h.writeError(w, http.StatusBadRequest,
			"Analysis and user requirements (body content) are required", "")
		return
	}

	language := req.Language
	if language == "" {
		language = defaultLanguage
	}

	record, err := h.config.Service.Check(ctx, sessionID)
	if h.denied(w, r, sessionID, record, err) {
		return
	}

	scripts, err := h.config.AI.Generate(ctx, req.Analysis, req.UserRequirements, req.Variations, language)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to generate scripts", err.Error())
		return
	}

	if _, err := h.config.Service.Commit(ctx, sessionID); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to record usage", err.Error())
		return
	}

	resp := GenerateResponse{Scripts: scripts}
	if quota, err := h.config.Service.Quota(ctx, sessionID); err == nil {
		resp.Quota = quota
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetUsage reports the session's quota standing.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	quota, err := h.config.Service.Quota(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to load usage", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, quota)
}

// ListHistory returns the session's saved analyses, newest first.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	entries, err := h.config.Service.History(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to load history", err.Error())
		return
	}
	if entries == nil {
		entries = []entitlement.HistoryEntry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// SetFavorite flips the favorite flag on one history entry.
func (h *Handler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	entryID := chi.URLParam(r, "id")
	favorite := true
	var req FavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Favorite != nil {
		favorite = *req.Favorite
	}

	err := h.config.Service.SetFavorite(r.Context(), sessionID, entryID, favorite)
	switch {
	case errors.Is(err, entitlement.ErrHistoryNotFound):
		h.writeError(w, http.StatusNotFound, "History entry not found", "")
	case err != nil:
		h.writeError(w, http.StatusInternalServerError, "Failed to update history", err.Error())
	default:
		h.writeJSON(w, http.StatusOK, map[string]bool{"isFavorite": favorite})
	}
}

// DeleteHistory removes one history entry.
func (h *Handler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	err := h.config.Service.DeleteHistory(r.Context(), sessionID, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, entitlement.ErrHistoryNotFound):
		h.writeError(w, http.StatusNotFound, "History entry not found", "")
	case err != nil:
		h.writeError(w, http.StatusInternalServerError, "Failed to delete history", err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetPreferences returns the session's preferences.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	prefs, err := h.config.Service.Preferences(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to load preferences", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, prefs)
}

// SetPreferences stores the session's preferences.
func (h *Handler) SetPreferences(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var prefs entitlement.Preferences
	if !h.decode(w, r, &prefs) {
		return
	}
	if prefs.Language == "" {
		h.writeError(w, http.StatusBadRequest, "language is required", "")
		return
	}

	if err := h.config.Service.SetPreferences(r.Context(), sessionID, &prefs); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to save preferences", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, prefs)
}

// CreateCheckout starts a hosted checkout session for a paid tier.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if h.config.Billing == nil {
		h.writeError(w, http.StatusServiceUnavailable, "Billing is not configured", "")
		return
	}

	var req CheckoutRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.TierID == "" {
		h.writeError(w, http.StatusBadRequest, "Missing required field: tierId", "")
		return
	}

	session, err := h.config.Billing.Checkout(r.Context(), sessionID, req.TierID,
		h.config.CheckoutSuccessURL, h.config.CheckoutCancelURL)
	switch {
	case errors.Is(err, billing.ErrTierNotConfigured):
		h.writeError(w, http.StatusBadRequest, "Invalid subscription tier", "")
	case err != nil:
		h.writeError(w, http.StatusBadGateway, "Failed to create checkout session", err.Error())
	default:
		h.writeJSON(w, http.StatusOK, CheckoutResponse{SessionID: session.ID, URL: session.URL})
	}
}

// CancelSubscription cancels the session's subscription at period end.
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if h.config.Billing == nil {
		h.writeError(w, http.StatusServiceUnavailable, "Billing is not configured", "")
		return
	}

	record, err := h.config.Service.Check(ctx, sessionID)
	if record == nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to load subscription", "")
		return
	}
	if record.SubscriptionID == "" {
		h.writeError(w, http.StatusBadRequest, "No active subscription", "")
		return
	}
	_ = err // denial verdicts do not block cancellation

	if err := h.config.Billing.CancelSubscription(ctx, record.SubscriptionID); err != nil {
		h.writeError(w, http.StatusBadGateway, "Failed to cancel subscription", err.Error())
		return
	}
	if _, err := h.config.Service.Cancel(ctx, sessionID); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to update subscription", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// sessionID extracts the session id or responds 401.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := h.config.GetSessionID(r)
	if sessionID == "" {
		h.writeError(w, http.StatusUnauthorized, "Session ID is required", "")
		return "", false
	}
	return sessionID, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}
	return true
}

// denied maps entitlement verdicts onto a 402 denial payload. Storage
// failures surface as 500. Returns true when the response has been written.
func (h *Handler) denied(w http.ResponseWriter, r *http.Request, sessionID string, record *entitlement.Record, err error) bool {
	if err == nil {
		return false
	}
	if record == nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to check usage", err.Error())
		return true
	}

	resp := DenialResponse{
		Error:           err.Error(),
		Reason:          denialReason(err),
		Tier:            record.Tier,
		Used:            record.DailyUsage,
		UpgradeRequired: true,
	}
	if quota, qerr := h.config.Service.Quota(r.Context(), sessionID); qerr == nil {
		resp.Limit = quota.Limit
	}
	h.writeJSON(w, http.StatusPaymentRequired, resp)
	return true
}

func denialReason(err error) string {
	switch {
	case errors.Is(err, entitlement.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, entitlement.ErrSubscriptionInactive):
		return "inactive"
	case errors.Is(err, entitlement.ErrUnknownTier):
		return "unknown_tier"
	default:
		return "denied"
	}
}

// extractionError maps content resolution failures to status codes. Usage is
// never committed on this path.
func (h *Handler) extractionError(w http.ResponseWriter, url string, err error) {
	h.config.Logger.Warn().Err(err).Str("url", url).Msg("content extraction failed")
	switch {
	case errors.Is(err, content.ErrUnsupportedPlatform):
		h.writeError(w, http.StatusBadRequest, "Unsupported platform", err.Error())
	case errors.Is(err, content.ErrVideoTooLong):
		h.writeError(w, http.StatusUnprocessableEntity, "Video is too long", err.Error())
	default:
		h.writeError(w, http.StatusBadGateway, "Failed to extract content", err.Error())
	}
}

func (h *Handler) appendHistory(r *http.Request, sessionID, platform string, req AnalyzeRequest, transcript string, resp AnalyzeResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		h.config.Logger.Error().Err(err).Msg("marshal history analysis")
		return
	}
	entry := &entitlement.HistoryEntry{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Platform:   content.DisplayName(platform),
		URL:        req.URL,
		ManualText: req.ManualText,
		Transcript: transcript,
		Analysis:   payload,
	}
	if err := h.config.Service.AppendHistory(r.Context(), sessionID, entry); err != nil {
		h.config.Logger.Error().Err(err).Str("session", sessionID).Msg("append history failed")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.config.Logger.Error().Err(err).Msg("encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, code int, msg, details string) {
	h.writeJSON(w, code, ErrorResponse{Error: msg, Details: details})
}

func targetAudience(platform, language string) string {
	zh := language == "zh"
	switch strings.ToLower(platform) {
	case content.PlatformYouTube:
		if zh {
			return "專業人士 25-45歲"
		}
		return "Professionals 25-45"
	case content.PlatformTikTok:
		if zh {
			return "Z世代 16-28歲"
		}
		return "Gen Z 16-28"
	case content.PlatformInstagram:
		if zh {
			return "千禧世代 22-38歲"
		}
		return "Millennials 22-38"
	case content.PlatformThreads:
		if zh {
			return "早期採用者 20-40歲"
		}
		return "Early Adopters 20-40"
	default:
		if zh {
			return "一般觀眾"
		}
		return "General Audience"
	}
}

func contentType(text, language string) string {
	zh := language == "zh"
	lower := strings.ToLower(text)
	contains := func(keywords ...string) bool {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		return false
	}

	switch {
	case contains("tutorial", "how to", "教學", "怎麼"):
		if zh {
			return "教學"
		}
		return "Tutorial"
	case contains("tip", "advice", "技巧", "建議"):
		if zh {
			return "教育"
		}
		return "Educational"
	case contains("story", "experience", "故事", "經驗"):
		if zh {
			return "故事敘述"
		}
		return "Storytelling"
	case contains("review", "opinion", "評論", "意見"):
		if zh {
			return "評論"
		}
		return "Review"
	default:
		if zh {
			return "教育"
		}
		return "Educational"
	}
}
