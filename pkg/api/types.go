package api

import (
	"github.com/scriptingcat/scriptingcat/pkg/ai"
	"github.com/scriptingcat/scriptingcat/pkg/entitlement"
)

// AnalyzeRequest is the body of POST /analyze. Exactly one of URL and
// ManualText must be set.
type AnalyzeRequest struct {
	URL        string `json:"url,omitempty"`
	ManualText string `json:"manualText,omitempty"`
	Language   string `json:"language,omitempty"`
}

// AnalyzeResponse is the AI analysis enriched with presentation metrics.
type AnalyzeResponse struct {
	ai.Analysis

	Platform           string `json:"platform"`
	Transcript         string `json:"transcript"`
	PolishedTranscript string `json:"polished_transcript"`

	EngagementScore    int    `json:"engagement_score"`
	HookStrength       int    `json:"hook_strength"`
	RetentionScore     int    `json:"retention_score"`
	CTAEffectiveness   int    `json:"cta_effectiveness"`
	EstimatedWatchTime string `json:"estimated_watch_time"`
	TargetAudience     string `json:"target_audience"`
	ContentType        string `json:"content_type"`

	Quota entitlement.Quota `json:"quota"`
}

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	Analysis         *ai.Analysis    `json:"analysis"`
	UserRequirements ai.Requirements `json:"userRequirements"`
	Variations       int             `json:"variations,omitempty"`
	Language         string          `json:"language,omitempty"`
}

// GenerateResponse carries the generated script variations.
type GenerateResponse struct {
	Scripts []ai.Script       `json:"scripts"`
	Quota   entitlement.Quota `json:"quota"`
}

// CheckoutRequest is the body of POST /billing/checkout.
type CheckoutRequest struct {
	TierID string `json:"tierId"`
}

// CheckoutResponse carries the hosted checkout session id and URL.
type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// FavoriteRequest is the body of POST /history/{id}/favorite. A missing body
// defaults to marking the entry as favorite.
type FavoriteRequest struct {
	Favorite *bool `json:"isFavorite"`
}

// DenialResponse tells the client why the request was refused and that an
// upgrade would lift the restriction.
type DenialResponse struct {
	Error           string `json:"error"`
	Reason          string `json:"reason"`
	Tier            string `json:"tier"`
	Used            int    `json:"used"`
	Limit           int    `json:"limit"`
	UpgradeRequired bool   `json:"upgradeRequired"`
}

// ErrorResponse is the generic error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
