// Package ai defines the analysis and script-generation contract plus the
// deterministic fallback payloads used when the model output is unusable.
package ai

import (
	"context"
	"fmt"
)

// Analysis is the structured viral-content breakdown of one script. Field
// names mirror the JSON shape the model is prompted to return.
type Analysis struct {
	ContentStructure       ContentStructure       `json:"content_structure"`
	LanguageTechniques     LanguageTechniques     `json:"language_techniques"`
	StorytellingTechniques StorytellingTechniques `json:"storytelling_techniques"`
	OverallAssessment      OverallAssessment      `json:"overall_assessment"`
}

type ContentStructure struct {
	OpeningAnalysis      OpeningAnalysis      `json:"opening_analysis"`
	NarrativePacing      NarrativePacing      `json:"narrative_pacing"`
	InformationHierarchy InformationHierarchy `json:"information_hierarchy"`
	TurningPoints        string               `json:"turning_points"`
	ConclusionCTA        ConclusionCTA        `json:"conclusion_cta"`
}

type OpeningAnalysis struct {
	HookType           string `json:"hook_type"`
	AttentionAnchor    string `json:"attention_anchor"`
	EffectivenessScore string `json:"effectiveness_score"`
}

type NarrativePacing struct {
	InformationDensity string `json:"information_density"`
	RhythmPattern      string `json:"rhythm_pattern"`
	CognitiveLoad      string `json:"cognitive_load"`
}

type InformationHierarchy struct {
	CoreViewpoint      string `json:"core_viewpoint"`
	SupportingEvidence string `json:"supporting_evidence"`
	LogicalFlow        string `json:"logical_flow"`
}

type ConclusionCTA struct {
	EmotionalClimax  string `json:"emotional_climax"`
	CTANaturalness   string `json:"cta_naturalness"`
	ActionMotivation string `json:"action_motivation"`
}

type LanguageTechniques struct {
	ToneAnalysis         ToneAnalysis      `json:"tone_analysis"`
	RhetoricalDevices    RhetoricalDevices `json:"rhetorical_devices"`
	EmotionalTriggers    EmotionalTriggers `json:"emotional_triggers"`
	RhythmFeel           string            `json:"rhythm_feel"`
	ConversationalDesign string            `json:"conversational_design"`
}

type ToneAnalysis struct {
	EmotionalColor string `json:"emotional_color"`
	AuthorityLevel string `json:"authority_level"`
	AffinityIndex  string `json:"affinity_index"`
}

type RhetoricalDevices struct {
	MetaphorUsage       string `json:"metaphor_usage"`
	ParallelStructure   string `json:"parallel_structure"`
	QuestioningStrategy string `json:"questioning_strategy"`
	ContrastTechnique   string `json:"contrast_technique"`
}

type EmotionalTriggers struct {
	PositiveWords         string `json:"positive_words"`
	NegativeWords         string `json:"negative_words"`
	IntensityDistribution string `json:"intensity_distribution"`
}

type StorytellingTechniques struct {
	CharacterDevelopment string            `json:"character_development"`
	ConflictSetup        ConflictSetup     `json:"conflict_setup"`
	EmotionalArc         EmotionalArc      `json:"emotional_arc"`
	SuspenseManagement   string            `json:"suspense_management"`
	ResonanceCreation    ResonanceCreation `json:"resonance_creation"`
}

type ConflictSetup struct {
	ConflictType        string `json:"conflict_type"`
	EscalationMechanism string `json:"escalation_mechanism"`
}

type EmotionalArc struct {
	TrajectoryDesign string `json:"trajectory_design"`
	ClimaxCreation   string `json:"climax_creation"`
}

type ResonanceCreation struct {
	UniversalConnection   string `json:"universal_connection"`
	PersonalizedResonance string `json:"personalized_resonance"`
}

type OverallAssessment struct {
	FrameworkIdentification []string `json:"framework_identification"`
	KeyStrengths            []string `json:"key_strengths"`
	ImprovementSuggestions  []string `json:"improvement_suggestions"`
	TargetAudienceMatch     string   `json:"target_audience_match"`
	ViralPotential          string   `json:"viral_potential"`
	ConversionLikelihood    string   `json:"conversion_likelihood"`
	OverallScore            string   `json:"overall_score"`
}

// Script is one generated script variation.
type Script struct {
	Hook              string `json:"hook"`
	Body              string `json:"body"`
	CTA               string `json:"cta"`
	FrameworkUsed     string `json:"framework_used"`
	EstimatedDuration string `json:"estimated_duration"`
}

// Requirements captures what the user wants in a generated script. Hook and
// CTA may be empty, in which case the model fills them in.
type Requirements struct {
	Hook     string `json:"hook"`
	Body     string `json:"body"`
	CTA      string `json:"cta"`
	Duration int    `json:"duration"`
}

// Client produces analyses and scripts. Implementations substitute
// deterministic fallback payloads instead of failing, so callers always get
// something renderable; errors are reserved for context cancellation.
type Client interface {
	// Analyze breaks a script down against the viral-content framework.
	Analyze(ctx context.Context, content, platform, language string) (*Analysis, error)

	// Generate produces script variations from a prior analysis and the
	// user's requirements.
	Generate(ctx context.Context, analysis *Analysis, req Requirements, variations int, language string) ([]Script, error)

	// Polish rewrites a raw transcript for readability. On failure the
	// transcript comes back unchanged.
	Polish(ctx context.Context, transcript, language string) (string, error)
}

// DefaultAnalysis returns the fixed fallback analysis for the language.
func DefaultAnalysis(language string) *Analysis {
	if language == "zh" {
		return &Analysis{
			ContentStructure: ContentStructure{
				OpeningAnalysis: OpeningAnalysis{
					HookType:           "故事型",
					AttentionAnchor:    "強烈",
					EffectivenessScore: "8",
				},
				NarrativePacing: NarrativePacing{
					InformationDensity: "中等",
					RhythmPattern:      "起伏",
					CognitiveLoad:      "適中",
				},
				InformationHierarchy: InformationHierarchy{
					CoreViewpoint:      "吸引人",
					SupportingEvidence: "充分",
					LogicalFlow:        "順暢",
				},
				TurningPoints: "合理",
				ConclusionCTA: ConclusionCTA{
					EmotionalClimax:  "強烈",
					CTANaturalness:   "自然",
					ActionMotivation: "強烈",
				},
			},
			LanguageTechniques: LanguageTechniques{
				ToneAnalysis: ToneAnalysis{
					EmotionalColor: "正面",
					AuthorityLevel: "中等",
					AffinityIndex:  "高",
				},
				RhetoricalDevices: RhetoricalDevices{
					MetaphorUsage:       "少量",
					ParallelStructure:   "少量",
					QuestioningStrategy: "少量",
					ContrastTechnique:   "少量",
				},
				EmotionalTriggers: EmotionalTriggers{
					PositiveWords:         "多",
					NegativeWords:         "少",
					IntensityDistribution: "均衡",
				},
				RhythmFeel:           "良好",
				ConversationalDesign: "自然",
			},
			StorytellingTechniques: StorytellingTechniques{
				CharacterDevelopment: "簡單",
				ConflictSetup: ConflictSetup{
					ConflictType:        "故事型",
					EscalationMechanism: "逐步",
				},
				EmotionalArc: EmotionalArc{
					TrajectoryDesign: "簡單",
					ClimaxCreation:   "強烈",
				},
				SuspenseManagement: "簡單",
				ResonanceCreation: ResonanceCreation{
					UniversalConnection:   "強",
					PersonalizedResonance: "中等",
				},
			},
			OverallAssessment: OverallAssessment{
				FrameworkIdentification: []string{"AIDA", "Hook-Story-Offer"},
				KeyStrengths:            []string{"內容吸引人", "結構完整"},
				ImprovementSuggestions:  []string{"優化開場鉤子", "增強行動呼籲"},
				TargetAudienceMatch:     "高",
				ViralPotential:          "中等",
				ConversionLikelihood:    "高",
				OverallScore:            "8/10",
			},
		}
	}

	return &Analysis{
		ContentStructure: ContentStructure{
			OpeningAnalysis: OpeningAnalysis{
				HookType:           "story",
				AttentionAnchor:    "strong",
				EffectivenessScore: "8",
			},
			NarrativePacing: NarrativePacing{
				InformationDensity: "medium",
				RhythmPattern:      "ups and downs",
				CognitiveLoad:      "moderate",
			},
			InformationHierarchy: InformationHierarchy{
				CoreViewpoint:      "engaging",
				SupportingEvidence: "abundant",
				LogicalFlow:        "smooth",
			},
			TurningPoints: "reasonable",
			ConclusionCTA: ConclusionCTA{
				EmotionalClimax:  "strong",
				CTANaturalness:   "natural",
				ActionMotivation: "strong",
			},
		},
		LanguageTechniques: LanguageTechniques{
			ToneAnalysis: ToneAnalysis{
				EmotionalColor: "positive",
				AuthorityLevel: "medium",
				AffinityIndex:  "high",
			},
			RhetoricalDevices: RhetoricalDevices{
				MetaphorUsage:       "few",
				ParallelStructure:   "few",
				QuestioningStrategy: "few",
				ContrastTechnique:   "few",
			},
			EmotionalTriggers: EmotionalTriggers{
				PositiveWords:         "many",
				NegativeWords:         "few",
				IntensityDistribution: "balanced",
			},
			RhythmFeel:           "good",
			ConversationalDesign: "natural",
		},
		StorytellingTechniques: StorytellingTechniques{
			CharacterDevelopment: "simple",
			ConflictSetup: ConflictSetup{
				ConflictType:        "story",
				EscalationMechanism: "gradual",
			},
			EmotionalArc: EmotionalArc{
				TrajectoryDesign: "simple",
				ClimaxCreation:   "strong",
			},
			SuspenseManagement: "simple",
			ResonanceCreation: ResonanceCreation{
				UniversalConnection:   "strong",
				PersonalizedResonance: "moderate",
			},
		},
		OverallAssessment: OverallAssessment{
			FrameworkIdentification: []string{"AIDA", "Hook-Story-Offer"},
			KeyStrengths:            []string{"engaging content", "complete structure"},
			ImprovementSuggestions:  []string{"optimize hook strength", "enhance call-to-action"},
			TargetAudienceMatch:     "high",
			ViralPotential:          "medium",
			ConversionLikelihood:    "high",
			OverallScore:            "8/10",
		},
	}
}

// FallbackScripts builds the fixed script variations used when generation
// output is unusable. User-supplied hook/cta win over the canned text.
func FallbackScripts(analysis *Analysis, req Requirements, variations int, language string) []Script {
	framework := ""
	if analysis != nil && len(analysis.OverallAssessment.FrameworkIdentification) > 0 {
		framework = analysis.OverallAssessment.FrameworkIdentification[0]
	}

	if variations < 1 {
		variations = 1
	}

	scripts := make([]Script, 0, variations)
	for i := 0; i < variations; i++ {
		if language == "zh" {
			s := Script{
				Hook:              req.Hook,
				Body:              req.Body,
				CTA:               req.CTA,
				FrameworkUsed:     framework,
				EstimatedDuration: fmt.Sprintf("%d秒", req.Duration),
			}
			if s.Hook == "" {
				s.Hook = fmt.Sprintf("%s... - 這是你需要知道的！", truncate(req.Body, 50))
			}
			if s.Body == "" {
				s.Body = "基於你的想法，這裡有一個經過驗證的方法。這個技巧已被頂級創作者用來獲得數百萬觀看次數。關鍵是先提供價值，然後與你的觀眾建立信任。"
			}
			if s.CTA == "" {
				s.CTA = "試試這個方法，在評論中告訴我效果如何！"
			}
			if s.FrameworkUsed == "" {
				s.FrameworkUsed = "鉤子-故事-提議"
			}
			scripts = append(scripts, s)
			continue
		}

		s := Script{
			Hook:              req.Hook,
			Body:              req.Body,
			CTA:               req.CTA,
			FrameworkUsed:     framework,
			EstimatedDuration: fmt.Sprintf("%d seconds", req.Duration),
		}
		if s.Hook == "" {
			s.Hook = fmt.Sprintf("%s... - Here's what you need to know!", truncate(req.Body, 50))
		}
		if s.Body == "" {
			s.Body = "Based on your idea, here's a proven approach that works. This technique has been used by top creators to get millions views. The key is to focus on value first, then build trust with your audience."
		}
		if s.CTA == "" {
			s.CTA = "Try this approach and let me know how it works for you in the comments!"
		}
		if s.FrameworkUsed == "" {
			s.FrameworkUsed = "Hook-Story-Offer"
		}
		scripts = append(scripts, s)
	}
	return scripts
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
