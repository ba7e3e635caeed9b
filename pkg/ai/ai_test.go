package ai

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDefaultAnalysisEnglish(t *testing.T) {
	a := DefaultAnalysis("en")

	if a.ContentStructure.OpeningAnalysis.HookType != "story" {
		t.Errorf("HookType = %q, want story", a.ContentStructure.OpeningAnalysis.HookType)
	}
	if a.OverallAssessment.OverallScore != "8/10" {
		t.Errorf("OverallScore = %q, want 8/10", a.OverallAssessment.OverallScore)
	}
	if len(a.OverallAssessment.FrameworkIdentification) != 2 ||
		a.OverallAssessment.FrameworkIdentification[0] != "AIDA" {
		t.Errorf("FrameworkIdentification = %v", a.OverallAssessment.FrameworkIdentification)
	}
}

func TestDefaultAnalysisChinese(t *testing.T) {
	a := DefaultAnalysis("zh")

	if a.ContentStructure.OpeningAnalysis.HookType != "故事型" {
		t.Errorf("HookType = %q, want 故事型", a.ContentStructure.OpeningAnalysis.HookType)
	}
	if a.LanguageTechniques.ToneAnalysis.EmotionalColor != "正面" {
		t.Errorf("EmotionalColor = %q", a.LanguageTechniques.ToneAnalysis.EmotionalColor)
	}
}

func TestDefaultAnalysisDeterministic(t *testing.T) {
	first, _ := json.Marshal(DefaultAnalysis("en"))
	second, _ := json.Marshal(DefaultAnalysis("en"))
	if string(first) != string(second) {
		t.Error("fallback analysis should be identical across calls")
	}
}

func TestAnalysisJSONKeys(t *testing.T) {
	data, err := json.Marshal(DefaultAnalysis("en"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	for _, key := range []string{
		`"content_structure"`, `"opening_analysis"`, `"hook_type"`,
		`"language_techniques"`, `"rhetorical_devices"`,
		`"storytelling_techniques"`, `"conflict_setup"`,
		`"overall_assessment"`, `"framework_identification"`, `"overall_score"`,
	} {
		if !strings.Contains(string(data), key) {
			t.Errorf("serialized analysis missing key %s", key)
		}
	}
}

func TestFallbackScripts(t *testing.T) {
	analysis := DefaultAnalysis("en")
	req := Requirements{Body: "My productivity system for founders", Duration: 60}

	scripts := FallbackScripts(analysis, req, 2, "en")
	if len(scripts) != 2 {
		t.Fatalf("len(scripts) = %d, want 2", len(scripts))
	}

	s := scripts[0]
	if s.Body != req.Body {
		t.Errorf("Body = %q, want user body", s.Body)
	}
	if !strings.HasSuffix(s.Hook, "Here's what you need to know!") {
		t.Errorf("generated hook = %q", s.Hook)
	}
	if s.CTA == "" {
		t.Error("fallback should fill in a CTA")
	}
	if s.FrameworkUsed != "AIDA" {
		t.Errorf("FrameworkUsed = %q, want first identified framework", s.FrameworkUsed)
	}
	if s.EstimatedDuration != "60 seconds" {
		t.Errorf("EstimatedDuration = %q", s.EstimatedDuration)
	}
}

func TestFallbackScriptsKeepUserFields(t *testing.T) {
	req := Requirements{
		Hook:     "Stop scrolling.",
		Body:     "Here is the system.",
		CTA:      "Follow for part two.",
		Duration: 30,
	}

	scripts := FallbackScripts(nil, req, 1, "en")
	if len(scripts) != 1 {
		t.Fatalf("len(scripts) = %d, want 1", len(scripts))
	}
	if scripts[0].Hook != req.Hook || scripts[0].CTA != req.CTA {
		t.Errorf("user hook/cta overwritten: %+v", scripts[0])
	}
	if scripts[0].FrameworkUsed != "Hook-Story-Offer" {
		t.Errorf("FrameworkUsed = %q, want default framework", scripts[0].FrameworkUsed)
	}
}

func TestFallbackScriptsChinese(t *testing.T) {
	scripts := FallbackScripts(DefaultAnalysis("zh"), Requirements{Body: "內容", Duration: 45}, 1, "zh")
	if scripts[0].EstimatedDuration != "45秒" {
		t.Errorf("EstimatedDuration = %q, want 45秒", scripts[0].EstimatedDuration)
	}
}

func TestFallbackScriptsMinimumOneVariation(t *testing.T) {
	scripts := FallbackScripts(nil, Requirements{Body: "x", Duration: 60}, 0, "en")
	if len(scripts) != 1 {
		t.Errorf("len(scripts) = %d, want 1", len(scripts))
	}
}
