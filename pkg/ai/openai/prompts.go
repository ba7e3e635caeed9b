package openai

import (
	"encoding/json"
	"fmt"

	"github.com/scriptingcat/scriptingcat/pkg/ai"
)

const analysisSystemPromptEN = `You are a social media copywriting expert. Analyze according to this comprehensive framework and respond in JSON format:

{
  "content_structure": {
    "opening_analysis": {
      "hook_type": "opening type (question/suspense/story/data)",
      "attention_anchor": "attention anchoring technique assessment",
      "effectiveness_score": "opening effectiveness score (1-10)"
    },
    "narrative_pacing": {
      "information_density": "information density distribution analysis",
      "rhythm_pattern": "rhythm change patterns",
      "cognitive_load": "cognitive load management assessment"
    },
    "information_hierarchy": {
      "core_viewpoint": "core viewpoint identification",
      "supporting_evidence": "supporting evidence hierarchy",
      "logical_flow": "logical flow analysis"
    },
    "turning_points": "turning point placement analysis",
    "conclusion_cta": {
      "emotional_climax": "emotional climax techniques",
      "cta_naturalness": "CTA naturalness assessment",
      "action_motivation": "action motivation design"
    }
  },
  "language_techniques": {
    "tone_analysis": {
      "emotional_color": "emotional coloring",
      "authority_level": "authority degree",
      "affinity_index": "affinity index"
    },
    "rhetorical_devices": {
      "metaphor_usage": "metaphor system usage",
      "parallel_structure": "parallel structure",
      "questioning_strategy": "questioning strategy",
      "contrast_technique": "contrast techniques"
    },
    "emotional_triggers": {
      "positive_words": "positive emotional words count",
      "negative_words": "negative emotional words usage",
      "intensity_distribution": "emotional intensity distribution"
    },
    "rhythm_feel": "language rhythm assessment",
    "conversational_design": "conversational feel creation"
  },
  "storytelling_techniques": {
    "character_development": "character development analysis",
    "conflict_setup": {
      "conflict_type": "conflict type identification",
      "escalation_mechanism": "conflict escalation mechanism"
    },
    "emotional_arc": {
      "trajectory_design": "emotional trajectory design",
      "climax_creation": "emotional climax creation"
    },
    "suspense_management": "suspense management techniques",
    "resonance_creation": {
      "universal_connection": "universal emotional connection",
      "personalized_resonance": "personalized resonance"
    }
  },
  "overall_assessment": {
    "framework_identification": ["identified frameworks"],
    "key_strengths": ["main strengths"],
    "improvement_suggestions": ["specific improvement suggestions"],
    "target_audience_match": "target audience match degree",
    "viral_potential": "viral potential",
    "conversion_likelihood": "conversion likelihood",
    "overall_score": "overall score (1-10)"
  }
}`

const analysisSystemPromptZH = `你是社交媒體文案分析專家。請根據以下框架進行詳細分析並以JSON格式回應：

{
  "content_structure": {
    "opening_analysis": {
      "hook_type": "開場類型(問題型/懸念型/故事型/數據型)",
      "attention_anchor": "注意力錨定技術評估",
      "effectiveness_score": "開場效果評分(1-10)"
    },
    "narrative_pacing": {
      "information_density": "信息密度分佈分析",
      "rhythm_pattern": "節奏變化模式",
      "cognitive_load": "認知負荷管理評估"
    },
    "information_hierarchy": {
      "core_viewpoint": "核心觀點識別",
      "supporting_evidence": "支撐論據層級",
      "logical_flow": "邏輯流向分析"
    },
    "turning_points": "轉折點設置分析",
    "conclusion_cta": {
      "emotional_climax": "情感昇華技巧",
      "cta_naturalness": "CTA自然度評估",
      "action_motivation": "行動驅動設計"
    }
  },
  "language_techniques": {
    "tone_analysis": {
      "emotional_color": "情感色彩",
      "authority_level": "權威性程度",
      "affinity_index": "親和力指數"
    },
    "rhetorical_devices": {
      "metaphor_usage": "比喻系統運用",
      "parallel_structure": "排比結構",
      "questioning_strategy": "反問策略",
      "contrast_technique": "對比手法"
    },
    "emotional_triggers": {
      "positive_words": "正面情感詞統計",
      "negative_words": "負面情感詞運用",
      "intensity_distribution": "情感強度分佈"
    },
    "rhythm_feel": "語言節奏感評估",
    "conversational_design": "對話感營造技巧"
  },
  "storytelling_techniques": {
    "character_development": "角色塑造分析",
    "conflict_setup": {
      "conflict_type": "衝突類型識別",
      "escalation_mechanism": "衝突升級機制"
    },
    "emotional_arc": {
      "trajectory_design": "情感軌跡設計",
      "climax_creation": "情感高潮營造"
    },
    "suspense_management": "懸念管理技巧",
    "resonance_creation": {
      "universal_connection": "普世情感連接",
      "personalized_resonance": "個性化共鳴"
    }
  },
  "overall_assessment": {
    "framework_identification": ["識別的框架"],
    "key_strengths": ["主要優勢"],
    "improvement_suggestions": ["具體改進建議"],
    "target_audience_match": "目標受眾匹配度",
    "viral_potential": "病毒傳播潛力",
    "conversion_likelihood": "轉換可能性",
    "overall_score": "綜合評分(1-10)"
  }
}`

func analysisSystemPrompt(language string) string {
	if language == "zh" {
		return analysisSystemPromptZH
	}
	return analysisSystemPromptEN
}

func analysisUserPrompt(content, platform, language string) string {
	if language == "zh" {
		return fmt.Sprintf("請詳細分析這個%s腳本：\n\n%s", platform, content)
	}
	return fmt.Sprintf("Please analyze this %s script in detail:\n\n%s", platform, content)
}

func generationSystemPrompt(variations int, language string) string {
	if language == "zh" {
		return fmt.Sprintf(`你是一位創造高轉換社交媒體腳本的專業文案撰寫者。基於成功腳本的分析和用戶要求，生成遵循類似框架和技巧的新腳本。

請以JSON格式生成%d個變化版本：
{
  "scripts": [
    {
      "hook": "開場鉤子文字",
      "body": "主要內容正文",
      "cta": "行動呼籲文字",
      "framework_used": "應用的主要框架",
      "estimated_duration": "預估時長（如：60秒）"
    }
  ]
}`, variations)
	}

	return fmt.Sprintf(`You are an expert copywriter who creates high-converting social media scripts. Based on the analysis of a successful script and user requirements, generate new scripts that follow similar frameworks and techniques.

Generate %d variation(s) in JSON format:
{
  "scripts": [
    {
      "hook": "opening hook text",
      "body": "main content body",
      "cta": "call to action text",
      "framework_used": "primary framework applied",
      "estimated_duration": "estimated duration (e.g., 60 seconds)"
    }
  ]
}`, variations)
}

func generationUserPrompt(analysis *ai.Analysis, req ai.Requirements, variations int, language string) string {
	analysisJSON, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		analysisJSON = []byte("{}")
	}

	if language == "zh" {
		hook := req.Hook
		if hook == "" {
			hook = "請AI生成"
		}
		cta := req.CTA
		if cta == "" {
			cta = "請AI生成"
		}
		return fmt.Sprintf(`基於這個成功腳本分析：
%s

用戶要求：
- 目標時長：%d秒
- 開場白：%s
- 主體內容：%s
- 行動呼籲：%s

生成%d個新腳本變化版本，融入類似的技巧和框架，確保符合指定時長。

重要要求：
1. 腳本必須詳細且豐富，適合%d秒的時長
2. 包含具體的例子、故事或數據來支撐觀點
3. 使用多種修辭技巧增強吸引力
4. 確保內容有足夠的深度和價值
5. 每個部分都要充實，避免過於簡短`,
			analysisJSON, req.Duration, hook, req.Body, cta, variations, req.Duration)
	}

	hook := req.Hook
	if hook == "" {
		hook = "Generate with AI"
	}
	cta := req.CTA
	if cta == "" {
		cta = "Generate with AI"
	}
	return fmt.Sprintf(`Based on this successful script analysis:
%s

User requirements:
- Target duration: %d seconds
- Hook: %s
- Body content: %s
- Call-to-action: %s

Generate %d new script variation(s) that incorporate similar techniques and frameworks, ensuring they fit the specified duration.

Important requirements:
1. Scripts must be detailed and rich, suitable for %d seconds duration
2. Include specific examples, stories, or data to support points
3. Use multiple rhetorical techniques to enhance appeal
4. Ensure content has sufficient depth and value
5. Each section should be substantial, avoid being too brief`,
		analysisJSON, req.Duration, hook, req.Body, cta, variations, req.Duration)
}

func polishSystemPrompt(language string) string {
	if language == "zh" {
		return "你是一位專業編輯。請將以下口語化的影片逐字稿整理成通順易讀的文字，保留原意和所有重點，不要添加新內容，直接輸出整理後的文字。"
	}
	return "You are a professional editor. Rewrite the following spoken video transcript into clean, readable prose. Preserve the meaning and every key point, do not add new content, and output only the polished text."
}
