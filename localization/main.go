package localization

import (
	"golang.org/x/text/language"
)

// Language selects the output language for all free-text fields the
// model produces. Structured keys and marker IDs stay English either way.
type Language string

const (
	English Language = "en"
	Arabic  Language = "ar"
)

var matcher = language.NewMatcher([]language.Tag{
	language.English, // first entry is the fallback
	language.Arabic,
})

// Resolve maps an Accept-Language header or an explicit "en"/"ar"
// request field onto a supported Language. Unknown input falls back to
// English.
func Resolve(raw string) Language {
	if raw == "" {
		return English
	}
	tag, _ := language.MatchStrings(matcher, raw)
	base, _ := tag.Base()
	if base.String() == "ar" {
		return Arabic
	}
	return English
}

// Directive returns the per-stage language instruction embedded in
// prompts.
func (l Language) Directive() string {
	if l == Arabic {
		return "Provide ALL free-text output in Arabic. Keep JSON keys and marker IDs (e.g. 3.1) exactly as specified."
	}
	return "Provide ALL free-text output in English."
}

type messageKey string

const (
	MsgQuizFallback     messageKey = "quiz_fallback"
	MsgScenarioFallback messageKey = "scenario_fallback"
	MsgAnalysisFailed   messageKey = "analysis_failed"
	MsgCatalogMissing   messageKey = "catalog_missing"
)

var messages = map[messageKey]map[Language]string{
	MsgQuizFallback: {
		English: "Error generating question",
		Arabic:  "حدث خطأ في توليد السؤال",
	},
	MsgScenarioFallback: {
		English: "Error generating scenario.",
		Arabic:  "حدث خطأ في توليد السيناريو.",
	},
	MsgAnalysisFailed: {
		English: "Analysis failed. Please try again.",
		Arabic:  "فشل التحليل. الرجاء المحاولة مرة أخرى.",
	},
	MsgCatalogMissing: {
		English: "Marker catalog not found. Analysis features are disabled.",
		Arabic:  "لم يتم العثور على قائمة المؤشرات. ميزات التحليل معطلة.",
	},
}

// Message looks up a localized user-facing string, falling back to
// English for unknown combinations.
func Message(key messageKey, lang Language) string {
	if byLang, ok := messages[key]; ok {
		if s, ok := byLang[lang]; ok {
			return s
		}
		return byLang[English]
	}
	return string(key)
}
