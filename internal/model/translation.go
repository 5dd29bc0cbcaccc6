package model

type TranslationResponse struct {
	Translation string `json:"translation"`
}

// MultiTranslation holds one translation per language key.
type MultiTranslation map[string]string

func (m MultiTranslation) For(language string) (string, bool) {
	text, ok := m[language]
	return text, ok && text != ""
}

type ThreadTranslationResponse struct {
	TranslatedThread string `json:"translated_thread"`
}
