package local

import (
	"fmt"
	"strings"
)

type Language string

const (
	English    = Language("English")
	Chinese    = Language("Chinese")
	Indonesian = Language("Indonesian")
	Thai       = Language("Thai")
	Vietnamese = Language("Vietnamese")
	Japanese   = Language("Japanese")
)

// Supported is the list offered as choices by the language commands.
var Supported = []Language{English, Chinese, Indonesian, Thai, Vietnamese, Japanese}

var localeLanguages = map[string]Language{
	"th":    Thai,
	"zh-CN": Chinese,
	"zh-TW": Chinese,
	"id":    Indonesian,
	"vi":    Vietnamese,
	"ja":    Japanese,
}

// ParseLanguage accepts both display names ("Thai") and channel keys ("thai").
func ParseLanguage(s string) (Language, bool) {
	for _, language := range Supported {
		if strings.EqualFold(string(language), strings.TrimSpace(s)) {
			return language, true
		}
	}
	return "", false
}

// FromLocale maps a Discord client locale to a supported language.
func FromLocale(locale string) (Language, bool) {
	language, ok := localeLanguages[locale]
	return language, ok
}

// Key is the lower-case form used for channel maps in the config.
func (l Language) Key() string {
	return strings.ToLower(string(l))
}

// DisplayName turns a channel key like "thai" into "Thai". Unknown keys are
// title-cased as is.
func DisplayName(key string) string {
	if language, ok := ParseLanguage(key); ok {
		return string(language)
	}
	if key == "" {
		return key
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

type Localization struct {
	language Language
	text     string
}

type TextSet struct {
	Default          string
	translationsText map[Language]string
}

func NewTrans(language Language, text string) Localization {
	return Localization{
		language: language,
		text:     text,
	}
}

func NewSet(defaultText string, localizations ...Localization) TextSet {
	set := TextSet{
		Default:          defaultText,
		translationsText: make(map[Language]string),
	}
	for _, localization := range localizations {
		set.translationsText[localization.language] = localization.text
	}
	return set
}

func (l TextSet) Text(language Language) string {
	if text, ok := l.translationsText[language]; ok {
		return text
	}
	return l.Default
}

func (l TextSet) DefaultFormat(a ...any) string {
	return fmt.Sprintf(l.Default, a...)
}

func (l TextSet) Format(language Language, a ...any) string {
	return fmt.Sprintf(l.Text(language), a...)
}
