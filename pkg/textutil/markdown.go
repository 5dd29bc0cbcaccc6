package textutil

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DiscordMessageLimit is the maximum message length accepted by Discord.
const DiscordMessageLimit = 2000

const codeFence = "```"

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

func IsCodeBlockOpen(text string) bool {
	return strings.Count(text, codeFence)%2 == 1
}

// SplitMarkdown splits text on paragraph boundaries into chunks of at most
// maxLength runes. A code block cut by a chunk boundary is closed at the end
// of the chunk and reopened at the start of the next one.
func SplitMarkdown(text string, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = DiscordMessageLimit
	}
	// room for the fences added around a cut code block
	partLimit := maxLength - 2*(len(codeFence)+1)
	if partLimit <= 0 {
		partLimit = maxLength
	}

	var (
		chunks  []string
		current string
	)
	flush := func() {
		if current == "" || current == codeFence+"\n" {
			return
		}
		if IsCodeBlockOpen(current) {
			chunks = append(chunks, current+"\n"+codeFence)
			current = codeFence + "\n"
			return
		}
		chunks = append(chunks, current)
		current = ""
	}

	for _, part := range splitKeepingDelimiters(text) {
		for _, piece := range hardSplit(part, partLimit) {
			if utf8.RuneCountInString(current)+utf8.RuneCountInString(piece) > partLimit {
				flush()
			}
			current += piece
		}
	}
	if current != "" && current != codeFence+"\n" {
		if IsCodeBlockOpen(current) {
			current += "\n" + codeFence
		}
		chunks = append(chunks, current)
	}
	return chunks
}

func splitKeepingDelimiters(text string) []string {
	var parts []string
	last := 0
	for _, loc := range paragraphBreak.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			parts = append(parts, text[last:loc[0]])
		}
		parts = append(parts, text[loc[0]:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		parts = append(parts, text[last:])
	}
	return parts
}

func hardSplit(part string, limit int) []string {
	if utf8.RuneCountInString(part) <= limit {
		return []string{part}
	}
	runes := []rune(part)
	pieces := make([]string, 0, len(runes)/limit+1)
	for len(runes) > limit {
		pieces = append(pieces, string(runes[:limit]))
		runes = runes[limit:]
	}
	if len(runes) > 0 {
		pieces = append(pieces, string(runes))
	}
	return pieces
}

// Truncate cuts s to at most maxRunes runes, appending an ellipsis when it
// had to cut.
func Truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	if maxRunes <= 1 {
		return string([]rune(s)[:maxRunes])
	}
	return string([]rune(s)[:maxRunes-1]) + "…"
}
