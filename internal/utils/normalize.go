package utils

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	greetingLine   = regexp.MustCompile(`(?i)^\s*(dear|hi|hello|respected|sir|madam|to whom)\b`)
	signatureLine  = regexp.MustCompile(`(?i)^\s*(regards|thanks|thank you|best|sincerely|yours)\b`)
	quotedLine     = regexp.MustCompile(`^\s*>`)
	disclaimer     = regexp.MustCompile(`(?is)\b(this\s+(e-?mail|message)\b.*?\bconfidential|disclaimer\s*:).*$`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// maxNormalizePasses bounds the fixed-point loop in Normalize.
const maxNormalizePasses = 4

// Normalize strips greeting, signature, quoted-reply and disclaimer noise from
// raw message text and collapses whitespace. It never fails and is idempotent.
func Normalize(raw string) string {
	cur := collapse(StripNoise(raw))
	for i := 0; i < maxNormalizePasses; i++ {
		next := collapse(StripNoise(cur))
		if next == cur {
			break
		}
		cur = next
	}
	return cur
}

// StripNoise removes greeting, signature, quoted and disclaimer noise while
// keeping line structure, for line-oriented extraction.
func StripNoise(raw string) string {
	if raw == "" {
		return ""
	}
	text := norm.NFKC.String(dropInvalidUTF8(raw))
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	lines = dropGreeting(lines)
	lines = dropSignature(lines)
	lines = dropQuoted(lines)

	text = strings.Join(lines, "\n")
	if loc := disclaimer.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	return text
}

// dropGreeting removes the first non-blank line when it is a greeting, along
// with everything up to the next blank line. A single-line text is kept.
func dropGreeting(lines []string) []string {
	first := -1
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			first = i
			break
		}
	}
	if first < 0 || first == len(lines)-1 || !greetingLine.MatchString(lines[first]) {
		return lines
	}
	for i := first + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			return lines[i+1:]
		}
	}
	return lines[first+1:]
}

// dropSignature cuts from the first closing salutation after some content.
func dropSignature(lines []string) []string {
	seenContent := false
	for i, line := range lines {
		if seenContent && signatureLine.MatchString(line) {
			return lines[:i]
		}
		if strings.TrimSpace(line) != "" {
			seenContent = true
		}
	}
	return lines
}

func dropQuoted(lines []string) []string {
	kept := lines[:0:0]
	for _, line := range lines {
		if quotedLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}

func collapse(text string) string {
	return strings.TrimSpace(whitespaceRuns.ReplaceAllString(text, " "))
}
