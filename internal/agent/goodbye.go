package agent

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// DefaultGoodbyePhrases is the farewell set matched against bot replies when
// EndConversationOnGoodbye is enabled.
var DefaultGoodbyePhrases = []string{
	"goodbye",
	"bye",
	"bye bye",
	"see you",
	"see you later",
	"see you soon",
	"talk to you later",
	"have a good day",
	"have a great day",
	"have a good one",
	"take care",
	"farewell",
	"so long",
}

const (
	// goodbyeSimilarity accepts a window on string similarity alone. The
	// Winkler prefix boost scores "good" vs "goodbye" at 0.91, so the bar
	// sits above that while transcriber slips like "goodbyee" (0.97) pass.
	goodbyeSimilarity = 0.92

	// goodbyePhoneticFloor is the minimum similarity for a phonetic match
	// to count; it keeps Metaphone collisions between unrelated words out.
	goodbyePhoneticFloor = 0.70

	// goodbyeMinFuzzyLen is the shortest phrase eligible for the fuzzy and
	// phonetic tiers. Below it ("bye") only exact substring counts, so "by"
	// and friends never end a conversation.
	goodbyeMinFuzzyLen = 4
)

// GoodbyeMatcher detects farewells in reply text. Matching is three-tiered:
// exact substring, then Jaro-Winkler similarity over word windows, then
// Double Metaphone equality for spelling variants the similarity misses
// ("goodbyee", "gud bye"). All tiers are pure string work, well inside the
// goodbye race budget.
type GoodbyeMatcher struct {
	phrases []string
}

// NewGoodbyeMatcher builds a matcher over the given phrases, or
// DefaultGoodbyePhrases when none are given. Phrases are normalized once at
// construction.
func NewGoodbyeMatcher(phrases ...string) *GoodbyeMatcher {
	if len(phrases) == 0 {
		phrases = DefaultGoodbyePhrases
	}
	normalized := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if n := normalizePhrase(p); n != "" {
			normalized = append(normalized, n)
		}
	}
	return &GoodbyeMatcher{phrases: normalized}
}

// Match reports whether text contains a farewell.
func (m *GoodbyeMatcher) Match(text string) bool {
	text = normalizePhrase(text)
	if text == "" {
		return false
	}

	for _, phrase := range m.phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}

	words := strings.Fields(text)
	for _, phrase := range m.phrases {
		if len(phrase) < goodbyeMinFuzzyLen {
			continue
		}
		width := len(strings.Fields(phrase))
		for _, window := range wordWindows(words, width) {
			score := matchr.JaroWinkler(window, phrase, false)
			if score >= goodbyeSimilarity {
				return true
			}
			if score >= goodbyePhoneticFloor && metaphoneEqual(window, phrase) {
				return true
			}
		}
	}
	return false
}

// normalizePhrase lowercases and strips everything but letters, digits and
// spaces, collapsing runs of whitespace.
func normalizePhrase(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// wordWindows returns every width-word window of words, space-joined.
func wordWindows(words []string, width int) []string {
	if width <= 0 || width > len(words) {
		return nil
	}
	out := make([]string, 0, len(words)-width+1)
	for i := 0; i+width <= len(words); i++ {
		out = append(out, strings.Join(words[i:i+width], " "))
	}
	return out
}

// metaphoneEqual compares the Double Metaphone code sets of a and b word by
// word. Two phrases are phonetically equal when every word pair shares at
// least one code.
func metaphoneEqual(a, b string) bool {
	aw, bw := strings.Fields(a), strings.Fields(b)
	if len(aw) != len(bw) {
		return false
	}
	for i := range aw {
		if !metaphoneWordEqual(aw[i], bw[i]) {
			return false
		}
	}
	return true
}

func metaphoneWordEqual(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, ac := range []string{ap, as} {
		if ac == "" {
			continue
		}
		for _, bc := range []string{bp, bs} {
			if bc != "" && ac == bc {
				return true
			}
		}
	}
	return false
}
