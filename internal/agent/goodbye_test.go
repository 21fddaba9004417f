package agent

import "testing"

func TestGoodbyeMatcher_ExactSubstring(t *testing.T) {
	m := NewGoodbyeMatcher()

	cases := []struct {
		text string
		want bool
	}{
		{"Goodbye!", true},
		{"Alright, bye now.", true},
		{"Take care, and see you later.", true},
		{"Have a good day, Sam.", true},
		{"So, what can I do for you?", false},
		{"The bypass surgery went well.", false},
		{"", false},
		{"   ", false},
	}
	for _, tc := range cases {
		if got := m.Match(tc.text); got != tc.want {
			t.Errorf("Match(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestGoodbyeMatcher_FuzzyAndPhonetic(t *testing.T) {
	m := NewGoodbyeMatcher()

	cases := []struct {
		text string
		want bool
	}{
		// Close spellings a transcriber produces.
		{"goodbyee", true},
		{"gud bye then", true},
		{"farewel traveler", true},
		// Unrelated words must not match phonetically.
		{"the goose flew by", false},
		{"good work everyone", false},
	}
	for _, tc := range cases {
		if got := m.Match(tc.text); got != tc.want {
			t.Errorf("Match(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestGoodbyeMatcher_CustomPhrases(t *testing.T) {
	m := NewGoodbyeMatcher("auf wiedersehen", "tschüss")

	if !m.Match("Na dann, auf Wiedersehen!") {
		t.Error("custom phrase not matched")
	}
	if m.Match("goodbye") {
		t.Error("default phrase matched despite custom set")
	}
}

func TestGoodbyeMatcher_PunctuationInsensitive(t *testing.T) {
	m := NewGoodbyeMatcher()
	if !m.Match("Bye-bye! It was lovely talking to you.") {
		t.Error("hyphenated farewell not matched")
	}
}
