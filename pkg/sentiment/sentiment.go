// Package sentiment provides bot-sentiment analysis over the running
// transcript. The conversation samples the analyser once per second and the
// synthesizer reads the latest snapshot to colour speech.
package sentiment

import "context"

// DefaultEmotions is the emotion set offered to the analyser when the
// synthesizer's sentiment config does not specify one.
var DefaultEmotions = []string{"happy", "sad", "angry", "neutral"}

// Config selects the emotion palette a sentiment-aware synthesizer supports.
type Config struct {
	// Emotions the analyser may choose from. Empty means DefaultEmotions.
	Emotions []string
}

/// BotSentiment is one sampled sentiment: an emotion from the configured set
// and a degree in [0, 1].
type BotSentiment struct {
	Emotion string
	Degree  float64
}

// Analyser derives the bot's current sentiment from the rendered transcript.
type Analyser interface {
	// Analyse returns the sentiment the bot should convey given the
	// conversation so far. An empty Emotion means no signal.
	Analyse(ctx context.Context, transcript string) (BotSentiment, error)
}
