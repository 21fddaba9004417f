package sentiment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/colloquy-ai/colloquy/pkg/llm"
)

// LLMAnalyser implements Analyser by prompting an LLM to classify the bot's
// tone into one of the configured emotions.
type LLMAnalyser struct {
	provider llm.Provider
	emotions []string
}

var _ Analyser = (*LLMAnalyser)(nil)

// NewLLMAnalyser returns an analyser over provider. An empty emotion list
// falls back to DefaultEmotions.
func NewLLMAnalyser(provider llm.Provider, emotions []string) *LLMAnalyser {
	if len(emotions) == 0 {
		emotions = DefaultEmotions
	}
	return &LLMAnalyser{provider: provider, emotions: emotions}
}

// Analyse classifies the transcript. The model answers with
// "emotion" or "emotion:degree"; anything unparseable yields a zero
// BotSentiment and no error, since a missed sample is not a failure.
func (a *LLMAnalyser) Analyse(ctx context.Context, transcript string) (BotSentiment, error) {
	prompt := fmt.Sprintf(
		"Classify the emotion the BOT conveys in this conversation.\n"+
			"Answer with exactly one of [%s], optionally followed by a colon and an intensity between 0 and 1 (for example %q).\n\nConversation:\n%s",
		strings.Join(a.emotions, ", "), a.emotions[0]+":0.7", transcript,
	)

	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens: 10,
	})
	if err != nil {
		return BotSentiment{}, fmt.Errorf("sentiment: analyse: %w", err)
	}
	return a.parse(resp.Content), nil
}

// parse extracts "emotion(:degree)?" from the model's answer. Unknown
// emotions are discarded; a missing or malformed degree defaults to 1.
func (a *LLMAnalyser) parse(answer string) BotSentiment {
	answer = strings.ToLower(strings.TrimSpace(answer))
	emotion, degreeStr, hasDegree := strings.Cut(answer, ":")
	emotion = strings.Trim(emotion, " .\"'")

	found := false
	for _, e := range a.emotions {
		if strings.EqualFold(e, emotion) {
			emotion = e
			found = true
			break
		}
	}
	if !found {
		return BotSentiment{}
	}

	degree := 1.0
	if hasDegree {
		if d, err := strconv.ParseFloat(strings.TrimSpace(degreeStr), 64); err == nil && d >= 0 && d <= 1 {
			degree = d
		}
	}
	return BotSentiment{Emotion: emotion, Degree: degree}
}
